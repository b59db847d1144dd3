package commands

import (
	"context"
	"time"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

type TelemetryStatus string

const (
	TelemetryStatusSuccess TelemetryStatus = "success"
	TelemetryStatusFailed  TelemetryStatus = "failed"
	// TelemetryStatusContextError marks runs cut short by cancellation or
	// the command deadline.
	TelemetryStatusContextError TelemetryStatus = "context_error"
)

// TelemetryInfo is handed to a Telemetry callback once per execution.
// ErrorKind is empty on success.
type TelemetryInfo struct {
	Command   string
	Operation string
	Fields    map[string]any
	Duration  time.Duration
	Status    TelemetryStatus
	Error     error
	ErrorKind domain.ErrorKind
	Logger    interfaces.Logger
}

type Telemetry[T command.Message] func(ctx context.Context, msg T, info TelemetryInfo)

// DefaultTelemetry logs one entry per execution: info on success, error
// with the failure kind otherwise.
func DefaultTelemetry[T command.Message](logger interfaces.Logger) Telemetry[T] {
	logger = EnsureLogger(logger)
	return func(ctx context.Context, _ T, info TelemetryInfo) {
		entry := logging.WithFields(logger, info.Fields).WithContext(ctx)
		elapsed := info.Duration.Milliseconds()
		if info.Status == TelemetryStatusSuccess {
			entry.Info("command.completed", "duration_ms", elapsed)
			return
		}
		logging.WithError(entry, info.Error).Error("command.failed",
			"status", string(info.Status),
			"duration_ms", elapsed,
		)
	}
}
