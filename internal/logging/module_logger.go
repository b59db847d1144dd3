package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	rootModule       = "publisher"
	metadataModule   = "publisher.metadata"
	contentModule    = "publisher.content"
	imagingModule    = "publisher.imaging"
	mediaCacheModule = "publisher.mediacache"
	platformModule   = "publisher.platform"
	retryModule      = "publisher.retry"
	previewModule    = "publisher.preview"
	tasksModule      = "publisher.tasks"
)

const (
	fieldTaskID    = "task_id"
	fieldTaskPhase = "phase"
)

// ModuleLogger returns a logger scoped to module. A nil provider yields a
// no-op logger; the module name is always attached as a field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

func MetadataLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, metadataModule)
}

func ContentLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, contentModule)
}

func ImagingLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, imagingModule)
}

func MediaCacheLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, mediaCacheModule)
}

func PlatformLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, platformModule)
}

func RetryLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, retryModule)
}

func PreviewLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, previewModule)
}

// TasksLogger returns the logger namespace used by the orchestrator and its workers.
func TasksLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, tasksModule)
}

// WithTaskContext tags logger with the task identifier and the phase being
// executed. Empty values are skipped.
func WithTaskContext(logger interfaces.Logger, taskID, phase string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(taskID); trimmed != "" {
		fields[fieldTaskID] = trimmed
	}
	if trimmed := strings.TrimSpace(phase); trimmed != "" {
		fields[fieldTaskPhase] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
