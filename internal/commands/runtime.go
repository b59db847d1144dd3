package commands

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

// DefaultCommandTimeout bounds a command that blocks on a whole task phase.
const DefaultCommandTimeout = 2 * time.Minute

const commandModuleRoot = "publisher.commands"

// CommandLogger returns the logger for the handlers of module, e.g.
// "publishing" logs under publisher.commands.publishing.
func CommandLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	name := strings.TrimSpace(module)
	if name == "" {
		name = "core"
	}
	return logging.WithFields(logging.ModuleLogger(provider, commandModuleRoot+"."+name), map[string]any{
		"command_module": name,
	})
}

func EnsureLogger(logger interfaces.Logger) interfaces.Logger {
	if logger == nil {
		return logging.NoOp()
	}
	return logger
}

// deadline derives the execution context. A nil ctx becomes Background and a
// non-positive timeout leaves it unbounded.
func deadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
