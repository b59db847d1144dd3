package interfaces

import "context"

// Logger is the leveled, key/value logging contract used across the
// publisher. It matches github.com/goliatone/go-logger so hosts can pass
// those loggers through unchanged.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// LoggerProvider exposes named loggers, one per publisher module.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// FieldsLogger is implemented by loggers able to carry persistent fields.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}
