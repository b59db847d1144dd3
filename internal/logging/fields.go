package logging

import (
	"maps"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	fieldError     = "error"
	fieldErrorKind = "error_kind"
	fieldErrorCode = "error_code"
)

// WithFields attaches a copy of fields when logger implements
// interfaces.FieldsLogger and returns logger unchanged otherwise.
func WithFields(logger interfaces.Logger, fields map[string]any) interfaces.Logger {
	fl, ok := logger.(interfaces.FieldsLogger)
	if !ok || len(fields) == 0 {
		return logger
	}
	return fl.WithFields(maps.Clone(fields))
}

// WithError tags logger with err and, for pipeline errors, its kind and
// platform code so failed tasks can be filtered without parsing messages.
func WithError(logger interfaces.Logger, err error) interfaces.Logger {
	if err == nil {
		return logger
	}
	fields := map[string]any{fieldError: err.Error()}
	if kind := domain.KindOf(err); kind != "" {
		fields[fieldErrorKind] = string(kind)
	}
	if code := domain.ErrorCode(err); code != 0 {
		fields[fieldErrorCode] = code
	}
	return WithFields(logger, fields)
}
