package platform

import (
	"fmt"
	"strings"
)

// Error is a non-zero errcode returned by the platform.
type Error struct {
	Operation string
	Code      int
	Message   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("platform: %s: errcode %d", e.Operation, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *Error) ErrorCode() int { return e.Code }

func (e *Error) ErrorMessage() string { return e.Message }

// HTTPError is a transport-level failure status.
type HTTPError struct {
	Operation string
	Status    int
	Body      string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("platform: %s: http status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("platform: %s: http status %d: %s", e.Operation, e.Status, body)
}

// ResponseError reports a success response missing the field the call needs.
type ResponseError struct {
	Operation string
	Field     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("platform: %s: response missing %q", e.Operation, e.Field)
}
