package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the stable name persisted alongside a failed task.
type ErrorKind string

const (
	KindMetadata     ErrorKind = "metadata"
	KindContent      ErrorKind = "content"
	KindImage        ErrorKind = "image"
	KindPublish      ErrorKind = "publish"
	KindRender       ErrorKind = "render"
	KindInvalidState ErrorKind = "invalid_task_state"
	KindNotFound     ErrorKind = "task_not_found"
	KindInternal     ErrorKind = "internal"
)

// MetadataError reports an absent, malformed or incomplete front-matter block.
type MetadataError struct {
	Field  string
	Reason string
	Err    error
	text   string
}

func (e *MetadataError) Error() string {
	if e.text != "" {
		return e.text
	}
	return compose("metadata", e.Field, e.Reason, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// ContentError reports a body that cannot be transformed, including image
// references with no matching uploaded asset.
type ContentError struct {
	Reference string
	Reason    string
	Err       error
	text      string
}

func (e *ContentError) Error() string {
	if e.text != "" {
		return e.text
	}
	return compose("content", e.Reference, e.Reason, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

// ImageError reports an unsupported or corrupt image.
type ImageError struct {
	Filename string
	Reason   string
	Err      error
	text     string
}

func (e *ImageError) Error() string {
	if e.text != "" {
		return e.text
	}
	return compose("image", e.Filename, e.Reason, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// PublishError is surfaced once a platform call failed permanently or ran
// out of attempts. Code and Message are the platform's own diagnostic.
type PublishError struct {
	Operation string
	Code      int
	Message   string
	Attempts  int
	Err       error
	text      string
}

func (e *PublishError) Error() string {
	if e.text != "" {
		return e.text
	}
	msg := fmt.Sprintf("publish: %s failed after %d attempt(s)", e.Operation, e.Attempts)
	if e.Code != 0 {
		msg += fmt.Sprintf(": platform error %d", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

// RenderError reports a failure writing the preview artifact. Re-running the
// process phase is the recovery path.
type RenderError struct {
	Reason string
	Err    error
	text   string
}

func (e *RenderError) Error() string {
	if e.text != "" {
		return e.text
	}
	return compose("render", "", e.Reason, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// InvalidTaskStateError is a protocol violation such as confirming a task
// that never reached PREVIEW_READY.
type InvalidTaskStateError struct {
	TaskID    string
	State     TaskState
	Operation string
}

func (e *InvalidTaskStateError) Error() string {
	return fmt.Sprintf("task %s: cannot %s in state %s", e.TaskID, e.Operation, e.State)
}

// TaskNotFoundError reports an unknown task identifier.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

func compose(prefix, subject, reason string, cause error) string {
	var b strings.Builder
	b.WriteString(prefix)
	if subject != "" {
		b.WriteString(": ")
		b.WriteString(subject)
	}
	if reason != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	}
	if cause != nil {
		b.WriteString(": ")
		b.WriteString(cause.Error())
	}
	return b.String()
}

// KindOf classifies err for persistence. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	var (
		metadataErr *MetadataError
		contentErr  *ContentError
		imageErr    *ImageError
		publishErr  *PublishError
		renderErr   *RenderError
		stateErr    *InvalidTaskStateError
		notFoundErr *TaskNotFoundError
	)
	switch {
	case errors.As(err, &metadataErr):
		return KindMetadata
	case errors.As(err, &contentErr):
		return KindContent
	case errors.As(err, &imageErr):
		return KindImage
	case errors.As(err, &publishErr):
		return KindPublish
	case errors.As(err, &renderErr):
		return KindRender
	case errors.As(err, &stateErr):
		return KindInvalidState
	case errors.As(err, &notFoundErr):
		return KindNotFound
	default:
		return KindInternal
	}
}

// ErrorCode returns the platform code carried by a PublishError, or zero.
func ErrorCode(err error) int {
	var publishErr *PublishError
	if errors.As(err, &publishErr) {
		return publishErr.Code
	}
	return 0
}

// InternalError is what RehydrateError returns for kinds it does not know.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return e.Message }

// RehydrateError rebuilds a typed error from its persisted parts so that the
// stored failure can be returned with the same type and text it had.
func RehydrateError(kind ErrorKind, code int, message string) error {
	if kind == "" && message == "" {
		return nil
	}
	switch kind {
	case KindMetadata:
		return &MetadataError{text: message}
	case KindContent:
		return &ContentError{text: message}
	case KindImage:
		return &ImageError{text: message}
	case KindPublish:
		return &PublishError{Code: code, text: message}
	case KindRender:
		return &RenderError{text: message}
	default:
		return &InternalError{Message: message}
	}
}

// IsTerminalInput reports whether err asks the caller to resubmit corrected input.
func IsTerminalInput(err error) bool {
	switch KindOf(err) {
	case KindMetadata, KindContent, KindImage:
		return true
	default:
		return false
	}
}
