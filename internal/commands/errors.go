package commands

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-publisher/internal/domain"
)

const (
	commandValidationCode   = "COMMAND_VALIDATION_FAILED"
	commandContextCanceled  = "COMMAND_CONTEXT_CANCELED"
	commandContextTimeout   = "COMMAND_CONTEXT_TIMEOUT"
	commandContextErrorCode = "COMMAND_CONTEXT_ERROR"
	commandExecuteFailed    = "COMMAND_EXECUTION_FAILED"
)

// textCodes maps task failure kinds onto the codes callers switch on.
var textCodes = map[domain.ErrorKind]string{
	domain.KindMetadata:     "ARTICLE_METADATA_INVALID",
	domain.KindContent:      "ARTICLE_CONTENT_INVALID",
	domain.KindImage:        "ARTICLE_IMAGE_INVALID",
	domain.KindPublish:      "PLATFORM_PUBLISH_FAILED",
	domain.KindRender:       "PREVIEW_RENDER_FAILED",
	domain.KindInvalidState: "TASK_STATE_INVALID",
	domain.KindNotFound:     "TASK_NOT_FOUND",
	domain.KindInternal:     "TASK_INTERNAL_ERROR",
}

func wrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "command validation failed").
		WithTextCode(commandValidationCode)
}

func wrapContextError(err error) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command execution cancelled").
			WithTextCode(commandContextCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command execution deadline exceeded").
			WithTextCode(commandContextTimeout)
	default:
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command context error").
			WithTextCode(commandContextErrorCode)
	}
}

// wrapExecuteError categorises failures returned by the orchestrator. Input
// problems the caller must fix are validation errors; the rest are command
// errors carrying the failure kind as text code.
func wrapExecuteError(err error) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	kind := domain.KindOf(err)
	code, known := textCodes[kind]
	switch {
	case domain.IsTerminalInput(err):
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).WithTextCode(code)
	case known && kind != domain.KindInternal:
		return goerrors.Wrap(err, goerrors.CategoryCommand, err.Error()).WithTextCode(code)
	default:
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command execution failed").
			WithTextCode(commandExecuteFailed)
	}
}
