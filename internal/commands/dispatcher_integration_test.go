package commands

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-publisher/internal/domain"
)

type draftCommand struct {
	TaskID string
}

func (draftCommand) Type() string { return "publisher.test.draft" }

func (draftCommand) Validate() error { return nil }

type articleCommand struct {
	Markdown string
}

func (articleCommand) Type() string { return "publisher.test.article" }

func (articleCommand) Validate() error { return nil }

func TestDispatchRetriesRejectedDraftUntilAccepted(t *testing.T) {
	var attempts int
	handler := NewHandler(func(ctx context.Context, msg draftCommand) error {
		attempts++
		if attempts == 1 {
			return &domain.PublishError{Operation: "create_draft", Code: 45009, Attempts: 3}
		}
		return nil
	}, WithTimeout[draftCommand](time.Second))

	sub := dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(1))
	t.Cleanup(sub.Unsubscribe)

	if err := dispatcher.Dispatch(context.Background(), draftCommand{TaskID: "t-1"}); err != nil {
		t.Fatalf("dispatch: expected success on second attempt, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestDispatchSurfacesPublishFailureAfterRetries(t *testing.T) {
	var attempts int
	handler := NewHandler(func(ctx context.Context, msg articleCommand) error {
		attempts++
		return &domain.PublishError{Operation: "create_draft", Code: 45002, Attempts: 1}
	}, WithTimeout[articleCommand](time.Second))

	sub := dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(2))
	t.Cleanup(sub.Unsubscribe)

	if err := dispatcher.Dispatch(context.Background(), articleCommand{Markdown: "---\n---"}); err == nil {
		t.Fatal("expected dispatch to fail once retries are exhausted")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}
