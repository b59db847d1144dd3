package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-publisher/internal/domain"
)

func TestKindOfFollowsWrappedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want domain.ErrorKind
	}{
		{&domain.MetadataError{Field: "title", Reason: "required"}, domain.KindMetadata},
		{fmt.Errorf("wrapped: %w", &domain.ContentError{Reference: "a.png"}), domain.KindContent},
		{&domain.ImageError{Filename: "c.jpg"}, domain.KindImage},
		{&domain.PublishError{Operation: "create_draft", Code: 45009}, domain.KindPublish},
		{&domain.RenderError{Reason: "disk full"}, domain.KindRender},
		{&domain.InvalidTaskStateError{TaskID: "t", State: domain.StateCreated, Operation: "confirm"}, domain.KindInvalidState},
		{&domain.TaskNotFoundError{TaskID: "t"}, domain.KindNotFound},
		{errors.New("boom"), domain.KindInternal},
	}
	for _, tc := range cases {
		if got := domain.KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRehydrateErrorPreservesTypeAndText(t *testing.T) {
	original := &domain.PublishError{Operation: "create_draft", Code: 40007, Message: "invalid media_id", Attempts: 3}

	restored := domain.RehydrateError(domain.KindOf(original), domain.ErrorCode(original), original.Error())

	var publishErr *domain.PublishError
	if !errors.As(restored, &publishErr) {
		t.Fatalf("expected *PublishError, got %T", restored)
	}
	if publishErr.Code != 40007 {
		t.Fatalf("expected code 40007, got %d", publishErr.Code)
	}
	if restored.Error() != original.Error() {
		t.Fatalf("expected text %q, got %q", original.Error(), restored.Error())
	}
}

func TestRehydrateErrorMetadata(t *testing.T) {
	original := &domain.MetadataError{Field: "title", Reason: "cannot be blank"}
	restored := domain.RehydrateError(domain.KindMetadata, 0, original.Error())

	var metadataErr *domain.MetadataError
	if !errors.As(restored, &metadataErr) {
		t.Fatalf("expected *MetadataError, got %T", restored)
	}
	if restored.Error() != "metadata: title: cannot be blank" {
		t.Fatalf("unexpected text %q", restored.Error())
	}
}

func TestRehydrateErrorEmpty(t *testing.T) {
	if err := domain.RehydrateError("", 0, ""); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestPublishErrorMessage(t *testing.T) {
	err := &domain.PublishError{Operation: "upload_cover", Code: 45009, Message: "api freq out of limit", Attempts: 3}
	want := "publish: upload_cover failed after 3 attempt(s): platform error 45009: api freq out of limit"
	if err.Error() != want {
		t.Fatalf("want %q, got %q", want, err.Error())
	}
}
