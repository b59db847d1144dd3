package platform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-publisher/internal/platform"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

func TestMemoryScriptedFailures(t *testing.T) {
	ctx := context.Background()
	sandbox := platform.NewMemory()
	busy := &platform.Error{Operation: platform.OperationUploadCover, Code: -1, Message: "system busy"}
	sandbox.FailNext(platform.OperationUploadCover, busy)

	upload := interfaces.MediaUpload{Filename: "cover.jpg", Data: []byte("jpg")}
	if _, err := sandbox.UploadCoverMedia(ctx, upload); !errors.Is(err, busy) {
		t.Fatalf("expected scripted failure, got %v", err)
	}
	media, err := sandbox.UploadCoverMedia(ctx, upload)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if sandbox.Calls(platform.OperationUploadCover) != 2 {
		t.Fatalf("expected 2 calls, got %d", sandbox.Calls(platform.OperationUploadCover))
	}

	id, err := sandbox.CreateDraft(ctx, interfaces.DraftArticle{Title: "T", ThumbMediaID: media.MediaID})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if draft, ok := sandbox.Draft(id); !ok || draft.Title != "T" {
		t.Fatalf("expected stored draft, got %+v", draft)
	}
}

func TestMemoryForgottenMediaIsStale(t *testing.T) {
	ctx := context.Background()
	sandbox := platform.NewMemory()
	media, err := sandbox.UploadCoverMedia(ctx, interfaces.MediaUpload{Filename: "c.jpg", Data: []byte("x")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	sandbox.Forget(media.MediaID)

	_, err = sandbox.CreateDraft(ctx, interfaces.DraftArticle{Title: "T", ThumbMediaID: media.MediaID})
	if !platform.DefaultClassifier().IsStale(err) {
		t.Fatalf("expected stale media error, got %v", err)
	}
}
