package publisher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	publisher "github.com/goliatone/go-publisher"
	"github.com/goliatone/go-publisher/internal/di"
	"github.com/goliatone/go-publisher/pkg/testsupport"
)

const article = "---\ntitle: Launch notes\nauthor: Ops\ncover_image_path: cover.png\ndigest: What shipped this week\n---\n# Shipped\n\nDetails ![chart](./img/chart.png)"

func newModule(t *testing.T) *publisher.Module {
	t.Helper()
	module, err := publisher.New(publisher.DefaultConfig(), di.WithFilesystem(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	t.Cleanup(func() { _ = module.Close() })
	return module
}

func TestModuleProcessAndConfirm(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	snap, err := module.Process(ctx, publisher.ProcessRequest{
		Markdown:      []byte(article),
		Cover:         &publisher.Image{Name: "cover.png", Data: testsupport.PNG(t, 600, 300, 1)},
		ContentImages: []publisher.Image{{Name: "img/chart.png", Data: testsupport.PNG(t, 64, 48, 2)}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if snap.State != publisher.StatePreviewReady || snap.Metadata.Digest != "What shipped this week" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	published, err := module.Confirm(ctx, snap.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	status, err := module.Status(ctx, snap.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != publisher.StatePublished || status.RemoteDraftID != published.RemoteDraftID {
		t.Fatalf("unexpected status %+v", status)
	}

	history, err := module.History(ctx, snap.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) < 2 || history[0].To != publisher.StateCreated || history[len(history)-1].To != publisher.StatePublished {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestModuleConfirmUnknownTask(t *testing.T) {
	module := newModule(t)
	_, err := module.Confirm(context.Background(), "6f1f7f9e-9d3c-4a53-9e1a-1d2d7d4b0c11")
	var notFound *publisher.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TaskNotFoundError, got %v", err)
	}
}

func TestModuleCommandHandlers(t *testing.T) {
	module := newModule(t)
	ctx := context.Background()

	var processed publisher.Snapshot
	err := module.ProcessArticleHandler().Execute(ctx, publisher.ProcessArticleCommand{
		Markdown:      article,
		Cover:         &publisher.CommandImage{Name: "cover.png", Data: testsupport.PNG(t, 600, 300, 1)},
		ContentImages: []publisher.CommandImage{{Name: "img/chart.png", Data: testsupport.PNG(t, 64, 48, 2)}},
		Reply:         func(s publisher.Snapshot) { processed = s },
	})
	if err != nil {
		t.Fatalf("process command: %v", err)
	}

	var confirmed publisher.Snapshot
	err = module.ConfirmDraftHandler().Execute(ctx, publisher.ConfirmDraftCommand{
		TaskID: processed.ID,
		Reply:  func(s publisher.Snapshot) { confirmed = s },
	})
	if err != nil {
		t.Fatalf("confirm command: %v", err)
	}
	if confirmed.State != publisher.StatePublished {
		t.Fatalf("expected PUBLISHED, got %s", confirmed.State)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	cfg, err := publisher.LoadConfig(publisher.LoadOptions{
		Environ: func() []string {
			return []string{
				"PUBLISHER_RETRY_MAX_ATTEMPTS=5",
				"PUBLISHER_PLATFORM_STALE_CODES=40007,40009",
			}
		},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("expected max attempts 5, got %d", cfg.Retry.MaxAttempts)
	}
	if len(cfg.Platform.StaleCodes) != 2 || cfg.Platform.StaleCodes[1] != 40009 {
		t.Fatalf("unexpected stale codes %v", cfg.Platform.StaleCodes)
	}

	_, err = publisher.LoadConfig(publisher.LoadOptions{
		Environ:   func() []string { return nil },
		Overrides: map[string]any{"platform.provider": "wechat"},
	})
	if !errors.Is(err, publisher.ErrPlatformCredentials) {
		t.Fatalf("expected credentials error, got %v", err)
	}
}
