package di_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/afero"

	"github.com/goliatone/go-publisher/internal/di"
	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/jobs"
	"github.com/goliatone/go-publisher/internal/platform"
	"github.com/goliatone/go-publisher/internal/runtimeconfig"
	"github.com/goliatone/go-publisher/internal/tasks"
	"github.com/goliatone/go-publisher/pkg/testsupport"
)

func scenarioRequest(t *testing.T) tasks.ProcessRequest {
	t.Helper()
	return tasks.ProcessRequest{
		Markdown:      []byte("---\ntitle: T\nauthor: A\ncover_image_path: cover.jpg\n---\nHello ![x](a.png)"),
		Cover:         &tasks.Image{Name: "cover.jpg", Data: testsupport.PNG(t, 470, 200, 11)},
		ContentImages: []tasks.Image{{Name: "a.png", Data: testsupport.PNG(t, 40, 40, 5)}},
	}
}

func newContainer(t *testing.T, cfg runtimeconfig.Config, opts ...di.Option) *di.Container {
	t.Helper()
	opts = append([]di.Option{di.WithFilesystem(afero.NewMemMapFs())}, opts...)
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })
	return container
}

func publish(t *testing.T, orch *tasks.Orchestrator) tasks.Snapshot {
	t.Helper()
	ctx := context.Background()
	snap, err := orch.Process(ctx, scenarioRequest(t))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	published, err := orch.Confirm(ctx, snap.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if published.State != domain.StatePublished || published.RemoteDraftID == "" {
		t.Fatalf("expected PUBLISHED, got %+v", published)
	}
	return published
}

func TestContainerDefaultsToSandbox(t *testing.T) {
	audit := jobs.NewInMemoryAuditRecorder()
	container := newContainer(t, runtimeconfig.DefaultConfig(), di.WithAuditRecorder(audit))

	sandbox, ok := container.Platform().(*platform.Memory)
	if !ok {
		t.Fatalf("expected sandbox platform, got %T", container.Platform())
	}
	if _, ok := container.TaskRepository().(*tasks.MemoryTaskRepository); !ok {
		t.Fatalf("expected memory task repository, got %T", container.TaskRepository())
	}

	published := publish(t, container.Orchestrator())
	if _, ok := sandbox.Draft(published.RemoteDraftID); !ok {
		t.Fatalf("draft %s missing from sandbox", published.RemoteDraftID)
	}
	if len(audit.EventsFor(published.ID)) == 0 {
		t.Fatal("expected audit events for the task")
	}
}

func TestContainerBunStorageAndCache(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Storage.Provider = "bun"
	cfg.Storage.Dialect = "sqlite"
	cfg.Storage.DSN = "file::memory:"
	cfg.Cache.Provider = "bun"

	db := testsupport.NewBunDB(t)
	container := newContainer(t, cfg, di.WithBunDB(db))

	if _, ok := container.TaskRepository().(*tasks.BunTaskRepository); !ok {
		t.Fatalf("expected bun task repository, got %T", container.TaskRepository())
	}

	published := publish(t, container.Orchestrator())

	var state string
	if err := db.NewSelect().Table("publish_tasks").Column("state").Where("id = ?", published.ID).Scan(context.Background(), &state); err != nil {
		t.Fatalf("select task: %v", err)
	}
	if state != string(domain.StatePublished) {
		t.Fatalf("expected persisted PUBLISHED, got %q", state)
	}
	count, err := db.NewSelect().Table("media_cache_entries").Count(context.Background())
	if err != nil {
		t.Fatalf("count cache entries: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected cover and content entries, got %d", count)
	}

	history, err := container.Orchestrator().History(context.Background(), published.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) == 0 || history[len(history)-1].To != domain.StatePublished {
		t.Fatalf("expected persisted history ending in PUBLISHED, got %+v", history)
	}
}

func TestContainerRedisCache(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := runtimeconfig.DefaultConfig()
	cfg.Cache.Provider = "redis"
	cfg.Cache.RedisAddr = server.Addr()

	container := newContainer(t, cfg)
	publish(t, container.Orchestrator())

	var covers int
	for _, key := range server.Keys() {
		if strings.HasPrefix(key, cfg.Cache.RedisPrefix+"cover:") {
			covers++
		}
	}
	if covers != 1 {
		t.Fatalf("expected one cached cover in redis, got keys %v", server.Keys())
	}
}

func TestContainerWeChatProvider(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Platform.Provider = "wechat"

	if _, err := di.NewContainer(cfg); !errors.Is(err, runtimeconfig.ErrPlatformCredentials) {
		t.Fatalf("expected credentials error, got %v", err)
	}

	cfg.Platform.AppID = "app"
	cfg.Platform.AppSecret = "secret"
	container := newContainer(t, cfg)
	if _, ok := container.Platform().(*platform.WeChatClient); !ok {
		t.Fatalf("expected wechat client, got %T", container.Platform())
	}
}

func TestContainerHonoursOverrides(t *testing.T) {
	sandbox := platform.NewMemory()
	repo := tasks.NewMemoryTaskRepository()
	container := newContainer(t, runtimeconfig.DefaultConfig(),
		di.WithPlatform(sandbox),
		di.WithTaskRepository(repo),
	)

	publish(t, container.Orchestrator())
	if sandbox.DraftCount() != 1 || repo.Len() != 1 {
		t.Fatalf("expected overrides to be used, drafts=%d tasks=%d", sandbox.DraftCount(), repo.Len())
	}
}
