package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/metadata"
	"github.com/goliatone/go-publisher/internal/tasks"
	"github.com/goliatone/go-publisher/pkg/testsupport"
)

func TestTaskRepositories(t *testing.T) {
	cases := []struct {
		name string
		repo func(t *testing.T) tasks.TaskRepository
	}{
		{name: "memory", repo: func(*testing.T) tasks.TaskRepository { return tasks.NewMemoryTaskRepository() }},
		{name: "bun", repo: func(t *testing.T) tasks.TaskRepository {
			return tasks.NewBunTaskRepository(testsupport.NewBunDB(t, (*tasks.Task)(nil)))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := tc.repo(t)
			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			task := &tasks.Task{
				ID:                uuid.New(),
				State:             domain.StateCreated,
				ImageFingerprints: map[string]string{},
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if _, err := repo.Create(ctx, task); err != nil {
				t.Fatalf("create: %v", err)
			}

			task.State = domain.StatePreviewReady
			task.Metadata = metadata.Metadata{Title: "T", Author: "A", CoverImagePath: "cover.jpg"}
			task.TransformedBody = `<p>Hello <img src="{{media:a.png}}"/></p>`
			task.ImageFingerprints = map[string]string{"a.png": "abc123"}
			task.PreviewURL = "http://localhost:8080/previews/x.html"
			task.UpdatedAt = now.Add(time.Minute)
			if _, err := repo.Update(ctx, task); err != nil {
				t.Fatalf("update: %v", err)
			}

			task.ImageFingerprints["b.png"] = "mutated"

			got, err := repo.GetByID(ctx, task.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.State != domain.StatePreviewReady || got.Metadata.Title != "T" || got.PreviewURL == "" {
				t.Fatalf("unexpected task %+v", got)
			}
			if len(got.ImageFingerprints) != 1 || got.ImageFingerprints["a.png"] != "abc123" {
				t.Fatalf("unexpected fingerprints %v", got.ImageFingerprints)
			}
			if got.TransformedBody != task.TransformedBody {
				t.Fatalf("body changed: %q", got.TransformedBody)
			}

			_, err = repo.GetByID(ctx, uuid.New())
			var notFound *domain.TaskNotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("expected TaskNotFoundError, got %v", err)
			}
		})
	}
}

func TestStoredFailureRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := tasks.NewBunTaskRepository(testsupport.NewBunDB(t, (*tasks.Task)(nil)))

	task := &tasks.Task{ID: uuid.New(), State: domain.StatePublishing, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if _, err := repo.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	cause := &domain.PublishError{Operation: "create_draft", Code: 45002, Message: "content size out of limit", Attempts: 1}
	task.State = domain.StateFailed
	task.ErrorKind = domain.KindOf(cause)
	task.ErrorCode = domain.ErrorCode(cause)
	task.ErrorMessage = cause.Error()
	if _, err := repo.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var publishErr *domain.PublishError
	if !errors.As(got.Err(), &publishErr) || publishErr.Code != 45002 {
		t.Fatalf("expected stored PublishError, got %v", got.Err())
	}
	if got.Err().Error() != cause.Error() {
		t.Fatalf("stored message changed: %q", got.Err().Error())
	}
}

func TestCanTransition(t *testing.T) {
	path := []domain.TaskState{
		domain.StateCreated,
		domain.StateExtracting,
		domain.StateTransforming,
		domain.StateUploadingPreviewAssets,
		domain.StatePreviewReady,
		domain.StateConfirming,
		domain.StateUploadingRemainingAssets,
		domain.StatePublishing,
		domain.StatePublished,
	}
	for i := 0; i+1 < len(path); i++ {
		if !tasks.CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s", path[i], path[i+1])
		}
		if !tasks.CanTransition(path[i], domain.StateFailed) {
			t.Fatalf("expected %s -> FAILED", path[i])
		}
	}
	for _, bad := range [][2]domain.TaskState{
		{domain.StateCreated, domain.StatePreviewReady},
		{domain.StatePreviewReady, domain.StatePublished},
		{domain.StatePublished, domain.StateFailed},
		{domain.StateFailed, domain.StateCreated},
		{domain.StatePublished, domain.StateConfirming},
	} {
		if tasks.CanTransition(bad[0], bad[1]) {
			t.Fatalf("unexpected transition %s -> %s", bad[0], bad[1])
		}
	}
}
