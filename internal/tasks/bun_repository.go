package tasks

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-publisher/internal/domain"
)

func NewTaskRecordRepository(db *bun.DB) repository.Repository[*Task] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			t.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(t *Task) string {
			return t.ID.String()
		},
	})
}

// BunTaskRepository stores tasks through go-repository-bun.
type BunTaskRepository struct {
	repo repository.Repository[*Task]
}

var _ TaskRepository = (*BunTaskRepository)(nil)

func NewBunTaskRepository(db *bun.DB) *BunTaskRepository {
	return NewBunTaskRepositoryWithCache(db, nil, nil)
}

// NewBunTaskRepositoryWithCache constructs a TaskRepository backed by bun with optional read caching.
func NewBunTaskRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunTaskRepository {
	base := NewTaskRecordRepository(db)
	if cacheService != nil && keySerializer != nil {
		base = repositorycache.New(base, cacheService, keySerializer)
	}
	return &BunTaskRepository{repo: base}
}

func (r *BunTaskRepository) Create(ctx context.Context, record *Task) (*Task, error) {
	created, err := r.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("task repository error: %w", err)
	}
	return created, nil
}

func (r *BunTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, id.String())
	}
	return record, nil
}

func (r *BunTaskRepository) Update(ctx context.Context, record *Task) (*Task, error) {
	updated, err := r.repo.Update(ctx, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns(
			"state",
			"metadata",
			"transformed_body",
			"image_fingerprints",
			"cover_name",
			"cover_fingerprint",
			"preview_url",
			"remote_draft_id",
			"error_kind",
			"error_code",
			"error_message",
			"updated_at",
		),
	)
	if err != nil {
		return nil, mapRepositoryError(err, record.ID.String())
	}
	return updated, nil
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &domain.TaskNotFoundError{TaskID: key}
	}
	return fmt.Errorf("task repository error: %w", err)
}
