package tasks

import (
	"context"

	"github.com/google/uuid"
)

// TaskRepository persists tasks. Missing records are *domain.TaskNotFoundError.
type TaskRepository interface {
	Create(ctx context.Context, record *Task) (*Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	Update(ctx context.Context, record *Task) (*Task, error)
}
