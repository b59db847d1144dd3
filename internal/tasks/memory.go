package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-publisher/internal/domain"
)

// MemoryTaskRepository keeps tasks in process. Records are copied on the way
// in and out.
type MemoryTaskRepository struct {
	tasks *xsync.MapOf[uuid.UUID, *Task]
}

var _ TaskRepository = (*MemoryTaskRepository)(nil)

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: xsync.NewMapOf[uuid.UUID, *Task]()}
}

func (m *MemoryTaskRepository) Create(_ context.Context, record *Task) (*Task, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, fmt.Errorf("task repository: record id is required")
	}
	stored := cloneTask(record)
	if _, loaded := m.tasks.LoadOrStore(stored.ID, stored); loaded {
		return nil, fmt.Errorf("task repository: task %s already exists", stored.ID)
	}
	return cloneTask(stored), nil
}

func (m *MemoryTaskRepository) GetByID(_ context.Context, id uuid.UUID) (*Task, error) {
	record, ok := m.tasks.Load(id)
	if !ok {
		return nil, &domain.TaskNotFoundError{TaskID: id.String()}
	}
	return cloneTask(record), nil
}

func (m *MemoryTaskRepository) Update(_ context.Context, record *Task) (*Task, error) {
	if record == nil {
		return nil, fmt.Errorf("task repository: record is required")
	}
	var missing bool
	m.tasks.Compute(record.ID, func(existing *Task, loaded bool) (*Task, bool) {
		if !loaded {
			missing = true
			return nil, true
		}
		return cloneTask(record), false
	})
	if missing {
		return nil, &domain.TaskNotFoundError{TaskID: record.ID.String()}
	}
	return cloneTask(record), nil
}

func (m *MemoryTaskRepository) Len() int {
	return m.tasks.Size()
}
