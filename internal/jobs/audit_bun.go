package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-publisher/internal/domain"
)

// AuditRecord is the persisted form of an AuditEvent. Seq keeps insertion
// order when two transitions share a timestamp.
type AuditRecord struct {
	bun.BaseModel `bun:"table:task_transitions,alias:tt"`

	Seq        int64     `bun:"seq,pk,autoincrement"`
	TaskID     string    `bun:"task_id,notnull"`
	FromState  string    `bun:"from_state,notnull"`
	ToState    string    `bun:"to_state,notnull"`
	ErrorKind  string    `bun:"error_kind"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
}

// BunAuditRecorder keeps transitions in the task database.
type BunAuditRecorder struct {
	db bun.IDB
}

var _ AuditRecorder = (*BunAuditRecorder)(nil)

func NewBunAuditRecorder(db bun.IDB) *BunAuditRecorder {
	return &BunAuditRecorder{db: db}
}

func (r *BunAuditRecorder) Record(ctx context.Context, event AuditEvent) error {
	record := &AuditRecord{
		TaskID:     event.TaskID,
		FromState:  string(event.From),
		ToState:    string(event.To),
		ErrorKind:  string(event.ErrorKind),
		OccurredAt: event.OccurredAt.UTC(),
	}
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("audit: record %s: %w", event.TaskID, err)
	}
	return nil
}

func (r *BunAuditRecorder) List(ctx context.Context, taskID string) ([]AuditEvent, error) {
	var records []AuditRecord
	query := r.db.NewSelect().Model(&records).Order("seq ASC")
	if taskID != "" {
		query = query.Where("task_id = ?", taskID)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("audit: list %s: %w", taskID, err)
	}
	events := make([]AuditEvent, 0, len(records))
	for _, record := range records {
		events = append(events, AuditEvent{
			TaskID:     record.TaskID,
			From:       domain.TaskState(record.FromState),
			To:         domain.TaskState(record.ToState),
			ErrorKind:  domain.ErrorKind(record.ErrorKind),
			OccurredAt: record.OccurredAt,
		})
	}
	return events, nil
}
