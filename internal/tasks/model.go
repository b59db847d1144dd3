package tasks

import (
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/metadata"
)

// Task tracks one article from submission to a platform draft.
type Task struct {
	bun.BaseModel `bun:"table:publish_tasks,alias:pt"`

	ID                uuid.UUID         `bun:",pk,type:uuid" json:"id"`
	State             domain.TaskState  `bun:"state,notnull" json:"state"`
	Metadata          metadata.Metadata `bun:"metadata,type:jsonb" json:"metadata"`
	TransformedBody   string            `bun:"transformed_body" json:"transformed_body,omitempty"`
	ImageFingerprints map[string]string `bun:"image_fingerprints,type:jsonb" json:"image_fingerprints,omitempty"`
	CoverName         string            `bun:"cover_name" json:"cover_name,omitempty"`
	CoverFingerprint  string            `bun:"cover_fingerprint" json:"cover_fingerprint,omitempty"`
	PreviewURL        string            `bun:"preview_url" json:"preview_url,omitempty"`
	RemoteDraftID     string            `bun:"remote_draft_id" json:"remote_draft_id,omitempty"`
	ErrorKind         domain.ErrorKind  `bun:"error_kind" json:"error_kind,omitempty"`
	ErrorCode         int               `bun:"error_code" json:"error_code,omitempty"`
	ErrorMessage      string            `bun:"error_message" json:"error_message,omitempty"`
	CreatedAt         time.Time         `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt         time.Time         `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Err rebuilds the failure stored on the task, nil unless it failed.
func (t *Task) Err() error {
	if t == nil || t.State != domain.StateFailed {
		return nil
	}
	return domain.RehydrateError(t.ErrorKind, t.ErrorCode, t.ErrorMessage)
}

func (t *Task) setError(err error) {
	t.ErrorKind = domain.KindOf(err)
	t.ErrorCode = domain.ErrorCode(err)
	t.ErrorMessage = err.Error()
}

func cloneTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	cloned := *t
	cloned.ImageFingerprints = maps.Clone(t.ImageFingerprints)
	return &cloned
}

// Snapshot is the caller-facing view of a task.
type Snapshot struct {
	ID            string            `json:"id"`
	State         domain.TaskState  `json:"state"`
	Progress      domain.Progress   `json:"progress"`
	Metadata      metadata.Metadata `json:"metadata"`
	PreviewURL    string            `json:"preview_url,omitempty"`
	RemoteDraftID string            `json:"remote_draft_id,omitempty"`
	ErrorKind     domain.ErrorKind  `json:"error_kind,omitempty"`
	ErrorCode     int               `json:"error_code,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func snapshotOf(t *Task) Snapshot {
	if t == nil {
		return Snapshot{}
	}
	return Snapshot{
		ID:            t.ID.String(),
		State:         t.State,
		Progress:      t.State.Progress(),
		Metadata:      t.Metadata,
		PreviewURL:    t.PreviewURL,
		RemoteDraftID: t.RemoteDraftID,
		ErrorKind:     t.ErrorKind,
		ErrorCode:     t.ErrorCode,
		Error:         t.ErrorMessage,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// Image is a named image buffer supplied with a process request.
type Image struct {
	Name string
	Data []byte
}

// ProcessRequest carries the inputs of the process phase. Cover is optional
// when cover_image_path names one of the content images.
type ProcessRequest struct {
	Markdown      []byte
	Cover         *Image
	ContentImages []Image
}
