package jobs

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-publisher/internal/domain"
)

// AuditEvent records one task state transition. ErrorKind is set when the
// transition lands in FAILED.
type AuditEvent struct {
	TaskID     string
	From       domain.TaskState
	To         domain.TaskState
	ErrorKind  domain.ErrorKind
	OccurredAt time.Time
}

// Action names the transition by its target state, e.g. "state.published".
func (e AuditEvent) Action() string {
	return "state." + strings.ToLower(string(e.To))
}

// AuditRecorder stores transitions. List with an empty taskID returns every
// event in recording order.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, taskID string) ([]AuditEvent, error)
}

type InMemoryAuditRecorder struct {
	mu     sync.Mutex
	events []AuditEvent
	err    error
}

func NewInMemoryAuditRecorder() *InMemoryAuditRecorder {
	return &InMemoryAuditRecorder{}
}

func (r *InMemoryAuditRecorder) Record(_ context.Context, event AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *InMemoryAuditRecorder) List(_ context.Context, taskID string) ([]AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if taskID == "" {
		return slices.Clone(r.events), nil
	}
	var out []AuditEvent
	for _, event := range r.events {
		if event.TaskID == taskID {
			out = append(out, event)
		}
	}
	return out, nil
}

// EventsFor is List without the context and error, for tests.
func (r *InMemoryAuditRecorder) EventsFor(taskID string) []AuditEvent {
	events, _ := r.List(context.Background(), taskID)
	return events
}

// Fail makes subsequent Record calls return err.
func (r *InMemoryAuditRecorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}
