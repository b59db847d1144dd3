package tasks

import "github.com/goliatone/go-publisher/internal/domain"

var transitions = map[domain.TaskState]domain.TaskState{
	domain.StateCreated:                  domain.StateExtracting,
	domain.StateExtracting:               domain.StateTransforming,
	domain.StateTransforming:             domain.StateUploadingPreviewAssets,
	domain.StateUploadingPreviewAssets:   domain.StatePreviewReady,
	domain.StatePreviewReady:             domain.StateConfirming,
	domain.StateConfirming:               domain.StateUploadingRemainingAssets,
	domain.StateUploadingRemainingAssets: domain.StatePublishing,
	domain.StatePublishing:               domain.StatePublished,
}

// CanTransition reports whether from may move to to. Every state before
// PUBLISHED may fail.
func CanTransition(from, to domain.TaskState) bool {
	if to == domain.StateFailed {
		return !from.IsTerminal()
	}
	next, ok := transitions[from]
	return ok && next == to
}

func (t *Task) advance(to domain.TaskState) error {
	if !CanTransition(t.State, to) {
		return &domain.InvalidTaskStateError{
			TaskID:    t.ID.String(),
			State:     t.State,
			Operation: "transition to " + to.String(),
		}
	}
	t.State = to
	return nil
}
