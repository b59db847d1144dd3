package domain

import "strings"

// TaskState enumerates the lifecycle of a publishing task.
type TaskState string

const (
	StateCreated                  TaskState = "CREATED"
	StateExtracting               TaskState = "EXTRACTING"
	StateTransforming             TaskState = "TRANSFORMING"
	StateUploadingPreviewAssets   TaskState = "UPLOADING_PREVIEW_ASSETS"
	StatePreviewReady             TaskState = "PREVIEW_READY"
	StateConfirming               TaskState = "CONFIRMING"
	StateUploadingRemainingAssets TaskState = "UPLOADING_REMAINING_ASSETS"
	StatePublishing               TaskState = "PUBLISHING"
	StatePublished                TaskState = "PUBLISHED"
	StateFailed                   TaskState = "FAILED"
)

// Progress groups task states into the three answers a caller polling a task
// can receive.
type Progress string

const (
	ProgressWorking Progress = "working"
	ProgressReady   Progress = "ready"
	ProgressFailed  Progress = "failed"
)

// NormalizeTaskState coerces persisted state strings into a known state. Unknown
// values map to StateCreated so they can never be confirmed.
func NormalizeTaskState(input string) TaskState {
	state := TaskState(strings.ToUpper(strings.TrimSpace(input)))
	switch state {
	case StateCreated,
		StateExtracting,
		StateTransforming,
		StateUploadingPreviewAssets,
		StatePreviewReady,
		StateConfirming,
		StateUploadingRemainingAssets,
		StatePublishing,
		StatePublished,
		StateFailed:
		return state
	default:
		return StateCreated
	}
}

// IsTerminal reports whether no further transition can leave the state.
func (s TaskState) IsTerminal() bool {
	return s == StatePublished || s == StateFailed
}

// InProcessPhase reports whether the state belongs to the running process phase.
func (s TaskState) InProcessPhase() bool {
	switch s {
	case StateCreated, StateExtracting, StateTransforming, StateUploadingPreviewAssets:
		return true
	default:
		return false
	}
}

// InConfirmPhase reports whether the state belongs to the running confirm phase.
func (s TaskState) InConfirmPhase() bool {
	switch s {
	case StateConfirming, StateUploadingRemainingAssets, StatePublishing:
		return true
	default:
		return false
	}
}

// Progress maps the state to the caller-facing progress answer. PREVIEW_READY
// and PUBLISHED are both "ready" for the phase that produced them.
func (s TaskState) Progress() Progress {
	switch s {
	case StatePreviewReady, StatePublished:
		return ProgressReady
	case StateFailed:
		return ProgressFailed
	default:
		return ProgressWorking
	}
}

func (s TaskState) String() string {
	return string(s)
}
