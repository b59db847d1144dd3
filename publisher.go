package publisher

import (
	"context"

	publishingcmd "github.com/goliatone/go-publisher/internal/commands/publishing"
	"github.com/goliatone/go-publisher/internal/di"
	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/jobs"
	"github.com/goliatone/go-publisher/internal/tasks"
)

type (
	// Snapshot is the caller-facing view of a publishing task.
	Snapshot = tasks.Snapshot
	// ProcessRequest carries the markdown source and its images.
	ProcessRequest = tasks.ProcessRequest
	Image          = tasks.Image
	TaskState      = domain.TaskState
	Progress       = domain.Progress
	ErrorKind      = domain.ErrorKind
	AuditEvent     = jobs.AuditEvent
)

type (
	MetadataError         = domain.MetadataError
	ContentError          = domain.ContentError
	ImageError            = domain.ImageError
	PublishError          = domain.PublishError
	RenderError           = domain.RenderError
	InvalidTaskStateError = domain.InvalidTaskStateError
	TaskNotFoundError     = domain.TaskNotFoundError
)

type (
	ProcessArticleCommand = publishingcmd.ProcessArticleCommand
	ConfirmDraftCommand   = publishingcmd.ConfirmDraftCommand
	CommandImage          = publishingcmd.Image
)

const (
	StateCreated                  = domain.StateCreated
	StateExtracting               = domain.StateExtracting
	StateTransforming             = domain.StateTransforming
	StateUploadingPreviewAssets   = domain.StateUploadingPreviewAssets
	StatePreviewReady             = domain.StatePreviewReady
	StateConfirming               = domain.StateConfirming
	StateUploadingRemainingAssets = domain.StateUploadingRemainingAssets
	StatePublishing               = domain.StatePublishing
	StatePublished                = domain.StatePublished
	StateFailed                   = domain.StateFailed
)

const (
	ProgressWorking = domain.ProgressWorking
	ProgressReady   = domain.ProgressReady
	ProgressFailed  = domain.ProgressFailed
)

// Module is the top level publisher façade.
type Module struct {
	container *di.Container
}

// New constructs a publisher from cfg and optional DI overrides.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Process runs extraction, transformation and preview-asset upload, blocking
// until the task is PREVIEW_READY or FAILED.
func (m *Module) Process(ctx context.Context, req ProcessRequest) (Snapshot, error) {
	return m.container.Orchestrator().Process(ctx, req)
}

// Submit is the non-blocking form of Process.
func (m *Module) Submit(ctx context.Context, req ProcessRequest) (Snapshot, error) {
	return m.container.Orchestrator().Submit(ctx, req)
}

// Confirm creates the platform draft for a PREVIEW_READY task. Confirming
// a PUBLISHED task returns the same draft id.
func (m *Module) Confirm(ctx context.Context, taskID string) (Snapshot, error) {
	return m.container.Orchestrator().Confirm(ctx, taskID)
}

func (m *Module) ConfirmAsync(ctx context.Context, taskID string) (Snapshot, error) {
	return m.container.Orchestrator().ConfirmAsync(ctx, taskID)
}

func (m *Module) Status(ctx context.Context, taskID string) (Snapshot, error) {
	return m.container.Orchestrator().Status(ctx, taskID)
}

// History lists the audited state transitions of a task.
func (m *Module) History(ctx context.Context, taskID string) ([]AuditEvent, error) {
	return m.container.Orchestrator().History(ctx, taskID)
}

// ProcessArticleHandler returns a go-command handler bound to this module.
func (m *Module) ProcessArticleHandler() *publishingcmd.ProcessArticleHandler {
	return publishingcmd.NewProcessArticleHandler(m.container.Orchestrator(), commandLogger(m))
}

// ConfirmDraftHandler returns a go-command handler bound to this module.
func (m *Module) ConfirmDraftHandler() *publishingcmd.ConfirmDraftHandler {
	return publishingcmd.NewConfirmDraftHandler(m.container.Orchestrator(), commandLogger(m))
}

// SubscribeCommands registers both handlers on the go-command dispatcher and
// returns the function removing them.
func (m *Module) SubscribeCommands() func() {
	return publishingcmd.Register(m.container.Orchestrator(), commandLogger(m))
}

// Close drains running tasks and releases resources opened by New.
func (m *Module) Close() error {
	return m.container.Close()
}
