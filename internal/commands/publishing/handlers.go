package publishingcmd

import (
	"context"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"

	"github.com/goliatone/go-publisher/internal/commands"
	"github.com/goliatone/go-publisher/internal/tasks"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	processOperation = "publishing.process"
	confirmOperation = "publishing.confirm"
)

// Service is the orchestrator surface the handlers drive.
type Service interface {
	Process(ctx context.Context, req tasks.ProcessRequest) (tasks.Snapshot, error)
	Submit(ctx context.Context, req tasks.ProcessRequest) (tasks.Snapshot, error)
	Confirm(ctx context.Context, id string) (tasks.Snapshot, error)
	ConfirmAsync(ctx context.Context, id string) (tasks.Snapshot, error)
}

var (
	_ command.Commander[ProcessArticleCommand] = (*ProcessArticleHandler)(nil)
	_ command.Commander[ConfirmDraftCommand]   = (*ConfirmDraftHandler)(nil)
)

type ProcessArticleHandler struct {
	inner *commands.Handler[ProcessArticleCommand]
}

func NewProcessArticleHandler(service Service, logger interfaces.Logger, opts ...commands.HandlerOption[ProcessArticleCommand]) *ProcessArticleHandler {
	logger = commands.EnsureLogger(logger)

	exec := func(ctx context.Context, msg ProcessArticleCommand) error {
		run := service.Process
		if msg.Async {
			run = service.Submit
		}
		snap, err := run(ctx, msg.request())
		reply(msg.Reply, snap)
		return err
	}

	handlerOpts := []commands.HandlerOption[ProcessArticleCommand]{
		commands.WithLogger[ProcessArticleCommand](logger),
		commands.WithOperation[ProcessArticleCommand](processOperation),
		commands.WithMessageFields(func(msg ProcessArticleCommand) map[string]any {
			fields := map[string]any{"content_images": len(msg.ContentImages)}
			if msg.Cover != nil {
				fields["cover"] = msg.Cover.Name
			}
			if msg.Async {
				fields["async"] = true
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[ProcessArticleCommand](logger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &ProcessArticleHandler{inner: commands.NewHandler(exec, handlerOpts...)}
}

// Execute satisfies command.Commander[ProcessArticleCommand].
func (h *ProcessArticleHandler) Execute(ctx context.Context, msg ProcessArticleCommand) error {
	return h.inner.Execute(ctx, msg)
}

type ConfirmDraftHandler struct {
	inner *commands.Handler[ConfirmDraftCommand]
}

func NewConfirmDraftHandler(service Service, logger interfaces.Logger, opts ...commands.HandlerOption[ConfirmDraftCommand]) *ConfirmDraftHandler {
	logger = commands.EnsureLogger(logger)

	exec := func(ctx context.Context, msg ConfirmDraftCommand) error {
		run := service.Confirm
		if msg.Async {
			run = service.ConfirmAsync
		}
		snap, err := run(ctx, msg.TaskID)
		reply(msg.Reply, snap)
		return err
	}

	handlerOpts := []commands.HandlerOption[ConfirmDraftCommand]{
		commands.WithLogger[ConfirmDraftCommand](logger),
		commands.WithOperation[ConfirmDraftCommand](confirmOperation),
		commands.WithMessageFields(func(msg ConfirmDraftCommand) map[string]any {
			return map[string]any{"task_id": msg.TaskID, "async": msg.Async}
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[ConfirmDraftCommand](logger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &ConfirmDraftHandler{inner: commands.NewHandler(exec, handlerOpts...)}
}

// Execute satisfies command.Commander[ConfirmDraftCommand].
func (h *ConfirmDraftHandler) Execute(ctx context.Context, msg ConfirmDraftCommand) error {
	return h.inner.Execute(ctx, msg)
}

// Register subscribes both handlers on the go-command dispatcher. The
// returned function removes the subscriptions.
func Register(service Service, logger interfaces.Logger) func() {
	process := dispatcher.SubscribeCommand[ProcessArticleCommand](NewProcessArticleHandler(service, logger))
	confirm := dispatcher.SubscribeCommand[ConfirmDraftCommand](NewConfirmDraftHandler(service, logger))
	return func() {
		process.Unsubscribe()
		confirm.Unsubscribe()
	}
}

func reply(fn func(tasks.Snapshot), snap tasks.Snapshot) {
	if fn != nil && snap.ID != "" {
		fn(snap)
	}
}
