package tasks

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-publisher/internal/content"
	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/identity"
	"github.com/goliatone/go-publisher/internal/imaging"
	"github.com/goliatone/go-publisher/internal/jobs"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/internal/metadata"
	"github.com/goliatone/go-publisher/internal/preview"
	"github.com/goliatone/go-publisher/internal/retry"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	operationCreateDraft = "create_draft"

	phaseProcess = "process"
	phaseConfirm = "confirm"
)

var ErrMissingDependency = errors.New("tasks: missing dependency")

// Dependencies are the collaborators of an Orchestrator. Repository,
// Platform, Cache, Renderer and Blobs are required; the rest have defaults.
type Dependencies struct {
	Repository  TaskRepository
	Platform    interfaces.PlatformClient
	Cache       interfaces.MediaCache
	Renderer    *preview.Renderer
	Blobs       interfaces.BlobStore
	Extractor   *metadata.Extractor
	Transformer *content.Transformer
	Images      *imaging.Processor
	Policy      *retry.Policy
	Pool        *jobs.Pool
	Audit       jobs.AuditRecorder
	Logger      interfaces.Logger
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDigestLimit bounds digests derived from the article body.
func WithDigestLimit(limit int) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.digestLimit = limit
		}
	}
}

// WithUploadConcurrency bounds parallel uploads within one task.
func WithUploadConcurrency(limit int) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.uploadLimit = limit
		}
	}
}

// Orchestrator drives tasks through the process and confirm phases. Phases
// run on the worker pool; each task has a single writer at a time.
type Orchestrator struct {
	repo        TaskRepository
	platform    interfaces.PlatformClient
	extractor   *metadata.Extractor
	transformer *content.Transformer
	images      *imaging.Processor
	renderer    *preview.Renderer
	policy      *retry.Policy
	pool        *jobs.Pool
	ownsPool    bool
	audit       jobs.AuditRecorder
	media       *mediaResolver
	logger      interfaces.Logger

	locks       *xsync.MapOf[uuid.UUID, *sync.Mutex]
	now         func() time.Time
	digestLimit int
	uploadLimit int
}

func NewOrchestrator(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Repository == nil:
		return nil, fmt.Errorf("%w: task repository", ErrMissingDependency)
	case deps.Platform == nil:
		return nil, fmt.Errorf("%w: platform client", ErrMissingDependency)
	case deps.Cache == nil:
		return nil, fmt.Errorf("%w: media cache", ErrMissingDependency)
	case deps.Renderer == nil:
		return nil, fmt.Errorf("%w: preview renderer", ErrMissingDependency)
	case deps.Blobs == nil:
		return nil, fmt.Errorf("%w: blob store", ErrMissingDependency)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	o := &Orchestrator{
		repo:        deps.Repository,
		platform:    deps.Platform,
		extractor:   deps.Extractor,
		transformer: deps.Transformer,
		images:      deps.Images,
		renderer:    deps.Renderer,
		policy:      deps.Policy,
		pool:        deps.Pool,
		audit:       deps.Audit,
		logger:      logger,
		locks:       xsync.NewMapOf[uuid.UUID, *sync.Mutex](),
		now:         time.Now,
		digestLimit: metadata.DefaultDigestLimit,
		uploadLimit: 4,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.extractor == nil {
		o.extractor = metadata.NewExtractor(metadata.WithDigestLimit(o.digestLimit))
	}
	if o.transformer == nil {
		o.transformer = content.NewTransformer(nil)
	}
	if o.images == nil {
		o.images = imaging.NewProcessor(imaging.DefaultLimits(), nil)
	}
	if o.policy == nil {
		o.policy = retry.NewPolicy(retry.DefaultConfig(), nil, deps.Cache, nil)
	}
	if o.pool == nil {
		o.pool = jobs.NewPool(4, 64, logger)
		o.ownsPool = true
	}

	o.media = &mediaResolver{
		cache:    deps.Cache,
		platform: deps.Platform,
		policy:   o.policy,
		blobs:    deps.Blobs,
		now:      func() time.Time { return o.now() },
		logger:   logger,
	}
	return o, nil
}

// Close stops the worker pool when the orchestrator created it.
func (o *Orchestrator) Close() {
	if o.ownsPool {
		o.pool.StopWait()
	}
}

// Process runs the process phase and blocks until the task is
// PREVIEW_READY or FAILED. The snapshot is returned in both cases.
func (o *Orchestrator) Process(ctx context.Context, req ProcessRequest) (Snapshot, error) {
	task, err := o.create(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	working := cloneTask(task)
	runErr := o.pool.SubmitWait(ctx, func(ctx context.Context) error {
		return o.withTaskLock(ctx, working.ID, func(ctx context.Context) error {
			return o.runProcess(ctx, working, req)
		})
	})
	return o.settle(ctx, task, runErr)
}

// Submit schedules the process phase and returns the CREATED task at once.
func (o *Orchestrator) Submit(ctx context.Context, req ProcessRequest) (Snapshot, error) {
	task, err := o.create(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	queued := cloneTask(task)
	err = o.pool.Submit(func(ctx context.Context) error {
		return o.withTaskLock(ctx, queued.ID, func(ctx context.Context) error {
			return o.runProcess(ctx, queued, req)
		})
	})
	if err != nil {
		cause := &domain.InternalError{Message: "schedule process: " + err.Error()}
		_ = o.fail(ctx, task, cause)
		return snapshotOf(task), cause
	}
	return snapshotOf(task), nil
}

// Confirm runs the confirm phase and blocks until it settles. A PUBLISHED
// task returns its draft id without contacting the platform; a confirm
// already in flight is waited for.
func (o *Orchestrator) Confirm(ctx context.Context, id string) (Snapshot, error) {
	task, err := o.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if settled, done, err := o.confirmShortcut(ctx, task); done {
		return settled, err
	}

	runErr := o.pool.SubmitWait(ctx, func(ctx context.Context) error {
		return o.withTaskLock(ctx, task.ID, func(ctx context.Context) error {
			return o.confirmLocked(ctx, task.ID)
		})
	})
	return o.settle(ctx, task, runErr)
}

// ConfirmAsync schedules the confirm phase and returns immediately. A task
// already in the confirm phase is not scheduled again; a duplicate job that
// slips through finds the task settled and does nothing.
func (o *Orchestrator) ConfirmAsync(ctx context.Context, id string) (Snapshot, error) {
	task, err := o.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if settled, done, err := o.confirmShortcut(ctx, task); done {
		return settled, err
	}
	if task.State.InConfirmPhase() {
		return snapshotOf(task), nil
	}

	err = o.pool.Submit(func(ctx context.Context) error {
		return o.withTaskLock(ctx, task.ID, func(ctx context.Context) error {
			return o.confirmLocked(ctx, task.ID)
		})
	})
	if err != nil {
		return snapshotOf(task), &domain.InternalError{Message: "schedule confirm: " + err.Error()}
	}
	return snapshotOf(task), nil
}

// Status returns the current snapshot of a task.
func (o *Orchestrator) Status(ctx context.Context, id string) (Snapshot, error) {
	task, err := o.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(task), nil
}

// History lists the recorded state transitions of a task, oldest first. It
// is empty when no audit recorder is configured.
func (o *Orchestrator) History(ctx context.Context, id string) ([]jobs.AuditEvent, error) {
	task, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.audit == nil {
		return nil, nil
	}
	return o.audit.List(ctx, task.ID.String())
}

func (o *Orchestrator) confirmShortcut(ctx context.Context, task *Task) (Snapshot, bool, error) {
	switch {
	case task.State == domain.StatePublished:
		logging.WithTaskContext(o.logger, task.ID.String(), phaseConfirm).WithContext(ctx).
			Info("tasks.confirm.replayed", "remote_draft_id", task.RemoteDraftID)
		return snapshotOf(task), true, nil
	case task.State == domain.StateFailed:
		return snapshotOf(task), true, task.Err()
	case task.State.InProcessPhase():
		return snapshotOf(task), true, &domain.InvalidTaskStateError{
			TaskID:    task.ID.String(),
			State:     task.State,
			Operation: "confirm",
		}
	}
	return Snapshot{}, false, nil
}

func (o *Orchestrator) confirmLocked(ctx context.Context, id uuid.UUID) error {
	task, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch task.State {
	case domain.StatePublished:
		return nil
	case domain.StateFailed:
		return task.Err()
	case domain.StatePreviewReady:
		return o.runConfirm(ctx, task)
	default:
		return &domain.InvalidTaskStateError{TaskID: id.String(), State: task.State, Operation: "confirm"}
	}
}

// settle reloads the task after a phase. runErr is the phase outcome.
func (o *Orchestrator) settle(ctx context.Context, task *Task, runErr error) (Snapshot, error) {
	current, err := o.repo.GetByID(context.WithoutCancel(ctx), task.ID)
	if err != nil {
		current = task
	}
	return snapshotOf(current), runErr
}

func (o *Orchestrator) runProcess(ctx context.Context, task *Task, req ProcessRequest) error {
	logger := logging.WithTaskContext(o.logger, task.ID.String(), phaseProcess).WithContext(ctx)
	logger.Info("tasks.process.started", "content_images", len(req.ContentImages))

	if err := o.step(ctx, task, domain.StateExtracting); err != nil {
		return o.fail(ctx, task, err)
	}
	extracted, err := o.extractor.Extract(ctx, req.Markdown)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	task.Metadata = extracted.Metadata

	if err := o.step(ctx, task, domain.StateTransforming); err != nil {
		return o.fail(ctx, task, err)
	}
	images := indexImages(req.ContentImages)
	transformed, err := o.transformer.Transform(ctx, extracted.Body, images.names)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	task.TransformedBody = transformed.HTML

	if err := o.step(ctx, task, domain.StateUploadingPreviewAssets); err != nil {
		return o.fail(ctx, task, err)
	}
	cover, err := selectCover(task.Metadata.CoverImagePath, req.Cover, images)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	coverAsset, err := o.images.Normalize(ctx, cover.Name, cover.Data, interfaces.MediaRoleCover)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	assets := []namedAsset{{name: cover.Name, asset: coverAsset}}
	for _, name := range transformed.References {
		raw := images.byName[name]
		asset, err := o.images.Normalize(ctx, name, raw, interfaces.MediaRoleContent)
		if err != nil {
			return o.fail(ctx, task, err)
		}
		assets = append(assets, namedAsset{name: name, asset: asset})
	}
	for _, item := range assets {
		if err := o.media.store(ctx, item.asset); err != nil {
			return o.fail(ctx, task, err)
		}
	}

	entries, err := o.resolveAll(ctx, assets)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	body, err := content.Resolve(task.TransformedBody, contentURLs(assets[1:], entries[1:]))
	if err != nil {
		return o.fail(ctx, task, err)
	}

	task.CoverName = cover.Name
	task.CoverFingerprint = coverAsset.Fingerprint
	task.ImageFingerprints = make(map[string]string, len(assets)-1)
	for _, item := range assets[1:] {
		task.ImageFingerprints[item.name] = item.asset.Fingerprint
	}

	url, err := o.renderer.Render(ctx, preview.Document{
		TaskID:    task.ID.String(),
		Title:     task.Metadata.Title,
		Author:    task.Metadata.Author,
		Digest:    o.digest(task.Metadata, body),
		SourceURL: task.Metadata.ContentSourceURL,
		Body:      body,
		Cover:     coverAsset.Data,
		CoverType: coverAsset.ContentType,
	})
	if err != nil {
		return o.fail(ctx, task, err)
	}
	task.PreviewURL = url

	if err := o.step(ctx, task, domain.StatePreviewReady); err != nil {
		return o.fail(ctx, task, err)
	}
	logger.Info("tasks.process.completed", "preview_url", url, "images", len(assets))
	return nil
}

func (o *Orchestrator) runConfirm(ctx context.Context, task *Task) error {
	logger := logging.WithTaskContext(o.logger, task.ID.String(), phaseConfirm).WithContext(ctx)
	logger.Info("tasks.confirm.started")

	if err := o.step(ctx, task, domain.StateConfirming); err != nil {
		return o.fail(ctx, task, err)
	}
	if err := o.step(ctx, task, domain.StateUploadingRemainingAssets); err != nil {
		return o.fail(ctx, task, err)
	}

	coverAsset, err := o.media.load(ctx, task.CoverName, task.CoverFingerprint, interfaces.MediaRoleCover)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	assets := []namedAsset{{name: task.CoverName, asset: coverAsset}}
	for name, fingerprint := range task.ImageFingerprints {
		asset, err := o.media.load(ctx, name, fingerprint, interfaces.MediaRoleContent)
		if err != nil {
			return o.fail(ctx, task, err)
		}
		assets = append(assets, namedAsset{name: name, asset: asset})
	}

	entries, err := o.resolveAll(ctx, assets)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	body, err := content.Resolve(task.TransformedBody, contentURLs(assets[1:], entries[1:]))
	if err != nil {
		return o.fail(ctx, task, err)
	}

	if err := o.step(ctx, task, domain.StatePublishing); err != nil {
		return o.fail(ctx, task, err)
	}
	article := interfaces.DraftArticle{
		Title:              task.Metadata.Title,
		Author:             task.Metadata.Author,
		Digest:             o.digest(task.Metadata, body),
		Content:            body,
		ContentSourceURL:   task.Metadata.ContentSourceURL,
		NeedOpenComment:    task.Metadata.NeedOpenComment,
		OnlyFansCanComment: task.Metadata.OnlyFansCanComment,
	}
	draftID, err := retry.Do(ctx, o.policy, retry.Call[string]{
		Operation: operationCreateDraft,
		Invoke: func(ctx context.Context) (string, error) {
			entry, err := o.media.resolve(ctx, coverAsset)
			if err != nil {
				return "", err
			}
			draft := article
			draft.ThumbMediaID = entry.RemoteID
			return o.platform.CreateDraft(ctx, draft)
		},
		Implicated: func(_ error, class retry.Class) []interfaces.MediaKey {
			if class != retry.ClassStale {
				return nil
			}
			return []interfaces.MediaKey{coverAsset.Key()}
		},
	})
	if err != nil {
		return o.fail(ctx, task, err)
	}

	task.RemoteDraftID = draftID
	if err := o.step(ctx, task, domain.StatePublished); err != nil {
		return o.fail(ctx, task, err)
	}
	logger.Info("tasks.confirm.completed", "remote_draft_id", draftID)
	return nil
}

type namedAsset struct {
	name  string
	asset imaging.Asset
}

// resolveAll resolves assets concurrently; entries line up with assets.
func (o *Orchestrator) resolveAll(ctx context.Context, assets []namedAsset) ([]interfaces.MediaEntry, error) {
	entries := make([]interfaces.MediaEntry, len(assets))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.uploadLimit)
	for i, item := range assets {
		group.Go(func() error {
			entry, err := o.media.resolve(groupCtx, item.asset)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func contentURLs(assets []namedAsset, entries []interfaces.MediaEntry) map[string]string {
	urls := make(map[string]string, len(assets))
	for i, item := range assets {
		url := entries[i].URL
		if url == "" {
			url = entries[i].RemoteID
		}
		urls[item.name] = url
	}
	return urls
}

func (o *Orchestrator) digest(meta metadata.Metadata, body string) string {
	if meta.Digest != "" {
		return meta.Digest
	}
	return content.DeriveDigest(body, o.digestLimit)
}

func (o *Orchestrator) create(ctx context.Context) (*Task, error) {
	now := o.now().UTC()
	task := &Task{
		ID:                identity.NewTaskID(),
		State:             domain.StateCreated,
		ImageFingerprints: map[string]string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	created, err := o.repo.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	o.record(ctx, created, "")
	return created, nil
}

func (o *Orchestrator) load(ctx context.Context, id string) (*Task, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, &domain.TaskNotFoundError{TaskID: id}
	}
	return o.repo.GetByID(ctx, parsed)
}

// step advances task to state and persists it.
func (o *Orchestrator) step(ctx context.Context, task *Task, state domain.TaskState) error {
	from := task.State
	if err := task.advance(state); err != nil {
		return err
	}
	if err := o.save(ctx, task); err != nil {
		task.State = from
		return err
	}
	o.record(ctx, task, from)
	return nil
}

func (o *Orchestrator) save(ctx context.Context, task *Task) error {
	task.UpdatedAt = o.now().UTC()
	if _, err := o.repo.Update(ctx, task); err != nil {
		return err
	}
	return nil
}

// fail moves task to FAILED with cause attached and returns cause.
func (o *Orchestrator) fail(ctx context.Context, task *Task, cause error) error {
	ctx = context.WithoutCancel(ctx)
	from := task.State
	if !CanTransition(from, domain.StateFailed) {
		return cause
	}
	task.State = domain.StateFailed
	task.RemoteDraftID = ""
	task.setError(cause)

	logger := logging.WithTaskContext(o.logger, task.ID.String(), "").WithContext(ctx)
	if err := o.save(ctx, task); err != nil {
		logger.Error("tasks.fail.persist_failed", "error", err)
	}
	o.record(ctx, task, from)
	logging.WithError(logger, cause).Error("tasks.failed", "from", from.String())
	return cause
}

func (o *Orchestrator) record(ctx context.Context, task *Task, from domain.TaskState) {
	logging.WithTaskContext(o.logger, task.ID.String(), "").WithContext(ctx).
		Debug("tasks.state.changed", "from", from.String(), "to", task.State.String())
	if o.audit == nil {
		return
	}
	event := jobs.AuditEvent{
		TaskID:     task.ID.String(),
		From:       from,
		To:         task.State,
		OccurredAt: task.UpdatedAt,
	}
	if task.State == domain.StateFailed {
		event.ErrorKind = task.ErrorKind
	}
	if err := o.audit.Record(ctx, event); err != nil {
		o.logger.WithContext(ctx).Warn("tasks.audit.failed", "task_id", task.ID.String(), "error", err)
	}
}

func (o *Orchestrator) lockFor(id uuid.UUID) *sync.Mutex {
	mu, _ := o.locks.LoadOrCompute(id, func() *sync.Mutex { return &sync.Mutex{} })
	return mu
}

// withTaskLock runs fn as the single writer of task id, with ctx tagged by
// the task so every log entry below carries it.
func (o *Orchestrator) withTaskLock(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error {
	mu := o.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	return fn(logging.ContextWithTask(ctx, id.String()))
}

type imageIndex struct {
	names  []string
	byName map[string][]byte
}

func indexImages(images []Image) imageIndex {
	idx := imageIndex{byName: make(map[string][]byte, len(images))}
	for _, img := range images {
		name := strings.TrimSpace(img.Name)
		if name == "" {
			continue
		}
		if _, dup := idx.byName[name]; !dup {
			idx.names = append(idx.names, name)
		}
		idx.byName[name] = img.Data
	}
	return idx
}

// selectCover picks the image cover_image_path refers to: the supplied cover
// when its name matches (or it is unnamed), else a matching content image.
func selectCover(ref string, cover *Image, images imageIndex) (Image, error) {
	cleaned, err := content.CleanReference(ref)
	if err != nil {
		return Image{}, &domain.MetadataError{Field: metadata.KeyCoverImagePath, Reason: "invalid image reference", Err: err}
	}
	if cover != nil && len(cover.Data) > 0 {
		name := strings.TrimSpace(cover.Name)
		if name == "" {
			return Image{Name: cleaned, Data: cover.Data}, nil
		}
		if sameImage(name, cleaned) {
			return Image{Name: name, Data: cover.Data}, nil
		}
	}
	if data, ok := images.byName[cleaned]; ok {
		return Image{Name: cleaned, Data: data}, nil
	}
	for _, name := range images.names {
		if sameImage(name, cleaned) {
			return Image{Name: name, Data: images.byName[name]}, nil
		}
	}
	return Image{}, &domain.MetadataError{
		Field:  metadata.KeyCoverImagePath,
		Reason: fmt.Sprintf("%q does not match any supplied image", ref),
	}
}

func sameImage(name, ref string) bool {
	if cleaned, err := content.CleanReference(name); err == nil {
		name = cleaned
	}
	return name == ref || path.Base(name) == path.Base(ref)
}
