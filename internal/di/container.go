package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	repocache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-publisher/internal/content"
	"github.com/goliatone/go-publisher/internal/imaging"
	"github.com/goliatone/go-publisher/internal/jobs"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/internal/logging/console"
	"github.com/goliatone/go-publisher/internal/logging/gologger"
	"github.com/goliatone/go-publisher/internal/mediacache"
	"github.com/goliatone/go-publisher/internal/metadata"
	"github.com/goliatone/go-publisher/internal/platform"
	"github.com/goliatone/go-publisher/internal/preview"
	"github.com/goliatone/go-publisher/internal/retry"
	"github.com/goliatone/go-publisher/internal/runtimeconfig"
	"github.com/goliatone/go-publisher/internal/tasks"
	"github.com/goliatone/go-publisher/pkg/interfaces"
	"github.com/goliatone/go-publisher/pkg/storage"
)

const defaultBlobDir = "blobs"

// Container wires the publisher from configuration. Anything supplied
// through an Option wins over what the configuration would build.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider

	bunDB         *bun.DB
	ownsDB        bool
	redis         redis.UniversalClient
	ownsRedis     bool
	fs            afero.Fs
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	platform interfaces.PlatformClient
	cache    interfaces.MediaCache
	repo     tasks.TaskRepository
	audit    jobs.AuditRecorder
	pool     *jobs.Pool

	orchestrator *tasks.Orchestrator
}

// Option mutates the container before it is finalised.
type Option func(*Container)

func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithBunDB supplies the database used by bun storage and the bun cache.
// The caller keeps ownership of db.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithRedisClient supplies the client used by the redis media cache.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(c *Container) {
		c.redis = client
	}
}

// WithFilesystem overrides the filesystem holding previews and blobs.
func WithFilesystem(fs afero.Fs) Option {
	return func(c *Container) {
		c.fs = fs
	}
}

// WithCache overrides the read-through cache used by the bun task repository.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

func WithPlatform(client interfaces.PlatformClient) Option {
	return func(c *Container) {
		c.platform = client
	}
}

func WithMediaCache(cache interfaces.MediaCache) Option {
	return func(c *Container) {
		c.cache = cache
	}
}

func WithTaskRepository(repo tasks.TaskRepository) Option {
	return func(c *Container) {
		c.repo = repo
	}
}

// WithAuditRecorder records every task state change.
func WithAuditRecorder(recorder jobs.AuditRecorder) Option {
	return func(c *Container) {
		c.audit = recorder
	}
}

// NewContainer validates cfg and builds every collaborator of the orchestrator.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if err := c.configureLoggerProvider(); err != nil {
		return nil, err
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}

	steps := []func(context.Context) error{
		c.configureDatabase,
		c.configureTaskRepository,
		c.configureAudit,
		c.configureMediaCache,
		c.configurePlatform,
		c.configureOrchestrator,
	}
	ctx := context.Background()
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) Orchestrator() *tasks.Orchestrator { return c.orchestrator }

func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }

func (c *Container) Platform() interfaces.PlatformClient { return c.platform }

func (c *Container) MediaCache() interfaces.MediaCache { return c.cache }

func (c *Container) TaskRepository() tasks.TaskRepository { return c.repo }

// Close drains the worker pool and releases connections the container opened.
func (c *Container) Close() error {
	if c.pool != nil {
		c.pool.StopWait()
	}
	var errs []error
	if c.ownsRedis && c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.ownsDB && c.bunDB != nil {
		errs = append(errs, c.bunDB.Close())
	}
	return errors.Join(errs...)
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	cfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	default:
		c.loggerProvider = console.NewProvider(console.Options{MinLevel: console.ParseLevel(cfg.Level)})
	}
	return nil
}

func (c *Container) usesBun() bool {
	return strings.EqualFold(c.Config.Storage.Provider, "bun") || strings.EqualFold(c.Config.Cache.Provider, "bun")
}

func (c *Container) configureDatabase(ctx context.Context) error {
	if !c.usesBun() {
		return nil
	}
	if c.bunDB == nil {
		db, err := openDB(c.Config.Storage)
		if err != nil {
			return err
		}
		c.bunDB = db
		c.ownsDB = true
	}
	if err := ensureSchema(ctx, c.bunDB); err != nil {
		return err
	}
	logging.ModuleLogger(c.loggerProvider, "publisher.storage").
		Info("storage.configured", "dialect", c.Config.Storage.Dialect, "owned", c.ownsDB)
	return nil
}

func openDB(cfg runtimeconfig.StorageConfig) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Dialect)) {
	case "postgres":
		sqlDB, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	default:
		sqlDB, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	}
}

func ensureSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*tasks.Task)(nil), (*jobs.AuditRecord)(nil), (*mediacache.EntryRecord)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}
	return nil
}

func (c *Container) configureTaskRepository(context.Context) error {
	if c.repo != nil {
		return nil
	}
	if !strings.EqualFold(c.Config.Storage.Provider, "bun") {
		c.repo = tasks.NewMemoryTaskRepository()
		return nil
	}
	if c.cacheService == nil && c.Config.Storage.ReadTTL > 0 {
		cfg := repocache.DefaultConfig()
		cfg.TTL = c.Config.Storage.ReadTTL
		service, err := repocache.NewCacheService(cfg)
		if err != nil {
			return fmt.Errorf("task read cache: %w", err)
		}
		c.cacheService = service
	}
	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
	c.repo = tasks.NewBunTaskRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	return nil
}

// configureAudit keeps transitions next to the tasks they describe.
func (c *Container) configureAudit(context.Context) error {
	if c.audit != nil {
		return nil
	}
	if strings.EqualFold(c.Config.Storage.Provider, "bun") {
		c.audit = jobs.NewBunAuditRecorder(c.bunDB)
		return nil
	}
	c.audit = jobs.NewInMemoryAuditRecorder()
	return nil
}

func (c *Container) configureMediaCache(ctx context.Context) error {
	if c.cache != nil {
		return nil
	}
	cfg := c.Config.Cache
	opts := mediacache.Options{EntryTTL: cfg.EntryTTL}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "bun":
		c.cache = mediacache.NewBunStore(c.bunDB, opts)
	case "redis":
		if c.redis == nil {
			c.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
			c.ownsRedis = true
		}
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis media cache: %w", err)
		}
		c.cache = mediacache.NewRedisStore(c.redis, cfg.RedisPrefix, opts)
	default:
		c.cache = mediacache.NewMemoryStore(opts)
	}
	logging.MediaCacheLogger(c.loggerProvider).Info("mediacache.configured", "provider", cfg.Provider, "entry_ttl", cfg.EntryTTL.String())
	return nil
}

func (c *Container) classifier() *platform.Classifier {
	cfg := c.Config.Platform
	return platform.NewClassifier(cfg.TransientCodes, cfg.StaleCodes, cfg.TokenCodes)
}

func (c *Container) configurePlatform(context.Context) error {
	if c.platform != nil {
		return nil
	}
	cfg := c.Config.Platform
	logger := logging.PlatformLogger(c.loggerProvider)
	if !strings.EqualFold(strings.TrimSpace(cfg.Provider), "wechat") {
		c.platform = platform.NewMemory()
		logger.Warn("platform.sandbox", "reason", "drafts are kept in memory")
		return nil
	}
	client, err := platform.NewWeChatClient(platform.WeChatConfig{
		BaseURL:    cfg.BaseURL,
		AppID:      cfg.AppID,
		AppSecret:  cfg.AppSecret,
		Timeout:    cfg.Timeout,
		Classifier: c.classifier(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	c.platform = client
	return nil
}

func (c *Container) configureOrchestrator(context.Context) error {
	cfg := c.Config
	provider := c.loggerProvider

	policy := retry.NewPolicy(retry.Config{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseBackoff:    cfg.Retry.BaseBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		Jitter:         cfg.Retry.Jitter,
		AttemptTimeout: cfg.Platform.Timeout,
	}, c.classifier(), c.cache, logging.RetryLogger(provider))

	images := imaging.NewProcessor(imaging.Limits{
		CoverMaxBytes:   cfg.Images.CoverMaxBytes,
		CoverMaxWidth:   cfg.Images.CoverMaxWidth,
		CoverAspect:     cfg.Images.CoverAspect,
		ContentMaxBytes: cfg.Images.ContentMaxBytes,
		QualityStart:    cfg.Images.QualityStart,
		QualityMin:      cfg.Images.QualityMin,
		QualityStep:     cfg.Images.QualityStep,
		MaxPixels:       cfg.Images.MaxPixels,
	}, logging.ImagingLogger(provider))

	artifacts := storage.NewArtifactStore(
		storage.NewFileStore(c.fs, cfg.Preview.RootDir),
		cfg.Preview.BaseURL,
		cfg.Preview.PathPrefix,
	)
	blobDir := strings.TrimSpace(cfg.Storage.BlobDir)
	if blobDir == "" {
		blobDir = defaultBlobDir
	}

	tasksLogger := logging.TasksLogger(provider)
	c.pool = jobs.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize, tasksLogger)

	orchestrator, err := tasks.NewOrchestrator(tasks.Dependencies{
		Repository:  c.repo,
		Platform:    c.platform,
		Cache:       c.cache,
		Renderer:    preview.NewRenderer(artifacts, logging.PreviewLogger(provider)),
		Blobs:       storage.NewFileStore(c.fs, blobDir),
		Extractor:   metadata.NewExtractor(metadata.WithDigestLimit(cfg.Metadata.DigestLimit), metadata.WithLogger(logging.MetadataLogger(provider))),
		Transformer: content.NewTransformer(logging.ContentLogger(provider)),
		Images:      images,
		Policy:      policy,
		Pool:        c.pool,
		Audit:       c.audit,
		Logger:      tasksLogger,
	},
		tasks.WithDigestLimit(cfg.Metadata.DigestLimit),
		tasks.WithUploadConcurrency(cfg.Workers.UploadConcurrency),
	)
	if err != nil {
		return err
	}
	c.orchestrator = orchestrator
	return nil
}
