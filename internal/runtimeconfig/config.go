package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrPlatformProviderUnknown   = errors.New("publisher config: platform provider is invalid")
	ErrPlatformCredentials       = errors.New("publisher config: wechat provider requires app_id and app_secret")
	ErrPlatformTimeoutInvalid    = errors.New("publisher config: platform timeout must be positive")
	ErrRetryAttemptsInvalid      = errors.New("publisher config: retry max_attempts must be at least 1")
	ErrRetryBackoffInvalid       = errors.New("publisher config: retry backoff must be positive and base <= max")
	ErrImageLimitsInvalid        = errors.New("publisher config: image limits must be positive")
	ErrImageQualityInvalid       = errors.New("publisher config: jpeg quality ladder is invalid")
	ErrDigestLimitInvalid        = errors.New("publisher config: digest limit must be positive")
	ErrCacheProviderUnknown      = errors.New("publisher config: cache provider is invalid")
	ErrCacheRedisAddressRequired = errors.New("publisher config: redis cache requires an address")
	ErrStorageProviderUnknown    = errors.New("publisher config: storage provider is invalid")
	ErrStorageDialectUnknown     = errors.New("publisher config: storage dialect is invalid")
	ErrStorageDSNRequired        = errors.New("publisher config: bun storage requires a dsn")
	ErrWorkersInvalid            = errors.New("publisher config: worker count, queue size and upload concurrency must be positive")
	ErrLoggingProviderUnknown    = errors.New("publisher config: logging provider is invalid")
	ErrLoggingLevelInvalid       = errors.New("publisher config: logging level is invalid")
	ErrLoggingFormatInvalid      = errors.New("publisher config: logging format is invalid")
)

// Config aggregates everything the publisher needs at construction time.
// It is injected explicitly; nothing reads ambient globals.
type Config struct {
	Platform PlatformConfig `koanf:"platform"`
	Retry    RetryConfig    `koanf:"retry"`
	Images   ImageConfig    `koanf:"images"`
	Metadata MetadataConfig `koanf:"metadata"`
	Cache    CacheConfig    `koanf:"cache"`
	Storage  StorageConfig  `koanf:"storage"`
	Preview  PreviewConfig  `koanf:"preview"`
	Workers  WorkerConfig   `koanf:"workers"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// PlatformConfig selects and configures the platform client. The code lists
// classify platform error codes for the retry policy.
type PlatformConfig struct {
	Provider       string        `koanf:"provider"`
	BaseURL        string        `koanf:"base_url"`
	AppID          string        `koanf:"app_id"`
	AppSecret      string        `koanf:"app_secret"`
	Timeout        time.Duration `koanf:"timeout"`
	TransientCodes []int         `koanf:"transient_codes"`
	StaleCodes     []int         `koanf:"stale_codes"`
	TokenCodes     []int         `koanf:"token_codes"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseBackoff time.Duration `koanf:"base_backoff"`
	MaxBackoff  time.Duration `koanf:"max_backoff"`
	Jitter      time.Duration `koanf:"jitter"`
}

// ImageConfig holds the platform's image constraints.
type ImageConfig struct {
	CoverMaxBytes   int     `koanf:"cover_max_bytes"`
	CoverMaxWidth   int     `koanf:"cover_max_width"`
	CoverAspect     float64 `koanf:"cover_aspect"`
	ContentMaxBytes int     `koanf:"content_max_bytes"`
	QualityStart    int     `koanf:"quality_start"`
	QualityMin      int     `koanf:"quality_min"`
	QualityStep     int     `koanf:"quality_step"`
	MaxPixels       int     `koanf:"max_pixels"`
}

type MetadataConfig struct {
	DigestLimit int `koanf:"digest_limit"`
}

// CacheConfig selects the media cache backend. A zero EntryTTL keeps entries
// until the platform rejects them.
type CacheConfig struct {
	Provider    string        `koanf:"provider"`
	EntryTTL    time.Duration `koanf:"entry_ttl"`
	RedisAddr   string        `koanf:"redis_addr"`
	RedisPrefix string        `koanf:"redis_prefix"`
}

// StorageConfig selects where tasks (and bun-backed cache entries) live.
type StorageConfig struct {
	Provider string        `koanf:"provider"`
	Dialect  string        `koanf:"dialect"`
	DSN      string        `koanf:"dsn"`
	ReadTTL  time.Duration `koanf:"read_ttl"`
	BlobDir  string        `koanf:"blob_dir"`
}

type PreviewConfig struct {
	RootDir    string `koanf:"root_dir"`
	BaseURL    string `koanf:"base_url"`
	PathPrefix string `koanf:"path_prefix"`
}

// WorkerConfig sizes the phase pool. UploadConcurrency bounds parallel
// uploads inside one task.
type WorkerConfig struct {
	Count             int `koanf:"count"`
	QueueSize         int `koanf:"queue_size"`
	UploadConcurrency int `koanf:"upload_concurrency"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `koanf:"provider"`
	Level     string   `koanf:"level"`
	Format    string   `koanf:"format"`
	AddSource bool     `koanf:"add_source"`
	Focus     []string `koanf:"focus"`
}

// DefaultConfig returns defaults calibrated for the WeChat official account
// API, running against the in-memory sandbox until credentials are given.
func DefaultConfig() Config {
	return Config{
		Platform: PlatformConfig{
			Provider:       "sandbox",
			BaseURL:        "https://api.weixin.qq.com",
			Timeout:        30 * time.Second,
			TransientCodes: []int{-1, 45009, 45011, 40001, 42001, 40014},
			StaleCodes:     []int{40007},
			TokenCodes:     []int{40001, 42001, 40014},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseBackoff: 500 * time.Millisecond,
			MaxBackoff:  5 * time.Second,
		},
		Images: ImageConfig{
			CoverMaxBytes:   64 * 1024,
			CoverMaxWidth:   900,
			CoverAspect:     2.35,
			ContentMaxBytes: 1024 * 1024,
			QualityStart:    85,
			QualityMin:      60,
			QualityStep:     5,
			MaxPixels:       40_000_000,
		},
		Metadata: MetadataConfig{
			DigestLimit: 54,
		},
		Cache: CacheConfig{
			Provider:    "memory",
			RedisPrefix: "publisher:media:",
		},
		Storage: StorageConfig{
			Provider: "memory",
			Dialect:  "sqlite",
		},
		Preview: PreviewConfig{
			RootDir:    "previews",
			BaseURL:    "http://localhost:8080",
			PathPrefix: "/previews/",
		},
		Workers: WorkerConfig{
			Count:             4,
			QueueSize:         64,
			UploadConcurrency: 4,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
	}
}

// Validate performs consistency checks across sections.
func (cfg Config) Validate() error {
	switch normalize(cfg.Platform.Provider) {
	case "sandbox":
	case "wechat":
		if strings.TrimSpace(cfg.Platform.AppID) == "" || strings.TrimSpace(cfg.Platform.AppSecret) == "" {
			return ErrPlatformCredentials
		}
	default:
		return fmt.Errorf("%w: %s", ErrPlatformProviderUnknown, cfg.Platform.Provider)
	}
	if cfg.Platform.Timeout <= 0 {
		return ErrPlatformTimeoutInvalid
	}
	if cfg.Retry.MaxAttempts < 1 {
		return ErrRetryAttemptsInvalid
	}
	if cfg.Retry.BaseBackoff <= 0 || cfg.Retry.MaxBackoff < cfg.Retry.BaseBackoff {
		return ErrRetryBackoffInvalid
	}
	img := cfg.Images
	if img.CoverMaxBytes <= 0 || img.CoverMaxWidth <= 0 || img.CoverAspect <= 0 || img.ContentMaxBytes <= 0 || img.MaxPixels <= 0 {
		return ErrImageLimitsInvalid
	}
	if img.QualityStart > 100 || img.QualityMin < 1 || img.QualityMin > img.QualityStart || img.QualityStep < 1 {
		return ErrImageQualityInvalid
	}
	if cfg.Metadata.DigestLimit <= 0 {
		return ErrDigestLimitInvalid
	}
	switch normalize(cfg.Cache.Provider) {
	case "memory", "bun":
	case "redis":
		if strings.TrimSpace(cfg.Cache.RedisAddr) == "" {
			return ErrCacheRedisAddressRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrCacheProviderUnknown, cfg.Cache.Provider)
	}
	switch normalize(cfg.Storage.Provider) {
	case "memory":
		if normalize(cfg.Cache.Provider) == "bun" {
			return fmt.Errorf("%w: bun cache requires bun storage", ErrStorageProviderUnknown)
		}
	case "bun":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return ErrStorageDSNRequired
		}
		switch normalize(cfg.Storage.Dialect) {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("%w: %s", ErrStorageDialectUnknown, cfg.Storage.Dialect)
		}
	default:
		return fmt.Errorf("%w: %s", ErrStorageProviderUnknown, cfg.Storage.Provider)
	}
	if cfg.Workers.Count < 1 || cfg.Workers.QueueSize < 1 || cfg.Workers.UploadConcurrency < 1 {
		return ErrWorkersInvalid
	}
	return cfg.Logging.validate()
}

func (cfg LoggingConfig) validate() error {
	provider := normalize(cfg.Provider)
	switch provider {
	case "console", "gologger":
	default:
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, cfg.Provider)
	}
	if level := normalize(cfg.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		if format := normalize(cfg.Format); format != "" && !isSupportedFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch format {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
