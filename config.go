package publisher

import (
	"github.com/goliatone/go-publisher/internal/commands"
	"github.com/goliatone/go-publisher/internal/runtimeconfig"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

var (
	ErrPlatformProviderUnknown   = runtimeconfig.ErrPlatformProviderUnknown
	ErrPlatformCredentials       = runtimeconfig.ErrPlatformCredentials
	ErrPlatformTimeoutInvalid    = runtimeconfig.ErrPlatformTimeoutInvalid
	ErrRetryAttemptsInvalid      = runtimeconfig.ErrRetryAttemptsInvalid
	ErrRetryBackoffInvalid       = runtimeconfig.ErrRetryBackoffInvalid
	ErrImageLimitsInvalid        = runtimeconfig.ErrImageLimitsInvalid
	ErrImageQualityInvalid       = runtimeconfig.ErrImageQualityInvalid
	ErrDigestLimitInvalid        = runtimeconfig.ErrDigestLimitInvalid
	ErrCacheProviderUnknown      = runtimeconfig.ErrCacheProviderUnknown
	ErrCacheRedisAddressRequired = runtimeconfig.ErrCacheRedisAddressRequired
	ErrStorageProviderUnknown    = runtimeconfig.ErrStorageProviderUnknown
	ErrStorageDialectUnknown     = runtimeconfig.ErrStorageDialectUnknown
	ErrStorageDSNRequired        = runtimeconfig.ErrStorageDSNRequired
	ErrWorkersInvalid            = runtimeconfig.ErrWorkersInvalid
	ErrLoggingProviderUnknown    = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid       = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid      = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config         = runtimeconfig.Config
	PlatformConfig = runtimeconfig.PlatformConfig
	RetryConfig    = runtimeconfig.RetryConfig
	ImageConfig    = runtimeconfig.ImageConfig
	MetadataConfig = runtimeconfig.MetadataConfig
	CacheConfig    = runtimeconfig.CacheConfig
	StorageConfig  = runtimeconfig.StorageConfig
	PreviewConfig  = runtimeconfig.PreviewConfig
	WorkerConfig   = runtimeconfig.WorkerConfig
	LoggingConfig  = runtimeconfig.LoggingConfig
	LoadOptions    = runtimeconfig.LoadOptions
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig layers defaults, PUBLISHER_* environment variables and
// overrides, then validates the result.
func LoadConfig(opts LoadOptions) (Config, error) {
	return runtimeconfig.Load(opts)
}

func commandLogger(m *Module) interfaces.Logger {
	return commands.CommandLogger(m.container.LoggerProvider(), "publishing")
}
