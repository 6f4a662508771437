package statusfor

import "github.com/goliatone/go-statusfor/internal/runtimeconfig"

var (
	ErrLoggingProviderRequired = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown  = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid     = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid    = runtimeconfig.ErrLoggingFormatInvalid
	ErrStorageDialectUnknown   = runtimeconfig.ErrStorageDialectUnknown
	ErrStorageDriverMismatch   = runtimeconfig.ErrStorageDriverMismatch
	ErrStorageDSNRequired      = runtimeconfig.ErrStorageDSNRequired
	ErrCacheTTLInvalid         = runtimeconfig.ErrCacheTTLInvalid
	ErrMetricsNamespaceInvalid = runtimeconfig.ErrMetricsNamespaceInvalid
)

type (
	Config          = runtimeconfig.Config
	LoggingConfig   = runtimeconfig.LoggingConfig
	MutationsConfig = runtimeconfig.MutationsConfig
	StorageConfig   = runtimeconfig.StorageConfig
	CacheConfig     = runtimeconfig.CacheConfig
	MetricsConfig   = runtimeconfig.MetricsConfig
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads a YAML config file, applies STATUSFOR_* environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.Load(path)
}
