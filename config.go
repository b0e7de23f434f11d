package gpucore

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds StandardResources tunables. The zero value selects the
// defaults; ConfigFromEnv fills it from GPUCORE_* environment variables.
type Config struct {
	// TempMemoryBytes sizes the per-device temporary arena.
	// -1 selects the default: min(1.5 GiB, a quarter of device memory).
	// 0 disables the arena; every temporary request takes the overflow path.
	TempMemoryBytes int64 `envconfig:"TEMP_MEMORY_BYTES" default:"-1"`

	// MemoryLimitBytes caps outstanding device/unified memory per device.
	// 0 means the device's own capacity is the only limit.
	MemoryLimitBytes int64 `envconfig:"MEMORY_LIMIT_BYTES" default:"0"`

	// LogAllocations enables a log line per allocation and deallocation.
	LogAllocations bool `envconfig:"LOG_ALLOCATIONS" default:"false"`

	// AsyncCopyBytesPerSec throttles the async copy stream. 0 is unlimited.
	AsyncCopyBytesPerSec int64 `envconfig:"ASYNC_COPY_BPS" default:"0"`
}

// ConfigFromEnv reads configuration from GPUCORE_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("gpucore", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
