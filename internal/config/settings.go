package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Settings holds the runtime configuration of the service. Values are layered:
// compiled defaults, then the optional YAML file, then HEBSYNC_* environment
// variables.
type Settings struct {
	// Listen is the HTTP bind address for the trigger API and the ICS feed.
	Listen string `koanf:"listen" validate:"required"`

	// DataDir is the directory holding the embedded record store.
	DataDir string `koanf:"data_dir" validate:"required"`

	// CalendarAPIBase is the base URL of the external calendar service.
	CalendarAPIBase string `koanf:"calendar_api_base" validate:"required,url"`

	// TokenEndpoint is the OAuth token refresh endpoint of the external service.
	TokenEndpoint string `koanf:"token_endpoint" validate:"omitempty,url"`

	// DefaultTimezone is assumed for tenants without a timezone of their own.
	DefaultTimezone string `koanf:"default_timezone" validate:"required"`

	// SunsetHour is the fixed local hour at which the Hebrew day rolls over.
	SunsetHour int `koanf:"sunset_hour" validate:"min=0,max=23"`

	// ProjectionYears is how many years ahead occurrences are projected.
	ProjectionYears int `koanf:"projection_years" validate:"min=1,max=50"`

	// SyncChunkSize bounds parallel per-person reconciliation.
	SyncChunkSize int `koanf:"sync_chunk_size" validate:"min=1,max=50"`

	// DeletionBatchSize is the per-invocation batch for bulk deletion jobs.
	DeletionBatchSize int `koanf:"deletion_batch_size" validate:"min=1,max=500"`

	// JobTimeBudget caps a single bulk-job invocation before continuation.
	JobTimeBudget time.Duration `koanf:"job_time_budget" validate:"min=1s"`
}

// DefaultSettings returns the compiled-in configuration.
func DefaultSettings() Settings {
	return Settings{
		Listen:            DefaultListen,
		DataDir:           DefaultDataDir,
		CalendarAPIBase:   DefaultAPIBase,
		DefaultTimezone:   DefaultTimezone,
		SunsetHour:        DefaultSunsetHour,
		ProjectionYears:   ProjectionYears,
		SyncChunkSize:     SyncChunkSize,
		DeletionBatchSize: DeletionBatchSize,
		JobTimeBudget:     JobTimeBudget,
	}
}

// LoadSettings layers defaults, the optional YAML file at path, and
// environment variables, then validates the result.
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultSettings(), "koanf"), nil); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", ErrSettingsLoad, err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Settings{}, fmt.Errorf("%s: %w", ErrSettingsLoad, err)
			}
		}
	}

	// HEBSYNC_SYNC_CHUNK_SIZE -> sync_chunk_size
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", ErrSettingsLoad, err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", ErrSettingsLoad, err)
	}

	if err := validator.New().Struct(s); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", ErrSettingsInvalid, err)
	}
	return s, nil
}
