// Package config loads snaprelay's runtime configuration from the
// environment using struct tags.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of environment-driven settings for the backup
// pipeline. Loading/validating it is ambient infrastructure; the core
// orchestrator (internal/statusmgr, internal/backupmgr) takes its
// dependencies as constructor arguments and never reads the environment
// itself.
type Config struct {
	LogMode string `env:"LOG_MODE" envDefault:"dev"`

	StorageRoot string `env:"SNAPRELAY_STORAGE_ROOT" envDefault:"/var/lib/snaprelay/state"`
	TempRoot    string `env:"SNAPRELAY_TEMP_ROOT" envDefault:"/var/lib/snaprelay/tmp"`

	RemoteBucket string `env:"SNAPRELAY_REMOTE_BUCKET,required,notEmpty"`
	RemotePrefix string `env:"SNAPRELAY_REMOTE_PREFIX" envDefault:"snapshots"`
	GCSCredsPath string `env:"SNAPRELAY_GCS_CREDENTIALS"`

	AgeRecipientsFile string `env:"SNAPRELAY_AGE_RECIPIENTS"`
	AgeIdentityFile   string `env:"SNAPRELAY_AGE_IDENTITY"`

	SplitChunkBytes int64 `env:"SNAPRELAY_SPLIT_CHUNK_BYTES" envDefault:"67108864"`

	MinPollInterval time.Duration `env:"SNAPRELAY_MIN_POLL_INTERVAL" envDefault:"2s"`
	MaxPollInterval time.Duration `env:"SNAPRELAY_MAX_POLL_INTERVAL" envDefault:"10s"`

	// RunSchedule is an optional standard cron expression (minute hour dom
	// month dow) governing when `run --loop` wakes to step the pipeline. When
	// empty, run --loop instead backs off between MinPollInterval and
	// MaxPollInterval on empty-queue polls.
	RunSchedule string `env:"SNAPRELAY_RUN_SCHEDULE"`

	HashAlgorithm string `env:"SNAPRELAY_HASH_ALGORITHM" envDefault:"blake3"`
}

// Load parses Config from the process environment, applying envDefault tags
// and failing on missing `required` fields (currently only the remote
// bucket, since every other field has a sane default or is optional).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
