package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_MODE", "SNAPRELAY_STORAGE_ROOT", "SNAPRELAY_TEMP_ROOT",
		"SNAPRELAY_REMOTE_BUCKET", "SNAPRELAY_REMOTE_PREFIX", "SNAPRELAY_GCS_CREDENTIALS",
		"SNAPRELAY_AGE_RECIPIENTS", "SNAPRELAY_AGE_IDENTITY", "SNAPRELAY_SPLIT_CHUNK_BYTES",
		"SNAPRELAY_MIN_POLL_INTERVAL", "SNAPRELAY_MAX_POLL_INTERVAL", "SNAPRELAY_RUN_SCHEDULE",
		"SNAPRELAY_HASH_ALGORITHM",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFailsWithoutRequiredRemoteBucket(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNAPRELAY_REMOTE_BUCKET", "my-bucket")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.LogMode)
	require.Equal(t, "/var/lib/snaprelay/state", cfg.StorageRoot)
	require.Equal(t, "/var/lib/snaprelay/tmp", cfg.TempRoot)
	require.Equal(t, "snapshots", cfg.RemotePrefix)
	require.Equal(t, int64(67108864), cfg.SplitChunkBytes)
	require.Equal(t, 2*time.Second, cfg.MinPollInterval)
	require.Equal(t, 10*time.Second, cfg.MaxPollInterval)
	require.Equal(t, "blake3", cfg.HashAlgorithm)
	require.Empty(t, cfg.RunSchedule)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNAPRELAY_REMOTE_BUCKET", "my-bucket")
	t.Setenv("SNAPRELAY_HASH_ALGORITHM", "sha256")
	t.Setenv("SNAPRELAY_RUN_SCHEDULE", "*/5 * * * *")
	t.Setenv("SNAPRELAY_MIN_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "my-bucket", cfg.RemoteBucket)
	require.Equal(t, "sha256", cfg.HashAlgorithm)
	require.Equal(t, "*/5 * * * *", cfg.RunSchedule)
	require.Equal(t, 500*time.Millisecond, cfg.MinPollInterval)
}
