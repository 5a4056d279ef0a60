package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSyncConfig(t *testing.T) {
	t.Setenv("GC_TOKEN", "sandbox_abc")

	path := writeFile(t, `
source:
  name: gocardless
  type: gocardless
  reliability:
    rate_limit_per_sec: 4
    retry_delay: 250ms
  security:
    credentials:
      access_token: ${GC_TOKEN}
      gocardless_environment: ${GC_ENV:-sandbox}
      start_date: "2021-01-01T00:00:00Z"
destination:
  name: out
  type: jsonl
state:
  backend: sqlite
  dsn: ":memory:"
`)

	cfg, err := LoadSyncConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sandbox_abc", cfg.Source.Security.Credentials["access_token"])
	assert.Equal(t, "sandbox", cfg.Source.Security.Credentials["gocardless_environment"])
	assert.Equal(t, 4, cfg.Source.Reliability.RateLimitPerSec)
	assert.Equal(t, 250*time.Millisecond, cfg.Source.Reliability.RetryDelay)
	// untouched defaults survive
	assert.Equal(t, 3, cfg.Source.Reliability.RetryAttempts)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, "connector_state", cfg.State.Table)
	assert.NotNil(t, cfg.Destination.Security.Credentials)
}

func TestLoadSyncConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown state backend",
			content: "state:\n  backend: etcd\n",
			wantErr: "unknown backend",
		},
		{
			name:    "negative rate limit",
			content: "source:\n  reliability:\n    rate_limit_per_sec: -1\n",
			wantErr: "rate_limit_per_sec",
		},
		{
			name:    "bad yaml",
			content: "source: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSyncConfig(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("SET_VAR", "value")

	assert.Equal(t, "a value b", substituteEnvVars("a ${SET_VAR} b"))
	assert.Equal(t, "fallback", substituteEnvVars("${UNSET_VAR_X:-fallback}"))
	assert.Equal(t, "", substituteEnvVars("${UNSET_VAR_X}"))
	assert.Equal(t, "$HOME", substituteEnvVars("$HOME"))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewSyncConfig()
	cfg.State.Backend = "redis"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadSyncConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", loaded.State.Backend)
}
