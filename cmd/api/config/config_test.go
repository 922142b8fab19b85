package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DO_TOKEN", "secret")
	t.Setenv("DO_REGION", "nyc1")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/run/docker/plugins/dobs.sock", cfg.PluginSocket)
	assert.Equal(t, "/mnt/volumes", cfg.MountRoot)
	assert.Equal(t, RegistryMemory, cfg.RegistryBackend)
	assert.Equal(t, 2*time.Minute, cfg.ActionTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.False(t, cfg.OtelEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DO_TOKEN", "secret")
	t.Setenv("DO_REGION", "ams3")
	t.Setenv("REGISTRY_BACKEND", "bolt")
	t.Setenv("ACTION_TIMEOUT", "30s")
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, RegistryBolt, cfg.RegistryBackend)
	assert.Equal(t, 30*time.Second, cfg.ActionTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.True(t, cfg.OtelEnabled)
}

func TestRequestTimeout_CoversMigration(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want time.Duration
	}{
		{name: "defaults", cfg: Config{}, want: 5*time.Minute + 30*time.Second},
		{name: "configured", cfg: Config{ActionTimeout: 30 * time.Second, SettleTimeout: 10 * time.Second}, want: 100 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.RequestTimeout()
			assert.Equal(t, tt.want, got)

			action, settle := tt.cfg.ActionTimeout, tt.cfg.SettleTimeout
			if action == 0 {
				action, settle = 2*time.Minute, time.Minute
			}
			// detach + attach + device wait must end before the request is cancelled
			assert.Greater(t, got, 2*action+settle)
		})
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		missing string
	}{
		{name: "no token", cfg: Config{Region: "nyc1", RegistryBackend: RegistryMemory}, missing: "DO_TOKEN"},
		{name: "no region", cfg: Config{Token: "x", RegistryBackend: RegistryMemory}, missing: "DO_REGION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.ErrorIs(t, err, ErrConfigMissing)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := Config{Token: "x", Region: "nyc1", RegistryBackend: "etcd"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfigMissing)
}
