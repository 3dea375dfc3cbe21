package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/kv-resave/internal/resave"
	"github.com/leafsii/kv-resave/pkg/kv"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://127.0.0.1:6379/0", cfg.Store.RedisURL)
	assert.Equal(t, "kv:", cfg.Store.KeyPrefix)
	assert.Equal(t, 100, cfg.Store.ScanChunkSize)
	assert.False(t, cfg.Store.Debug)
	assert.Equal(t, resave.DefaultPacer(), cfg.Pacer())
	assert.Zero(t, cfg.Pacing.MaxKeysPerSecond)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KVR_ENV", "prod")
	t.Setenv("KVR_BACKEND", "Memory")
	t.Setenv("KVR_KV_PREFIX", "cache:")
	t.Setenv("KVR_SCAN_CHUNK_SIZE", "500")
	t.Setenv("KVR_STORAGE_DEBUG", "true")
	t.Setenv("KVR_PACING_MIN", "5ms")
	t.Setenv("KVR_PACING_MAX", "1s")
	t.Setenv("KVR_PACING_TARGET", "100ms")
	t.Setenv("KVR_MAX_KEYS_PER_SEC", "2500")
	t.Setenv("KVR_METRICS_ADDR", ":9102")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.True(t, cfg.Store.Debug)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)

	kvCfg := cfg.KV(nil)
	assert.Equal(t, kv.BackendMemory, kvCfg.Backend)

	rw := cfg.Rewriter()
	assert.Equal(t, "cache:", rw.KeyPrefix)
	assert.Equal(t, 500, rw.BatchSize)
	assert.Equal(t, 2500.0, rw.MaxKeysPerSecond)

	p := cfg.Pacer()
	assert.Equal(t, 5*time.Millisecond, p.Min)
	assert.Equal(t, time.Second, p.Max)
	assert.Equal(t, 100*time.Millisecond, p.Target)
	assert.Equal(t, resave.DefaultStepUp, p.StepUp)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"KVR_BACKEND": "etcd"}},
		{"zero chunk size", map[string]string{"KVR_SCAN_CHUNK_SIZE": "0"}},
		{"negative rate", map[string]string{"KVR_MAX_KEYS_PER_SEC": "-1"}},
		{"inverted pacing", map[string]string{"KVR_PACING_MIN": "300ms", "KVR_PACING_MAX": "100ms"}},
		{"bad duration", map[string]string{"KVR_PACING_TARGET": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
