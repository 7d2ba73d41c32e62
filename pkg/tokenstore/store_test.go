package tokenstore

import (
	"context"
	"testing"

	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "default file config", mutate: func(c *Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.Key = "" }, errorMsg: "key is required"},
		{name: "missing dir", mutate: func(c *Config) { c.Dir = "" }, errorMsg: "directory is required"},
		{name: "redis without url", mutate: func(c *Config) { c.Type = BackendRedis }, errorMsg: "redis URL is required"},
		{name: "sql without dsn", mutate: func(c *Config) { c.Type = BackendSQL }, errorMsg: "SQL DSN is required"},
		{
			name: "sql bad driver",
			mutate: func(c *Config) {
				c.Type = BackendSQL
				c.SQLDSN = "x"
				c.SQLDriver = "mysql"
			},
			errorMsg: "invalid SQL driver",
		},
		{name: "unknown type", mutate: func(c *Config) { c.Type = "s3" }, errorMsg: "invalid token store type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestOpen_File(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()

	store, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, BackendFile, store.Backend())
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = "nope"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	fs, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	store := Instrument(fs, metrics, nil)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Save(ctx, "tok"))
	require.NoError(t, store.Delete(ctx))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TokenStoreOperationsTotal.WithLabelValues("load", BackendFile, "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TokenStoreOperationsTotal.WithLabelValues("save", BackendFile, "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TokenStoreOperationsTotal.WithLabelValues("delete", BackendFile, "success")))
	assert.Equal(t, BackendFile, store.Backend())
}
