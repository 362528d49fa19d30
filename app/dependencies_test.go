package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vitalis-health/ai-routing/config"
)

func TestNewDependencies(t *testing.T) {
	t.Run("successful initialization without database", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.AuditLogs)

		assert.NotNil(t, deps.Registry)
		assert.NotNil(t, deps.Monitor)
		assert.NotNil(t, deps.Cache)
		assert.NotNil(t, deps.Audit)
		assert.NotNil(t, deps.Router)
		assert.NotNil(t, deps.Metrics)
		assert.NotNil(t, deps.MetricsHandler)

		// Catalog providers end up in the registry and are tracked by the
		// health monitor.
		assert.Contains(t, deps.Router.GetAvailableProviders(), "provider-alpha")
		_, ok := deps.Monitor.Health("provider-alpha")
		assert.True(t, ok)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("missing catalog registers no providers", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Providers.CatalogPath = filepath.Join(t.TempDir(), "missing.json")
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(context.Background(), cfg, logger)
		require.NoError(t, err)
		assert.Empty(t, deps.Registry.ListAll())

		assert.NoError(t, deps.Close(context.Background()))
	})

	t.Run("invalid catalog fails", func(t *testing.T) {
		cfg := testConfig(t)
		path := filepath.Join(t.TempDir(), "providers.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"providers":[{}]}`), 0o600))
		cfg.Providers.CatalogPath = path
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(context.Background(), cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize providers")
	})

	t.Run("database connection failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database = &config.DatabaseConfig{
			Host:            "invalid-host-that-does-not-exist",
			Port:            5432,
			User:            "vitalis",
			Password:        "vitalis",
			Database:        "vitalis_test",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		}
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(context.Background(), cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize database")
	})
}

func TestDependencies_CacheService(t *testing.T) {
	t.Run("enabled cache", func(t *testing.T) {
		cfg := testConfig(t)
		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.NotNil(t, deps.CacheService())
	})

	t.Run("disabled cache returns nil interface", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cache.Enabled = false
		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.Nil(t, deps.Cache)
		assert.Nil(t, deps.CacheService())
	})
}

func TestDependencies_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observability.MetricsEnabled = false

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(context.Background())

	assert.NotNil(t, deps.Metrics)
	assert.Nil(t, deps.MetricsHandler)
}

func TestDependencies_SQLDB(t *testing.T) {
	cfg := testConfig(t)
	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(context.Background())

	assert.Nil(t, deps.SQLDB())
}

func TestDependenciesClose(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NoError(t, deps.Close(ctx))
	})
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	catalog := `{
  "providers": [
    {
      "provider": {
        "id": "provider-alpha",
        "name": "Provider Alpha",
        "enabled": true,
        "models": [
          {
            "name": "alpha-chat",
            "cost_per_1k_input": 0.01,
            "cost_per_1k_output": 0.03,
            "max_tokens": 4096
          }
        ],
        "compliance": ["lgpd"]
      },
      "endpoint": {
        "base_url": "http://127.0.0.1:1",
        "api_key_env": "ALPHA_API_KEY"
      }
    }
  ]
}`
	path := filepath.Join(t.TempDir(), "providers.json")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
		Providers: config.ProvidersConfig{
			CatalogPath: path,
		},
		Router: config.RouterConfig{
			MaxFallbacks:              2,
			AttemptTimeout:            30 * time.Second,
			UrgentAttemptTimeout:      15 * time.Second,
			EmergencyAttemptTimeout:   5 * time.Second,
			CacheWriteCostCeiling:     0.10,
			EmergencyLatencyCeilingMs: 2000,
		},
		Cache: config.CacheConfig{
			Enabled:             true,
			MaxEntries:          100,
			SimilarityThreshold: 0.85,
			DefaultTTL:          time.Hour,
			CleanupSchedule:     "@every 5m",
			AvgMissCost:         0.02,
		},
		Health: config.HealthConfig{
			FailureThreshold: 5,
			Cooldown:         60 * time.Second,
			ProbeInterval:    time.Hour,
			ProbeTimeout:     5 * time.Second,
		},
		Embedding: config.EmbeddingConfig{
			Dimensions: 64,
			CacheSize:  100,
		},
		Audit: config.AuditConfig{
			BufferSize:  100,
			WorkerCount: 2,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}
