package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitalis-health/ai-routing/config"
	"github.com/vitalis-health/ai-routing/handlers"
	"github.com/vitalis-health/ai-routing/internal/observability"
	"github.com/vitalis-health/ai-routing/internal/providers"
	"github.com/vitalis-health/ai-routing/repositories"
	"github.com/vitalis-health/ai-routing/repositories/postgres"
	"github.com/vitalis-health/ai-routing/services/audit"
	"github.com/vitalis-health/ai-routing/services/cache"
	"github.com/vitalis-health/ai-routing/services/embedding"
	"github.com/vitalis-health/ai-routing/services/health"
	"github.com/vitalis-health/ai-routing/services/registry"
	"github.com/vitalis-health/ai-routing/services/router"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB

	// Repositories
	AuditLogs repositories.AuditRepository

	// Services
	Registry  *registry.Registry
	Monitor   *health.Monitor
	Cache     *cache.SemanticCache
	Audit     *audit.Service
	Transport *providers.HTTPTransport
	Router    *router.Router

	// Observability
	Metrics        observability.Metrics
	MetricsHandler http.Handler
}

// CacheService returns the semantic cache for route wiring, or a nil
// interface when caching is disabled.
func (d *Dependencies) CacheService() handlers.CacheService {
	if d.Cache == nil {
		return nil
	}
	return d.Cache
}

// SQLDB returns the raw connection pool for the readiness probe, or nil
// when no database is configured.
func (d *Dependencies) SQLDB() *sql.DB {
	if d.DB == nil {
		return nil
	}
	return d.DB.DB
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics(cfg)

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAudit(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initCache(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize semantic cache: %w", err)
	}

	deps.initRouter(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initMetrics sets up the Prometheus collector, or a no-op when metrics
// are disabled.
func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NopMetrics{}
		return
	}
	prom := observability.NewPrometheusMetrics()
	d.Metrics = prom
	d.MetricsHandler = prom.Handler()
}

// initDatabase connects the optional audit trail database. When no
// database is configured the audit trail degrades to the log sink.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Warn("no database configured, audit trail persistence disabled")
		return nil
	}

	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.AuditLogs = postgres.NewAuditRepository(db, d.Logger)
	return nil
}

// initAudit starts the async audit service. Events always reach the log
// sink; the repository sink is added when a database is configured.
func (d *Dependencies) initAudit(cfg *config.Config) error {
	sinks := []audit.Sink{audit.NewZapSink(d.Logger)}
	if d.AuditLogs != nil {
		sinks = append(sinks, audit.NewRepositorySink(d.AuditLogs))
	}

	d.Audit = audit.NewService(audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	}, d.Logger, sinks...)

	return d.Audit.Start()
}

// initProviders loads the provider catalog, wires the HTTP transport and
// starts the health monitor's probe loop.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	d.Registry = registry.NewRegistry(d.Logger)

	var endpoints map[string]providers.Endpoint
	catalog, err := providers.LoadCatalog(cfg.Providers.CatalogPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.Logger.Warn("provider catalog not found, no providers registered",
			zap.String("path", cfg.Providers.CatalogPath))
	case err != nil:
		return fmt.Errorf("failed to load provider catalog: %w", err)
	default:
		endpoints = catalog.Endpoints()
	}

	d.Transport = providers.NewHTTPTransport(endpoints, d.Logger)

	lister := func() []string {
		configs := d.Registry.ListEnabled()
		ids := make([]string, 0, len(configs))
		for _, p := range configs {
			ids = append(ids, p.ID)
		}
		return ids
	}
	d.Monitor = health.NewMonitor(health.Config{
		FailureThreshold: cfg.Health.FailureThreshold,
		Cooldown:         cfg.Health.Cooldown,
		ProbeInterval:    cfg.Health.ProbeInterval,
		ProbeTimeout:     cfg.Health.ProbeTimeout,
	}, d.Transport, lister, d.Logger)
	d.Registry.OnRegister(d.Monitor.Track)

	if catalog != nil {
		for _, pc := range catalog.Configs() {
			pc := pc
			if err := d.Registry.Register(&pc); err != nil {
				return fmt.Errorf("failed to register provider %s: %w", pc.ID, err)
			}
		}
	}

	if len(d.Registry.ListAll()) == 0 {
		d.Logger.Warn("no AI providers registered")
	}

	d.Monitor.Start()
	return nil
}

// initCache builds the embedding index and the semantic cache, and starts
// the periodic expiry sweep.
func (d *Dependencies) initCache(cfg *config.Config) error {
	if !cfg.Cache.Enabled {
		d.Logger.Info("semantic cache disabled")
		return nil
	}

	embedder := embedding.NewLocalEmbedder(cfg.Embedding.Dimensions)
	index := embedding.NewIndex(embedder, cfg.Embedding.CacheSize)

	d.Cache = cache.NewSemanticCache(cache.Config{
		MaxEntries:          cfg.Cache.MaxEntries,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		DefaultTTL:          cfg.Cache.DefaultTTL,
		CleanupSchedule:     cfg.Cache.CleanupSchedule,
		AvgMissCost:         cfg.Cache.AvgMissCost,
	}, index, d.Logger)

	return d.Cache.StartCleanupScheduler()
}

func (d *Dependencies) initRouter(cfg *config.Config) {
	d.Router = router.NewRouter(router.Config{
		MaxFallbacks:              cfg.Router.MaxFallbacks,
		AttemptTimeout:            cfg.Router.AttemptTimeout,
		UrgentAttemptTimeout:      cfg.Router.UrgentAttemptTimeout,
		EmergencyAttemptTimeout:   cfg.Router.EmergencyAttemptTimeout,
		CacheWriteCostCeiling:     cfg.Router.CacheWriteCostCeiling,
		EmergencyLatencyCeilingMs: cfg.Router.EmergencyLatencyCeilingMs,
	}, d.Registry, d.Monitor, d.Cache, d.Transport, d.Audit, d.Logger)
}

// Close gracefully shuts down all dependencies.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Cache != nil {
		d.Cache.StopCleanupScheduler()
	}

	if d.Monitor != nil {
		d.Monitor.Stop()
	}

	if d.Audit != nil {
		if err := d.Audit.Stop(d.Config.Server.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain audit events: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
