package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/cache"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/metrics"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/repository/sqlstore"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/service"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/storage"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

// App holds the wired planning service and the infrastructure behind it.
type App struct {
	Config   *config.Config
	Planning *service.PlanningService
	DB       *sqlstore.DB
	Cache    cache.PlanCache
	Store    storage.ObjectStorage
	Metrics  *metrics.Recorder
	Registry *prometheus.Registry
}

// New connects every configured collaborator. Optional collaborators (cache,
// object storage) that fail to start are logged and left out; a configured
// database that cannot be reached is an error.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Planner.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planner parameters: %w", err)
	}

	app := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(app.Registry)

	opts := []service.Option{service.WithMetrics(app.Metrics)}

	if cfg.Database.Driver != "" && cfg.Database.Driver != "none" {
		db, err := sqlstore.NewDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		applied, err := db.Migrate(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		if applied > 0 {
			logger.Log.Info().Int("migrations", applied).Str("driver", db.Driver()).Msg("database migrated")
		}
		app.DB = db
		opts = append(opts, service.WithRepository(sqlstore.NewPlanRunRepository(db)))
	}

	planCache, err := cache.NewPlanCache(ctx, cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("plan cache disabled")
		planCache = cache.NewNoopPlanCache()
	}
	app.Cache = planCache
	opts = append(opts, service.WithCache(planCache))

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Warn().Err(err).Str("backend", cfg.Storage.Backend).Msg("object storage disabled")
	} else if store != nil {
		app.Store = store
		opts = append(opts, service.WithStorage(store, cfg.Storage.Prefix))
	}

	app.Planning = service.NewPlanningService(cfg.Planner, opts...)
	return app, nil
}

// Close releases the cache and database connections.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
