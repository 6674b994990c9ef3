package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	httpapi "github.com/wdb/iiifgate/internal/gate/http"
	"github.com/wdb/iiifgate/internal/gate/service"
	"github.com/wdb/iiifgate/internal/gate/session"
	"github.com/wdb/iiifgate/internal/gate/store"
	"github.com/wdb/iiifgate/internal/gate/store/drivers/sqlite"
	"github.com/wdb/iiifgate/pkg/clock"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
	"github.com/wdb/iiifgate/pkg/slogx"
)

// BuildVersion is set at build time with
// -ldflags "-X github.com/wdb/iiifgate/internal/gate/app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// Application encapsulates the gate service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	codec    *iiiftoken.Codec
	registry *prometheus.Registry

	// Session sources
	redis    *redis.Client
	table    *session.SQLTable
	resolver *session.Resolver
	backends []httpapi.Pinger

	// Services
	decisionService     *service.DecisionService
	refreshService      *service.RefreshService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router

	// closers run in reverse order on Shutdown.
	closers []io.Closer
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "iiifgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: prometheus.NewRegistry(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initSeed(context.Background()); err != nil {
		app.close()
		return nil, err
	}

	app.codec = iiiftoken.NewCodec(InitSecret(cfg, app.logger), clock.Real())

	if err := app.initSessions(); err != nil {
		app.close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler serving all gate endpoints.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("iiifgate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.stopHousekeeping()
			app.close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func (app *Application) stopHousekeeping() {
	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down iiifgate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopHousekeeping()

	if err := app.close(); err != nil {
		return err
	}

	app.logger.Info("iiifgate stopped")
	return nil
}

// close releases session sources and the database, newest first.
func (app *Application) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error("error closing dependency", "error", err)
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

// initDatabase opens the SQLite database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	if err := db.ApplyMigrations(); err != nil {
		app.close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSeed upserts the optional seed file.
func (app *Application) initSeed(ctx context.Context) error {
	if app.cfg.SeedFile == "" {
		return nil
	}

	f, err := service.LoadSeedFile(app.cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}
	if err := (&service.SeedService{Store: app.db}).Apply(ctx, f); err != nil {
		return fmt.Errorf("failed to apply seed file: %w", err)
	}

	app.logger.Info("seed file applied",
		"path", app.cfg.SeedFile,
		"subsystems", len(f.Subsystems),
		"principals", len(f.Principals),
		"pages", len(f.Pages),
		"sessions", len(f.Sessions),
	)
	return nil
}

// initSessions wires the session reader (Redis, optional) and the raw
// session table (local database, MySQL or Postgres).
func (app *Application) initSessions() error {
	var reader session.Reader
	if app.cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		app.closers = append(app.closers, app.redis)

		rr := session.NewRedisReader(app.redis, app.cfg.RedisPrefix)
		reader = rr
		app.backends = append(app.backends, rr)
		app.logger.Info("redis session reader enabled", "addr", app.cfg.RedisAddr, "prefix", app.cfg.RedisPrefix)
	}

	var raw session.RawStore
	switch app.cfg.SessionDriver {
	case SessionDriverMySQL, SessionDriverPostgres:
		table, err := session.OpenSQLTable(app.cfg.SessionDriver, app.cfg.SessionDSN)
		if err != nil {
			return fmt.Errorf("failed to open session table: %w", err)
		}
		app.table = table
		app.closers = append(app.closers, table)
		app.backends = append(app.backends, table)
		raw = table
		app.logger.Info("external session table enabled", "driver", app.cfg.SessionDriver)
	default:
		raw = app.db.Sessions()
	}

	app.resolver = session.NewResolver(reader, raw)
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(app.registry)

	app.decisionService = &service.DecisionService{
		Store:         app.db,
		Codec:         app.codec,
		Sessions:      app.resolver,
		SessionCookie: app.cfg.SessionCookie,
		Metrics:       metrics,
	}

	app.refreshService = &service.RefreshService{
		Store:       app.db,
		Codec:       app.codec,
		TTL:         app.cfg.TokenTTL,
		Param:       app.cfg.TokenParam,
		RefreshPath: app.cfg.RefreshPath,
		Metrics:     metrics,
	}

	// Pruning is opt-in: the local sessions table is only the gate's to
	// clean when an operator mirrors sessions into it.
	if app.cfg.SessionMaxAge > 0 && app.cfg.ownsSessions() {
		app.housekeepingService = service.NewHousekeepingService(
			app.db,
			app.logger,
			app.cfg.HousekeepingInterval,
			app.cfg.SessionMaxAge,
		)
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.codec, app.logger)

	router.DecisionService = app.decisionService
	router.RefreshService = app.refreshService
	router.Sessions = app.resolver
	router.SessionCookie = app.cfg.SessionCookie
	router.SessionBackends = app.backends
	router.Gatherer = app.registry
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
