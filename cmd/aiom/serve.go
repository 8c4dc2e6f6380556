package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/aiom/internal/assistant"
	"github.com/jkaninda/aiom/internal/companyview"
	"github.com/jkaninda/aiom/internal/config"
	"github.com/jkaninda/aiom/internal/gateway/httpapi"
	"github.com/jkaninda/aiom/internal/monitoring"
	"github.com/jkaninda/aiom/internal/observability"
	"github.com/jkaninda/aiom/internal/odoo"
	"github.com/jkaninda/aiom/internal/policy"
	"github.com/jkaninda/aiom/internal/ratelimit"
	"github.com/jkaninda/aiom/internal/storage"
	pgstore "github.com/jkaninda/aiom/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/aiom/internal/storage/sqlite"
	"github.com/jkaninda/aiom/internal/tools"
	goutils "github.com/jkaninda/go-utils"
)

const companyViewCacheTenants = 1024

var (
	serveConfigPath string
	servePort       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `aiom --config path` and `aiom serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen address (e.g. :8080)")
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(goutils.Env("AIOM_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if servePort != "" {
		cfg.Server.ListenAddr = servePort
	}

	logger.Info("starting aiom", slog.String("addr", cfg.Server.Addr()))

	// Observability. Metrics default on when no config block is present.
	if cfg.Observability == nil {
		cfg.Observability = &config.ObservabilityConfig{
			Metrics: &config.MetricsConfig{Enabled: true},
		}
	}
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	defer func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	}()

	// Storage (unified: SQLite default, PostgreSQL optional).
	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	tenantID, err := store.EnsureTenant(context.Background(), cfg.Tenant.Name())
	if err != nil {
		return fmt.Errorf("ensuring default tenant: %w", err)
	}
	logger.Info("tenant initialized",
		slog.String("tenant_name", cfg.Tenant.Name()),
		slog.String("tenant_id", tenantID.String()),
	)

	// Enroll the configured API-key users so their first request passes the
	// membership guard instead of dying with 403.
	for _, userID := range cfg.Server.APIKeyUserMapping {
		if err := store.EnsureMember(context.Background(), tenantID, userID, ""); err != nil {
			return fmt.Errorf("enrolling user %s in tenant %s: %w", userID, cfg.Tenant.Name(), err)
		}
		logger.Info("tenant member enrolled", slog.String("user_id", userID))
	}

	// Odoo ERP client (optional; company view degrades to 503 without it).
	var erp odoo.Client
	if cfg.Odoo.URL != "" {
		client := odoo.NewJSONRPCClient(odoo.Config{
			URL:      cfg.Odoo.URL,
			Database: cfg.Odoo.Database,
			Username: cfg.Odoo.Username,
			APIKey:   cfg.Odoo.APIKey,
			Timeout:  cfg.Odoo.Timeout(),
		}, logger)
		erp = client
		if obs != nil && obs.Metrics != nil {
			erp = observability.InstrumentOdooClient(client, obs.Metrics, obs.TracerOrNil())
		}
		logger.Info("odoo client initialized", slog.String("url", cfg.Odoo.URL))
	} else {
		logger.Warn("odoo not configured, company view disabled")
	}

	environment := goutils.Env("AIOM_ENV", "development")
	checker := monitoring.NewChecker(store, erp, version, environment, logger)

	// Company view aggregator with a short per-tenant snapshot cache.
	var aggregator *companyview.Aggregator
	if erp != nil {
		cache, err := companyview.NewCache(companyViewCacheTenants, companyview.SnapshotTTL)
		if err != nil {
			return fmt.Errorf("initializing company view cache: %w", err)
		}
		defer cache.Close()
		aggregator = companyview.NewAggregator(erp, cache, obs.MetricsOrNil(), logger)
	}

	// Tool registry, policy engine, and the assistant lifecycle service.
	registry := tools.NewRegistry()
	tools.RegisterAssistantTools(registry, checker)
	engine := policy.NewEngine(registry.IDs())
	service := assistant.NewService(store.Conversations(), store.ToolCalls(), registry, engine, logger)

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		BurstSize:         cfg.RateLimit.BurstSize,
	})

	gwCfg := httpapi.Config{
		ListenAddr:     cfg.Server.Addr(),
		EnableDocs:     cfg.Server.EnableDocs,
		APIKeys:        cfg.Server.APIKeyUserMapping,
		MaxRequestSize: cfg.Server.MaxRequestSizeBytes,
	}
	if obs != nil && obs.Metrics != nil {
		gwCfg.MetricsRegistry = obs.Metrics.Registry
		gwCfg.MetricsPath = cfg.Observability.Metrics.MetricsPath()
		gwCfg.Metrics = obs.Metrics
	}
	if ts := obs.TracerOrNil(); ts != nil {
		gwCfg.Tracer = ts.Tracer()
	}

	gw := httpapi.NewGateway(gwCfg, service, store.Tenants(), aggregator, checker, limiter, logger)

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("gateway shutdown", slog.String("error", err.Error()))
	}
	return nil
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	sc := cfg.StorageConfig()
	switch sc.Driver {
	case storage.DriverPostgres:
		db, err := pgstore.Open(pgstore.Config{
			DSN:             sc.Postgres.DSN,
			MaxOpenConns:    sc.Postgres.MaxOpenConns,
			MaxIdleConns:    sc.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(sc.Postgres.ConnMaxLifetimeS) * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		return pgstore.NewStore(db), nil
	case storage.DriverSQLite:
		return sqlitestore.Open(sqlitestore.Config{
			Path:        sc.SQLite.Path,
			JournalMode: sc.SQLite.JournalMode,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}
