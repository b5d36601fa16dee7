package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bazaar/pkg/api"
	"github.com/platinummonkey/bazaar/pkg/audit"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/config"
	"github.com/platinummonkey/bazaar/pkg/federation"
	"github.com/platinummonkey/bazaar/pkg/gates"
	"github.com/platinummonkey/bazaar/pkg/install"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/publish"
	"github.com/platinummonkey/bazaar/pkg/review"
	"github.com/platinummonkey/bazaar/pkg/storage"
	"github.com/platinummonkey/bazaar/pkg/tenants"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bazaar: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting bazaar registry")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer otelProviders.Shutdown(context.Background())

	metrics := observability.NewMetrics(nil)

	// Catalog database
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := catalog.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.WithField("driver", cfg.Database.Driver).Info("database ready")

	// Optional redis cache layer
	var redisClient *redis.Client
	if cfg.Cache.Enabled && cfg.Cache.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisURL,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		defer redisClient.Close()
	}

	var store catalog.Store = catalog.NewSQLStore(db)
	if cfg.Cache.Enabled {
		cacheOpts := []catalog.CacheOption{
			catalog.WithTTL(cfg.Cache.TTL),
			catalog.WithCacheMetrics(metrics),
		}
		if redisClient != nil {
			cacheOpts = append(cacheOpts, catalog.WithRedis(redisClient))
		}
		cached, err := catalog.NewCachedStore(store, cfg.Cache.L1Size, cacheOpts...)
		if err != nil {
			return fmt.Errorf("failed to build catalog cache: %w", err)
		}
		store = cached
	}

	// Content snapshot store
	var content storage.ContentStore
	switch cfg.Content.Type {
	case "s3":
		content, err = storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:     cfg.Content.S3Endpoint,
			Region:       cfg.Content.S3Region,
			Bucket:       cfg.Content.S3Bucket,
			AccessKey:    cfg.Content.S3AccessKey,
			SecretKey:    cfg.Content.S3SecretKey,
			UsePathStyle: cfg.Content.S3UsePathStyle,
		})
	default:
		content, err = storage.NewFileSystemStore(cfg.Content.FilesystemRoot)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}

	// Provenance
	provStore := provenance.NewSQLStore(db)
	var signer *provenance.Ed25519Signer
	if cfg.Signing.SealSeed != "" {
		seed, err := hex.DecodeString(cfg.Signing.SealSeed)
		if err != nil {
			return fmt.Errorf("failed to decode seal seed: %w", err)
		}
		signer, err = provenance.NewEd25519SignerFromSeed(seed)
		if err != nil {
			return fmt.Errorf("failed to build chain signer: %w", err)
		}
	} else {
		signer, err = provenance.NewEd25519Signer()
		if err != nil {
			return fmt.Errorf("failed to generate chain signer: %w", err)
		}
		logger.Warn("using an ephemeral seal key; set BAZAAR_SEAL_SEED to verify chains across restarts")
	}
	tracker := provenance.NewTracker(provStore, signer)

	// Gate rules, with hot reload when a rules file is configured
	pipelineLogger := logrus.New()
	rules := gates.DefaultRules()
	if cfg.Gates.RulesPath != "" {
		rules, err = gates.LoadRules(cfg.Gates.RulesPath, pipelineLogger)
		if err != nil {
			return fmt.Errorf("failed to load gate rules: %w", err)
		}
		rulesStop := make(chan struct{})
		defer close(rulesStop)
		go func() {
			if err := rules.Watch(cfg.Gates.RulesPath, rulesStop); err != nil {
				logger.WithError(err).Error("gate rules watcher stopped")
			}
		}()
	}

	// Publisher keyring
	keyring := publish.NewMemoryKeyring()
	if cfg.Signing.KeyringPath != "" {
		keyring, err = publish.LoadKeyring(cfg.Signing.KeyringPath)
		if err != nil {
			return fmt.Errorf("failed to load keyring: %w", err)
		}
	}

	// Audit trail
	auditLogger, closeAudit, err := buildAuditLogger(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to initialize audit trail: %w", err)
	}
	defer closeAudit()

	// Services
	tenantService := tenants.NewSQLService(db)
	publishService := publish.NewService(store, content, tracker, rules, keyring,
		publish.WithAudit(auditLogger),
		publish.WithLogger(pipelineLogger),
		publish.WithMetrics(metrics),
		publish.WithPipelineOptions(
			gates.WithWorkers(cfg.Gates.Workers),
			gates.WithGateTimeout(cfg.Gates.GateTimeout),
		),
	)
	reviewService := review.NewService(store, auditLogger, metrics)
	installManager := install.NewManager(store, content, tracker, tenantService, auditLogger, metrics)

	var central federation.CentralClient
	if cfg.Federation.CentralURL != "" {
		central = federation.NewHTTPClient(cfg.Federation.CentralURL,
			federation.WithToken(cfg.Federation.CentralToken))
	} else {
		central = federation.NewLocalClient(store, content, provStore)
	}
	engine := federation.NewEngine(store, content, provStore, tracker, central,
		federation.WithBatchLimit(cfg.Federation.BatchLimit),
		federation.WithAudit(auditLogger),
		federation.WithLogger(pipelineLogger),
		federation.WithMetrics(metrics),
	)

	health := observability.NewHealthChecker(db, redisClient)

	registrars := []api.RouteRegistrar{
		catalog.NewHandlers(store, auditLogger, logger),
		publish.NewHandlers(publishService, logger),
		review.NewHandlers(reviewService, logger),
		install.NewHandlers(installManager, logger),
		federation.NewHandlers(engine, central, logger),
		api.NewTenantHandlers(tenantService, logger),
		api.NewProvenanceHandlers(tracker, store, logger),
	}

	var serverOpts []api.ServerOption
	if cfg.Observability.OTelEnabled {
		serverOpts = append(serverOpts, api.WithTracing(cfg.Observability.OTelServiceName))
	}
	server := api.NewServer(cfg.Server, logger, metrics, health, registrars, serverOpts...)

	errCh := server.Start()
	logger.WithField("port", cfg.Server.Port).Info("registry listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildAuditLogger assembles the configured audit sink chain.
func buildAuditLogger(cfg *config.Config, db *sql.DB) (audit.Logger, func(), error) {
	noop := func() {}
	switch cfg.Audit.Sink {
	case "db":
		l, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, noop, err
		}
		return l, noop, nil
	case "file":
		l, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.FilePath,
			MaxSize:  cfg.Audit.MaxFileSize,
		})
		if err != nil {
			return nil, noop, err
		}
		return l, func() { l.Close() }, nil
	case "both":
		dbl, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, noop, err
		}
		fl, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.FilePath,
			MaxSize:  cfg.Audit.MaxFileSize,
		})
		if err != nil {
			return nil, noop, err
		}
		return audit.NewMultiLogger(dbl, fl), func() { fl.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown audit sink: %s", cfg.Audit.Sink)
	}
}
