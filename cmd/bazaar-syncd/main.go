package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bazaar/pkg/audit"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/compatibility"
	"github.com/platinummonkey/bazaar/pkg/config"
	"github.com/platinummonkey/bazaar/pkg/federation"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/storage"
	"github.com/platinummonkey/bazaar/pkg/tenants"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bazaar-syncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	logger.Info("starting bazaar sync daemon")

	ctx := context.Background()

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

	store := catalog.NewSQLStore(db)
	provStore := provenance.NewSQLStore(db)

	// The daemon must verify chains the registry sealed, so it needs the same
	// seal seed. Without one every promote/pull item fails verification.
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
		logger.Warn("no BAZAAR_SEAL_SEED set; chains sealed by the registry will fail verification")
	}
	tracker := provenance.NewTracker(provStore, signer)

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return fmt.Errorf("failed to initialize audit trail: %w", err)
	}

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
		federation.WithLogger(logger),
		federation.WithMetrics(observability.NewMetrics(nil)),
	)

	tenantService := tenants.NewSQLService(db)

	// An explicit pull level enables pull cycles for every tenant; without one
	// the daemon only promotes.
	var syncs []federation.TenantSync
	if cfg.Federation.PullLevel != "" {
		level := compatibility.ImpactLevel(cfg.Federation.PullLevel)
		if !level.IsValid() {
			return fmt.Errorf("invalid pull level: %s", cfg.Federation.PullLevel)
		}
		all, err := tenantService.ListTenants(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tenants: %w", err)
		}
		for _, t := range all {
			syncs = append(syncs, federation.TenantSync{TenantID: t.ID, Level: level})
		}
	}

	scheduler := federation.NewScheduler(engine, tenantService, logger)
	if err := scheduler.Start(cfg.Federation.PromoteCron, cfg.Federation.PullCron, syncs); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"promote_cron": cfg.Federation.PromoteCron,
		"pull_cron":    cfg.Federation.PullCron,
		"tenants":      len(syncs),
	}).Info("sync schedules registered")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutting down")

	scheduler.Stop()
	logger.Info("shutdown complete")
	return nil
}
