// Package main is the entry point for the CMS admin server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/cmsadmin/internal/blob"
	"github.com/pitabwire/cmsadmin/internal/capability"
	"github.com/pitabwire/cmsadmin/internal/catalog"
	"github.com/pitabwire/cmsadmin/internal/config"
	"github.com/pitabwire/cmsadmin/internal/form"
	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/internal/store"
	"github.com/pitabwire/cmsadmin/internal/transport"
	"github.com/pitabwire/cmsadmin/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "cmsadmin", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Open the collection store.
	backend, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("collection store initialization failed", zap.Error(err))
		return 1
	}
	defer backend.Close()

	// Step 5: Seed collection documents from YAML.
	seeder := catalog.NewSeeder(backend.Store, logger.Named("seed"), cfg.Seed.Overwrite)
	applySeeds := func(ctx context.Context, seeds []catalog.Seed) error {
		_, err := seeder.Apply(ctx, seeds)
		metrics.RecordSeedApply(err)
		return err
	}
	if len(cfg.Seed.Directories) > 0 {
		seeds, err := catalog.NewLoader().LoadAll(cfg.Seed.Directories)
		if err != nil {
			logger.Error("seed loading failed", zap.Error(err))
			return 1
		}
		for _, p := range catalog.Check(seeds, cfg.Locales) {
			logger.Warn("seed problem", zap.String("problem", p.String()))
		}
		if err := applySeeds(ctx, seeds); err != nil {
			logger.Error("seeding failed", zap.Error(err))
			return 1
		}
	}

	// Step 6: Build the collection catalog.
	registry := catalog.NewRegistry(cfg.Locales, cfg.Catalog.ViewTTL)

	// Step 7: Initialize file storage (optional).
	fileStore, err := buildFileStore(cfg.Storage, logger)
	if err != nil {
		logger.Error("file storage initialization failed", zap.Error(err))
		return 1
	}

	// Step 8: Initialize capability resolver.
	policy, roles, err := buildAccessPolicy(cfg.Access)
	if err != nil {
		logger.Error("access policy initialization failed", zap.Error(err))
		return 1
	}
	capResolver := capability.NewResolver(policy, cfg.Access.CacheTTL).WithRecorder(metrics)

	// Step 9: Build HTTP router.
	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)
	sessions := form.NewSessions(form.NewCodec(cfg.Locales), backend.Store, cfg.Forms.SessionTTL)

	readiness := observability.ReadinessChecks{CatalogLoaded: registry.Loaded}
	if backend.Pool != nil {
		readiness.Store = observability.CheckFunc(backend.Pool.Ping)
	}
	if backend.Cache != nil {
		readiness.DocumentCache = observability.CheckFunc(backend.Cache.Ping)
	}

	deps := transport.Dependencies{
		Config:             cfg,
		Logger:             logger,
		Metrics:            metrics,
		Authenticate:       transport.JWTAuthenticator(cfg.Identity, jwks.GetKey),
		CapabilityResolver: capResolver,
		Readiness:          readiness,
		Catalog:            registry,
		Sessions:           sessions,
	}
	if fileStore != nil {
		deps.Storage = fileStore
		deps.Files = fileStore
		deps.Readiness.FileStorage = observability.CheckFunc(fileStore.Ping)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      transport.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start background tasks.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return catalog.Watch(gctx, registry, backend.Store, catalog.WatchOptions{
			Logger:      logger.Named("catalog"),
			Resubscribe: cfg.Catalog.Resubscribe,
			OnReload: func(int, string) {
				metrics.RecordCatalogReload(registry.Len(), registry.Skipped())
			},
		})
	})

	if cfg.Seed.Watch && len(cfg.Seed.Directories) > 0 {
		watcher := &catalog.SeedWatcher{
			Dirs:     cfg.Seed.Directories,
			Loader:   catalog.NewLoader(),
			Apply:    applySeeds,
			Debounce: cfg.Seed.Debounce,
			Logger:   logger.Named("seed"),
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if roles != nil {
		g.Go(func() error {
			reloadPolicyOnHangup(gctx, roles, capResolver, logger)
			return nil
		})
	}

	// Step 11: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("storage", fileStore != nil),
	)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Wait for shutdown signal or a failed background task.
	<-gctx.Done()
	logger.Info("shutdown initiated")

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	code := 0
	if err := g.Wait(); err != nil {
		logger.Error("background task failed", zap.Error(err))
		code = 1
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return code
}

// buildFileStore creates the filesystem blob store. Returns nil when file
// storage is disabled.
func buildFileStore(cfg config.StorageConfig, logger *zap.Logger) (*blob.FSStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	secret := config.Env(cfg.SigningSecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("%s environment variable not set", cfg.SigningSecretEnv)
	}
	signer, err := blob.NewURLSigner(secret, cfg.URLTTL)
	if err != nil {
		return nil, err
	}
	return blob.NewFSStore(cfg.Root, signer, blob.FSOptions{
		BaseURL:           cfg.PublicURL,
		MaxUpload:         cfg.MaxUpload,
		DeleteConcurrency: cfg.DeleteConcurrency,
		Logger:            logger.Named("blob"),
	})
}

// buildAccessPolicy combines the built-in access rules with the optional
// role policy file. The role policy is returned separately so it can be
// reloaded.
func buildAccessPolicy(cfg config.AccessConfig) (*capability.AccessPolicy, *capability.StaticPolicy, error) {
	defaults := make(model.CapabilitySet, len(cfg.DefaultCapabilities))
	for _, c := range cfg.DefaultCapabilities {
		defaults[c] = true
	}
	policy := &capability.AccessPolicy{
		DenyFilter:  cfg.DenyFilter,
		AdminClaim:  cfg.AdminClaim,
		AdminDomain: cfg.AdminDomain,
		Default:     defaults,
	}
	if cfg.StaticPolicyFile == "" {
		return policy, nil, nil
	}
	roles, err := capability.NewStaticPolicy(cfg.StaticPolicyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("static policy: %w", err)
	}
	policy.Roles = roles
	return policy, roles, nil
}

// reloadPolicyOnHangup re-reads the role policy file on SIGHUP and drops
// cached capability sets.
func reloadPolicyOnHangup(ctx context.Context, roles *capability.StaticPolicy, resolver *capability.Resolver, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := roles.Sync(); err != nil {
				logger.Error("policy reload failed", zap.Error(err))
				continue
			}
			resolver.Flush()
			logger.Info("policy reloaded", zap.Int("roles", roles.Roles()))
		}
	}
}
