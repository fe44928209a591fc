package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/modelrelay/relay/internal/config"
	"github.com/modelrelay/relay/internal/discovery"
	"github.com/modelrelay/relay/internal/gateway"
	"github.com/modelrelay/relay/internal/keys"
	"github.com/modelrelay/relay/internal/platform/logger"
	"github.com/modelrelay/relay/internal/platform/otel"
	"github.com/modelrelay/relay/internal/platform/version"
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/custom"
	"github.com/modelrelay/relay/internal/server"
	"github.com/modelrelay/relay/internal/usage"
	"github.com/modelrelay/relay/internal/usage/sqlite"

	// Adapter packages self-register through init().
	_ "github.com/modelrelay/relay/internal/provider/anthropic"
	_ "github.com/modelrelay/relay/internal/provider/google"
	_ "github.com/modelrelay/relay/internal/provider/groq"
	_ "github.com/modelrelay/relay/internal/provider/openai"
	_ "github.com/modelrelay/relay/internal/provider/openrouter"
)

// defaultProviderTypes is the zero-config lineup. Each type with a
// credential in the environment becomes routable on startup.
var defaultProviderTypes = []string{"openai", "anthropic", "google", "groq", "openrouter"}

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer("relay", log, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	go version.CheckForUpdates(ctx, log)

	registry := buildRegistry(log, cfg)
	keyChain := buildKeyChain(cfg)
	recorder, usageReader, closeUsage := buildUsage(ctx, log, cfg)
	defer closeUsage()

	service := gateway.NewService(log, registry, keyChain, recorder, &http.Client{}, cfg.Upstream.Timeout)

	if cfg.Discovery.Enabled {
		source := &discovery.HTTPSource{Keys: keyChain}
		refresher := discovery.NewRefresher(log, registry, source, cfg.Discovery.Interval, cfg.Discovery.SnapshotDir)
		refresher.Start(ctx)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.New(cfg, log, service, usageReader).Handler(),
	}

	go func() {
		log.Info("Starting relay", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func buildRegistry(log *zap.Logger, cfg *config.Config) *provider.Registry {
	registry := provider.NewRegistry()

	providerConfigs := cfg.Providers
	if len(providerConfigs) == 0 {
		for _, t := range defaultProviderTypes {
			providerConfigs = append(providerConfigs, config.ProviderConfig{
				Type:     t,
				Provider: provider.Config{ID: t, Enabled: true},
			})
		}
	}

	for _, pc := range providerConfigs {
		adapter, err := provider.New(pc.Type, pc.Provider)
		if err != nil {
			log.Error("Failed to create provider", zap.String("id", pc.Provider.ID), zap.String("type", pc.Type), zap.Error(err))
			continue
		}
		registry.Register(adapter)
		log.Info("Registered provider", zap.String("id", adapter.ID()), zap.String("type", pc.Type))
	}

	for _, def := range cfg.CustomProviders {
		adapter, err := custom.New(def)
		if err != nil {
			log.Error("Failed to compile custom provider", zap.String("id", def.ID), zap.Error(err))
			continue
		}
		registry.Register(adapter)
		log.Info("Registered custom provider", zap.String("id", def.ID))
	}

	return registry
}

func buildKeyChain(cfg *config.Config) keys.Provider {
	chain := keys.Chain{
		&keys.Static{Keys: cfg.StaticKeys()},
		&keys.Env{},
	}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		chain = append(chain, &keys.Redis{Client: client, Prefix: cfg.Redis.KeyPrefix})
	}
	return chain
}

func buildUsage(ctx context.Context, log *zap.Logger, cfg *config.Config) (usage.Recorder, usage.Reader, func()) {
	if cfg.Usage.DSN == "" {
		return &usage.LogRecorder{Logger: log}, nil, func() {}
	}

	store, err := sqlite.New(cfg.Usage.DSN)
	if err != nil {
		log.Error("Usage store unavailable, falling back to log-only accounting", zap.Error(err))
		return &usage.LogRecorder{Logger: log}, nil, func() {}
	}

	ingestor := usage.NewIngestor(log, store)
	ingestor.Start(ctx)
	return ingestor, store, func() {
		ingestor.Stop()
		_ = store.Close()
	}
}
