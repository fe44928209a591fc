package discovery

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/modelrelay/relay/internal/provider"
)

// Refresher periodically re-lists every enabled provider's models and merges
// newly seen ids into the registry. Existing entries are never overwritten,
// so operator pricing and aliases survive refreshes. A rate limiter bounds
// how hard the upstream listing endpoints get hit regardless of interval.
type Refresher struct {
	logger      *zap.Logger
	registry    *provider.Registry
	source      Source
	interval    time.Duration
	limiter     *rate.Limiter
	snapshotDir string
}

func NewRefresher(logger *zap.Logger, registry *provider.Registry, source Source, interval time.Duration, snapshotDir string) *Refresher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Refresher{
		logger:   logger,
		registry: registry,
		source:   source,
		interval: interval,
		// at most one upstream listing per 2s, small burst for startup
		limiter:     rate.NewLimiter(rate.Every(2*time.Second), 3),
		snapshotDir: snapshotDir,
	}
}

func (r *Refresher) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RefreshAll(ctx)

	for {
		select {
		case <-ticker.C:
			r.RefreshAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RefreshAll refreshes every enabled provider once.
func (r *Refresher) RefreshAll(ctx context.Context) {
	for _, cfg := range r.registry.List() {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if err := r.RefreshProvider(ctx, cfg.ID); err != nil {
			r.logger.Warn("Model discovery failed",
				zap.String("provider", cfg.ID), zap.Error(err))
		}
	}
}

// RefreshProvider lists one provider's models, appends unseen ids to the
// registry, and snapshots the merged catalog.
func (r *Refresher) RefreshProvider(ctx context.Context, providerID string) error {
	adapter, ok := r.registry.Get(providerID)
	if !ok {
		return provider.ErrNotRegistered
	}

	discovered, err := r.source.ListModels(ctx, adapter)
	if err != nil {
		return err
	}

	configs := make([]provider.ModelConfig, 0, len(discovered))
	for _, d := range discovered {
		configs = append(configs, d.ToModelConfig())
	}

	added := adapter.AppendModels(configs)
	if added > 0 {
		r.logger.Info("Discovered new models",
			zap.String("provider", providerID), zap.Int("added", added))
	}

	if r.snapshotDir != "" {
		if err := r.snapshot(adapter); err != nil {
			r.logger.Warn("Snapshot write failed",
				zap.String("provider", providerID), zap.Error(err))
		}
	}
	return nil
}

// snapshot writes the provider's full model catalog as YAML, one file per
// provider, for operator inspection and as seed data for air-gapped runs.
func (r *Refresher) snapshot(adapter provider.Adapter) error {
	if err := os.MkdirAll(r.snapshotDir, 0o755); err != nil {
		return err
	}

	cfg := adapter.Config()
	out, err := yaml.Marshal(struct {
		Provider  string                 `yaml:"provider"`
		FetchedAt time.Time              `yaml:"fetched_at"`
		Models    []provider.ModelConfig `yaml:"models"`
	}{
		Provider:  cfg.ID,
		FetchedAt: time.Now().UTC(),
		Models:    cfg.Models,
	})
	if err != nil {
		return err
	}

	path := filepath.Join(r.snapshotDir, cfg.ID+".yaml")
	return os.WriteFile(path, out, 0o644)
}
