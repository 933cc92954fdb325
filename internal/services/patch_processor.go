package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/internal/infrastructure/localstore"
	"github.com/sagebright/gateway/internal/provider"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// TokenSource reads the current access token; patches are delivered on
// behalf of the signed-in user.
type TokenSource interface {
	AccessToken() string
}

// IntentPruner drops redirect intents consumers would ignore anyway.
type IntentPruner interface {
	PruneStale(now time.Time) bool
}

// ProcessorConfig controls how frequently the patch queue is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// PatchProcessor synchronizes buffered metadata patches back to the provider
// and runs the periodic housekeeping sweep.
type PatchProcessor struct {
	store    *localstore.Store
	monitor  ConnectionHealth
	provider provider.Client
	tokens   TokenSource
	intents  IntentPruner
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewPatchProcessor(
	store *localstore.Store,
	monitor ConnectionHealth,
	client provider.Client,
	tokens TokenSource,
	intents IntentPruner,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *PatchProcessor {
	if cfg.Interval < time.Second {
		if cfg.Interval > 0 {
			cfg.Interval = time.Second
		} else {
			cfg.Interval = 30 * time.Second
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pp := &PatchProcessor{
		store:    store,
		monitor:  monitor,
		provider: client,
		tokens:   tokens,
		intents:  intents,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := pp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := pp.Drain(ctx); err != nil {
			pp.logger.Error("patch drain failed", zap.Error(err))
		}
		pp.sweep()
	}); err != nil {
		pp.logger.Error("patch drain schedule rejected",
			zap.String("schedule", schedule), zap.Error(err))
	}

	return pp
}

// Start launches the cron scheduler.
func (pp *PatchProcessor) Start() {
	if pp == nil || pp.cron == nil {
		return
	}
	pp.cron.Start()
	pp.logger.Info("patch processor started")
}

// Stop gracefully stops the scheduler.
func (pp *PatchProcessor) Stop(ctx context.Context) {
	if pp == nil || pp.cron == nil {
		return
	}
	stopCtx := pp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	pp.logger.Info("patch processor stopped")
}

// Drain delivers queued patches synchronously.
func (pp *PatchProcessor) Drain(ctx context.Context) error {
	if pp == nil || pp.store == nil {
		return nil
	}
	if pp.monitor != nil && !pp.monitor.IsOnline() {
		pp.logger.Debug("skipping patch drain (offline)")
		return nil
	}

	token := ""
	if pp.tokens != nil {
		token = pp.tokens.AccessToken()
	}
	if token == "" {
		// Patches ride on the signed-in user's token; without one they wait.
		pp.logger.Debug("skipping patch drain (no session)")
		return nil
	}

	items, err := pp.store.GetBatch(pp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := pp.provider.UpdateUserMetadata(ctx, token, item.Patch); err != nil {
			pp.logger.Error("failed to deliver metadata patch",
				zap.String("patch_id", item.ID),
				zap.String("reason", item.Reason),
				zap.Error(err))

			item.Retries++
			if item.Retries >= pp.cfg.MaxRetries {
				pp.logger.Warn("dropping metadata patch (max retries reached)",
					zap.String("patch_id", item.ID))
				_ = pp.store.Remove(item)
				continue
			}

			if err := pp.store.Remove(item); err != nil {
				pp.logger.Warn("failed to remove metadata patch", zap.Error(err))
			}
			if err := pp.store.Requeue(item); err != nil {
				pp.logger.Error("failed to requeue metadata patch", zap.Error(err))
			}
			continue
		}

		if err := pp.store.Remove(item); err != nil {
			pp.logger.Warn("failed to purge delivered patch", zap.Error(err))
		}
	}
	return nil
}

// PendingPatches returns the queue depth.
func (pp *PatchProcessor) PendingPatches() int {
	if pp == nil || pp.store == nil {
		return 0
	}
	size, err := pp.store.PendingPatches()
	if err != nil {
		return 0
	}
	return size
}

// sweep drops aged-out patches and stale redirect intents.
func (pp *PatchProcessor) sweep() {
	if err := pp.store.Cleanup(time.Now().Add(-pp.cfg.Retention)); err != nil {
		pp.logger.Warn("patch retention sweep failed", zap.Error(err))
	}
	if pp.intents != nil {
		pp.intents.PruneStale(time.Now())
	}
}
