package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
	"github.com/sagebright/gateway/usecase"
)

// RepairConfig tunes the retry policy for role metadata repair.
type RepairConfig struct {
	Attempts int
	Delay    time.Duration
}

// Repairer synchronizes the authoritative role from the backing store into
// session metadata when it is missing. Failure is non-fatal: the caller
// proceeds with best-effort data and the user sees a notification.
type Repairer struct {
	roles    repository.RoleRepository
	patcher  usecase.MetadataPatcher
	notifier usecase.Notifier
	logger   *zap.Logger
	cfg      RepairConfig
}

// NewRepairer builds a role repairer.
func NewRepairer(roles repository.RoleRepository, patcher usecase.MetadataPatcher, notifier usecase.Notifier, logger *zap.Logger, cfg RepairConfig) *Repairer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repairer{
		roles:    roles,
		patcher:  patcher,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// Repair fetches the role for userID and patches it into provider metadata,
// retrying with a fixed delay up to the attempt ceiling.
func (r *Repairer) Repair(ctx context.Context, userID, accessToken string) error {
	if userID == "" {
		return domain.ErrInvalidPayload
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		lastErr = r.attempt(ctx, userID, accessToken)
		if lastErr == nil {
			r.logger.Info("role metadata repaired",
				zap.String("user_id", userID),
				zap.Int("attempt", attempt))
			return nil
		}

		r.logger.Warn("role repair attempt failed",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < r.cfg.Attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.Delay):
			}
		}
	}

	if r.notifier != nil {
		r.notifier.Notify(usecase.NotifyError, "ROLE_SYNC_FAILED",
			"we could not sync your account role, some features may be limited")
	}
	return domain.WrapError(domain.ErrCodeUnavailable, "role repair exhausted retries", lastErr)
}

func (r *Repairer) attempt(ctx context.Context, userID, accessToken string) error {
	role, err := r.roles.GetRole(ctx, userID)
	if err != nil {
		return err
	}
	return r.patcher.PatchMetadata(ctx, accessToken, userID,
		map[string]string{domain.MetaRole: role}, "role-repair")
}
