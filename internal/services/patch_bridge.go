package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/internal/infrastructure/localstore"
	"github.com/sagebright/gateway/internal/provider"
	"github.com/sagebright/gateway/usecase"
)

// PatchBridge delivers metadata patches to the provider, falling back to the
// local write-behind queue when the provider is offline or the call fails.
// A buffered patch counts as success for the caller.
type PatchBridge struct {
	provider provider.Client
	store    *localstore.Store
	monitor  ConnectionHealth
	logger   *zap.Logger
}

func NewPatchBridge(client provider.Client, store *localstore.Store, monitor ConnectionHealth, logger *zap.Logger) *PatchBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatchBridge{
		provider: client,
		store:    store,
		monitor:  monitor,
		logger:   logger,
	}
}

var _ usecase.MetadataPatcher = (*PatchBridge)(nil)

func (b *PatchBridge) PatchMetadata(ctx context.Context, accessToken, userID string, patch map[string]string, reason string) error {
	if len(patch) == 0 {
		return nil
	}

	if b.monitor == nil || b.monitor.IsOnline() {
		err := b.provider.UpdateUserMetadata(ctx, accessToken, patch)
		if err == nil {
			return nil
		}
		if domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
			// A rejected token will not get better by waiting; do not buffer.
			return err
		}
		b.logger.Warn("metadata patch failed, buffering",
			zap.String("reason", reason),
			zap.Error(err))
	}

	if b.store == nil {
		return domain.ErrProviderUnavailable
	}
	return b.store.Enqueue(localstore.PatchItem{
		UserID: userID,
		Patch:  patch,
		Reason: reason,
	})
}
