package intent

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
)

// Manager records a desired post-authentication destination so navigation
// across the login boundary preserves user intent. At most one intent is
// active; a new capture with equal-or-higher priority replaces it. Staleness
// is not enforced here: consumers check the intent's age themselves.
type Manager struct {
	kv     repository.LocalStateRepository
	logger *zap.Logger

	mu     sync.Mutex
	active *domain.RedirectIntent
}

// NewManager builds an intent manager and restores the persisted destination
// path, if any, as a low-priority intent.
func NewManager(kv repository.LocalStateRepository, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{kv: kv, logger: logger}
	m.restore()
	return m
}

// restore rebuilds a minimal intent from the persisted path. Only the
// destination string survives a restart; reason and metadata do not.
func (m *Manager) restore() {
	dest, ok, err := m.kv.Get(repository.KeyRedirectAfterLogin)
	if err != nil {
		m.logger.Warn("redirect path restore failed", zap.Error(err))
		return
	}
	if !ok || dest == "" {
		return
	}
	m.active = &domain.RedirectIntent{
		ID:          uuid.NewString(),
		Destination: dest,
		Reason:      "restored",
		Priority:    domain.IntentPriorityLow,
		CreatedAt:   time.Now(),
	}
	m.logger.Info("restored redirect intent", zap.String("destination", dest))
}

// Capture stores an intent unless a higher-priority one is already active.
// It reports whether the intent was accepted.
func (m *Manager) Capture(destination, reason string, metadata map[string]string, priority int) bool {
	if destination == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// An expired intent has no claim on the slot, whatever its priority.
	if m.active.Supersedes(priority) && !m.active.IsStale(time.Now()) {
		m.logger.Debug("redirect intent rejected by active intent",
			zap.String("destination", destination),
			zap.Int("priority", priority),
			zap.Int("active_priority", m.active.Priority))
		return false
	}

	m.active = &domain.RedirectIntent{
		ID:          uuid.NewString(),
		Destination: destination,
		Reason:      reason,
		Metadata:    metadata,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}

	if err := m.kv.Set(repository.KeyRedirectAfterLogin, destination); err != nil {
		m.logger.Warn("redirect path persist failed", zap.Error(err))
	}
	if search := metadata["search"]; search != "" {
		if err := m.kv.Set(repository.KeyPreserveSearchParams, search); err != nil {
			m.logger.Warn("search params persist failed", zap.Error(err))
		}
	}

	m.logger.Info("redirect intent captured",
		zap.String("destination", destination),
		zap.String("reason", reason),
		zap.Int("priority", priority))
	return true
}

// Active returns a copy of the active intent, nil when none.
func (m *Manager) Active() *domain.RedirectIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	copied := *m.active
	return &copied
}

// Execute consumes the active intent exactly once, returning it for the
// caller to perform the navigation. Returns nil when no intent is active.
func (m *Manager) Execute() *domain.RedirectIntent {
	m.mu.Lock()
	intent := m.active
	m.active = nil
	m.mu.Unlock()

	if intent == nil {
		return nil
	}
	m.forget()
	m.logger.Info("redirect intent executed",
		zap.String("destination", intent.Destination),
		zap.String("reason", intent.Reason))
	return intent
}

// Clear discards the active intent without navigating.
func (m *Manager) Clear() {
	m.mu.Lock()
	had := m.active != nil
	m.active = nil
	m.mu.Unlock()

	if had {
		m.forget()
		m.logger.Info("redirect intent cleared")
	}
}

// PruneStale drops the active intent when consumers would ignore it anyway.
// It reports whether an intent was pruned.
func (m *Manager) PruneStale(now time.Time) bool {
	m.mu.Lock()
	stale := m.active.IsStale(now)
	if stale {
		m.active = nil
	}
	m.mu.Unlock()

	if stale {
		m.forget()
		m.logger.Info("stale redirect intent pruned")
	}
	return stale
}

func (m *Manager) forget() {
	if err := m.kv.Delete(repository.KeyRedirectAfterLogin); err != nil {
		m.logger.Warn("redirect path delete failed", zap.Error(err))
	}
	if err := m.kv.Delete(repository.KeyPreserveSearchParams); err != nil {
		m.logger.Warn("search params delete failed", zap.Error(err))
	}
}
