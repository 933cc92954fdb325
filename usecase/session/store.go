package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/internal/provider"
	"github.com/sagebright/gateway/usecase"
)

// RefreshReason tags why a refresh was requested. Critical-class reasons
// bypass the refresh throttle.
type RefreshReason string

const (
	ReasonInitial   RefreshReason = "initial"
	ReasonManual    RefreshReason = "manual"
	ReasonRefocus   RefreshReason = "refocus"
	ReasonPostLogin RefreshReason = "post-login"
	ReasonCritical  RefreshReason = "critical"
)

// BypassesThrottle reports whether the reason skips the minimum-interval check.
func (r RefreshReason) BypassesThrottle() bool {
	return r == ReasonCritical || r == ReasonPostLogin || r == ReasonInitial
}

const refreshKey = "session-refresh"

// Config tunes the session store.
type Config struct {
	// RefreshThrottle is the minimum interval between non-critical refreshes.
	RefreshThrottle time.Duration
}

// Store wraps provider auth events and refreshes into local reactive session
// state. Concurrent refreshes join a single in-flight provider call; results
// from superseded dispatches are discarded by sequence comparison.
type Store struct {
	provider provider.Client
	repairer *Repairer
	notifier usecase.Notifier
	logger   *zap.Logger
	cfg      Config

	group singleflight.Group

	mu          sync.RWMutex
	session     *domain.Session
	loading     bool
	refreshedAt time.Time
	lastAttempt time.Time
	dispatchSeq uint64
	appliedSeq  uint64
	repairing   bool

	subMu sync.Mutex
	subs  []func(domain.SessionSnapshot)
}

// NewStore builds a session store. The repairer may be nil when role repair
// is not wired.
func NewStore(client provider.Client, repairer *Repairer, notifier usecase.Notifier, logger *zap.Logger, cfg Config) *Store {
	if cfg.RefreshThrottle <= 0 {
		cfg.RefreshThrottle = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		provider: client,
		repairer: repairer,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		loading:  true,
	}
}

// Run consumes provider auth-change events until ctx is cancelled. It performs
// the initial session fetch before entering the loop.
func (s *Store) Run(ctx context.Context) {
	if _, err := s.Refresh(ctx, ReasonInitial); err != nil && !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		s.logger.Warn("initial session fetch failed", zap.Error(err))
	}

	events := s.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, event)
		}
	}
}

func (s *Store) handleEvent(ctx context.Context, event provider.Event) {
	s.logger.Debug("auth event", zap.String("type", string(event.Type)))
	switch event.Type {
	case provider.EventSignedOut:
		s.clear("provider sign-out event")
	case provider.EventSignedIn, provider.EventTokenRefreshed, provider.EventUserUpdated:
		seq := s.nextSeq()
		s.apply(seq, event.Session)
		s.maybeRepair(ctx, event.Session)
	}
}

// Snapshot returns the current reactive state.
func (s *Store) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		Loading:         s.loading,
		IsAuthenticated: s.session.IsAuthenticated(),
		RefreshedAt:     s.refreshedAt,
	}
	if s.session != nil {
		snap.User = s.session.User
		snap.AccessToken = s.session.AccessToken
		snap.Role = s.session.Role()
	}
	return snap
}

// Session returns the current session, nil when signed out.
func (s *Store) Session() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// AccessToken returns the current token, freshly read on every call.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// UserID returns the signed-in user id, empty when signed out.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.UserID()
}

// Subscribe registers a callback invoked after every state change.
func (s *Store) Subscribe(fn func(domain.SessionSnapshot)) {
	if fn == nil {
		return
	}
	s.subMu.Lock()
	s.subs = append(s.subs, fn)
	s.subMu.Unlock()
}

// SignIn authenticates against the provider and applies the resulting session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	seq := s.nextSeq()
	s.apply(seq, sess)
	s.maybeRepair(ctx, sess)
	return s.Session(), nil
}

// SignOut revokes the provider session and resets local state.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	s.clear("sign-out")
	return err
}

// Refresh re-fetches the provider session. Concurrent callers join the same
// in-flight provider call. Non-critical reasons are throttled: when the
// minimum interval has not elapsed the current session is returned untouched.
func (s *Store) Refresh(ctx context.Context, reason RefreshReason) (*domain.Session, error) {
	if !reason.BypassesThrottle() {
		s.mu.RLock()
		throttled := time.Since(s.lastAttempt) < s.cfg.RefreshThrottle
		current := s.session
		s.mu.RUnlock()
		if throttled {
			s.logger.Debug("session refresh throttled", zap.String("reason", string(reason)))
			return current, nil
		}
	}

	seq := s.nextSeq()

	result, err, shared := s.group.Do(refreshKey, func() (any, error) {
		s.mu.Lock()
		s.lastAttempt = time.Now()
		s.mu.Unlock()
		return s.provider.GetSession(ctx)
	})
	if shared {
		s.logger.Debug("session refresh joined in-flight call", zap.String("reason", string(reason)))
	}

	if err != nil {
		return s.handleRefreshFailure(seq, reason, err)
	}

	sess, _ := result.(*domain.Session)
	s.apply(seq, sess)
	s.maybeRepair(ctx, sess)
	return s.Session(), nil
}

// handleRefreshFailure distinguishes a missing session (signed out, possibly
// token loss) from a transient provider failure.
func (s *Store) handleRefreshFailure(seq uint64, reason RefreshReason, err error) (*domain.Session, error) {
	if domain.IsDomainError(err, domain.ErrCodeNotFound) || domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
		wasAuthenticated := s.apply(seq, nil)
		if wasAuthenticated {
			s.logger.Warn("session lost during refresh",
				zap.String("reason", string(reason)),
				zap.Error(err))
			if s.notifier != nil {
				s.notifier.Notify(usecase.NotifyWarning, string(domain.ErrCodeSessionLost),
					"your session expired, please sign in again")
			}
			return nil, domain.ErrSessionLost
		}
		return nil, err
	}

	// Transient failure: keep the current session, finish loading, notify.
	s.mu.Lock()
	s.loading = false
	current := s.session
	s.mu.Unlock()
	s.logger.Warn("session refresh failed", zap.String("reason", string(reason)), zap.Error(err))
	if s.notifier != nil {
		s.notifier.Notify(usecase.NotifyWarning, string(domain.ErrCodeUnavailable),
			"could not refresh your session, retrying in the background")
	}
	s.emit()
	return current, err
}

func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchSeq++
	return s.dispatchSeq
}

// apply installs the session for the given dispatch sequence, discarding
// results that a later dispatch has already superseded. It reports whether
// the store was authenticated before the change.
func (s *Store) apply(seq uint64, sess *domain.Session) bool {
	s.mu.Lock()
	if seq <= s.appliedSeq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale session result",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", s.appliedSeq))
		return false
	}
	s.appliedSeq = seq

	wasAuthenticated := s.session.IsAuthenticated()
	s.session = sess
	s.loading = false
	if sess != nil {
		s.refreshedAt = time.Now()
	}
	isAuthenticated := sess.IsAuthenticated()
	s.mu.Unlock()

	if wasAuthenticated != isAuthenticated {
		s.logger.Info("session state changed",
			zap.Bool("authenticated", isAuthenticated))
	}
	s.emit()
	return wasAuthenticated
}

func (s *Store) clear(cause string) {
	seq := s.nextSeq()
	s.mu.Lock()
	if seq <= s.appliedSeq {
		s.mu.Unlock()
		return
	}
	s.appliedSeq = seq
	wasAuthenticated := s.session.IsAuthenticated()
	s.session = nil
	s.loading = false
	s.mu.Unlock()

	if wasAuthenticated {
		s.logger.Info("session cleared", zap.String("cause", cause))
	}
	s.emit()
}

// maybeRepair triggers role metadata repair when the session lacks a role.
// Repair runs at most once at a time; on success the session is re-fetched so
// callers observe the corrected metadata.
func (s *Store) maybeRepair(ctx context.Context, sess *domain.Session) {
	if s.repairer == nil || !sess.IsAuthenticated() || sess.Role() != "" {
		return
	}

	s.mu.Lock()
	if s.repairing {
		s.mu.Unlock()
		return
	}
	s.repairing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.repairing = false
		s.mu.Unlock()
	}()

	if err := s.repairer.Repair(ctx, sess.UserID(), sess.AccessToken); err != nil {
		// Non-fatal: callers proceed with best-effort metadata.
		s.logger.Warn("role repair gave up", zap.String("user_id", sess.UserID()), zap.Error(err))
		return
	}

	fresh, err := s.provider.GetSession(ctx)
	if err != nil {
		s.logger.Warn("post-repair session fetch failed", zap.Error(err))
		return
	}
	s.apply(s.nextSeq(), fresh)
}

func (s *Store) emit() {
	snap := s.Snapshot()
	s.subMu.Lock()
	subs := append([]func(domain.SessionSnapshot){}, s.subs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
