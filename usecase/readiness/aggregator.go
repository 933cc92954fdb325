package readiness

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/usecase"
)

// Config tunes the aggregator.
type Config struct {
	// StallAfter is how long the aggregate may stay non-ready before the
	// loading-too-long fallback notification fires. Zero disables it.
	StallAfter time.Duration
}

// Aggregator combines session, organization, and voice readiness into a
// single state. Initializing holds until auth loading completes; Partial
// holds while any dimension is false; Ready requires all three at once.
// Every state or blocker change is logged: the transitions are an observable
// diagnostic surface, not incidental.
type Aggregator struct {
	logger   *zap.Logger
	notifier usecase.Notifier
	cfg      Config

	mu           sync.Mutex
	loading      bool
	sessionReady bool
	orgReady     bool
	voiceReady   bool
	state        domain.ReadinessState
	blockers     []string
	firstReadyAt time.Time
	seq          uint64

	stallTimer *time.Timer
	stallFired bool

	subMu sync.Mutex
	subs  []func(domain.ReadinessSnapshot)
}

// NewAggregator starts in Initializing with every dimension unready.
func NewAggregator(notifier usecase.Notifier, logger *zap.Logger, cfg Config) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		logger:   logger,
		notifier: notifier,
		cfg:      cfg,
		loading:  true,
		state:    domain.ReadinessInitializing,
		blockers: []string{domain.BlockerSession, domain.BlockerOrg, domain.BlockerVoice},
	}
	a.armStallWatchdog()
	return a
}

// Subscribe registers a callback invoked on every state or blocker change.
func (a *Aggregator) Subscribe(fn func(domain.ReadinessSnapshot)) {
	if fn == nil {
		return
	}
	a.subMu.Lock()
	a.subs = append(a.subs, fn)
	a.subMu.Unlock()
}

// ObserveSession feeds the session dimension from a session store snapshot.
func (a *Aggregator) ObserveSession(snap domain.SessionSnapshot) {
	a.update(func() {
		a.loading = snap.Loading
		a.sessionReady = snap.IsAuthenticated
	})
}

// ObserveOrg feeds the organization dimension. Fallback sentinels count as
// resolved: consumers stay unblocked on a degraded organization context.
func (a *Aggregator) ObserveOrg(octx domain.OrgContext) {
	a.update(func() {
		a.orgReady = octx.IsResolved()
	})
}

// SetOrgReady overrides the organization dimension directly, used on resets.
func (a *Aggregator) SetOrgReady(ready bool) {
	a.update(func() {
		a.orgReady = ready
	})
}

// ObserveVoice feeds the voice dimension.
func (a *Aggregator) ObserveVoice(sel domain.VoiceSelection) {
	a.update(func() {
		a.voiceReady = sel.Valid
	})
}

// Snapshot returns the current derived readiness value.
func (a *Aggregator) Snapshot() domain.ReadinessSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() domain.ReadinessSnapshot {
	return domain.ReadinessSnapshot{
		State:         a.state,
		SessionReady:  a.sessionReady,
		OrgReady:      a.orgReady,
		VoiceReady:    a.voiceReady,
		IsReady:       a.state == domain.ReadinessReady,
		Blockers:      append([]string(nil), a.blockers...),
		FirstReadyAt:  a.firstReadyAt,
		TransitionSeq: a.seq,
	}
}

// Stop cancels the stall watchdog.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stallTimer != nil {
		a.stallTimer.Stop()
		a.stallTimer = nil
	}
}

func (a *Aggregator) update(mutate func()) {
	a.mu.Lock()
	mutate()

	newState := a.computeState()
	newBlockers := a.computeBlockers()

	stateChanged := newState != a.state
	blockersChanged := !equalStrings(newBlockers, a.blockers)

	if !stateChanged && !blockersChanged {
		a.mu.Unlock()
		return
	}

	oldState := a.state
	a.state = newState
	a.blockers = newBlockers
	a.seq++

	if stateChanged {
		switch {
		case newState == domain.ReadinessReady:
			// Entering Ready stamps the moment; the stamp survives until the
			// state fully leaves Ready again.
			a.firstReadyAt = time.Now()
			a.disarmStallWatchdogLocked()
		case oldState == domain.ReadinessReady:
			a.firstReadyAt = time.Time{}
			a.armStallWatchdogLocked()
		}
	}

	snap := a.snapshotLocked()
	a.mu.Unlock()

	if stateChanged {
		a.logger.Info("readiness state changed",
			zap.String("from", string(oldState)),
			zap.String("to", string(newState)),
			zap.Strings("blockers", snap.Blockers))
	} else {
		a.logger.Info("readiness blockers changed",
			zap.String("state", string(newState)),
			zap.Strings("blockers", snap.Blockers))
	}

	a.subMu.Lock()
	subs := append([]func(domain.ReadinessSnapshot){}, a.subs...)
	a.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (a *Aggregator) computeState() domain.ReadinessState {
	switch {
	case a.loading:
		return domain.ReadinessInitializing
	case a.sessionReady && a.orgReady && a.voiceReady:
		return domain.ReadinessReady
	default:
		return domain.ReadinessPartial
	}
}

// computeBlockers enumerates every failing dimension by name, in a fixed
// order, exactly one entry per dimension.
func (a *Aggregator) computeBlockers() []string {
	var blockers []string
	if !a.sessionReady {
		blockers = append(blockers, domain.BlockerSession)
	}
	if !a.orgReady {
		blockers = append(blockers, domain.BlockerOrg)
	}
	if !a.voiceReady {
		blockers = append(blockers, domain.BlockerVoice)
	}
	return blockers
}

func (a *Aggregator) armStallWatchdog() {
	a.mu.Lock()
	a.armStallWatchdogLocked()
	a.mu.Unlock()
}

func (a *Aggregator) armStallWatchdogLocked() {
	if a.cfg.StallAfter <= 0 {
		return
	}
	if a.stallTimer != nil {
		a.stallTimer.Stop()
	}
	a.stallFired = false
	a.stallTimer = time.AfterFunc(a.cfg.StallAfter, a.stall)
}

func (a *Aggregator) disarmStallWatchdogLocked() {
	if a.stallTimer != nil {
		a.stallTimer.Stop()
		a.stallTimer = nil
	}
	a.stallFired = false
}

// stall fires at most once per continuous non-ready episode. It changes what
// is reported, never what is in flight.
func (a *Aggregator) stall() {
	a.mu.Lock()
	if a.state == domain.ReadinessReady || a.stallFired {
		a.mu.Unlock()
		return
	}
	a.stallFired = true
	blockers := append([]string(nil), a.blockers...)
	a.mu.Unlock()

	a.logger.Warn("readiness stalled", zap.Strings("blockers", blockers))
	if a.notifier != nil {
		a.notifier.Notify(usecase.NotifyWarning, "LOADING_TOO_LONG",
			"this is taking longer than usual, still working on it")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
