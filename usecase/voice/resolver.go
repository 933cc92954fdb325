package voice

import (
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
)

// QueryParam is the only documented external URL parameter read by the core.
const QueryParam = "voice"

// Resolver determines the assistant voice for the current navigation by
// merging candidate sources under a fixed priority order: URL query (100),
// captured redirect intent metadata (90), persisted local value (80), then
// the default (0). Invalid candidates are discarded before comparison.
type Resolver struct {
	kv     repository.LocalStateRepository
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	last    domain.VoiceSelection
	hasLast bool

	subMu sync.Mutex
	subs  []func(domain.VoiceSelection)
}

// NewResolver builds a voice resolver over the injected local state store.
func NewResolver(kv repository.LocalStateRepository, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers a callback invoked only when the resolved value,
// source, or validity actually changes. Repeated identical resolutions never
// re-notify, so subscribers cannot be driven into an update loop.
func (r *Resolver) Subscribe(fn func(domain.VoiceSelection)) {
	if fn == nil {
		return
	}
	r.subMu.Lock()
	r.subs = append(r.subs, fn)
	r.subMu.Unlock()
}

// Current returns the last resolution and whether one happened yet.
func (r *Resolver) Current() (domain.VoiceSelection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// Resolve recomputes the selection for a navigation. The query carries the
// URL parameters; intent is the active redirect intent, nil when absent.
func (r *Resolver) Resolve(query url.Values, intent *domain.RedirectIntent) domain.VoiceSelection {
	now := r.now()
	best := domain.VoiceCandidate{Value: domain.VoiceDefault, Source: domain.VoiceSourceDefault}

	for _, candidate := range r.collect(query, intent, now) {
		if !domain.IsValidVoice(candidate.Value) {
			r.logger.Debug("discarding invalid voice candidate",
				zap.String("value", candidate.Value),
				zap.String("source", string(candidate.Source)))
			continue
		}
		if candidate.Beats(best) {
			best = candidate
		}
	}

	selection := domain.VoiceSelection{
		Value:      best.Value,
		Source:     best.Source,
		Valid:      true,
		ResolvedAt: now,
	}

	r.persist(selection, now)
	r.installAndNotify(selection, now)
	return selection
}

func (r *Resolver) collect(query url.Values, intent *domain.RedirectIntent, now time.Time) []domain.VoiceCandidate {
	var candidates []domain.VoiceCandidate

	if v := query.Get(QueryParam); v != "" {
		candidates = append(candidates, domain.VoiceCandidate{
			Value:     v,
			Source:    domain.VoiceSourceURL,
			Timestamp: now,
		})
	}

	if intent != nil && !intent.IsStale(now) {
		if v := intent.Metadata[domain.MetaVoice]; v != "" {
			candidates = append(candidates, domain.VoiceCandidate{
				Value:     v,
				Source:    domain.VoiceSourceIntent,
				Timestamp: intent.CreatedAt,
			})
		}
	}

	if v, ok, err := r.kv.Get(repository.KeyLastVoiceParam); err != nil {
		r.logger.Warn("voice storage read failed", zap.Error(err))
	} else if ok && v != "" {
		candidates = append(candidates, domain.VoiceCandidate{
			Value:     v,
			Source:    domain.VoiceSourceStorage,
			Timestamp: r.storedTimestamp(),
		})
	}

	return candidates
}

func (r *Resolver) storedTimestamp() time.Time {
	raw, ok, err := r.kv.Get(repository.KeyLastVoiceParamTimestamp)
	if err != nil || !ok {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// persist stores explicit non-default selections so they survive a reload.
// Storage-sourced selections are not rewritten; the stored value already is
// the source.
func (r *Resolver) persist(sel domain.VoiceSelection, now time.Time) {
	if sel.Value == domain.VoiceDefault {
		return
	}
	if sel.Source != domain.VoiceSourceURL && sel.Source != domain.VoiceSourceIntent {
		return
	}
	if err := r.kv.Set(repository.KeyLastVoiceParam, sel.Value); err != nil {
		r.logger.Warn("voice persist failed", zap.Error(err))
		return
	}
	if err := r.kv.Set(repository.KeyLastVoiceParamTimestamp, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		r.logger.Warn("voice timestamp persist failed", zap.Error(err))
	}
}

func (r *Resolver) installAndNotify(sel domain.VoiceSelection, now time.Time) {
	r.mu.Lock()
	changed := !r.hasLast || !sel.Equal(r.last)
	previous := r.last
	r.last = sel
	r.hasLast = true
	r.mu.Unlock()

	if !changed {
		return
	}

	r.logger.Info("voice selection changed",
		zap.String("from", previous.Value),
		zap.String("to", sel.Value),
		zap.String("source", string(sel.Source)))
	r.recordTransition(previous.Value, sel, now)

	r.subMu.Lock()
	subs := append([]func(domain.VoiceSelection){}, r.subs...)
	r.subMu.Unlock()
	for _, fn := range subs {
		fn(sel)
	}
}

func (r *Resolver) recordTransition(from string, sel domain.VoiceSelection, now time.Time) {
	var history []domain.VoiceTransition
	if _, err := r.kv.GetJSON(repository.KeyVoiceParamTransitions, &history); err != nil {
		r.logger.Warn("voice transition history read failed", zap.Error(err))
		history = nil
	}
	history = append(history, domain.VoiceTransition{
		From:      from,
		To:        sel.Value,
		Source:    sel.Source,
		Timestamp: now,
	})
	if len(history) > domain.VoiceTransitionCap {
		history = history[len(history)-domain.VoiceTransitionCap:]
	}
	if err := r.kv.SetJSON(repository.KeyVoiceParamTransitions, history); err != nil {
		r.logger.Warn("voice transition history write failed", zap.Error(err))
	}
}
