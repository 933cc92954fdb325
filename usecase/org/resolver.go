package org

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
	"github.com/sagebright/gateway/usecase"
)

// Resolver derives the organization context for a session through an ordered
// fallback chain: session metadata, then a record lookup keyed by user id,
// then the fallback sentinel pair. Lookup results that did not come from
// metadata are written back into metadata so future resolutions short-circuit.
type Resolver struct {
	orgs     repository.OrganizationRepository
	cache    repository.OrgSlugCache
	patcher  usecase.MetadataPatcher
	notifier usecase.Notifier
	logger   *zap.Logger

	mu         sync.Mutex
	inProgress map[string]bool
	current    domain.OrgContext
	resolved   bool

	subMu sync.Mutex
	subs  []func(domain.OrgContext)
}

// NewResolver builds an organization resolver. The slug cache is optional.
func NewResolver(orgs repository.OrganizationRepository, cache repository.OrgSlugCache, patcher usecase.MetadataPatcher, notifier usecase.Notifier, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		orgs:       orgs,
		cache:      cache,
		patcher:    patcher,
		notifier:   notifier,
		logger:     logger,
		inProgress: make(map[string]bool),
	}
}

// Current returns the last resolved context and whether one exists.
func (r *Resolver) Current() (domain.OrgContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.resolved
}

// Subscribe registers a callback invoked after every resolution.
func (r *Resolver) Subscribe(fn func(domain.OrgContext)) {
	if fn == nil {
		return
	}
	r.subMu.Lock()
	r.subs = append(r.subs, fn)
	r.subMu.Unlock()
}

// Reset drops the cached context, typically on sign-out.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.current = domain.OrgContext{}
	r.resolved = false
	r.mu.Unlock()
}

// Resolve walks the fallback chain for the session's user. A resolution
// already in progress for the same user is not duplicated; the caller gets
// the current context instead.
func (r *Resolver) Resolve(ctx context.Context, sess *domain.Session) (domain.OrgContext, error) {
	if !sess.IsAuthenticated() {
		return domain.OrgContext{}, domain.ErrSessionNotFound
	}
	userID := sess.UserID()

	// Rung one: session metadata. No lookup is issued when both fields are
	// already present.
	if orgID := sess.Meta(domain.MetaOrgID); orgID != "" {
		if slug := sess.Meta(domain.MetaOrgSlug); slug != "" {
			return r.install(domain.OrgContext{ID: orgID, Slug: slug, Source: domain.OrgSourceMetadata}), nil
		}
		// Partial metadata: the id is trusted, only the slug is looked up.
		if slug, err := r.lookupSlug(ctx, orgID); err == nil {
			octx := r.install(domain.OrgContext{ID: orgID, Slug: slug, Source: domain.OrgSourceLookup})
			r.cacheFill(ctx, sess, octx)
			return octx, nil
		}
	}

	r.mu.Lock()
	if r.inProgress[userID] {
		current := r.current
		r.mu.Unlock()
		r.logger.Debug("org resolution already in progress", zap.String("user_id", userID))
		return current, nil
	}
	r.inProgress[userID] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.inProgress, userID)
		r.mu.Unlock()
	}()

	// Rung two: direct record lookup keyed by user id.
	org, err := r.orgs.GetByUserID(ctx, userID)
	if err == nil {
		octx := r.install(domain.OrgContext{ID: org.ID, Slug: org.Slug, Source: domain.OrgSourceLookup})
		if r.cache != nil {
			if cacheErr := r.cache.SetSlug(ctx, org.ID, org.Slug); cacheErr != nil {
				r.logger.Warn("org slug cache write failed", zap.Error(cacheErr))
			}
		}
		r.cacheFill(ctx, sess, octx)
		return octx, nil
	}
	r.logger.Warn("org lookup failed, falling back",
		zap.String("user_id", userID),
		zap.Error(err))

	// Rung three: last-resort sentinel pair. Downstream consumers are never
	// blocked indefinitely on a missing organization; the degradation is
	// logged and surfaced, not silent.
	octx := r.install(domain.OrgContext{
		ID:     domain.FallbackOrgID,
		Slug:   domain.FallbackOrgSlug,
		Source: domain.OrgSourceFallback,
	})
	if r.notifier != nil {
		r.notifier.Notify(usecase.NotifyWarning, "ORG_FALLBACK",
			"we could not find your organization, using a default workspace")
	}
	return octx, nil
}

// Recover re-runs resolution from scratch for explicit manual retry. It
// reports whether a real (non-fallback) context was recovered.
func (r *Resolver) Recover(ctx context.Context, sess *domain.Session) bool {
	r.Reset()
	octx, err := r.Resolve(ctx, sess)
	if err != nil {
		return false
	}
	return octx.IsResolved() && !octx.IsFallback()
}

func (r *Resolver) lookupSlug(ctx context.Context, orgID string) (string, error) {
	if r.cache != nil {
		if slug, err := r.cache.GetSlug(ctx, orgID); err == nil {
			return slug, nil
		}
	}
	org, err := r.orgs.GetByID(ctx, orgID)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		if err := r.cache.SetSlug(ctx, org.ID, org.Slug); err != nil {
			r.logger.Warn("org slug cache write failed", zap.Error(err))
		}
	}
	return org.Slug, nil
}

// cacheFill writes a successful non-metadata resolution back into session
// metadata so the next resolution short-circuits on rung one. Buffered
// delivery counts as success; a hard failure is only logged.
func (r *Resolver) cacheFill(ctx context.Context, sess *domain.Session, octx domain.OrgContext) {
	if r.patcher == nil {
		return
	}
	patch := map[string]string{
		domain.MetaOrgID:   octx.ID,
		domain.MetaOrgSlug: octx.Slug,
	}
	if err := r.patcher.PatchMetadata(ctx, sess.AccessToken, sess.UserID(), patch, "org-cache-fill"); err != nil {
		r.logger.Warn("org metadata cache-fill failed", zap.Error(err))
	}
}

func (r *Resolver) install(octx domain.OrgContext) domain.OrgContext {
	r.mu.Lock()
	changed := !r.resolved || r.current != octx
	r.current = octx
	r.resolved = true
	r.mu.Unlock()

	if changed {
		r.logger.Info("org context resolved",
			zap.String("org_id", octx.ID),
			zap.String("org_slug", octx.Slug),
			zap.String("source", string(octx.Source)))
		r.subMu.Lock()
		subs := append([]func(domain.OrgContext){}, r.subs...)
		r.subMu.Unlock()
		for _, fn := range subs {
			fn(octx)
		}
	}
	return octx
}
