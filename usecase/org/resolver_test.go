package org

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/usecase"
)

type fakeOrgRepo struct {
	mu          sync.Mutex
	byUser      map[string]*domain.Organization
	byID        map[string]*domain.Organization
	userLookups int
	idLookups   int
}

func (f *fakeOrgRepo) GetByUserID(ctx context.Context, userID string) (*domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userLookups++
	if org, ok := f.byUser[userID]; ok {
		return org, nil
	}
	return nil, domain.ErrOrgNotFound
}

func (f *fakeOrgRepo) GetByID(ctx context.Context, orgID string) (*domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idLookups++
	if org, ok := f.byID[orgID]; ok {
		return org, nil
	}
	return nil, domain.ErrOrgNotFound
}

type fakeSlugCache struct {
	mu    sync.Mutex
	slugs map[string]string
}

func newFakeSlugCache() *fakeSlugCache {
	return &fakeSlugCache{slugs: map[string]string{}}
}

func (f *fakeSlugCache) GetSlug(ctx context.Context, orgID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slug, ok := f.slugs[orgID]; ok {
		return slug, nil
	}
	return "", domain.ErrOrgNotFound
}

func (f *fakeSlugCache) SetSlug(ctx context.Context, orgID, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slugs[orgID] = slug
	return nil
}

type recorderPatcher struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recorderPatcher) PatchMetadata(ctx context.Context, accessToken, userID string, patch map[string]string, reason string) error {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
	return nil
}

func (r *recorderPatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

type recorderNotifier struct {
	mu    sync.Mutex
	codes []string
}

func (r *recorderNotifier) Notify(level usecase.NotifyLevel, code, message string) {
	r.mu.Lock()
	r.codes = append(r.codes, code)
	r.mu.Unlock()
}

func sessionWithMeta(meta map[string]string) *domain.Session {
	return &domain.Session{
		User:        &domain.User{ID: "user-1"},
		AccessToken: "tok-1",
		Metadata:    meta,
	}
}

func TestResolve_MetadataShortCircuits(t *testing.T) {
	repo := &fakeOrgRepo{}
	patcher := &recorderPatcher{}
	resolver := NewResolver(repo, newFakeSlugCache(), patcher, nil, nil)

	octx, err := resolver.Resolve(context.Background(), sessionWithMeta(map[string]string{
		domain.MetaOrgID:   "org-1",
		domain.MetaOrgSlug: "acme",
	}))
	require.NoError(t, err)

	assert.Equal(t, "org-1", octx.ID)
	assert.Equal(t, "acme", octx.Slug)
	assert.Equal(t, domain.OrgSourceMetadata, octx.Source)
	assert.Zero(t, repo.userLookups)
	assert.Zero(t, repo.idLookups)
	assert.Zero(t, patcher.count())
}

func TestResolve_PartialMetadataLooksUpSlug(t *testing.T) {
	repo := &fakeOrgRepo{byID: map[string]*domain.Organization{
		"org-1": {ID: "org-1", Slug: "acme"},
	}}
	cache := newFakeSlugCache()
	patcher := &recorderPatcher{}
	resolver := NewResolver(repo, cache, patcher, nil, nil)

	octx, err := resolver.Resolve(context.Background(), sessionWithMeta(map[string]string{
		domain.MetaOrgID: "org-1",
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.OrgSourceLookup, octx.Source)
	assert.Equal(t, "acme", octx.Slug)
	assert.Equal(t, 1, repo.idLookups)
	assert.Equal(t, "acme", cache.slugs["org-1"])
	assert.Equal(t, 1, patcher.count())
}

func TestResolve_SlugCacheHitSkipsRecordLookup(t *testing.T) {
	repo := &fakeOrgRepo{}
	cache := newFakeSlugCache()
	cache.slugs["org-1"] = "acme"
	resolver := NewResolver(repo, cache, nil, nil, nil)

	octx, err := resolver.Resolve(context.Background(), sessionWithMeta(map[string]string{
		domain.MetaOrgID: "org-1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "acme", octx.Slug)
	assert.Zero(t, repo.idLookups)
}

func TestResolve_UserLookupWritesCacheAndMetadata(t *testing.T) {
	repo := &fakeOrgRepo{byUser: map[string]*domain.Organization{
		"user-1": {ID: "org-1", Slug: "acme"},
	}}
	cache := newFakeSlugCache()
	patcher := &recorderPatcher{}
	resolver := NewResolver(repo, cache, patcher, nil, nil)

	octx, err := resolver.Resolve(context.Background(), sessionWithMeta(nil))
	require.NoError(t, err)

	assert.Equal(t, domain.OrgSourceLookup, octx.Source)
	assert.Equal(t, "org-1", octx.ID)
	assert.Equal(t, "acme", cache.slugs["org-1"])
	assert.Equal(t, 1, patcher.count())
	assert.Equal(t, "org-cache-fill", patcher.reasons[0])
}

func TestResolve_FallbackSentinelAfterExhaustedChain(t *testing.T) {
	repo := &fakeOrgRepo{}
	notifier := &recorderNotifier{}
	resolver := NewResolver(repo, nil, nil, notifier, nil)

	octx, err := resolver.Resolve(context.Background(), sessionWithMeta(nil))
	require.NoError(t, err)

	assert.Equal(t, domain.FallbackOrgID, octx.ID)
	assert.Equal(t, domain.FallbackOrgSlug, octx.Slug)
	assert.True(t, octx.IsFallback())
	assert.True(t, octx.IsResolved())
	assert.Contains(t, notifier.codes, "ORG_FALLBACK")
}

func TestResolve_UnauthenticatedRejected(t *testing.T) {
	resolver := NewResolver(&fakeOrgRepo{}, nil, nil, nil, nil)

	_, err := resolver.Resolve(context.Background(), nil)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestRecover_ReportsRealContextOnly(t *testing.T) {
	repo := &fakeOrgRepo{}
	resolver := NewResolver(repo, nil, nil, nil, nil)
	sess := sessionWithMeta(nil)

	_, err := resolver.Resolve(context.Background(), sess)
	require.NoError(t, err)
	octx, _ := resolver.Current()
	require.True(t, octx.IsFallback())

	assert.False(t, resolver.Recover(context.Background(), sess))

	// Membership appears; the next recovery lands on a real record.
	repo.mu.Lock()
	repo.byUser = map[string]*domain.Organization{
		"user-1": {ID: "org-1", Slug: "acme"},
	}
	repo.mu.Unlock()

	assert.True(t, resolver.Recover(context.Background(), sess))
	octx, _ = resolver.Current()
	assert.Equal(t, domain.OrgSourceLookup, octx.Source)
}

func TestSubscribe_NotifiesOnChangeOnly(t *testing.T) {
	repo := &fakeOrgRepo{byUser: map[string]*domain.Organization{
		"user-1": {ID: "org-1", Slug: "acme"},
	}}
	resolver := NewResolver(repo, nil, nil, nil, nil)

	var mu sync.Mutex
	var changes int
	resolver.Subscribe(func(domain.OrgContext) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	sess := sessionWithMeta(nil)
	_, err := resolver.Resolve(context.Background(), sess)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), sess)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, changes)
}
