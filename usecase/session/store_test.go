package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/internal/provider"
	"github.com/sagebright/gateway/usecase"
)

type fakeClient struct {
	mu          sync.Mutex
	getSession  func(call int) (*domain.Session, error)
	getCalls    int32
	signOutErr  error
	updateCalls int32
	events      chan provider.Event
}

func newFakeClient(getSession func(call int) (*domain.Session, error)) *fakeClient {
	return &fakeClient{
		getSession: getSession,
		events:     make(chan provider.Event, 8),
	}
}

func (f *fakeClient) GetSession(ctx context.Context) (*domain.Session, error) {
	call := int(atomic.AddInt32(&f.getCalls, 1))
	return f.getSession(call)
}

func (f *fakeClient) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (f *fakeClient) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	return f.getSession(int(atomic.AddInt32(&f.getCalls, 1)))
}

func (f *fakeClient) SignOut(ctx context.Context) error {
	return f.signOutErr
}

func (f *fakeClient) RefreshSession(ctx context.Context) (*domain.Session, error) {
	return f.getSession(int(atomic.AddInt32(&f.getCalls, 1)))
}

func (f *fakeClient) UpdateUserMetadata(ctx context.Context, accessToken string, patch map[string]string) error {
	atomic.AddInt32(&f.updateCalls, 1)
	return nil
}

func (f *fakeClient) Events() <-chan provider.Event { return f.events }

func (f *fakeClient) Healthy(ctx context.Context) bool { return true }

type notice struct {
	Level usecase.NotifyLevel
	Code  string
}

type recorderNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recorderNotifier) Notify(level usecase.NotifyLevel, code, message string) {
	r.mu.Lock()
	r.notices = append(r.notices, notice{Level: level, Code: code})
	r.mu.Unlock()
}

func (r *recorderNotifier) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Code
	}
	return out
}

func authedSession(role string) *domain.Session {
	sess := &domain.Session{
		User:        &domain.User{ID: "user-1", Email: "u@example.com"},
		AccessToken: "tok-1",
		Metadata:    map[string]string{},
	}
	if role != "" {
		sess.Metadata[domain.MetaRole] = role
	}
	return sess
}

func TestRefresh_InitialEstablishesSession(t *testing.T) {
	client := newFakeClient(func(int) (*domain.Session, error) {
		return authedSession("admin"), nil
	})
	store := NewStore(client, nil, nil, nil, Config{})

	assert.True(t, store.Snapshot().Loading)

	sess, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)
	require.NotNil(t, sess)

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "admin", snap.Role)
	assert.Equal(t, "user-1", store.UserID())
	assert.Equal(t, "tok-1", store.AccessToken())
}

func TestRefresh_AuthenticatedRequiresUserAndToken(t *testing.T) {
	tokenOnly := &domain.Session{AccessToken: "tok-1"}
	client := newFakeClient(func(int) (*domain.Session, error) {
		return tokenOnly, nil
	})
	store := NewStore(client, nil, nil, nil, Config{})

	_, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)
	assert.False(t, store.Snapshot().IsAuthenticated)
}

func TestRefresh_ConcurrentCallersJoinOneProviderCall(t *testing.T) {
	gate := make(chan struct{})
	client := newFakeClient(func(int) (*domain.Session, error) {
		<-gate
		return authedSession("admin"), nil
	})
	store := NewStore(client, nil, nil, nil, Config{})

	const callers = 4
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Refresh(context.Background(), ReasonCritical)
			assert.NoError(t, err)
		}()
	}

	// Let every caller reach the in-flight group before releasing.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&client.getCalls))
	assert.True(t, store.Snapshot().IsAuthenticated)
}

func TestRefresh_ThrottledReturnsCurrentWithoutProviderCall(t *testing.T) {
	client := newFakeClient(func(int) (*domain.Session, error) {
		return authedSession("admin"), nil
	})
	store := NewStore(client, nil, nil, nil, Config{RefreshThrottle: time.Hour})

	_, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&client.getCalls))

	sess, err := store.Refresh(context.Background(), ReasonManual)
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.getCalls))

	// Critical reasons bypass the throttle.
	_, err = store.Refresh(context.Background(), ReasonCritical)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.getCalls))
}

func TestRefresh_TokenLossClearsSessionAndNotifies(t *testing.T) {
	client := newFakeClient(func(call int) (*domain.Session, error) {
		if call == 1 {
			return authedSession("admin"), nil
		}
		return nil, domain.ErrSessionNotFound
	})
	notifier := &recorderNotifier{}
	store := NewStore(client, nil, notifier, nil, Config{})

	_, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)
	require.True(t, store.Snapshot().IsAuthenticated)

	_, err = store.Refresh(context.Background(), ReasonCritical)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeSessionLost))

	snap := store.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.Loading)
	assert.Contains(t, notifier.codes(), string(domain.ErrCodeSessionLost))
}

func TestRefresh_TransientFailureKeepsSession(t *testing.T) {
	boom := errors.New("connection reset")
	client := newFakeClient(func(call int) (*domain.Session, error) {
		if call == 1 {
			return authedSession("admin"), nil
		}
		return nil, boom
	})
	notifier := &recorderNotifier{}
	store := NewStore(client, nil, notifier, nil, Config{})

	_, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)

	sess, err := store.Refresh(context.Background(), ReasonCritical)
	require.Error(t, err)
	assert.NotNil(t, sess)
	assert.True(t, store.Snapshot().IsAuthenticated)
	assert.Contains(t, notifier.codes(), string(domain.ErrCodeUnavailable))
}

func TestRefresh_MissingRoleTriggersRepair(t *testing.T) {
	client := newFakeClient(func(call int) (*domain.Session, error) {
		if call == 1 {
			return authedSession(""), nil
		}
		return authedSession("admin"), nil
	})
	roles := &fakeRoleRepo{role: "admin"}
	patcher := &recorderPatcher{}
	repairer := NewRepairer(roles, patcher, nil, nil, RepairConfig{Attempts: 3, Delay: time.Millisecond})
	store := NewStore(client, repairer, nil, nil, Config{})

	_, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)

	assert.Equal(t, "admin", store.Snapshot().Role)
	require.Len(t, patcher.patches(), 1)
	assert.Equal(t, "admin", patcher.patches()[0][domain.MetaRole])
	// Initial fetch plus the post-repair re-fetch.
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.getCalls))
}

func TestSignOut_ResetsState(t *testing.T) {
	client := newFakeClient(func(int) (*domain.Session, error) {
		return authedSession("admin"), nil
	})
	store := NewStore(client, nil, nil, nil, Config{})

	_, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)
	require.True(t, store.Snapshot().IsAuthenticated)

	require.NoError(t, store.SignOut(context.Background()))
	snap := store.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.UserID())
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	client := newFakeClient(func(int) (*domain.Session, error) {
		return authedSession("admin"), nil
	})
	store := NewStore(client, nil, nil, nil, Config{})

	var mu sync.Mutex
	var seen []domain.SessionSnapshot
	store.Subscribe(func(snap domain.SessionSnapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	_, err := store.Refresh(context.Background(), ReasonInitial)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.True(t, seen[len(seen)-1].IsAuthenticated)
}
