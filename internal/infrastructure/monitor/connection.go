package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/internal/infrastructure/localstore"
	"github.com/sagebright/gateway/internal/provider"
)

// Monitor periodically probes the auth provider and the backing stores.
// Provider reachability is what gates the metadata patch drain.
type Monitor struct {
	auth  provider.Client
	pg    *pgxpool.Pool
	redis *redislib.Client
	local *localstore.Store

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	logger   *zap.Logger
}

func New(auth provider.Client, pg *pgxpool.Pool, redis *redislib.Client, local *localstore.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		auth:     auth,
		pg:       pg,
		redis:    redis,
		local:    local,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

// IsOnline reports whether the auth provider is reachable.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Provider
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh()
	for {
		select {
		case <-ticker.C:
			m.refresh()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) refresh() {
	localOK, pending := m.checkLocal()
	status := Status{
		Provider:       m.checkProvider(),
		PostgreSQL:     m.checkPostgres(),
		Redis:          m.checkRedis(),
		LocalStore:     localOK,
		PendingPatches: pending,
		LastCheck:      time.Now(),
	}

	m.mu.Lock()
	wasOnline := m.status.Provider
	m.status = status
	m.mu.Unlock()

	if wasOnline != status.Provider {
		m.logger.Info("provider connectivity changed", zap.Bool("online", status.Provider))
	}
}

func (m *Monitor) checkProvider() bool {
	if m.auth == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.auth.Healthy(ctx)
}

func (m *Monitor) checkPostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) checkLocal() (bool, int) {
	if m.local == nil {
		return false, 0
	}
	pending, err := m.local.PendingPatches()
	if err != nil {
		m.logger.Warn("local store check failed", zap.Error(err))
		return false, pending
	}
	return true, pending
}
