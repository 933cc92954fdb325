package guard

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
)

// Config tunes the route guard.
type Config struct {
	// Window is how long redirects stay suppressed after entering the
	// sensitive route.
	Window         time.Duration
	SensitiveRoute string
	LoginRoute     string
}

// Guard is a time-boxed protection window around the sensitive route. For a
// fixed window after navigating there, competing redirects to anywhere
// outside the allow-list are rejected, which stops overlapping readiness
// checks from firing contradictory navigations right after arrival. The
// window closes on timer expiry, on readiness being reached, or on the user
// navigating away, whichever comes first.
type Guard struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	protected bool
	enteredAt time.Time
	timer     *time.Timer
}

// New builds a route guard in the Unprotected state.
func New(cfg Config, logger *zap.Logger) *Guard {
	if cfg.Window <= 0 {
		cfg.Window = 8 * time.Second
	}
	if cfg.SensitiveRoute == "" {
		cfg.SensitiveRoute = "/ask-sage"
	}
	if cfg.LoginRoute == "" {
		cfg.LoginRoute = "/login"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{cfg: cfg, logger: logger}
}

// HandleNavigation observes a navigation event. Arriving at the sensitive
// route opens (or restarts) the protection window; leaving it closes it.
func (g *Guard) HandleNavigation(route string) {
	if route == g.cfg.SensitiveRoute {
		g.enter()
		return
	}
	g.exit("navigated away")
}

// AdmitRedirect decides whether a redirect to destination may proceed.
// Rejections while protected are logged with the destination.
func (g *Guard) AdmitRedirect(destination string) bool {
	g.mu.Lock()
	protected := g.protected
	g.mu.Unlock()

	if !protected {
		return true
	}
	if destination == g.cfg.SensitiveRoute || destination == g.cfg.LoginRoute {
		return true
	}

	g.logger.Warn("redirect rejected during protection window",
		zap.String("destination", destination),
		zap.Duration("window", g.cfg.Window))
	return false
}

// ObserveReadiness closes the window early once the aggregate is Ready;
// enforcement past that point would only delay legitimate navigation.
func (g *Guard) ObserveReadiness(snap domain.ReadinessSnapshot) {
	if snap.IsReady {
		g.exit("readiness reached")
	}
}

// State reports whether the guard is protected and since when.
func (g *Guard) State() (bool, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.protected, g.enteredAt
}

func (g *Guard) enter() {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
	}
	restarted := g.protected
	g.protected = true
	g.enteredAt = time.Now()
	g.timer = time.AfterFunc(g.cfg.Window, func() {
		g.exit("window expired")
	})
	g.mu.Unlock()

	if restarted {
		g.logger.Info("protection window restarted", zap.String("route", g.cfg.SensitiveRoute))
	} else {
		g.logger.Info("protection window opened",
			zap.String("route", g.cfg.SensitiveRoute),
			zap.Duration("window", g.cfg.Window))
	}
}

func (g *Guard) exit(cause string) {
	g.mu.Lock()
	if !g.protected {
		g.mu.Unlock()
		return
	}
	g.protected = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	held := time.Since(g.enteredAt)
	g.mu.Unlock()

	g.logger.Info("protection window closed",
		zap.String("cause", cause),
		zap.Duration("held", held))
}
