package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one recoverable-failure notice surfaced to the UI instead
// of crashing or redirecting. The frontend renders these as toasts.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Center is a capped in-memory ring of notifications. Publishing never
// blocks and never fails; old entries are evicted when the cap is reached.
type Center struct {
	mu      sync.Mutex
	entries []Notification
	cap     int
	logger  *zap.Logger
}

// NewCenter builds a notification center with the given capacity.
func NewCenter(capacity int, logger *zap.Logger) *Center {
	if capacity <= 0 {
		capacity = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{cap: capacity, logger: logger}
}

// Publish records a notification and logs it at the matching level.
func (c *Center) Publish(level Level, code, message string) {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Code:      code,
		Message:   message,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries = append(c.entries, n)
	if len(c.entries) > c.cap {
		c.entries = c.entries[len(c.entries)-c.cap:]
	}
	c.mu.Unlock()

	fields := []zap.Field{zap.String("code", code)}
	switch level {
	case LevelError:
		c.logger.Error(message, fields...)
	case LevelWarning:
		c.logger.Warn(message, fields...)
	default:
		c.logger.Info(message, fields...)
	}
}

// Drain returns all pending notifications and clears the ring.
func (c *Center) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.entries
	c.entries = nil
	return out
}

// Peek returns pending notifications without clearing them.
func (c *Center) Peek() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.entries...)
}
