package services

import (
	"github.com/sagebright/gateway/internal/notify"
	"github.com/sagebright/gateway/usecase"
)

// NotifyBridge adapts the notification center to the usecase port.
type NotifyBridge struct {
	center *notify.Center
}

func NewNotifyBridge(center *notify.Center) *NotifyBridge {
	return &NotifyBridge{center: center}
}

func (b *NotifyBridge) Notify(level usecase.NotifyLevel, code, message string) {
	if b == nil || b.center == nil {
		return
	}
	switch level {
	case usecase.NotifyError:
		b.center.Publish(notify.LevelError, code, message)
	case usecase.NotifyWarning:
		b.center.Publish(notify.LevelWarning, code, message)
	default:
		b.center.Publish(notify.LevelInfo, code, message)
	}
}

var _ usecase.Notifier = (*NotifyBridge)(nil)
