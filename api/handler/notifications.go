package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/internal/notify"
	"github.com/sagebright/gateway/pkg/httpcontext"
)

type NotificationHandler struct {
	baseHandler
	center *notify.Center
}

func NewNotificationHandler(center *notify.Center, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		center:      center,
	}
}

// @Summary Drain pending user-facing notifications
// @Tags notifications
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) Drain(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.center.Drain())
}
