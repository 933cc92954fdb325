package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/api/transport"
	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/pkg/httpcontext"
	guardUC "github.com/sagebright/gateway/usecase/guard"
)

type NavigateHandler struct {
	baseHandler
	guard *guardUC.Guard
}

func NewNavigateHandler(guard *guardUC.Guard, adapter *httpcontext.Adapter, logger *zap.Logger) *NavigateHandler {
	return &NavigateHandler{
		baseHandler: newBaseHandler(adapter, logger),
		guard:       guard,
	}
}

// @Summary Report a navigation to the route guard
// @Tags navigate
// @Router /api/v1/navigate [post]
func (h *NavigateHandler) Navigate(ctx *fasthttp.RequestCtx) {
	var req transport.NavigateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Route == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	h.guard.HandleNavigation(req.Route)
	protected, since := h.guard.State()
	payload := map[string]interface{}{"protected": protected}
	if protected {
		payload["since"] = since
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}

// @Summary Ask whether a redirect may proceed right now
// @Tags navigate
// @Router /api/v1/navigate/redirect [post]
func (h *NavigateHandler) Redirect(ctx *fasthttp.RequestCtx) {
	var req transport.RedirectRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Destination == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	h.respondSuccess(ctx, http.StatusOK, map[string]bool{
		"admitted": h.guard.AdmitRedirect(req.Destination),
	})
}
