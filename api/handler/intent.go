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
	intentUC "github.com/sagebright/gateway/usecase/intent"
)

type IntentHandler struct {
	baseHandler
	intents *intentUC.Manager
	guard   *guardUC.Guard
}

func NewIntentHandler(intents *intentUC.Manager, guard *guardUC.Guard, adapter *httpcontext.Adapter, logger *zap.Logger) *IntentHandler {
	return &IntentHandler{
		baseHandler: newBaseHandler(adapter, logger),
		intents:     intents,
		guard:       guard,
	}
}

// @Summary Capture a post-authentication redirect intent
// @Tags intent
// @Router /api/v1/intent [post]
func (h *IntentHandler) Capture(ctx *fasthttp.RequestCtx) {
	var req transport.CaptureIntentRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Destination == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}
	if req.Priority <= 0 {
		req.Priority = domain.IntentPriorityDefault
	}

	accepted := h.intents.Capture(req.Destination, req.Reason, req.Metadata, req.Priority)
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"accepted": accepted,
		"active":   h.intents.Active(),
	})
}

// @Summary Active redirect intent, if any
// @Tags intent
// @Router /api/v1/intent [get]
func (h *IntentHandler) Get(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.intents.Active())
}

// @Summary Consume the active redirect intent
// @Tags intent
// @Router /api/v1/intent/execute [post]
func (h *IntentHandler) Execute(ctx *fasthttp.RequestCtx) {
	active := h.intents.Active()
	if active == nil {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "no active redirect intent", nil))
		return
	}
	// The intent survives a held redirect so the same attempt can succeed
	// once the protection window expires.
	if !h.guard.AdmitRedirect(active.Destination) {
		h.respondJSON(ctx, http.StatusConflict, transport.NewError(string(domain.ErrCodeConflict), "redirect held by protection window", nil))
		return
	}
	intent := h.intents.Execute()
	if intent == nil {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "no active redirect intent", nil))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, intent)
}

// @Summary Clear the active redirect intent
// @Tags intent
// @Router /api/v1/intent [delete]
func (h *IntentHandler) Clear(ctx *fasthttp.RequestCtx) {
	h.intents.Clear()
	h.respondSuccess(ctx, http.StatusOK, nil)
}
