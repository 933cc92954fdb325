package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/api/transport"
	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/pkg/httpcontext"
	sessionUC "github.com/sagebright/gateway/usecase/session"
)

type SessionHandler struct {
	baseHandler
	store *sessionUC.Store
}

func NewSessionHandler(store *sessionUC.Store, adapter *httpcontext.Adapter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		store:       store,
	}
}

// @Summary Sign in against the auth provider
// @Tags session
// @Router /api/v1/session/login [post]
func (h *SessionHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Email == "" || req.Password == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.store.SignIn(stdCtx, req.Email, req.Password)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, session)
}

// @Summary Refresh the current session
// @Tags session
// @Router /api/v1/session/refresh [post]
func (h *SessionHandler) Refresh(ctx *fasthttp.RequestCtx) {
	var req transport.RefreshRequest
	_ = json.Unmarshal(ctx.PostBody(), &req)
	reason := sessionUC.RefreshReason(req.Reason)
	if reason == "" {
		reason = sessionUC.ReasonManual
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.store.Refresh(stdCtx, reason)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, session)
}

// @Summary Sign out and reset local state
// @Tags session
// @Router /api/v1/session/logout [post]
func (h *SessionHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.store.SignOut(stdCtx); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary Current session snapshot
// @Tags session
// @Router /api/v1/session [get]
func (h *SessionHandler) Get(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.store.Snapshot())
}
