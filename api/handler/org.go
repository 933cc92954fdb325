package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/api/transport"
	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/pkg/httpcontext"
	orgUC "github.com/sagebright/gateway/usecase/org"
	sessionUC "github.com/sagebright/gateway/usecase/session"
)

type OrgHandler struct {
	baseHandler
	orgs  *orgUC.Resolver
	store *sessionUC.Store
}

func NewOrgHandler(orgs *orgUC.Resolver, store *sessionUC.Store, adapter *httpcontext.Adapter, logger *zap.Logger) *OrgHandler {
	return &OrgHandler{
		baseHandler: newBaseHandler(adapter, logger),
		orgs:        orgs,
		store:       store,
	}
}

// @Summary Current organization context
// @Tags org
// @Router /api/v1/org [get]
func (h *OrgHandler) Get(ctx *fasthttp.RequestCtx) {
	octx, ok := h.orgs.Current()
	if !ok {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "organization context not resolved yet", nil))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, octx)
}

// @Summary Retry organization resolution from scratch
// @Tags org
// @Router /api/v1/org/recover [post]
func (h *OrgHandler) Recover(ctx *fasthttp.RequestCtx) {
	sess := h.store.Session()
	if sess == nil {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "no active session", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	recovered := h.orgs.Recover(stdCtx, sess)
	octx, _ := h.orgs.Current()
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"recovered": recovered,
		"org":       octx,
	})
}
