package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/pkg/httpcontext"
	readinessUC "github.com/sagebright/gateway/usecase/readiness"
)

type ReadinessHandler struct {
	baseHandler
	agg *readinessUC.Aggregator
}

func NewReadinessHandler(agg *readinessUC.Aggregator, adapter *httpcontext.Adapter, logger *zap.Logger) *ReadinessHandler {
	return &ReadinessHandler{
		baseHandler: newBaseHandler(adapter, logger),
		agg:         agg,
	}
}

// @Summary Aggregated context readiness
// @Tags readiness
// @Router /api/v1/readiness [get]
func (h *ReadinessHandler) Get(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.agg.Snapshot())
}
