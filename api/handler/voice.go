package handler

import (
	"net/http"
	"net/url"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/pkg/httpcontext"
	intentUC "github.com/sagebright/gateway/usecase/intent"
	voiceUC "github.com/sagebright/gateway/usecase/voice"
)

type VoiceHandler struct {
	baseHandler
	voices  *voiceUC.Resolver
	intents *intentUC.Manager
}

func NewVoiceHandler(voices *voiceUC.Resolver, intents *intentUC.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{
		baseHandler: newBaseHandler(adapter, logger),
		voices:      voices,
		intents:     intents,
	}
}

// @Summary Resolve the voice parameter for the current navigation
// @Tags voice
// @Router /api/v1/voice [get]
func (h *VoiceHandler) Resolve(ctx *fasthttp.RequestCtx) {
	query := url.Values{}
	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		query.Add(string(key), string(value))
	})

	selection := h.voices.Resolve(query, h.intents.Active())
	h.respondSuccess(ctx, http.StatusOK, selection)
}
