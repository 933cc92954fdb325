package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/api/transport"
	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/pkg/httpcontext"
	chatUC "github.com/sagebright/gateway/usecase/chat"
)

type ChatHandler struct {
	baseHandler
	chat *chatUC.Orchestrator
}

func NewChatHandler(chat *chatUC.Orchestrator, adapter *httpcontext.Adapter, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		baseHandler: newBaseHandler(adapter, logger),
		chat:        chat,
	}
}

// @Summary Send one message to the chat backend
// @Tags chat
// @Router /api/v1/chat/send [post]
func (h *ChatHandler) Send(ctx *fasthttp.RequestCtx) {
	var req transport.ChatSendRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reply, err := h.chat.SendMessage(stdCtx, req.Message)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reply)
}

// @Summary Current conversation transcript
// @Tags chat
// @Router /api/v1/chat/messages [get]
func (h *ChatHandler) Messages(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.chat.Messages())
}
