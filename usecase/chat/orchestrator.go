package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/usecase"
)

// ContextSource supplies the identity inputs a send needs. The token is read
// through this on every send, never cached by the orchestrator.
type ContextSource interface {
	AccessToken() string
	UserID() string
	OrgID() string
}

// Config tunes the chat orchestrator.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

const errorReplyContent = "Sorry, something went wrong sending that. Please try again."

// Orchestrator owns the message list and the send path to the chat backend.
// It is the terminal consumer of readiness: callers gate on readiness before
// invoking it, and it still re-validates identity inputs itself.
type Orchestrator struct {
	source   ContextSource
	client   *fasthttp.Client
	notifier usecase.Notifier
	logger   *zap.Logger
	cfg      Config

	mu       sync.Mutex
	messages []domain.Message
}

// NewOrchestrator builds the chat orchestrator.
func NewOrchestrator(source ContextSource, notifier usecase.Notifier, logger *zap.Logger, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		source:   source,
		client:   &fasthttp.Client{},
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// Messages returns a copy of the current message list.
func (o *Orchestrator) Messages() []domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Message(nil), o.messages...)
}

// Reset clears the message list, typically on sign-out.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.messages = nil
	o.mu.Unlock()
}

type sendRequest struct {
	Message string `json:"message"`
}

type sendResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

// SendMessage validates content and identity, appends the optimistic user
// message plus a loading placeholder, issues exactly one backend call with a
// freshly read bearer token, and resolves the placeholder on every path.
func (o *Orchestrator) SendMessage(ctx context.Context, content string) (*domain.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, domain.ErrEmptyMessage
	}
	if o.source.UserID() == "" {
		return nil, domain.ErrUnauthorized
	}
	if o.source.OrgID() == "" {
		// Targeted recovery state, not a crash: the caller shows the
		// organization-missing affordance and nothing is sent.
		if o.notifier != nil {
			o.notifier.Notify(usecase.NotifyWarning, string(domain.ErrCodeOrgMissing),
				"we lost track of your organization, try recovering it before sending")
		}
		return nil, domain.ErrOrganizationMissing
	}

	now := time.Now()
	o.append(domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.MessageRoleUser,
		Content:   trimmed,
		Status:    domain.MessageStatusSent,
		CreatedAt: now,
	})

	placeholderID := uuid.NewString()
	o.append(domain.Message{
		ID:        placeholderID,
		Role:      domain.MessageRoleAssistant,
		Status:    domain.MessageStatusLoading,
		CreatedAt: now,
	})

	resolved := false
	defer func() {
		// Backstop: no code path may leave a dangling placeholder.
		if !resolved {
			o.resolvePlaceholder(placeholderID, errorReplyContent, domain.MessageStatusError)
		}
	}()

	token := o.source.AccessToken()
	reply, err := o.post(ctx, trimmed, token)
	if err != nil {
		o.logger.Warn("chat send failed", zap.Error(err))
		errMsg := o.resolvePlaceholder(placeholderID, errorReplyContent, domain.MessageStatusError)
		resolved = true
		return errMsg, err
	}

	replyMsg := o.resolvePlaceholder(placeholderID, reply, domain.MessageStatusSent)
	resolved = true
	return replyMsg, nil
}

func (o *Orchestrator) post(ctx context.Context, message, token string) (string, error) {
	body, err := json.Marshal(sendRequest{Message: message})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(o.cfg.Endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	timeout := o.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := o.client.DoTimeout(req, resp, timeout); err != nil {
		return "", domain.WrapError(domain.ErrCodeUnavailable, "chat backend unreachable", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil && resp.StatusCode() == http.StatusOK {
		return "", domain.WrapError(domain.ErrCodeInternal, "malformed chat reply", err)
	}

	if resp.StatusCode() != http.StatusOK {
		detail := parsed.Error
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode())
		}
		return "", domain.WrapError(domain.ErrCodeUnavailable, "chat backend rejected message",
			fmt.Errorf("%s", detail))
	}
	return parsed.Reply, nil
}

func (o *Orchestrator) append(msg domain.Message) {
	o.mu.Lock()
	o.messages = append(o.messages, msg)
	o.mu.Unlock()
}

// resolvePlaceholder replaces the loading placeholder in place. Resolving an
// already-resolved placeholder is a no-op, so the replacement happens exactly
// once per send.
func (o *Orchestrator) resolvePlaceholder(id, content string, status domain.MessageStatus) *domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.messages {
		if o.messages[i].ID == id && o.messages[i].Status == domain.MessageStatusLoading {
			o.messages[i].Content = content
			o.messages[i].Status = status
			resolved := o.messages[i]
			return &resolved
		}
	}
	return nil
}
