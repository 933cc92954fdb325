package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sagebright/gateway/domain"
)

// HTTPClient talks to a GoTrue-style auth endpoint over its REST surface.
// It owns the refresh token and the cached current session; every state
// change is published on the event channel.
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *fasthttp.Client
	logger  *zap.Logger

	mu      sync.Mutex
	current *domain.Session

	events chan Event
}

// Config holds the provider endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPClient builds the provider client. The returned client is ready to
// use; no session exists until sign-in or a restored refresh token.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  &fasthttp.Client{},
		logger:  logger,
		events:  make(chan Event, 16),
	}
}

var _ Client = (*HTTPClient)(nil)

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type providerError struct {
	ErrorMessage string `json:"error"`
	Msg          string `json:"msg"`
	Message      string `json:"message"`
}

func (e providerError) text() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "provider error"
	}
}

func (u userResponse) toDomain() *domain.User {
	meta := make(map[string]string, len(u.UserMetadata))
	for k, v := range u.UserMetadata {
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}
	return &domain.User{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  meta,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (t tokenResponse) toSession() *domain.Session {
	user := t.User.toDomain()
	return &domain.Session{
		User:         user,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(t.ExpiresIn) * time.Second),
		Metadata:     user.Metadata,
	}
}

func (c *HTTPClient) GetSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return nil, domain.ErrSessionNotFound
	}
	if current.IsExpired(time.Now()) {
		return c.RefreshSession(ctx)
	}
	return current, nil
}

func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	status, respBody, err := c.do(ctx, fasthttp.MethodPost, "/token?grant_type=password", "", body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "sign-in request failed", err)
	}
	if status != http.StatusOK {
		return nil, c.asError(status, respBody, "sign-in rejected")
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "malformed token response", err)
	}
	session := tr.toSession()
	c.setCurrent(session)
	c.publish(Event{Type: EventSignedIn, Session: session})
	return session, nil
}

func (c *HTTPClient) RefreshSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	refreshToken := ""
	if c.current != nil {
		refreshToken = c.current.RefreshToken
	}
	c.mu.Unlock()

	if refreshToken == "" {
		return nil, domain.ErrSessionNotFound
	}

	body, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
	status, respBody, err := c.do(ctx, fasthttp.MethodPost, "/token?grant_type=refresh_token", "", body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "session refresh failed", err)
	}
	if status != http.StatusOK {
		// Refresh token rejected: the session is gone, not merely stale.
		c.setCurrent(nil)
		c.publish(Event{Type: EventSignedOut})
		return nil, c.asError(status, respBody, "session refresh rejected")
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "malformed token response", err)
	}
	session := tr.toSession()
	c.setCurrent(session)
	c.publish(Event{Type: EventTokenRefreshed, Session: session})
	return session, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	status, respBody, err := c.do(ctx, fasthttp.MethodGet, "/user", accessToken, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "user fetch failed", err)
	}
	if status != http.StatusOK {
		return nil, c.asError(status, respBody, "user fetch rejected")
	}
	var ur userResponse
	if err := json.Unmarshal(respBody, &ur); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "malformed user response", err)
	}
	return ur.toDomain(), nil
}

func (c *HTTPClient) UpdateUserMetadata(ctx context.Context, accessToken string, patch map[string]string) error {
	meta := make(map[string]any, len(patch))
	for k, v := range patch {
		meta[k] = v
	}
	body, _ := json.Marshal(map[string]any{"data": meta})
	status, respBody, err := c.do(ctx, fasthttp.MethodPut, "/user", accessToken, body)
	if err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "metadata update failed", err)
	}
	if status != http.StatusOK {
		return c.asError(status, respBody, "metadata update rejected")
	}

	// Fold the accepted patch into the cached session so subsequent
	// GetSession calls observe it without another round trip.
	c.mu.Lock()
	if c.current != nil {
		if c.current.Metadata == nil {
			c.current.Metadata = map[string]string{}
		}
		for k, v := range patch {
			c.current.Metadata[k] = v
			if c.current.User != nil {
				if c.current.User.Metadata == nil {
					c.current.User.Metadata = map[string]string{}
				}
				c.current.User.Metadata[k] = v
			}
		}
	}
	session := c.current
	c.mu.Unlock()

	c.publish(Event{Type: EventUserUpdated, Session: session})
	return nil
}

func (c *HTTPClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := ""
	if c.current != nil {
		token = c.current.AccessToken
	}
	c.current = nil
	c.mu.Unlock()

	c.publish(Event{Type: EventSignedOut})

	if token == "" {
		return nil
	}
	status, respBody, err := c.do(ctx, fasthttp.MethodPost, "/logout", token, nil)
	if err != nil {
		// Local state is already cleared; the remote revocation is best-effort.
		c.logger.Warn("sign-out request failed", zap.Error(err))
		return nil
	}
	if status >= http.StatusBadRequest && status != http.StatusUnauthorized {
		c.logger.Warn("sign-out rejected", zap.Int("status", status), zap.ByteString("body", respBody))
	}
	return nil
}

func (c *HTTPClient) Events() <-chan Event {
	return c.events
}

func (c *HTTPClient) Healthy(ctx context.Context) bool {
	status, _, err := c.do(ctx, fasthttp.MethodGet, "/health", "", nil)
	return err == nil && status == http.StatusOK
}

func (c *HTTPClient) setCurrent(session *domain.Session) {
	c.mu.Lock()
	c.current = session
	c.mu.Unlock()
}

func (c *HTTPClient) publish(event Event) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn("auth event dropped, subscriber too slow", zap.String("event", string(event.Type)))
	}
}

func (c *HTTPClient) asError(status int, body []byte, message string) error {
	var pe providerError
	_ = json.Unmarshal(body, &pe)
	err := fmt.Errorf("status %d: %s", status, pe.text())
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return domain.WrapError(domain.ErrCodeUnauthorized, message, err)
	}
	return domain.WrapError(domain.ErrCodeUnavailable, message, err)
}

func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := c.client.DoTimeout(req, resp, timeout); err != nil {
		return 0, nil, err
	}

	out := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), out, nil
}
