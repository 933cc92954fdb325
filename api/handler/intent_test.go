package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/sagebright/gateway/api/transport"
	guardUC "github.com/sagebright/gateway/usecase/guard"
	intentUC "github.com/sagebright/gateway/usecase/intent"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *memKV) GetJSON(key string, out any) (bool, error) {
	raw, ok, err := m.Get(key)
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal([]byte(raw), out)
}

func (m *memKV) SetJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(key, string(raw))
}

func newIntentFixture(t *testing.T, window time.Duration) (*IntentHandler, *intentUC.Manager, *guardUC.Guard) {
	t.Helper()
	manager := intentUC.NewManager(newMemKV(), nil)
	guard := guardUC.New(guardUC.Config{Window: window}, nil)
	return NewIntentHandler(manager, guard, nil, nil), manager, guard
}

func postCtx(body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBodyString(body)
	return ctx
}

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx) transport.Envelope {
	t.Helper()
	var env transport.Envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	return env
}

func TestIntentExecute_NoActiveIntent(t *testing.T) {
	h, _, _ := newIntentFixture(t, time.Second)

	ctx := postCtx("")
	h.Execute(ctx)

	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())
}

func TestIntentExecute_HeldByWindowThenSucceedsAfterExpiry(t *testing.T) {
	h, manager, guard := newIntentFixture(t, 60*time.Millisecond)

	capture := postCtx(`{"destination":"/dashboard","reason":"deep-link"}`)
	h.Capture(capture)
	require.Equal(t, http.StatusOK, capture.Response.StatusCode())

	guard.HandleNavigation("/ask-sage")

	held := postCtx("")
	h.Execute(held)
	assert.Equal(t, http.StatusConflict, held.Response.StatusCode())
	env := decodeEnvelope(t, held)
	assert.Equal(t, "CONFLICT", env.Code)

	// A held redirect must not consume the intent.
	active := manager.Active()
	require.NotNil(t, active)
	assert.Equal(t, "/dashboard", active.Destination)

	time.Sleep(150 * time.Millisecond)

	retry := postCtx("")
	h.Execute(retry)
	assert.Equal(t, http.StatusOK, retry.Response.StatusCode())
	env = decodeEnvelope(t, retry)
	assert.Equal(t, "success", env.Status)
	assert.Nil(t, manager.Active())
}

func TestIntentExecute_AllowListedDestinationPassesDuringWindow(t *testing.T) {
	h, manager, guard := newIntentFixture(t, time.Minute)

	capture := postCtx(`{"destination":"/login","reason":"expired-session"}`)
	h.Capture(capture)
	require.Equal(t, http.StatusOK, capture.Response.StatusCode())

	guard.HandleNavigation("/ask-sage")

	exec := postCtx("")
	h.Execute(exec)
	assert.Equal(t, http.StatusOK, exec.Response.StatusCode())
	assert.Nil(t, manager.Active())
}
