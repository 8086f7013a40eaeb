package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocket_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/ws", nil), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_PlainRequestNeedsUpgrade(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp(t, "listener")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/ws", nil), token, nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebSocket_UnavailableWithoutRedis(t *testing.T) {
	srv, err := NewServerWithDeps(testConfig(), database.NewManager(testutil.NewDB(t)), nil)
	require.NoError(t, err)
	env := &testEnv{srv: srv, app: srv.App()}
	token, _ := env.signUp(t, "listener")

	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	resp := env.do(t, req, token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
