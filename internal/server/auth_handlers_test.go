package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandlers_RegisterLoginLogout(t *testing.T) {
	env := newTestEnv(t)

	var reg AuthResponse
	resp := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Mary Shelley",
		"email":    "Mary@Example.com",
		"username": "mshelley",
		"password": "frankenstein",
	}), "", &reg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "mary@example.com", reg.User.Email)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "token cookie is set")
	assert.True(t, cookie.HttpOnly)

	var login AuthResponse
	resp = env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "mary@example.com", "password": "frankenstein",
	}), "", &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me models.User
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), login.Token, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mshelley", me.Username)

	resp = env.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body errorBody
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), login.Token, &body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthorized, body.Code)

	// The registration token is a different jti and still works.
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), reg.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthHandlers_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "taken")

	tests := []struct {
		name   string
		path   string
		body   map[string]string
		status int
		code   string
	}{
		{
			name:   "duplicate email",
			path:   "/api/auth/register",
			body:   map[string]string{"name": "Other", "email": "taken@example.com", "username": "other", "password": "password1"},
			status: http.StatusConflict,
			code:   models.CodeConflict,
		},
		{
			name:   "invalid username",
			path:   "/api/auth/register",
			body:   map[string]string{"name": "Other", "email": "o@example.com", "username": "no spaces", "password": "password1"},
			status: http.StatusBadRequest,
			code:   models.CodeValidation,
		},
		{
			name:   "wrong password",
			path:   "/api/auth/login",
			body:   map[string]string{"email": "taken@example.com", "password": "nope-nope"},
			status: http.StatusUnauthorized,
			code:   models.CodeUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			resp := env.do(t, jsonRequest(t, http.MethodPost, tt.path, tt.body), "", &body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(t, req, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthHandlers_ExternalSignIn(t *testing.T) {
	env := newTestEnv(t)
	identity := map[string]string{
		"externalId": "broker-42",
		"email":      "ext.user@example.com",
		"name":       "External User",
	}

	resp := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/external", identity), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "shared secret is required")

	req := jsonRequest(t, http.MethodPost, "/api/auth/external", identity)
	req.Header.Set(ExternalAuthHeader, "wrong")
	resp = env.do(t, req, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var res AuthResponse
	req = jsonRequest(t, http.MethodPost, "/api/auth/external", identity)
	req.Header.Set(ExternalAuthHeader, testExternalSecret)
	resp = env.do(t, req, "", &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "extuser", res.User.Username)
	assert.Equal(t, models.DefaultProfileImage, res.User.ProfileImage)
}
