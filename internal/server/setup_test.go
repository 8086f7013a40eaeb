package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret         = "test-secret-key-12345678901234567890"
	testExternalSecret = "broker-shared-secret"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		Port:                 "0",
		JWTSecret:            testSecret,
		ExternalAuthSecret:   testExternalSecret,
		AllowedOrigins:       "http://localhost:5173",
		ImageMaxUploadSizeMB: 1,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := NewServerWithDeps(testConfig(), database.NewManager(db), rdb)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.App(), db: db, mr: mr}
}

// do sends a request and decodes a JSON response body into out when out is non-nil.
func (e *testEnv) do(t *testing.T, req *http.Request, token string, out any) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	return req
}

type formFile struct {
	field string
	name  string
	data  []byte
}

// multipartRequest builds a form with repeated values allowed per key.
func multipartRequest(t *testing.T, method, path string, fields map[string][]string, files ...formFile) *http.Request {
	t.Helper()
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)
	for k, vals := range fields {
		for _, v := range vals {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// signUp registers a user through the API and returns its token and id.
func (e *testEnv) signUp(t *testing.T, username string) (string, uint) {
	t.Helper()
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	resp := e.do(t, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Writer " + username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"username": username,
		"password": "password1",
	}), "", &res)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return res.Token, res.User.ID
}

// createPost publishes a post through the API and returns its slug.
func (e *testEnv) createPost(t *testing.T, token, title string) string {
	t.Helper()
	var post struct {
		Slug string `json:"slug"`
	}
	resp := e.do(t, multipartRequest(t, http.MethodPost, "/api/posts", map[string][]string{
		"title": {title},
		"body":  {"<p>Some words about " + title + "</p>"},
	}), token, &post)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return post.Slug
}

func decodeJSON(resp *http.Response, out any) error {
	return json.NewDecoder(resp.Body).Decode(out)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
