package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationPage struct {
	Items      []models.Notification `json:"items"`
	TotalPages int                   `json:"totalPages"`
}

func TestNotificationHandlers_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.signUp(t, "alice")
	bob, _ := env.signUp(t, "bob")

	resp := env.do(t, httptest.NewRequest(http.MethodPost, "/api/users/alice/follow", nil), bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	slug := env.createPost(t, alice, "Fresh words")
	resp = env.do(t, httptest.NewRequest(http.MethodPost, "/api/posts/"+slug+"/like", nil), bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, jsonRequest(t, http.MethodPost, "/api/posts/"+slug+"/comments",
		map[string]string{"content": "nice"}), bob, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Acting on your own post does not notify you.
	resp = env.do(t, httptest.NewRequest(http.MethodPost, "/api/posts/"+slug+"/like", nil), alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page notificationPage
	env.do(t, httptest.NewRequest(http.MethodGet, "/api/notifications", nil), bob, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.NotificationNewPost, page.Items[0].Type)
	assert.Equal(t, slug, page.Items[0].Payload["slug"])

	env.do(t, httptest.NewRequest(http.MethodGet, "/api/notifications", nil), alice, &page)
	require.Len(t, page.Items, 3)
	types := []models.NotificationType{page.Items[0].Type, page.Items[1].Type, page.Items[2].Type}
	assert.Equal(t, []models.NotificationType{
		models.NotificationNewComment,
		models.NotificationNewLike,
		models.NotificationNewFollower,
	}, types, "newest first")

	readPath := fmt.Sprintf("/api/notifications/%d/read", page.Items[0].ID)
	resp = env.do(t, httptest.NewRequest(http.MethodPut, readPath, nil), bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other users cannot mark it")

	resp = env.do(t, httptest.NewRequest(http.MethodPut, readPath, nil), alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.do(t, httptest.NewRequest(http.MethodGet, "/api/notifications", nil), alice, &page)
	assert.Len(t, page.Items, 2)

	var marked struct {
		Updated int64 `json:"updated"`
	}
	resp = env.do(t, httptest.NewRequest(http.MethodPut, "/api/notifications/read-all", nil), alice, &marked)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), marked.Updated)

	env.do(t, httptest.NewRequest(http.MethodGet, "/api/notifications", nil), alice, &page)
	assert.Empty(t, page.Items)
}

func TestNotificationHandlers_RequireAuth(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp(t, "someone")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/notifications", nil), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body errorBody
	resp = env.do(t, httptest.NewRequest(http.MethodPut, "/api/notifications/abc/read", nil), token, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid ID", body.Error)
}
