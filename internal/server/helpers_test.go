package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"id", "ID"},
		{"commentId", "comment ID"},
		{"postCommentId", "post comment ID"},
		{"index", "index"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanizeParam(tt.in), tt.in)
	}
}

func TestFormHelpers(t *testing.T) {
	type result struct {
		Title     string   `json:"title"`
		HasTitle  bool     `json:"hasTitle"`
		HasBody   bool     `json:"hasBody"`
		Tags      []string `json:"tags"`
		HasTags   bool     `json:"hasTags"`
		FileCount int      `json:"fileCount"`
	}
	app := fiber.New()
	app.Post("/form", func(c *fiber.Ctx) error {
		var r result
		r.Title, r.HasTitle = formField(c, "title")
		_, r.HasBody = formField(c, "body")
		r.Tags, r.HasTags = formList(c, "tags")
		files, err := readUploads(c, "images", 1<<20)
		if err != nil {
			return err
		}
		r.FileCount = len(files)
		return c.JSON(r)
	})

	send := func(req *http.Request) result {
		t.Helper()
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var r result
		require.NoError(t, decodeJSON(resp, &r))
		return r
	}

	t.Run("multipart repeated tags", func(t *testing.T) {
		r := send(multipartRequest(t, http.MethodPost, "/form", map[string][]string{
			"title": {""},
			"tags":  {"go", " web", "go"},
		}, formFile{field: "images", name: "x.bin", data: []byte{1, 2, 3}}))
		assert.True(t, r.HasTitle, "empty value still counts as sent")
		assert.False(t, r.HasBody)
		assert.True(t, r.HasTags)
		assert.Equal(t, []string{"go", "web"}, r.Tags)
		assert.Equal(t, 1, r.FileCount)
	})

	t.Run("multipart json tags", func(t *testing.T) {
		r := send(multipartRequest(t, http.MethodPost, "/form", map[string][]string{
			"tags": {`["a","b"]`},
		}))
		assert.Equal(t, []string{"a", "b"}, r.Tags)
		assert.False(t, r.HasTitle)
	})

	t.Run("urlencoded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader("title=Hi&tags=x,y"))
		req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
		r := send(req)
		assert.Equal(t, "Hi", r.Title)
		assert.Equal(t, []string{"x", "y"}, r.Tags)
		assert.Zero(t, r.FileCount)
	})
}

func TestReadUploads_TooLarge(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Post("/upload", func(c *fiber.Ctx) error {
		_, err := readUploads(c, "images", 4)
		return err
	})

	resp, err := app.Test(multipartRequest(t, http.MethodPost, "/upload", nil,
		formFile{field: "images", name: "big.png", data: []byte("0123456789")}), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
