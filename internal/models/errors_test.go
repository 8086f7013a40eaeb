package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{NewNotFoundError("Post", "hello"), fiber.StatusNotFound},
		{NewValidationError("bad"), fiber.StatusBadRequest},
		{NewConflictError("dup"), fiber.StatusConflict},
		{NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{NewInternalError(errors.New("db down")), fiber.StatusInternalServerError},
		{errors.New("plain"), fiber.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewConflictError("dup")), fiber.StatusConflict},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestRespondWithErrorHidesInternalDetails(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return RespondWithAppError(c, NewInternalError(errors.New("pq: password authentication failed")))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return RespondWithAppError(c, errors.New("secret table name"))
	})

	for _, path := range []string{"/boom", "/plain"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		raw, _ := io.ReadAll(resp.Body)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "Internal server error", body.Error)
		assert.Equal(t, CodeInternal, body.Code)
		assert.Empty(t, body.Details)
	}
}
