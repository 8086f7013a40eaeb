package server

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"inkwell/internal/content"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// callerID returns the authenticated user, or 0 for anonymous callers.
func callerID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// callerClaims returns the verified token claims stored by the auth middleware.
func callerClaims(c *fiber.Ctx) *middleware.Claims {
	claims, _ := c.Locals(claimsLocal).(*middleware.Claims)
	return claims
}

// pageParams reads page and limit, falling back to def for the limit.
func pageParams(c *fiber.Ctx, def int) pagination.Params {
	return pagination.Parse(c.Query("page"), c.Query("limit"), def)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseIndex is parseID for zero-based positions.
func parseIndex(c *fiber.Ctx, param string) (int, error) {
	idx, err := c.ParamsInt(param)
	if err != nil || idx < 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return idx, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "commentId" -> "comment ID", "index" -> "index".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEMultipartForm)
}

// formField reads a form value and reports whether it was sent at all, so edits can tell an
// absent field from an empty one.
func formField(c *fiber.Ctx, key string) (string, bool) {
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return "", false
		}
		vals, ok := form.Value[key]
		if !ok || len(vals) == 0 {
			return "", false
		}
		return vals[0], true
	}
	args := c.Request().PostArgs()
	if !args.Has(key) {
		return "", false
	}
	return string(args.Peek(key)), true
}

// formList reads a list field sent as repeated values, a JSON array or a comma list.
func formList(c *fiber.Ctx, key string) ([]string, bool) {
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, false
		}
		vals, ok := form.Value[key]
		if !ok {
			return nil, false
		}
		if len(vals) == 1 {
			return content.ParseTags(vals[0]), true
		}
		return content.NormalizeTags(vals), true
	}
	raw, ok := formField(c, key)
	if !ok {
		return nil, false
	}
	return content.ParseTags(raw), true
}

// readUploads reads every file sent under field. Non-multipart requests carry none.
func readUploads(c *fiber.Ctx, field string, maxBytes int64) ([]service.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart form")
	}

	files := form.File[field]
	uploads := make([]service.Upload, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxBytes {
			return nil, models.NewValidationError(
				fmt.Sprintf("Image %q exceeds the maximum upload size", fh.Filename))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		uploads = append(uploads, service.Upload{FileName: fh.Filename, Data: data})
	}
	return uploads, nil
}

// parseBody decodes a JSON or form body into dest.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}
