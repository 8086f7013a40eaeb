package server

import (
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

// SearchPosts handles GET /api/search/posts?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page, err := s.search.Posts(c.UserContext(), c.Query("q"), callerID(c),
		pageParams(c, pagination.DefaultSearchLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// SearchUsers handles GET /api/search/users?q=...
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	page, err := s.search.Users(c.UserContext(), c.Query("q"), pageParams(c, pagination.DefaultSearchLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// Autocomplete handles GET /api/search/autocomplete?q=...&type=posts|users
func (s *Server) Autocomplete(c *fiber.Ctx) error {
	q := c.Query("q")
	limit := c.QueryInt("limit", 0)

	switch strings.ToLower(c.Query("type", "posts")) {
	case "posts":
		hits, err := s.search.AutocompletePosts(c.UserContext(), q, limit)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		return c.JSON(fiber.Map{"items": hits})
	case "users":
		hits, err := s.search.AutocompleteUsers(c.UserContext(), q, limit)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		return c.JSON(fiber.Map{"items": hits})
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("type must be posts or users"))
	}
}
