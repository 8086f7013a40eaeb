package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Stored images never change, so clients may keep them for a year.
const imageCacheControl = "public, max-age=31536000, immutable"

// GetImage handles GET /images/:id
func (s *Server) GetImage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	img, err := s.images.Get(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	c.Set(fiber.HeaderContentType, img.ContentType)
	c.Set(fiber.HeaderCacheControl, imageCacheControl)
	return c.Send(img.Data)
}
