package server

import (
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/users/:username
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.users.Profile(c.UserContext(), c.Params("username"), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// GetUserPosts handles GET /api/users/:username/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	page, err := s.posts.ByAuthor(c.UserContext(), c.Params("username"), callerID(c),
		pageParams(c, pagination.DefaultPostLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetFollowers handles GET /api/users/:username/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	page, err := s.users.Followers(c.UserContext(), c.Params("username"), callerID(c),
		pageParams(c, pagination.DefaultFollowLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetFollowing handles GET /api/users/:username/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	page, err := s.users.Following(c.UserContext(), c.Params("username"), callerID(c),
		pageParams(c, pagination.DefaultFollowLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// FollowUser handles POST /api/users/:username/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	actor, err := s.users.Follow(c.UserContext(), c.Params("username"), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Followed " + c.Params("username"), "user": actor})
}

// UnfollowUser handles DELETE /api/users/:username/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	actor, err := s.users.Unfollow(c.UserContext(), c.Params("username"), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Unfollowed " + c.Params("username"), "user": actor})
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if err := parseBody(c, &in); err != nil {
		return models.RespondWithAppError(c, err)
	}
	user, err := s.users.UpdateMe(c.UserContext(), callerID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// SetProfileImage handles POST /api/users/me/profile-image
func (s *Server) SetProfileImage(c *fiber.Ctx) error {
	uploads, err := readUploads(c, "image", s.images.MaxUploadBytes())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if len(uploads) != 1 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Exactly one image is required"))
	}
	user, err := s.users.SetProfileImage(c.UserContext(), callerID(c), uploads[0])
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// ResetProfileImage handles DELETE /api/users/me/profile-image
func (s *Server) ResetProfileImage(c *fiber.Ctx) error {
	user, err := s.users.ResetProfileImage(c.UserContext(), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}
