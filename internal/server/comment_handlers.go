package server

import (
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:slug/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	page, err := s.comments.List(c.UserContext(), c.Params("slug"), callerID(c),
		pageParams(c, pagination.DefaultCommentLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// CreateComment handles POST /api/posts/:slug/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var in service.CreateCommentInput
	if err := parseBody(c, &in); err != nil {
		return models.RespondWithAppError(c, err)
	}
	comment, err := s.comments.Create(c.UserContext(), c.Params("slug"), callerID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// LikeComment handles POST /api/posts/:slug/comments/:commentId/like
func (s *Server) LikeComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	count, err := s.comments.Like(c.UserContext(), c.Params("slug"), commentID, callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"likesCount": count})
}

// UnlikeComment handles DELETE /api/posts/:slug/comments/:commentId/like
func (s *Server) UnlikeComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	count, err := s.comments.Unlike(c.UserContext(), c.Params("slug"), commentID, callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"likesCount": count})
}

// GetReplies handles GET /api/posts/:slug/comments/:commentId/replies
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	page, err := s.comments.Replies(c.UserContext(), c.Params("slug"), commentID, callerID(c),
		pageParams(c, pagination.DefaultReplyLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// CreateReply handles POST /api/posts/:slug/comments/:commentId/replies
func (s *Server) CreateReply(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var in service.CreateReplyInput
	if err := parseBody(c, &in); err != nil {
		return models.RespondWithAppError(c, err)
	}
	reply, err := s.comments.Reply(c.UserContext(), c.Params("slug"), commentID, callerID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// LikeReply handles POST /api/posts/:slug/comments/:commentId/replies/:index/like
func (s *Server) LikeReply(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	index, err := parseIndex(c, "index")
	if err != nil {
		return nil
	}
	count, err := s.comments.LikeReply(c.UserContext(), c.Params("slug"), commentID, index, callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"likesCount": count})
}

// UnlikeReply handles DELETE /api/posts/:slug/comments/:commentId/replies/:index/like
func (s *Server) UnlikeReply(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	index, err := parseIndex(c, "index")
	if err != nil {
		return nil
	}
	count, err := s.comments.UnlikeReply(c.UserContext(), c.Params("slug"), commentID, index, callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"likesCount": count})
}
