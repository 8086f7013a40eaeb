package server

import (
	"inkwell/internal/content"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/posts
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.posts.Feed(c.UserContext(), callerID(c), pageParams(c, pagination.DefaultPostLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetMyPosts handles GET /api/posts/me
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	page, err := s.posts.Mine(c.UserContext(), callerID(c), pageParams(c, pagination.DefaultPostLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetFavourites handles GET /api/posts/favourites
func (s *Server) GetFavourites(c *fiber.Ctx) error {
	page, err := s.posts.Favourites(c.UserContext(), callerID(c), pageParams(c, pagination.DefaultPostLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/posts/:slug
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.posts.Get(c.UserContext(), c.Params("slug"), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	uploads, err := readUploads(c, "images", s.images.MaxUploadBytes())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	title, _ := formField(c, "title")
	body, _ := formField(c, "body")
	tags, _ := formList(c, "tags")
	published, _ := formField(c, "published")

	post, err := s.posts.Create(c.UserContext(), callerID(c), service.CreatePostInput{
		Title:     title,
		Body:      body,
		Tags:      tags,
		Published: content.ParsePublished(published, true),
		Images:    uploads,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:slug. Fields left out of the form are unchanged.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	uploads, err := readUploads(c, "images", s.images.MaxUploadBytes())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	in := service.UpdatePostInput{Images: uploads}
	if title, ok := formField(c, "title"); ok {
		in.Title = &title
	}
	if body, ok := formField(c, "body"); ok {
		in.Body = &body
	}
	if tags, ok := formList(c, "tags"); ok {
		in.Tags = tags
		in.SetTags = true
	}
	if raw, ok := formField(c, "published"); ok {
		published := content.ParsePublished(raw, false)
		in.Published = &published
	}
	if remove, ok := formList(c, "removeImages"); ok {
		in.RemoveImages = remove
	}

	post, err := s.posts.Update(c.UserContext(), c.Params("slug"), callerID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:slug
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.posts.Delete(c.UserContext(), c.Params("slug"), callerID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// LikePost handles POST /api/posts/:slug/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	count, err := s.posts.Like(c.UserContext(), c.Params("slug"), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"likesCount": count})
}

// UnlikePost handles DELETE /api/posts/:slug/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	count, err := s.posts.Unlike(c.UserContext(), c.Params("slug"), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"likesCount": count})
}

// FavouritePost handles POST /api/posts/:slug/favourite
func (s *Server) FavouritePost(c *fiber.Ctx) error {
	if err := s.posts.Favourite(c.UserContext(), c.Params("slug"), callerID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"isFavourite": true})
}

// UnfavouritePost handles DELETE /api/posts/:slug/favourite
func (s *Server) UnfavouritePost(c *fiber.Ctx) error {
	if err := s.posts.Unfavourite(c.UserContext(), c.Params("slug"), callerID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"isFavourite": false})
}
