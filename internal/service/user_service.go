package service

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// UpdateProfileInput edits the caller's profile. Nil fields are left unchanged.
type UpdateProfileInput struct {
	Name            *string `json:"name" validate:"omitempty,min=2,max=50"`
	Username        *string `json:"username" validate:"omitempty,min=2,max=15,username"`
	Description     *string `json:"description" validate:"omitempty,max=100"`
	FollowingHidden *bool   `json:"followingHidden"`
}

type UserService struct {
	users         repository.UserRepository
	follows       repository.FollowRepository
	images        *ImageService
	notifications *NotificationService
}

func NewUserService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	images *ImageService,
	notifications *NotificationService,
) *UserService {
	return &UserService{users: users, follows: follows, images: images, notifications: notifications}
}

// Profile returns a user as seen by viewerID. The email is only shown to the user themselves.
func (s *UserService) Profile(ctx context.Context, username string, viewerID uint) (*models.UserProfile, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	self := viewerID != 0 && viewerID == user.ID

	posts, err := s.users.CountPosts(ctx, user.ID, self)
	if err != nil {
		return nil, err
	}
	following := false
	if viewerID != 0 && !self {
		if following, err = s.follows.IsFollowing(ctx, viewerID, user.ID); err != nil {
			return nil, err
		}
	}
	if !self {
		user.Email = ""
	}
	return &models.UserProfile{User: *user, PostsCount: posts, IsFollowing: following, IsSelf: self}, nil
}

// Followers pages the users following username, most recent first.
func (s *UserService) Followers(ctx context.Context, username string, viewerID uint, p pagination.Params) (pagination.Page[models.PublicUser], error) {
	return s.followList(ctx, username, viewerID, p, s.follows.ListFollowers)
}

// Following pages the users username follows, most recent first.
func (s *UserService) Following(ctx context.Context, username string, viewerID uint, p pagination.Params) (pagination.Page[models.PublicUser], error) {
	return s.followList(ctx, username, viewerID, p, s.follows.ListFollowing)
}

func (s *UserService) followList(
	ctx context.Context,
	username string,
	viewerID uint,
	p pagination.Params,
	list func(ctx context.Context, userID uint, offset, limit int) ([]models.User, int64, error),
) (pagination.Page[models.PublicUser], error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return pagination.Page[models.PublicUser]{}, err
	}
	if user.FollowingHidden && user.ID != viewerID {
		return pagination.Page[models.PublicUser]{}, &models.AppError{
			Code:    models.CodeNotFound,
			Message: fmt.Sprintf("%s has hidden their connections", user.Username),
		}
	}

	users, total, err := list(ctx, user.ID, p.Offset(), p.Limit)
	if err != nil {
		return pagination.Page[models.PublicUser]{}, err
	}
	cards := make([]models.PublicUser, 0, len(users))
	for i := range users {
		cards = append(cards, users[i].Public())
	}
	return pagination.NewPage(cards, p, total), nil
}

// Follow makes actorID follow username and notifies them.
func (s *UserService) Follow(ctx context.Context, username string, actorID uint) (*models.User, error) {
	target, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.follows.Follow(ctx, actorID, target.ID); err != nil {
		return nil, err
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	s.notifications.Notify(ctx, target.ID, models.NotificationNewFollower,
		fmt.Sprintf("%s started following you", actor.Username),
		map[string]string{"username": actor.Username})
	return actor, nil
}

func (s *UserService) Unfollow(ctx context.Context, username string, actorID uint) (*models.User, error) {
	target, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.follows.Unfollow(ctx, actorID, target.ID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, actorID)
}

// UpdateMe edits the caller's profile fields.
func (s *UserService) UpdateMe(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	in.Name, in.Username, in.Description = trim(in.Name), trim(in.Username), trim(in.Description)
	if in.Name != nil && *in.Name == "" {
		return nil, models.NewValidationError("name is required")
	}
	if in.Username != nil && *in.Username == "" {
		return nil, models.NewValidationError("username is required")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Username != nil && *in.Username != user.Username {
		taken, err := s.users.UsernameTaken(ctx, *in.Username, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("Username already taken")
		}
		user.Username = *in.Username
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Description != nil {
		user.Description = *in.Description
	}
	if in.FollowingHidden != nil {
		user.FollowingHidden = *in.FollowingHidden
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetProfileImage stores the upload, then points the user at it and deletes the previous
// image in one transaction. If that fails the new image is deleted again.
func (s *UserService) SetProfileImage(ctx context.Context, userID uint, up Upload) (*models.User, error) {
	img, err := s.images.Store(ctx, userID, up)
	if err != nil {
		return nil, err
	}
	previous, err := s.users.ReplaceProfileImage(ctx, userID, img.URL())
	if err != nil {
		s.images.Compensate(ctx, "replace_profile_image", []uint{img.ID})
		return nil, err
	}
	if id, ok := models.ParseImageURL(previous); ok {
		s.images.Forget(ctx, []uint{id})
	}
	return s.users.GetByID(ctx, userID)
}

// ResetProfileImage points the user back at the default image.
func (s *UserService) ResetProfileImage(ctx context.Context, userID uint) (*models.User, error) {
	previous, err := s.users.ReplaceProfileImage(ctx, userID, models.DefaultProfileImage)
	if err != nil {
		return nil, err
	}
	if id, ok := models.ParseImageURL(previous); ok {
		s.images.Forget(ctx, []uint{id})
	}
	return s.users.GetByID(ctx, userID)
}
