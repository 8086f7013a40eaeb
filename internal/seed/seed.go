package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// MaxImages caps images per post. Zero seeds text-only posts.
	MaxImages   int
	ShouldClean bool
	// RandSeed makes the generated content reproducible.
	RandSeed int64
}

// Result counts what a run created.
type Result struct {
	Users    int
	Posts    int
	Follows  int
	Likes    int
	Comments int
	Replies  int
}

// Seeder drives the services with generated content.
type Seeder struct {
	db       *gorm.DB
	factory  *Factory
	auth     *service.AuthService
	posts    *service.PostService
	comments *service.CommentService
	users    *service.UserService
}

// NewSeeder wires the services over db without Redis or push delivery.
func NewSeeder(db *gorm.DB, randSeed int64) *Seeder {
	store := cache.NewStore(nil)
	cfg := &config.Config{ImageMaxUploadSizeMB: 5}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	followRepo := repository.NewFollowRepository(db)

	images := service.NewImageService(repository.NewImageRepository(db), store, cfg)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil)
	posts := service.NewPostService(postRepo, userRepo, followRepo, images, notifications)

	return &Seeder{
		db:       db,
		factory:  NewFactory(randSeed),
		auth:     service.NewAuthService(userRepo, images, nil, middleware.NewTokenManager(uuid.NewString()), store),
		posts:    posts,
		comments: service.NewCommentService(repository.NewCommentRepository(db), posts, userRepo, notifications),
		users:    service.NewUserService(userRepo, followRepo, images, notifications),
	}
}

// Seed runs a full pass: optional cleanup, users, a follow mesh, posts, then engagement.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	if opts.RandSeed == 0 {
		opts.RandSeed = time.Now().UnixNano()
	}
	s := NewSeeder(db, opts.RandSeed)

	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("cleanup: %w", err)
		}
	}

	res := &Result{}
	users, err := s.SeedUsers(ctx, opts.NumUsers)
	if err != nil {
		return nil, err
	}
	res.Users = len(users)

	if res.Follows, err = s.SeedFollows(ctx, users); err != nil {
		return nil, err
	}

	posts, err := s.SeedPosts(ctx, users, opts.NumPosts, opts.MaxImages)
	if err != nil {
		return nil, err
	}
	res.Posts = len(posts)

	if err := s.SeedEngagement(ctx, users, posts, res); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "Seeding complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("follows", res.Follows),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
		slog.Int("replies", res.Replies),
	)
	return res, nil
}

// ClearAll removes every row, children before parents.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := []any{
		&models.Notification{},
		&models.CommentLike{},
		&models.Comment{},
		&models.PostLike{},
		&models.Favourite{},
		&models.Post{},
		&models.Follow{},
		&models.User{},
		&models.Image{},
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := range n {
		res, err := s.auth.Register(ctx, s.factory.Registration(i+1))
		if err != nil {
			return nil, fmt.Errorf("register user %d: %w", i+1, err)
		}
		users = append(users, res.User)
	}
	return users, nil
}

// SeedFollows has every user follow a handful of others.
func (s *Seeder) SeedFollows(ctx context.Context, users []*models.User) (int, error) {
	count := 0
	for _, u := range users {
		for range min(3, len(users)-1) {
			target := users[s.factory.Intn(len(users))]
			_, err := s.users.Follow(ctx, target.Username, u.ID)
			if skippable(err) {
				continue
			}
			if err != nil {
				return count, fmt.Errorf("follow: %w", err)
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) SeedPosts(ctx context.Context, users []*models.User, n, maxImages int) ([]*models.PostView, error) {
	if len(users) == 0 {
		return nil, nil
	}
	maxImages = min(maxImages, service.MaxPostImages)
	posts := make([]*models.PostView, 0, n)
	for i := range n {
		author := users[s.factory.Intn(len(users))]
		post, err := s.posts.Create(ctx, author.ID, s.factory.Post(s.factory.Intn(maxImages+1)))
		if err != nil {
			return nil, fmt.Errorf("create post %d: %w", i+1, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// SeedEngagement adds likes, favourites, comments and replies on published posts.
func (s *Seeder) SeedEngagement(ctx context.Context, users []*models.User, posts []*models.PostView, res *Result) error {
	for _, p := range posts {
		if !p.Published {
			continue
		}
		for range s.factory.Intn(len(users) + 1) {
			u := users[s.factory.Intn(len(users))]
			_, err := s.posts.Like(ctx, p.Slug, u.ID)
			if skippable(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("like: %w", err)
			}
			res.Likes++
			if s.factory.Intn(3) == 0 {
				if err := s.posts.Favourite(ctx, p.Slug, u.ID); err != nil && !skippable(err) {
					return fmt.Errorf("favourite: %w", err)
				}
			}
		}

		for range s.factory.Intn(4) {
			commenter := users[s.factory.Intn(len(users))]
			c, err := s.comments.Create(ctx, p.Slug, commenter.ID, s.factory.Comment())
			if err != nil {
				return fmt.Errorf("comment: %w", err)
			}
			res.Comments++

			for range s.factory.Intn(3) {
				replier := users[s.factory.Intn(len(users))]
				if _, err := s.comments.Reply(ctx, p.Slug, c.ID, replier.ID, s.factory.Reply(commenter.Username)); err != nil {
					return fmt.Errorf("reply: %w", err)
				}
				res.Replies++
			}
		}
	}
	return nil
}

// skippable reports errors a random walk is expected to hit, like following yourself twice.
func skippable(err error) bool {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == models.CodeConflict || appErr.Code == models.CodeValidation
}
