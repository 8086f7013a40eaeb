// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"inkwell/internal/avatar"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

const serviceName = "inkwell-api"

// fiberprometheus registers its collectors globally, so one instance serves every app.
var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

func prometheusMiddleware() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *database.Manager
	redis       *redis.Client
	app         *fiber.App
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc

	notifier *notifications.Notifier
	hub      *notifications.Hub

	auth          *service.AuthService
	images        *service.ImageService
	notifications *service.NotificationService
	posts         *service.PostService
	comments      *service.CommentService
	users         *service.UserService
	search        *service.SearchService
}

// NewServer connects to the store and Redis and builds the server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// nil when Redis is down; caching, rate limits and push degrade to no-ops.
	redisClient := cache.NewRedisClient(ctx, cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *database.Manager, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("server: database manager is required")
	}
	gdb := db.DB()
	store := cache.NewStore(redisClient)

	userRepo := repository.NewUserRepository(gdb)
	postRepo := repository.NewPostRepository(gdb)
	followRepo := repository.NewFollowRepository(gdb)

	s := &Server{
		config:   cfg,
		db:       db,
		redis:    redisClient,
		notifier: notifications.NewNotifier(redisClient),
	}
	if redisClient != nil {
		s.hub = notifications.NewHub()
	}

	fetcher := avatar.NewFetcher(&http.Client{}, avatar.Options{
		Timeout:  time.Duration(cfg.AvatarFetchTimeoutSeconds) * time.Second,
		MaxBytes: cfg.ImageMaxUploadBytes(),
	})

	s.images = service.NewImageService(repository.NewImageRepository(gdb), store, cfg)
	s.notifications = service.NewNotificationService(repository.NewNotificationRepository(gdb), s.notifier)
	s.posts = service.NewPostService(postRepo, userRepo, followRepo, s.images, s.notifications)
	s.comments = service.NewCommentService(repository.NewCommentRepository(gdb), s.posts, userRepo, s.notifications)
	s.users = service.NewUserService(userRepo, followRepo, s.images, s.notifications)
	s.search = service.NewSearchService(repository.NewSearchRepository(gdb), postRepo, store)
	s.auth = service.NewAuthService(userRepo, s.images, fetcher, middleware.NewTokenManager(cfg.JWTSecret), store)

	return s, nil
}

// App builds the fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	// Room for a full post: every image at the cap plus the text fields.
	bodyLimit := int(s.images.MaxUploadBytes())*service.MaxPostImages + 1<<20

	app := fiber.New(fiber.Config{
		AppName:      "Inkwell API",
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler answers errors that escaped a handler, including recovered panics.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return models.RespondWithAppError(c, err)
	}
	middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing stores the trace id that ContextMiddleware copies into the request context.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	app.Use(prometheusMiddleware().Middleware)
	app.Use(helmet.New(helmet.Config{
		// Images are embedded by the web client from another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Coarse per-IP ceiling; the per-route policies in SetupRoutes are tighter.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	prometheusMiddleware().RegisterAt(app, "/metrics")

	app.Get("/images/:id", s.GetImage)

	authRate := middleware.RateLimit(s.redis, middleware.AuthPolicy)
	writeRate := middleware.RateLimit(s.redis, middleware.WritePolicy)
	searchRate := middleware.RateLimit(s.redis, middleware.SearchPolicy)

	api := app.Group("/api", s.OptionalAuth())

	auth := api.Group("/auth")
	auth.Post("/register", authRate, s.Register)
	auth.Post("/login", authRate, s.Login)
	auth.Post("/external", authRate, s.ExternalAuthRequired(), s.ExternalSignIn)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	// Fixed segments are registered before /:slug.
	posts := api.Group("/posts")
	posts.Get("/", s.GetFeed)
	posts.Get("/me", s.AuthRequired(), s.GetMyPosts)
	posts.Get("/favourites", s.AuthRequired(), s.GetFavourites)
	posts.Post("/", s.AuthRequired(), writeRate, s.CreatePost)
	posts.Get("/:slug", s.GetPost)
	posts.Put("/:slug", s.AuthRequired(), writeRate, s.UpdatePost)
	posts.Delete("/:slug", s.AuthRequired(), s.DeletePost)
	posts.Post("/:slug/like", s.AuthRequired(), writeRate, s.LikePost)
	posts.Delete("/:slug/like", s.AuthRequired(), s.UnlikePost)
	posts.Post("/:slug/favourite", s.AuthRequired(), writeRate, s.FavouritePost)
	posts.Delete("/:slug/favourite", s.AuthRequired(), s.UnfavouritePost)

	comments := posts.Group("/:slug/comments")
	comments.Get("/", s.GetComments)
	comments.Post("/", s.AuthRequired(), writeRate, s.CreateComment)
	comments.Post("/:commentId/like", s.AuthRequired(), writeRate, s.LikeComment)
	comments.Delete("/:commentId/like", s.AuthRequired(), s.UnlikeComment)
	comments.Get("/:commentId/replies", s.GetReplies)
	comments.Post("/:commentId/replies", s.AuthRequired(), writeRate, s.CreateReply)
	comments.Post("/:commentId/replies/:index/like", s.AuthRequired(), writeRate, s.LikeReply)
	comments.Delete("/:commentId/replies/:index/like", s.AuthRequired(), s.UnlikeReply)

	users := api.Group("/users")
	users.Put("/me", s.AuthRequired(), writeRate, s.UpdateMyProfile)
	users.Post("/me/profile-image", s.AuthRequired(), writeRate, s.SetProfileImage)
	users.Delete("/me/profile-image", s.AuthRequired(), s.ResetProfileImage)
	users.Get("/:username", s.GetUserProfile)
	users.Get("/:username/posts", s.GetUserPosts)
	users.Get("/:username/followers", s.GetFollowers)
	users.Get("/:username/following", s.GetFollowing)
	users.Post("/:username/follow", s.AuthRequired(), writeRate, s.FollowUser)
	users.Delete("/:username/follow", s.AuthRequired(), s.UnfollowUser)

	search := api.Group("/search", searchRate)
	search.Get("/posts", s.SearchPosts)
	search.Get("/users", s.SearchUsers)
	search.Get("/autocomplete", s.Autocomplete)

	notes := api.Group("/notifications", s.AuthRequired())
	notes.Get("/", s.GetNotifications)
	notes.Put("/read-all", s.MarkAllNotificationsRead)
	notes.Put("/:id/read", s.MarkNotificationRead)

	api.Get("/ws", s.AuthRequired(), s.WebSocketUpgrade(), s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: a missing client is
// reported but only a failing one makes the server unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := s.db.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "disabled"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("Failed to start hub wiring",
					slog.String("hub", s.hub.Name()),
					slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("Error shutting down hub", slog.String("error", err.Error()))
		}
	}

	if err := s.db.Close(); err != nil {
		middleware.Logger.Error("Error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("Error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
