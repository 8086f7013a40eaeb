package server

import (
	"crypto/subtle"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	claimsLocal = "claims"
	// ExternalAuthHeader carries the shared secret of the trusted identity broker.
	ExternalAuthHeader = "X-External-Auth-Secret"
)

// AuthResponse is returned by every sign-in endpoint.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// resolveCaller verifies the request's token once and caches the result in locals.
func (s *Server) resolveCaller(c *fiber.Ctx) error {
	if callerClaims(c) != nil {
		return nil
	}
	claims, err := s.auth.Authenticate(c.UserContext(), middleware.ExtractToken(c))
	if err != nil {
		return err
	}
	c.Locals(claimsLocal, claims)
	middleware.WithUserID(c, claims.UserID)
	return nil
}

// OptionalAuth identifies the caller when a valid token is present. Bad or missing tokens
// leave the request anonymous.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		_ = s.resolveCaller(c)
		return c.Next()
	}
}

// AuthRequired rejects requests without a valid, unrevoked token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.resolveCaller(c); err != nil {
			return models.RespondWithAppError(c, err)
		}
		return c.Next()
	}
}

// ExternalAuthRequired admits only the identity broker that holds the shared secret. An
// unset secret disables the endpoint.
func (s *Server) ExternalAuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := s.config.ExternalAuthSecret
		given := c.Get(ExternalAuthHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(given)) != 1 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("External sign-in is not authorized"))
		}
		return c.Next()
	}
}

func (s *Server) setTokenCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) respondAuth(c *fiber.Ctx, status int, res *service.AuthResult) error {
	s.setTokenCookie(c, res.Token, res.ExpiresAt)
	return c.Status(status).JSON(AuthResponse{Token: res.Token, User: res.User})
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return models.RespondWithAppError(c, err)
	}
	res, err := s.auth.Register(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return s.respondAuth(c, fiber.StatusCreated, res)
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := parseBody(c, &in); err != nil {
		return models.RespondWithAppError(c, err)
	}
	res, err := s.auth.Login(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return s.respondAuth(c, fiber.StatusOK, res)
}

// ExternalSignIn handles POST /api/auth/external
func (s *Server) ExternalSignIn(c *fiber.Ctx) error {
	var in service.ExternalIdentity
	if err := parseBody(c, &in); err != nil {
		return models.RespondWithAppError(c, err)
	}
	res, err := s.auth.SignInExternal(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return s.respondAuth(c, fiber.StatusOK, res)
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.auth.Logout(c.UserContext(), callerClaims(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	c.ClearCookie(middleware.TokenCookie)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.auth.Me(c.UserContext(), callerID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}
