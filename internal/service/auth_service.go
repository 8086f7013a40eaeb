package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/avatar"
	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxNameLength     = 50
	maxUsernameLength = 15
	usernameAttempts  = 50
)

// AvatarFetcher downloads a remote profile picture.
type AvatarFetcher interface {
	Fetch(ctx context.Context, url string) (*avatar.Image, error)
}

type RegisterInput struct {
	Name        string `json:"name" validate:"required,notblank,min=2,max=50"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Username    string `json:"username" validate:"required,min=2,max=15,username"`
	Password    string `json:"password" validate:"required"`
	Description string `json:"description" validate:"omitempty,min=3,max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ExternalIdentity is an identity already verified by an external provider.
type ExternalIdentity struct {
	ExternalID string `json:"externalId" validate:"required,notblank,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Name       string `json:"name" validate:"required,notblank"`
	AvatarURL  string `json:"avatarUrl" validate:"omitempty,url"`
}

// AuthResult is a signed-in user and their token.
type AuthResult struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"-"`
}

type AuthService struct {
	users   repository.UserRepository
	images  *ImageService
	avatars AvatarFetcher
	tokens  *middleware.TokenManager
	cache   *cache.Store
}

func NewAuthService(
	users repository.UserRepository,
	images *ImageService,
	avatars AvatarFetcher,
	tokens *middleware.TokenManager,
	store *cache.Store,
) *AuthService {
	return &AuthService{users: users, images: images, avatars: avatars, tokens: tokens, cache: store}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}
	taken, err := s.users.UsernameTaken(ctx, in.Username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("Username already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Username:     in.Username,
		Description:  in.Description,
		Password:     string(hashed),
		ProfileImage: models.DefaultProfileImage,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	// External-only accounts have no usable password hash.
	if user == nil || user.Password == "" {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

// Authenticate verifies a raw token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*middleware.Claims, error) {
	if raw == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	if claims.JTI != "" && s.cache.Exists(ctx, cache.TokenBlacklistKey(claims.JTI)) {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *middleware.Claims) error {
	if claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if !s.cache.Enabled() {
		middleware.Logger.WarnContext(ctx, "Redis unavailable, token cannot be revoked",
			slog.Uint64("user_id", uint64(claims.UserID)))
		return nil
	}
	if err := s.cache.Set(ctx, cache.TokenBlacklistKey(claims.JTI), "1", ttl); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// SignInExternal finds the user linked to the identity, else links the account with the same
// email, else creates a new account with a generated username and the provider's avatar.
func (s *AuthService) SignInExternal(ctx context.Context, in ExternalIdentity) (*AuthResult, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	in.Email = validation.NormalizeEmail(in.Email)
	in.Name = truncateRunes(strings.TrimSpace(in.Name), maxNameLength)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByExternalID(ctx, in.ExternalID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.issue(user)
	}

	user, err = s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := s.users.LinkExternalID(ctx, user.ID, in.ExternalID); err != nil {
			return nil, err
		}
		if user.HasDefaultProfileImage() {
			s.adoptAvatar(ctx, user, in.AvatarURL)
		}
		return s.issue(user)
	}

	username, err := s.generateUsername(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	externalID := in.ExternalID
	user = &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Username:     username,
		ExternalID:   &externalID,
		ProfileImage: models.DefaultProfileImage,
	}
	if utf8.RuneCountInString(user.Name) < 2 {
		user.Name = username
	}

	var stored *models.Image
	if img := s.fetchAvatar(ctx, in.AvatarURL); img != nil {
		stored = img
		user.ProfileImage = img.URL()
	}
	if err := s.users.Create(ctx, user); err != nil {
		if stored != nil {
			s.images.Compensate(ctx, "external_signup", []uint{stored.ID})
		}
		return nil, err
	}
	return s.issue(user)
}

// adoptAvatar gives a linked account the provider's picture. Failures keep the default.
func (s *AuthService) adoptAvatar(ctx context.Context, user *models.User, url string) {
	img := s.fetchAvatar(ctx, url)
	if img == nil {
		return
	}
	if _, err := s.users.ReplaceProfileImage(ctx, user.ID, img.URL()); err != nil {
		s.images.Compensate(ctx, "external_link", []uint{img.ID})
		return
	}
	user.ProfileImage = img.URL()
}

// fetchAvatar downloads and stores the avatar. Any failure yields nil.
func (s *AuthService) fetchAvatar(ctx context.Context, url string) *models.Image {
	if url == "" || s.avatars == nil {
		return nil
	}
	fetched, err := s.avatars.Fetch(ctx, url)
	if err != nil {
		if !errors.Is(err, avatar.ErrNoImage) {
			middleware.Logger.WarnContext(ctx, "Avatar fetch failed", slog.String("error", err.Error()))
		}
		return nil
	}
	img, err := s.images.Store(ctx, 0, Upload{FileName: "avatar", Data: fetched.Data})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Fetched avatar rejected", slog.String("error", err.Error()))
		return nil
	}
	return img
}

// generateUsername derives a free username from the email's local part, appending random
// digits until it is unused.
func (s *AuthService) generateUsername(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := usernameBase(local)

	suffix := ""
	for range usernameAttempts {
		candidate := fitUsername(base, suffix)
		taken, err := s.users.UsernameTaken(ctx, candidate, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix += strconv.Itoa(rand.IntN(10))
		if len(suffix) > 6 {
			suffix = strconv.Itoa(rand.IntN(1_000_000))
		}
	}
	return "", models.NewConflictError("Could not generate a unique username")
}

func usernameBase(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) < 2 {
		base = "user" + base
	}
	return base
}

func fitUsername(base, suffix string) string {
	if len(base)+len(suffix) > maxUsernameLength {
		base = base[:maxUsernameLength-len(suffix)]
	}
	return base + suffix
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user, ExpiresAt: claims.ExpiresAt}, nil
}
