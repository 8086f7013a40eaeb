package service

import (
	"context"
	"testing"

	"inkwell/internal/avatar"
	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890"

type stubAvatars struct {
	img   *avatar.Image
	err   error
	calls int
}

func (s *stubAvatars) Fetch(_ context.Context, _ string) (*avatar.Image, error) {
	s.calls++
	return s.img, s.err
}

type fixture struct {
	db      *gorm.DB
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	avatars *stubAvatars

	images        *ImageService
	notifications *NotificationService
	posts         *PostService
	comments      *CommentService
	users         *UserService
	search        *SearchService
	auth          *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := cache.NewStore(rdb)

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	followRepo := repository.NewFollowRepository(db)

	f := &fixture{db: db, mr: mr, rdb: rdb, avatars: &stubAvatars{err: avatar.ErrNoImage}}
	f.images = NewImageService(repository.NewImageRepository(db), store, nil)
	f.notifications = NewNotificationService(repository.NewNotificationRepository(db), notifications.NewNotifier(rdb))
	f.posts = NewPostService(postRepo, userRepo, followRepo, f.images, f.notifications)
	f.comments = NewCommentService(repository.NewCommentRepository(db), f.posts, userRepo, f.notifications)
	f.users = NewUserService(userRepo, followRepo, f.images, f.notifications)
	f.search = NewSearchService(repository.NewSearchRepository(db), postRepo, store)
	f.auth = NewAuthService(userRepo, f.images, f.avatars, middleware.NewTokenManager(testSecret), store)
	return f
}

func pngUpload(t *testing.T) Upload {
	return Upload{FileName: "photo.png", Data: testutil.TinyPNG(t, 3, 2)}
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var ns []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id").Find(&ns).Error)
	return ns
}

func (f *fixture) reload(t *testing.T, user *models.User) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.First(&u, user.ID).Error)
	return &u
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), "unexpected error: %v", err)
}
