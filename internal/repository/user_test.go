package repository

import (
	"context"
	"regexp"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		wantCode     string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(1, "ada", "ada@example.com"))
			},
		},
		{
			name:   "Not Found",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(2, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, models.ErrorCode(err))
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ada", user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueConstraintError(assert.AnError))
	assert.False(t, isUniqueConstraintError(nil))
}

func TestUserRepository_CreateDuplicateIsConflict(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Name: "Ada", Email: "ada@example.com", Username: "ada", Password: "x"}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, models.DefaultProfileImage, u.ProfileImage)

	dup := &models.User{Name: "Ada 2", Email: "ada@example.com", Username: "ada2", Password: "x"}
	err := repo.Create(ctx, dup)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	found, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUserRepository_UpdateProfileAndUsernameTaken(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db)
	b := testutil.CreateUser(t, db)

	taken, err := repo.UsernameTaken(ctx, b.Username, a.ID)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.UsernameTaken(ctx, a.Username, a.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	a.Description = "Updated bio"
	a.FollowingHidden = true
	a.FollowersCount = 999
	require.NoError(t, repo.UpdateProfile(ctx, a))

	stored, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated bio", stored.Description)
	assert.True(t, stored.FollowingHidden)
	assert.Zero(t, stored.FollowersCount)

	a.Username = b.Username
	err = repo.UpdateProfile(ctx, a)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
}

func TestUserRepository_ReplaceProfileImage(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db)
	first := testutil.CreateImage(t, db, u.ID)
	second := testutil.CreateImage(t, db, u.ID)

	prev, err := repo.ReplaceProfileImage(ctx, u.ID, first.URL())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultProfileImage, prev)

	prev, err = repo.ReplaceProfileImage(ctx, u.ID, second.URL())
	require.NoError(t, err)
	assert.Equal(t, first.URL(), prev)

	var n int64
	require.NoError(t, db.Model(&models.Image{}).Where("id = ?", first.ID).Count(&n).Error)
	assert.Zero(t, n, "previous image is deleted")

	prev, err = repo.ReplaceProfileImage(ctx, u.ID, models.DefaultProfileImage)
	require.NoError(t, err)
	assert.Equal(t, second.URL(), prev)
	require.NoError(t, db.Model(&models.Image{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = repo.ReplaceProfileImage(ctx, 9999, first.URL())
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUserRepository_CountPosts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db)
	testutil.CreatePost(t, db, u, "One")
	draft := testutil.CreatePost(t, db, u, "Two")
	require.NoError(t, db.Model(draft).Update("published", false).Error)

	n, err := repo.CountPosts(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountPosts(ctx, u.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
