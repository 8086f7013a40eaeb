package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}

func TestFollowRepository_FollowUnfollowCounters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db)
	bob := testutil.CreateUser(t, db)
	carol := testutil.CreateUser(t, db)

	require.NoError(t, repo.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, repo.Follow(ctx, carol.ID, bob.ID))
	require.NoError(t, repo.Follow(ctx, alice.ID, carol.ID))

	err := repo.Follow(ctx, alice.ID, bob.ID)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	assert.Equal(t, int64(2), reloadUser(t, db, bob.ID).FollowersCount)
	assert.Equal(t, int64(2), reloadUser(t, db, alice.ID).FollowingCount)
	assert.Equal(t, int64(1), reloadUser(t, db, carol.ID).FollowersCount)

	require.NoError(t, repo.Unfollow(ctx, alice.ID, bob.ID))
	err = repo.Unfollow(ctx, alice.ID, bob.ID)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	assert.Equal(t, int64(1), reloadUser(t, db, bob.ID).FollowersCount)
	assert.Equal(t, int64(1), reloadUser(t, db, alice.ID).FollowingCount)

	ok, err := repo.IsFollowing(ctx, carol.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := repo.FollowerIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{carol.ID}, ids)
}

func TestFollowRepository_SelfFollowRejected(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	alice := testutil.CreateUser(t, db)

	err := repo.Follow(context.Background(), alice.ID, alice.ID)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	u := reloadUser(t, db, alice.ID)
	assert.Zero(t, u.FollowersCount)
	assert.Zero(t, u.FollowingCount)
}

func TestFollowRepository_FollowUnknownUser(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	alice := testutil.CreateUser(t, db)

	err := repo.Follow(context.Background(), alice.ID, 9999)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.Zero(t, reloadUser(t, db, alice.ID).FollowingCount)
}

// failNthUserUpdate makes the nth UPDATE against the users table fail while armed.
func failNthUserUpdate(t *testing.T, db *gorm.DB, nth int32) *atomic.Bool {
	t.Helper()
	armed := &atomic.Bool{}
	var seen atomic.Int32
	err := db.Callback().Update().Before("gorm:update").Register("test:fail_user_update", func(tx *gorm.DB) {
		if !armed.Load() || tx.Statement.Table != "users" {
			return
		}
		if seen.Add(1) == nth {
			_ = tx.AddError(errors.New("injected failure"))
		}
	})
	require.NoError(t, err)
	return armed
}

func TestFollowRepository_FollowIsAtomic(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db)
	bob := testutil.CreateUser(t, db)

	armed := failNthUserUpdate(t, db, 2)
	armed.Store(true)

	err := repo.Follow(ctx, alice.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	armed.Store(false)

	var edges int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&edges).Error)
	assert.Zero(t, edges)
	assert.Zero(t, reloadUser(t, db, alice.ID).FollowingCount)
	assert.Zero(t, reloadUser(t, db, bob.ID).FollowersCount)

	require.NoError(t, repo.Follow(ctx, alice.ID, bob.ID))
	assert.Equal(t, int64(1), reloadUser(t, db, bob.ID).FollowersCount)
}

func TestFollowRepository_Listings(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	star := testutil.CreateUser(t, db)
	var fans []*models.User
	for i := 0; i < 12; i++ {
		fan := testutil.CreateUser(t, db)
		fans = append(fans, fan)
		require.NoError(t, repo.Follow(ctx, fan.ID, star.ID))
	}

	page, total, err := repo.ListFollowers(ctx, star.ID, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Len(t, page, 2)

	following, total, err := repo.ListFollowing(ctx, fans[0].ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, following, 1)
	assert.Equal(t, star.ID, following[0].ID)
}
