package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_FollowAndProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db)
	bob := testutil.CreateUser(t, f.db)

	actor, err := f.users.Follow(ctx, bob.Username, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), actor.FollowingCount)

	_, err = f.users.Follow(ctx, bob.Username, alice.ID)
	requireCode(t, err, models.CodeConflict)

	profile, err := f.users.Profile(ctx, bob.Username, alice.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsFollowing)
	assert.False(t, profile.IsSelf)
	assert.Empty(t, profile.Email)
	assert.Equal(t, int64(1), profile.FollowersCount)

	self, err := f.users.Profile(ctx, alice.Username, alice.ID)
	require.NoError(t, err)
	assert.True(t, self.IsSelf)
	assert.Equal(t, alice.Email, self.Email)

	ns := f.notificationsFor(t, bob.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, models.NotificationNewFollower, ns[0].Type)
	assert.Equal(t, alice.Username, ns[0].Payload["username"])

	followers, err := f.users.Followers(ctx, bob.Username, 0, pagination.New(1, 10, 10))
	require.NoError(t, err)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, alice.Username, followers.Items[0].Username)

	actor, err = f.users.Unfollow(ctx, bob.Username, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, actor.FollowingCount)
	assert.Zero(t, f.reload(t, bob).FollowersCount)

	_, err = f.users.Unfollow(ctx, bob.Username, alice.ID)
	requireCode(t, err, models.CodeConflict)
}

func TestUserService_SelfFollowRejected(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateUser(t, f.db)

	_, err := f.users.Follow(context.Background(), alice.Username, alice.ID)
	requireCode(t, err, models.CodeValidation)

	after := f.reload(t, alice)
	assert.Zero(t, after.FollowersCount)
	assert.Zero(t, after.FollowingCount)
	assert.Zero(t, f.count(t, &models.Follow{}, ""))
	assert.Empty(t, f.notificationsFor(t, alice.ID))
}

func TestUserService_HiddenConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db)
	bob := testutil.CreateUser(t, f.db)

	hidden := true
	_, err := f.users.UpdateMe(ctx, alice.ID, UpdateProfileInput{FollowingHidden: &hidden})
	require.NoError(t, err)

	_, err = f.users.Following(ctx, alice.Username, bob.ID, pagination.New(1, 10, 10))
	requireCode(t, err, models.CodeNotFound)

	own, err := f.users.Following(ctx, alice.Username, alice.ID, pagination.New(1, 10, 10))
	require.NoError(t, err)
	assert.Empty(t, own.Items)
}

func TestUserService_UpdateMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db)
	bob := testutil.CreateUser(t, f.db)

	_, err := f.users.UpdateMe(ctx, alice.ID, UpdateProfileInput{Username: &bob.Username})
	requireCode(t, err, models.CodeConflict)

	bad := "no spaces"
	_, err = f.users.UpdateMe(ctx, alice.ID, UpdateProfileInput{Username: &bad})
	requireCode(t, err, models.CodeValidation)

	blank := "  "
	_, err = f.users.UpdateMe(ctx, alice.ID, UpdateProfileInput{Name: &blank})
	requireCode(t, err, models.CodeValidation)

	name, username, desc := "Alice Liddell", "alice_l", "Down the rabbit hole"
	updated, err := f.users.UpdateMe(ctx, alice.ID, UpdateProfileInput{Name: &name, Username: &username, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "alice_l", updated.Username)

	stored := f.reload(t, alice)
	assert.Equal(t, name, stored.Name)
	assert.Equal(t, desc, stored.Description)
}

func TestUserService_ProfileImageLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db)

	first, err := f.users.SetProfileImage(ctx, alice.ID, pngUpload(t))
	require.NoError(t, err)
	firstID, ok := models.ParseImageURL(first.ProfileImage)
	require.True(t, ok)

	second, err := f.users.SetProfileImage(ctx, alice.ID, pngUpload(t))
	require.NoError(t, err)
	assert.NotEqual(t, first.ProfileImage, second.ProfileImage)
	assert.Zero(t, f.count(t, &models.Image{}, "id = ?", firstID), "replaced image is deleted")
	assert.Equal(t, int64(1), f.count(t, &models.Image{}, ""))

	reset, err := f.users.ResetProfileImage(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultProfileImage, reset.ProfileImage)
	assert.Zero(t, f.count(t, &models.Image{}, ""))

	_, err = f.users.SetProfileImage(ctx, alice.ID, Upload{FileName: "x.txt", Data: []byte("hello")})
	requireCode(t, err, models.CodeValidation)
}

func TestUserService_ProfileImageFailureDeletesUpload(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.SetProfileImage(context.Background(), 4242, pngUpload(t))
	requireCode(t, err, models.CodeNotFound)
	assert.Zero(t, f.count(t, &models.Image{}, ""))
}
