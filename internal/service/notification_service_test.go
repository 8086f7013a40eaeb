package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/pagination"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_NotifyManyStoresAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db)
	b := testutil.CreateUser(t, f.db)

	sub := f.rdb.Subscribe(ctx, notifications.UserChannel(a.ID))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	f.notifications.NotifyMany(ctx, []uint{a.ID, b.ID}, models.NotificationNewPost, "new post", map[string]string{"slug": "hello"})

	assert.Len(t, f.notificationsFor(t, a.ID), 1)
	assert.Len(t, f.notificationsFor(t, b.ID), 1)

	select {
	case msg := <-sub.Channel():
		var env notifications.Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, "notification", env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not published")
	}
}

func TestNotificationService_ReadLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db)
	other := testutil.CreateUser(t, f.db)

	for range 3 {
		f.notifications.Notify(ctx, u.ID, models.NotificationNewFollower, "followed you", map[string]string{"username": other.Username})
	}
	f.notifications.Notify(ctx, other.ID, models.NotificationNewLike, "liked", nil)

	page, err := f.notifications.ListUnread(ctx, u.ID, pagination.New(1, 2, pagination.DefaultNotificationLimit))
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)
	assert.Greater(t, page.Items[0].ID, page.Items[1].ID, "newest first")
	assert.Equal(t, other.Username, page.Items[0].Payload["username"])

	require.NoError(t, f.notifications.MarkRead(ctx, page.Items[0].ID, u.ID))
	err = f.notifications.MarkRead(ctx, page.Items[1].ID, other.ID)
	requireCode(t, err, models.CodeNotFound)

	n, err := f.notifications.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	page, err = f.notifications.ListUnread(ctx, u.ID, pagination.New(1, 10, 10))
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Len(t, f.notificationsFor(t, other.ID), 1)
}

func TestNotificationService_NilNotifier(t *testing.T) {
	f := newFixture(t)
	f.notifications.notifier = nil
	u := testutil.CreateUser(t, f.db)

	f.notifications.Notify(context.Background(), u.ID, models.NotificationNewComment, "commented", nil)
	assert.Len(t, f.notificationsFor(t, u.ID), 1)
}
