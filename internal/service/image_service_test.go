package service

import (
	"bytes"
	"context"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageService_Inspect(t *testing.T) {
	svc := NewImageService(nil, cache.NewStore(nil), &config.Config{ImageMaxUploadSizeMB: 1})
	assert.Equal(t, int64(1<<20), svc.MaxUploadBytes())

	ct, err := svc.Inspect(Upload{FileName: "a.png", Data: testutil.TinyPNG(t, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("hello, this is not an image")},
		{"html", []byte("<html><body>nope</body></html>")},
		{"truncated png", testutil.TinyPNG(t, 2, 2)[:20]},
		{"oversize", bytes.Repeat([]byte{0}, 1<<20+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Inspect(Upload{FileName: "x.png", Data: tt.data})
			requireCode(t, err, models.CodeValidation)
		})
	}
}

func TestImageService_StoreAllValidatesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.images.StoreAll(ctx, 1, []Upload{
		pngUpload(t),
		{FileName: "notes.txt", Data: []byte("plain text")},
	})
	requireCode(t, err, models.CodeValidation)
	assert.Zero(t, f.count(t, &models.Image{}, ""), "nothing is stored when any upload is invalid")

	stored, err := f.images.StoreAll(ctx, 1, []Upload{pngUpload(t), pngUpload(t)})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "photo.png", stored[0].FileName)
	assert.Equal(t, int64(2), f.count(t, &models.Image{}, ""))
}

func TestImageService_GetCachesSmallImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.images.Store(ctx, 1, Upload{FileName: "../../etc/avatar.png", Data: testutil.TinyPNG(t, 3, 3)})
	require.NoError(t, err)
	assert.Equal(t, "avatar.png", img.FileName)

	got, err := f.images.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.ContentType)
	assert.True(t, f.mr.Exists(cache.ImageKey(img.ID)))

	// Served from Redis once the row is gone.
	require.NoError(t, repository.NewImageRepository(f.db).Delete(ctx, img.ID))
	cached, err := f.images.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.Data, cached.Data)

	f.images.Forget(ctx, []uint{img.ID})
	assert.False(t, f.mr.Exists(cache.ImageKey(img.ID)))
	_, err = f.images.Get(ctx, img.ID)
	requireCode(t, err, models.CodeNotFound)
}

func TestImageService_Compensate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := testutil.CreateImage(t, f.db, 1)
	b := testutil.CreateImage(t, f.db, 1)
	_, err := f.images.Get(ctx, a.ID)
	require.NoError(t, err)

	f.images.Compensate(ctx, "test", []uint{a.ID, b.ID})
	assert.Zero(t, f.count(t, &models.Image{}, ""))
	assert.False(t, f.mr.Exists(cache.ImageKey(a.ID)))
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "x.png", cleanFileName(`C:\Users\me\x.png`))
	assert.Equal(t, "", cleanFileName(""))
	assert.Equal(t, "b.jpg", cleanFileName("a/b.jpg"))
}
