package service

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 5
	maxImageDimension           = 10000
	maxFileNameLength           = 255
)

var allowedImageTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Upload is one file received from a multipart form. The declared content type is ignored.
type Upload struct {
	FileName string
	Data     []byte
}

// ImageService validates and stores uploaded images and serves them back.
type ImageService struct {
	repo               repository.ImageRepository
	cache              *cache.Store
	maxUploadSizeBytes int64
}

func NewImageService(repo repository.ImageRepository, store *cache.Store, cfg *config.Config) *ImageService {
	maxBytes := int64(DefaultImageMaxUploadSizeMB) << 20
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxBytes = cfg.ImageMaxUploadBytes()
	}
	return &ImageService{repo: repo, cache: store, maxUploadSizeBytes: maxBytes}
}

// MaxUploadBytes is the per-file size cap.
func (s *ImageService) MaxUploadBytes() int64 {
	return s.maxUploadSizeBytes
}

// Inspect sniffs the upload and returns its content type. Only JPEG, PNG, GIF and WebP that
// actually decode are accepted.
func (s *ImageService) Inspect(up Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", models.NewValidationError("Image file is empty")
	}
	if int64(len(up.Data)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError("Image exceeds the maximum upload size")
	}

	// DetectContentType does not know every format we take, so the decoder has the final say.
	sniffed := http.DetectContentType(up.Data)
	if !strings.HasPrefix(sniffed, "image/") && sniffed != "application/octet-stream" {
		return "", models.NewValidationError("Unsupported image type")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(up.Data))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	contentType, ok := allowedImageTypes[format]
	if !ok {
		return "", models.NewValidationError("Unsupported image type")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxImageDimension || cfg.Height > maxImageDimension {
		return "", models.NewValidationError("Invalid image dimensions")
	}
	return contentType, nil
}

// Store validates and persists one upload.
func (s *ImageService) Store(ctx context.Context, uploaderID uint, up Upload) (*models.Image, error) {
	contentType, err := s.Inspect(up)
	if err != nil {
		return nil, err
	}
	img := &models.Image{
		Data:        up.Data,
		ContentType: contentType,
		FileName:    cleanFileName(up.FileName),
		UploaderID:  uploaderID,
	}
	if err := s.repo.Create(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// StoreAll validates every upload first, then persists them one by one. If any insert fails
// the ones already stored are removed before the error is returned.
func (s *ImageService) StoreAll(ctx context.Context, uploaderID uint, ups []Upload) ([]*models.Image, error) {
	types := make([]string, len(ups))
	for i, up := range ups {
		ct, err := s.Inspect(up)
		if err != nil {
			return nil, err
		}
		types[i] = ct
	}

	stored := make([]*models.Image, 0, len(ups))
	for i, up := range ups {
		img := &models.Image{
			Data:        up.Data,
			ContentType: types[i],
			FileName:    cleanFileName(up.FileName),
			UploaderID:  uploaderID,
		}
		if err := s.repo.Create(ctx, img); err != nil {
			s.Compensate(ctx, "store_images", imageIDs(stored))
			return nil, err
		}
		stored = append(stored, img)
	}
	return stored, nil
}

// Compensate deletes images whose owning write failed. It is best effort: a failure leaves
// orphans behind, which is logged and counted.
func (s *ImageService) Compensate(ctx context.Context, operation string, ids []uint) {
	if len(ids) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.Delete(ctx, ids...); err != nil {
		observability.ImageCompensations.WithLabelValues(operation, "failed").Inc()
		middleware.Logger.ErrorContext(ctx, "Failed to delete orphaned images",
			slog.String("operation", operation),
			slog.Any("image_ids", ids),
			slog.String("error", err.Error()))
		return
	}
	observability.ImageCompensations.WithLabelValues(operation, "deleted").Inc()
	s.cache.Invalidate(ctx, imageCacheKeys(ids)...)
}

// Forget drops cached bytes for images deleted by another write.
func (s *ImageService) Forget(ctx context.Context, ids []uint) {
	s.cache.Invalidate(ctx, imageCacheKeys(ids)...)
}

type cachedImage struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
}

// Get returns an image's bytes, going through Redis for small images.
func (s *ImageService) Get(ctx context.Context, id uint) (*models.Image, error) {
	key := cache.ImageKey(id)

	var hit cachedImage
	if found, err := s.cache.GetJSON(ctx, key, &hit); err == nil && found {
		return &models.Image{ID: id, Data: hit.Data, ContentType: hit.ContentType}, nil
	}

	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(img.Data) <= cache.MaxCachedImageBytes {
		_ = s.cache.SetJSON(ctx, key, cachedImage{Data: img.Data, ContentType: img.ContentType}, cache.ImageTTL)
	}
	return img, nil
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > maxFileNameLength {
		name = name[len(name)-maxFileNameLength:]
	}
	return name
}

func imageIDs(images []*models.Image) []uint {
	ids := make([]uint, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	return ids
}

func imageCacheKeys(ids []uint) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.ImageKey(id))
	}
	return keys
}
