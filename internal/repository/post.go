package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter scopes a post listing. A zero AuthorID lists every author.
type PostFilter struct {
	AuthorID      uint
	IncludeDrafts bool
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, filter PostFilter, offset, limit int) ([]models.Post, int64, error)
	ListFavourites(ctx context.Context, userID uint, offset, limit int) ([]models.Post, int64, error)
	Update(ctx context.Context, post *models.Post, removedImageIDs []uint) error
	Delete(ctx context.Context, slug string, authorID uint) (*models.Post, error)
	Like(ctx context.Context, postID, userID uint) (int64, error)
	Unlike(ctx context.Context, postID, userID uint) (int64, error)
	Favourite(ctx context.Context, userID, postID uint) error
	Unfavourite(ctx context.Context, userID, postID uint) error
	ViewerState(ctx context.Context, viewerID uint, postIDs []uint) (liked, favourites map[uint]bool, err error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post under its author's lock. A taken slug is reported as a conflict so
// the caller can pick the next candidate.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return inTx(ctx, r.db, "create_post", func(tx *gorm.DB) error {
		var author models.User
		if err := forUpdate(tx).Select("id").First(&author, post.AuthorID).Error; err != nil {
			return translate(err, "User", post.AuthorID)
		}
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError("Slug already taken")
			}
			return err
		}
		return nil
	})
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, translate(err, "Post", slug)
	}
	return &post, nil
}

// List pages posts newest first.
func (r *postRepository) List(ctx context.Context, filter PostFilter, offset, limit int) ([]models.Post, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.AuthorID != 0 {
			db = db.Where("posts.author_id = ?", filter.AuthorID)
		}
		if !filter.IncludeDrafts {
			db = db.Where("posts.published = ?", true)
		}
		return db
	}

	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Post{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	err := db.Scopes(scope).
		Preload("Author").
		Order("posts.date_written DESC, posts.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// ListFavourites pages the user's favourites, most recently favourited first. Other authors'
// drafts are hidden.
func (r *postRepository) ListFavourites(ctx context.Context, userID uint, offset, limit int) ([]models.Post, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN favourites ON favourites.post_id = posts.id").
			Where("favourites.user_id = ?", userID).
			Where("posts.published = ? OR posts.author_id = ?", true, userID)
	}

	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Post{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	err := db.Scopes(scope).
		Preload("Author").
		Order("favourites.created_at DESC, posts.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// Update saves the editable fields and deletes detached images in one transaction.
func (r *postRepository) Update(ctx context.Context, post *models.Post, removedImageIDs []uint) error {
	err := inTx(ctx, r.db, "update_post", func(tx *gorm.DB) error {
		var current models.Post
		if err := forUpdate(tx).Select("id").First(&current, post.ID).Error; err != nil {
			return translate(err, "Post", post.ID)
		}
		err := tx.Model(post).
			Omit(clause.Associations).
			Select("title", "slug", "body", "images", "tags", "published", "date_updated").
			Updates(post).Error
		if err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError("Slug already taken")
			}
			return err
		}
		return deleteImages(tx, removedImageIDs)
	})
	return translate(err, "Post", post.ID)
}

// Delete removes the author's post together with its comments, likes, favourites and stored
// images. A post that is missing or owned by someone else is reported as not found.
func (r *postRepository) Delete(ctx context.Context, slug string, authorID uint) (*models.Post, error) {
	var post models.Post
	err := inTx(ctx, r.db, "delete_post", func(tx *gorm.DB) error {
		if err := forUpdate(tx).
			Where("slug = ? AND author_id = ?", slug, authorID).
			First(&post).Error; err != nil {
			return translate(err, "Post", slug)
		}

		comments := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", post.ID)
		if err := tx.Where("comment_id IN (?)", comments).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Favourite{}).Error; err != nil {
			return err
		}
		if err := deleteImages(tx, models.ImageIDs(post.Images)); err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, post.ID).Error
	})
	if err != nil {
		return nil, translate(err, "Post", slug)
	}
	return &post, nil
}

// Like adds userID to the post's likes and returns the recounted likes_count.
func (r *postRepository) Like(ctx context.Context, postID, userID uint) (int64, error) {
	var count int64
	err := inTx(ctx, r.db, "like_post", func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.PostLike{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return models.NewConflictError("You have already liked this post")
		}
		if err := tx.Create(&models.PostLike{PostID: postID, UserID: userID}).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError("You have already liked this post")
			}
			return err
		}
		var err error
		count, err = recountPostLikes(tx, postID)
		return err
	})
	return count, translate(err, "Post", postID)
}

// Unlike removes userID from the post's likes and returns the recounted likes_count.
func (r *postRepository) Unlike(ctx context.Context, postID, userID uint) (int64, error) {
	var count int64
	err := inTx(ctx, r.db, "unlike_post", func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("You have not liked this post")
		}
		var err error
		count, err = recountPostLikes(tx, postID)
		return err
	})
	return count, translate(err, "Post", postID)
}

func lockPost(tx *gorm.DB, postID uint) error {
	var p models.Post
	if err := forUpdate(tx).Select("id").First(&p, postID).Error; err != nil {
		return translate(err, "Post", postID)
	}
	return nil
}

func (r *postRepository) Favourite(ctx context.Context, userID, postID uint) error {
	err := r.db.WithContext(ctx).Create(&models.Favourite{UserID: userID, PostID: postID}).Error
	if isUniqueConstraintError(err) {
		return models.NewConflictError("Post is already in your favourites")
	}
	return translate(err, "Post", postID)
}

func (r *postRepository) Unfavourite(ctx context.Context, userID, postID uint) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Favourite{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("Post is not in your favourites")
	}
	return nil
}

// ViewerState reports which of postIDs the viewer liked and favourited.
func (r *postRepository) ViewerState(ctx context.Context, viewerID uint, postIDs []uint) (map[uint]bool, map[uint]bool, error) {
	liked := make(map[uint]bool)
	favourites := make(map[uint]bool)
	if viewerID == 0 || len(postIDs) == 0 {
		return liked, favourites, nil
	}

	db := r.db.WithContext(ctx)
	var likedIDs, favIDs []uint
	if err := db.Model(&models.PostLike{}).
		Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Pluck("post_id", &likedIDs).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	if err := db.Model(&models.Favourite{}).
		Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Pluck("post_id", &favIDs).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	for _, id := range likedIDs {
		liked[id] = true
	}
	for _, id := range favIDs {
		favourites[id] = true
	}
	return liked, favourites, nil
}
