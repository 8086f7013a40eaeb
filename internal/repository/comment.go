package repository

import (
	"context"
	"slices"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines persistence for comments and the replies embedded in them.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, postID, commentID uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, offset, limit int) ([]models.Comment, int64, error)
	Like(ctx context.Context, commentID, userID uint) (int64, error)
	Unlike(ctx context.Context, commentID, userID uint) (int64, error)
	LikedIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error)
	AddReply(ctx context.Context, commentID uint, reply models.Reply) (int, error)
	LikeReply(ctx context.Context, commentID uint, index int, userID uint) (int, error)
	UnlikeReply(ctx context.Context, commentID uint, index int, userID uint) (int, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a new CommentRepository implementation.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and recounts the post's comments_count.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := inTx(ctx, r.db, "add_comment", func(tx *gorm.DB) error {
		if err := lockPost(tx, comment.PostID); err != nil {
			return err
		}
		if comment.Replies == nil {
			comment.Replies = []models.Reply{}
		}
		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return err
		}
		_, err := recountComments(tx, comment.PostID)
		return err
	})
	return translate(err, "Post", comment.PostID)
}

func (r *commentRepository) GetByID(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND post_id = ?", commentID, postID).
		First(&comment).Error
	if err != nil {
		return nil, translate(err, "Comment", commentID)
	}
	return &comment, nil
}

// ListByPost pages comments by likes_count, then newest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, offset, limit int) ([]models.Comment, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var comments []models.Comment
	err := db.Preload("Author").
		Where("post_id = ?", postID).
		Order("likes_count DESC, date_written DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return comments, total, nil
}

func lockComment(tx *gorm.DB, commentID uint) (*models.Comment, error) {
	var c models.Comment
	if err := forUpdate(tx).First(&c, commentID).Error; err != nil {
		return nil, translate(err, "Comment", commentID)
	}
	return &c, nil
}

func (r *commentRepository) Like(ctx context.Context, commentID, userID uint) (int64, error) {
	var count int64
	err := inTx(ctx, r.db, "like_comment", func(tx *gorm.DB) error {
		if _, err := lockComment(tx, commentID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.CommentLike{}).
			Where("comment_id = ? AND user_id = ?", commentID, userID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return models.NewConflictError("You have already liked this comment")
		}
		if err := tx.Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError("You have already liked this comment")
			}
			return err
		}
		var err error
		count, err = recountCommentLikes(tx, commentID)
		return err
	})
	return count, translate(err, "Comment", commentID)
}

func (r *commentRepository) Unlike(ctx context.Context, commentID, userID uint) (int64, error) {
	var count int64
	err := inTx(ctx, r.db, "unlike_comment", func(tx *gorm.DB) error {
		if _, err := lockComment(tx, commentID); err != nil {
			return err
		}
		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("You have not liked this comment")
		}
		var err error
		count, err = recountCommentLikes(tx, commentID)
		return err
	})
	return count, translate(err, "Comment", commentID)
}

func (r *commentRepository) LikedIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool)
	if userID == 0 || len(commentIDs) == 0 {
		return liked, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// saveReplies writes only the replies column.
func saveReplies(tx *gorm.DB, c *models.Comment) error {
	return tx.Model(c).Omit(clause.Associations).Select("replies").Updates(c).Error
}

// AddReply appends reply to the comment and returns its index.
func (r *commentRepository) AddReply(ctx context.Context, commentID uint, reply models.Reply) (int, error) {
	var index int
	err := inTx(ctx, r.db, "add_reply", func(tx *gorm.DB) error {
		c, err := lockComment(tx, commentID)
		if err != nil {
			return err
		}
		if reply.Likes == nil {
			reply.Likes = []uint{}
		}
		if reply.DateWritten.IsZero() {
			reply.DateWritten = time.Now().UTC()
		}
		c.Replies = append(c.Replies, reply)
		index = len(c.Replies) - 1
		return saveReplies(tx, c)
	})
	return index, translate(err, "Comment", commentID)
}

// LikeReply adds userID to the reply's likes and returns the new like count.
func (r *commentRepository) LikeReply(ctx context.Context, commentID uint, index int, userID uint) (int, error) {
	return r.mutateReplyLikes(ctx, "like_reply", commentID, index, func(reply *models.Reply) error {
		if reply.LikedBy(userID) {
			return models.NewConflictError("You have already liked this reply")
		}
		reply.Likes = append(reply.Likes, userID)
		return nil
	})
}

// UnlikeReply removes userID from the reply's likes and returns the new like count.
func (r *commentRepository) UnlikeReply(ctx context.Context, commentID uint, index int, userID uint) (int, error) {
	return r.mutateReplyLikes(ctx, "unlike_reply", commentID, index, func(reply *models.Reply) error {
		i := slices.Index(reply.Likes, userID)
		if i < 0 {
			return models.NewConflictError("You have not liked this reply")
		}
		reply.Likes = slices.Delete(reply.Likes, i, i+1)
		return nil
	})
}

func (r *commentRepository) mutateReplyLikes(ctx context.Context, op string, commentID uint, index int, mutate func(*models.Reply) error) (int, error) {
	var count int
	err := inTx(ctx, r.db, op, func(tx *gorm.DB) error {
		c, err := lockComment(tx, commentID)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(c.Replies) {
			return models.NewNotFoundError("Reply", index)
		}
		reply := &c.Replies[index]
		if err := mutate(reply); err != nil {
			return err
		}
		count = len(reply.Likes)
		return saveReplies(tx, c)
	})
	return count, translate(err, "Comment", commentID)
}
