package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// FollowRepository maintains the follow graph and the follower/following counts derived from it.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID uint) error
	Unfollow(ctx context.Context, followerID, followeeID uint) error
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	ListFollowers(ctx context.Context, userID uint, offset, limit int) ([]models.User, int64, error)
	ListFollowing(ctx context.Context, userID uint, offset, limit int) ([]models.User, int64, error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// lockPair locks both users in id order so concurrent follow and unfollow calls on the same
// pair cannot deadlock. A missing user is reported as not found.
func lockPair(tx *gorm.DB, a, b uint) error {
	first, second := a, b
	if first > second {
		first, second = second, first
	}
	for _, id := range []uint{first, second} {
		var u models.User
		if err := forUpdate(tx).Select("id").First(&u, id).Error; err != nil {
			return translate(err, "User", id)
		}
	}
	return nil
}

func edgeExists(tx *gorm.DB, followerID, followeeID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	return n > 0, err
}

// Follow adds the edge and recounts the actor's following and the target's followers.
func (r *followRepository) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewValidationError("You cannot follow yourself")
	}
	err := inTx(ctx, r.db, "follow", func(tx *gorm.DB) error {
		if err := lockPair(tx, followerID, followeeID); err != nil {
			return err
		}
		exists, err := edgeExists(tx, followerID, followeeID)
		if err != nil {
			return err
		}
		if exists {
			return models.NewConflictError("You are already following this user")
		}

		if err := tx.Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewConflictError("You are already following this user")
			}
			return err
		}
		if err := recountFollowing(tx, followerID); err != nil {
			return err
		}
		return recountFollowers(tx, followeeID)
	})
	return translate(err, "User", followeeID)
}

// Unfollow removes the edge and recounts both sides.
func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewValidationError("You cannot unfollow yourself")
	}
	err := inTx(ctx, r.db, "unfollow", func(tx *gorm.DB) error {
		if err := lockPair(tx, followerID, followeeID); err != nil {
			return err
		}
		res := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
			Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("You are not following this user")
		}
		if err := recountFollowing(tx, followerID); err != nil {
			return err
		}
		return recountFollowers(tx, followeeID)
	})
	return translate(err, "User", followeeID)
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followerID == 0 || followeeID == 0 {
		return false, nil
	}
	ok, err := edgeExists(r.db.WithContext(ctx), followerID, followeeID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return ok, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, userID uint, offset, limit int) ([]models.User, int64, error) {
	return r.listEdges(ctx, "follows.follower_id", "follows.followee_id = ?", userID, offset, limit)
}

func (r *followRepository) ListFollowing(ctx context.Context, userID uint, offset, limit int) ([]models.User, int64, error) {
	return r.listEdges(ctx, "follows.followee_id", "follows.follower_id = ?", userID, offset, limit)
}

// listEdges pages the users on the far side of userID's edges, most recent edge first.
func (r *followRepository) listEdges(ctx context.Context, joinCol, where string, userID uint, offset, limit int) ([]models.User, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Follow{}).Where(where, userID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	err := db.Model(&models.User{}).
		Joins("JOIN follows ON users.id = "+joinCol).
		Where(where, userID).
		Order("follows.created_at DESC, users.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
