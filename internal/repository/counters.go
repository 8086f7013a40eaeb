package repository

import (
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// The recount helpers write a derived count from the cardinality of its backing table. They run
// inside the transaction that mutated the table, after the parent row was locked.

func recountPostLikes(tx *gorm.DB, postID uint) (int64, error) {
	var n int64
	if err := tx.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, err
	}
	err := touchPost(tx, postID, "likes_count", n)
	return n, err
}

func recountComments(tx *gorm.DB, postID uint) (int64, error) {
	var n int64
	if err := tx.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, err
	}
	err := touchPost(tx, postID, "comments_count", n)
	return n, err
}

// touchPost writes a post counter. A like or comment counts as a save of the post, so
// date_updated moves with it.
func touchPost(tx *gorm.DB, postID uint, column string, n int64) error {
	return tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]any{
		column:         n,
		"date_updated": time.Now(),
	}).Error
}

func recountCommentLikes(tx *gorm.DB, commentID uint) (int64, error) {
	var n int64
	if err := tx.Model(&models.CommentLike{}).Where("comment_id = ?", commentID).Count(&n).Error; err != nil {
		return 0, err
	}
	err := tx.Model(&models.Comment{}).Where("id = ?", commentID).UpdateColumn("likes_count", n).Error
	return n, err
}

func recountFollowing(tx *gorm.DB, userID uint) error {
	var n int64
	if err := tx.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&n).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("following_count", n).Error
}

func recountFollowers(tx *gorm.DB, userID uint) error {
	var n int64
	if err := tx.Model(&models.Follow{}).Where("followee_id = ?", userID).Count(&n).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("followers_count", n).Error
}
