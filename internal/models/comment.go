package models

import (
	"slices"
	"time"
)

// Comment belongs to exactly one post. Replies are stored inline, in insertion order, and are
// addressed by their index within the comment.
type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	AuthorID    uint      `gorm:"not null;index" json:"authorId"`
	Author      User      `gorm:"foreignKey:AuthorID" json:"-"`
	PostID      uint      `gorm:"not null;index:idx_comments_post_rank,priority:1" json:"postId"`
	LikesCount  int64     `gorm:"not null;default:0;index:idx_comments_post_rank,priority:2,sort:desc" json:"likes_count"`
	Replies     []Reply   `gorm:"type:text;serializer:json" json:"-"`
	DateWritten time.Time `gorm:"autoCreateTime;index:idx_comments_post_rank,priority:3,sort:desc" json:"dateWritten"`
}

// TableName specifies the table name for GORM
func (Comment) TableName() string {
	return "comments"
}

// Reply is an answer embedded in a comment.
type Reply struct {
	Content     string    `json:"content"`
	AuthorID    uint      `json:"authorId"`
	To          string    `json:"to,omitempty"`
	Likes       []uint    `json:"likes"`
	DateWritten time.Time `json:"dateWritten"`
}

// LikedBy reports whether userID is in the reply's like set.
func (r *Reply) LikedBy(userID uint) bool {
	return slices.Contains(r.Likes, userID)
}

// CommentView decorates a comment for a viewer. Replies are fetched separately.
type CommentView struct {
	Comment
	Author       PublicUser `json:"author"`
	Liked        bool       `json:"liked"`
	RepliesCount int        `json:"repliesCount"`
}

// ReplyView is a reply as returned by the replies listing.
type ReplyView struct {
	Index       int        `json:"index"`
	Content     string     `json:"content"`
	Author      PublicUser `json:"author"`
	To          string     `json:"to,omitempty"`
	LikesCount  int        `json:"likes_count"`
	Liked       bool       `json:"liked"`
	DateWritten time.Time  `json:"dateWritten"`
}
