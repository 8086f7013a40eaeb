package models

import (
	"time"
)

// Post is a blog entry. LikesCount and CommentsCount are derived from post_likes and comments and
// are only written by the repository counter helpers.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:100;not null" json:"title"`
	Body          string    `gorm:"type:text;not null" json:"body"`
	Images        []string  `gorm:"type:text;serializer:json" json:"images"`
	AuthorID      uint      `gorm:"not null;index:idx_posts_author_written,priority:1" json:"authorId"`
	Author        User      `gorm:"foreignKey:AuthorID" json:"-"`
	Slug          string    `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Tags          []string  `gorm:"type:text;serializer:json" json:"tags"`
	Published     bool      `gorm:"not null;index:idx_posts_published_written,priority:1" json:"published"`
	LikesCount    int64     `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int64     `gorm:"not null;default:0" json:"comments_count"`
	DateWritten   time.Time `gorm:"autoCreateTime;index:idx_posts_published_written,priority:2;index:idx_posts_author_written,priority:2" json:"dateWritten"`
	DateUpdated   time.Time `gorm:"autoUpdateTime" json:"dateUpdated"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// PostView decorates a post for a specific viewer.
type PostView struct {
	Post
	Author      PublicUser `json:"author"`
	Liked       bool       `json:"liked"`
	IsFavourite bool       `json:"isFavourite"`
	IsOwner     bool       `json:"isOwner"`
}
