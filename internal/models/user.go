// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultProfileImage is assigned to users without an uploaded avatar. It is never deleted.
const DefaultProfileImage = "/assets/default-profile.png"

// User represents a registered author.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:50;not null" json:"name"`
	Email           string    `gorm:"size:255;uniqueIndex;not null" json:"email,omitempty"`
	Username        string    `gorm:"size:15;uniqueIndex;not null" json:"username"`
	Description     string    `gorm:"size:100" json:"description"`
	Password        string    `gorm:"not null" json:"-"`
	ExternalID      *string   `gorm:"size:255;uniqueIndex" json:"-"`
	ProfileImage    string    `gorm:"size:255;not null;default:'/assets/default-profile.png'" json:"profileImage"`
	FollowingHidden bool      `gorm:"not null;default:false" json:"followingHidden"`
	FollowersCount  int64     `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount  int64     `gorm:"not null;default:0" json:"following_count"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// HasDefaultProfileImage reports whether the profile image is the shared default.
func (u *User) HasDefaultProfileImage() bool {
	return u.ProfileImage == "" || u.ProfileImage == DefaultProfileImage
}

// PublicUser is the author card embedded in posts, comments and replies.
type PublicUser struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// Public strips private fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
	}
}

// UserProfile is a user as seen by a viewer. Email is blanked unless the viewer is the user.
type UserProfile struct {
	User
	PostsCount  int64 `json:"posts_count"`
	IsFollowing bool  `json:"isFollowing"`
	IsSelf      bool  `json:"isSelf"`
}
