package models

import "time"

// NotificationType tags what triggered a notification.
type NotificationType string

const (
	NotificationNewPost     NotificationType = "new_post"
	NotificationNewLike     NotificationType = "new_like"
	NotificationNewComment  NotificationType = "new_comment"
	NotificationNewReply    NotificationType = "new_reply"
	NotificationNewFollower NotificationType = "new_follower"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNewPost, NotificationNewLike, NotificationNewComment, NotificationNewReply, NotificationNewFollower:
		return true
	}
	return false
}

// Notification is addressed to a single user. Payload carries the deep-link keys (slug or username).
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Type      NotificationType  `gorm:"type:varchar(20);not null" json:"type"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	UserID    uint              `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"userId"`
	Read      bool              `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"read"`
	Payload   map[string]string `gorm:"type:text;serializer:json" json:"additionalInfo"`
	CreatedAt time.Time         `json:"createdAt"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}
