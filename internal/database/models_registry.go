package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Image{},
		&models.Post{},
		&models.PostLike{},
		&models.Favourite{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Follow{},
		&models.Notification{},
	}
}
