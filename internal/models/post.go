// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a blog entry. A post is never considered valid for display
// without a title and body; the image is optional and rendering falls back to
// the configured placeholder URL.
type Post struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Title          string `gorm:"not null" json:"title"`
	Body           string `gorm:"type:text;not null" json:"body"`
	ImageStorageID string `gorm:"index" json:"image_storage_id,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	User           User   `gorm:"foreignKey:UserID" json:"user"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64          `gorm:"->" json:"comments_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
