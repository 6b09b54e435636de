package models

import "time"

// Blob is a stored binary uploaded through a single-use upload ticket.
// The ID doubles as the storage identifier returned to the uploader.
type Blob struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	MimeType  string    `gorm:"not null" json:"mime_type"`
	SizeBytes int64     `gorm:"not null" json:"size_bytes"`
	Data      []byte    `gorm:"type:bytea" json:"-"`
	UserID    uint      `gorm:"index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
