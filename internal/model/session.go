package model

import "time"

// Session groups a user's documents and conversation.
type Session struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UploadCount int       `gorm:"not null;default:0" json:"upload_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
