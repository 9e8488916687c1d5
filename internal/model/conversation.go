package model

import "time"

type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}
