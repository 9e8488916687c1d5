package model

import "time"

type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_documents_session_filename" json:"session_id"`
	Filename   string    `gorm:"size:255;not null;uniqueIndex:idx_documents_session_filename" json:"filename"`
	PageCount  int       `gorm:"not null;default:0" json:"page_count"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
