package model

import "time"

type Document struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunks"`
	UploadedAt time.Time `gorm:"index" json:"uploaded_at"`
}
