package models

import "time"

// Document is a study document uploaded by a user.
type Document struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string    `gorm:"size:64;index;not null" json:"owner_id"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	StoragePath string    `gorm:"size:512;not null" json:"storage_path"`
	URL         string    `gorm:"size:1024" json:"url"`
	MimeType    string    `gorm:"size:128" json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `gorm:"size:64" json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Assistant maps a user to their persistent AI assistant.
type Assistant struct {
	ID        string    `gorm:"primaryKey;size:128" json:"id"`
	UserID    string    `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
