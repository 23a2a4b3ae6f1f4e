package models

import "github.com/google/uuid"

// StoredFile is the metadata row of an uploaded object. Its SizeBytes is
// what storage usage is summed from.
type StoredFile struct {
	Base
	TenantID    uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Name        string    `gorm:"not null" json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `gorm:"not null;default:0" json:"size_bytes"`
	StorageKey  string    `gorm:"not null" json:"-"`
	Encrypted   bool      `json:"encrypted"`
	UploadedBy  uuid.UUID `gorm:"type:uuid" json:"uploaded_by"`
}

func (StoredFile) TableName() string {
	return "stored_files"
}
