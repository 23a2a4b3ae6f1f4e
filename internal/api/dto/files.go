package dto

import (
	"time"

	"github.com/hugh/ash-erp/internal/database/models"
)

type FileDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	Encrypted   bool   `json:"encrypted"`
	UploadedBy  string `json:"uploaded_by"`
	CreatedAt   string `json:"created_at"`
}

func NewFileDTO(f *models.StoredFile) FileDTO {
	return FileDTO{
		ID:          f.ID.String(),
		Name:        f.Name,
		ContentType: f.ContentType,
		SizeBytes:   f.SizeBytes,
		Encrypted:   f.Encrypted,
		UploadedBy:  f.UploadedBy.String(),
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
}
