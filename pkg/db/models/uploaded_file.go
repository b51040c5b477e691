package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printbridge/backend/pkg/enums"
)

// UploadedFile captures metadata for a stored document. The bytes themselves
// live on disk under the owner's upload directory.
type UploadedFile struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	StoredName   string           `gorm:"column:stored_name;not null"`
	OriginalName string           `gorm:"column:original_name;not null"`
	SizeBytes    int64            `gorm:"column:size_bytes;not null"`
	ContentHash  string           `gorm:"column:content_hash;not null"`
	MimeType     string           `gorm:"column:mime_type;not null"`
	Status       enums.FileStatus `gorm:"column:status;type:text;not null;default:pending"`
	UploadedAt   time.Time        `gorm:"column:uploaded_at;autoCreateTime"`
	ProcessedAt  *time.Time       `gorm:"column:processed_at"`
	ErrorMessage *string          `gorm:"column:error_message"`
}
