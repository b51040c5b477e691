package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printbridge/backend/pkg/enums"
)

// PrintJob links a file to the consumer that will print it. A nil StationID
// means a local job drained by the owner's browser. A partial unique index
// (user_id, file_id, station_key) WHERE status='pending' backs the
// no-duplicate-pending-job invariant; see the migrations.
type PrintJob struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	FileID       uuid.UUID       `gorm:"column:file_id;type:uuid;not null;index"`
	StationID    *uuid.UUID      `gorm:"column:station_id;type:uuid;index"`
	Status       enums.JobStatus `gorm:"column:status;type:text;not null;default:pending"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	PrintedAt    *time.Time      `gorm:"column:printed_at"`
	ErrorMessage *string         `gorm:"column:error_message"`
}
