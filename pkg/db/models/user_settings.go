package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printbridge/backend/pkg/enums"
)

// UserSettings holds the per-user upload and print preferences, one row per user.
type UserSettings struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	MaxUploadMB      int                    `gorm:"column:max_upload_mb;not null;default:10"`
	AutoProcessFiles bool                   `gorm:"column:auto_process_files;not null;default:true"`
	AutoPrintEnabled bool                   `gorm:"column:auto_print_enabled;not null;default:false"`
	PrintOrientation enums.PrintOrientation `gorm:"column:print_orientation;type:text;not null;default:portrait"`
	PrintCopies      int                    `gorm:"column:print_copies;not null;default:1"`
	DefaultStationID *uuid.UUID             `gorm:"column:default_station_id;type:uuid"`
	LastPrintCheck   *time.Time             `gorm:"column:last_print_check"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
