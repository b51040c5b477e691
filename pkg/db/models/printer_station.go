package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/printbridge/backend/pkg/db/types"
	"github.com/printbridge/backend/pkg/enums"
)

// PrinterStation is a registered remote print agent. Stations are soft-deleted
// only (is_active=false) so job history keeps valid references. The
// station_token is the device's long-lived identity; short-lived credentials
// live in StationSession.
type PrinterStation struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:idx_stations_owner_name,unique"`
	Name          string              `gorm:"column:name;not null;index:idx_stations_owner_name,unique"`
	Location      string              `gorm:"column:location;not null;default:''"`
	StationToken  string              `gorm:"column:station_token;not null;uniqueIndex"`
	Status        enums.StationStatus `gorm:"column:status;type:text;not null;default:offline"`
	Capabilities  dbtypes.JSONMap     `gorm:"column:capabilities;type:jsonb;not null;default:'{}'"`
	IsActive      bool                `gorm:"column:is_active;not null;default:true"`
	LastHeartbeat *time.Time          `gorm:"column:last_heartbeat"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
