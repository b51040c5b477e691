package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/printbridge/backend/pkg/db/types"
)

// AuditLog records administrative mutations for later review.
type AuditLog struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AdminUserID uuid.UUID       `gorm:"column:admin_user_id;type:uuid;not null;index"`
	Action      string          `gorm:"column:action;not null"`
	Details     dbtypes.JSONMap `gorm:"column:details;type:jsonb;not null;default:'{}'"`
	IPAddress   *string         `gorm:"column:ip_address"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
