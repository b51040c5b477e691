package models

import (
	"time"

	"github.com/google/uuid"
)

// StationSession is the short-lived credential a station presents on
// heartbeats. Registration and reconnect rotate sessions: all prior rows for
// the station are deactivated in the same transaction that inserts the new one,
// so at most one row per station has is_active=true.
type StationSession struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StationID    uuid.UUID  `gorm:"column:station_id;type:uuid;not null;index"`
	SessionToken string     `gorm:"column:session_token;not null;uniqueIndex"`
	IPAddress    *string    `gorm:"column:ip_address"`
	UserAgent    *string    `gorm:"column:user_agent"`
	StartedAt    time.Time  `gorm:"column:started_at;autoCreateTime"`
	LastActivity time.Time  `gorm:"column:last_activity;autoCreateTime"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
}
