package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audited entity kinds.
const (
	EntityReport = "report"
	EntityUser   = "user"
)

// ActivityLog is one privileged action on a report or an account. A single report's
// history is read through the (entity_type, entity_id) index.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey"`
	ActorID    uint              `gorm:"not null;index"`
	ActorRole  Role              `gorm:"size:16;not null"`
	Action     string            `gorm:"size:64;not null;index"`
	EntityType string            `gorm:"size:32;not null;index:idx_activity_entity,priority:1"`
	EntityID   *uint             `gorm:"index:idx_activity_entity,priority:2"`
	Metadata   datatypes.JSONMap `gorm:"type:json"`
	CreatedAt  time.Time         `gorm:"index"`
}
