package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures auditable lifecycle and catalog events.
type ActivityLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	ProjectID *uint             `gorm:"index" json:"project_id"`
	ActorID   uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole string            `gorm:"size:32;not null" json:"actor_role"`
	Action    string            `gorm:"size:64;not null;index" json:"action"`
	OldStatus *string           `gorm:"size:32" json:"old_status"`
	NewStatus *string           `gorm:"size:32" json:"new_status"`
	Details   datatypes.JSONMap `gorm:"type:json" json:"details"`
	CreatedAt time.Time         `json:"created_at"`
}
