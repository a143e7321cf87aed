package dto

import (
	"time"

	"github.com/noah-isme/promptlab-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	Page      int
	PageSize  int
	ActorID   uint
	ProjectID uint
	Action    string
	Status    string
	Since     *time.Time
	Until     *time.Time
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID        uint                   `json:"id"`
	ProjectID *uint                  `json:"project_id"`
	ActorID   uint                   `json:"actor_id"`
	ActorRole string                 `json:"actor_role"`
	Action    string                 `json:"action"`
	OldStatus *string                `json:"old_status"`
	NewStatus *string                `json:"new_status"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse converts an activity log model.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	details := map[string]interface{}{}
	for key, value := range entry.Details {
		details[key] = value
	}
	return ActivityResponse{
		ID:        entry.ID,
		ProjectID: entry.ProjectID,
		ActorID:   entry.ActorID,
		ActorRole: entry.ActorRole,
		Action:    entry.Action,
		OldStatus: entry.OldStatus,
		NewStatus: entry.NewStatus,
		Details:   details,
		CreatedAt: entry.CreatedAt,
	}
}
