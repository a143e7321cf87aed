package dto

import (
	"time"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// StatusChangeEvent is streamed to clients whenever a project changes status.
type StatusChangeEvent struct {
	ProjectID  uint            `json:"project_id"`
	OwnerID    uint            `json:"owner_id"`
	Title      string          `json:"title"`
	Action     workflow.Action `json:"action"`
	OldStatus  workflow.Status `json:"old_status"`
	NewStatus  workflow.Status `json:"new_status"`
	ActorID    uint            `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NotificationQuery holds the list filters accepted by GET /notifications.
type NotificationQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationMeta accompanies a notification list.
type NotificationMeta struct {
	UnreadCount int64 `json:"unread_count"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
}

// MarkAllReadResponse reports how many notifications were flagged.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// NotificationResponse serializes a notification entity.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Type      string    `json:"type"`
	ProjectID *uint     `json:"project_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model.
func NewNotificationResponse(notification models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        notification.ID,
		UserID:    notification.UserID,
		Type:      notification.Type,
		ProjectID: notification.ProjectID,
		Message:   notification.Message,
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a list of notifications.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewNotificationResponse(item))
	}
	return responses
}
