package service

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// ActivityActor represents the authenticated actor performing an action.
type ActivityActor struct {
	ID   uint
	Role string
}

// IsTeacher reports whether the actor holds the teacher role.
func (a ActivityActor) IsTeacher() bool {
	return normalizeRole(a.Role) == string(workflow.RoleTeacher)
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	Actor     ActivityActor
	Action    string
	ProjectID *uint
	OldStatus workflow.Status
	NewStatus workflow.Status
	Details   map[string]interface{}
}

// AuditWriter appends versions and activity entries inside a caller's transaction.
type AuditWriter struct{}

// AppendVersion snapshots the project as the next version in its sequence.
func (AuditWriter) AppendVersion(ctx context.Context, tx repository.Store, project models.Project, improvementReason *string) (models.Version, error) {
	max, err := tx.Versions().MaxSequence(ctx, project.ID)
	if err != nil {
		return models.Version{}, fmt.Errorf("read version sequence: %w", err)
	}

	version := models.Version{
		ProjectID:         project.ID,
		Sequence:          max + 1,
		Prompt:            project.Prompt,
		Evaluation:        project.Evaluation,
		HTMLContent:       project.HTMLContent,
		Status:            project.Status,
		ImprovementReason: improvementReason,
	}
	if err := tx.Versions().Create(ctx, &version); err != nil {
		return models.Version{}, fmt.Errorf("append version: %w", err)
	}
	return version, nil
}

// Record writes one activity log entry.
func (AuditWriter) Record(ctx context.Context, tx repository.Store, entry ActivityEntry) (models.ActivityLog, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return models.ActivityLog{}, fmt.Errorf("action is required")
	}

	model := models.ActivityLog{
		ProjectID: entry.ProjectID,
		ActorID:   entry.Actor.ID,
		ActorRole: normalizeRole(entry.Actor.Role),
		Action:    strings.ToLower(strings.TrimSpace(entry.Action)),
		OldStatus: statusPtr(entry.OldStatus),
		NewStatus: statusPtr(entry.NewStatus),
		Details:   sanitizeMetadata(entry.Details),
	}
	if err := tx.Activity().Create(ctx, &model); err != nil {
		return models.ActivityLog{}, fmt.Errorf("record activity: %w", err)
	}
	return model, nil
}

func statusPtr(status workflow.Status) *string {
	if status == "" {
		return nil
	}
	value := string(status)
	return &value
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
