package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/workflow"
	"github.com/noah-isme/promptlab-api/pkg/ai"
)

// ProjectSubmitRequest creates a new pending project.
type ProjectSubmitRequest struct {
	TemplateID uint            `json:"template_id" validate:"required"`
	Title      string          `json:"title" validate:"required,max=255"`
	Prompt     string          `json:"prompt" validate:"required,max=20000"`
	Evaluation json.RawMessage `json:"evaluation"`
}

// ProjectEditRequest changes a pending project in place.
type ProjectEditRequest struct {
	Title      *string         `json:"title" validate:"omitempty,max=255"`
	Prompt     *string         `json:"prompt" validate:"omitempty,max=20000"`
	Evaluation json.RawMessage `json:"evaluation"`
}

// ProjectResubmitRequest sends a rejected, withdrawn or feedback-requested project back for review.
type ProjectResubmitRequest struct {
	Title      *string         `json:"title" validate:"omitempty,max=255"`
	Prompt     string          `json:"prompt" validate:"required,max=20000"`
	Evaluation json.RawMessage `json:"evaluation"`
}

// ProjectImproveRequest reopens a project with a revised prompt and a stated reason.
type ProjectImproveRequest struct {
	Prompt     string          `json:"prompt" validate:"required,max=20000"`
	Reason     string          `json:"reason" validate:"required,max=2000"`
	Evaluation json.RawMessage `json:"evaluation"`
}

// ProjectRejectRequest carries the teacher's rejection reason.
type ProjectRejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ProjectFeedbackRequest carries the teacher's requested changes.
type ProjectFeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,max=4000"`
}

// ProjectListRequest describes list filters. Search and Sort apply after the fetch.
type ProjectListRequest struct {
	Search     string
	Sort       string
	Status     string
	OwnerID    *uint
	TemplateID *uint
}

// ProjectResponse serializes a project for clients.
type ProjectResponse struct {
	ID                  uint               `json:"id"`
	OwnerID             uint               `json:"owner_id"`
	OwnerName           string             `json:"owner_name"`
	TemplateID          *uint              `json:"template_id"`
	Title               string             `json:"title"`
	Prompt              string             `json:"prompt"`
	Evaluation          *ai.EvaluationView `json:"evaluation"`
	Status              workflow.Status    `json:"status"`
	HTMLContent         *string            `json:"html_content"`
	RejectionReason     *string            `json:"rejection_reason"`
	TeacherFeedback     *string            `json:"teacher_feedback"`
	FeedbackRequestedAt *time.Time         `json:"feedback_requested_at"`
	Revision            uint               `json:"revision"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// NewProjectResponse converts a project model into its response shape.
func NewProjectResponse(project models.Project) ProjectResponse {
	return ProjectResponse{
		ID:                  project.ID,
		OwnerID:             project.OwnerID,
		OwnerName:           project.Owner.Name,
		TemplateID:          project.TemplateID,
		Title:               project.Title,
		Prompt:              project.Prompt,
		Evaluation:          evaluationView(project.Evaluation),
		Status:              project.Status,
		HTMLContent:         project.HTMLContent,
		RejectionReason:     project.RejectionReason,
		TeacherFeedback:     project.TeacherFeedback,
		FeedbackRequestedAt: project.FeedbackRequestedAt,
		Revision:            project.Revision,
		CreatedAt:           project.CreatedAt,
		UpdatedAt:           project.UpdatedAt,
	}
}

// NewProjectResponseSlice converts a list of projects.
func NewProjectResponseSlice(projects []models.Project) []ProjectResponse {
	responses := make([]ProjectResponse, 0, len(projects))
	for _, project := range projects {
		responses = append(responses, NewProjectResponse(project))
	}
	return responses
}

// VersionResponse serializes a version snapshot.
type VersionResponse struct {
	ID                uint               `json:"id"`
	ProjectID         uint               `json:"project_id"`
	Sequence          uint               `json:"sequence"`
	Prompt            string             `json:"prompt"`
	Evaluation        *ai.EvaluationView `json:"evaluation"`
	HTMLContent       *string            `json:"html_content"`
	Status            workflow.Status    `json:"status"`
	ImprovementReason *string            `json:"improvement_reason"`
	CreatedAt         time.Time          `json:"created_at"`
}

// NewVersionResponse converts a version model.
func NewVersionResponse(version models.Version) VersionResponse {
	return VersionResponse{
		ID:                version.ID,
		ProjectID:         version.ProjectID,
		Sequence:          version.Sequence,
		Prompt:            version.Prompt,
		Evaluation:        evaluationView(version.Evaluation),
		HTMLContent:       version.HTMLContent,
		Status:            version.Status,
		ImprovementReason: version.ImprovementReason,
		CreatedAt:         version.CreatedAt,
	}
}

// ImageResponse serializes an attachment.
type ImageResponse struct {
	ID        uint      `json:"id"`
	ProjectID uint      `json:"project_id"`
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	SizeBytes int64     `json:"size_bytes"`
	MimeType  string    `json:"mime_type"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// NewImageResponse converts an image model.
func NewImageResponse(image models.ProjectImage) ImageResponse {
	return ImageResponse{
		ID:        image.ID,
		ProjectID: image.ProjectID,
		URL:       image.URL,
		FileName:  image.FileName,
		SizeBytes: image.SizeBytes,
		MimeType:  image.MimeType,
		Checksum:  image.Checksum,
		CreatedAt: image.CreatedAt,
	}
}

func evaluationView(raw []byte) *ai.EvaluationView {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var evaluation ai.Evaluation
	if err := json.Unmarshal(raw, &evaluation); err != nil {
		return nil
	}
	view := evaluation.View()
	return &view
}
