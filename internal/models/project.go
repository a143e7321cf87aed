package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// Project is a student's prompt moving through the review lifecycle.
type Project struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	OwnerID             uint            `gorm:"not null;index" json:"owner_id"`
	Owner               User            `gorm:"foreignKey:OwnerID" json:"owner"`
	TemplateID          *uint           `gorm:"index" json:"template_id"`
	Title               string          `gorm:"size:255;not null" json:"title"`
	Prompt              string          `gorm:"type:text;not null" json:"prompt"`
	Evaluation          datatypes.JSON  `json:"evaluation"`
	Status              workflow.Status `gorm:"size:32;not null;index" json:"status"`
	HTMLContent         *string         `gorm:"type:text" json:"html_content"`
	RejectionReason     *string         `gorm:"type:text" json:"rejection_reason"`
	TeacherFeedback     *string         `gorm:"type:text" json:"teacher_feedback"`
	FeedbackRequestedAt *time.Time      `json:"feedback_requested_at"`
	Revision            uint            `gorm:"not null;default:0" json:"revision"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Version is an immutable snapshot of a project at a lifecycle transition.
type Version struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ProjectID         uint            `gorm:"not null;uniqueIndex:idx_version_project_sequence" json:"project_id"`
	Sequence          uint            `gorm:"not null;uniqueIndex:idx_version_project_sequence" json:"sequence"`
	Prompt            string          `gorm:"type:text;not null" json:"prompt"`
	Evaluation        datatypes.JSON  `json:"evaluation"`
	HTMLContent       *string         `gorm:"type:text" json:"html_content"`
	Status            workflow.Status `gorm:"size:32;not null" json:"status"`
	ImprovementReason *string         `gorm:"type:text" json:"improvement_reason"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ProjectImage is an attachment stored in object storage.
type ProjectImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"not null;index;uniqueIndex:idx_image_project_checksum" json:"project_id"`
	StoragePath string    `gorm:"size:512;not null" json:"storage_path"`
	URL         string    `gorm:"size:1024;not null" json:"url"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `gorm:"size:128" json:"mime_type"`
	Checksum    string    `gorm:"size:64;not null;uniqueIndex:idx_image_project_checksum" json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}
