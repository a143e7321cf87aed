package dto

import (
	"time"

	"github.com/noah-isme/promptlab-api/internal/models"
)

// TemplateRequest creates or replaces a curriculum template.
type TemplateRequest struct {
	Title                   string   `json:"title" validate:"required,max=255"`
	Grade                   int      `json:"grade" validate:"required,min=7,max=9"`
	MathDomain              string   `json:"math_domain" validate:"required,oneof=number_operation algebra function geometry statistics"`
	UnitName                string   `json:"unit_name" validate:"omitempty,max=255"`
	AchievementStandardCode string   `json:"achievement_standard_code" validate:"omitempty,max=64"`
	AchievementStandard     string   `json:"achievement_standard" validate:"required"`
	LearningObjectives      []string `json:"learning_objectives" validate:"omitempty,dive,max=500"`
	ExpectedLevel           string   `json:"expected_level" validate:"required,oneof=A B C D E"`
	Guidelines              string   `json:"guidelines" validate:"required"`
	AIRestrictions          string   `json:"ai_restrictions"`
}

// TemplateListRequest filters template listings.
type TemplateListRequest struct {
	Grade           *int
	MathDomain      string
	IncludeInactive bool
}

// TemplateResponse serializes a template.
type TemplateResponse struct {
	ID                      uint      `json:"id"`
	AuthorID                uint      `json:"author_id"`
	Title                   string    `json:"title"`
	Grade                   int       `json:"grade"`
	MathDomain              string    `json:"math_domain"`
	MathDomainLabel         string    `json:"math_domain_label"`
	UnitName                string    `json:"unit_name"`
	AchievementStandardCode string    `json:"achievement_standard_code"`
	AchievementStandard     string    `json:"achievement_standard"`
	LearningObjectives      []string  `json:"learning_objectives"`
	ExpectedLevel           string    `json:"expected_level"`
	Guidelines              string    `json:"guidelines"`
	AIRestrictions          string    `json:"ai_restrictions"`
	IsActive                bool      `json:"is_active"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// NewTemplateResponse converts a template model.
func NewTemplateResponse(template models.Template) TemplateResponse {
	objectives := template.LearningObjectives
	if objectives == nil {
		objectives = []string{}
	}
	return TemplateResponse{
		ID:                      template.ID,
		AuthorID:                template.AuthorID,
		Title:                   template.Title,
		Grade:                   template.Grade,
		MathDomain:              template.MathDomain,
		MathDomainLabel:         models.DomainLabel(template.MathDomain),
		UnitName:                template.UnitName,
		AchievementStandardCode: template.AchievementStandardCode,
		AchievementStandard:     template.AchievementStandard,
		LearningObjectives:      objectives,
		ExpectedLevel:           template.ExpectedLevel,
		Guidelines:              template.Guidelines,
		AIRestrictions:          template.AIRestrictions,
		IsActive:                template.IsActive,
		CreatedAt:               template.CreatedAt,
		UpdatedAt:               template.UpdatedAt,
	}
}
