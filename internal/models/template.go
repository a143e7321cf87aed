package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Math domains recognised by the curriculum.
const (
	DomainNumberOperation = "number_operation"
	DomainAlgebra         = "algebra"
	DomainFunction        = "function"
	DomainGeometry        = "geometry"
	DomainStatistics      = "statistics"
)

var domainLabels = map[string]string{
	DomainNumberOperation: "수와 연산",
	DomainAlgebra:         "문자와 식",
	DomainFunction:        "함수",
	DomainGeometry:        "기하",
	DomainStatistics:      "확률과 통계",
}

// DomainLabel returns the Korean display label for a math domain.
func DomainLabel(domain string) string {
	if label, ok := domainLabels[domain]; ok {
		return label
	}
	return domain
}

// Template is a teacher-authored curriculum context attached to projects.
type Template struct {
	ID                      uint           `gorm:"primaryKey" json:"id"`
	AuthorID                uint           `gorm:"not null;index" json:"author_id"`
	Title                   string         `gorm:"size:255;not null" json:"title"`
	Grade                   int            `gorm:"not null;index" json:"grade"`
	MathDomain              string         `gorm:"size:32;not null;index" json:"math_domain"`
	UnitName                string         `gorm:"size:255" json:"unit_name"`
	AchievementStandardCode string         `gorm:"size:64" json:"achievement_standard_code"`
	AchievementStandard     string         `gorm:"type:text;not null" json:"achievement_standard"`
	ObjectivesRaw           datatypes.JSON `gorm:"column:learning_objectives" json:"-"`
	ExpectedLevel           string         `gorm:"size:1;not null" json:"expected_level"`
	Guidelines              string         `gorm:"type:text;not null" json:"guidelines"`
	AIRestrictions          string         `gorm:"type:text" json:"ai_restrictions"`
	IsActive                bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
	LearningObjectives      []string       `gorm:"-" json:"learning_objectives"`
}

// TableName keeps the historical table name.
func (Template) TableName() string {
	return "project_templates"
}

// BeforeSave encodes the objective list into the JSON column.
func (t *Template) BeforeSave(tx *gorm.DB) error {
	cleaned := make([]string, 0, len(t.LearningObjectives))
	for _, objective := range t.LearningObjectives {
		if trimmed := strings.TrimSpace(objective); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return err
	}
	t.LearningObjectives = cleaned
	t.ObjectivesRaw = datatypes.JSON(raw)
	return nil
}

// AfterFind hydrates the objective list after retrieval.
func (t *Template) AfterFind(tx *gorm.DB) error {
	t.LearningObjectives = []string{}
	if len(t.ObjectivesRaw) == 0 {
		return nil
	}
	return json.Unmarshal(t.ObjectivesRaw, &t.LearningObjectives)
}
