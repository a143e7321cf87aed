package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	OwnerID    *uint
	TemplateID *uint
	Status     workflow.Status
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uint) (models.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]models.Project, error)
	// UpdateGuarded applies fields only while the row still has the expected
	// status and revision, and bumps the revision. It returns the affected row count.
	UpdateGuarded(ctx context.Context, id uint, expected workflow.Status, revision uint, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository constructs a GORM backed project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Omit("Owner").Create(project).Error
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Preload("Owner").First(&project, id).Error; err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (r *projectRepository) List(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{}).Preload("Owner")

	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.TemplateID != nil {
		query = query.Where("template_id = ?", *filter.TemplateID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) UpdateGuarded(ctx context.Context, id uint, expected workflow.Status, revision uint, fields map[string]interface{}) (int64, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for key, value := range fields {
		updates[key] = value
	}
	updates["revision"] = revision + 1

	result := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND status = ? AND revision = ?", id, expected, revision).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Project{}, id).Error
}
