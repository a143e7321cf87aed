package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/models"
)

// TemplateFilter narrows template listings. Filters compose with AND.
type TemplateFilter struct {
	Grade           *int
	MathDomain      string
	IncludeInactive bool
}

// TemplateRepository persists curriculum templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	Update(ctx context.Context, template *models.Template) error
	GetByID(ctx context.Context, id uint) (models.Template, error)
	List(ctx context.Context, filter TemplateFilter) ([]models.Template, error)
	Deactivate(ctx context.Context, id uint) error
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository constructs a GORM backed template repository.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, template *models.Template) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *templateRepository) Update(ctx context.Context, template *models.Template) error {
	return r.db.WithContext(ctx).Save(template).Error
}

func (r *templateRepository) GetByID(ctx context.Context, id uint) (models.Template, error) {
	var template models.Template
	if err := r.db.WithContext(ctx).First(&template, id).Error; err != nil {
		return models.Template{}, err
	}
	return template, nil
}

func (r *templateRepository) List(ctx context.Context, filter TemplateFilter) ([]models.Template, error) {
	query := r.db.WithContext(ctx).Model(&models.Template{})

	if !filter.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if filter.Grade != nil {
		query = query.Where("grade = ?", *filter.Grade)
	}
	if filter.MathDomain != "" {
		query = query.Where("math_domain = ?", filter.MathDomain)
	}

	var templates []models.Template
	if err := query.Order("grade ASC, created_at DESC").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *templateRepository) Deactivate(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Template{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
