package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/models"
)

// ImageRepository persists project attachment metadata.
type ImageRepository interface {
	Create(ctx context.Context, image *models.ProjectImage) error
	GetByID(ctx context.Context, id uint) (models.ProjectImage, error)
	FindByChecksum(ctx context.Context, projectID uint, checksum string) (models.ProjectImage, error)
	ListByProject(ctx context.Context, projectID uint) ([]models.ProjectImage, error)
	Delete(ctx context.Context, id uint) error
	DeleteByProject(ctx context.Context, projectID uint) error
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository constructs a GORM backed image repository.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *models.ProjectImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepository) GetByID(ctx context.Context, id uint) (models.ProjectImage, error) {
	var image models.ProjectImage
	if err := r.db.WithContext(ctx).First(&image, id).Error; err != nil {
		return models.ProjectImage{}, err
	}
	return image, nil
}

func (r *imageRepository) FindByChecksum(ctx context.Context, projectID uint, checksum string) (models.ProjectImage, error) {
	var image models.ProjectImage
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND checksum = ?", projectID, checksum).
		First(&image).Error; err != nil {
		return models.ProjectImage{}, err
	}
	return image, nil
}

func (r *imageRepository) ListByProject(ctx context.Context, projectID uint) ([]models.ProjectImage, error) {
	var images []models.ProjectImage
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (r *imageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.ProjectImage{}, id).Error
}

func (r *imageRepository) DeleteByProject(ctx context.Context, projectID uint) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.ProjectImage{}).Error
}
