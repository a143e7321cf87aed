package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// VersionRepository persists append-only project snapshots.
type VersionRepository interface {
	MaxSequence(ctx context.Context, projectID uint) (uint, error)
	Create(ctx context.Context, version *models.Version) error
	ListByProject(ctx context.Context, projectID uint) ([]models.Version, error)
	// CountByProject counts versions per project, optionally only those with the given status.
	CountByProject(ctx context.Context, projectIDs []uint, status workflow.Status) (map[uint]int64, error)
	DeleteByProject(ctx context.Context, projectID uint) error
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository constructs a GORM backed version repository.
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) MaxSequence(ctx context.Context, projectID uint) (uint, error) {
	var max uint
	err := r.db.WithContext(ctx).Model(&models.Version{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&max).Error
	return max, err
}

func (r *versionRepository) Create(ctx context.Context, version *models.Version) error {
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *versionRepository) ListByProject(ctx context.Context, projectID uint) ([]models.Version, error) {
	var versions []models.Version
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sequence DESC").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *versionRepository) CountByProject(ctx context.Context, projectIDs []uint, status workflow.Status) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(projectIDs))
	if len(projectIDs) == 0 {
		return counts, nil
	}

	type row struct {
		ProjectID uint
		Total     int64
	}
	query := r.db.WithContext(ctx).Model(&models.Version{}).
		Select("project_id, COUNT(*) AS total").
		Where("project_id IN ?", projectIDs)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []row
	if err := query.Group("project_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, rw := range rows {
		counts[rw.ProjectID] = rw.Total
	}
	return counts, nil
}

func (r *versionRepository) DeleteByProject(ctx context.Context, projectID uint) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Version{}).Error
}
