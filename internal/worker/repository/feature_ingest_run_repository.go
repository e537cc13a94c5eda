package repository

import (
	"context"

	"golang-stock-recommender/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type featureIngestRunRepository struct {
	db *gorm.DB
}

// NewFeatureIngestRunRepository creates a new FeatureIngestRunRepository.
func NewFeatureIngestRunRepository(db *gorm.DB) FeatureIngestRunRepository {
	return &featureIngestRunRepository{db: db}
}

func (r *featureIngestRunRepository) Create(ctx context.Context, run *entity.FeatureIngestRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(run).Error
}
