package repository

import (
	"context"
	"time"

	"golang-stock-recommender/internal/entity"
	"golang-stock-recommender/pkg/common"

	"gorm.io/gorm"
)

// SnapshotReadRepository serves stored snapshots to read clients. Because the
// writer persists success rows atomically, readers only ever observe a
// complete snapshot or absence.
type SnapshotReadRepository interface {
	FindSuccessByDate(ctx context.Context, asOfDate time.Time) (*entity.RecommendationSnapshot, error)
	FindItemsByDateAndTicker(ctx context.Context, asOfDate time.Time, ticker string) ([]entity.RecommendationItem, error)
}

type snapshotReadRepository struct {
	db *gorm.DB
}

// NewSnapshotReadRepository creates a new SnapshotReadRepository.
func NewSnapshotReadRepository(db *gorm.DB) SnapshotReadRepository {
	return &snapshotReadRepository{db: db}
}

func (r *snapshotReadRepository) FindSuccessByDate(ctx context.Context, asOfDate time.Time) (*entity.RecommendationSnapshot, error) {
	var record entity.RecommendationSnapshot
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("rank ASC")
		}).
		Where("as_of_date = ? AND status = ?", asOfDate.Format(common.DateFormat), common.SnapshotStatusSuccess).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *snapshotReadRepository) FindItemsByDateAndTicker(ctx context.Context, asOfDate time.Time, ticker string) ([]entity.RecommendationItem, error) {
	var items []entity.RecommendationItem
	err := r.db.WithContext(ctx).
		Joins("JOIN recommendation_snapshots s ON s.id = recommendation_items.snapshot_id").
		Where("s.as_of_date = ? AND s.status = ?", asOfDate.Format(common.DateFormat), common.SnapshotStatusSuccess).
		Where("recommendation_items.ticker = ?", ticker).
		Order("recommendation_items.rank ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
