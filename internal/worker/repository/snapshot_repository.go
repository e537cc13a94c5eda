package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-recommender/internal/domain"
	"golang-stock-recommender/internal/entity"
	"golang-stock-recommender/pkg/common"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// SuccessExists reports whether a success snapshot is already stored for the
// date.
func (r *snapshotRepository) SuccessExists(ctx context.Context, asOfDate time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.RecommendationSnapshot{}).
		Where("as_of_date = ? AND status = ?", asOfDate.Format("2006-01-02"), common.SnapshotStatusSuccess).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing snapshot: %w", err)
	}
	return count > 0, nil
}

// PersistSuccess writes the snapshot row and all item rows in one
// transaction. The partial unique index on (as_of_date) where
// status='success' makes a concurrent duplicate surface as
// gorm.ErrDuplicatedKey.
func (r *snapshotRepository) PersistSuccess(ctx context.Context, snapshot *domain.Snapshot, provider string, rawResponse json.RawMessage) (uuid.UUID, error) {
	if len(snapshot.Items) != domain.SnapshotItemCount {
		return uuid.Nil, fmt.Errorf("snapshot must have exactly %d items (got %d)",
			domain.SnapshotItemCount, len(snapshot.Items))
	}

	record := entity.RecommendationSnapshot{
		ID:          uuid.New(),
		AsOfDate:    snapshot.AsOfDate,
		GeneratedAt: snapshot.GeneratedAt,
		Provider:    provider,
		Status:      common.SnapshotStatusSuccess,
		RawResponse: datatypes.JSON(rawResponse),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		items := make([]entity.RecommendationItem, 0, len(snapshot.Items))
		for _, item := range snapshot.Items {
			items = append(items, entity.RecommendationItem{
				SnapshotID: record.ID,
				Rank:       item.Rank,
				Ticker:     item.Ticker,
				Name:       item.Name,
				Rationale:  datatypes.NewJSONSlice(item.Rationale[:]),
				RiskNotes:  item.RiskNotes,
				Confidence: item.Confidence,
			})
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

// PersistFailure writes one error-status row. Failures carry no uniqueness
// constraint so repeated attempts stay visible as an audit trail.
func (r *snapshotRepository) PersistFailure(ctx context.Context, asOfDate, generatedAt time.Time, provider, errText string, rawResponse json.RawMessage) (uuid.UUID, error) {
	record := entity.RecommendationSnapshot{
		ID:          uuid.New(),
		AsOfDate:    asOfDate,
		GeneratedAt: generatedAt,
		Provider:    provider,
		Status:      common.SnapshotStatusError,
		Error:       &errText,
		RawResponse: datatypes.JSON(rawResponse),
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist failure snapshot: %w", err)
	}
	return record.ID, nil
}

// FindSuccessByDate loads the success snapshot with its items ordered by
// rank, or gorm.ErrRecordNotFound.
func (r *snapshotRepository) FindSuccessByDate(ctx context.Context, asOfDate time.Time) (*entity.RecommendationSnapshot, error) {
	var record entity.RecommendationSnapshot
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("rank ASC")
		}).
		Where("as_of_date = ? AND status = ?", asOfDate.Format("2006-01-02"), common.SnapshotStatusSuccess).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
