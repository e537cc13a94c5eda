package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-stock-recommender/internal/entity"
	"golang-stock-recommender/internal/worker/dto"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertChunkSize bounds one multi-row upsert statement.
const upsertChunkSize = 200

type stockFeaturesRepository struct {
	db *gorm.DB
}

// NewStockFeaturesRepository creates a new StockFeaturesRepository.
func NewStockFeaturesRepository(db *gorm.DB) StockFeaturesRepository {
	return &stockFeaturesRepository{db: db}
}

// FindTopByTradingValue returns up to limit feature rows for the date,
// ordered by trading value descending with ticker ascending as tie-break.
func (r *stockFeaturesRepository) FindTopByTradingValue(ctx context.Context, asOfDate time.Time, limit int, minTradingValue float64) ([]entity.StockFeatureDaily, error) {
	var rows []entity.StockFeatureDaily

	query := r.db.WithContext(ctx).
		Where("as_of_date = ?", asOfDate.Format("2006-01-02")).
		Order("trading_value DESC NULLS LAST, ticker ASC").
		Limit(limit)
	if minTradingValue > 0 {
		query = query.Where("trading_value >= ?", minTradingValue)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query stock features: %w", err)
	}
	return rows, nil
}

// UpsertBatch replaces feature rows for the date in chunked statements inside
// one transaction, so a partial ingest is never observable.
func (r *stockFeaturesRepository) UpsertBatch(ctx context.Context, asOfDate time.Time, items []dto.DailyFeatureItem) (int64, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("items must be non-empty")
	}

	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(items); start += upsertChunkSize {
			end := start + upsertChunkSize
			if end > len(items) {
				end = len(items)
			}

			rows := make([]entity.StockFeatureDaily, 0, end-start)
			for _, item := range items[start:end] {
				features, err := json.Marshal(item.Features)
				if err != nil {
					return fmt.Errorf("failed to marshal features for %s: %w", item.Ticker, err)
				}
				rows = append(rows, entity.StockFeatureDaily{
					AsOfDate:     asOfDate,
					Ticker:       strings.TrimSpace(item.Ticker),
					Name:         strings.TrimSpace(item.Name),
					TradingValue: item.TradingValue,
					Features:     features,
				})
			}

			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "as_of_date"}, {Name: "ticker"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "trading_value", "features", "updated_at"}),
			}).Create(&rows)
			if res.Error != nil {
				return fmt.Errorf("failed to upsert stock features batch: %w", res.Error)
			}
			affected += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
