package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang-stock-recommender/internal/entity"
	"golang-stock-recommender/internal/worker/dto"
	"golang-stock-recommender/internal/worker/repository"
	"golang-stock-recommender/pkg/common"
	"golang-stock-recommender/pkg/logger"

	"gorm.io/datatypes"
)

// IngestService loads daily features into the store, from the external
// provider or as deterministic stub rows for local runs.
type IngestService interface {
	IngestDaily(ctx context.Context, asOfDate time.Time) (int64, error)
	SeedStub(ctx context.Context, asOfDate time.Time, size int) (int64, error)
}

type ingestService struct {
	logger        *logger.Logger
	providerRepo  repository.DataProviderRepository
	featuresRepo  repository.StockFeaturesRepository
	ingestRunRepo repository.FeatureIngestRunRepository
}

// NewIngestService creates a new IngestService.
func NewIngestService(
	log *logger.Logger,
	providerRepo repository.DataProviderRepository,
	featuresRepo repository.StockFeaturesRepository,
	ingestRunRepo repository.FeatureIngestRunRepository,
) IngestService {
	return &ingestService{
		logger:        log,
		providerRepo:  providerRepo,
		featuresRepo:  featuresRepo,
		ingestRunRepo: ingestRunRepo,
	}
}

// IngestDaily fetches provider features for the date and upserts them
// atomically. Every attempt, success or failure, leaves an audit row.
func (s *ingestService) IngestDaily(ctx context.Context, asOfDate time.Time) (int64, error) {
	if s.providerRepo == nil {
		return 0, errors.New("no data provider configured")
	}
	providerName := s.providerRepo.ProviderName()

	features, raw, err := s.providerRepo.FetchDailyFeatures(ctx, asOfDate)
	if err != nil {
		errText := err.Error()
		s.recordRun(ctx, &entity.FeatureIngestRun{
			AsOfDate:    asOfDate,
			GeneratedAt: time.Now().UTC(),
			Provider:    providerName,
			Status:      common.IngestStatusError,
			Error:       &errText,
		})
		return 0, err
	}

	affected, err := s.featuresRepo.UpsertBatch(ctx, asOfDate, features.Items)
	if err != nil {
		errText := err.Error()
		s.recordRun(ctx, &entity.FeatureIngestRun{
			AsOfDate:    asOfDate,
			GeneratedAt: time.Now().UTC(),
			Provider:    providerName,
			Status:      common.IngestStatusError,
			Error:       &errText,
		})
		return 0, err
	}

	s.recordRun(ctx, &entity.FeatureIngestRun{
		AsOfDate:    asOfDate,
		GeneratedAt: time.Now().UTC(),
		Provider:    providerName,
		Status:      common.IngestStatusSuccess,
		RawResponse: datatypes.JSON(raw),
	})

	s.logger.Info("External ingest complete",
		logger.StringField("as_of_date", asOfDate.Format(common.DateFormat)),
		logger.IntField("items", len(features.Items)),
		logger.Field("affected", affected))

	return affected, nil
}

// SeedStub writes deterministic feature rows so the pipeline runs without
// the external provider.
func (s *ingestService) SeedStub(ctx context.Context, asOfDate time.Time, size int) (int64, error) {
	if size < 1 || size > 5000 {
		return 0, fmt.Errorf("seed size must be within [1, 5000] (got %d)", size)
	}

	base := float64(asOfDate.Unix()/86400) // stable per-date offset
	items := make([]dto.DailyFeatureItem, 0, size)
	for i := 1; i <= size; i++ {
		tradingValue := float64(size-i+1) * 1.0e8
		items = append(items, dto.DailyFeatureItem{
			Ticker:       fmt.Sprintf("KRX:%06d", i),
			Name:         fmt.Sprintf("Stub %06d", i),
			TradingValue: &tradingValue,
			Features: map[string]float64{
				"ret_1d":      (math.Mod(float64(i), 200) - 100) / 1000,
				"mom_5d":      (base + float64(i)) / 1000,
				"vol_20d":     math.Mod(float64(i), 50) / 100,
				"value_score": float64(size-i+1) / float64(size),
			},
		})
	}

	return s.featuresRepo.UpsertBatch(ctx, asOfDate, items)
}

// recordRun is best-effort: a failed audit write never masks the primary
// outcome.
func (s *ingestService) recordRun(ctx context.Context, run *entity.FeatureIngestRun) {
	if err := s.ingestRunRepo.Create(ctx, run); err != nil {
		s.logger.Error("Failed to record ingest run", logger.ErrorField(err))
	}
}
