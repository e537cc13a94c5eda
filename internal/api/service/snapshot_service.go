package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-stock-recommender/internal/api/config"
	"golang-stock-recommender/internal/api/dto"
	"golang-stock-recommender/internal/api/repository"
	"golang-stock-recommender/internal/entity"
	"golang-stock-recommender/pkg/common"
	"golang-stock-recommender/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// ErrSnapshotNotFound means no success snapshot is stored for the date.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotService serves validated snapshots with a short-TTL response cache.
type SnapshotService interface {
	GetSnapshotByDate(ctx context.Context, asOfDate time.Time) (*dto.SnapshotResponse, error)
	GetItemsByDateAndTicker(ctx context.Context, asOfDate time.Time, ticker string) ([]dto.ItemResponse, error)
}

type snapshotService struct {
	repo   repository.SnapshotReadRepository
	logger *logger.Logger
	cache  *gocache.Cache
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(cfg *config.Config, repo repository.SnapshotReadRepository, log *logger.Logger) SnapshotService {
	return &snapshotService{
		repo:   repo,
		logger: log,
		cache:  gocache.New(cfg.Cache.TTL, cfg.Cache.CleanupInterval),
	}
}

func (s *snapshotService) GetSnapshotByDate(ctx context.Context, asOfDate time.Time) (*dto.SnapshotResponse, error) {
	cacheKey := "snapshot:" + asOfDate.Format(common.DateFormat)
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(*dto.SnapshotResponse), nil
	}

	record, err := s.repo.FindSuccessByDate(ctx, asOfDate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	resp := &dto.SnapshotResponse{
		ID:          record.ID.String(),
		AsOfDate:    record.AsOfDate.Format(common.DateFormat),
		GeneratedAt: record.GeneratedAt,
		Provider:    record.Provider,
		Items:       toItemResponses(record.Items),
	}

	s.cache.Set(cacheKey, resp, gocache.DefaultExpiration)
	return resp, nil
}

func (s *snapshotService) GetItemsByDateAndTicker(ctx context.Context, asOfDate time.Time, ticker string) ([]dto.ItemResponse, error) {
	items, err := s.repo.FindItemsByDateAndTicker(ctx, asOfDate, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return toItemResponses(items), nil
}

func toItemResponses(items []entity.RecommendationItem) []dto.ItemResponse {
	out := make([]dto.ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.ItemResponse{
			Rank:       item.Rank,
			Ticker:     item.Ticker,
			Name:       item.Name,
			Rationale:  item.Rationale,
			RiskNotes:  item.RiskNotes,
			Confidence: item.Confidence,
		})
	}
	return out
}
