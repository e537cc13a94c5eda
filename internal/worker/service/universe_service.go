package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang-stock-recommender/internal/domain"
	"golang-stock-recommender/internal/worker/config"
	"golang-stock-recommender/internal/worker/repository"
	"golang-stock-recommender/pkg/logger"
)

// ErrInsufficientCandidates means the feature store cannot satisfy the
// configured universe size for the date. Fatal to the run, never retried.
var ErrInsufficientCandidates = errors.New("insufficient candidates")

// UniverseService selects and scores the candidate universe for a date.
type UniverseService interface {
	BuildCandidateUniverse(ctx context.Context, asOfDate time.Time) ([]domain.Candidate, error)
}

type universeService struct {
	cfg          *config.Config
	logger       *logger.Logger
	featuresRepo repository.StockFeaturesRepository
}

// NewUniverseService creates a new UniverseService.
func NewUniverseService(cfg *config.Config, log *logger.Logger, featuresRepo repository.StockFeaturesRepository) UniverseService {
	return &universeService{
		cfg:          cfg,
		logger:       log,
		featuresRepo: featuresRepo,
	}
}

// BuildCandidateUniverse prefilters by trading value, drops fund/ETF-style
// names, scores the remainder and returns exactly the configured size. The
// two-stage prefilter-then-score keeps the query bounded while ranking on a
// richer signal than liquidity alone.
func (s *universeService) BuildCandidateUniverse(ctx context.Context, asOfDate time.Time) ([]domain.Candidate, error) {
	opts := s.cfg.Universe
	if opts.Size < domain.MinUniverseSize || opts.Size > domain.MaxUniverseSize {
		return nil, fmt.Errorf("universe size must be within [%d, %d] (got %d)",
			domain.MinUniverseSize, domain.MaxUniverseSize, opts.Size)
	}

	limit := opts.Size * opts.OversampleFactor
	rows, err := s.featuresRepo.FindTopByTradingValue(ctx, asOfDate, limit, opts.MinTradingValue)
	if err != nil {
		return nil, err
	}

	type scored struct {
		candidate domain.Candidate
		score     float64
	}

	excluded := 0
	pool := make([]scored, 0, len(rows))
	for _, row := range rows {
		if s.isExcludedName(row.Name) {
			excluded++
			continue
		}

		features := map[string]float64{}
		if len(row.Features) > 0 {
			if err := json.Unmarshal(row.Features, &features); err != nil {
				s.logger.Warn("Skipping row with malformed features",
					logger.StringField("ticker", row.Ticker),
					logger.ErrorField(err))
				continue
			}
		}

		tradingValue := 0.0
		if row.TradingValue != nil {
			tradingValue = *row.TradingValue
		}
		score := tradingValue/opts.TradingValueDivisor + features["ret_1d"]*opts.Ret1DWeight

		pool = append(pool, scored{
			candidate: domain.Candidate{
				Ticker:   row.Ticker,
				Name:     row.Name,
				Features: features,
			},
			score: score,
		})
	}

	if len(pool) < opts.Size {
		return nil, fmt.Errorf("%w: need %d, have %d eligible for %s",
			ErrInsufficientCandidates, opts.Size, len(pool), asOfDate.Format("2006-01-02"))
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return pool[i].candidate.Ticker < pool[j].candidate.Ticker
	})

	candidates := make([]domain.Candidate, 0, opts.Size)
	for _, sc := range pool[:opts.Size] {
		candidates = append(candidates, sc.candidate)
	}

	s.logger.Info("Candidate universe built",
		logger.StringField("as_of_date", asOfDate.Format("2006-01-02")),
		logger.IntField("fetched", len(rows)),
		logger.IntField("excluded", excluded),
		logger.IntField("selected", len(candidates)))

	return candidates, nil
}

// isExcludedName applies the fund/ETF naming-token heuristic.
func (s *universeService) isExcludedName(name string) bool {
	upper := strings.ToUpper(name)
	for _, token := range s.cfg.Universe.ExcludeNameTokens {
		if strings.Contains(upper, strings.ToUpper(token)) {
			return true
		}
	}
	return false
}
