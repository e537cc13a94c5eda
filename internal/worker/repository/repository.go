package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-recommender/internal/domain"
	"golang-stock-recommender/internal/entity"
	"golang-stock-recommender/internal/worker/dto"

	"github.com/google/uuid"
)

// AIRepository generates one validated recommendation snapshot per call.
// The raw provider response is returned alongside for auditing; no state
// persists across calls.
type AIRepository interface {
	GenerateRecommendations(ctx context.Context, input *domain.GenerationInput) (*domain.Snapshot, json.RawMessage, error)
}

// StockFeaturesRepository is the queryable feature store.
type StockFeaturesRepository interface {
	// FindTopByTradingValue returns up to limit rows for the date, ordered by
	// trading value descending with ticker ascending tie-break.
	FindTopByTradingValue(ctx context.Context, asOfDate time.Time, limit int, minTradingValue float64) ([]entity.StockFeatureDaily, error)
	// UpsertBatch transactionally replaces feature rows for (date, ticker)
	// pairs and reports the number of affected rows.
	UpsertBatch(ctx context.Context, asOfDate time.Time, items []dto.DailyFeatureItem) (int64, error)
}

// SnapshotRepository persists generation outcomes.
type SnapshotRepository interface {
	SuccessExists(ctx context.Context, asOfDate time.Time) (bool, error)
	// PersistSuccess writes the snapshot row and its items in one
	// transaction. A second success for the same date fails with
	// gorm.ErrDuplicatedKey.
	PersistSuccess(ctx context.Context, snapshot *domain.Snapshot, provider string, rawResponse json.RawMessage) (uuid.UUID, error)
	// PersistFailure writes one error-status audit row; never conflicts.
	PersistFailure(ctx context.Context, asOfDate, generatedAt time.Time, provider, errText string, rawResponse json.RawMessage) (uuid.UUID, error)
	FindSuccessByDate(ctx context.Context, asOfDate time.Time) (*entity.RecommendationSnapshot, error)
}

// FeatureIngestRunRepository records ingestion attempts.
type FeatureIngestRunRepository interface {
	Create(ctx context.Context, run *entity.FeatureIngestRun) error
}

// DataProviderRepository fetches daily features from the external provider.
type DataProviderRepository interface {
	ProviderName() string
	FetchDailyFeatures(ctx context.Context, asOfDate time.Time) (*dto.DailyFeaturesResponse, json.RawMessage, error)
}

// Generation stages reported by GenerationError.
const (
	StageRequest          = "request"
	StageTruncated        = "truncated"
	StageParseAfterRepair = "parse_after_repair"
)

// GenerationError is a diagnostic failure from the generation client. It
// carries the last raw output so failed attempts are auditable instead of
// silently discarded.
type GenerationError struct {
	Provider    string
	Stage       string
	Detail      string
	RawOutput   string
	RawResponse json.RawMessage
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error (provider=%s, stage=%s): %s", e.Provider, e.Stage, e.Detail)
}

// RawJSON returns the best available raw payload for persistence: the full
// provider response when kept, else the raw output wrapped as JSON.
func (e *GenerationError) RawJSON() json.RawMessage {
	if len(e.RawResponse) > 0 {
		return e.RawResponse
	}
	if e.RawOutput == "" {
		return nil
	}
	if json.Valid([]byte(e.RawOutput)) {
		return json.RawMessage(e.RawOutput)
	}
	wrapped, err := json.Marshal(map[string]string{"raw_text": e.RawOutput})
	if err != nil {
		return nil
	}
	return wrapped
}
