package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang-stock-recommender/internal/domain"
	"golang-stock-recommender/internal/worker/config"
	"golang-stock-recommender/internal/worker/repository"
	"golang-stock-recommender/pkg/common"
	"golang-stock-recommender/pkg/logger"
	redispkg "golang-stock-recommender/pkg/redis"
	"golang-stock-recommender/pkg/telegram"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RunStatus is the terminal state of one EOD run.
type RunStatus string

const (
	// RunCompleted means a new success snapshot was persisted.
	RunCompleted RunStatus = "completed"
	// RunSkippedLocked means another run holds the date lock; nothing was
	// written.
	RunSkippedLocked RunStatus = "skipped_lock"
	// RunAlreadyExists means a success snapshot already existed (or a
	// concurrent run committed first); nothing new was written.
	RunAlreadyExists RunStatus = "already_exists"
	// RunFailed means the run failed and an error row was recorded.
	RunFailed RunStatus = "failed"
)

// RunOutcome summarizes one run. Locked-out and already-satisfied runs are
// ordinary outcomes, not errors, so an external scheduler may re-trigger
// freely.
type RunOutcome struct {
	AsOfDate   time.Time
	Status     RunStatus
	SnapshotID uuid.UUID
	Error      string
}

// RunService coordinates one generation run per trading date.
type RunService interface {
	Run(ctx context.Context, asOfDate time.Time) (*RunOutcome, error)
}

// dateLock is the per-date mutual exclusion handle.
type dateLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockFactory func(key string, ttl time.Duration) dateLock

type runService struct {
	cfg          *config.Config
	logger       *logger.Logger
	newLock      lockFactory
	universeSvc  UniverseService
	aiRepo       repository.AIRepository
	snapshotRepo repository.SnapshotRepository
	notifier     telegram.Notifier
}

// NewRunService creates a new RunService.
func NewRunService(
	cfg *config.Config,
	log *logger.Logger,
	redisClient *redis.Client,
	universeSvc UniverseService,
	aiRepo repository.AIRepository,
	snapshotRepo repository.SnapshotRepository,
	notifier telegram.Notifier,
) RunService {
	return &runService{
		cfg:    cfg,
		logger: log,
		newLock: func(key string, ttl time.Duration) dateLock {
			return redispkg.NewLock(redisClient, key, ttl)
		},
		universeSvc:  universeSvc,
		aiRepo:       aiRepo,
		snapshotRepo: snapshotRepo,
		notifier:     notifier,
	}
}

// Run executes the pipeline for one date: date lock, idempotency check,
// universe, generation, persistence. The returned error is reserved for
// infrastructure faults (lock backend or store unreachable); every business
// failure is recorded as data and reported in the outcome.
func (s *runService) Run(ctx context.Context, asOfDate time.Time) (*RunOutcome, error) {
	dateStr := asOfDate.Format(common.DateFormat)

	lock := s.newLock(common.RedisKeyEODLockPrefix+dateStr, s.cfg.Run.LockTTL)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire date lock: %w", err)
	}
	if !acquired {
		s.logger.Warn("Date lock not acquired, another run in progress",
			logger.StringField("as_of_date", dateStr))
		return &RunOutcome{AsOfDate: asOfDate, Status: RunSkippedLocked}, nil
	}
	// The lock TTL covers a crashed holder; explicit release covers every
	// normal exit path.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			s.logger.Warn("Failed to release date lock", logger.ErrorField(err))
		}
	}()

	exists, err := s.snapshotRepo.SuccessExists(ctx, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing snapshot: %w", err)
	}
	if exists {
		s.logger.Info("Success snapshot already exists, skipping",
			logger.StringField("as_of_date", dateStr))
		return &RunOutcome{AsOfDate: asOfDate, Status: RunAlreadyExists}, nil
	}

	candidates, err := s.universeSvc.BuildCandidateUniverse(ctx, asOfDate)
	if err != nil {
		return s.recordFailure(ctx, asOfDate, fmt.Errorf("universe build failed: %w", err), nil), nil
	}

	input, err := domain.NewGenerationInput(asOfDate, candidates)
	if err != nil {
		return s.recordFailure(ctx, asOfDate, err, nil), nil
	}

	snapshot, rawResponse, err := s.aiRepo.GenerateRecommendations(ctx, input)
	if err != nil {
		var genErr *repository.GenerationError
		var raw json.RawMessage
		if errors.As(err, &genErr) {
			raw = genErr.RawJSON()
		}
		return s.recordFailure(ctx, asOfDate, err, raw), nil
	}

	snapshotID, err := s.snapshotRepo.PersistSuccess(ctx, snapshot, common.ProviderGemini, rawResponse)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent run committed first; their snapshot stands.
			s.logger.Info("Snapshot already persisted by a concurrent run",
				logger.StringField("as_of_date", dateStr))
			return &RunOutcome{AsOfDate: asOfDate, Status: RunAlreadyExists}, nil
		}
		return s.recordFailure(ctx, asOfDate, fmt.Errorf("persist success failed: %w", err), nil), nil
	}

	s.logger.Info("Recommendation snapshot persisted",
		logger.StringField("as_of_date", dateStr),
		logger.StringField("snapshot_id", snapshotID.String()))

	outcome := &RunOutcome{AsOfDate: asOfDate, Status: RunCompleted, SnapshotID: snapshotID}
	s.notify(outcome, topTickers(snapshot))
	return outcome, nil
}

// recordFailure writes a best-effort error row and returns a failed outcome.
// Recording must never crash the run.
func (s *runService) recordFailure(ctx context.Context, asOfDate time.Time, runErr error, raw json.RawMessage) *RunOutcome {
	s.logger.Error("Recommendation run failed",
		logger.StringField("as_of_date", asOfDate.Format(common.DateFormat)),
		logger.ErrorField(runErr))

	snapshotID, err := s.snapshotRepo.PersistFailure(ctx, asOfDate, time.Now().UTC(), common.ProviderGemini, runErr.Error(), raw)
	if err != nil {
		s.logger.Error("Failed to record failure snapshot", logger.ErrorField(err))
	}

	outcome := &RunOutcome{
		AsOfDate:   asOfDate,
		Status:     RunFailed,
		SnapshotID: snapshotID,
		Error:      runErr.Error(),
	}
	s.notify(outcome, nil)
	return outcome
}

func (s *runService) notify(outcome *RunOutcome, topPicks []string) {
	if s.notifier == nil {
		return
	}

	report := telegram.RunReport{
		AsOfDate:   outcome.AsOfDate,
		Status:     string(outcome.Status),
		Provider:   common.ProviderGemini,
		Error:      outcome.Error,
		TopTickers: topPicks,
	}
	if outcome.SnapshotID != uuid.Nil {
		report.SnapshotID = outcome.SnapshotID.String()
	}

	if err := s.notifier.SendMessage(telegram.FormatRunReport(report)); err != nil {
		s.logger.Warn("Failed to send run notification", logger.ErrorField(err))
	}
}

func topTickers(snapshot *domain.Snapshot) []string {
	items := make([]domain.Item, len(snapshot.Items))
	copy(items, snapshot.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].Rank < items[j].Rank })

	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Ticker)
	}
	return out
}
