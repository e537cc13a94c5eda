package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang-stock-recommender/internal/domain"
	"golang-stock-recommender/internal/entity"
	"golang-stock-recommender/internal/worker/config"
	"golang-stock-recommender/internal/worker/repository"
	"golang-stock-recommender/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeLock struct {
	acquired   bool
	acquireErr error
	released   bool
}

func (f *fakeLock) TryAcquire(ctx context.Context) (bool, error) {
	return f.acquired, f.acquireErr
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released = true
	return nil
}

type fakeUniverse struct {
	candidates []domain.Candidate
	err        error
	calls      int
}

func (f *fakeUniverse) BuildCandidateUniverse(ctx context.Context, asOfDate time.Time) ([]domain.Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

type fakeAIRepo struct {
	snapshot *domain.Snapshot
	raw      json.RawMessage
	err      error
	calls    int
}

func (f *fakeAIRepo) GenerateRecommendations(ctx context.Context, input *domain.GenerationInput) (*domain.Snapshot, json.RawMessage, error) {
	f.calls++
	return f.snapshot, f.raw, f.err
}

type fakeSnapshotRepo struct {
	exists        bool
	existsErr     error
	persistErr    error
	successCalls  int
	failureCalls  int
	lastErrText   string
	lastRawStored json.RawMessage
}

func (f *fakeSnapshotRepo) SuccessExists(ctx context.Context, asOfDate time.Time) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeSnapshotRepo) PersistSuccess(ctx context.Context, snapshot *domain.Snapshot, provider string, rawResponse json.RawMessage) (uuid.UUID, error) {
	f.successCalls++
	if f.persistErr != nil {
		return uuid.Nil, f.persistErr
	}
	return uuid.New(), nil
}

func (f *fakeSnapshotRepo) PersistFailure(ctx context.Context, asOfDate, generatedAt time.Time, provider, errText string, rawResponse json.RawMessage) (uuid.UUID, error) {
	f.failureCalls++
	f.lastErrText = errText
	f.lastRawStored = rawResponse
	return uuid.New(), nil
}

func (f *fakeSnapshotRepo) FindSuccessByDate(ctx context.Context, asOfDate time.Time) (*entity.RecommendationSnapshot, error) {
	return nil, gorm.ErrRecordNotFound
}

func testSnapshot(asOfDate time.Time) *domain.Snapshot {
	items := make([]domain.Item, domain.SnapshotItemCount)
	for i := range items {
		items[i] = domain.Item{
			Rank:      i + 1,
			Ticker:    fmt.Sprintf("%06d", i+1),
			Name:      fmt.Sprintf("Company %d", i+1),
			Rationale: [3]string{"a", "b", "c"},
		}
	}
	return &domain.Snapshot{
		AsOfDate:    asOfDate,
		GeneratedAt: time.Now().UTC(),
		Items:       items,
	}
}

func testCandidates() []domain.Candidate {
	candidates := make([]domain.Candidate, domain.MinUniverseSize)
	for i := range candidates {
		candidates[i] = domain.Candidate{
			Ticker: fmt.Sprintf("%06d", i+1),
			Name:   fmt.Sprintf("Company %d", i+1),
		}
	}
	return candidates
}

func newTestRunService(t *testing.T, lock *fakeLock, universe *fakeUniverse, ai *fakeAIRepo, snapshots *fakeSnapshotRepo) *runService {
	t.Helper()

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Run.LockTTL = time.Minute

	return &runService{
		cfg:    cfg,
		logger: log,
		newLock: func(key string, ttl time.Duration) dateLock {
			return lock
		},
		universeSvc:  universe,
		aiRepo:       ai,
		snapshotRepo: snapshots,
	}
}

func TestRun_CompletesAndReleasesLock(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	lock := &fakeLock{acquired: true}
	snapshots := &fakeSnapshotRepo{}
	svc := newTestRunService(t, lock,
		&fakeUniverse{candidates: testCandidates()},
		&fakeAIRepo{snapshot: testSnapshot(asOfDate), raw: json.RawMessage(`{}`)},
		snapshots,
	)

	outcome, err := svc.Run(context.Background(), asOfDate)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, outcome.Status)
	assert.NotEqual(t, uuid.Nil, outcome.SnapshotID)
	assert.Equal(t, 1, snapshots.successCalls)
	assert.Zero(t, snapshots.failureCalls)
	assert.True(t, lock.released)
}

func TestRun_LockDeniedIsBenign(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	universe := &fakeUniverse{candidates: testCandidates()}
	ai := &fakeAIRepo{}
	svc := newTestRunService(t, &fakeLock{acquired: false}, universe, ai, &fakeSnapshotRepo{})

	outcome, err := svc.Run(context.Background(), asOfDate)
	require.NoError(t, err)
	assert.Equal(t, RunSkippedLocked, outcome.Status)
	assert.Zero(t, universe.calls)
	assert.Zero(t, ai.calls)
}

func TestRun_LockBackendFailureIsInfra(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	lock := &fakeLock{acquireErr: errors.New("redis unreachable")}
	snapshots := &fakeSnapshotRepo{}
	svc := newTestRunService(t, lock, &fakeUniverse{}, &fakeAIRepo{}, snapshots)

	_, err := svc.Run(context.Background(), asOfDate)
	require.Error(t, err)
	assert.Zero(t, snapshots.failureCalls)
}

func TestRun_ExistingSnapshotSkipsGeneration(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	lock := &fakeLock{acquired: true}
	ai := &fakeAIRepo{}
	svc := newTestRunService(t, lock, &fakeUniverse{}, ai, &fakeSnapshotRepo{exists: true})

	outcome, err := svc.Run(context.Background(), asOfDate)
	require.NoError(t, err)
	assert.Equal(t, RunAlreadyExists, outcome.Status)
	assert.Zero(t, ai.calls)
	assert.True(t, lock.released)
}

func TestRun_InsufficientUniverseRecordsFailure(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	ai := &fakeAIRepo{}
	snapshots := &fakeSnapshotRepo{}
	svc := newTestRunService(t, &fakeLock{acquired: true},
		&fakeUniverse{err: ErrInsufficientCandidates}, ai, snapshots)

	outcome, err := svc.Run(context.Background(), asOfDate)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "insufficient candidates")
	assert.Zero(t, ai.calls)
	assert.Equal(t, 1, snapshots.failureCalls)
}

func TestRun_GenerationErrorRecordsRawResponse(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	genErr := &repository.GenerationError{
		Provider:  "gemini",
		Stage:     repository.StageParseAfterRepair,
		Detail:    "invalid snapshot (item_count) items: expected 20 items",
		RawOutput: "not json",
	}
	snapshots := &fakeSnapshotRepo{}
	svc := newTestRunService(t, &fakeLock{acquired: true},
		&fakeUniverse{candidates: testCandidates()},
		&fakeAIRepo{err: genErr},
		snapshots,
	)

	outcome, err := svc.Run(context.Background(), asOfDate)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, outcome.Status)
	assert.Equal(t, 1, snapshots.failureCalls)
	assert.JSONEq(t, `{"raw_text":"not json"}`, string(snapshots.lastRawStored))
	assert.Contains(t, snapshots.lastErrText, "parse_after_repair")
}

func TestRun_ConcurrentDuplicateIsBenign(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	snapshots := &fakeSnapshotRepo{persistErr: gorm.ErrDuplicatedKey}
	svc := newTestRunService(t, &fakeLock{acquired: true},
		&fakeUniverse{candidates: testCandidates()},
		&fakeAIRepo{snapshot: testSnapshot(asOfDate), raw: json.RawMessage(`{}`)},
		snapshots,
	)

	outcome, err := svc.Run(context.Background(), asOfDate)
	require.NoError(t, err)
	assert.Equal(t, RunAlreadyExists, outcome.Status)
	assert.Zero(t, snapshots.failureCalls)
}

func TestRun_PersistFailureRecordsErrorRow(t *testing.T) {
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	snapshots := &fakeSnapshotRepo{persistErr: errors.New("connection reset")}
	svc := newTestRunService(t, &fakeLock{acquired: true},
		&fakeUniverse{candidates: testCandidates()},
		&fakeAIRepo{snapshot: testSnapshot(asOfDate), raw: json.RawMessage(`{}`)},
		snapshots,
	)

	outcome, err := svc.Run(context.Background(), asOfDate)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, outcome.Status)
	assert.Equal(t, 1, snapshots.failureCalls)
	assert.Contains(t, outcome.Error, "connection reset")
}

func TestTopTickers_OrderedByRank(t *testing.T) {
	snapshot := &domain.Snapshot{Items: []domain.Item{
		{Rank: 3, Ticker: "CCC"},
		{Rank: 1, Ticker: "AAA"},
		{Rank: 2, Ticker: "BBB"},
	}}
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, topTickers(snapshot))
}
