package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang-stock-recommender/internal/worker/config"
	"golang-stock-recommender/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerServer struct {
	mu            sync.Mutex
	tokenIssued   int
	fetchCalls    int
	rejectFirstN  int
	failFetchWith int
	server        *httptest.Server
}

func newProviderServer(t *testing.T) *providerServer {
	t.Helper()

	ps := &providerServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.tokenIssued++
		ps.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v1/stock_features_daily", func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.fetchCalls++
		call := ps.fetchCalls
		reject := call <= ps.rejectFirstN
		failWith := ps.failFetchWith
		ps.mu.Unlock()

		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if failWith != 0 {
			w.WriteHeader(failWith)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"as_of_date": r.URL.Query().Get("as_of_date"),
			"items": []map[string]any{
				{"ticker": "000001", "name": "Company", "trading_value": 1e9, "features": map[string]float64{"ret_1d": 0.01}},
			},
		})
	})

	ps.server = httptest.NewServer(mux)
	t.Cleanup(ps.server.Close)
	return ps
}

func newTestProviderRepo(t *testing.T, baseURL string) *httpDataProviderRepository {
	t.Helper()

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.DataProvider.BaseURL = baseURL
	cfg.DataProvider.APIKey = "test-key"
	cfg.DataProvider.FeaturesPath = "/v1/stock_features_daily"
	cfg.DataProvider.TokenPath = "/oauth2/token"
	cfg.DataProvider.Timeout = 5 * time.Second
	cfg.DataProvider.MaxRetries = 3
	cfg.DataProvider.TokenCacheKey = "test"
	cfg.DataProvider.TokenStaleAfter = time.Minute

	repo, err := NewHTTPDataProviderRepository(cfg, log, nil)
	require.NoError(t, err)
	return repo.(*httpDataProviderRepository)
}

func TestFetchDailyFeatures_IssuesTokenOnceAndReuses(t *testing.T) {
	ps := newProviderServer(t)
	repo := newTestProviderRepo(t, ps.server.URL)
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		resp, raw, err := repo.FetchDailyFeatures(context.Background(), asOfDate)
		require.NoError(t, err)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "2026-02-03", resp.AsOfDate)
		assert.NotEmpty(t, raw)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	assert.Equal(t, 1, ps.tokenIssued)
	assert.Equal(t, 3, ps.fetchCalls)
}

func TestFetchDailyFeatures_RejectedTokenIsReissued(t *testing.T) {
	ps := newProviderServer(t)
	ps.rejectFirstN = 1
	repo := newTestProviderRepo(t, ps.server.URL)
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	resp, _, err := repo.FetchDailyFeatures(context.Background(), asOfDate)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	assert.Equal(t, 2, ps.tokenIssued)
}

func TestFetchDailyFeatures_ServerErrorExhaustsRetries(t *testing.T) {
	ps := newProviderServer(t)
	ps.failFetchWith = http.StatusInternalServerError
	repo := newTestProviderRepo(t, ps.server.URL)
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	_, _, err := repo.FetchDailyFeatures(context.Background(), asOfDate)
	require.Error(t, err)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	assert.Equal(t, 3, ps.fetchCalls)
}

func TestFetchDailyFeatures_NotFoundIsNotRetried(t *testing.T) {
	ps := newProviderServer(t)
	ps.failFetchWith = http.StatusNotFound
	repo := newTestProviderRepo(t, ps.server.URL)
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	_, _, err := repo.FetchDailyFeatures(context.Background(), asOfDate)
	require.Error(t, err)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	assert.Equal(t, 1, ps.fetchCalls)
}

func TestNewHTTPDataProviderRepository_RequiresBaseURL(t *testing.T) {
	log, err := logger.New("error", "console")
	require.NoError(t, err)

	_, err = NewHTTPDataProviderRepository(&config.Config{}, log, nil)
	assert.Error(t, err)
}
