package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang-stock-recommender/internal/worker/config"
	"golang-stock-recommender/internal/worker/dto"
	"golang-stock-recommender/pkg/common"
	"golang-stock-recommender/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// httpDataProviderRepository fetches daily features over HTTP JSON. Provider
// access tokens are cached in-process first, then in Redis so concurrent
// workers share one token instead of re-issuing per run.
type httpDataProviderRepository struct {
	client      *http.Client
	cfg         *config.Config
	logger      *logger.Logger
	redisClient *redis.Client

	mu          sync.Mutex
	cachedToken *dto.AccessToken
}

// NewHTTPDataProviderRepository creates a new DataProviderRepository.
func NewHTTPDataProviderRepository(cfg *config.Config, log *logger.Logger, redisClient *redis.Client) (DataProviderRepository, error) {
	if cfg.DataProvider.BaseURL == "" {
		return nil, fmt.Errorf("data provider base_url is required")
	}

	return &httpDataProviderRepository{
		client: &http.Client{
			Timeout: cfg.DataProvider.Timeout,
		},
		cfg:         cfg,
		logger:      log,
		redisClient: redisClient,
	}, nil
}

func (r *httpDataProviderRepository) ProviderName() string {
	return "http_json"
}

// FetchDailyFeatures fetches the feature rows for one date with bounded
// transport retries.
func (r *httpDataProviderRepository) FetchDailyFeatures(ctx context.Context, asOfDate time.Time) (*dto.DailyFeaturesResponse, json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.DataProvider.MaxRetries; attempt++ {
		if attempt > 1 {
			backoff := transportBackoffBase * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, raw, retryable, err := r.fetchOnce(ctx, asOfDate)
		if err == nil {
			return resp, raw, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		r.logger.Warn("Data provider request failed, retrying",
			logger.IntField("attempt", attempt),
			logger.ErrorField(err))
	}
	return nil, nil, fmt.Errorf("data provider fetch failed: %w", lastErr)
}

func (r *httpDataProviderRepository) fetchOnce(ctx context.Context, asOfDate time.Time) (*dto.DailyFeaturesResponse, json.RawMessage, bool, error) {
	token, err := r.accessToken(ctx)
	if err != nil {
		return nil, nil, true, err
	}

	endpoint := r.endpointURL(r.cfg.DataProvider.FeaturesPath)
	endpoint += "?" + url.Values{"as_of_date": {asOfDate.Format("2006-01-02")}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if r.cfg.DataProvider.APIKey != "" {
		req.Header.Set("x-api-key", r.cfg.DataProvider.APIKey)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Token may have been revoked upstream; drop caches so the retry
		// issues a fresh one.
		r.invalidateToken(ctx)
		return nil, nil, true, fmt.Errorf("provider rejected token: %d - %s", resp.StatusCode, string(body))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, nil, true, fmt.Errorf("provider HTTP %d: %s", resp.StatusCode, string(body))
	default:
		return nil, nil, false, fmt.Errorf("provider HTTP %d: %s", resp.StatusCode, string(body))
	}

	var features dto.DailyFeaturesResponse
	if err := json.Unmarshal(body, &features); err != nil {
		return nil, nil, false, fmt.Errorf("failed to decode provider response: %w", err)
	}
	return &features, json.RawMessage(body), false, nil
}

// accessToken returns a usable token: in-process cache first, then the
// shared Redis cache, then a fresh issuance written back best-effort.
func (r *httpDataProviderRepository) accessToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	margin := r.cfg.DataProvider.TokenStaleAfter

	if r.cachedToken != nil && !r.cachedToken.Stale(now, margin) {
		return r.cachedToken.Token, nil
	}

	if token := r.loadTokenFromRedis(ctx); token != nil && !token.Stale(now, margin) {
		r.cachedToken = token
		return token.Token, nil
	}

	token, err := r.issueToken(ctx)
	if err != nil {
		return "", err
	}
	r.cachedToken = token
	r.saveTokenToRedis(ctx, token)
	return token.Token, nil
}

func (r *httpDataProviderRepository) tokenCacheKey() string {
	return common.RedisKeyProviderTokenPrefix + r.cfg.DataProvider.TokenCacheKey
}

func (r *httpDataProviderRepository) loadTokenFromRedis(ctx context.Context) *dto.AccessToken {
	if r.redisClient == nil {
		return nil
	}
	data, err := r.redisClient.Get(ctx, r.tokenCacheKey()).Bytes()
	if err != nil {
		return nil
	}
	var token dto.AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil
	}
	return &token
}

// saveTokenToRedis is best-effort: ingestion never fails because the token
// could not be shared.
func (r *httpDataProviderRepository) saveTokenToRedis(ctx context.Context, token *dto.AccessToken) {
	if r.redisClient == nil {
		return
	}
	data, err := json.Marshal(token)
	if err != nil {
		return
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := r.redisClient.Set(ctx, r.tokenCacheKey(), data, ttl).Err(); err != nil {
		r.logger.Warn("Failed to persist provider token to redis", logger.ErrorField(err))
	}
}

func (r *httpDataProviderRepository) invalidateToken(ctx context.Context) {
	r.mu.Lock()
	r.cachedToken = nil
	r.mu.Unlock()
	if r.redisClient != nil {
		_ = r.redisClient.Del(ctx, r.tokenCacheKey()).Err()
	}
}

func (r *httpDataProviderRepository) issueToken(ctx context.Context) (*dto.AccessToken, error) {
	endpoint := r.endpointURL(r.cfg.DataProvider.TokenPath)

	payload, err := json.Marshal(map[string]string{"api_key": r.cfg.DataProvider.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token HTTP %d: %s", resp.StatusCode, string(body))
	}

	var issued struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &issued); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if issued.AccessToken == "" {
		return nil, fmt.Errorf("token response carries no access_token")
	}

	return &dto.AccessToken{
		Token:     issued.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(issued.ExpiresIn) * time.Second),
	}, nil
}

func (r *httpDataProviderRepository) endpointURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(r.cfg.DataProvider.BaseURL, "/") + path
}
