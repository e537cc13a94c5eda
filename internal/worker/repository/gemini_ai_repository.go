package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-stock-recommender/internal/domain"
	"golang-stock-recommender/internal/worker/config"
	"golang-stock-recommender/internal/worker/dto"
	"golang-stock-recommender/pkg/common"
	"golang-stock-recommender/pkg/logger"
	"golang-stock-recommender/pkg/ratelimit"
	"golang-stock-recommender/pkg/utils"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// maxRepairAttempts bounds the output-shape repair loop. Repairs are
	// logically distinct from transport retries.
	maxRepairAttempts = 2

	// minRetryOutputTokens is the floor of the doubled output bound used for
	// the single truncation retry.
	minRetryOutputTokens = 4096

	transportBackoffBase = 500 * time.Millisecond
)

// geminiAIRepository is an AIRepository backed by the Google Gemini API.
type geminiAIRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

// NewGeminiAIRepository creates a new instance of geminiAIRepository.
func NewGeminiAIRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (AIRepository, error) {
	requestLimiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Gemini.MaxRequestPerMinute > 0 {
		secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
		requestLimiter = rate.NewLimiter(rate.Every(secondsPerRequest), 1)
	}

	return &geminiAIRepository{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		cfg:            cfg,
		logger:         log,
		tokenLimiter:   ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute),
		requestLimiter: requestLimiter,
		genAiClient:    genAiClient,
	}, nil
}

// GenerateRecommendations runs one schema-constrained generation: a single
// truncation retry with a doubled output bound, then a bounded repair loop on
// output that fails the snapshot contract.
func (r *geminiAIRepository) GenerateRecommendations(ctx context.Context, input *domain.GenerationInput) (*domain.Snapshot, json.RawMessage, error) {
	prompt, err := BuildGeneratePrompt(input)
	if err != nil {
		return nil, nil, err
	}

	maxTokens := r.cfg.Gemini.MaxOutputTokens
	resp, rawResp, err := r.executeGeminiAIRequest(ctx, prompt, maxTokens)
	if err != nil {
		return nil, nil, &GenerationError{
			Provider: common.ProviderGemini,
			Stage:    StageRequest,
			Detail:   err.Error(),
		}
	}

	if resp.Truncated() {
		maxTokens = 2 * maxTokens
		if maxTokens < minRetryOutputTokens {
			maxTokens = minRetryOutputTokens
		}
		r.logger.Warn("Gemini output truncated, retrying with larger bound",
			logger.IntField("max_output_tokens", maxTokens))

		resp, rawResp, err = r.executeGeminiAIRequest(ctx, prompt, maxTokens)
		if err != nil {
			return nil, nil, &GenerationError{
				Provider: common.ProviderGemini,
				Stage:    StageRequest,
				Detail:   err.Error(),
			}
		}
		if resp.Truncated() {
			return nil, nil, &GenerationError{
				Provider:    common.ProviderGemini,
				Stage:       StageTruncated,
				Detail:      fmt.Sprintf("output still truncated at %d tokens after retry", maxTokens),
				RawResponse: rawResp,
			}
		}
	}

	var lastErr error
	var lastOutput string
	for attempt := 0; attempt <= maxRepairAttempts; attempt++ {
		if attempt > 0 {
			r.logger.Warn("Snapshot output invalid, requesting repair",
				logger.IntField("attempt", attempt),
				logger.ErrorField(lastErr))

			repairPrompt := BuildRepairPrompt(input.AsOfDate, lastErr, lastOutput)
			resp, rawResp, err = r.executeGeminiAIRequest(ctx, repairPrompt, maxTokens)
			if err != nil {
				return nil, nil, &GenerationError{
					Provider: common.ProviderGemini,
					Stage:    StageRequest,
					Detail:   fmt.Sprintf("repair attempt %d failed: %s", attempt, err),
				}
			}
		}

		output, extractErr := dto.ExtractOutput(resp)
		if extractErr != nil {
			lastErr = extractErr
			lastOutput = ""
			continue
		}

		snapshot, parseErr := parseSnapshot(output, input.AsOfDate)
		if parseErr == nil {
			return snapshot, rawResp, nil
		}
		lastErr = parseErr
		lastOutput = output
	}

	return nil, nil, &GenerationError{
		Provider:    common.ProviderGemini,
		Stage:       StageParseAfterRepair,
		Detail:      lastErr.Error(),
		RawOutput:   lastOutput,
		RawResponse: rawResp,
	}
}

// parseSnapshot extracts a JSON document from model output, decodes it and
// validates the snapshot contract against the expected date.
func parseSnapshot(output string, expectedDate time.Time) (*domain.Snapshot, error) {
	jsonStr := utils.ExtractJSON(output)
	if jsonStr == "" {
		jsonStr = output
	}

	var payload domain.SnapshotPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("output is not valid snapshot JSON: %w", err)
	}
	return payload.Validate(expectedDate)
}

// executeGeminiAIRequest performs one generateContent call with bounded
// transport retries (network errors, 429 and 5xx) and exponential backoff.
func (r *geminiAIRepository) executeGeminiAIRequest(ctx context.Context, prompt string, maxOutputTokens int) (*dto.GeminiAPIResponse, json.RawMessage, error) {
	if err := r.waitForLimits(ctx, prompt); err != nil {
		return nil, nil, err
	}

	temperature := r.cfg.Gemini.Temperature
	payload := dto.GeminiAPIRequest{
		SystemInstruction: &dto.Content{Parts: []dto.Part{{Text: BuildSystemInstruction()}}},
		Contents:          []dto.Content{{Role: "user", Parts: []dto.Part{{Text: prompt}}}},
		GenerationConfig: &dto.GenerationConfig{
			Temperature:      &temperature,
			MaxOutputTokens:  maxOutputTokens,
			ResponseMimeType: "application/json",
			ResponseSchema:   SnapshotResponseSchema(),
		},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s:generateContent?key=%s", r.cfg.Gemini.BaseURL, r.cfg.Gemini.Model, r.cfg.Gemini.APIKey)

	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := transportBackoffBase * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retryable, err := r.doRequest(ctx, apiURL, jsonPayload)
		if err == nil {
			var geminiResp dto.GeminiAPIResponse
			if err := json.Unmarshal(body, &geminiResp); err != nil {
				return nil, nil, fmt.Errorf("failed to decode response body: %w", err)
			}
			return &geminiResp, json.RawMessage(body), nil
		}

		lastErr = err
		if !retryable {
			break
		}
		r.logger.Warn("Gemini request failed, retrying",
			logger.IntField("attempt", attempt),
			logger.ErrorField(err))
	}

	return nil, nil, fmt.Errorf("gemini request failed after retries: %w", lastErr)
}

func (r *geminiAIRepository) doRequest(ctx context.Context, apiURL string, jsonPayload []byte) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, false, nil
	}

	retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return nil, retryable, fmt.Errorf("non-OK response from Gemini API: %d - %s", resp.StatusCode, string(body))
}

// waitForLimits applies the token-per-minute and request-per-minute budgets
// before an outbound call.
func (r *geminiAIRepository) waitForLimits(ctx context.Context, prompt string) error {
	if r.genAiClient != nil && r.cfg.Gemini.MaxTokenPerMinute > 0 {
		contents := []*genai.Content{
			genai.NewContentFromText(prompt, "user"),
		}
		tokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.Gemini.Model, contents, nil)
		if err != nil {
			return fmt.Errorf("failed to count tokens: %w", err)
		}

		r.logger.Debug("Gemini token count",
			logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
			logger.IntField("remaining", r.tokenLimiter.GetRemaining()))

		if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
			return fmt.Errorf("failed to wait for token limit: %w", err)
		}
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for request limit: %w", err)
	}
	return nil
}
