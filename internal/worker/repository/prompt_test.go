package repository

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"golang-stock-recommender/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotResponseSchemaIsValidJSON(t *testing.T) {
	assert.True(t, json.Valid(SnapshotResponseSchema()))
}

func TestBuildGeneratePrompt(t *testing.T) {
	input := testGenerationInput(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))

	prompt, err := BuildGeneratePrompt(input)
	require.NoError(t, err)
	assert.Contains(t, prompt, "2026-02-03")
	assert.Contains(t, prompt, "exactly 20 entries")
	// Every candidate reaches the model.
	assert.Contains(t, prompt, input.Candidates[0].Ticker)
	assert.Contains(t, prompt, input.Candidates[len(input.Candidates)-1].Ticker)
}

func TestBuildRepairPrompt_QuotesErrorAndDate(t *testing.T) {
	valErr := &domain.ValidationError{Kind: "item_count", Field: "items", Message: "expected 20 items, got 19"}
	asOfDate := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	prompt := BuildRepairPrompt(asOfDate, valErr, `{"items": []}`)
	assert.Contains(t, prompt, "item_count")
	assert.Contains(t, prompt, "2026-02-03")
	assert.Contains(t, prompt, `{"items": []}`)
}

func TestBuildRepairPrompt_CapsQuotedOutput(t *testing.T) {
	valErr := &domain.ValidationError{Kind: "item_count", Field: "items", Message: "expected 20 items"}
	huge := strings.Repeat("x", 100000)

	prompt := BuildRepairPrompt(time.Now(), valErr, huge)
	assert.Less(t, len(prompt), 40000)
}
