package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-stock-recommender/internal/domain"
)

// snapshotResponseSchema is the forced output schema sent with every
// generation and repair request.
const snapshotResponseSchema = `{
  "type": "object",
  "properties": {
    "as_of_date": {"type": "string", "description": "YYYY-MM-DD, must equal the requested date"},
    "generated_at": {"type": "string", "description": "RFC 3339 timestamp"},
    "items": {
      "type": "array",
      "minItems": 20,
      "maxItems": 20,
      "items": {
        "type": "object",
        "properties": {
          "rank": {"type": "integer", "minimum": 1, "maximum": 20},
          "ticker": {"type": "string"},
          "name": {"type": "string"},
          "rationale": {"type": "array", "minItems": 3, "maxItems": 3, "items": {"type": "string"}},
          "risk_notes": {"type": "string", "nullable": true},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1, "nullable": true}
        },
        "required": ["rank", "ticker", "name", "rationale"]
      }
    }
  },
  "required": ["as_of_date", "generated_at", "items"]
}`

// SnapshotResponseSchema returns the schema as raw JSON for the request
// generationConfig.
func SnapshotResponseSchema() json.RawMessage {
	return json.RawMessage(snapshotResponseSchema)
}

const snapshotRules = `Rules:
- Return a single JSON object only, no prose and no markdown fences.
- "as_of_date" must be exactly the requested date.
- "items" must contain exactly 20 entries with ranks forming the full set 1..20, no duplicates.
- Every ticker and name must come from the candidate list, non-empty.
- "rationale" must be exactly 3 short non-empty lines grounded in the provided features.
- "confidence", when given, must be between 0 and 1 inclusive.
- "risk_notes" is optional; omit it rather than sending an empty string.`

// BuildSystemInstruction returns the fixed system prompt for recommendation
// generation.
func BuildSystemInstruction() string {
	return `You are an equity selection engine for the Korean stock market. ` +
		`You rank candidate stocks using only the numeric features supplied in the request. ` +
		`You never invent tickers and you always answer with a single JSON object matching the requested schema.`
}

// BuildGeneratePrompt renders the user content for the initial generation
// request: the as-of date and the candidate universe as JSON.
func BuildGeneratePrompt(input *domain.GenerationInput) (string, error) {
	candidatesJSON, err := json.Marshal(input.Candidates)
	if err != nil {
		return "", fmt.Errorf("failed to marshal candidates: %w", err)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Select the 20 best stocks for trading date %s from the candidates below.\n\n",
		input.AsOfDate.Format("2006-01-02")))
	b.WriteString(snapshotRules)
	b.WriteString("\n\nOutput schema:\n")
	b.WriteString(snapshotResponseSchema)
	b.WriteString("\n\nCandidates (ticker, name, features):\n")
	b.Write(candidatesJSON)
	return b.String(), nil
}

// BuildRepairPrompt renders a follow-up request asking the provider to fix
// previously invalid output. The invalid output is quoted for reference only
// and must not be echoed back verbatim.
func BuildRepairPrompt(asOfDate time.Time, validationErr error, invalidOutput string) string {
	const maxQuoted = 20000
	if len(invalidOutput) > maxQuoted {
		invalidOutput = invalidOutput[:maxQuoted]
	}

	return fmt.Sprintf(`Your previous answer was rejected: %s

Produce a corrected answer for trading date %s.

%s

Output schema:
%s

Previous invalid answer, for reference only. Do not repeat it verbatim, fix it:
%s`,
		validationErr.Error(),
		asOfDate.Format("2006-01-02"),
		snapshotRules,
		snapshotResponseSchema,
		invalidOutput)
}
