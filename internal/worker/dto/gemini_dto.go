package dto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GeminiAPIRequest is the request payload for the Gemini generateContent API.
type GeminiAPIRequest struct {
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Contents          []Content         `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// GenerationConfig carries the fixed model parameters, including the forced
// output schema.
type GenerationConfig struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

// Content represents the content of a request or response.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one content block. The provider interleaves several block kinds;
// Kind() tags them so extraction can treat each variant explicitly.
type Part struct {
	Text             string           `json:"text,omitempty"`
	Thought          bool             `json:"thought,omitempty"`
	ThoughtSignature string           `json:"thoughtSignature,omitempty"`
	FunctionCall     *FunctionCall    `json:"functionCall,omitempty"`
	InlineData       *json.RawMessage `json:"inlineData,omitempty"`
}

// FunctionCall is the structured-output channel of a response part.
type FunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// PartKind tags the response block variants.
type PartKind int

const (
	PartUnknown PartKind = iota
	PartText
	PartStructured
	PartReasoning
	PartRedactedReasoning
)

// Kind classifies the part.
func (p Part) Kind() PartKind {
	switch {
	case p.FunctionCall != nil:
		return PartStructured
	case p.Thought && p.Text != "":
		return PartReasoning
	case p.Thought || p.ThoughtSignature != "":
		return PartRedactedReasoning
	case p.Text != "":
		return PartText
	default:
		return PartUnknown
	}
}

// GeminiAPIResponse is the response from the Gemini API.
type GeminiAPIResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate is a candidate response from the Gemini API.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata reports token accounting for a response.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// FinishReasonMaxTokens is the provider's truncation signal.
const FinishReasonMaxTokens = "MAX_TOKENS"

// Truncated reports whether the first candidate stopped at the output size
// limit.
func (r *GeminiAPIResponse) Truncated() bool {
	return len(r.Candidates) > 0 && r.Candidates[0].FinishReason == FinishReasonMaxTokens
}

// ExtractOutput pulls the model output text out of a response. The structured
// channel wins when present; otherwise all plain text blocks are
// concatenated. Reasoning and redacted-reasoning blocks are never part of the
// output, unknown blocks are skipped.
func ExtractOutput(resp *GeminiAPIResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch part.Kind() {
		case PartStructured:
			return string(part.FunctionCall.Args), nil
		case PartText:
			texts = append(texts, part.Text)
		case PartReasoning, PartRedactedReasoning, PartUnknown:
			// Not output-bearing.
		}
	}

	if len(texts) == 0 {
		return "", fmt.Errorf("no output content in response")
	}
	return strings.Join(texts, ""), nil
}
