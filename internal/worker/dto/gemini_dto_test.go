package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartKind(t *testing.T) {
	fc := &FunctionCall{Name: "emit", Args: json.RawMessage(`{}`)}

	tests := []struct {
		name     string
		part     Part
		expected PartKind
	}{
		{"plain text", Part{Text: "hello"}, PartText},
		{"structured", Part{FunctionCall: fc}, PartStructured},
		{"structured wins over text", Part{Text: "x", FunctionCall: fc}, PartStructured},
		{"reasoning", Part{Text: "thinking...", Thought: true}, PartReasoning},
		{"redacted reasoning flag only", Part{Thought: true}, PartRedactedReasoning},
		{"redacted reasoning signature", Part{ThoughtSignature: "sig"}, PartRedactedReasoning},
		{"empty", Part{}, PartUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.part.Kind())
		})
	}
}

func TestExtractOutput_StructuredChannelWins(t *testing.T) {
	resp := &GeminiAPIResponse{Candidates: []Candidate{{
		Content: Content{Parts: []Part{
			{Text: "preamble"},
			{FunctionCall: &FunctionCall{Name: "emit", Args: json.RawMessage(`{"a":1}`)}},
			{Text: "postamble"},
		}},
	}}}

	out, err := ExtractOutput(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, out)
}

func TestExtractOutput_ConcatenatesTextSkippingReasoning(t *testing.T) {
	resp := &GeminiAPIResponse{Candidates: []Candidate{{
		Content: Content{Parts: []Part{
			{Text: "let me think", Thought: true},
			{ThoughtSignature: "opaque"},
			{Text: `{"a":`},
			{Text: `1}`},
		}},
	}}}

	out, err := ExtractOutput(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestExtractOutput_NoCandidates(t *testing.T) {
	_, err := ExtractOutput(&GeminiAPIResponse{})
	assert.Error(t, err)

	_, err = ExtractOutput(nil)
	assert.Error(t, err)
}

func TestExtractOutput_OnlyReasoningParts(t *testing.T) {
	resp := &GeminiAPIResponse{Candidates: []Candidate{{
		Content: Content{Parts: []Part{
			{Text: "internal", Thought: true},
			{ThoughtSignature: "sig"},
		}},
	}}}

	_, err := ExtractOutput(resp)
	assert.Error(t, err)
}

func TestTruncated(t *testing.T) {
	truncated := &GeminiAPIResponse{Candidates: []Candidate{{FinishReason: FinishReasonMaxTokens}}}
	assert.True(t, truncated.Truncated())

	stopped := &GeminiAPIResponse{Candidates: []Candidate{{FinishReason: "STOP"}}}
	assert.False(t, stopped.Truncated())

	empty := &GeminiAPIResponse{}
	assert.False(t, empty.Truncated())
}
