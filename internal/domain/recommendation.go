package domain

import (
	"fmt"
	"time"
)

// SnapshotItemCount is the number of ranked picks in every valid snapshot.
const SnapshotItemCount = 20

// Candidate universe size bounds passed to the model.
const (
	MinUniverseSize = 200
	MaxUniverseSize = 500
)

// Snapshot is one complete, validated set of ranked recommendations for a
// single trading date. Instances are only produced by contract validation.
type Snapshot struct {
	AsOfDate    time.Time `json:"as_of_date"`
	GeneratedAt time.Time `json:"generated_at"`
	Items       []Item    `json:"items"`
}

// Item is one validated ranked pick.
type Item struct {
	Rank       int       `json:"rank"`
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Rationale  [3]string `json:"rationale"`
	RiskNotes  *string   `json:"risk_notes,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// Candidate is a ticker eligible for generation with its feature vector.
// Candidates are an ephemeral read view and are never persisted on their own.
type Candidate struct {
	Ticker   string             `json:"ticker"`
	Name     string             `json:"name"`
	Features map[string]float64 `json:"features"`
}

// GenerationInput is the model invocation input for one run.
type GenerationInput struct {
	AsOfDate   time.Time
	Candidates []Candidate
}

// NewGenerationInput builds a GenerationInput, enforcing the candidate count
// bounds.
func NewGenerationInput(asOfDate time.Time, candidates []Candidate) (*GenerationInput, error) {
	if len(candidates) < MinUniverseSize || len(candidates) > MaxUniverseSize {
		return nil, fmt.Errorf("candidate count must be within [%d, %d] (got %d)",
			MinUniverseSize, MaxUniverseSize, len(candidates))
	}
	return &GenerationInput{AsOfDate: asOfDate, Candidates: candidates}, nil
}
