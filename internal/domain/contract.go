package domain

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError is a structured contract violation. Kind names the rule
// that failed, Field points at the offending location.
type ValidationError struct {
	Kind    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid snapshot (%s) %s: %s", e.Kind, e.Field, e.Message)
}

func newValidationError(kind, field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// SnapshotPayload is the untrusted external representation of a snapshot, as
// decoded from model output. Validate converts it into the internal Snapshot.
type SnapshotPayload struct {
	AsOfDate    string        `json:"as_of_date"`
	GeneratedAt time.Time     `json:"generated_at"`
	Items       []ItemPayload `json:"items"`
}

// ItemPayload is the untrusted external representation of one ranked pick.
type ItemPayload struct {
	Rank       int      `json:"rank"`
	Ticker     string   `json:"ticker"`
	Name       string   `json:"name"`
	Rationale  []string `json:"rationale"`
	RiskNotes  *string  `json:"risk_notes"`
	Confidence *float64 `json:"confidence"`
}

// Validate enforces the snapshot contract against expectedDate and converts
// the payload into a Snapshot. Pure: no I/O, no clock access. A well-formed
// payload carrying the wrong as-of date fails validation like any other shape
// violation; the caller's repair loop handles it the same way.
func (p SnapshotPayload) Validate(expectedDate time.Time) (*Snapshot, error) {
	parsedDate, err := time.Parse("2006-01-02", strings.TrimSpace(p.AsOfDate))
	if err != nil {
		return nil, newValidationError("date_format", "as_of_date", "not a YYYY-MM-DD date: %q", p.AsOfDate)
	}
	expected := expectedDate.Format("2006-01-02")
	if parsedDate.Format("2006-01-02") != expected {
		return nil, newValidationError("date_mismatch", "as_of_date", "expected %s, got %s",
			expected, parsedDate.Format("2006-01-02"))
	}

	if p.GeneratedAt.IsZero() {
		return nil, newValidationError("generated_at_missing", "generated_at", "must be present")
	}

	if len(p.Items) != SnapshotItemCount {
		return nil, newValidationError("item_count", "items", "must contain exactly %d items (got %d)",
			SnapshotItemCount, len(p.Items))
	}

	seenRanks := make(map[int]bool, SnapshotItemCount)
	items := make([]Item, 0, SnapshotItemCount)
	for i, itemPayload := range p.Items {
		item, err := itemPayload.validate(i, seenRanks)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	// Uniqueness plus the count bound already force full coverage, but a
	// missing rank names the clearer failure.
	for rank := 1; rank <= SnapshotItemCount; rank++ {
		if !seenRanks[rank] {
			return nil, newValidationError("rank_missing", "items", "missing rank %d", rank)
		}
	}

	return &Snapshot{
		AsOfDate:    parsedDate,
		GeneratedAt: p.GeneratedAt,
		Items:       items,
	}, nil
}

func (p ItemPayload) validate(idx int, seenRanks map[int]bool) (*Item, error) {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", idx, name) }

	if p.Rank < 1 || p.Rank > SnapshotItemCount {
		return nil, newValidationError("rank_range", field("rank"), "rank out of range: %d", p.Rank)
	}
	if seenRanks[p.Rank] {
		return nil, newValidationError("rank_duplicate", field("rank"), "duplicate rank: %d", p.Rank)
	}
	seenRanks[p.Rank] = true

	ticker := strings.TrimSpace(p.Ticker)
	if ticker == "" {
		return nil, newValidationError("empty_ticker", field("ticker"), "must be non-empty")
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, newValidationError("empty_name", field("name"), "must be non-empty")
	}

	if len(p.Rationale) != 3 {
		return nil, newValidationError("rationale_count", field("rationale"),
			"must have exactly 3 lines (got %d)", len(p.Rationale))
	}
	var rationale [3]string
	for i, line := range p.Rationale {
		line = strings.TrimSpace(line)
		if line == "" {
			return nil, newValidationError("rationale_empty", field("rationale"), "line %d is empty", i+1)
		}
		rationale[i] = line
	}

	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return nil, newValidationError("confidence_range", field("confidence"),
			"must be between 0 and 1 (got %v)", *p.Confidence)
	}

	// An empty risk note normalizes to absent.
	var riskNotes *string
	if p.RiskNotes != nil {
		if trimmed := strings.TrimSpace(*p.RiskNotes); trimmed != "" {
			riskNotes = &trimmed
		}
	}

	return &Item{
		Rank:       p.Rank,
		Ticker:     ticker,
		Name:       name,
		Rationale:  rationale,
		RiskNotes:  riskNotes,
		Confidence: p.Confidence,
	}, nil
}

// Payload converts a validated Snapshot back into its external representation.
// Validating the result against the same date yields an equal Snapshot.
func (s *Snapshot) Payload() SnapshotPayload {
	items := make([]ItemPayload, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, ItemPayload{
			Rank:       item.Rank,
			Ticker:     item.Ticker,
			Name:       item.Name,
			Rationale:  item.Rationale[:],
			RiskNotes:  item.RiskNotes,
			Confidence: item.Confidence,
		})
	}
	return SnapshotPayload{
		AsOfDate:    s.AsOfDate.Format("2006-01-02"),
		GeneratedAt: s.GeneratedAt,
		Items:       items,
	}
}
