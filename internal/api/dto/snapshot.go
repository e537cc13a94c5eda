package dto

import "time"

// SnapshotResponse is the read view of one success snapshot.
type SnapshotResponse struct {
	ID          string         `json:"id"`
	AsOfDate    string         `json:"as_of_date"`
	GeneratedAt time.Time      `json:"generated_at"`
	Provider    string         `json:"provider"`
	Items       []ItemResponse `json:"items"`
}

// ItemResponse is the read view of one ranked pick.
type ItemResponse struct {
	Rank       int      `json:"rank"`
	Ticker     string   `json:"ticker"`
	Name       string   `json:"name"`
	Rationale  []string `json:"rationale"`
	RiskNotes  *string  `json:"risk_notes,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
