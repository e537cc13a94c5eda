package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RecommendationSnapshot is one generation outcome for an as-of date.
// Success rows are unique per date (partial unique index); error rows form an
// append-only audit trail of failed attempts.
type RecommendationSnapshot struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AsOfDate    time.Time            `gorm:"column:as_of_date;type:date;not null" json:"as_of_date"`
	GeneratedAt time.Time            `gorm:"not null" json:"generated_at"`
	Provider    string               `gorm:"not null" json:"provider"`
	Status      string               `gorm:"not null" json:"status"`
	Error       *string              `json:"error,omitempty"`
	RawResponse datatypes.JSON       `gorm:"type:jsonb" json:"raw_response,omitempty"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"created_at"`
	Items       []RecommendationItem `gorm:"foreignKey:SnapshotID" json:"items,omitempty"`
}

func (RecommendationSnapshot) TableName() string {
	return "recommendation_snapshots"
}

// RecommendationItem is one ranked pick belonging to a success snapshot.
// (snapshot_id, rank) and (snapshot_id, ticker) are both unique.
type RecommendationItem struct {
	ID         int64                       `gorm:"primaryKey" json:"id"`
	SnapshotID uuid.UUID                   `gorm:"type:uuid;not null" json:"snapshot_id"`
	Rank       int                         `gorm:"column:rank;not null" json:"rank"`
	Ticker     string                      `gorm:"not null" json:"ticker"`
	Name       string                      `gorm:"not null" json:"name"`
	Rationale  datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"rationale"`
	RiskNotes  *string                     `json:"risk_notes,omitempty"`
	Confidence *float64                    `json:"confidence,omitempty"`
}

func (RecommendationItem) TableName() string {
	return "recommendation_items"
}
