package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FeatureIngestRun records one ingestion attempt against the external data
// provider, success or error. Never unique per date.
type FeatureIngestRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AsOfDate    time.Time      `gorm:"column:as_of_date;type:date;not null" json:"as_of_date"`
	GeneratedAt time.Time      `gorm:"not null" json:"generated_at"`
	Provider    string         `gorm:"not null" json:"provider"`
	Status      string         `gorm:"not null" json:"status"`
	Error       *string        `json:"error,omitempty"`
	RawResponse datatypes.JSON `gorm:"type:jsonb" json:"raw_response,omitempty"`
}

func (FeatureIngestRun) TableName() string {
	return "stock_features_ingest_runs"
}
