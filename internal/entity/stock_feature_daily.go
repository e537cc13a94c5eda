package entity

import (
	"time"

	"gorm.io/datatypes"
)

// StockFeatureDaily is one row of per-date, per-ticker numeric features.
// An upsert for (as_of_date, ticker) replaces name, trading value and the
// feature map.
type StockFeatureDaily struct {
	AsOfDate     time.Time      `gorm:"column:as_of_date;type:date;primaryKey" json:"as_of_date"`
	Ticker       string         `gorm:"primaryKey" json:"ticker"`
	Name         string         `gorm:"not null" json:"name"`
	TradingValue *float64       `json:"trading_value"`
	Features     datatypes.JSON `gorm:"type:jsonb" json:"features"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StockFeatureDaily) TableName() string {
	return "stock_features_daily"
}
