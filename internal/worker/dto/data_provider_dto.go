package dto

import "time"

// DailyFeaturesResponse is the external data provider payload for one date.
type DailyFeaturesResponse struct {
	AsOfDate string             `json:"as_of_date"`
	Items    []DailyFeatureItem `json:"items"`
}

// DailyFeatureItem is one per-ticker feature row from the provider.
type DailyFeatureItem struct {
	Ticker       string             `json:"ticker"`
	Name         string             `json:"name"`
	TradingValue *float64           `json:"trading_value"`
	Features     map[string]float64 `json:"features"`
}

// AccessToken is the provider OAuth-style token together with its expiry.
type AccessToken struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stale reports whether the token is expired or within margin of expiring.
func (t AccessToken) Stale(now time.Time, margin time.Duration) bool {
	return t.Token == "" || !now.Add(margin).Before(t.ExpiresAt)
}
