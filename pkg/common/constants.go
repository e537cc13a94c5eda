package common

const (
	// RedisKeyEODLockPrefix is the per-date generation lock key prefix.
	RedisKeyEODLockPrefix = "reco:lock:eod:"

	// RedisKeyProviderTokenPrefix is the shared data-provider access token cache key prefix.
	RedisKeyProviderTokenPrefix = "reco:provider:token:"

	ProviderGemini = "gemini"

	SnapshotStatusSuccess = "success"
	SnapshotStatusError   = "error"

	IngestStatusSuccess = "success"
	IngestStatusError   = "error"

	// DateFormat is the canonical as-of date layout used across services.
	DateFormat = "2006-01-02"
)
