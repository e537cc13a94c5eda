package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMarketDate_ExplicitArgumentWins(t *testing.T) {
	d, err := ResolveMarketDate("2026-02-03", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-03", d.Format("2006-01-02"))
}

func TestResolveMarketDate_InvalidArgument(t *testing.T) {
	_, err := ResolveMarketDate("03-02-2026", time.Now().UTC())
	assert.Error(t, err)
}

func TestResolveMarketDate_AfterCutoffSameDay(t *testing.T) {
	// Tuesday 2026-02-03 17:00 KST = 08:00 UTC.
	now := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)
	d, err := ResolveMarketDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-03", d.Format("2006-01-02"))
}

func TestResolveMarketDate_BeforeCutoffPreviousDay(t *testing.T) {
	// Tuesday 2026-02-03 10:00 KST = 01:00 UTC.
	now := time.Date(2026, 2, 3, 1, 0, 0, 0, time.UTC)
	d, err := ResolveMarketDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-02", d.Format("2006-01-02"))
}

func TestResolveMarketDate_ExactlyAtCutoff(t *testing.T) {
	// 16:00 KST is on or after the cutoff.
	now := time.Date(2026, 2, 3, 7, 0, 0, 0, time.UTC)
	d, err := ResolveMarketDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-03", d.Format("2006-01-02"))
}

func TestResolveMarketDate_WeekendRollsBackToFriday(t *testing.T) {
	// Sunday 2026-02-08 17:00 KST.
	now := time.Date(2026, 2, 8, 8, 0, 0, 0, time.UTC)
	d, err := ResolveMarketDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-06", d.Format("2006-01-02"))
	assert.Equal(t, time.Friday, d.Weekday())
}

func TestResolveMarketDate_MondayMorningRollsBackToFriday(t *testing.T) {
	// Monday 2026-02-09 09:00 KST, before the close.
	now := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	d, err := ResolveMarketDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-06", d.Format("2006-01-02"))
}

func TestResolveMarketDate_NewYearHolidayRollsBack(t *testing.T) {
	// Thursday 2026-01-01 17:00 KST is a holiday; previous trading day is
	// Wednesday 2025-12-31.
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	d, err := ResolveMarketDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", d.Format("2006-01-02"))
}

func TestResolveMarketDate_EnvHolidayRollsBack(t *testing.T) {
	t.Setenv("KR_MARKET_HOLIDAYS", "2026-02-03")

	// Tuesday 2026-02-03 17:00 KST, declared a holiday.
	now := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)
	d, err := ResolveMarketDate("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-02", d.Format("2006-01-02"))
}
