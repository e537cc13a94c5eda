package utils

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	kstOffsetSecs = 9 * 3600

	// KRX close is ~15:30 KST; before this cutoff a run targets the previous
	// trading day.
	closeCutoffHourKST   = 16
	closeCutoffMinuteKST = 0
)

// KST is the fixed Korea Standard Time offset (no DST).
var KST = time.FixedZone("KST", kstOffsetSecs)

// TimeNowKST returns the current time in KST.
func TimeNowKST() time.Time {
	return time.Now().In(KST)
}

// ResolveMarketDate resolves the as-of trading date. An explicit YYYY-MM-DD
// argument wins; otherwise the date is derived from nowUTC in KST with the
// close cutoff applied, then rolled back over weekends and holidays.
func ResolveMarketDate(asOfDateArg string, nowUTC time.Time) (time.Time, error) {
	if asOfDateArg != "" {
		d, err := time.Parse("2006-01-02", asOfDateArg)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid as-of date %q: %w", asOfDateArg, err)
		}
		return d, nil
	}

	nowKST := nowUTC.In(KST)
	date := time.Date(nowKST.Year(), nowKST.Month(), nowKST.Day(), 0, 0, 0, 0, time.UTC)

	beforeCutoff := nowKST.Hour() < closeCutoffHourKST ||
		(nowKST.Hour() == closeCutoffHourKST && nowKST.Minute() < closeCutoffMinuteKST)
	if beforeCutoff {
		date = date.AddDate(0, 0, -1)
	}

	holidays := configuredHolidays()
	for isWeekend(date) || holidays[date.Format("2006-01-02")] {
		date = date.AddDate(0, 0, -1)
	}

	return date, nil
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// configuredHolidays returns widely observed fixed-date holidays, extendable
// via KR_MARKET_HOLIDAYS="YYYY-MM-DD,YYYY-MM-DD".
func configuredHolidays() map[string]bool {
	out := make(map[string]bool)
	for year := 2024; year <= 2030; year++ {
		out[fmt.Sprintf("%d-01-01", year)] = true
		out[fmt.Sprintf("%d-12-25", year)] = true
	}

	if s := os.Getenv("KR_MARKET_HOLIDAYS"); s != "" {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, err := time.Parse("2006-01-02", part); err == nil {
				out[part] = true
			}
		}
	}

	return out
}
