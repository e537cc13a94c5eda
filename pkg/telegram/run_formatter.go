package telegram

import (
	"fmt"
	"strings"
	"time"
)

// RunReport is the end-of-run summary rendered for Telegram.
type RunReport struct {
	AsOfDate   time.Time
	Status     string
	SnapshotID string
	Provider   string
	Error      string
	TopTickers []string
}

// FormatRunReport renders a run outcome as a Markdown message.
func FormatRunReport(r RunReport) string {
	var b strings.Builder

	var icon string
	switch r.Status {
	case "completed":
		icon = "✅"
	case "failed":
		icon = "❌"
	default:
		icon = "ℹ️"
	}

	b.WriteString(fmt.Sprintf("%s *EOD Recommendation Run* %s\n\n", icon, r.AsOfDate.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("*Status:* %s\n", r.Status))
	if r.Provider != "" {
		b.WriteString(fmt.Sprintf("*Provider:* %s\n", r.Provider))
	}
	if r.SnapshotID != "" {
		b.WriteString(fmt.Sprintf("*Snapshot:* `%s`\n", r.SnapshotID))
	}
	if r.Error != "" {
		errText := r.Error
		if len(errText) > 500 {
			errText = errText[:500] + "..."
		}
		b.WriteString(fmt.Sprintf("*Error:* %s\n", errText))
	}
	if len(r.TopTickers) > 0 {
		n := len(r.TopTickers)
		if n > 5 {
			n = 5
		}
		b.WriteString(fmt.Sprintf("*Top picks:* %s\n", strings.Join(r.TopTickers[:n], ", ")))
	}

	return b.String()
}
