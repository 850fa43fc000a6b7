package notifier

import (
	"fmt"
	"time"

	"water-monitor/internal/models"
)

// TimeLayout is how alert times are rendered in messages.
const TimeLayout = "2006-01-02 15:04:05"

// FormatAlert renders the HTML Telegram message for an alert.
func FormatAlert(sev models.Severity, level float64, timestamp string) string {
	if sev == models.SeverityHazard {
		return fmt.Sprintf(`🚨 <b>FLOOD HAZARD ALERT!</b> 🚨

⚠️ Water Level: <b>%.1f%%</b>
📊 Status: <b>CRITICAL</b>
⏰ Time: %s

⚡ Immediate action required!
The water level has reached a dangerous level.`, level, timestamp)
	}
	return fmt.Sprintf(`⚠️ <b>Water Level Warning</b>

💧 Water Level: <b>%.1f%%</b>
📊 Status: <b>HIGH - WARNING</b>
⏰ Time: %s

Please monitor the situation closely.`, level, timestamp)
}

// FormatTest renders the connectivity test message.
func FormatTest(now time.Time) string {
	return fmt.Sprintf(`🔔 <b>Telegram Bot Test</b>

✅ Connection successful!
⏰ %s

Your water level monitoring system is ready.`, now.Format(TimeLayout))
}
