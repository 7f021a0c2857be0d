package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"church-checkin/internal/event"
	"church-checkin/internal/models"
	"church-checkin/internal/services"
)

// NotifyAttendance announces a recorded check-in to the admin chat. It is an
// event.HandlerFunc for attendance.recorded.
func (b *Bot) NotifyAttendance(evt event.Event) {
	recorded, ok := evt.Data.(event.AttendanceRecordedEvent)
	if !ok {
		return
	}
	b.SendNotification(FormatAttendance(recorded.Attendee, b.location, b.serviceStart))
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func displayName(firstName, lastName string) string {
	return strings.TrimSpace(firstName + " " + lastName)
}

func orUnassigned(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unassigned"
	}
	return s
}

// FormatAttendance renders a check-in notification
func FormatAttendance(a models.Attendee, loc *time.Location, serviceStart string) string {
	recordedAt := a.RecordedAt.In(loc)
	statusEmoji := "✅"
	status := "on time"
	if serviceStart != "" {
		status = services.DescribeArrival(recordedAt, serviceStart)
		if services.CalculateArrival(recordedAt, serviceStart) == services.ArrivalLate {
			statusEmoji = "⚠️"
		}
	}

	message := fmt.Sprintf(
		"%s *%s checked in*\n"+
			"🕐 Time: `%s`\n"+
			"🙌 Ministry: %s\n"+
			"🏘 Network: %s\n",
		statusEmoji, escape(displayName(a.FirstName, a.LastName)), recordedAt.Format("15:04:05"),
		escape(orUnassigned(a.Ministry)), escape(orUnassigned(a.Network)),
	)
	if a.Station != "" {
		message += fmt.Sprintf("📍 Station: `%s`\n", a.Station)
	}
	if serviceStart != "" {
		message += fmt.Sprintf("⏰ Status: *%s*", status)
	}
	return strings.TrimRight(message, "\n")
}

// FormatStats renders the dashboard summary for a service day
func FormatStats(stats *models.DashboardStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Attendance %s*\n", stats.Date)
	fmt.Fprintf(&sb, "Present: *%d* of %d members\n", stats.TotalAttendance, stats.TotalIdentities)
	writeBreakdown(&sb, "Ministries", stats.Ministries)
	writeBreakdown(&sb, "Networks", stats.Networks)
	return strings.TrimRight(sb.String(), "\n")
}

func writeBreakdown(sb *strings.Builder, title string, items []models.Breakdown) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n*%s*\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s: %d\n", escape(item.Name), item.Count)
	}
}

// FormatIdentity renders a member card
func FormatIdentity(identity *models.Identity) string {
	return fmt.Sprintf("👤 *%s*\nCode: `%s`\nMinistry: %s\nNetwork: %s",
		escape(identity.FullName()), identity.Code,
		escape(orUnassigned(identity.Ministry)), escape(orUnassigned(identity.Network)))
}
