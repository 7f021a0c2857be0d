package event

import "church-checkin/internal/models"

const AttendanceRecordedEventType EventType = "attendance.recorded"

// AttendanceRecordedEvent is published after a check-in is written to the ledger
type AttendanceRecordedEvent struct {
	ServiceDay string
	Attendee   models.Attendee
}
