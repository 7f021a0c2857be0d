// Package services implements business logic for the application
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"church-checkin/internal/event"
	"church-checkin/internal/metrics"
	"church-checkin/internal/models"
	"church-checkin/internal/repository"
)

const (
	MessageNotFound        = "Identity Not Found"
	MessageAlreadyRecorded = "Already Recorded"
)

// ErrInvalidCode is returned for an empty check-in code
var ErrInvalidCode = errors.New("code must not be empty")

// CheckInProcessor defines the interface for check-in processing
type CheckInProcessor interface {
	CheckIn(ctx context.Context, code, station string) (*models.CheckInResult, error)
}

// EventPublisher defines the interface for announcing ledger writes
type EventPublisher interface {
	PublishAsync(eventType event.EventType, evt event.Event) bool
}

// CheckInService records attendance for scanned identity codes
type CheckInService struct {
	identityRepo   repository.IdentityRepository
	attendanceRepo repository.AttendanceRepository
	publisher      EventPublisher
	metrics        *metrics.Metrics
	location       *time.Location
	logger         *slog.Logger
	now            func() time.Time
}

// NewCheckInService creates a new check-in service. Service days are
// computed in loc.
func NewCheckInService(
	identityRepo repository.IdentityRepository,
	attendanceRepo repository.AttendanceRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
	loc *time.Location,
	logger *slog.Logger,
) *CheckInService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &CheckInService{
		identityRepo:   identityRepo,
		attendanceRepo: attendanceRepo,
		publisher:      publisher,
		metrics:        m,
		location:       loc,
		logger:         logger.With("component", "checkin"),
		now:            time.Now,
	}
}

// ServiceDay returns the calendar date of t in the operating timezone
func ServiceDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(models.ServiceDayLayout)
}

// CheckIn validates a code against the identity store and records at most
// one attendance event per identity per service day.
func (s *CheckInService) CheckIn(ctx context.Context, code, station string) (*models.CheckInResult, error) {
	started := time.Now()
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	identity, err := s.identityRepo.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("unknown code scanned", "code", code, "station", station)
		s.metrics.ObserveCheckIn(string(models.CheckInNotFound), started)
		return &models.CheckInResult{
			Kind:  models.CheckInNotFound,
			Error: MessageNotFound,
		}, nil
	}
	if err != nil {
		s.metrics.ObserveCheckIn("error", started)
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	now := s.now()
	serviceDay := ServiceDay(now, s.location)

	exists, err := s.attendanceRepo.ExistsForDay(ctx, identity.ID, serviceDay)
	if err != nil {
		s.metrics.ObserveCheckIn("error", started)
		return nil, fmt.Errorf("failed to check attendance status: %w", err)
	}
	if exists {
		return s.alreadyRecorded(identity, serviceDay, started), nil
	}

	attendance := &models.AttendanceEvent{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		ServiceDay: serviceDay,
		RecordedAt: now,
		Station:    station,
	}
	// The unique index settles races between stations that both passed the pre-check
	if err := s.attendanceRepo.Create(ctx, attendance); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.alreadyRecorded(identity, serviceDay, started), nil
		}
		s.metrics.ObserveCheckIn("error", started)
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	s.logger.Info("attendance recorded",
		"code", identity.Code,
		"name", identity.FullName(),
		"service_day", serviceDay,
		"station", station,
	)
	s.metrics.ObserveCheckIn(string(models.CheckInRecorded), started)
	s.announce(identity, attendance)

	recordedAt := attendance.RecordedAt
	return &models.CheckInResult{
		Success:    true,
		Kind:       models.CheckInRecorded,
		Identity:   identity.Summarize(),
		ServiceDay: serviceDay,
		RecordedAt: &recordedAt,
	}, nil
}

func (s *CheckInService) alreadyRecorded(identity *models.Identity, serviceDay string, started time.Time) *models.CheckInResult {
	s.logger.Info("attendance already recorded", "code", identity.Code, "service_day", serviceDay)
	s.metrics.ObserveCheckIn(string(models.CheckInAlreadyRecorded), started)
	return &models.CheckInResult{
		Kind:       models.CheckInAlreadyRecorded,
		Error:      MessageAlreadyRecorded,
		Identity:   identity.Summarize(),
		ServiceDay: serviceDay,
	}
}

func (s *CheckInService) announce(identity *models.Identity, attendance *models.AttendanceEvent) {
	if s.publisher == nil {
		return
	}
	data := event.AttendanceRecordedEvent{
		ServiceDay: attendance.ServiceDay,
		Attendee: models.Attendee{
			Code:       identity.Code,
			FirstName:  identity.FirstName,
			LastName:   identity.LastName,
			Ministry:   identity.Ministry,
			Network:    identity.Network,
			RecordedAt: attendance.RecordedAt,
			Station:    attendance.Station,
		},
	}
	if !s.publisher.PublishAsync(event.AttendanceRecordedEventType, event.NewEvent(event.AttendanceRecordedEventType, data)) {
		s.logger.Warn("failed to queue attendance event", "code", identity.Code)
	}
}
