package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"church-checkin/internal/metrics"
	"church-checkin/internal/models"
	"church-checkin/internal/repository"
)

const (
	DashboardPageSize = 20
	unassignedName    = "Unassigned"
)

// ErrInvalidDate is returned for a dashboard date that is not YYYY-MM-DD
var ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")

// StatsProvider defines the interface for dashboard aggregation
type StatsProvider interface {
	Stats(ctx context.Context, page int, date string) (*models.DashboardStats, error)
}

// DashboardService aggregates the attendance ledger for a service day
type DashboardService struct {
	identityRepo   repository.IdentityRepository
	attendanceRepo repository.AttendanceRepository
	metrics        *metrics.Metrics
	location       *time.Location
	now            func() time.Time
}

func NewDashboardService(
	identityRepo repository.IdentityRepository,
	attendanceRepo repository.AttendanceRepository,
	m *metrics.Metrics,
	loc *time.Location,
) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{
		identityRepo:   identityRepo,
		attendanceRepo: attendanceRepo,
		metrics:        m,
		location:       loc,
		now:            time.Now,
	}
}

// ResolveDate returns date when it is a valid calendar date, or today's
// service day when date is empty
func (s *DashboardService) ResolveDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return ServiceDay(s.now(), s.location), nil
	}
	if _, err := time.Parse(models.ServiceDayLayout, date); err != nil {
		return "", ErrInvalidDate
	}
	return date, nil
}

// Stats computes the totals and breakdowns for date. An empty ledger yields
// zero counts and empty breakdowns.
func (s *DashboardService) Stats(ctx context.Context, page int, date string) (*models.DashboardStats, error) {
	serviceDay, err := s.ResolveDate(date)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDashboardQuery()

	totalIdentities, err := s.identityRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count identities: %w", err)
	}
	attendees, err := s.attendanceRepo.ListByDay(ctx, serviceDay)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}

	attendees = distinctAttendees(attendees)
	stats := &models.DashboardStats{
		Date:            serviceDay,
		TotalIdentities: totalIdentities,
		TotalAttendance: len(attendees),
		Ministries:      breakdown(attendees, func(a models.Attendee) string { return a.Ministry }),
		Networks:        breakdown(attendees, func(a models.Attendee) string { return a.Network }),
	}
	stats.Page, stats.TotalPages, stats.Attendees = paginate(attendees, page)
	return stats, nil
}

// distinctAttendees keeps the first row per identity. Rows without an
// identity id fall back to the code.
func distinctAttendees(attendees []models.Attendee) []models.Attendee {
	seen := make(map[string]bool, len(attendees))
	out := make([]models.Attendee, 0, len(attendees))
	for _, a := range attendees {
		key := "id:" + a.IdentityID
		if a.IdentityID == "" {
			key = "code:" + a.Code
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func breakdown(attendees []models.Attendee, key func(models.Attendee) string) []models.Breakdown {
	counts := make(map[string]int)
	for _, a := range attendees {
		name := strings.TrimSpace(key(a))
		if name == "" {
			name = unassignedName
		}
		counts[name]++
	}
	result := make([]models.Breakdown, 0, len(counts))
	for name, count := range counts {
		result = append(result, models.Breakdown{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func paginate(attendees []models.Attendee, page int) (int, int, []models.Attendee) {
	totalPages := (len(attendees) + DashboardPageSize - 1) / DashboardPageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * DashboardPageSize
	if start >= len(attendees) {
		return page, totalPages, []models.Attendee{}
	}
	end := min(start+DashboardPageSize, len(attendees))
	return page, totalPages, attendees[start:end]
}
