package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"church-checkin/internal/database"
	"church-checkin/internal/event"
	"church-checkin/internal/metrics"
	"church-checkin/internal/models"
	"church-checkin/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{MemoryName: uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedIdentity(t *testing.T, db *gorm.DB, code, ministry, network string) *models.Identity {
	t.Helper()
	identity := &models.Identity{
		ID:        uuid.NewString(),
		Code:      code,
		FirstName: "Member",
		LastName:  code,
		Ministry:  ministry,
		Network:   network,
	}
	require.NoError(t, repository.NewGormIdentityRepository(db).Create(context.Background(), identity))
	return identity
}

func countEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.AttendanceEvent{}).Count(&count).Error)
	return count
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) PublishAsync(eventType event.EventType, evt event.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return true
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestCheckInService(db *gorm.DB, publisher EventPublisher, now time.Time) *CheckInService {
	svc := NewCheckInService(
		repository.NewGormIdentityRepository(db),
		repository.NewGormAttendanceRepository(db),
		publisher,
		metrics.New(nil),
		time.UTC,
		nil,
	)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCheckInRecordsThenReportsAlreadyRecorded(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, "abc123", "Music", "Youth")
	publisher := &recordingPublisher{}
	svc := newTestCheckInService(db, publisher, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := svc.CheckIn(ctx, "abc123", "front-door")
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, models.CheckInRecorded, first.Kind)
	require.NotNil(t, first.Identity)
	assert.Equal(t, "Music", first.Identity.Ministry)
	assert.Equal(t, "2026-10-18", first.ServiceDay)
	require.NotNil(t, first.RecordedAt)

	second, err := svc.CheckIn(ctx, "abc123", "side-door")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, models.CheckInAlreadyRecorded, second.Kind)
	assert.Equal(t, MessageAlreadyRecorded, second.Error)

	assert.Equal(t, int64(1), countEvents(t, db))
	assert.Equal(t, 1, publisher.count())
}

func TestCheckInUnknownCode(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestCheckInService(db, publisher, time.Now())

	result, err := svc.CheckIn(context.Background(), "nonexistent-code", "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.CheckInNotFound, result.Kind)
	assert.Equal(t, MessageNotFound, result.Error)
	assert.Nil(t, result.Identity)
	assert.Equal(t, int64(0), countEvents(t, db))
	assert.Equal(t, 0, publisher.count())
}

func TestCheckInEmptyCode(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCheckInService(db, nil, time.Now())

	_, err := svc.CheckIn(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCheckInNextServiceDay(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, "abc123", "", "")
	svc := newTestCheckInService(db, nil, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	result, err := svc.CheckIn(ctx, "abc123", "")
	require.NoError(t, err)
	require.True(t, result.Success)

	svc.now = func() time.Time { return time.Date(2026, 10, 25, 9, 0, 0, 0, time.UTC) }
	result, err = svc.CheckIn(ctx, "abc123", "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "2026-10-25", result.ServiceDay)
	assert.Equal(t, int64(2), countEvents(t, db))
}

func TestServiceDayUsesOperatingTimezone(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	late := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-19", ServiceDay(late, manila))
	assert.Equal(t, "2026-10-18", ServiceDay(late, time.UTC))
}

func TestCheckInConcurrentStations(t *testing.T) {
	db := newTestDB(t)
	seedIdentity(t, db, "abc123", "Ushers", "Men")
	svc := newTestCheckInService(db, nil, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))

	const stations = 8
	var wg sync.WaitGroup
	results := make([]*models.CheckInResult, stations)
	errs := make([]error, stations)
	start := make(chan struct{})
	for i := range stations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.CheckIn(context.Background(), "abc123", "station")
		}()
	}
	close(start)
	wg.Wait()

	successes := 0
	for i := range stations {
		require.NoError(t, errs[i])
		if results[i].Success {
			successes++
		} else {
			assert.Equal(t, models.CheckInAlreadyRecorded, results[i].Kind)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(1), countEvents(t, db))
}

// racingAttendanceRepo simulates a second station inserting between the
// pre-check and the insert
type racingAttendanceRepo struct {
	createErr error
}

func (r *racingAttendanceRepo) ExistsForDay(ctx context.Context, identityID, serviceDay string) (bool, error) {
	return false, nil
}

func (r *racingAttendanceRepo) Create(ctx context.Context, evt *models.AttendanceEvent) error {
	return r.createErr
}

func (r *racingAttendanceRepo) ListByDay(ctx context.Context, serviceDay string) ([]models.Attendee, error) {
	return nil, nil
}

type stubIdentityRepo struct {
	identity *models.Identity
	err      error
}

func (r *stubIdentityRepo) GetByCode(ctx context.Context, code string) (*models.Identity, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.identity == nil || r.identity.Code != code {
		return nil, repository.ErrNotFound
	}
	return r.identity, nil
}

func (r *stubIdentityRepo) Create(ctx context.Context, identity *models.Identity) error { return nil }
func (r *stubIdentityRepo) Update(ctx context.Context, identity *models.Identity) error { return nil }
func (r *stubIdentityRepo) Count(ctx context.Context) (int64, error)                    { return 1, nil }

func TestCheckInStoreOutcomes(t *testing.T) {
	identity := &models.Identity{ID: "id-1", Code: "abc123", FirstName: "Ana"}
	storeDown := errors.New("connection refused")

	tests := []struct {
		name         string
		identityRepo *stubIdentityRepo
		createErr    error
		wantKind     models.CheckInKind
		wantErr      bool
	}{
		{
			name:         "Unique violation maps to already recorded",
			identityRepo: &stubIdentityRepo{identity: identity},
			createErr:    repository.ErrDuplicate,
			wantKind:     models.CheckInAlreadyRecorded,
		},
		{
			name:         "Insert failure is an error",
			identityRepo: &stubIdentityRepo{identity: identity},
			createErr:    storeDown,
			wantErr:      true,
		},
		{
			name:         "Lookup failure is an error",
			identityRepo: &stubIdentityRepo{err: storeDown},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &recordingPublisher{}
			svc := NewCheckInService(tt.identityRepo, &racingAttendanceRepo{createErr: tt.createErr}, publisher, nil, time.UTC, nil)

			result, err := svc.CheckIn(context.Background(), "abc123", "")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, storeDown)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantKind, result.Kind)
				assert.False(t, result.Success)
			}
			assert.Equal(t, 0, publisher.count())
		})
	}
}
