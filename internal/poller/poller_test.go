package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"church-checkin/internal/models"
)

type recorder struct {
	mu       sync.Mutex
	fetches  []string
	rendered []*models.DashboardStats
	failNext bool
}

func (r *recorder) fetch(ctx context.Context, date string) (*models.DashboardStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, date)
	if r.failNext {
		r.failNext = false
		return nil, errors.New("connection refused")
	}
	return &models.DashboardStats{Date: date, TotalAttendance: len(r.fetches)}, nil
}

func (r *recorder) render(stats *models.DashboardStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, stats)
}

func (r *recorder) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fetches)
}

func (r *recorder) renders() []*models.DashboardStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.DashboardStats(nil), r.rendered...)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartRendersInitialWithoutFetching(t *testing.T) {
	rec := &recorder{}
	p := New(rec.fetch, rec.render, time.Hour, nil)
	initial := &models.DashboardStats{Date: "2026-10-18", TotalAttendance: 7}

	p.Start(context.Background(), "2026-10-18", initial)
	defer p.Stop()

	renders := rec.renders()
	require.Len(t, renders, 1)
	assert.Same(t, initial, renders[0])
	assert.Equal(t, 0, rec.fetchCount())
}

func TestStartFetchesImmediatelyWithoutInitial(t *testing.T) {
	rec := &recorder{}
	p := New(rec.fetch, rec.render, time.Hour, nil)

	p.Start(context.Background(), "2026-10-18", nil)
	defer p.Stop()

	assert.Eventually(t, func() bool { return len(rec.renders()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestPollsOnInterval(t *testing.T) {
	rec := &recorder{}
	p := New(rec.fetch, rec.render, 10*time.Millisecond, nil)

	p.Start(context.Background(), "2026-10-18", &models.DashboardStats{})
	assert.Eventually(t, func() bool { return rec.fetchCount() >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()

	stopped := rec.fetchCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, rec.fetchCount())
}

func TestFetchErrorKeepsPolling(t *testing.T) {
	rec := &recorder{failNext: true}
	p := New(rec.fetch, rec.render, 10*time.Millisecond, nil)

	p.Start(context.Background(), "2026-10-18", nil)
	defer p.Stop()

	assert.Eventually(t, func() bool { return len(rec.renders()) >= 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, rec.fetchCount(), 2)
}

func TestSetDateRestartsScopedToNewDate(t *testing.T) {
	rec := &recorder{}
	p := New(rec.fetch, rec.render, time.Hour, nil)

	p.Start(context.Background(), "2026-10-18", &models.DashboardStats{Date: "2026-10-18"})
	defer p.Stop()

	p.SetDate("2026-10-11")
	assert.Equal(t, "2026-10-11", p.Date())
	assert.Eventually(t, func() bool {
		renders := rec.renders()
		return len(renders) == 2 && renders[1].Date == "2026-10-11"
	}, time.Second, 5*time.Millisecond)
}

func TestSetDateBeforeStartIsIgnored(t *testing.T) {
	rec := &recorder{}
	p := New(rec.fetch, rec.render, time.Hour, nil)

	p.SetDate("2026-10-11")
	assert.Equal(t, 0, rec.fetchCount())
	p.Stop()
}

func TestContextCancelStopsLoop(t *testing.T) {
	rec := &recorder{}
	p := New(rec.fetch, rec.render, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	p.Start(ctx, "2026-10-18", nil)
	assert.Eventually(t, func() bool { return rec.fetchCount() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	p.Stop()
}
