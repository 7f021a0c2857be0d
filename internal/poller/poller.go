// Package poller keeps a dashboard view current by re-fetching the
// aggregate on a fixed interval.
package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"church-checkin/internal/models"
)

const DefaultInterval = 5 * time.Second

// FetchFunc loads the dashboard for a service day
type FetchFunc func(ctx context.Context, date string) (*models.DashboardStats, error)

// RenderFunc receives every successfully fetched snapshot
type RenderFunc func(*models.DashboardStats)

type Poller struct {
	fetch    FetchFunc
	render   RenderFunc
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	date   string
	cancel context.CancelFunc
	done   chan struct{}
}

func New(fetch FetchFunc, render RenderFunc, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Poller{
		fetch:    fetch,
		render:   render,
		interval: interval,
		logger:   logger.With("component", "poller"),
	}
}

// Start begins polling date. A non-nil initial snapshot is rendered at once
// and the first fetch waits one interval; otherwise the first fetch is immediate.
func (p *Poller) Start(ctx context.Context, date string, initial *models.DashboardStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	p.ctx = ctx
	p.date = date
	if initial != nil {
		p.render(initial)
	}
	p.startLocked(initial == nil)
}

// SetDate restarts polling scoped to date, fetching immediately
func (p *Poller) SetDate(date string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return
	}
	p.stopLocked()
	p.date = date
	p.startLocked(true)
}

// Date returns the service day currently polled
func (p *Poller) Date() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.date
}

// Stop ends polling and waits for the loop to exit
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.ctx = nil
}

func (p *Poller) startLocked(fetchNow bool) {
	loopCtx, cancel := context.WithCancel(p.ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.loop(loopCtx, p.date, fetchNow, done)
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *Poller) loop(ctx context.Context, date string, fetchNow bool, done chan struct{}) {
	defer close(done)

	if fetchNow {
		p.poll(ctx, date)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, date)
		}
	}
}

func (p *Poller) poll(ctx context.Context, date string) {
	stats, err := p.fetch(ctx, date)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("dashboard refresh failed", "date", date, "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.render(stats)
}
