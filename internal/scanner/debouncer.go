package scanner

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"church-checkin/internal/models"
)

const (
	DefaultCooldown      = 3 * time.Second
	DefaultClearAfter    = 5 * time.Second
	DefaultVerifyTimeout = 10 * time.Second
)

// State of the scan session
type State int

const (
	StateIdle State = iota
	StateInFlight
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Verifier submits a code to the check-in procedure
type Verifier interface {
	CheckIn(ctx context.Context, code string) (*models.CheckInResult, error)
}

// Outcome is what the operator is shown after a verification. Exactly one of
// Result and Err is set.
type Outcome struct {
	Code   string
	Result *models.CheckInResult
	Err    error
}

// Message returns the operator-facing text for the outcome
func (o Outcome) Message() string {
	switch {
	case o.Err != nil:
		return "Check-in failed, please try again"
	case o.Result == nil:
		return ""
	case o.Result.Success && o.Result.Identity != nil:
		name := o.Result.Identity.FirstName
		if o.Result.Identity.LastName != "" {
			name += " " + o.Result.Identity.LastName
		}
		return "Welcome, " + name
	case o.Result.Success:
		return "Checked in"
	default:
		return o.Result.Error
	}
}

type Options struct {
	Cooldown      time.Duration
	ClearAfter    time.Duration
	VerifyTimeout time.Duration
	Logger        *slog.Logger
}

// Debouncer admits at most one verification at a time and ignores repeat
// scans of the code it just processed.
type Debouncer struct {
	capture       Capture
	verifier      Verifier
	onResult      func(Outcome)
	cooldown      time.Duration
	clearAfter    time.Duration
	verifyTimeout time.Duration
	logger        *slog.Logger

	mu            sync.Mutex
	state         State
	lastCode      string
	seq           uint64
	cooldownTimer *time.Timer
	clearTimer    *time.Timer
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDebouncer(capture Capture, verifier Verifier, onResult func(Outcome), opts Options) *Debouncer {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.ClearAfter <= 0 {
		opts.ClearAfter = DefaultClearAfter
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = DefaultVerifyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		capture:       capture,
		verifier:      verifier,
		onResult:      onResult,
		cooldown:      opts.Cooldown,
		clearAfter:    opts.ClearAfter,
		verifyTimeout: opts.VerifyTimeout,
		logger:        opts.Logger.With("component", "debouncer"),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// LastCode returns the most recently processed code, or "" once cleared
func (d *Debouncer) LastCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCode
}

// Handle processes one raw decode and reports whether it started a verification
func (d *Debouncer) Handle(raw string) bool {
	code := NormalizeCode(raw)
	if code == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.state != StateIdle {
		return false
	}
	if code == d.lastCode {
		return false
	}

	d.state = StateInFlight
	d.lastCode = code
	d.seq++
	if d.clearTimer != nil {
		d.clearTimer.Stop()
		d.clearTimer = nil
	}
	d.capture.Pause()

	d.wg.Add(1)
	go d.verify(code, d.seq)
	return true
}

func (d *Debouncer) verify(code string, seq uint64) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(d.ctx, d.verifyTimeout)
	result, err := d.verifier.CheckIn(ctx, code)
	cancel()

	outcome := Outcome{Code: code, Result: result, Err: err}
	if err != nil {
		d.logger.Warn("check-in request failed", "code", code, "error", err)
		outcome.Result = nil
	} else if result != nil {
		d.logger.Info("check-in verified", "code", code, "kind", string(result.Kind))
	}
	if d.onResult != nil {
		d.onResult(outcome)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.state = StateCooldown
	d.cooldownTimer = time.AfterFunc(d.cooldown, d.endCooldown)
	d.clearTimer = time.AfterFunc(d.clearAfter, func() { d.clearLastCode(seq) })
}

func (d *Debouncer) endCooldown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.state != StateCooldown {
		return
	}
	d.state = StateIdle
	d.capture.Resume()
}

func (d *Debouncer) clearLastCode(seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// A newer verification owns lastCode
	if d.closed || d.seq != seq {
		return
	}
	d.lastCode = ""
}

// Run feeds decodes from the capture into Handle until ctx is done or the
// capture stops.
func (d *Debouncer) Run(ctx context.Context) error {
	decodes := d.capture.Decodes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-decodes:
			if !ok {
				return nil
			}
			if !d.Handle(raw) {
				d.logger.Debug("scan discarded", "payload", raw)
			}
		}
	}
}

// Close stops the timers, cancels an in-flight verification and waits for it
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.cooldownTimer != nil {
		d.cooldownTimer.Stop()
	}
	if d.clearTimer != nil {
		d.clearTimer.Stop()
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
