// Package scanner turns raw QR decodes from a capture device into check-in
// calls, suppressing repeated and concurrent scans on the kiosk side.
package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCaptureUnavailable is returned when the capture device cannot be opened
var ErrCaptureUnavailable = errors.New("capture device unavailable")

// Capture is a continuous source of decoded QR payloads
type Capture interface {
	// Decodes is closed when the capture stops
	Decodes() <-chan string
	// Pause keeps the device acquired but drops decodes until Resume
	Pause()
	Resume()
	Stop() error
}

// LineCapture reads newline-terminated payloads, as emitted by keyboard-wedge
// and serial QR scanners.
type LineCapture struct {
	source  io.Reader
	decodes chan string
	paused  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	logger  *slog.Logger
}

func NewLineCapture(source io.Reader, logger *slog.Logger) *LineCapture {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &LineCapture{
		source:  source,
		decodes: make(chan string),
		done:    make(chan struct{}),
		logger:  logger.With("component", "capture"),
	}
	c.wg.Add(1)
	go c.read()
	return c
}

func (c *LineCapture) read() {
	defer c.wg.Done()
	defer close(c.decodes)

	lines := bufio.NewScanner(c.source)
	for lines.Scan() {
		payload := strings.TrimSpace(lines.Text())
		if payload == "" {
			continue
		}
		if c.paused.Load() {
			c.logger.Debug("decode dropped while paused")
			continue
		}
		select {
		case c.decodes <- payload:
		case <-c.done:
			return
		}
	}
	if err := lines.Err(); err != nil {
		select {
		case <-c.done:
		default:
			c.logger.Warn("capture read failed", "error", err)
		}
	}
}

func (c *LineCapture) Decodes() <-chan string {
	return c.decodes
}

func (c *LineCapture) Pause() {
	c.paused.Store(true)
}

func (c *LineCapture) Resume() {
	c.paused.Store(false)
}

func (c *LineCapture) Paused() bool {
	return c.paused.Load()
}

// Stop releases the source and waits for the reader to exit. A source that
// is not an io.Closer must reach EOF on its own.
func (c *LineCapture) Stop() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if closer, ok := c.source.(io.Closer); ok {
			err = closer.Close()
		}
		c.wg.Wait()
	})
	return err
}

// openFile is replaced in tests
var openFile = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// OpenDevice opens the capture device at path, retrying up to attempts times
// with delay between tries.
func OpenDevice(ctx context.Context, path string, attempts int, delay time.Duration, logger *slog.Logger) (io.ReadCloser, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		device, err := openFile(path)
		if err == nil {
			return device, nil
		}
		lastErr = err
		logger.Warn("failed to open capture device",
			"component", "capture",
			"path", path,
			"attempt", attempt,
			"error", err,
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrCaptureUnavailable, path, lastErr)
}
