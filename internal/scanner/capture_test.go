package scanner

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "decode channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decode")
		return ""
	}
}

func TestLineCaptureDecodes(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, w := io.Pipe()
	capture := NewLineCapture(r, nil)

	go func() {
		_, _ = io.WriteString(w, "abc123\n\n  \nhttps://church.example.org/profile/def456\n")
	}()
	assert.Equal(t, "abc123", receive(t, capture.Decodes()))
	assert.Equal(t, "https://church.example.org/profile/def456", receive(t, capture.Decodes()))

	require.NoError(t, capture.Stop())
	_, ok := <-capture.Decodes()
	assert.False(t, ok)
}

func TestLineCapturePauseDropsDecodes(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, w := io.Pipe()
	capture := NewLineCapture(r, nil)
	defer capture.Stop()

	capture.Pause()
	assert.True(t, capture.Paused())
	_, err := io.WriteString(w, "dropped\n")
	require.NoError(t, err)
	// The scanner only reads again after handling the buffered line
	_, err = io.WriteString(w, "\n")
	require.NoError(t, err)

	capture.Resume()
	go func() {
		_, _ = io.WriteString(w, "kept\n")
	}()
	assert.Equal(t, "kept", receive(t, capture.Decodes()))
}

func TestLineCaptureEndsAtEOF(t *testing.T) {
	defer goleak.VerifyNone(t)

	capture := NewLineCapture(strings.NewReader("only\n"), nil)
	assert.Equal(t, "only", receive(t, capture.Decodes()))
	_, ok := <-capture.Decodes()
	assert.False(t, ok)
	assert.NoError(t, capture.Stop())
}

func TestOpenDeviceRetries(t *testing.T) {
	original := openFile
	defer func() { openFile = original }()

	calls := 0
	openFile = func(path string) (io.ReadCloser, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("permission denied")
		}
		return io.NopCloser(strings.NewReader("")), nil
	}

	device, err := OpenDevice(context.Background(), "/dev/hidraw0", 3, time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, device.Close())
	assert.Equal(t, 3, calls)
}

func TestOpenDeviceGivesUp(t *testing.T) {
	original := openFile
	defer func() { openFile = original }()

	openFile = func(path string) (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	}

	_, err := OpenDevice(context.Background(), "/dev/hidraw0", 2, time.Millisecond, nil)
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
	assert.Contains(t, err.Error(), "no such device")
}
