package event_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"church-checkin/internal/event"
	"church-checkin/internal/models"
)

func TestBusSingleSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewBus(nil, nil)
	defer eb.Stop()

	_, ch := eb.Subscribe(event.AttendanceRecordedEventType)
	eb.Publish(event.AttendanceRecordedEventType, event.NewEvent(
		event.AttendanceRecordedEventType,
		event.AttendanceRecordedEvent{ServiceDay: "2026-10-18", Attendee: models.Attendee{Code: "abc123"}},
	))

	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		data, ok := evt.Data.(event.AttendanceRecordedEvent)
		require.True(t, ok, "event data was not of expected type, got %T", evt.Data)
		require.Equal(t, "abc123", data.Attendee.Code)
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestBusPublishAsync(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewBus(prometheus.NewRegistry(), nil)
	defer eb.Stop()

	got := make(chan event.Event, 1)
	eb.SubscribeFunc("test.event", func(evt event.Event) { got <- evt })
	require.True(t, eb.PublishAsync("test.event", event.NewEvent("test.event", 42)))

	select {
	case evt := <-got:
		require.Equal(t, 42, evt.Data)
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for async event")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewBus(nil, nil)
	defer eb.Stop()

	subId, ch := eb.Subscribe("test.event")
	eb.Unsubscribe("test.event", subId)
	_, ok := <-ch
	require.False(t, ok)

	// Publishing without subscribers is a no-op
	eb.Publish("test.event", event.NewEvent("test.event", nil))
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewBus(nil, nil)
	defer eb.Stop()

	_, ch := eb.Subscribe("test.event")
	for i := 0; i < event.SubscriberQueueSize+5; i++ {
		eb.Publish("test.event", event.NewEvent("test.event", i))
	}
	require.Len(t, ch, event.SubscriberQueueSize)
}

func TestBusStopRejectsAsync(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewBus(nil, nil)
	_, ch := eb.Subscribe("test.event")
	eb.Stop()
	eb.Stop()
	require.False(t, eb.PublishAsync("test.event", event.NewEvent("test.event", 1)))
	_, ok := <-ch
	require.False(t, ok)
}
