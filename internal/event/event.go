// Package event provides an in-process publish/subscribe bus used to push
// attendance changes to interested parties (dashboard streams, notifiers).
package event

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SubscriberQueueSize = 20
	AsyncQueueSize      = 256
	AsyncWorkerPoolSize = 2
)

type EventType string

type SubscriberId int

type HandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Type      EventType
	Data      any
}

func NewEvent(eventType EventType, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type asyncEvent struct {
	eventType EventType
	event     Event
}

// subscriber owns one buffered channel. Deliveries to a full channel are
// dropped so a slow consumer never stalls the publisher.
type subscriber struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func (s *subscriber) deliver(evt Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type Bus struct {
	subscribers map[EventType]map[SubscriberId]*subscriber
	lastSubId   SubscriberId
	mu          sync.RWMutex
	logger      *slog.Logger
	metrics     *busMetrics

	asyncQueue chan asyncEvent
	asyncWg    sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type busMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

// NewBus creates a Bus and starts its async delivery workers
func NewBus(promRegistry prometheus.Registerer, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	b := &Bus{
		subscribers: make(map[EventType]map[SubscriberId]*subscriber),
		logger:      logger.With("component", "event"),
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		b.metrics = &busMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "event_published_total",
				Help: "Total number of events published by type",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "event_dropped_total",
				Help: "Total number of event deliveries dropped for slow subscribers",
			}, []string{"type"}),
		}
		promRegistry.MustRegister(b.metrics.published, b.metrics.dropped)
	}
	for range AsyncWorkerPoolSize {
		b.asyncWg.Add(1)
		go b.asyncWorker()
	}
	return b
}

func (b *Bus) asyncWorker() {
	defer b.asyncWg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case ae := <-b.asyncQueue:
			b.Publish(ae.eventType, ae.event)
		}
	}
}

// Subscribe returns a channel receiving events of the given type
func (b *Bus) Subscribe(eventType EventType) (SubscriberId, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscriber{ch: make(chan Event, SubscriberQueueSize)}
	b.lastSubId++
	subId := b.lastSubId
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberId]*subscriber)
	}
	b.subscribers[eventType][subId] = sub
	return subId, sub.ch
}

// SubscribeFunc calls handlerFunc for every event of the given type until
// the subscription is removed or the bus is stopped
func (b *Bus) SubscribeFunc(eventType EventType, handlerFunc HandlerFunc) SubscriberId {
	subId, ch := b.Subscribe(eventType)
	go func() {
		for evt := range ch {
			handlerFunc(evt)
		}
	}()
	return subId
}

func (b *Bus) Unsubscribe(eventType EventType, subId SubscriberId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[eventType]
	if !ok {
		return
	}
	if sub, ok := subs[subId]; ok {
		sub.close()
		delete(subs, subId)
	}
}

// Publish delivers the event to the current subscribers of eventType
func (b *Bus) Publish(eventType EventType, evt Event) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers[eventType]))
	for _, sub := range b.subscribers[eventType] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.published.WithLabelValues(string(eventType)).Inc()
	}
	for _, sub := range subs {
		if !sub.deliver(evt) {
			b.logger.Warn("dropped event for slow subscriber", "type", string(eventType))
			if b.metrics != nil {
				b.metrics.dropped.WithLabelValues(string(eventType)).Inc()
			}
		}
	}
}

// PublishAsync queues the event for delivery by the worker pool. Returns
// false when the bus is stopped or the queue is full.
func (b *Bus) PublishAsync(eventType EventType, evt Event) bool {
	select {
	case <-b.stopCh:
		return false
	default:
	}
	select {
	case b.asyncQueue <- asyncEvent{eventType: eventType, event: evt}:
		return true
	default:
		b.logger.Warn("async event queue full", "type", string(eventType))
		return false
	}
}

// Stop halts the workers and closes every subscriber channel
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.asyncWg.Wait()
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, subs := range b.subscribers {
			for subId, sub := range subs {
				sub.close()
				delete(subs, subId)
			}
		}
	})
}
