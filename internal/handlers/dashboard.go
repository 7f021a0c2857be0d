package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"church-checkin/internal/event"
	"church-checkin/internal/services"
)

const streamKeepAlive = 25 * time.Second

// EventSubscriber is the part of the event bus used by the dashboard stream
type EventSubscriber interface {
	Subscribe(eventType event.EventType) (event.SubscriberId, <-chan event.Event)
	Unsubscribe(eventType event.EventType, subId event.SubscriberId)
}

// DashboardHandler serves the aggregate view of a service day
type DashboardHandler struct {
	stats  services.StatsProvider
	events EventSubscriber
	logger *slog.Logger
}

func NewDashboardHandler(stats services.StatsProvider, events EventSubscriber, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &DashboardHandler{
		stats:  stats,
		events: events,
		logger: logger.With("component", "dashboard"),
	}
}

// parsePage reads the page query parameter, defaulting to 1
func parsePage(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("page"))
	if raw == "" {
		return 1, nil
	}
	page, err := cast.ToIntE(raw)
	if err != nil || page < 1 {
		return 0, errors.New("page must be a positive integer")
	}
	return page, nil
}

func (h *DashboardHandler) HandleDashboard(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.stats.Stats(c.Request.Context(), page, c.Query("date"))
	if errors.Is(err, services.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleStream pushes a fresh dashboard snapshot as a server-sent event each
// time attendance is recorded for the streamed date.
func (h *DashboardHandler) HandleStream(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	initial, err := h.stats.Stats(ctx, page, c.Query("date"))
	if errors.Is(err, services.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	date := initial.Date

	subId, events := h.events.Subscribe(event.AttendanceRecordedEventType)
	defer h.events.Unsubscribe(event.AttendanceRecordedEventType, subId)

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("dashboard", initial)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case evt, ok := <-events:
			if !ok {
				return false
			}
			recorded, ok := evt.Data.(event.AttendanceRecordedEvent)
			if !ok || recorded.ServiceDay != date {
				return true
			}
			stats, err := h.stats.Stats(ctx, page, date)
			if err != nil {
				h.logger.Warn("failed to refresh streamed dashboard", "date", date, "error", err)
				return true
			}
			c.SSEvent("dashboard", stats)
			return true
		}
	})
}
