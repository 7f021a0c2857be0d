// Package handlers provides HTTP handlers for API endpoints
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"church-checkin/internal/models"
	"church-checkin/internal/services"
)

// CheckInHandler handles scanner check-in requests
type CheckInHandler struct {
	service services.CheckInProcessor
}

// NewCheckInHandler creates a new check-in handler
func NewCheckInHandler(service services.CheckInProcessor) *CheckInHandler {
	return &CheckInHandler{service: service}
}

// HandleCheckIn records attendance for a scanned code. Not found and already
// recorded are answered with 200 and success=false.
func (h *CheckInHandler) HandleCheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.service.CheckIn(c.Request.Context(), req.Code, req.Station)
	if errors.Is(err, services.ErrInvalidCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Check-in failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
