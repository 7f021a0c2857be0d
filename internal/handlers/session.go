package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"church-checkin/internal/auth"
	"church-checkin/internal/services"
)

// Authenticator exchanges role secrets for session tokens
type Authenticator interface {
	Login(role auth.Role, secret string) (string, time.Time, error)
}

type SessionHandler struct {
	sessions Authenticator
}

func NewSessionHandler(sessions Authenticator) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loginRequest struct {
	Role   auth.Role `json:"role" binding:"required"`
	Secret string    `json:"secret" binding:"required"`
}

// HandleLogin issues a session token for a role secret
func (h *SessionHandler) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or scanner"})
		return
	}

	token, expiresAt, err := h.sessions.Login(req.Role, req.Secret)
	if errors.Is(err, services.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"role":      req.Role,
		"expiresAt": expiresAt,
	})
}
