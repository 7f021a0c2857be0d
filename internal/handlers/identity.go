package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	qrcode "github.com/skip2/go-qrcode"

	"church-checkin/internal/models"
	"church-checkin/internal/repository"
	"church-checkin/internal/services"
)

const qrSize = 512

// IdentityRegistry manages member identities
type IdentityRegistry interface {
	Register(ctx context.Context, input services.ProfileInput) (*models.Identity, error)
	Get(ctx context.Context, code string) (*models.Identity, error)
	UpdateProfile(ctx context.Context, code string, input services.ProfileInput) (*models.Identity, error)
}

// IdentityHandler serves registration, profile edits and member QR cards
type IdentityHandler struct {
	registry  IdentityRegistry
	publicURL string
}

func NewIdentityHandler(registry IdentityRegistry, publicURL string) *IdentityHandler {
	return &IdentityHandler{
		registry:  registry,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// ProfileURL is the URL encoded in a member's QR card
func (h *IdentityHandler) ProfileURL(code string) string {
	return h.publicURL + "/profile/" + code
}

func (h *IdentityHandler) HandleRegister(c *gin.Context) {
	var input services.ProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	identity, err := h.registry.Register(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"identity":   identity,
		"profileUrl": h.ProfileURL(identity.Code),
	})
}

func (h *IdentityHandler) HandleGet(c *gin.Context) {
	identity, err := h.registry.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (h *IdentityHandler) HandleUpdate(c *gin.Context) {
	var input services.ProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	identity, err := h.registry.UpdateProfile(c.Request.Context(), c.Param("code"), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// HandleQR renders the member's QR card as a PNG
func (h *IdentityHandler) HandleQR(c *gin.Context) {
	identity, err := h.registry.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	png, err := qrcode.Encode(h.ProfileURL(identity.Code), qrcode.Medium, qrSize)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *IdentityHandler) writeError(c *gin.Context, err error) {
	var validationErrs validation.Errors
	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile", "fields": validationErrs})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Identity not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Identity request failed"})
	}
}
