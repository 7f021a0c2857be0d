// Package repository defines repository interfaces for data access
package repository

import (
	"context"
	"errors"

	"church-checkin/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)

// IdentityRepository defines the interface for member data access
type IdentityRepository interface {
	// GetByCode retrieves an identity by its scannable code
	GetByCode(ctx context.Context, code string) (*models.Identity, error)
	// Create stores a newly registered identity
	Create(ctx context.Context, identity *models.Identity) error
	// Update saves profile edits; the code is never changed
	Update(ctx context.Context, identity *models.Identity) error
	// Count returns the number of registered identities
	Count(ctx context.Context) (int64, error)
}

// AttendanceRepository defines the interface for attendance ledger access
type AttendanceRepository interface {
	// ExistsForDay checks if the identity already has an event on the service day
	ExistsForDay(ctx context.Context, identityID, serviceDay string) (bool, error)
	// Create records a new attendance event. Returns ErrDuplicate when the
	// (identity, service day) pair is already present.
	Create(ctx context.Context, event *models.AttendanceEvent) error
	// ListByDay returns the attendees of a service day, newest first
	ListByDay(ctx context.Context, serviceDay string) ([]models.Attendee, error)
}
