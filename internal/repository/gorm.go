package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"church-checkin/internal/models"
)

// GormIdentityRepository implements IdentityRepository on a relational database
type GormIdentityRepository struct {
	db *gorm.DB
}

// NewGormIdentityRepository creates repository
func NewGormIdentityRepository(db *gorm.DB) *GormIdentityRepository {
	return &GormIdentityRepository{db: db}
}

func (r *GormIdentityRepository) GetByCode(ctx context.Context, code string) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &identity, nil
}

func (r *GormIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

func (r *GormIdentityRepository) Update(ctx context.Context, identity *models.Identity) error {
	result := r.db.WithContext(ctx).
		Model(identity).
		Select("first_name", "last_name", "ministry", "network", "email", "phone", "updated_at").
		Updates(identity)
	if result.Error != nil {
		return fmt.Errorf("failed to update identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormIdentityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Identity{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}
	return count, nil
}

// GormAttendanceRepository implements AttendanceRepository on a relational database
type GormAttendanceRepository struct {
	db *gorm.DB
}

// NewGormAttendanceRepository creates repository
func NewGormAttendanceRepository(db *gorm.DB) *GormAttendanceRepository {
	return &GormAttendanceRepository{db: db}
}

func (r *GormAttendanceRepository) ExistsForDay(ctx context.Context, identityID, serviceDay string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AttendanceEvent{}).
		Where("identity_id = ? AND service_day = ?", identityID, serviceDay).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check attendance: %w", err)
	}
	return count > 0, nil
}

func (r *GormAttendanceRepository) Create(ctx context.Context, event *models.AttendanceEvent) error {
	// Omit the association so a preloaded identity is never upserted
	if err := r.db.WithContext(ctx).Omit("Identity").Create(event).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create attendance event: %w", err)
	}
	return nil
}

func (r *GormAttendanceRepository) ListByDay(ctx context.Context, serviceDay string) ([]models.Attendee, error) {
	var attendees []models.Attendee
	err := r.db.WithContext(ctx).
		Table("attendance_events AS a").
		Select("a.identity_id, i.code, i.first_name, i.last_name, i.ministry, i.network, a.recorded_at, a.station").
		Joins("JOIN identities AS i ON i.id = a.identity_id").
		Where("a.service_day = ?", serviceDay).
		Order("a.recorded_at DESC").
		Scan(&attendees).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	return attendees, nil
}

// isUniqueViolation recognizes constraint errors from the sqlite and postgres
// drivers, with or without gorm error translation enabled.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
