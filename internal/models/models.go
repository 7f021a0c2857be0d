// Package models contains data structures for the application
package models

import (
	"time"
)

// ServiceDayLayout is the calendar date format used for service days
const ServiceDayLayout = "2006-01-02"

// Identity represents a registered member keyed by a scannable code
type Identity struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Code      string    `gorm:"size:64;not null;uniqueIndex" json:"code"`
	FirstName string    `gorm:"size:100;not null" json:"firstName"`
	LastName  string    `gorm:"size:100;not null" json:"lastName"`
	Ministry  string    `gorm:"size:100;index" json:"ministry"`
	Network   string    `gorm:"size:100;index" json:"network"`
	Email     string    `gorm:"size:255" json:"email,omitempty"`
	Phone     string    `gorm:"size:32" json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Identity) TableName() string {
	return "identities"
}

// FullName returns the display name of the member
func (i *Identity) FullName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// AttendanceEvent represents a single check-in of an identity on a service day.
// At most one exists per (IdentityID, ServiceDay).
type AttendanceEvent struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	IdentityID string    `gorm:"size:36;not null;uniqueIndex:ux_attendance_identity_day,priority:1" json:"identityId"`
	ServiceDay string    `gorm:"size:10;not null;uniqueIndex:ux_attendance_identity_day,priority:2;index" json:"serviceDay"`
	RecordedAt time.Time `gorm:"not null" json:"recordedAt"`
	Station    string    `gorm:"size:100" json:"station,omitempty"`

	Identity *Identity `gorm:"foreignKey:IdentityID" json:"identity,omitempty"`
}

func (AttendanceEvent) TableName() string {
	return "attendance_events"
}

// Attendee is an attendance event joined with its identity for read models
type Attendee struct {
	IdentityID string    `json:"identityId"`
	Code       string    `json:"code"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Ministry   string    `json:"ministry"`
	Network    string    `json:"network"`
	RecordedAt time.Time `json:"recordedAt"`
	Station    string    `json:"station,omitempty"`
}

// CheckInRequest is the body of a check-in call
type CheckInRequest struct {
	Code    string `json:"code"`
	Station string `json:"station,omitempty"`
}

// CheckInKind classifies the outcome of a check-in
type CheckInKind string

const (
	CheckInRecorded        CheckInKind = "recorded"
	CheckInNotFound        CheckInKind = "not_found"
	CheckInAlreadyRecorded CheckInKind = "already_recorded"
)

// IdentitySummary holds the display attributes returned on a successful check-in
type IdentitySummary struct {
	Code      string `json:"code"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Ministry  string `json:"ministry"`
	Network   string `json:"network"`
}

// CheckInResult is the structured outcome of a check-in.
// Expected failures (not found, already recorded) are results, not errors.
type CheckInResult struct {
	Success    bool             `json:"success"`
	Kind       CheckInKind      `json:"kind"`
	Error      string           `json:"error,omitempty"`
	Identity   *IdentitySummary `json:"identity,omitempty"`
	ServiceDay string           `json:"serviceDay,omitempty"`
	RecordedAt *time.Time       `json:"recordedAt,omitempty"`
}

// Breakdown is a single named count in a dashboard grouping
type Breakdown struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DashboardStats is the aggregate view of a service day
type DashboardStats struct {
	Date            string      `json:"date"`
	TotalIdentities int64       `json:"totalIdentities"`
	TotalAttendance int         `json:"totalAttendance"`
	Ministries      []Breakdown `json:"ministries"`
	Networks        []Breakdown `json:"networks"`
	Attendees       []Attendee  `json:"attendees"`
	Page            int         `json:"page"`
	TotalPages      int         `json:"totalPages"`
}

// Summarize converts an identity to the fields shown to scanner operators
func (i *Identity) Summarize() *IdentitySummary {
	return &IdentitySummary{
		Code:      i.Code,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Ministry:  i.Ministry,
		Network:   i.Network,
	}
}
