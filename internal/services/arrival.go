package services

import (
	"fmt"
	"time"
)

type ArrivalStatus string

const (
	ArrivalOnTime ArrivalStatus = "ontime"
	ArrivalLate   ArrivalStatus = "late"

	// Grace period after the service start before an arrival counts as late
	arrivalGracePeriod = 5 * time.Minute
)

var serviceStartLayouts = []string{"15:04:05", "15:04"}

// ParseServiceStart parses a service start time given as HH:MM:SS or HH:MM
func ParseServiceStart(serviceStartTime string) (time.Time, error) {
	var err error
	for _, layout := range serviceStartLayouts {
		var start time.Time
		if start, err = time.Parse(layout, serviceStartTime); err == nil {
			return start, nil
		}
	}
	return time.Time{}, err
}

// serviceStartOn returns the service start on the calendar day of checkInTime
func serviceStartOn(checkInTime time.Time, serviceStartTime string) (time.Time, bool) {
	start, err := ParseServiceStart(serviceStartTime)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(
		checkInTime.Year(),
		checkInTime.Month(),
		checkInTime.Day(),
		start.Hour(),
		start.Minute(),
		start.Second(),
		0,
		checkInTime.Location(),
	), true
}

// CalculateArrival determines if a check-in is on time or late relative to
// the service start (HH:MM:SS or HH:MM). Unparseable start times count as on time.
func CalculateArrival(checkInTime time.Time, serviceStartTime string) ArrivalStatus {
	start, ok := serviceStartOn(checkInTime, serviceStartTime)
	if !ok {
		return ArrivalOnTime
	}
	if checkInTime.Before(start.Add(arrivalGracePeriod)) {
		return ArrivalOnTime
	}
	return ArrivalLate
}

// DescribeArrival renders the arrival status for notifications
func DescribeArrival(checkInTime time.Time, serviceStartTime string) string {
	if CalculateArrival(checkInTime, serviceStartTime) == ArrivalOnTime {
		return "on time"
	}
	start, ok := serviceStartOn(checkInTime, serviceStartTime)
	if !ok {
		return "late"
	}
	return fmt.Sprintf("late by %d min", int(checkInTime.Sub(start).Minutes()))
}
