package models

import "time"

// MealStatus is the lifecycle state of a meal registration.
type MealStatus string

const (
	MealStatusRegistered MealStatus = "registered"
	MealStatusEating     MealStatus = "eating"
	MealStatusFinished   MealStatus = "finished"
	MealStatusUnknown    MealStatus = "unknown"
)

// MealRegistration records a registrant queuing for, or eating with, a group.
// Status is a stored snapshot; the displayed state is always derived.
type MealRegistration struct {
	ID             string     `db:"id" json:"id"`
	RegistrantID   string     `db:"registrant_id" json:"registrantId"`
	RegistrantName string     `db:"registrant_name" json:"registrantName"`
	RegistrantCode string     `db:"registrant_code" json:"registrantCode"`
	Group          string     `db:"group_name" json:"group"`
	Date           time.Time  `db:"date" json:"date"`
	RegisteredAt   time.Time  `db:"registered_at" json:"registeredAt"`
	EnteredAt      *time.Time `db:"entered_at" json:"enteredAt,omitempty"`
	Status         MealStatus `db:"status" json:"status"`
}

// DayOf returns the calendar day of t in loc as a UTC midnight timestamp.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", raw, time.UTC)
}
