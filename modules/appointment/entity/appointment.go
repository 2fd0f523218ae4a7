package entity

import (
	"time"

	"clinic-sync/core/entity"

	"github.com/lib/pq"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCheckedIn = "checked_in"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Appointment is a scheduled clinic visit. Date is stored as YYYY-MM-DD and
// StartTime as HH:MM in the installation's local timezone.
type Appointment struct {
	entity.BaseEntity
	Code            string         `db:"code" json:"code"`
	Date            string         `db:"visit_date" json:"date"`
	StartTime       string         `db:"start_time" json:"start_time"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Status          string         `db:"status" json:"status"`
	ClientName      string         `db:"client_name" json:"client_name"`
	PetName         string         `db:"pet_name" json:"pet_name"`
	ServiceNames    pq.StringArray `db:"service_names" json:"service_names"`
	// RemoteDeleted is set when the linked Google event was cancelled on the
	// remote side. The local appointment is intentionally kept.
	RemoteDeleted bool `db:"remote_deleted" json:"remote_deleted"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// Publishable reports whether the appointment should exist on the remote
// calendar at all.
func (a *Appointment) Publishable() bool {
	switch a.Status {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusCompleted:
		return true
	default:
		return false
	}
}

// StartsAt resolves the date/time pair in the given location. Returns a zero
// time when either field is missing or malformed.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	if a.Date == "" || a.StartTime == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.StartTime, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
