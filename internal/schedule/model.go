package schedule

import (
	"time"

	"github.com/google/uuid"
)

type OverrideKind string

const (
	OverrideUnavailable OverrideKind = "unavailable"
	OverrideCustomHours OverrideKind = "custom_hours"
)

// AvailabilityWindow is a recurring weekly open interval for a therapist.
// Start and end are minutes since midnight in the canonical zone, so a
// 09:00-12:00 window is {540, 720}.
type AvailabilityWindow struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AvailabilityOverride replaces the weekly schedule for one calendar date.
// StartMinute/EndMinute are set iff Kind is custom_hours.
type AvailabilityOverride struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
	Date        time.Time
	Kind        OverrideKind
	StartMinute *int
	EndMinute   *int
	Reason      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TimeSlot is a bookable [Start,End) interval. The engine only ever returns
// free slots, so there is no availability flag.
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

// Booking is the slice of an appointment the engine and projector care about.
type Booking struct {
	ID              uuid.UUID
	TherapistID     uuid.UUID
	Start           time.Time
	End             time.Time
	SessionType     string
	Status          string
	DurationMinutes int
}

// DailySummary is one date's worth of a schedule projection.
type DailySummary struct {
	Date               time.Time
	OverrideKind       *OverrideKind
	BookedCount        int
	AvailableSlotCount int
	Bookings           []Booking
}
