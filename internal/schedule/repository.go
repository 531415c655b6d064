package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AvailabilityRepository reads a therapist's recurring windows and date
// overrides. GetOverride returns (nil, nil) when the date has no override.
type AvailabilityRepository interface {
	GetWeeklyWindows(ctx context.Context, therapistID uuid.UUID, weekday time.Weekday) ([]AvailabilityWindow, error)
	GetOverride(ctx context.Context, therapistID uuid.UUID, date time.Time) (*AvailabilityOverride, error)
}

// BookingReader supplies live (requested or confirmed) bookings that overlap
// [start, end) for conflict checks and calendar rendering.
type BookingReader interface {
	FindOverlapping(ctx context.Context, therapistID uuid.UUID, start, end time.Time) ([]Booking, error)
}
