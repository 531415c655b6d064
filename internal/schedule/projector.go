package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Projector walks a bounded date range and produces a calendar-style summary
// per date: override kind, booked count, free-slot count and the day's
// bookings. It exists so callers can render calendars without touching the
// slot math directly.
type Projector struct {
	engine *Engine
}

func NewProjector(engine *Engine) *Projector {
	return &Projector{engine: engine}
}

// Project summarizes every date from startDate through endDate inclusive.
// The span between the two dates may not exceed the configured maximum
// (30 days by default). Free slots are counted for the given duration at the
// default step; dates already in the past report zero available slots.
func (p *Projector) Project(ctx context.Context, therapistID uuid.UUID, startDate, endDate time.Time, durationMinutes int) ([]DailySummary, error) {
	cfg := p.engine.cfg

	step := cfg.DefaultStepMinutes
	if err := p.engine.checkArgs(durationMinutes, step); err != nil {
		return nil, err
	}

	start := dateOnly(startDate, cfg.Location)
	end := dateOnly(endDate, cfg.Location)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrInvalidArgument)
	}

	rangeDays := daysBetween(start, end)
	if rangeDays > cfg.MaxProjectionDays {
		return nil, fmt.Errorf("%w: range spans %d days, maximum is %d", ErrRangeTooLarge, rangeDays, cfg.MaxProjectionDays)
	}

	today := dateOnly(p.engine.now(), cfg.Location)

	var summaries []DailySummary
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		summary, err := p.summarizeDay(ctx, therapistID, day, today, durationMinutes, step)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (p *Projector) summarizeDay(ctx context.Context, therapistID uuid.UUID, day, today time.Time, durationMinutes, step int) (DailySummary, error) {
	summary := DailySummary{Date: day}

	override, err := p.engine.availability.GetOverride(ctx, therapistID, day)
	if err != nil {
		return DailySummary{}, fmt.Errorf("load override for %s: %w", day.Format("2006-01-02"), err)
	}
	if override != nil {
		kind := override.Kind
		summary.OverrideKind = &kind
	}

	bookings, err := p.engine.bookings.FindOverlapping(ctx, therapistID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return DailySummary{}, fmt.Errorf("load bookings for %s: %w", day.Format("2006-01-02"), err)
	}
	summary.Bookings = bookings
	summary.BookedCount = len(bookings)

	if !day.Before(today) {
		slots, err := p.engine.slotsOn(ctx, therapistID, day, durationMinutes, step)
		if err != nil {
			return DailySummary{}, err
		}
		summary.AvailableSlotCount = len(slots)
	}

	return summary, nil
}

// daysBetween returns the whole days from a to b, both at midnight.
func daysBetween(a, b time.Time) int {
	days := 0
	for day := a; day.Before(b); day = day.AddDate(0, 0, 1) {
		days++
	}
	return days
}
