package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/session-scheduling/internal/config"
)

// Engine computes the bookable slots for a therapist on a given date from
// recurring weekly windows, date overrides and live bookings. It is pure given
// its repository inputs; the only clock it consults is injectable.
type Engine struct {
	availability AvailabilityRepository
	bookings     BookingReader
	cfg          config.Config
	now          func() time.Time
}

func NewEngine(availability AvailabilityRepository, bookings BookingReader, cfg config.Config) *Engine {
	return &Engine{
		availability: availability,
		bookings:     bookings,
		cfg:          cfg,
		now:          time.Now,
	}
}

// WithClock replaces the engine's clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ComputeSlots returns the free slots of exactly durationMinutes on the given
// date, probed at stepMinutes granularity, in ascending start order. An empty
// result is not an error. A zero stepMinutes selects the configured default.
func (e *Engine) ComputeSlots(ctx context.Context, therapistID uuid.UUID, date time.Time, durationMinutes, stepMinutes int) ([]TimeSlot, error) {
	if stepMinutes == 0 {
		stepMinutes = e.cfg.DefaultStepMinutes
	}
	if err := e.checkArgs(durationMinutes, stepMinutes); err != nil {
		return nil, err
	}

	day := dateOnly(date, e.cfg.Location)
	today := dateOnly(e.now(), e.cfg.Location)
	if day.Before(today) {
		return nil, fmt.Errorf("%w: date %s is in the past", ErrInvalidArgument, day.Format("2006-01-02"))
	}

	return e.slotsOn(ctx, therapistID, day, durationMinutes, stepMinutes)
}

func (e *Engine) checkArgs(durationMinutes, stepMinutes int) error {
	if durationMinutes < e.cfg.MinSessionMinutes || durationMinutes > e.cfg.MaxSessionMinutes {
		return fmt.Errorf("%w: duration must be between %d and %d minutes",
			ErrInvalidArgument, e.cfg.MinSessionMinutes, e.cfg.MaxSessionMinutes)
	}
	if stepMinutes <= 0 || stepMinutes > e.cfg.MaxSessionMinutes {
		return fmt.Errorf("%w: step must be between 1 and %d minutes", ErrInvalidArgument, e.cfg.MaxSessionMinutes)
	}
	return nil
}

// slotsOn does the actual computation for a date already normalized to
// midnight in the canonical zone. Past dates simply yield no slots, which is
// what the projector wants when it walks a range that reaches back in time.
func (e *Engine) slotsOn(ctx context.Context, therapistID uuid.UUID, day time.Time, durationMinutes, stepMinutes int) ([]TimeSlot, error) {
	loc := e.cfg.Location

	windows, err := e.availability.GetWeeklyWindows(ctx, therapistID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load weekly windows: %w", err)
	}
	spans := mergeWindows(windows)

	override, err := e.availability.GetOverride(ctx, therapistID, day)
	if err != nil {
		return nil, fmt.Errorf("load override: %w", err)
	}
	if override != nil {
		switch override.Kind {
		case OverrideUnavailable:
			spans = nil
		case OverrideCustomHours:
			spans = []minuteSpan{{start: *override.StartMinute, end: *override.EndMinute}}
		}
	}

	if len(spans) == 0 {
		return nil, nil
	}

	nextDay := day.AddDate(0, 0, 1)
	busy, err := e.bookings.FindOverlapping(ctx, therapistID, day, nextDay)
	if err != nil {
		return nil, fmt.Errorf("load overlapping bookings: %w", err)
	}

	now := e.now().In(loc)
	sameDay := dateOnly(now, loc).Equal(day)
	earliest := now.Add(e.cfg.MinLeadTime)

	var slots []TimeSlot
	for _, span := range spans {
		for m := span.start; m+durationMinutes <= span.end; m += stepMinutes {
			start := minuteOfDay(day, m, loc)
			end := start.Add(time.Duration(durationMinutes) * time.Minute)

			if sameDay && start.Before(earliest) {
				continue
			}
			if overlapsAny(start, end, busy) {
				continue
			}
			slots = append(slots, TimeSlot{Start: start, End: end})
		}
	}

	return slots, nil
}

type minuteSpan struct {
	start int
	end   int
}

// mergeWindows collapses a therapist's active windows for one weekday into a
// minimal disjoint set of spans sorted by start.
func mergeWindows(windows []AvailabilityWindow) []minuteSpan {
	var spans []minuteSpan
	for _, w := range windows {
		if !w.Active || w.StartMinute >= w.EndMinute {
			continue
		}
		spans = append(spans, minuteSpan{start: w.StartMinute, end: w.EndMinute})
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// overlapsAny reports whether [start,end) intersects any busy interval.
// Half-open intervals: [a,b) overlaps [c,d) iff a < d && c < b.
func overlapsAny(start, end time.Time, busy []Booking) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func minuteOfDay(day time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minute, 0, 0, loc)
}
