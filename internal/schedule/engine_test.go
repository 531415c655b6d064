package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/session-scheduling/internal/config"
)

var therapistID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// 2026-01-05 is a Monday.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		MinSessionMinutes:  15,
		MaxSessionMinutes:  240,
		DefaultStepMinutes: 15,
		MaxProjectionDays:  30,
		Location:           time.UTC,
	}
}

type fakeAvailability struct {
	windows   map[time.Weekday][]AvailabilityWindow
	overrides map[string]*AvailabilityOverride
}

func (f *fakeAvailability) GetWeeklyWindows(ctx context.Context, therapistID uuid.UUID, weekday time.Weekday) ([]AvailabilityWindow, error) {
	return f.windows[weekday], nil
}

func (f *fakeAvailability) GetOverride(ctx context.Context, therapistID uuid.UUID, date time.Time) (*AvailabilityOverride, error) {
	return f.overrides[date.Format("2006-01-02")], nil
}

type fakeBookings struct {
	bookings []Booking
}

func (f *fakeBookings) FindOverlapping(ctx context.Context, therapistID uuid.UUID, start, end time.Time) ([]Booking, error) {
	var out []Booking
	for _, b := range f.bookings {
		if b.Start.Before(end) && start.Before(b.End) {
			out = append(out, b)
		}
	}
	return out, nil
}

func window(weekday time.Weekday, startMinute, endMinute int) AvailabilityWindow {
	return AvailabilityWindow{
		ID:          uuid.New(),
		TherapistID: therapistID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		Active:      true,
	}
}

func newTestEngine(avail *fakeAvailability, bookings *fakeBookings, now time.Time) *Engine {
	if avail.windows == nil {
		avail.windows = map[time.Weekday][]AvailabilityWindow{}
	}
	if avail.overrides == nil {
		avail.overrides = map[string]*AvailabilityOverride{}
	}
	return NewEngine(avail, bookings, testConfig()).WithClock(func() time.Time { return now })
}

func slotStarts(slots []TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.Format("15:04"))
	}
	return out
}

func assertStarts(t *testing.T, slots []TimeSlot, want ...string) {
	t.Helper()
	got := slotStarts(slots)
	if len(got) != len(want) {
		t.Fatalf("expected %d slots %v, got %d: %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d: expected start %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}
}

func TestComputeSlots_WeeklyWindow(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {window(time.Monday, 9*60, 12*60)},
		},
	}
	engine := newTestEngine(avail, &fakeBookings{}, monday.AddDate(0, 0, -1))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 30)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}

	assertStarts(t, slots, "09:00", "09:30", "10:00", "10:30", "11:00")

	if !slots[0].End.Equal(monday.Add(10 * time.Hour)) {
		t.Fatalf("expected first slot to end 10:00, got %s", slots[0].End.Format("15:04"))
	}
}

func TestComputeSlots_ExcludesOverlappingBooking(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {window(time.Monday, 9*60, 12*60)},
		},
	}
	bookings := &fakeBookings{
		bookings: []Booking{{
			ID:          uuid.New(),
			TherapistID: therapistID,
			Start:       monday.Add(10 * time.Hour),
			End:         monday.Add(11 * time.Hour),
			Status:      "confirmed",
		}},
	}
	engine := newTestEngine(avail, bookings, monday.AddDate(0, 0, -1))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 30)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}

	// 09:30 ends 10:30 and overlaps; 10:00 and 10:30 start inside the booking.
	assertStarts(t, slots, "09:00", "11:00")
}

func TestComputeSlots_BackToBackBookingDoesNotConflict(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {window(time.Monday, 9*60, 11*60)},
		},
	}
	bookings := &fakeBookings{
		bookings: []Booking{{
			Start: monday.Add(9 * time.Hour),
			End:   monday.Add(10 * time.Hour),
		}},
	}
	engine := newTestEngine(avail, bookings, monday.AddDate(0, 0, -1))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 60)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}

	// [10:00,11:00) touches [09:00,10:00) but half-open intervals do not overlap.
	assertStarts(t, slots, "10:00")
}

func TestComputeSlots_MergesOverlappingWindows(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {
				window(time.Monday, 10*60, 12*60),
				window(time.Monday, 9*60, 11*60),
			},
		},
	}
	engine := newTestEngine(avail, &fakeBookings{}, monday.AddDate(0, 0, -1))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 30)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}

	// Same result as a single 09:00-12:00 window, no duplicates.
	assertStarts(t, slots, "09:00", "09:30", "10:00", "10:30", "11:00")
}

func TestComputeSlots_CustomHoursOverrideReplacesWeekly(t *testing.T) {
	start := 9 * 60
	end := 10 * 60
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {window(time.Monday, 8*60, 18*60)},
		},
		overrides: map[string]*AvailabilityOverride{
			monday.Format("2006-01-02"): {
				TherapistID: therapistID,
				Date:        monday,
				Kind:        OverrideCustomHours,
				StartMinute: &start,
				EndMinute:   &end,
			},
		},
	}
	engine := newTestEngine(avail, &fakeBookings{}, monday.AddDate(0, 0, -1))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 30)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}

	// Only a 60 minute slot fits in [09:00,10:00), regardless of weekly hours.
	assertStarts(t, slots, "09:00")
}

func TestComputeSlots_UnavailableOverrideYieldsEmpty(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {window(time.Monday, 9*60, 17*60)},
		},
		overrides: map[string]*AvailabilityOverride{
			monday.Format("2006-01-02"): {
				TherapistID: therapistID,
				Date:        monday,
				Kind:        OverrideUnavailable,
			},
		},
	}
	engine := newTestEngine(avail, &fakeBookings{}, monday.AddDate(0, 0, -1))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 30)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on an unavailable day, got %v", slotStarts(slots))
	}
}

func TestComputeSlots_SameDayLeadTime(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {window(time.Monday, 9*60, 12*60)},
		},
	}
	// It is 10:15 on the requested day.
	engine := newTestEngine(avail, &fakeBookings{}, monday.Add(10*time.Hour+15*time.Minute))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 30)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}

	assertStarts(t, slots, "10:30", "11:00")
}

func TestComputeSlots_PastDateRejected(t *testing.T) {
	engine := newTestEngine(&fakeAvailability{}, &fakeBookings{}, monday)

	_, err := engine.ComputeSlots(context.Background(), therapistID, monday.AddDate(0, 0, -1), 60, 30)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for past date, got %v", err)
	}
}

func TestComputeSlots_DurationBounds(t *testing.T) {
	engine := newTestEngine(&fakeAvailability{}, &fakeBookings{}, monday.AddDate(0, 0, -1))

	for _, duration := range []int{0, 14, 241} {
		if _, err := engine.ComputeSlots(context.Background(), therapistID, monday, duration, 30); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for duration %d, got %v", duration, err)
		}
	}

	if _, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, -5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for negative step, got %v", err)
	}
}

func TestComputeSlots_Deterministic(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {window(time.Monday, 9*60, 12*60)},
		},
	}
	bookings := &fakeBookings{
		bookings: []Booking{{
			Start: monday.Add(9*time.Hour + 30*time.Minute),
			End:   monday.Add(10*time.Hour + 30*time.Minute),
		}},
	}
	engine := newTestEngine(avail, bookings, monday.AddDate(0, 0, -1))

	first, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 15)
	if err != nil {
		t.Fatalf("first ComputeSlots failed: %v", err)
	}
	second, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 15)
	if err != nil {
		t.Fatalf("second ComputeSlots failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected identical results, got %d vs %d slots", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestComputeSlots_InactiveWindowIgnored(t *testing.T) {
	inactive := window(time.Monday, 9*60, 12*60)
	inactive.Active = false
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday: {inactive},
		},
	}
	engine := newTestEngine(avail, &fakeBookings{}, monday.AddDate(0, 0, -1))

	slots, err := engine.ComputeSlots(context.Background(), therapistID, monday, 60, 30)
	if err != nil {
		t.Fatalf("ComputeSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots from an inactive window, got %v", slotStarts(slots))
	}
}
