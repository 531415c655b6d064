package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestProjector(avail *fakeAvailability, bookings *fakeBookings, now time.Time) *Projector {
	return NewProjector(newTestEngine(avail, bookings, now))
}

func TestProject_RangeLimit(t *testing.T) {
	projector := newTestProjector(&fakeAvailability{}, &fakeBookings{}, monday)

	// 30 whole days between the endpoints is the configured maximum.
	ok, err := projector.Project(context.Background(), therapistID, monday, monday.AddDate(0, 0, 30), 60)
	if err != nil {
		t.Fatalf("expected 30-day span to succeed, got %v", err)
	}
	if len(ok) != 31 {
		t.Fatalf("expected 31 daily summaries, got %d", len(ok))
	}

	_, err = projector.Project(context.Background(), therapistID, monday, monday.AddDate(0, 0, 31), 60)
	if !errors.Is(err, ErrRangeTooLarge) {
		t.Fatalf("expected ErrRangeTooLarge for 31-day span, got %v", err)
	}
}

func TestProject_EndBeforeStart(t *testing.T) {
	projector := newTestProjector(&fakeAvailability{}, &fakeBookings{}, monday)

	_, err := projector.Project(context.Background(), therapistID, monday, monday.AddDate(0, 0, -1), 60)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestProject_SingleDay(t *testing.T) {
	projector := newTestProjector(&fakeAvailability{}, &fakeBookings{}, monday)

	summaries, err := projector.Project(context.Background(), therapistID, monday, monday, 60)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected a single summary, got %d", len(summaries))
	}
	if !summaries[0].Date.Equal(monday) {
		t.Fatalf("expected summary for %s, got %s", monday, summaries[0].Date)
	}
}

func TestProject_SummaryContents(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	wednesday := monday.AddDate(0, 0, 2)

	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday:  {window(time.Monday, 9*60, 12*60)},
			time.Tuesday: {window(time.Tuesday, 9*60, 12*60)},
		},
		overrides: map[string]*AvailabilityOverride{
			tuesday.Format("2006-01-02"): {
				TherapistID: therapistID,
				Date:        tuesday,
				Kind:        OverrideUnavailable,
			},
		},
	}
	bookings := &fakeBookings{
		bookings: []Booking{
			{
				ID:          uuid.New(),
				TherapistID: therapistID,
				Start:       monday.Add(9 * time.Hour),
				End:         monday.Add(10 * time.Hour),
				Status:      "confirmed",
			},
			{
				ID:          uuid.New(),
				TherapistID: therapistID,
				Start:       monday.Add(11 * time.Hour),
				End:         monday.Add(12 * time.Hour),
				Status:      "requested",
			},
		},
	}
	projector := newTestProjector(avail, bookings, monday)

	summaries, err := projector.Project(context.Background(), therapistID, monday, wednesday, 60)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}

	mon := summaries[0]
	if mon.BookedCount != 2 || len(mon.Bookings) != 2 {
		t.Fatalf("expected 2 bookings on Monday, got count=%d len=%d", mon.BookedCount, len(mon.Bookings))
	}
	// Window 09:00-12:00 at step 15 with bookings [09:00,10:00) and
	// [11:00,12:00) leaves exactly one 60 minute slot at 10:00.
	if mon.AvailableSlotCount != 1 {
		t.Fatalf("expected 1 free slot on Monday, got %d", mon.AvailableSlotCount)
	}
	if mon.OverrideKind != nil {
		t.Fatalf("expected no override on Monday, got %v", *mon.OverrideKind)
	}

	tue := summaries[1]
	if tue.OverrideKind == nil || *tue.OverrideKind != OverrideUnavailable {
		t.Fatalf("expected unavailable override on Tuesday, got %v", tue.OverrideKind)
	}
	if tue.AvailableSlotCount != 0 {
		t.Fatalf("expected no free slots on an unavailable day, got %d", tue.AvailableSlotCount)
	}

	wed := summaries[2]
	if wed.BookedCount != 0 || wed.AvailableSlotCount != 0 {
		t.Fatalf("expected an empty Wednesday (no windows), got booked=%d free=%d", wed.BookedCount, wed.AvailableSlotCount)
	}
}

func TestProject_PastDaysReportZeroFreeSlots(t *testing.T) {
	avail := &fakeAvailability{
		windows: map[time.Weekday][]AvailabilityWindow{
			time.Monday:  {window(time.Monday, 9*60, 12*60)},
			time.Tuesday: {window(time.Tuesday, 9*60, 12*60)},
		},
	}
	tuesday := monday.AddDate(0, 0, 1)
	// Now is Tuesday: Monday is in the past but still inside the range.
	projector := newTestProjector(avail, &fakeBookings{}, tuesday)

	summaries, err := projector.Project(context.Background(), therapistID, monday, tuesday, 60)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}

	if summaries[0].AvailableSlotCount != 0 {
		t.Fatalf("expected zero free slots for a past day, got %d", summaries[0].AvailableSlotCount)
	}
	if summaries[1].AvailableSlotCount == 0 {
		t.Fatal("expected free slots for the current day")
	}
}

func TestProject_InvalidDuration(t *testing.T) {
	projector := newTestProjector(&fakeAvailability{}, &fakeBookings{}, monday)

	_, err := projector.Project(context.Background(), therapistID, monday, monday, 5)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
