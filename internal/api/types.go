package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/session-scheduling/internal/schedule"
	"github.com/mindwell/session-scheduling/internal/session"
)

type RosterEntryRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type CreateSessionRequest struct {
	SessionType     string               `json:"session_type"`
	TherapistID     string               `json:"therapist_id"`
	ScheduledAt     time.Time            `json:"scheduled_at"`
	DurationMinutes int                  `json:"duration_minutes"`
	Roster          []RosterEntryRequest `json:"roster"`
	Title           *string              `json:"title,omitempty"`
	Description     *string              `json:"description,omitempty"`
	Notes           *string              `json:"notes,omitempty"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type CancelSessionRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

type AttendanceRequest struct {
	Attended bool `json:"attended"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type BookingResponse struct {
	ID          uuid.UUID `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	SessionType string    `json:"session_type"`
	Status      string    `json:"status"`
}

type DailySummaryResponse struct {
	Date               string            `json:"date"`
	OverrideKind       *string           `json:"override_kind,omitempty"`
	BookedCount        int               `json:"booked_count"`
	AvailableSlotCount int               `json:"available_slot_count"`
	Bookings           []BookingResponse `json:"bookings"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	TherapistID        uuid.UUID  `json:"therapist_id"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	DurationMinutes    int        `json:"duration_minutes"`
	SessionType        string     `json:"session_type"`
	Status             string     `json:"status"`
	Title              *string    `json:"title,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

type ParticipantResponse struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
}

type SessionDetailResponse struct {
	AppointmentResponse
	Participants []ParticipantResponse `json:"participants"`
}

type StatsResponse struct {
	Invited   int `json:"invited"`
	Confirmed int `json:"confirmed"`
	Declined  int `json:"declined"`
	Attended  int `json:"attended"`
	NoShow    int `json:"no_show"`
	Total     int `json:"total"`
}

type RemovedResponse struct {
	Removed bool `json:"removed"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Mapping helpers

func toSlotResponses(slots []schedule.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start, End: s.End})
	}
	return out
}

func toBookingResponses(bookings []schedule.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, BookingResponse{
			ID:          b.ID,
			Start:       b.Start,
			End:         b.End,
			SessionType: b.SessionType,
			Status:      b.Status,
		})
	}
	return out
}

func toSummaryResponses(summaries []schedule.DailySummary) []DailySummaryResponse {
	out := make([]DailySummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp := DailySummaryResponse{
			Date:               s.Date.Format("2006-01-02"),
			BookedCount:        s.BookedCount,
			AvailableSlotCount: s.AvailableSlotCount,
			Bookings:           toBookingResponses(s.Bookings),
		}
		if s.OverrideKind != nil {
			kind := string(*s.OverrideKind)
			resp.OverrideKind = &kind
		}
		out = append(out, resp)
	}
	return out
}

func toAppointmentResponse(a *session.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		TherapistID:        a.TherapistID,
		ScheduledAt:        a.ScheduledAt,
		DurationMinutes:    a.DurationMinutes,
		SessionType:        string(a.SessionType),
		Status:             string(a.Status),
		Title:              a.Title,
		Description:        a.Description,
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CancelledBy:        a.CancelledBy,
		CancelledAt:        a.CancelledAt,
	}
}

func toParticipantResponse(p *session.Participant) ParticipantResponse {
	return ParticipantResponse{
		AppointmentID: p.AppointmentID,
		UserID:        p.UserID,
		Role:          string(p.Role),
		Status:        string(p.Status),
		JoinedAt:      p.JoinedAt,
		LeftAt:        p.LeftAt,
	}
}

func toParticipantResponses(participants []session.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(participants))
	for i := range participants {
		out = append(out, toParticipantResponse(&participants[i]))
	}
	return out
}
