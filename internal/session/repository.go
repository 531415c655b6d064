package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantExists   = errors.New("user is already a participant of this appointment")

	// ErrSlotConflict means the atomic insert lost a race: another live
	// appointment for the same therapist overlaps the requested range.
	// Callers should re-fetch slots and retry.
	ErrSlotConflict = errors.New("slot was booked by a concurrent request")

	// ErrSlotUnavailable means the requested time is not among the currently
	// computed free slots.
	ErrSlotUnavailable = errors.New("requested time is not an available slot")

	// ErrInvalidOperation marks an illegal state transition, such as removing
	// the therapist participant or declining twice.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Repository contains all DB interactions needed by the coordinator and the
// reconcile worker.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetSessionDetail(ctx context.Context, id uuid.UUID) (*SessionDetail, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error)

	// AtomicInsertSession persists the appointment and its participants in one
	// transaction, conditioned on no live appointment overlapping the same
	// therapist's time range. On a race it fails with ErrSlotConflict and
	// persists nothing.
	AtomicInsertSession(ctx context.Context, appt *Appointment, participants []Participant) error

	GetParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (*Participant, error)
	ListParticipants(ctx context.Context, appointmentID uuid.UUID) ([]Participant, error)
	InsertParticipant(ctx context.Context, p *Participant) error
	DeleteParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (bool, error)

	// UpdateParticipantStatus is a compare-and-swap: the update only applies
	// while the participant still holds the expected status.
	UpdateParticipantStatus(ctx context.Context, appointmentID, userID uuid.UUID, from, to ParticipantStatus, joinedAt, leftAt *time.Time) (*Participant, error)

	// UpdateAppointmentStatus is the same compare-and-swap for appointments.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string, cancelledBy uuid.UUID, at time.Time) (*Appointment, error)

	// Reconcile worker
	FindUnconfirmedStarted(ctx context.Context, now time.Time) ([]Appointment, error)
	FindEndedConfirmed(ctx context.Context, endedBefore time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
