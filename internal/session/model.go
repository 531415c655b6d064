package session

import (
	"time"

	"github.com/google/uuid"
)

type SessionType string

const (
	TypeIndividual   SessionType = "individual"
	TypeFamily       SessionType = "family"
	TypeGroup        SessionType = "group"
	TypeConsultation SessionType = "consultation"
)

func (t SessionType) Valid() bool {
	switch t {
	case TypeIndividual, TypeFamily, TypeGroup, TypeConsultation:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	StatusRequested AppointmentStatus = "requested"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

type ParticipantRole string

const (
	RoleTherapist ParticipantRole = "therapist"
	RoleClient    ParticipantRole = "client"
	RoleGuardian  ParticipantRole = "guardian"
	RoleObserver  ParticipantRole = "observer"
)

func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleTherapist, RoleClient, RoleGuardian, RoleObserver:
		return true
	}
	return false
}

type ParticipantStatus string

const (
	ParticipantInvited   ParticipantStatus = "invited"
	ParticipantConfirmed ParticipantStatus = "confirmed"
	ParticipantDeclined  ParticipantStatus = "declined"
	ParticipantAttended  ParticipantStatus = "attended"
	ParticipantNoShow    ParticipantStatus = "no_show"
)

type Appointment struct {
	ID                 uuid.UUID
	TherapistID        uuid.UUID
	ScheduledAt        time.Time
	DurationMinutes    int
	SessionType        SessionType
	Status             AppointmentStatus
	Title              *string
	Description        *string
	Notes              *string
	CancellationReason *string
	CancelledBy        *uuid.UUID
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EndsAt is the exclusive end of the appointment's time range.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Terminal reports whether the appointment can no longer be mutated.
func (a *Appointment) Terminal() bool {
	return a.Status == StatusCancelled || a.Status == StatusCompleted
}

type Participant struct {
	AppointmentID uuid.UUID
	UserID        uuid.UUID
	Role          ParticipantRole
	Status        ParticipantStatus
	JoinedAt      *time.Time
	LeftAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RosterEntry is one proposed (user, role) pair for a session being created.
type RosterEntry struct {
	UserID uuid.UUID
	Role   ParticipantRole
}

// Metadata carries the optional free-text fields of an appointment.
type Metadata struct {
	Title       *string
	Description *string
	Notes       *string
}

// SessionDetail is a hydrated appointment with its participants.
type SessionDetail struct {
	Appointment
	Participants []Participant
}

// Stats aggregates participant statuses for one appointment.
type Stats struct {
	Invited   int
	Confirmed int
	Declined  int
	Attended  int
	NoShow    int
	Total     int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
