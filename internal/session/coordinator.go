package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/session-scheduling/internal/config"
	redisclient "github.com/mindwell/session-scheduling/internal/redis"
	"github.com/mindwell/session-scheduling/internal/schedule"
)

const (
	EventSessionCreated       = "SESSION_CREATED"
	EventSessionConfirmed     = "SESSION_CONFIRMED"
	EventSessionCancelled     = "SESSION_CANCELLED"
	EventSessionCompleted     = "SESSION_COMPLETED"
	EventParticipantAdded     = "PARTICIPANT_ADDED"
	EventParticipantRemoved   = "PARTICIPANT_REMOVED"
	EventParticipantConfirmed = "PARTICIPANT_CONFIRMED"
	EventParticipantDeclined  = "PARTICIPANT_DECLINED"
	EventAttendanceMarked     = "ATTENDANCE_MARKED"
)

// SlotEngine is the slice of the schedule engine the coordinator needs for
// its freshness check.
type SlotEngine interface {
	ComputeSlots(ctx context.Context, therapistID uuid.UUID, date time.Time, durationMinutes, stepMinutes int) ([]schedule.TimeSlot, error)
}

// Coordinator orchestrates session creation and the participant lifecycle.
// The freshness check against the engine is an optimistic fast path; the
// repository's conditional insert is what actually prevents double-booking.
// Participant mutations on one appointment are serialized through the locker.
type Coordinator struct {
	repo      Repository
	engine    SlotEngine
	locker    redisclient.Locker
	validator Validator
	cfg       config.Config
	now       func() time.Time
}

func NewCoordinator(repo Repository, engine SlotEngine, locker redisclient.Locker, cfg config.Config) *Coordinator {
	return &Coordinator{
		repo:      repo,
		engine:    engine,
		locker:    locker,
		validator: NewValidator(cfg.MaxRosterSize),
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock replaces the coordinator's clock. Intended for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

type CreateSessionParams struct {
	SessionType     SessionType
	TherapistID     uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes int
	Roster          []RosterEntry
	Metadata        Metadata
}

// CreateSession validates the roster, confirms the requested time is still a
// free slot and commits the appointment with its participants atomically.
// ErrSlotConflict means another caller won the race for an overlapping range;
// the caller should recompute slots and retry.
func (c *Coordinator) CreateSession(ctx context.Context, params CreateSessionParams) (*Appointment, error) {
	if err := c.validator.Validate(params.SessionType, params.TherapistID, params.Roster); err != nil {
		return nil, err
	}

	slots, err := c.engine.ComputeSlots(ctx, params.TherapistID, params.ScheduledAt, params.DurationMinutes, c.cfg.DefaultStepMinutes)
	if err != nil {
		return nil, fmt.Errorf("compute slots: %w", err)
	}
	if !containsStart(slots, params.ScheduledAt) {
		return nil, ErrSlotUnavailable
	}

	now := c.now()
	appt := &Appointment{
		ID:              uuid.New(),
		TherapistID:     params.TherapistID,
		ScheduledAt:     params.ScheduledAt,
		DurationMinutes: params.DurationMinutes,
		SessionType:     params.SessionType,
		Status:          StatusRequested,
		Title:           params.Metadata.Title,
		Description:     params.Metadata.Description,
		Notes:           params.Metadata.Notes,
	}

	participants := make([]Participant, 0, len(params.Roster))
	for _, entry := range params.Roster {
		p := Participant{
			AppointmentID: appt.ID,
			UserID:        entry.UserID,
			Role:          entry.Role,
			Status:        ParticipantInvited,
		}
		// The therapist is implicitly confirmed at creation.
		if entry.Role == RoleTherapist {
			p.Status = ParticipantConfirmed
			joined := now
			p.JoinedAt = &joined
		}
		participants = append(participants, p)
	}

	if err := c.repo.AtomicInsertSession(ctx, appt, participants); err != nil {
		return nil, err
	}

	c.logEvent(ctx, appt.ID, EventSessionCreated, map[string]any{
		"therapist_id": params.TherapistID.String(),
		"session_type": string(params.SessionType),
		"scheduled_at": params.ScheduledAt,
		"participants": len(participants),
	})

	return appt, nil
}

// AddParticipant invites a user into an existing session, re-validating the
// composition the session would have afterwards.
func (c *Coordinator) AddParticipant(ctx context.Context, appointmentID, userID uuid.UUID, role ParticipantRole) (*Participant, error) {
	var added *Participant

	err := c.locker.WithSessionLock(ctx, appointmentID, func(lockCtx context.Context) error {
		appt, err := c.repo.GetAppointmentByID(lockCtx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Terminal() {
			return fmt.Errorf("%w: cannot add a participant to a %s appointment", ErrInvalidOperation, appt.Status)
		}

		existing, err := c.repo.ListParticipants(lockCtx, appointmentID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}

		roster := make([]RosterEntry, 0, len(existing)+1)
		for _, p := range existing {
			if p.UserID == userID {
				return ErrParticipantExists
			}
			roster = append(roster, RosterEntry{UserID: p.UserID, Role: p.Role})
		}
		roster = append(roster, RosterEntry{UserID: userID, Role: role})

		if err := c.validator.Validate(appt.SessionType, appt.TherapistID, roster); err != nil {
			return err
		}

		p := &Participant{
			AppointmentID: appointmentID,
			UserID:        userID,
			Role:          role,
			Status:        ParticipantInvited,
		}
		if err := c.repo.InsertParticipant(lockCtx, p); err != nil {
			return err
		}
		added = p

		c.logEvent(lockCtx, appointmentID, EventParticipantAdded, map[string]any{
			"user_id": userID.String(),
			"role":    string(role),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return added, nil
}

// RemoveParticipant removes a user from a session. The therapist participant
// can never be removed, and a group session cannot drop below two clients.
// Removing a user who is not on the roster is not an error; it reports false.
func (c *Coordinator) RemoveParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (bool, error) {
	removed := false

	err := c.locker.WithSessionLock(ctx, appointmentID, func(lockCtx context.Context) error {
		appt, err := c.repo.GetAppointmentByID(lockCtx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Terminal() {
			return fmt.Errorf("%w: cannot remove a participant from a %s appointment", ErrInvalidOperation, appt.Status)
		}

		participants, err := c.repo.ListParticipants(lockCtx, appointmentID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}

		var target *Participant
		clients := 0
		for i := range participants {
			if participants[i].Role == RoleClient {
				clients++
			}
			if participants[i].UserID == userID {
				target = &participants[i]
			}
		}
		if target == nil {
			return nil
		}
		if target.Role == RoleTherapist {
			return fmt.Errorf("%w: the therapist participant cannot be removed", ErrInvalidOperation)
		}
		if appt.SessionType == TypeGroup && target.Role == RoleClient && clients-1 < 2 {
			return ruleErrorf("group sessions require at least 2 clients")
		}

		removed, err = c.repo.DeleteParticipant(lockCtx, appointmentID, userID)
		if err != nil {
			return err
		}
		if removed {
			c.logEvent(lockCtx, appointmentID, EventParticipantRemoved, map[string]any{
				"user_id": userID.String(),
				"role":    string(target.Role),
			})
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return removed, nil
}

// ConfirmParticipant moves an invited participant to confirmed and stamps
// joined_at. Confirming an already-confirmed participant is a no-op.
func (c *Coordinator) ConfirmParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (*Participant, error) {
	var result *Participant

	err := c.locker.WithSessionLock(ctx, appointmentID, func(lockCtx context.Context) error {
		p, err := c.loadMutableParticipant(lockCtx, appointmentID, userID)
		if err != nil {
			return err
		}

		switch p.Status {
		case ParticipantConfirmed:
			result = p
			return nil
		case ParticipantInvited:
			joined := c.now()
			updated, err := c.repo.UpdateParticipantStatus(lockCtx, appointmentID, userID, ParticipantInvited, ParticipantConfirmed, &joined, nil)
			if err != nil {
				return fmt.Errorf("confirm participant: %w", err)
			}
			result = updated
			c.logEvent(lockCtx, appointmentID, EventParticipantConfirmed, map[string]any{
				"user_id": userID.String(),
			})
			return nil
		default:
			return fmt.Errorf("%w: cannot confirm a participant with status %s", ErrInvalidOperation, p.Status)
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeclineParticipant moves an invited participant to declined. Declining from
// any other status, including declined itself, is an invalid operation.
func (c *Coordinator) DeclineParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (*Participant, error) {
	var result *Participant

	err := c.locker.WithSessionLock(ctx, appointmentID, func(lockCtx context.Context) error {
		p, err := c.loadMutableParticipant(lockCtx, appointmentID, userID)
		if err != nil {
			return err
		}

		if p.Status != ParticipantInvited {
			return fmt.Errorf("%w: cannot decline a participant with status %s", ErrInvalidOperation, p.Status)
		}

		updated, err := c.repo.UpdateParticipantStatus(lockCtx, appointmentID, userID, ParticipantInvited, ParticipantDeclined, nil, nil)
		if err != nil {
			return fmt.Errorf("decline participant: %w", err)
		}
		result = updated
		c.logEvent(lockCtx, appointmentID, EventParticipantDeclined, map[string]any{
			"user_id": userID.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// MarkAttendance records whether a confirmed participant attended the
// session. The trigger policy (manual vs reconciliation) belongs to the
// caller; this is only the setter.
func (c *Coordinator) MarkAttendance(ctx context.Context, appointmentID, userID uuid.UUID, attended bool) (*Participant, error) {
	var result *Participant

	err := c.locker.WithSessionLock(ctx, appointmentID, func(lockCtx context.Context) error {
		p, err := c.repo.GetParticipant(lockCtx, appointmentID, userID)
		if err != nil {
			return err
		}
		if p.Status != ParticipantConfirmed {
			return fmt.Errorf("%w: attendance can only be marked for confirmed participants, not %s", ErrInvalidOperation, p.Status)
		}

		to := ParticipantNoShow
		var leftAt *time.Time
		if attended {
			to = ParticipantAttended
			left := c.now()
			leftAt = &left
		}

		updated, err := c.repo.UpdateParticipantStatus(lockCtx, appointmentID, userID, ParticipantConfirmed, to, nil, leftAt)
		if err != nil {
			return fmt.Errorf("mark attendance: %w", err)
		}
		result = updated
		c.logEvent(lockCtx, appointmentID, EventAttendanceMarked, map[string]any{
			"user_id":  userID.String(),
			"attended": attended,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ConfirmSession moves a requested appointment to confirmed.
func (c *Coordinator) ConfirmSession(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := c.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusRequested {
		return nil, fmt.Errorf("%w: cannot confirm a %s appointment", ErrInvalidOperation, appt.Status)
	}

	updated, err := c.repo.UpdateAppointmentStatus(ctx, id, StatusRequested, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm session: %w", err)
	}

	c.logEvent(ctx, id, EventSessionConfirmed, map[string]any{})
	return updated, nil
}

// CancelSession cancels a requested or confirmed appointment. Cancellation is
// terminal and carries the reason and acting user.
func (c *Coordinator) CancelSession(ctx context.Context, id uuid.UUID, reason string, cancelledBy uuid.UUID) (*Appointment, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation requires a reason", schedule.ErrInvalidArgument)
	}

	appt, err := c.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Terminal() {
		return nil, fmt.Errorf("%w: cannot cancel a %s appointment", ErrInvalidOperation, appt.Status)
	}

	updated, err := c.repo.CancelAppointment(ctx, id, reason, cancelledBy, c.now())
	if err != nil {
		return nil, fmt.Errorf("cancel session: %w", err)
	}

	c.logEvent(ctx, id, EventSessionCancelled, map[string]any{
		"reason":       reason,
		"cancelled_by": cancelledBy.String(),
	})
	return updated, nil
}

// CompleteSession moves a confirmed appointment to completed.
func (c *Coordinator) CompleteSession(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := c.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: cannot complete a %s appointment", ErrInvalidOperation, appt.Status)
	}

	updated, err := c.repo.UpdateAppointmentStatus(ctx, id, StatusConfirmed, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	c.logEvent(ctx, id, EventSessionCompleted, map[string]any{})
	return updated, nil
}

// ReconcileSessions is intended to be called by the worker periodically. It
// cancels requested appointments whose start time passed without a therapist
// confirmation, and completes confirmed appointments whose end passed the
// grace period. Attendance is left to the explicit setter.
func (c *Coordinator) ReconcileSessions(ctx context.Context) error {
	now := c.now()

	stale, err := c.repo.FindUnconfirmedStarted(ctx, now)
	if err != nil {
		return fmt.Errorf("find unconfirmed started appointments: %w", err)
	}
	for _, appt := range stale {
		_, err := c.repo.CancelAppointment(ctx, appt.ID, "not confirmed before session start", uuid.Nil, now)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			log.Printf("failed to cancel stale appointment %s: %v", appt.ID, err)
			continue
		}
		c.logEvent(ctx, appt.ID, EventSessionCancelled, map[string]any{
			"reason": "not confirmed before session start",
			"actor":  "reconcile-worker",
		})
	}

	ended, err := c.repo.FindEndedConfirmed(ctx, now.Add(-c.cfg.CompletionGrace))
	if err != nil {
		return fmt.Errorf("find ended confirmed appointments: %w", err)
	}
	for _, appt := range ended {
		_, err := c.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			log.Printf("failed to complete appointment %s: %v", appt.ID, err)
			continue
		}
		c.logEvent(ctx, appt.ID, EventSessionCompleted, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

// GetSession retrieves a fully hydrated appointment by ID.
func (c *Coordinator) GetSession(ctx context.Context, id uuid.UUID) (*SessionDetail, error) {
	detail, err := c.repo.GetSessionDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return detail, nil
}

// GetParticipants lists the participants of one appointment.
func (c *Coordinator) GetParticipants(ctx context.Context, appointmentID uuid.UUID) ([]Participant, error) {
	if _, err := c.repo.GetAppointmentByID(ctx, appointmentID); err != nil {
		return nil, err
	}
	return c.repo.ListParticipants(ctx, appointmentID)
}

// GetStats aggregates the participant statuses of one appointment.
func (c *Coordinator) GetStats(ctx context.Context, appointmentID uuid.UUID) (Stats, error) {
	participants, err := c.GetParticipants(ctx, appointmentID)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, p := range participants {
		switch p.Status {
		case ParticipantInvited:
			stats.Invited++
		case ParticipantConfirmed:
			stats.Confirmed++
		case ParticipantDeclined:
			stats.Declined++
		case ParticipantAttended:
			stats.Attended++
		case ParticipantNoShow:
			stats.NoShow++
		}
		stats.Total++
	}
	return stats, nil
}

// ListSessionsByTherapist retrieves a therapist's appointments, most recent
// first.
func (c *Coordinator) ListSessionsByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := c.repo.ListByTherapist(ctx, therapistID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions by therapist: %w", err)
	}
	return appointments, nil
}

// loadMutableParticipant loads a participant after checking the appointment
// still accepts mutations.
func (c *Coordinator) loadMutableParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (*Participant, error) {
	appt, err := c.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Terminal() {
		return nil, fmt.Errorf("%w: cannot modify a participant of a %s appointment", ErrInvalidOperation, appt.Status)
	}
	return c.repo.GetParticipant(ctx, appointmentID, userID)
}

func containsStart(slots []schedule.TimeSlot, start time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return true
		}
	}
	return false
}

func (c *Coordinator) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     c.now(),
	}

	if err := c.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
