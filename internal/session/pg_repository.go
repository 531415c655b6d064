package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, therapist_id, scheduled_at, duration_minutes, session_type, status,
	title, description, notes, cancellation_reason, cancelled_by, cancelled_at, created_at, updated_at`

const participantColumns = `appointment_id, user_id, role, status, joined_at, left_at, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.TherapistID,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.SessionType,
		&a.Status,
		&a.Title,
		&a.Description,
		&a.Notes,
		&a.CancellationReason,
		&a.CancelledBy,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanParticipant(row pgx.Row) (*Participant, error) {
	var p Participant

	err := row.Scan(
		&p.AppointmentID,
		&p.UserID,
		&p.Role,
		&p.Status,
		&p.JoinedAt,
		&p.LeftAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}

	return &p, nil
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetSessionDetail(ctx context.Context, id uuid.UUID) (*SessionDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	participants, err := r.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SessionDetail{Appointment: *appt, Participants: participants}, nil
}

func (r *PgRepository) ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE therapist_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, therapistID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// AtomicInsertSession writes the appointment and all participants in one
// transaction. The appointments_no_overlap exclusion constraint rejects any
// live appointment overlapping the same therapist's range, which is what
// turns a lost race into ErrSlotConflict instead of a double booking.
func (r *PgRepository) AtomicInsertSession(ctx context.Context, appt *Appointment, participants []Participant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin session insert: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, therapist_id, scheduled_at, duration_minutes, session_type, status,
			title, description, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	`, appt.ID, appt.TherapistID, appt.ScheduledAt, appt.DurationMinutes, appt.SessionType, appt.Status,
		appt.Title, appt.Description, appt.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	for _, p := range participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO participants (appointment_id, user_id, role, status, joined_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, p.AppointmentID, p.UserID, p.Role, p.Status, p.JoinedAt)
		if err != nil {
			return fmt.Errorf("insert participant %s: %w", p.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return ErrSlotConflict
		}
		return fmt.Errorf("commit session insert: %w", err)
	}

	return nil
}

func (r *PgRepository) GetParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (*Participant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE appointment_id = $1 AND user_id = $2
	`, appointmentID, userID)
	return scanParticipant(row)
}

func (r *PgRepository) ListParticipants(ctx context.Context, appointmentID uuid.UUID) ([]Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE appointment_id = $1
		ORDER BY created_at, user_id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertParticipant(ctx context.Context, p *Participant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO participants (appointment_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, p.AppointmentID, p.UserID, p.Role, p.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrParticipantExists
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteParticipant(ctx context.Context, appointmentID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM participants
		WHERE appointment_id = $1 AND user_id = $2
	`, appointmentID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) UpdateParticipantStatus(ctx context.Context, appointmentID, userID uuid.UUID, from, to ParticipantStatus, joinedAt, leftAt *time.Time) (*Participant, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE participants
		SET status = $3,
		    joined_at = COALESCE($4, joined_at),
		    left_at = COALESCE($5, left_at),
		    updated_at = now()
		WHERE appointment_id = $1
		  AND user_id = $2
		  AND status = $6
		RETURNING `+participantColumns+`
	`, appointmentID, userID, to, joinedAt, leftAt, from)

	return scanParticipant(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, reason string, cancelledBy uuid.UUID, at time.Time) (*Appointment, error) {
	var actor *uuid.UUID
	if cancelledBy != uuid.Nil {
		actor = &cancelledBy
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancellation_reason = $2,
		    cancelled_by = $3,
		    cancelled_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('requested', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, id, reason, actor, at)

	return scanAppointment(row)
}

func (r *PgRepository) FindUnconfirmedStarted(ctx context.Context, now time.Time) ([]Appointment, error) {
	return r.findAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'requested'
		  AND scheduled_at < $1
	`, now)
}

func (r *PgRepository) FindEndedConfirmed(ctx context.Context, endedBefore time.Time) ([]Appointment, error) {
	return r.findAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND scheduled_at + make_interval(mins => duration_minutes) < $1
	`, endedBefore)
}

func (r *PgRepository) findAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var appID *uuid.UUID
	if ev.AppointmentID != nil {
		appID = ev.AppointmentID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, appID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
