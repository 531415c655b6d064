package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow
	var weekday int

	err := row.Scan(
		&w.ID,
		&w.TherapistID,
		&weekday,
		&w.StartMinute,
		&w.EndMinute,
		&w.Active,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Weekday = time.Weekday(weekday)
	return &w, nil
}

func scanOverride(row pgx.Row) (*AvailabilityOverride, error) {
	var o AvailabilityOverride
	var kind string

	err := row.Scan(
		&o.ID,
		&o.TherapistID,
		&o.Date,
		&kind,
		&o.StartMinute,
		&o.EndMinute,
		&o.Reason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Kind = OverrideKind(kind)
	return &o, nil
}

// Interface methods

func (r *PgRepository) GetWeeklyWindows(ctx context.Context, therapistID uuid.UUID, weekday time.Weekday) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, therapist_id, weekday, start_minute, end_minute, active, created_at, updated_at
		FROM availability_windows
		WHERE therapist_id = $1 AND weekday = $2 AND active
		ORDER BY start_minute
	`, therapistID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetOverride(ctx context.Context, therapistID uuid.UUID, date time.Time) (*AvailabilityOverride, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, therapist_id, date, kind, start_minute, end_minute, reason, created_at, updated_at
		FROM availability_overrides
		WHERE therapist_id = $1 AND date = $2
	`, therapistID, date.Format("2006-01-02"))

	o, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

func (r *PgRepository) FindOverlapping(ctx context.Context, therapistID uuid.UUID, start, end time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, therapist_id, scheduled_at, duration_minutes, session_type, status
		FROM appointments
		WHERE therapist_id = $1
		  AND status IN ('requested', 'confirmed')
		  AND tstzrange(scheduled_at, scheduled_at + make_interval(mins => duration_minutes)) && tstzrange($2, $3)
		ORDER BY scheduled_at
	`, therapistID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.TherapistID, &b.Start, &b.DurationMinutes, &b.SessionType, &b.Status); err != nil {
			return nil, err
		}
		b.End = b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
		result = append(result, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
