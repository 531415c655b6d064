package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindwell/session-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	therapists, err := seedTherapists(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed therapists: %v", err)
	}
	if err := seedClients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed clients: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, therapists); err != nil {
		log.Fatalf("seed availability: %v", err)
	}

	log.Println("seed complete")
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d therapists", count)

	specialties := []string{
		"Cognitive Behavioral Therapy",
		"Family Therapy",
		"Group Therapy",
		"Child and Adolescent",
		"Trauma and PTSD",
		"Couples Counseling",
		"Addiction",
		"Grief Counseling",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO therapists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("therapists seeded")
	return ids, nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d clients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("clients seeded: %d/%d", end, count)
	}

	log.Println("clients seeded")
	return nil
}

// seedAvailability gives every therapist a plausible working week: weekday
// windows 09:00-12:00 and 13:00-17:00, plus a scattering of date overrides in
// the next month.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, therapists []uuid.UUID) error {
	log.Printf("seeding availability for %d therapists", len(therapists))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, therapistID := range therapists {
		// Monday through Friday
		for weekday := 1; weekday <= 5; weekday++ {
			for _, span := range [][2]int{{9 * 60, 12 * 60}, {13 * 60, 17 * 60}} {
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_windows (id, therapist_id, weekday, start_minute, end_minute, active, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, true, now(), now())
				`, uuid.New(), therapistID, weekday, span[0], span[1])
				if err != nil {
					return err
				}
			}
		}

		// A couple of overrides within the next 30 days
		for i := 0; i < gofakeit.Number(0, 3); i++ {
			date := time.Now().AddDate(0, 0, gofakeit.Number(1, 30)).Format("2006-01-02")

			if gofakeit.Bool() {
				reason := "out of office"
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_overrides (id, therapist_id, date, kind, reason, created_at, updated_at)
					VALUES ($1, $2, $3, 'unavailable', $4, now(), now())
					ON CONFLICT (therapist_id, date) DO NOTHING
				`, uuid.New(), therapistID, date, reason)
				if err != nil {
					return err
				}
			} else {
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_overrides (id, therapist_id, date, kind, start_minute, end_minute, created_at, updated_at)
					VALUES ($1, $2, $3, 'custom_hours', $4, $5, now(), now())
					ON CONFLICT (therapist_id, date) DO NOTHING
				`, uuid.New(), therapistID, date, 10*60, 14*60)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("availability seeded")
	return nil
}
