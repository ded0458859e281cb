package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/pulseone/appointments-service/internal/booking"
	"github.com/pulseone/appointments-service/internal/db"
	"github.com/pulseone/appointments-service/internal/logging"
)

// Seeds a development database with doctors, clinics, and weekly sessions so
// the API has something to book against.
func main() {
	log := logging.New("seed", "development")
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	repo := booking.NewPgRepository(pool)
	if err := seed(context.Background(), repo, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	log.Info().Msg("seed complete")
}

func seed(ctx context.Context, repo booking.Repository, log zerolog.Logger) error {
	specializations := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	const clinicCount = 5
	for i := 1; i <= clinicCount; i++ {
		address := gofakeit.Address().Address
		clinic := &booking.Clinic{
			ID:      int64(i),
			Name:    gofakeit.Company() + " Clinic",
			Address: &address,
		}
		if err := repo.UpsertClinic(ctx, clinic); err != nil {
			return fmt.Errorf("seed clinic %d: %w", i, err)
		}
	}
	log.Info().Int("count", clinicCount).Msg("clinics seeded")

	const doctorCount = 25
	windows := []struct {
		start booking.TimeOfDay
		end   booking.TimeOfDay
	}{
		{booking.NewTimeOfDay(9, 0), booking.NewTimeOfDay(12, 0)},
		{booking.NewTimeOfDay(14, 0), booking.NewTimeOfDay(17, 0)},
		{booking.NewTimeOfDay(18, 0), booking.NewTimeOfDay(21, 0)},
	}
	effectiveFrom := booking.DateOnly(time.Now().UTC())

	sessionsCreated := 0
	for i := 1; i <= doctorCount; i++ {
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		doctorID := fmt.Sprintf("doc-%03d", i)
		doctor := &booking.Doctor{
			UserID:         doctorID,
			Name:           gofakeit.Name(),
			Specialization: &spec,
			Active:         true,
		}
		if err := repo.UpsertDoctor(ctx, doctor); err != nil {
			return fmt.Errorf("seed doctor %s: %w", doctorID, err)
		}

		// Two or three weekly sessions per doctor, mixed modes.
		sessionCount := gofakeit.Number(2, 3)
		for j := 0; j < sessionCount; j++ {
			window := windows[j%len(windows)]
			session := &booking.Session{
				DoctorID:            doctorID,
				DayOfWeek:           time.Weekday(gofakeit.Number(1, 5)),
				StartTime:           window.start,
				EndTime:             window.end,
				MaxQueueSize:        gofakeit.Number(5, 15),
				ConsultationMinutes: []int{10, 15, 20, 30}[gofakeit.Number(0, 3)],
				EffectiveFrom:       effectiveFrom,
				Active:              true,
			}
			if gofakeit.Bool() {
				session.ServiceMode = booking.ModeInPerson
				clinicID := int64(gofakeit.Number(1, clinicCount))
				session.ClinicID = &clinicID
			} else {
				session.ServiceMode = booking.ModeVirtual
			}

			if _, err := repo.CreateSession(ctx, session); err != nil {
				// Overlaps from the random generator are fine to skip.
				log.Warn().Err(err).Str("doctor_id", doctorID).Msg("session skipped")
				continue
			}
			sessionsCreated++
		}
	}
	log.Info().Int("doctors", doctorCount).Int("sessions", sessionsCreated).Msg("doctors and sessions seeded")

	return nil
}
