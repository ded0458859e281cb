package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	return id
}

// testNow is a Monday; the default fixture session recurs on Mondays so
// same-day operations like check-in work without date gymnastics.
var testNow = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *MemoryRepository
	svc      *Service
	queue    *Queue
	sessions *Sessions
	session  *Session
	clinicID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := NewMemoryRepository()
	locker := NewLocalLocker()
	log := zerolog.Nop()

	frozen := func() time.Time { return testNow }

	svc := NewService(repo, locker, NopNotifier{}, log)
	svc.now = frozen
	queue := NewQueue(repo, locker, NopNotifier{}, log)
	queue.now = frozen
	sessions := NewSessions(repo, log)
	sessions.now = frozen

	require.NoError(t, repo.UpsertDoctor(ctx, &Doctor{UserID: "doc-1", Name: "Asha Rao", Active: true}))
	require.NoError(t, repo.UpsertDoctor(ctx, &Doctor{UserID: "doc-2", Name: "Miguel Ortega", Active: true}))
	require.NoError(t, repo.UpsertClinic(ctx, &Clinic{ID: 1, Name: "Lakeside Clinic"}))

	clinicID := int64(1)
	session, err := repo.CreateSession(ctx, &Session{
		DoctorID:            "doc-1",
		ClinicID:            &clinicID,
		DayOfWeek:           time.Monday,
		StartTime:           NewTimeOfDay(9, 0),
		EndTime:             NewTimeOfDay(12, 0),
		ServiceMode:         ModeInPerson,
		MaxQueueSize:        10,
		ConsultationMinutes: 15,
		EffectiveFrom:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:              true,
	})
	require.NoError(t, err)

	return &fixture{
		repo:     repo,
		svc:      svc,
		queue:    queue,
		sessions: sessions,
		session:  session,
		clinicID: clinicID,
	}
}

// book places a booking for the fixture session on testNow's date.
func (f *fixture) book(t *testing.T, patientID string) *BookingConfirmation {
	t.Helper()
	conf, err := f.svc.Book(context.Background(), BookingRequest{
		PatientID: patientID,
		DoctorID:  "doc-1",
		SessionID: f.session.ID,
		Date:      testNow,
		Type:      TypeInPerson,
	})
	require.NoError(t, err)
	return conf
}
