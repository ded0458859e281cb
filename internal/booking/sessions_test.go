package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func virtualSessionRequest() CreateSessionRequest {
	return CreateSessionRequest{
		DoctorID:            "doc-2",
		DayOfWeek:           time.Wednesday,
		StartTime:           NewTimeOfDay(14, 0),
		EndTime:             NewTimeOfDay(17, 0),
		ServiceMode:         ModeVirtual,
		MaxQueueSize:        8,
		ConsultationMinutes: 20,
		EffectiveFrom:       testNow,
	}
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("virtual session without clinic", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.sessions.Create(ctx, virtualSessionRequest())
		require.NoError(t, err)
		require.True(t, created.Active)
		require.Nil(t, created.ClinicID)
		require.NotZero(t, created.ID)
	})

	t.Run("virtual session rejects a clinic", func(t *testing.T) {
		f := newFixture(t)
		req := virtualSessionRequest()
		req.ClinicID = &f.clinicID
		_, err := f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrClinicNotAllowed)
	})

	t.Run("in-person session requires a clinic", func(t *testing.T) {
		f := newFixture(t)
		req := virtualSessionRequest()
		req.ServiceMode = ModeInPerson
		_, err := f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrClinicRequired)
	})

	t.Run("in-person session clinic must exist", func(t *testing.T) {
		f := newFixture(t)
		req := virtualSessionRequest()
		req.ServiceMode = ModeInPerson
		missing := int64(99)
		req.ClinicID = &missing
		_, err := f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrClinicNotFound)
	})

	t.Run("unknown or inactive doctor", func(t *testing.T) {
		f := newFixture(t)
		req := virtualSessionRequest()
		req.DoctorID = "doc-unknown"
		_, err := f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrDoctorNotFound)

		require.NoError(t, f.repo.UpsertDoctor(ctx, &Doctor{UserID: "doc-3", Name: "Retired", Active: false}))
		req.DoctorID = "doc-3"
		_, err = f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("start must precede end", func(t *testing.T) {
		f := newFixture(t)
		req := virtualSessionRequest()
		req.StartTime = NewTimeOfDay(17, 0)
		req.EndTime = NewTimeOfDay(14, 0)
		_, err := f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrInvalidSessionTimes)
	})

	t.Run("capacity and consultation minutes must be positive", func(t *testing.T) {
		f := newFixture(t)
		req := virtualSessionRequest()
		req.MaxQueueSize = 0
		_, err := f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCapacity)

		req = virtualSessionRequest()
		req.ConsultationMinutes = -5
		_, err = f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("overlapping window for the same doctor and day", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.Create(ctx, virtualSessionRequest())
		require.NoError(t, err)

		req := virtualSessionRequest()
		req.StartTime = NewTimeOfDay(16, 0)
		req.EndTime = NewTimeOfDay(19, 0)
		_, err = f.sessions.Create(ctx, req)
		require.ErrorIs(t, err, ErrSessionOverlap)

		// Back to back is not an overlap.
		req = virtualSessionRequest()
		req.StartTime = NewTimeOfDay(17, 0)
		req.EndTime = NewTimeOfDay(19, 0)
		_, err = f.sessions.Create(ctx, req)
		require.NoError(t, err)
	})
}

func TestUpdateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("applies only non-nil fields", func(t *testing.T) {
		f := newFixture(t)
		capacity := 20
		updated, err := f.sessions.Update(ctx, f.session.ID, UpdateSessionRequest{
			MaxQueueSize: &capacity,
		})
		require.NoError(t, err)
		require.Equal(t, 20, updated.MaxQueueSize)
		require.Equal(t, f.session.StartTime, updated.StartTime)
		require.Equal(t, f.session.DayOfWeek, updated.DayOfWeek)
	})

	t.Run("overlap check excludes the session itself", func(t *testing.T) {
		f := newFixture(t)
		start := NewTimeOfDay(9, 30)
		_, err := f.sessions.Update(ctx, f.session.ID, UpdateSessionRequest{
			StartTime: &start,
		})
		require.NoError(t, err)
	})

	t.Run("moving onto another session is rejected", func(t *testing.T) {
		f := newFixture(t)
		clinicID := f.clinicID
		other, err := f.sessions.Create(ctx, CreateSessionRequest{
			DoctorID:            "doc-1",
			ClinicID:            &clinicID,
			DayOfWeek:           time.Tuesday,
			StartTime:           NewTimeOfDay(9, 0),
			EndTime:             NewTimeOfDay(12, 0),
			ServiceMode:         ModeInPerson,
			MaxQueueSize:        5,
			ConsultationMinutes: 15,
			EffectiveFrom:       testNow,
		})
		require.NoError(t, err)

		monday := time.Monday
		_, err = f.sessions.Update(ctx, other.ID, UpdateSessionRequest{DayOfWeek: &monday})
		require.ErrorIs(t, err, ErrSessionOverlap)
	})

	t.Run("clinic cannot be set on a virtual session", func(t *testing.T) {
		f := newFixture(t)
		virtual, err := f.sessions.Create(ctx, virtualSessionRequest())
		require.NoError(t, err)

		_, err = f.sessions.Update(ctx, virtual.ID, UpdateSessionRequest{ClinicID: &f.clinicID})
		require.ErrorIs(t, err, ErrClinicNotAllowed)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.Update(ctx, 999, UpdateSessionRequest{})
		require.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestDeactivateSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	deactivated, err := f.sessions.Deactivate(ctx, f.session.ID)
	require.NoError(t, err)
	require.False(t, deactivated.Active)

	listed, err := f.sessions.ListByDoctor(ctx, "doc-1")
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestCreateOverride(t *testing.T) {
	ctx := context.Background()

	t.Run("records a cancellation for one date", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.sessions.CreateOverride(ctx, CreateOverrideRequest{
			SessionID: f.session.ID,
			Date:      testNow,
			Cancelled: true,
			Reason:    "doctor unavailable",
		})
		require.NoError(t, err)
		require.True(t, created.Cancelled)
		require.NotNil(t, created.Reason)
	})

	t.Run("at most one override per session and date", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.CreateOverride(ctx, CreateOverrideRequest{
			SessionID: f.session.ID, Date: testNow, Cancelled: true,
		})
		require.NoError(t, err)

		_, err = f.sessions.CreateOverride(ctx, CreateOverrideRequest{
			SessionID: f.session.ID, Date: testNow,
		})
		require.ErrorIs(t, err, ErrOverrideExists)
	})

	t.Run("past dates are rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.CreateOverride(ctx, CreateOverrideRequest{
			SessionID: f.session.ID, Date: testNow.AddDate(0, 0, -7), Cancelled: true,
		})
		require.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("date must fall on the session weekday", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.CreateOverride(ctx, CreateOverrideRequest{
			SessionID: f.session.ID, Date: testNow.AddDate(0, 0, 1), Cancelled: true,
		})
		require.ErrorIs(t, err, ErrSessionNotAvailable)
	})

	t.Run("override times must be ordered", func(t *testing.T) {
		f := newFixture(t)
		start := NewTimeOfDay(12, 0)
		end := NewTimeOfDay(9, 0)
		_, err := f.sessions.CreateOverride(ctx, CreateOverrideRequest{
			SessionID: f.session.ID, Date: testNow, StartTime: &start, EndTime: &end,
		})
		require.ErrorIs(t, err, ErrInvalidSessionTimes)
	})
}

func TestSessionAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.book(t, "pat-1")
	f.book(t, "pat-2")

	avail, err := f.sessions.Availability(ctx, f.session.ID, testNow)
	require.NoError(t, err)
	require.Equal(t, 2, avail.Booked)
	require.Equal(t, 8, avail.Remaining)
	require.Equal(t, NewTimeOfDay(9, 0), avail.Resolved.StartTime)

	_, err = f.sessions.Availability(ctx, f.session.ID, testNow.AddDate(0, 0, 1))
	require.ErrorIs(t, err, ErrSessionNotAvailable)
}

func TestCalendar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Cancel next Monday; it should appear as a day with no slots.
	nextMonday := testNow.AddDate(0, 0, 7)
	_, err := f.sessions.CreateOverride(ctx, CreateOverrideRequest{
		SessionID: f.session.ID, Date: nextMonday, Cancelled: true, Reason: "public holiday",
	})
	require.NoError(t, err)

	days, err := f.sessions.Calendar(ctx, "doc-1", 8)
	require.NoError(t, err)
	require.Len(t, days, 8)

	today := days[0]
	require.True(t, today.Available)
	require.Len(t, today.Slots, 1)
	require.Equal(t, f.session.ID, today.Slots[0].SessionID)
	require.Equal(t, 10, today.Slots[0].Total)

	// Tuesday through Sunday carry no sessions.
	for _, day := range days[1:7] {
		require.False(t, day.Available)
		require.Empty(t, day.Slots)
	}

	cancelled := days[7]
	require.True(t, SameDate(cancelled.Date, nextMonday))
	require.False(t, cancelled.Available)
	require.Empty(t, cancelled.Slots)

	_, err = f.sessions.Calendar(ctx, "doc-unknown", 8)
	require.ErrorIs(t, err, ErrDoctorNotFound)
}
