package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("admits a booked patient into the waiting room", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")

		status, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)
		require.Equal(t, StatusCheckedIn, status.Status)
		require.NotNil(t, status.CheckedInAt)
		require.Nil(t, status.CalledAt)

		entry, err := f.repo.GetWaitingRoomEntry(ctx, conf.AppointmentID)
		require.NoError(t, err)
		require.False(t, entry.Called())
	})

	t.Run("only on the appointment date", func(t *testing.T) {
		f := newFixture(t)
		nextMonday := testNow.AddDate(0, 0, 7)
		conf, err := f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID,
			Date: nextMonday, Type: TypeInPerson,
		})
		require.NoError(t, err)

		_, err = f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.ErrorIs(t, err, ErrNotToday)
	})

	t.Run("double check-in is illegal", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)

		_, err = f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("illegal check-in writes no history", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.svc.Cancel(ctx, conf.AppointmentID, "pat-1", ActorPatient, "")
		require.NoError(t, err)

		before, err := f.repo.ListHistory(ctx, conf.AppointmentID)
		require.NoError(t, err)

		_, err = f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.ErrorIs(t, err, ErrIllegalTransition)

		after, err := f.repo.ListHistory(ctx, conf.AppointmentID)
		require.NoError(t, err)
		require.Equal(t, before, after)
	})
}

func TestCallNext(t *testing.T) {
	ctx := context.Background()

	t.Run("calls waiting patients in queue order", func(t *testing.T) {
		f := newFixture(t)
		first := f.book(t, "pat-1")
		second := f.book(t, "pat-2")

		// Check in out of order; the call order still follows queue numbers.
		_, err := f.queue.CheckIn(ctx, second.AppointmentID, "staff-1")
		require.NoError(t, err)
		_, err = f.queue.CheckIn(ctx, first.AppointmentID, "staff-1")
		require.NoError(t, err)

		called, err := f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)
		require.Equal(t, first.AppointmentID, called.AppointmentID)
		require.Equal(t, StatusInProgress, called.Status)
		require.NotNil(t, called.CalledAt)
		require.Equal(t, 1, called.CurrentQueueNumber)
	})

	t.Run("empty waiting room returns nothing", func(t *testing.T) {
		f := newFixture(t)
		f.book(t, "pat-1") // booked but never checked in

		called, err := f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)
		require.Nil(t, called)
	})

	t.Run("an already-called patient is not called again", func(t *testing.T) {
		f := newFixture(t)
		first := f.book(t, "pat-1")
		second := f.book(t, "pat-2")
		_, err := f.queue.CheckIn(ctx, first.AppointmentID, "staff-1")
		require.NoError(t, err)
		_, err = f.queue.CheckIn(ctx, second.AppointmentID, "staff-1")
		require.NoError(t, err)

		callA, err := f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)
		callB, err := f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)
		require.NotEqual(t, callA.AppointmentID, callB.AppointmentID)

		third, err := f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)
		require.Nil(t, third)
	})
}

func TestStartConsultation(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps the consultation start", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)
		_, err = f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)

		status, err := f.queue.StartConsultation(ctx, conf.AppointmentID)
		require.NoError(t, err)
		require.NotNil(t, status.ConsultationStartedAt)

		appt, err := f.repo.GetAppointment(ctx, conf.AppointmentID)
		require.NoError(t, err)
		require.NotNil(t, appt.ActualStart)
	})

	t.Run("requires the patient to have been called", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)

		_, err = f.queue.StartConsultation(ctx, conf.AppointmentID)
		require.ErrorIs(t, err, ErrNotYetCalled)
	})
}

func TestCompleteConsultation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.book(t, "pat-1")
	_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
	require.NoError(t, err)
	_, err = f.queue.CallNext(ctx, "doc-1", "staff-1")
	require.NoError(t, err)

	status, err := f.queue.CompleteConsultation(ctx, conf.AppointmentID, "doc-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, status.Status)

	appt, err := f.repo.GetAppointment(ctx, conf.AppointmentID)
	require.NoError(t, err)
	require.NotNil(t, appt.ActualEnd)

	_, err = f.repo.GetWaitingRoomEntry(ctx, conf.AppointmentID)
	require.ErrorIs(t, err, ErrWaitingRoomNotFound)
}

func TestMarkNoShow(t *testing.T) {
	ctx := context.Background()

	t.Run("from booked", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")

		status, err := f.queue.MarkNoShow(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)
		require.Equal(t, StatusNoShow, status.Status)
	})

	t.Run("from checked-in removes the waiting room entry", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)

		_, err = f.queue.MarkNoShow(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)

		_, err = f.repo.GetWaitingRoomEntry(ctx, conf.AppointmentID)
		require.ErrorIs(t, err, ErrWaitingRoomNotFound)
	})

	t.Run("never from in-progress", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)
		_, err = f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)

		_, err = f.queue.MarkNoShow(ctx, conf.AppointmentID, "staff-1")
		require.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Five bookings; one through four check in, number one is called.
	confs := make([]*BookingConfirmation, 5)
	patients := []string{"pat-1", "pat-2", "pat-3", "pat-4", "pat-5"}
	for i, p := range patients {
		confs[i] = f.book(t, p)
	}
	for i := 0; i < 4; i++ {
		_, err := f.queue.CheckIn(ctx, confs[i].AppointmentID, "staff-1")
		require.NoError(t, err)
	}
	_, err := f.queue.CallNext(ctx, "doc-1", "staff-1")
	require.NoError(t, err)

	// Number four waits behind one (in consultation), two and three.
	status, err := f.queue.Position(ctx, confs[3].AppointmentID)
	require.NoError(t, err)
	require.Equal(t, 4, status.QueueNumber)
	require.Equal(t, 3, status.PatientsAhead)
	require.Equal(t, 1, status.CurrentQueueNumber)
	require.Equal(t, 45, status.EstimatedWaitMinutes)

	// Number five never checked in and counts nobody as ahead of a
	// BOOKED appointment beyond those actually waiting.
	status, err = f.queue.Position(ctx, confs[4].AppointmentID)
	require.NoError(t, err)
	require.Equal(t, StatusBooked, status.Status)
	require.Equal(t, 4, status.PatientsAhead)
}

func TestDoctorQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	confs := make([]*BookingConfirmation, 4)
	for i, p := range []string{"pat-1", "pat-2", "pat-3", "pat-4"} {
		confs[i] = f.book(t, p)
	}
	_, err := f.queue.CheckIn(ctx, confs[0].AppointmentID, "staff-1")
	require.NoError(t, err)
	_, err = f.queue.CheckIn(ctx, confs[1].AppointmentID, "staff-1")
	require.NoError(t, err)
	_, err = f.queue.CallNext(ctx, "doc-1", "staff-1")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, confs[3].AppointmentID, "pat-4", ActorPatient, "")
	require.NoError(t, err)

	dq, err := f.queue.DoctorQueue(ctx, "doc-1", testNow)
	require.NoError(t, err)
	require.Equal(t, 4, dq.Total)
	require.Equal(t, 1, dq.PendingCheckIn)
	require.Equal(t, 1, dq.Waiting)
	require.Equal(t, 1, dq.InConsultation)
	require.Equal(t, 1, dq.Cancelled)
	require.Equal(t, 1, dq.CurrentQueueNumber)
	require.Equal(t, 2, dq.NextQueueNumber)
	require.Len(t, dq.Appointments, 4)

	_, err = f.queue.DoctorQueue(ctx, "doc-unknown", testNow)
	require.ErrorIs(t, err, ErrDoctorNotFound)
}
