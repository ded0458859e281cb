package booking

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBook(t *testing.T) {
	ctx := context.Background()

	t.Run("first booking gets queue number one", func(t *testing.T) {
		f := newFixture(t)

		conf := f.book(t, "pat-1")
		require.Equal(t, 1, conf.QueueNumber)
		require.Equal(t, time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), conf.EstimatedStart)
		require.Equal(t, 0, conf.EstimatedWaitMinutes)

		appt, err := f.repo.GetAppointment(ctx, conf.AppointmentID)
		require.NoError(t, err)
		require.Equal(t, StatusBooked, appt.Status)
		require.Equal(t, PaymentPending, appt.PaymentStatus)
	})

	t.Run("queue numbers are sequential", func(t *testing.T) {
		f := newFixture(t)

		first := f.book(t, "pat-1")
		second := f.book(t, "pat-2")
		third := f.book(t, "pat-3")
		require.Equal(t, 1, first.QueueNumber)
		require.Equal(t, 2, second.QueueNumber)
		require.Equal(t, 3, third.QueueNumber)

		// Third in the queue at 15 minutes each starts 30 minutes in.
		require.Equal(t, time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC), third.EstimatedStart)
		require.Equal(t, 30, third.EstimatedWaitMinutes)
	})

	t.Run("booking records a creation history entry", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")

		history, err := f.svc.History(ctx, conf.AppointmentID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.Nil(t, history[0].PreviousStatus)
		require.Equal(t, StatusBooked, history[0].NewStatus)
		require.Equal(t, "pat-1", history[0].ActorID)
		require.Equal(t, ActorPatient, history[0].ActorType)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: 999, Date: testNow, Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("inactive session behaves as missing", func(t *testing.T) {
		f := newFixture(t)
		f.session.Active = false
		_, err := f.repo.UpdateSession(ctx, f.session)
		require.NoError(t, err)

		_, err = f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID, Date: testNow, Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("doctor must own the session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-2", SessionID: f.session.ID, Date: testNow, Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrDoctorMismatch)
	})

	t.Run("past date", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID,
			Date: testNow.AddDate(0, 0, -7), Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("date on the wrong weekday", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID,
			Date: testNow.AddDate(0, 0, 1), Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrSessionNotAvailable)
	})

	t.Run("cancelled by override", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.repo.CreateOverride(ctx, &SessionOverride{
			SessionID: f.session.ID, Date: testNow, Cancelled: true,
		})
		require.NoError(t, err)

		_, err = f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID, Date: testNow, Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrSessionCancelled)
	})

	t.Run("duplicate active booking for same patient doctor date", func(t *testing.T) {
		f := newFixture(t)
		f.book(t, "pat-1")

		_, err := f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID, Date: testNow, Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrDuplicateBooking)
	})

	t.Run("cancelled booking does not block rebooking", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")

		_, err := f.svc.Cancel(ctx, conf.AppointmentID, "pat-1", ActorPatient, "")
		require.NoError(t, err)

		again := f.book(t, "pat-1")
		require.NotEqual(t, conf.AppointmentID, again.AppointmentID)
	})

	t.Run("appointment type must match session mode", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID, Date: testNow, Type: TypeVirtual,
		})
		require.ErrorIs(t, err, ErrIncompatibleType)
	})

	t.Run("capacity from override caps bookings", func(t *testing.T) {
		f := newFixture(t)
		capacity := 2
		_, err := f.repo.CreateOverride(ctx, &SessionOverride{
			SessionID: f.session.ID, Date: testNow, MaxQueueSize: &capacity,
		})
		require.NoError(t, err)

		f.book(t, "pat-1")
		f.book(t, "pat-2")
		_, err = f.svc.Book(ctx, BookingRequest{
			PatientID: "pat-3", DoctorID: "doc-1", SessionID: f.session.ID, Date: testNow, Type: TypeInPerson,
		})
		require.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("cancelled slot frees capacity but middle numbers are not reused", func(t *testing.T) {
		f := newFixture(t)
		f.book(t, "pat-1")
		second := f.book(t, "pat-2")
		f.book(t, "pat-3")

		_, err := f.svc.Cancel(ctx, second.AppointmentID, "pat-2", ActorPatient, "schedule conflict")
		require.NoError(t, err)

		next := f.book(t, "pat-4")
		require.Equal(t, 4, next.QueueNumber)

		// The cancelled appointment keeps its number for audit.
		cancelled, err := f.repo.GetAppointment(ctx, second.AppointmentID)
		require.NoError(t, err)
		require.Equal(t, 2, cancelled.QueueNumber)
		require.Equal(t, StatusCancelled, cancelled.Status)
	})
}

// TestBookConcurrent hammers one (session, date) from many goroutines and
// checks the two core guarantees: capacity is never exceeded and the winners
// hold distinct contiguous queue numbers.
func TestBookConcurrent(t *testing.T) {
	f := newFixture(t)
	capacity := 5
	_, err := f.repo.CreateOverride(context.Background(), &SessionOverride{
		SessionID: f.session.ID, Date: testNow, MaxQueueSize: &capacity,
	})
	require.NoError(t, err)

	const bookers = 20
	results := make([]error, bookers)
	numbers := make([]int, bookers)

	var wg sync.WaitGroup
	for i := 0; i < bookers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conf, err := f.svc.Book(context.Background(), BookingRequest{
				PatientID: "pat-" + string(rune('a'+i)),
				DoctorID:  "doc-1",
				SessionID: f.session.ID,
				Date:      testNow,
				Type:      TypeInPerson,
			})
			results[i] = err
			if err == nil {
				numbers[i] = conf.QueueNumber
			}
		}(i)
	}
	wg.Wait()

	var won []int
	for i := 0; i < bookers; i++ {
		if results[i] == nil {
			won = append(won, numbers[i])
		} else {
			require.ErrorIs(t, results[i], ErrCapacityExceeded)
		}
	}

	require.Len(t, won, capacity)
	sort.Ints(won)
	for i, n := range won {
		require.Equal(t, i+1, n, "queue numbers must be contiguous from one")
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels a booked appointment with reason", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")

		cancelled, err := f.svc.Cancel(ctx, conf.AppointmentID, "pat-1", ActorPatient, "feeling better")
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, cancelled.Status)

		history, err := f.svc.History(ctx, conf.AppointmentID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, StatusBooked, *history[1].PreviousStatus)
		require.Equal(t, StatusCancelled, history[1].NewStatus)
		require.Equal(t, "feeling better", history[1].Reason)
	})

	t.Run("cancel after check-in clears the waiting room", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, conf.AppointmentID, "staff-1", ActorStaff, "")
		require.NoError(t, err)

		_, err = f.repo.GetWaitingRoomEntry(ctx, conf.AppointmentID)
		require.ErrorIs(t, err, ErrWaitingRoomNotFound)
	})

	t.Run("completed appointments cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)
		_, err = f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)
		_, err = f.queue.CompleteConsultation(ctx, conf.AppointmentID, "doc-1")
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, conf.AppointmentID, "pat-1", ActorPatient, "")
		require.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestCompleteFromExternalSource(t *testing.T) {
	ctx := context.Background()

	prepareInProgress := func(t *testing.T, f *fixture) *BookingConfirmation {
		t.Helper()
		conf := f.book(t, "pat-1")
		_, err := f.queue.CheckIn(ctx, conf.AppointmentID, "staff-1")
		require.NoError(t, err)
		_, err = f.queue.CallNext(ctx, "doc-1", "staff-1")
		require.NoError(t, err)
		return conf
	}

	t.Run("completes an in-progress consultation", func(t *testing.T) {
		f := newFixture(t)
		conf := prepareInProgress(t, f)

		done, err := f.svc.CompleteFromExternalSource(ctx, conf.AppointmentID, "doc-1", "pat-1")
		require.NoError(t, err)
		require.Equal(t, StatusCompleted, done.Status)
		require.NotNil(t, done.ActualEnd)

		_, err = f.repo.GetWaitingRoomEntry(ctx, conf.AppointmentID)
		require.ErrorIs(t, err, ErrWaitingRoomNotFound)
	})

	t.Run("rejects mismatched ids", func(t *testing.T) {
		f := newFixture(t)
		conf := prepareInProgress(t, f)

		_, err := f.svc.CompleteFromExternalSource(ctx, conf.AppointmentID, "doc-2", "pat-1")
		require.ErrorIs(t, err, ErrDoctorMismatch)
		_, err = f.svc.CompleteFromExternalSource(ctx, conf.AppointmentID, "doc-1", "pat-2")
		require.ErrorIs(t, err, ErrPatientMismatch)
	})

	t.Run("rejects appointments not in progress", func(t *testing.T) {
		f := newFixture(t)
		conf := f.book(t, "pat-1")

		_, err := f.svc.CompleteFromExternalSource(ctx, conf.AppointmentID, "doc-1", "pat-1")
		require.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.book(t, "pat-1")

	updated, err := f.svc.VerifyPayment(ctx, conf.AppointmentID, "txn-8842")
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, updated.PaymentStatus)
	require.NotNil(t, updated.PaymentRef)
	require.Equal(t, "txn-8842", *updated.PaymentRef)
	require.Equal(t, StatusBooked, updated.Status)

	// Payment is not a lifecycle transition and writes no history.
	history, err := f.svc.History(ctx, conf.AppointmentID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestSweepOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A booking from last Monday that nobody showed up for.
	lastWeek := testNow.AddDate(0, 0, -7)
	stale, err := f.repo.CreateBookedAppointment(ctx, &Appointment{
		ID: newTestUUID(t), PatientID: "pat-1", DoctorID: "doc-1", SessionID: f.session.ID,
		Date: lastWeek, QueueNumber: 1, Type: TypeInPerson, Status: StatusBooked,
		EstimatedStart: NewTimeOfDay(9, 0).At(lastWeek), PaymentStatus: PaymentPending,
	}, HistoryEntry{NewStatus: StatusBooked, Reason: "appointment booked", ActorID: "pat-1", ActorType: ActorPatient, CreatedAt: lastWeek})
	require.NoError(t, err)

	// Today's booking must survive the sweep.
	today := f.book(t, "pat-2")

	swept, err := f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	appt, err := f.repo.GetAppointment(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusNoShow, appt.Status)

	history, err := f.repo.ListHistory(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, ActorSystem, history[len(history)-1].ActorType)

	kept, err := f.repo.GetAppointment(ctx, today.AppointmentID)
	require.NoError(t, err)
	require.Equal(t, StatusBooked, kept.Status)
}

func TestListPatientAppointments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.book(t, "pat-1")

	list, err := f.svc.ListPatientAppointments(ctx, "pat-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = f.svc.ListPatientAppointments(ctx, "pat-1", 10, 5)
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = f.svc.ListPatientAppointments(ctx, "pat-unknown", 0, 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestHistoryUnknownAppointment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.History(context.Background(), newTestUUID(t))
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}
