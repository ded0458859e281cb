package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/pulseone/appointments-service/internal/redis"
)

// QueueStatus is the live waiting-room view of one appointment.
type QueueStatus struct {
	AppointmentID         uuid.UUID
	PatientID             string
	DoctorID              string
	Date                  time.Time
	QueueNumber           int
	Status                AppointmentStatus
	CheckedInAt           *time.Time
	CalledAt              *time.Time
	CalledBy              *string
	ConsultationStartedAt *time.Time
	PatientsAhead         int
	EstimatedWaitMinutes  int
	CurrentQueueNumber    int
}

// DoctorQueue summarizes a doctor's queue for one date.
type DoctorQueue struct {
	DoctorID           string
	Date               time.Time
	Total              int
	PendingCheckIn     int
	Waiting            int
	InConsultation     int
	Completed          int
	NoShows            int
	Cancelled          int
	CurrentQueueNumber int
	NextQueueNumber    int
	Appointments       []Appointment
}

// Queue coordinates the live waiting room: check-in, call-next, consultation
// start/completion, no-shows, and position queries.
type Queue struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	log      zerolog.Logger

	now func() time.Time
}

func NewQueue(repo Repository, locker redisclient.Locker, notifier Notifier, log zerolog.Logger) *Queue {
	return &Queue{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func queueLockKey(doctorID string, date time.Time) string {
	return fmt.Sprintf("lock:queue:%s:%s", doctorID, DateOnly(date).Format("2006-01-02"))
}

// CheckIn admits a patient into the waiting room. Only BOOKED appointments on
// their own date can check in; the status change and the waiting room row are
// one atomic unit.
func (q *Queue) CheckIn(ctx context.Context, appointmentID uuid.UUID, staffID string) (*QueueStatus, error) {
	appt, err := q.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusBooked {
		return nil, ErrIllegalTransition
	}
	if !SameDate(appt.Date, q.now()) {
		return nil, ErrNotToday
	}

	updated, err := q.transition(ctx, appt, StatusCheckedIn, "patient checked in", staffID, ActorStaff, TransitionOpts{
		CreateWaiting: true,
	})
	if err != nil {
		return nil, err
	}

	return q.buildStatus(ctx, updated)
}

// CallNext claims the lowest-queue-number waiting patient for the doctor and
// moves them to IN_PROGRESS. Returns nil with no error when nobody is
// waiting. Serialized per (doctor, date); the conditional called_at claim in
// the repository is the backstop should the lock be lost.
func (q *Queue) CallNext(ctx context.Context, doctorID, calledBy string) (*QueueStatus, error) {
	date := DateOnly(q.now())

	var claimed *Appointment
	err := q.locker.WithLock(ctx, queueLockKey(doctorID, date), func(lockCtx context.Context) error {
		_, appt, err := q.repo.NextWaiting(lockCtx, doctorID, date)
		if err != nil {
			if errors.Is(err, ErrWaitingRoomNotFound) {
				return nil
			}
			return fmt.Errorf("next waiting: %w", err)
		}

		updated, err := q.transition(lockCtx, appt, StatusInProgress, "patient called for consultation", calledBy, ActorStaff, TransitionOpts{
			MarkCalled: &calledBy,
		})
		if err != nil {
			return err
		}
		claimed = updated
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrQueueContended
		}
		return nil, err
	}
	if claimed == nil {
		return nil, nil
	}

	q.log.Info().
		Stringer("appointment_id", claimed.ID).
		Str("doctor_id", doctorID).
		Int("queue_number", claimed.QueueNumber).
		Msg("patient called")

	return q.buildStatus(ctx, claimed)
}

// StartConsultation stamps the consultation start on an already-called
// patient. The appointment is IN_PROGRESS since the call; status is
// untouched.
func (q *Queue) StartConsultation(ctx context.Context, appointmentID uuid.UUID) (*QueueStatus, error) {
	if _, err := q.repo.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}

	if _, err := q.repo.MarkConsultationStarted(ctx, appointmentID, q.now()); err != nil {
		return nil, err
	}

	appt, err := q.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return q.buildStatus(ctx, appt)
}

// CompleteConsultation finishes an IN_PROGRESS visit: stamps the actual end,
// removes the waiting room row, and emits the completed event.
func (q *Queue) CompleteConsultation(ctx context.Context, appointmentID uuid.UUID, doctorID string) (*QueueStatus, error) {
	appt, err := q.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	updated, err := q.transition(ctx, appt, StatusCompleted, "consultation completed", doctorID, ActorDoctor, TransitionOpts{
		SetActualEnd:  true,
		RemoveWaiting: true,
	})
	if err != nil {
		return nil, err
	}

	q.notifier.AppointmentCompleted(ctx, updated)
	return q.buildStatus(ctx, updated)
}

// MarkNoShow moves a BOOKED or CHECKED_IN appointment to NO_SHOW and removes
// any waiting room row.
func (q *Queue) MarkNoShow(ctx context.Context, appointmentID uuid.UUID, actorID string) (*QueueStatus, error) {
	appt, err := q.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	updated, err := q.transition(ctx, appt, StatusNoShow, "patient did not appear", actorID, ActorStaff, TransitionOpts{
		RemoveWaiting: appt.Status == StatusCheckedIn,
	})
	if err != nil {
		return nil, err
	}

	return q.buildStatus(ctx, updated)
}

// Position reports where an appointment stands in its doctor's queue.
func (q *Queue) Position(ctx context.Context, appointmentID uuid.UUID) (*QueueStatus, error) {
	appt, err := q.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return q.buildStatus(ctx, appt)
}

// DoctorQueue summarizes a doctor's appointments and queue state for a date.
func (q *Queue) DoctorQueue(ctx context.Context, doctorID string, date time.Time) (*DoctorQueue, error) {
	if _, err := q.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	day := DateOnly(date)
	appointments, err := q.repo.ListByDoctorAndDate(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	dq := &DoctorQueue{
		DoctorID:     doctorID,
		Date:         day,
		Total:        len(appointments),
		Appointments: appointments,
	}
	for i := range appointments {
		switch appointments[i].Status {
		case StatusBooked:
			dq.PendingCheckIn++
		case StatusCheckedIn:
			dq.Waiting++
		case StatusInProgress:
			dq.InConsultation++
		case StatusCompleted:
			dq.Completed++
		case StatusNoShow:
			dq.NoShows++
		case StatusCancelled:
			dq.Cancelled++
		}
	}

	current, err := q.repo.CurrentInProgressQueueNumber(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	dq.CurrentQueueNumber = current

	_, next, err := q.repo.NextWaiting(ctx, doctorID, day)
	if err != nil && !errors.Is(err, ErrWaitingRoomNotFound) {
		return nil, err
	}
	if next != nil {
		dq.NextQueueNumber = next.QueueNumber
	}

	return dq, nil
}

func (q *Queue) buildStatus(ctx context.Context, appt *Appointment) (*QueueStatus, error) {
	status := &QueueStatus{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date,
		QueueNumber:   appt.QueueNumber,
		Status:        appt.Status,
	}

	entry, err := q.repo.GetWaitingRoomEntry(ctx, appt.ID)
	if err != nil && !errors.Is(err, ErrWaitingRoomNotFound) {
		return nil, err
	}
	if entry != nil {
		status.CheckedInAt = &entry.CheckedInAt
		status.CalledAt = entry.CalledAt
		status.CalledBy = entry.CalledBy
		status.ConsultationStartedAt = entry.ConsultationStartedAt
	}

	ahead, err := q.repo.CountPatientsAhead(ctx, appt.DoctorID, appt.Date, appt.QueueNumber)
	if err != nil {
		return nil, err
	}
	status.PatientsAhead = ahead

	current, err := q.repo.CurrentInProgressQueueNumber(ctx, appt.DoctorID, appt.Date)
	if err != nil {
		return nil, err
	}
	status.CurrentQueueNumber = current

	session, err := q.repo.GetSession(ctx, appt.SessionID)
	if err != nil {
		return nil, err
	}
	status.EstimatedWaitMinutes = ahead * session.ConsultationMinutes

	return status, nil
}

func (q *Queue) transition(ctx context.Context, appt *Appointment, to AppointmentStatus, reason, actorID string, actorType ActorType, opts TransitionOpts) (*Appointment, error) {
	if !CanTransition(appt.Status, to) {
		return nil, ErrIllegalTransition
	}

	prev := appt.Status
	return q.repo.TransitionAppointment(ctx, appt.ID, appt.Status, to, HistoryEntry{
		PreviousStatus: &prev,
		NewStatus:      to,
		Reason:         reason,
		ActorID:        actorID,
		ActorType:      actorType,
		CreatedAt:      q.now(),
	}, opts)
}
