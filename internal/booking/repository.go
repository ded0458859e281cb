package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransitionOpts are the side effects applied atomically with a status
// transition. The waiting room invariant (row exists iff CHECKED_IN or
// IN_PROGRESS) depends on these running in the same transaction as the
// status update and history insert.
type TransitionOpts struct {
	// CreateWaiting inserts a waiting room row checked in at the history
	// entry's timestamp.
	CreateWaiting bool
	// MarkCalled stamps called_at/called_by on the waiting room row.
	MarkCalled *string
	// RemoveWaiting deletes the waiting room row if one exists.
	RemoveWaiting bool
	// SetActualEnd stamps the appointment's actual end time.
	SetActualEnd bool
}

// Repository contains all persistence interactions the engine needs.
type Repository interface {
	// Directory (read-mostly; rows are synced from the profile service).
	GetDoctor(ctx context.Context, userID string) (*Doctor, error)
	GetClinic(ctx context.Context, id int64) (*Clinic, error)
	UpsertDoctor(ctx context.Context, d *Doctor) error
	UpsertClinic(ctx context.Context, c *Clinic) error

	// Sessions and overrides.
	GetSession(ctx context.Context, id int64) (*Session, error)
	CreateSession(ctx context.Context, s *Session) (*Session, error)
	UpdateSession(ctx context.Context, s *Session) (*Session, error)
	ListSessionsByDoctor(ctx context.Context, doctorID string, activeOnly bool) ([]Session, error)
	ListSessionsByDoctorAndDay(ctx context.Context, doctorID string, day time.Weekday) ([]Session, error)
	FindOverlappingSessions(ctx context.Context, doctorID string, day time.Weekday, start, end TimeOfDay) ([]Session, error)
	GetOverride(ctx context.Context, sessionID int64, date time.Time) (*SessionOverride, error)
	CreateOverride(ctx context.Context, ov *SessionOverride) (*SessionOverride, error)

	// Appointments.
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// CreateBookedAppointment inserts the appointment and its creation
	// history entry in one transaction. Must only be called while holding
	// the (session, date) booking lock.
	CreateBookedAppointment(ctx context.Context, appt *Appointment, entry HistoryEntry) (*Appointment, error)
	MaxQueueNumber(ctx context.Context, sessionID int64, date time.Time) (int, error)
	CountActiveAppointments(ctx context.Context, sessionID int64, date time.Time) (int, error)
	FindActiveByPatientDoctorDate(ctx context.Context, patientID, doctorID string, date time.Time) (*Appointment, error)
	ListByDoctorAndDate(ctx context.Context, doctorID string, date time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]Appointment, error)
	FindOverdue(ctx context.Context, before time.Time) ([]Appointment, error)
	SetPayment(ctx context.Context, id uuid.UUID, status PaymentStatus, ref string) (*Appointment, error)

	// TransitionAppointment performs the conditional status update, the
	// history insert, and any TransitionOpts side effects as one atomic
	// unit. When the appointment's status no longer equals from it returns
	// ErrIllegalTransition and mutates nothing.
	TransitionAppointment(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, entry HistoryEntry, opts TransitionOpts) (*Appointment, error)
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error)

	// Waiting room.
	GetWaitingRoomEntry(ctx context.Context, appointmentID uuid.UUID) (*WaitingRoomEntry, error)
	// NextWaiting returns the lowest-queue-number CHECKED_IN appointment for
	// the doctor on the date whose waiting room row has not been called, or
	// ErrWaitingRoomNotFound when nobody is waiting.
	NextWaiting(ctx context.Context, doctorID string, date time.Time) (*WaitingRoomEntry, *Appointment, error)
	// MarkConsultationStarted stamps the waiting room row and the
	// appointment's actual start in one transaction.
	MarkConsultationStarted(ctx context.Context, appointmentID uuid.UUID, at time.Time) (*WaitingRoomEntry, error)
	CurrentInProgressQueueNumber(ctx context.Context, doctorID string, date time.Time) (int, error)
	CountPatientsAhead(ctx context.Context, doctorID string, date time.Time, queueNumber int) (int, error)
}
