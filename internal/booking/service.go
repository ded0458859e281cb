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

// BookingRequest carries everything needed to book one appointment.
type BookingRequest struct {
	PatientID      string
	DoctorID       string
	SessionID      int64
	Date           time.Time
	Type           AppointmentType
	ChiefComplaint string
}

// BookingConfirmation is what the patient gets back on success.
type BookingConfirmation struct {
	AppointmentID        uuid.UUID
	QueueNumber          int
	EstimatedStart       time.Time
	EstimatedWaitMinutes int
}

// Service is the booking engine: it validates requests against the resolved
// availability, assigns queue numbers atomically, and owns the non-queue
// lifecycle operations (cancel, payment, external completion, no-show sweep).
type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	log      zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func bookingLockKey(sessionID int64, date time.Time) string {
	return fmt.Sprintf("lock:booking:%d:%s", sessionID, DateOnly(date).Format("2006-01-02"))
}

func typeMatchesMode(t AppointmentType, m ServiceMode) bool {
	return (t == TypeVirtual && m == ModeVirtual) || (t == TypeInPerson && m == ModeInPerson)
}

// Book validates the request and reserves the next queue slot. The duplicate,
// capacity, and queue-number checks plus the insert run under a distributed
// lock per (session, date) so two concurrent bookers can never observe the
// same max queue number or push the count past capacity.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingConfirmation, error) {
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, ErrSessionNotFound
	}

	if session.DoctorID != req.DoctorID {
		return nil, ErrDoctorMismatch
	}

	today := DateOnly(s.now())
	date := DateOnly(req.Date)
	if date.Before(today) {
		return nil, ErrInvalidDate
	}

	override, err := s.loadOverride(ctx, session.ID, date)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolveAvailability(session, override, date)
	if err != nil {
		return nil, err
	}

	var conf *BookingConfirmation

	err = s.locker.WithLock(ctx, bookingLockKey(session.ID, date), func(lockCtx context.Context) error {
		existing, err := s.repo.FindActiveByPatientDoctorDate(lockCtx, req.PatientID, req.DoctorID, date)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check duplicate booking: %w", err)
		}
		if existing != nil {
			return ErrDuplicateBooking
		}

		if !typeMatchesMode(req.Type, session.ServiceMode) {
			return ErrIncompatibleType
		}

		count, err := s.repo.CountActiveAppointments(lockCtx, session.ID, date)
		if err != nil {
			return fmt.Errorf("count active appointments: %w", err)
		}
		if count >= resolved.MaxQueueSize {
			return ErrCapacityExceeded
		}

		max, err := s.repo.MaxQueueNumber(lockCtx, session.ID, date)
		if err != nil {
			return fmt.Errorf("max queue number: %w", err)
		}
		queueNumber := max + 1

		now := s.now()
		appt := &Appointment{
			ID:             uuid.New(),
			PatientID:      req.PatientID,
			DoctorID:       req.DoctorID,
			SessionID:      session.ID,
			ClinicID:       session.ClinicID,
			Date:           date,
			QueueNumber:    queueNumber,
			Type:           req.Type,
			Status:         StatusBooked,
			EstimatedStart: resolved.EstimatedStart(queueNumber),
			PaymentStatus:  PaymentPending,
		}
		if req.ChiefComplaint != "" {
			appt.ChiefComplaint = &req.ChiefComplaint
		}

		created, err := s.repo.CreateBookedAppointment(lockCtx, appt, HistoryEntry{
			NewStatus: StatusBooked,
			Reason:    "appointment booked",
			ActorID:   req.PatientID,
			ActorType: ActorPatient,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		conf = &BookingConfirmation{
			AppointmentID:        created.ID,
			QueueNumber:          created.QueueNumber,
			EstimatedStart:       created.EstimatedStart,
			EstimatedWaitMinutes: resolved.EstimatedWaitMinutes(created.QueueNumber),
		}

		s.notifier.AppointmentBooked(lockCtx, created)
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingContended
		}
		return nil, err
	}

	s.log.Info().
		Stringer("appointment_id", conf.AppointmentID).
		Int64("session_id", session.ID).
		Int("queue_number", conf.QueueNumber).
		Msg("appointment booked")

	return conf, nil
}

// loadOverride treats a missing override as nil; any other failure is real.
func (s *Service) loadOverride(ctx context.Context, sessionID int64, date time.Time) (*SessionOverride, error) {
	override, err := s.repo.GetOverride(ctx, sessionID, date)
	if err != nil {
		if errors.Is(err, ErrOverrideNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load override: %w", err)
	}
	return override, nil
}

// Cancel moves a BOOKED or CHECKED_IN appointment to CANCELLED. The queue
// number stays assigned; numbers are never compacted.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID string, actorType ActorType, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "appointment cancelled"
	}
	updated, err := s.transition(ctx, appt, StatusCancelled, reason, actorID, actorType, TransitionOpts{
		RemoveWaiting: appt.Status == StatusCheckedIn,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.AppointmentCancelled(ctx, updated)
	return updated, nil
}

// CompleteFromExternalSource is the inbound hook for the video consultation
// system. It passes through the same state machine as every other caller:
// the ids must match and only IN_PROGRESS can complete.
func (s *Service) CompleteFromExternalSource(ctx context.Context, id uuid.UUID, doctorID, patientID string) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, ErrDoctorMismatch
	}
	if appt.PatientID != patientID {
		return nil, ErrPatientMismatch
	}

	updated, err := s.transition(ctx, appt, StatusCompleted, "consultation completed via video session", doctorID, ActorDoctor, TransitionOpts{
		SetActualEnd:  true,
		RemoveWaiting: true,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.AppointmentCompleted(ctx, updated)
	return updated, nil
}

// VerifyPayment records the external payment outcome. Payment is not a
// status transition, so no history row is written.
func (s *Service) VerifyPayment(ctx context.Context, id uuid.UUID, paymentRef string) (*Appointment, error) {
	if _, err := s.repo.GetAppointment(ctx, id); err != nil {
		return nil, err
	}

	updated, err := s.repo.SetPayment(ctx, id, PaymentPaid, paymentRef)
	if err != nil {
		return nil, err
	}

	s.log.Info().Stringer("appointment_id", id).Msg("payment verified")
	return updated, nil
}

// SweepOverdue marks every past-date appointment still BOOKED or CHECKED_IN
// as NO_SHOW. Intended to be called periodically by the worker. Returns the
// number of appointments swept.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.FindOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	swept := 0
	for i := range overdue {
		appt := &overdue[i]
		_, err := s.transition(ctx, appt, StatusNoShow, "patient did not appear", "scheduler", ActorSystem, TransitionOpts{
			RemoveWaiting: appt.Status == StatusCheckedIn,
		})
		if err != nil {
			s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("overdue sweep skipped appointment")
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	if _, err := s.repo.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID string, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// transition validates the edge against the state machine before handing the
// conditional update to the repository; a concurrent transition surfaces as
// ErrIllegalTransition from either layer.
func (s *Service) transition(ctx context.Context, appt *Appointment, to AppointmentStatus, reason, actorID string, actorType ActorType, opts TransitionOpts) (*Appointment, error) {
	if !CanTransition(appt.Status, to) {
		return nil, ErrIllegalTransition
	}

	prev := appt.Status
	return s.repo.TransitionAppointment(ctx, appt.ID, appt.Status, to, HistoryEntry{
		PreviousStatus: &prev,
		NewStatus:      to,
		Reason:         reason,
		ActorID:        actorID,
		ActorType:      actorType,
		CreatedAt:      s.now(),
	}, opts)
}
