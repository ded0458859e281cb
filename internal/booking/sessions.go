package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sessions manages session definitions and their date overrides. Creation
// policy lives here, outside the booking runtime path: clinic admins create
// IN_PERSON sessions tied to a clinic, doctors create VIRTUAL ones with no
// clinic.
type Sessions struct {
	repo Repository
	log  zerolog.Logger

	now func() time.Time
}

func NewSessions(repo Repository, log zerolog.Logger) *Sessions {
	return &Sessions{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

type CreateSessionRequest struct {
	DoctorID            string
	ClinicID            *int64
	DayOfWeek           time.Weekday
	StartTime           TimeOfDay
	EndTime             TimeOfDay
	ServiceMode         ServiceMode
	MaxQueueSize        int
	ConsultationMinutes int
	EffectiveFrom       time.Time
	EffectiveUntil      *time.Time
}

// UpdateSessionRequest applies only its non-nil fields. Updates never touch
// appointments already booked against the session.
type UpdateSessionRequest struct {
	ClinicID            *int64
	DayOfWeek           *time.Weekday
	StartTime           *TimeOfDay
	EndTime             *TimeOfDay
	MaxQueueSize        *int
	ConsultationMinutes *int
	EffectiveUntil      *time.Time
}

type CreateOverrideRequest struct {
	SessionID    int64
	Date         time.Time
	Cancelled    bool
	StartTime    *TimeOfDay
	EndTime      *TimeOfDay
	MaxQueueSize *int
	Reason       string
}

// SessionAvailability is the resolved view of one (session, date) with its
// remaining capacity.
type SessionAvailability struct {
	SessionID int64
	Resolved  ResolvedAvailability
	Booked    int
	Remaining int
}

type CalendarSlot struct {
	SessionID   int64
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	ServiceMode ServiceMode
	Available   int
	Total       int
}

type CalendarDay struct {
	Date      time.Time
	DayOfWeek time.Weekday
	Available bool
	Slots     []CalendarSlot
}

func (s *Sessions) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	doctor, err := s.repo.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorNotFound
	}

	switch req.ServiceMode {
	case ModeInPerson:
		if req.ClinicID == nil {
			return nil, ErrClinicRequired
		}
		if _, err := s.repo.GetClinic(ctx, *req.ClinicID); err != nil {
			return nil, err
		}
	case ModeVirtual:
		if req.ClinicID != nil {
			return nil, ErrClinicNotAllowed
		}
	}

	if !req.StartTime.Before(req.EndTime) {
		return nil, ErrInvalidSessionTimes
	}
	if req.MaxQueueSize <= 0 || req.ConsultationMinutes <= 0 {
		return nil, ErrInvalidCapacity
	}

	overlapping, err := s.repo.FindOverlappingSessions(ctx, req.DoctorID, req.DayOfWeek, req.StartTime, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("check overlapping sessions: %w", err)
	}
	if len(overlapping) > 0 {
		return nil, ErrSessionOverlap
	}

	created, err := s.repo.CreateSession(ctx, &Session{
		DoctorID:            req.DoctorID,
		ClinicID:            req.ClinicID,
		DayOfWeek:           req.DayOfWeek,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		ServiceMode:         req.ServiceMode,
		MaxQueueSize:        req.MaxQueueSize,
		ConsultationMinutes: req.ConsultationMinutes,
		EffectiveFrom:       DateOnly(req.EffectiveFrom),
		EffectiveUntil:      req.EffectiveUntil,
		Active:              true,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("session_id", created.ID).
		Str("doctor_id", created.DoctorID).
		Str("mode", string(created.ServiceMode)).
		Msg("session created")

	return created, nil
}

func (s *Sessions) Update(ctx context.Context, sessionID int64, req UpdateSessionRequest) (*Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if req.ClinicID != nil {
		if session.ServiceMode == ModeVirtual {
			return nil, ErrClinicNotAllowed
		}
		if _, err := s.repo.GetClinic(ctx, *req.ClinicID); err != nil {
			return nil, err
		}
		session.ClinicID = req.ClinicID
	}
	if req.DayOfWeek != nil {
		session.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		session.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		session.EndTime = *req.EndTime
	}
	if !session.StartTime.Before(session.EndTime) {
		return nil, ErrInvalidSessionTimes
	}
	if req.MaxQueueSize != nil {
		if *req.MaxQueueSize <= 0 {
			return nil, ErrInvalidCapacity
		}
		session.MaxQueueSize = *req.MaxQueueSize
	}
	if req.ConsultationMinutes != nil {
		if *req.ConsultationMinutes <= 0 {
			return nil, ErrInvalidCapacity
		}
		session.ConsultationMinutes = *req.ConsultationMinutes
	}
	if req.EffectiveUntil != nil {
		session.EffectiveUntil = req.EffectiveUntil
	}

	if req.DayOfWeek != nil || req.StartTime != nil || req.EndTime != nil {
		overlapping, err := s.repo.FindOverlappingSessions(ctx, session.DoctorID, session.DayOfWeek, session.StartTime, session.EndTime)
		if err != nil {
			return nil, fmt.Errorf("check overlapping sessions: %w", err)
		}
		for i := range overlapping {
			if overlapping[i].ID != session.ID {
				return nil, ErrSessionOverlap
			}
		}
	}

	return s.repo.UpdateSession(ctx, session)
}

func (s *Sessions) Deactivate(ctx context.Context, sessionID int64) (*Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Active = false
	return s.repo.UpdateSession(ctx, session)
}

func (s *Sessions) ListByDoctor(ctx context.Context, doctorID string) ([]Session, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListSessionsByDoctor(ctx, doctorID, true)
}

func (s *Sessions) Get(ctx context.Context, sessionID int64) (*Session, error) {
	return s.repo.GetSession(ctx, sessionID)
}

// CreateOverride records a date exception. At most one override exists per
// (session, date); the unique constraint surfaces duplicates as
// ErrOverrideExists.
func (s *Sessions) CreateOverride(ctx context.Context, req CreateOverrideRequest) (*SessionOverride, error) {
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	date := DateOnly(req.Date)
	if date.Before(DateOnly(s.now())) {
		return nil, ErrInvalidDate
	}
	if date.Weekday() != session.DayOfWeek {
		return nil, ErrSessionNotAvailable
	}
	if req.StartTime != nil && req.EndTime != nil && !req.StartTime.Before(*req.EndTime) {
		return nil, ErrInvalidSessionTimes
	}
	if req.MaxQueueSize != nil && *req.MaxQueueSize <= 0 {
		return nil, ErrInvalidCapacity
	}

	ov := &SessionOverride{
		SessionID:    session.ID,
		Date:         date,
		Cancelled:    req.Cancelled,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		MaxQueueSize: req.MaxQueueSize,
	}
	if req.Reason != "" {
		ov.Reason = &req.Reason
	}

	created, err := s.repo.CreateOverride(ctx, ov)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("session_id", session.ID).
		Time("date", date).
		Bool("cancelled", created.Cancelled).
		Msg("session override created")

	return created, nil
}

// Availability resolves one (session, date) and reports remaining capacity.
func (s *Sessions) Availability(ctx context.Context, sessionID int64, date time.Time) (*SessionAvailability, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	override, err := s.repo.GetOverride(ctx, sessionID, date)
	if err != nil && !errors.Is(err, ErrOverrideNotFound) {
		return nil, err
	}

	resolved, err := ResolveAvailability(session, override, date)
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.CountActiveAppointments(ctx, sessionID, date)
	if err != nil {
		return nil, err
	}

	remaining := resolved.MaxQueueSize - booked
	if remaining < 0 {
		remaining = 0
	}

	return &SessionAvailability{
		SessionID: sessionID,
		Resolved:  *resolved,
		Booked:    booked,
		Remaining: remaining,
	}, nil
}

// Calendar generates the doctor's day-by-day availability starting today.
// Cancelled or out-of-range dates produce days with no slots.
func (s *Sessions) Calendar(ctx context.Context, doctorID string, days int) ([]CalendarDay, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}

	start := DateOnly(s.now())
	calendar := make([]CalendarDay, 0, days)

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		day := CalendarDay{Date: date, DayOfWeek: date.Weekday()}

		sessions, err := s.repo.ListSessionsByDoctorAndDay(ctx, doctorID, date.Weekday())
		if err != nil {
			return nil, err
		}

		for j := range sessions {
			session := &sessions[j]

			override, err := s.repo.GetOverride(ctx, session.ID, date)
			if err != nil && !errors.Is(err, ErrOverrideNotFound) {
				return nil, err
			}

			resolved, err := ResolveAvailability(session, override, date)
			if err != nil {
				// Not bookable that day; the day simply has no slot for it.
				continue
			}

			booked, err := s.repo.CountActiveAppointments(ctx, session.ID, date)
			if err != nil {
				return nil, err
			}

			available := resolved.MaxQueueSize - booked
			if available < 0 {
				available = 0
			}
			if available > 0 {
				day.Available = true
			}

			day.Slots = append(day.Slots, CalendarSlot{
				SessionID:   session.ID,
				StartTime:   resolved.StartTime,
				EndTime:     resolved.EndTime,
				ServiceMode: session.ServiceMode,
				Available:   available,
				Total:       resolved.MaxQueueSize,
			})
		}

		calendar = append(calendar, day)
	}

	return calendar, nil
}
