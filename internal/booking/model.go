package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked     AppointmentStatus = "BOOKED"
	StatusCheckedIn  AppointmentStatus = "CHECKED_IN"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
	StatusNoShow     AppointmentStatus = "NO_SHOW"
)

// ServiceMode is the modality a session is held in.
type ServiceMode string

const (
	ModeVirtual  ServiceMode = "VIRTUAL"
	ModeInPerson ServiceMode = "IN_PERSON"
)

// AppointmentType mirrors ServiceMode on the appointment side; a booking is
// only valid when its type matches the session's mode.
type AppointmentType string

const (
	TypeVirtual  AppointmentType = "VIRTUAL"
	TypeInPerson AppointmentType = "IN_PERSON"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// ActorType identifies who drove a status transition.
type ActorType string

const (
	ActorPatient        ActorType = "PATIENT"
	ActorDoctor         ActorType = "DOCTOR"
	ActorStaff          ActorType = "STAFF"
	ActorSystem         ActorType = "SYSTEM"
	ActorPaymentService ActorType = "PAYMENT_SERVICE"
)

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// At anchors the time of day on a calendar date, keeping the date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// DateOnly strips the clock portion so dates compare by calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// Doctor and Clinic are directory records owned by the profile service; the
// engine only reads them for validation and display.
type Doctor struct {
	UserID         string
	Name           string
	Specialization *string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Clinic struct {
	ID        int64
	Name      string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is a doctor's recurring weekly availability window.
type Session struct {
	ID                  int64
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
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SessionOverride is a single date's exception to a session. At most one
// exists per (session, date). Nil fields inherit the session's values.
type SessionOverride struct {
	ID           int64
	SessionID    int64
	Date         time.Time
	Cancelled    bool
	StartTime    *TimeOfDay
	EndTime      *TimeOfDay
	MaxQueueSize *int
	Reason       *string
	CreatedAt    time.Time
}

// Appointment is one patient's booking. It is never deleted; terminal states
// persist for audit.
type Appointment struct {
	ID             uuid.UUID
	PatientID      string
	DoctorID       string
	SessionID      int64
	ClinicID       *int64
	Date           time.Time
	QueueNumber    int
	Type           AppointmentType
	Status         AppointmentStatus
	ChiefComplaint *string
	EstimatedStart time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
	PaymentStatus  PaymentStatus
	PaymentRef     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HistoryEntry is one row of the append-only status audit log. PreviousStatus
// is nil for the creation entry.
type HistoryEntry struct {
	ID             int64
	AppointmentID  uuid.UUID
	PreviousStatus *AppointmentStatus
	NewStatus      AppointmentStatus
	Reason         string
	ActorID        string
	ActorType      ActorType
	CreatedAt      time.Time
}

// WaitingRoomEntry exists exactly while its appointment is CHECKED_IN or
// IN_PROGRESS.
type WaitingRoomEntry struct {
	ID                    uuid.UUID
	AppointmentID         uuid.UUID
	CheckedInAt           time.Time
	CalledAt              *time.Time
	CalledBy              *string
	ConsultationStartedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Called reports whether staff have called this patient in.
func (w *WaitingRoomEntry) Called() bool {
	return w.CalledAt != nil
}
