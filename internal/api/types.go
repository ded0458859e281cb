package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulseone/appointments-service/internal/booking"
)

const dateLayout = "2006-01-02"

type BookAppointmentRequest struct {
	PatientID      string `json:"patient_id"`
	DoctorID       string `json:"doctor_id"`
	SessionID      int64  `json:"session_id"`
	Date           string `json:"date"` // YYYY-MM-DD
	Type           string `json:"type"` // VIRTUAL or IN_PERSON
	ChiefComplaint string `json:"chief_complaint,omitempty"`
}

type BookingConfirmationResponse struct {
	AppointmentID        uuid.UUID `json:"appointment_id"`
	QueueNumber          int       `json:"queue_number"`
	EstimatedStart       time.Time `json:"estimated_start"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      string     `json:"patient_id"`
	DoctorID       string     `json:"doctor_id"`
	SessionID      int64      `json:"session_id"`
	ClinicID       *int64     `json:"clinic_id,omitempty"`
	Date           string     `json:"date"`
	QueueNumber    int        `json:"queue_number"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	ChiefComplaint *string    `json:"chief_complaint,omitempty"`
	EstimatedStart time.Time  `json:"estimated_start"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	PaymentStatus  string     `json:"payment_status"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		DoctorID:       a.DoctorID,
		SessionID:      a.SessionID,
		ClinicID:       a.ClinicID,
		Date:           a.Date.Format(dateLayout),
		QueueNumber:    a.QueueNumber,
		Type:           string(a.Type),
		Status:         string(a.Status),
		ChiefComplaint: a.ChiefComplaint,
		EstimatedStart: a.EstimatedStart,
		ActualStart:    a.ActualStart,
		ActualEnd:      a.ActualEnd,
		PaymentStatus:  string(a.PaymentStatus),
		CreatedAt:      a.CreatedAt,
	}
}

type HistoryEntryResponse struct {
	PreviousStatus *string   `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Reason         string    `json:"reason"`
	ActorID        string    `json:"actor_id"`
	ActorType      string    `json:"actor_type"`
	CreatedAt      time.Time `json:"created_at"`
}

func toHistoryResponse(entries []booking.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := HistoryEntryResponse{
			NewStatus: string(e.NewStatus),
			Reason:    e.Reason,
			ActorID:   e.ActorID,
			ActorType: string(e.ActorType),
			CreatedAt: e.CreatedAt,
		}
		if e.PreviousStatus != nil {
			prev := string(*e.PreviousStatus)
			resp.PreviousStatus = &prev
		}
		out = append(out, resp)
	}
	return out
}

type CancelAppointmentRequest struct {
	ActorID   string `json:"actor_id"`
	ActorType string `json:"actor_type"` // PATIENT, DOCTOR or STAFF
	Reason    string `json:"reason,omitempty"`
}

type VerifyPaymentRequest struct {
	PaymentRef string `json:"payment_ref"`
}

type CompleteExternalRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
}

type QueueStatusResponse struct {
	AppointmentID         uuid.UUID  `json:"appointment_id"`
	PatientID             string     `json:"patient_id"`
	DoctorID              string     `json:"doctor_id"`
	Date                  string     `json:"date"`
	QueueNumber           int        `json:"queue_number"`
	Status                string     `json:"status"`
	CheckedInAt           *time.Time `json:"checked_in_at,omitempty"`
	CalledAt              *time.Time `json:"called_at,omitempty"`
	CalledBy              *string    `json:"called_by,omitempty"`
	ConsultationStartedAt *time.Time `json:"consultation_started_at,omitempty"`
	PatientsAhead         int        `json:"patients_ahead"`
	EstimatedWaitMinutes  int        `json:"estimated_wait_minutes"`
	CurrentQueueNumber    int        `json:"current_queue_number"`
}

func toQueueStatusResponse(s *booking.QueueStatus) QueueStatusResponse {
	return QueueStatusResponse{
		AppointmentID:         s.AppointmentID,
		PatientID:             s.PatientID,
		DoctorID:              s.DoctorID,
		Date:                  s.Date.Format(dateLayout),
		QueueNumber:           s.QueueNumber,
		Status:                string(s.Status),
		CheckedInAt:           s.CheckedInAt,
		CalledAt:              s.CalledAt,
		CalledBy:              s.CalledBy,
		ConsultationStartedAt: s.ConsultationStartedAt,
		PatientsAhead:         s.PatientsAhead,
		EstimatedWaitMinutes:  s.EstimatedWaitMinutes,
		CurrentQueueNumber:    s.CurrentQueueNumber,
	}
}

type DoctorQueueResponse struct {
	DoctorID           string                `json:"doctor_id"`
	Date               string                `json:"date"`
	Total              int                   `json:"total"`
	PendingCheckIn     int                   `json:"pending_check_in"`
	Waiting            int                   `json:"waiting"`
	InConsultation     int                   `json:"in_consultation"`
	Completed          int                   `json:"completed"`
	NoShows            int                   `json:"no_shows"`
	Cancelled          int                   `json:"cancelled"`
	CurrentQueueNumber int                   `json:"current_queue_number"`
	NextQueueNumber    int                   `json:"next_queue_number"`
	Appointments       []AppointmentResponse `json:"appointments"`
}

type CreateSessionRequest struct {
	DoctorID            string `json:"doctor_id"`
	ClinicID            *int64 `json:"clinic_id,omitempty"`
	DayOfWeek           int    `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartTime           string `json:"start_time"`  // HH:MM
	EndTime             string `json:"end_time"`
	ServiceMode         string `json:"service_mode"`
	MaxQueueSize        int    `json:"max_queue_size"`
	ConsultationMinutes int    `json:"consultation_minutes"`
	EffectiveFrom       string `json:"effective_from"` // YYYY-MM-DD
	EffectiveUntil      string `json:"effective_until,omitempty"`
}

type UpdateSessionRequest struct {
	ClinicID            *int64  `json:"clinic_id,omitempty"`
	DayOfWeek           *int    `json:"day_of_week,omitempty"`
	StartTime           *string `json:"start_time,omitempty"`
	EndTime             *string `json:"end_time,omitempty"`
	MaxQueueSize        *int    `json:"max_queue_size,omitempty"`
	ConsultationMinutes *int    `json:"consultation_minutes,omitempty"`
	EffectiveUntil      *string `json:"effective_until,omitempty"`
}

type SessionResponse struct {
	ID                  int64  `json:"id"`
	DoctorID            string `json:"doctor_id"`
	ClinicID            *int64 `json:"clinic_id,omitempty"`
	DayOfWeek           int    `json:"day_of_week"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	ServiceMode         string `json:"service_mode"`
	MaxQueueSize        int    `json:"max_queue_size"`
	ConsultationMinutes int    `json:"consultation_minutes"`
	EffectiveFrom       string `json:"effective_from"`
	EffectiveUntil      string `json:"effective_until,omitempty"`
	Active              bool   `json:"active"`
}

func toSessionResponse(s *booking.Session) SessionResponse {
	resp := SessionResponse{
		ID:                  s.ID,
		DoctorID:            s.DoctorID,
		ClinicID:            s.ClinicID,
		DayOfWeek:           int(s.DayOfWeek),
		StartTime:           s.StartTime.String(),
		EndTime:             s.EndTime.String(),
		ServiceMode:         string(s.ServiceMode),
		MaxQueueSize:        s.MaxQueueSize,
		ConsultationMinutes: s.ConsultationMinutes,
		EffectiveFrom:       s.EffectiveFrom.Format(dateLayout),
		Active:              s.Active,
	}
	if s.EffectiveUntil != nil {
		resp.EffectiveUntil = s.EffectiveUntil.Format(dateLayout)
	}
	return resp
}

type CreateOverrideRequest struct {
	Date         string  `json:"date"`
	Cancelled    bool    `json:"cancelled"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
	MaxQueueSize *int    `json:"max_queue_size,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

type OverrideResponse struct {
	ID           int64   `json:"id"`
	SessionID    int64   `json:"session_id"`
	Date         string  `json:"date"`
	Cancelled    bool    `json:"cancelled"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
	MaxQueueSize *int    `json:"max_queue_size,omitempty"`
	Reason       *string `json:"reason,omitempty"`
}

func toOverrideResponse(ov *booking.SessionOverride) OverrideResponse {
	resp := OverrideResponse{
		ID:           ov.ID,
		SessionID:    ov.SessionID,
		Date:         ov.Date.Format(dateLayout),
		Cancelled:    ov.Cancelled,
		MaxQueueSize: ov.MaxQueueSize,
		Reason:       ov.Reason,
	}
	if ov.StartTime != nil {
		s := ov.StartTime.String()
		resp.StartTime = &s
	}
	if ov.EndTime != nil {
		e := ov.EndTime.String()
		resp.EndTime = &e
	}
	return resp
}

type AvailabilityResponse struct {
	SessionID           int64  `json:"session_id"`
	Date                string `json:"date"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	MaxQueueSize        int    `json:"max_queue_size"`
	ConsultationMinutes int    `json:"consultation_minutes"`
	Booked              int    `json:"booked"`
	Remaining           int    `json:"remaining"`
}

type CalendarSlotResponse struct {
	SessionID   int64  `json:"session_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	ServiceMode string `json:"service_mode"`
	Available   int    `json:"available"`
	Total       int    `json:"total"`
}

type CalendarDayResponse struct {
	Date      string                 `json:"date"`
	DayOfWeek string                 `json:"day_of_week"`
	Available bool                   `json:"available"`
	Slots     []CalendarSlotResponse `json:"slots"`
}
