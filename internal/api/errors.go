package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pulseone/appointments-service/internal/booking"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps a booking error onto a stable error code and the
// HTTP status its kind implies. Clients switch on the code, never the text.
func writeDomainError(w http.ResponseWriter, err error) {
	code := errorCode(err)

	var status int
	switch booking.KindOf(err) {
	case booking.KindNotFound:
		status = http.StatusNotFound
	case booking.KindValidation:
		status = http.StatusBadRequest
	case booking.KindConflict:
		status = http.StatusConflict
	case booking.KindPermissionDenied:
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
	}

	details := err.Error()
	if status == http.StatusInternalServerError {
		details = "something went wrong"
	}
	writeError(w, status, code, details)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		return "doctor_not_found"
	case errors.Is(err, booking.ErrClinicNotFound):
		return "clinic_not_found"
	case errors.Is(err, booking.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, booking.ErrAppointmentNotFound):
		return "appointment_not_found"
	case errors.Is(err, booking.ErrOverrideNotFound):
		return "override_not_found"
	case errors.Is(err, booking.ErrWaitingRoomNotFound):
		return "not_in_waiting_room"
	case errors.Is(err, booking.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, booking.ErrNotToday):
		return "not_appointment_date"
	case errors.Is(err, booking.ErrSessionNotAvailable):
		return "session_not_available"
	case errors.Is(err, booking.ErrInvalidSessionTimes):
		return "invalid_session_times"
	case errors.Is(err, booking.ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, booking.ErrIncompatibleType):
		return "incompatible_service_type"
	case errors.Is(err, booking.ErrClinicRequired):
		return "clinic_required"
	case errors.Is(err, booking.ErrClinicNotAllowed):
		return "clinic_not_allowed"
	case errors.Is(err, booking.ErrSessionCancelled):
		return "session_cancelled"
	case errors.Is(err, booking.ErrDuplicateBooking):
		return "duplicate_booking"
	case errors.Is(err, booking.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, booking.ErrIllegalTransition):
		return "illegal_status_transition"
	case errors.Is(err, booking.ErrNotYetCalled):
		return "not_yet_called"
	case errors.Is(err, booking.ErrOverrideExists):
		return "override_exists"
	case errors.Is(err, booking.ErrSessionOverlap):
		return "session_overlap"
	case errors.Is(err, booking.ErrBookingContended):
		return "booking_contended"
	case errors.Is(err, booking.ErrQueueContended):
		return "queue_contended"
	case errors.Is(err, booking.ErrDoctorMismatch):
		return "doctor_mismatch"
	case errors.Is(err, booking.ErrPatientMismatch):
		return "patient_mismatch"
	default:
		return "internal_error"
	}
}
