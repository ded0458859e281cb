package booking

import "errors"

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrClinicNotFound      = errors.New("clinic not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrOverrideNotFound    = errors.New("session override not found")
	ErrWaitingRoomNotFound = errors.New("patient not in waiting room")

	ErrInvalidDate         = errors.New("appointment date is in the past")
	ErrNotToday            = errors.New("check-in is only allowed on the appointment date")
	ErrSessionNotAvailable = errors.New("session is not available on this date")
	ErrInvalidSessionTimes = errors.New("session start time must be before end time")
	ErrInvalidCapacity     = errors.New("max queue size and consultation minutes must be positive")
	ErrIncompatibleType    = errors.New("appointment type does not match session service mode")
	ErrClinicRequired      = errors.New("in-person sessions must belong to a clinic")
	ErrClinicNotAllowed    = errors.New("virtual sessions cannot belong to a clinic")

	ErrSessionCancelled  = errors.New("session is cancelled on this date")
	ErrDuplicateBooking  = errors.New("patient already has an appointment with this doctor on this date")
	ErrCapacityExceeded  = errors.New("session is fully booked on this date")
	ErrIllegalTransition = errors.New("illegal appointment status transition")
	ErrNotYetCalled      = errors.New("patient has not been called yet")
	ErrOverrideExists    = errors.New("override already exists for this date")
	ErrSessionOverlap    = errors.New("session times overlap an existing session")
	ErrBookingContended  = errors.New("session is being booked, retry shortly")
	ErrQueueContended    = errors.New("queue is being updated, retry shortly")

	ErrDoctorMismatch  = errors.New("doctor does not match appointment")
	ErrPatientMismatch = errors.New("patient does not match appointment")
)

// Kind buckets errors so adapters can pick a transport status without
// inspecting message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindPermissionDenied
	KindSystemFailure
)

func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrDoctorNotFound),
		errors.Is(err, ErrClinicNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrOverrideNotFound),
		errors.Is(err, ErrWaitingRoomNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrNotToday),
		errors.Is(err, ErrSessionNotAvailable),
		errors.Is(err, ErrInvalidSessionTimes),
		errors.Is(err, ErrInvalidCapacity),
		errors.Is(err, ErrIncompatibleType),
		errors.Is(err, ErrClinicRequired),
		errors.Is(err, ErrClinicNotAllowed):
		return KindValidation
	case errors.Is(err, ErrSessionCancelled),
		errors.Is(err, ErrDuplicateBooking),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrNotYetCalled),
		errors.Is(err, ErrOverrideExists),
		errors.Is(err, ErrSessionOverlap),
		errors.Is(err, ErrBookingContended),
		errors.Is(err, ErrQueueContended):
		return KindConflict
	case errors.Is(err, ErrDoctorMismatch),
		errors.Is(err, ErrPatientMismatch):
		return KindPermissionDenied
	case err != nil:
		return KindSystemFailure
	default:
		return KindUnknown
	}
}
