package booking

import "time"

// ResolvedAvailability is the effective window and capacity for one
// (session, date) after applying any override.
type ResolvedAvailability struct {
	Date                time.Time
	StartTime           TimeOfDay
	EndTime             TimeOfDay
	MaxQueueSize        int
	ConsultationMinutes int
}

// StartAt returns the effective start anchored on the resolved date.
func (r *ResolvedAvailability) StartAt() time.Time {
	return r.StartTime.At(r.Date)
}

// ResolveAvailability computes the effective start/end time and capacity for
// a session on a given date. override may be nil when no exception exists for
// that date. Pure; callers load the override themselves.
//
// Returns ErrSessionNotAvailable when the weekday does not match or the date
// falls outside the session's effective range, and ErrSessionCancelled when
// the override marks the date cancelled.
func ResolveAvailability(session *Session, override *SessionOverride, date time.Time) (*ResolvedAvailability, error) {
	day := DateOnly(date)

	if day.Weekday() != session.DayOfWeek {
		return nil, ErrSessionNotAvailable
	}
	if day.Before(DateOnly(session.EffectiveFrom)) {
		return nil, ErrSessionNotAvailable
	}
	if session.EffectiveUntil != nil && day.After(DateOnly(*session.EffectiveUntil)) {
		return nil, ErrSessionNotAvailable
	}

	resolved := &ResolvedAvailability{
		Date:                day,
		StartTime:           session.StartTime,
		EndTime:             session.EndTime,
		MaxQueueSize:        session.MaxQueueSize,
		ConsultationMinutes: session.ConsultationMinutes,
	}

	if override != nil {
		if override.Cancelled {
			return nil, ErrSessionCancelled
		}
		if override.StartTime != nil {
			resolved.StartTime = *override.StartTime
		}
		if override.EndTime != nil {
			resolved.EndTime = *override.EndTime
		}
		if override.MaxQueueSize != nil {
			resolved.MaxQueueSize = *override.MaxQueueSize
		}
	}

	return resolved, nil
}

// EstimatedStart converts a queue position into the slot's expected start.
func (r *ResolvedAvailability) EstimatedStart(queueNumber int) time.Time {
	wait := time.Duration(queueNumber-1) * time.Duration(r.ConsultationMinutes) * time.Minute
	return r.StartAt().Add(wait)
}

// EstimatedWaitMinutes is the expected wait from session start for a queue
// position.
func (r *ResolvedAvailability) EstimatedWaitMinutes(queueNumber int) int {
	return (queueNumber - 1) * r.ConsultationMinutes
}
