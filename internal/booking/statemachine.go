package booking

// legalTransitions is the full status graph. An appointment only ever moves
// forward along these edges; everything else is ErrIllegalTransition.
var legalTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusBooked:     {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s AppointmentStatus) bool {
	return len(legalTransitions[s]) == 0
}

// InWaitingRoom reports whether an appointment in this status must have a
// waiting room entry.
func InWaitingRoom(s AppointmentStatus) bool {
	return s == StatusCheckedIn || s == StatusInProgress
}
