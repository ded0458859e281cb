package booking

import "context"

// Notifier is the outbound event port. Implementations are fire-and-forget:
// a publish failure must never fail the booking or transition that triggered
// it, so the methods return nothing and log internally.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *Appointment)
	AppointmentCancelled(ctx context.Context, appt *Appointment)
	AppointmentCompleted(ctx context.Context, appt *Appointment)
}

// NopNotifier discards all events. Used in tests and when no broker is
// configured.
type NopNotifier struct{}

func (NopNotifier) AppointmentBooked(context.Context, *Appointment)   {}
func (NopNotifier) AppointmentCancelled(context.Context, *Appointment) {}
func (NopNotifier) AppointmentCompleted(context.Context, *Appointment) {}
