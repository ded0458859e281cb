package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/pulseone/appointments-service/internal/booking"
)

const (
	EventBooked    = "appointment.booked"
	EventCancelled = "appointment.cancelled"
	EventCompleted = "appointment.completed"
)

// appointmentEvent is the wire payload for every appointment event. Downstream
// consumers (notifications, analytics) key off event_type in the headers.
type appointmentEvent struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	SessionID     int64     `json:"session_id"`
	Date          string    `json:"date"`
	QueueNumber   int       `json:"queue_number"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits appointment lifecycle events to Kafka. Publishing is
// best effort: a broker outage logs a warning and never fails the booking.
type Publisher struct {
	writer *kafkago.Writer
	log    zerolog.Logger
}

func NewPublisher(brokers []string, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log,
	}
}

func (p *Publisher) AppointmentBooked(ctx context.Context, appt *booking.Appointment) {
	p.publish(ctx, EventBooked, appt)
}

func (p *Publisher) AppointmentCancelled(ctx context.Context, appt *booking.Appointment) {
	p.publish(ctx, EventCancelled, appt)
}

func (p *Publisher) AppointmentCompleted(ctx context.Context, appt *booking.Appointment) {
	p.publish(ctx, EventCompleted, appt)
}

func (p *Publisher) publish(ctx context.Context, eventType string, appt *booking.Appointment) {
	payload, err := json.Marshal(appointmentEvent{
		AppointmentID: appt.ID.String(),
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		SessionID:     appt.SessionID,
		Date:          appt.Date.Format("2006-01-02"),
		QueueNumber:   appt.QueueNumber,
		Status:        string(appt.Status),
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		p.log.Error().Err(err).Str("event_type", eventType).Msg("marshal appointment event")
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafkago.Message{
		Key:   []byte(appt.ID.String()),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		p.log.Warn().Err(err).
			Str("event_type", eventType).
			Stringer("appointment_id", appt.ID).
			Msg("publish appointment event failed")
		return
	}

	p.log.Debug().
		Str("event_type", eventType).
		Stringer("appointment_id", appt.ID).
		Msg("appointment event published")
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ booking.Notifier = (*Publisher)(nil)
