package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// Event types published on the appointment exchange. They double as routing keys.
const (
	EventBookingSubmitted     = "appointment.booked"
	EventAppointmentApproved  = "appointment.approved"
	EventAppointmentRejected  = "appointment.rejected"
	EventAppointmentCompleted = "appointment.completed"
)

// Event is one appointment lifecycle change.
type Event struct {
	Type          string    `json:"type"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	AttemptID     string    `json:"attemptId,omitempty"`
	PaymentID     string    `json:"paymentId,omitempty"`
	PatientEmail  string    `json:"patientEmail"`
	DoctorEmail   string    `json:"doctorEmail"`
	HospitalName  string    `json:"hospitalName"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewRabbitMQ(url string, logger *zap.Logger) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitMQ: %w", err)
	}
	logger.Info("Successfully connected to rabbitMQ")
	return conn, nil
}

// channel is the part of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher writes events to a durable topic exchange. A channel is not safe
// for concurrent publishing, so calls are serialized.
type Publisher struct {
	mu       sync.Mutex
	channel  channel
	exchange string
}

func NewPublisher(conn *amqp091.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	message := amqp091.Publishing{
		ContentType:  contentTypeJSON,
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.OccurredAt,
		Headers: amqp091.Table{
			"message_type": "JSON",
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, message); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}
