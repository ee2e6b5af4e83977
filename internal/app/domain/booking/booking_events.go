package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
	"github.com/FACorreiaa/go-tourbook/internal/pkg/debugger"
)

const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)

// Event is the message body published after a booking changes state.
type Event struct {
	BookingID  uuid.UUID            `json:"booking_id"`
	UserID     uuid.UUID            `json:"user_id"`
	ScheduleID uuid.UUID            `json:"schedule_id"`
	Seats      int                  `json:"seats"`
	Status     models.BookingStatus `json:"status"`
	PaymentRef *string              `json:"payment_ref,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func newEvent(b *models.Booking) Event {
	return Event{
		BookingID:  b.ID,
		UserID:     b.UserID,
		ScheduleID: b.ScheduleID,
		Seats:      b.Seats,
		Status:     b.Status,
		PaymentRef: b.PaymentRef,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher delivers booking events to whoever listens downstream.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, event Event) error
	Close() error
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, Event) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }

// LogPublisher writes events to the debug log instead of a broker. Used when
// no RabbitMQ URL is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, queue string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}
	debugger.DebugPrintEvent(p.logger, queue, body)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// RabbitPublisher publishes persistent JSON messages to durable queues on the
// default exchange, one queue per event kind.
type RabbitPublisher struct {
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitPublisher(url string, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open: %w", err)
	}
	for _, q := range []string{QueueBookingConfirmed, QueueBookingCancelled} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq queue declare %s: %w", q, err)
		}
	}
	logger.Info("RabbitMQ publisher ready", zap.Strings("queues", []string{QueueBookingConfirmed, QueueBookingCancelled}))
	return &RabbitPublisher{logger: logger, conn: conn, ch: ch}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, queue string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		MessageId:    event.BookingID.String(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish to %s: %w", queue, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.logger.Warn("Failed to close RabbitMQ channel", zap.Error(err))
	}
	return p.conn.Close()
}
