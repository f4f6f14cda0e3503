// Package service publishes storage events to RabbitMQ.  Publishing is best
// effort: failures are logged and never surface to the payment operation
// that triggered them.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/club-payments/internal/failover"
	"github.com/iliyamo/club-payments/internal/model"
	q "github.com/iliyamo/club-payments/internal/queue"
)

const publishTimeout = 3 * time.Second

// PublishFunc delivers an encoded event to the storage queue.
type PublishFunc func(ctx context.Context, body []byte) error

// EventPublisher turns coordinator and handler signals into queue events.
type EventPublisher struct {
	publish PublishFunc
	log     zerolog.Logger
	now     func() time.Time
}

var _ failover.Notifier = (*EventPublisher)(nil)

// NewEventPublisher publishes to the broker at url.
func NewEventPublisher(url string, log zerolog.Logger) *EventPublisher {
	return NewEventPublisherFunc(AMQPPublish(url), log)
}

// NewEventPublisherFunc publishes through fn.
func NewEventPublisherFunc(fn PublishFunc, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		publish: fn,
		log:     log.With().Str("component", "events").Logger(),
		now:     time.Now,
	}
}

// ResyncCompleted implements failover.Notifier.
func (p *EventPublisher) ResyncCompleted(ctx context.Context, r failover.ResyncReport) {
	p.send(ctx, q.NewResyncCompleted(r.Target, r.Source, r.Replayed, r.CompletedAt))
}

// PaymentRecorded announces a saved payment.
func (p *EventPublisher) PaymentRecorded(ctx context.Context, pay *model.Payment) {
	id, ok := pay.ID()
	p.send(ctx, q.NewPaymentRecorded(id, ok, pay.TotalPrice().StringFixed(2), p.now()))
}

func (p *EventPublisher) send(ctx context.Context, ev q.StorageEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("type", ev.Type).Msg("marshal event failed")
		return
	}
	// The triggering request may already be finishing.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.publish(ctx, body); err != nil {
		p.log.Warn().Err(err).Str("type", ev.Type).Str("event_id", ev.EventID).Msg("publish failed")
		return
	}
	p.log.Debug().Str("type", ev.Type).Str("event_id", ev.EventID).Msg("event published")
}

// AMQPPublish dials the broker for every message and publishes a persistent
// message to the durable storage queue through the default exchange.
func AMQPPublish(url string) PublishFunc {
	return func(ctx context.Context, body []byte) error {
		conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(publishTimeout)})
		if err != nil {
			return fmt.Errorf("rabbitmq dial: %w", err)
		}
		defer func() { _ = conn.Close() }()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("rabbitmq channel: %w", err)
		}
		defer func() { _ = ch.Close() }()

		if _, err := ch.QueueDeclare(q.StorageQueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq queue declare: %w", err)
		}
		return ch.PublishWithContext(ctx, "", q.StorageQueueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	}
}
