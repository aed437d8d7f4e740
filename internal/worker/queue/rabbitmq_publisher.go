package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type RabbitMQPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
	Close() error
}

type rabbitMQPublisher struct {
	channel *amqp.Channel
	logger  zerolog.Logger
}

func NewRabbitMQPublisher(channel *amqp.Channel, logger zerolog.Logger) RabbitMQPublisher {
	return &rabbitMQPublisher{
		channel: channel,
		logger:  logger,
	}
}

func (p *rabbitMQPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.channel.PublishWithContext(
		publishCtx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

func (p *rabbitMQPublisher) Close() error {
	// Channel will be closed by parent
	p.logger.Info().Msg("RabbitMQ publisher closed")
	return nil
}

type EventRoutingKeys struct {
	SubmissionFlagged string
	ReportCompleted   string
	ReportFailed      string
}

// EventPublisher serializes outbound domain events onto one exchange.
type EventPublisher struct {
	publisher RabbitMQPublisher
	exchange  string
	keys      EventRoutingKeys
	logger    zerolog.Logger
}

func NewEventPublisher(publisher RabbitMQPublisher, exchange string, keys EventRoutingKeys, logger zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		publisher: publisher,
		exchange:  exchange,
		keys:      keys,
		logger:    logger,
	}
}

func (p *EventPublisher) PublishSubmissionFlagged(ctx context.Context, event models.SubmissionFlaggedEvent) error {
	return p.publish(ctx, p.keys.SubmissionFlagged, event)
}

func (p *EventPublisher) PublishReportCompleted(ctx context.Context, event models.ReportCompletedEvent) error {
	return p.publish(ctx, p.keys.ReportCompleted, event)
}

func (p *EventPublisher) PublishReportFailed(ctx context.Context, event models.ReportFailedEvent) error {
	return p.publish(ctx, p.keys.ReportFailed, event)
}

func (p *EventPublisher) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}

	if err := p.publisher.Publish(ctx, p.exchange, routingKey, body); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", routingKey, err)
	}

	p.logger.Debug().
		Str("exchange", p.exchange).
		Str("routing_key", routingKey).
		Int("bytes", len(body)).
		Msg("Event published")

	return nil
}
