package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

// ErrMalformedMessage marks deliveries that can never succeed and should not
// be redelivered.
var ErrMalformedMessage = errors.New("malformed message")

type MessageHandler interface {
	HandleSubmissionCreated(ctx context.Context, event models.SubmissionCreatedEvent) error
	HandleReportRequested(ctx context.Context, event models.ReportRequestedEvent) error
}

type RoutingKeys struct {
	SubmissionCreated string
	ReportRequested   string
}

// Router decodes a delivery by its routing key and hands it to the handler.
type Router struct {
	handler MessageHandler
	keys    RoutingKeys
	logger  zerolog.Logger
}

func NewRouter(handler MessageHandler, keys RoutingKeys, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		keys:    keys,
		logger:  logger,
	}
}

func (r *Router) Route(ctx context.Context, msg RabbitMQMessage) error {
	switch msg.RoutingKey {
	case r.keys.SubmissionCreated:
		var event models.SubmissionCreatedEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("%w: submission created: %w", ErrMalformedMessage, err)
		}
		if strings.TrimSpace(event.SubmissionID) == "" || strings.TrimSpace(event.AssignmentID) == "" {
			return fmt.Errorf("%w: submission created: empty submission_id or assignment_id", ErrMalformedMessage)
		}
		return r.handler.HandleSubmissionCreated(ctx, event)

	case r.keys.ReportRequested:
		var event models.ReportRequestedEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("%w: report requested: %w", ErrMalformedMessage, err)
		}
		if strings.TrimSpace(event.AssignmentID) == "" {
			return fmt.Errorf("%w: report requested: empty assignment_id", ErrMalformedMessage)
		}
		if event.Mode == "" {
			event.Mode = models.ReportModeLatestOnly.String()
		}
		return r.handler.HandleReportRequested(ctx, event)

	default:
		r.logger.Warn().Str("routing_key", msg.RoutingKey).Msg("Unknown routing key")
		return fmt.Errorf("%w: unknown routing key %q", ErrMalformedMessage, msg.RoutingKey)
	}
}
