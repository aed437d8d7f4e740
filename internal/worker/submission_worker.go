package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/worker/queue"
	"github.com/rs/zerolog"
)

type SubmissionWorker interface {
	queue.MessageHandler
	Start(ctx context.Context) error
	Stop() error
	GetStats() models.ConsumerStats
}

// FlagPublisher announces submissions that crossed the similarity threshold.
type FlagPublisher interface {
	PublishSubmissionFlagged(ctx context.Context, event models.SubmissionFlaggedEvent) error
}

type submissionWorker struct {
	workerPool    *WorkerPool
	queueConsumer queue.RabbitMQConsumer
	router        *queue.Router
	coordinator   service.ReportCoordinator
	tasks         service.TaskManager
	settings      service.SettingsProvider
	publisher     FlagPublisher
	logger        zerolog.Logger
	stats         models.ConsumerStats
	statsMutex    sync.RWMutex
	startTime     time.Time
}

// NewSubmissionWorker consumes submission and report request events. publisher
// may be nil.
func NewSubmissionWorker(
	workerPool *WorkerPool,
	queueConsumer queue.RabbitMQConsumer,
	keys queue.RoutingKeys,
	coordinator service.ReportCoordinator,
	tasks service.TaskManager,
	settings service.SettingsProvider,
	publisher FlagPublisher,
	logger zerolog.Logger,
) SubmissionWorker {
	w := &submissionWorker{
		workerPool:    workerPool,
		queueConsumer: queueConsumer,
		coordinator:   coordinator,
		tasks:         tasks,
		settings:      settings,
		publisher:     publisher,
		logger:        logger,
		startTime:     time.Now(),
	}
	w.router = queue.NewRouter(w, keys, logger)
	return w
}

func (w *submissionWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting submission worker...")

	if err := w.workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	msgs, err := w.queueConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Submission worker started successfully")
	return nil
}

func (w *submissionWorker) Stop() error {
	w.logger.Info().Msg("Stopping submission worker...")

	if err := w.queueConsumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	if err := w.workerPool.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	w.statsMutex.RLock()
	w.logger.Info().
		Int("total_processed", w.stats.TotalProcessed).
		Int("failed_jobs", w.stats.FailedJobs).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Submission worker stopped")
	w.statsMutex.RUnlock()

	return nil
}

func (w *submissionWorker) processMessages(ctx context.Context, msgs <-chan queue.RabbitMQMessage) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}

			err := w.workerPool.Submit(func() { w.handle(ctx, msg) })
			if err != nil {
				w.logger.Error().Err(err).Str("routing_key", msg.RoutingKey).Msg("Failed to schedule message")
				if nackErr := msg.Nack(false, true); nackErr != nil {
					w.logger.Error().Err(nackErr).Msg("Failed to nack message")
				}
			}
		}
	}
}

// handle settles one delivery: success and permanent failures are acked,
// anything else is requeued.
func (w *submissionWorker) handle(ctx context.Context, msg queue.RabbitMQMessage) {
	err := w.router.Route(ctx, msg)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}

		w.statsMutex.Lock()
		w.stats.TotalProcessed++
		if time.Since(msg.Timestamp).Hours() < 24 {
			w.stats.ProcessedToday++
		}
		w.statsMutex.Unlock()
		return
	}

	w.logger.Error().Err(err).Str("routing_key", msg.RoutingKey).Msg("Failed to process message")

	w.statsMutex.Lock()
	w.stats.FailedJobs++
	w.statsMutex.Unlock()

	if isPermanentError(err) {
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	if nackErr := msg.Nack(false, true); nackErr != nil {
		w.logger.Error().Err(nackErr).Msg("Failed to nack message")
	}
}

// HandleSubmissionCreated compares a fresh submission with its peers and
// publishes a flag when any score reaches the configured threshold.
func (w *submissionWorker) HandleSubmissionCreated(ctx context.Context, event models.SubmissionCreatedEvent) error {
	ctx = service.WithActor(ctx, service.SystemActor)
	threshold := w.settings.Settings(ctx).SimilarityThreshold

	matches, err := w.coordinator.CompareNewSubmission(ctx, event.AssignmentID, event.SubmissionID, &threshold)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return permanent(err)
		}
		return err
	}

	w.logger.Info().
		Str("submission_id", event.SubmissionID).
		Str("assignment_id", event.AssignmentID).
		Float64("threshold", threshold).
		Int("matches", len(matches)).
		Msg("Submission compared")

	if len(matches) == 0 || w.publisher == nil {
		return nil
	}

	w.statsMutex.Lock()
	w.stats.Flagged++
	w.statsMutex.Unlock()

	return w.publisher.PublishSubmissionFlagged(ctx, models.SubmissionFlaggedEvent{
		SubmissionID: event.SubmissionID,
		AssignmentID: event.AssignmentID,
		Threshold:    threshold,
		Matches:      matches,
		FlaggedAt:    time.Now().UTC(),
	})
}

// HandleReportRequested schedules a background generation. A generation that
// is already running for the assignment satisfies the request.
func (w *submissionWorker) HandleReportRequested(ctx context.Context, event models.ReportRequestedEvent) error {
	executor := event.ExecutorID
	if executor == "" {
		executor = service.SystemActor
	}

	task, err := w.tasks.Start(ctx, service.TaskRequest{
		AssignmentID: event.AssignmentID,
		ExecutorID:   executor,
		Mode:         models.ReportMode(event.Mode),
		StudentID:    event.StudentID,
	})
	switch {
	case errors.Is(err, service.ErrGenerationInProgress):
		w.logger.Info().Str("assignment_id", event.AssignmentID).Msg("Report generation already running, skipping request")
		return nil
	case errors.Is(err, service.ErrInvalidMode), errors.Is(err, service.ErrStudentRequired):
		return permanent(err)
	case err != nil:
		return err
	}

	w.logger.Info().
		Str("task_id", task.ID()).
		Str("assignment_id", event.AssignmentID).
		Str("mode", event.Mode).
		Msg("Report generation requested")
	return nil
}

func (w *submissionWorker) GetStats() models.ConsumerStats {
	w.statsMutex.RLock()
	stats := w.stats
	w.statsMutex.RUnlock()

	queueLength, err := w.queueConsumer.GetQueueLength()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to get queue length")
	} else {
		stats.QueueLength = queueLength
	}

	stats.ActiveWorkers = w.workerPool.GetActiveWorkers()

	return stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p) || errors.Is(err, queue.ErrMalformedMessage)
}
