package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

const (
	TaskStateQueued    = "queued"
	TaskStateRunning   = "running"
	TaskStateCompleted = "completed"
	TaskStateFailed    = "failed"
	TaskStateCancelled = "cancelled"
)

type TaskEvent struct {
	Type     EventType
	Progress float64
	Report   *models.Report
	Err      error
}

type TaskRequest struct {
	AssignmentID string
	ExecutorID   string
	Mode         models.ReportMode
	StudentID    string
}

// TaskRunner executes functions off the caller's goroutine.
type TaskRunner interface {
	Submit(task func()) error
}

// ReportEventPublisher announces terminal generation results.
type ReportEventPublisher interface {
	PublishReportCompleted(ctx context.Context, event models.ReportCompletedEvent) error
	PublishReportFailed(ctx context.Context, event models.ReportFailedEvent) error
}

const taskEventBuffer = 32

// Task is one background report generation. Events emits EventStarted, any
// number of EventProgress, then exactly one EventCompleted or EventFailed,
// and is closed afterwards.
type Task struct {
	id     string
	req    TaskRequest
	events chan TaskEvent
	done   chan struct{}
	cancel context.CancelFunc
	finish sync.Once

	mu       sync.RWMutex
	snapshot models.TaskSnapshot
}

func newTask(req TaskRequest, cancel context.CancelFunc) *Task {
	id := uuid.New().String()
	return &Task{
		id:     id,
		req:    req,
		events: make(chan TaskEvent, taskEventBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
		snapshot: models.TaskSnapshot{
			TaskID:       id,
			AssignmentID: req.AssignmentID,
			Mode:         req.Mode.String(),
			State:        TaskStateQueued,
			StartedAt:    time.Now().UTC(),
		},
	}
}

func (t *Task) ID() string { return t.id }

func (t *Task) Events() <-chan TaskEvent { return t.events }

// Done is closed after the terminal event has been emitted.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the generation. The task still emits EventFailed.
func (t *Task) Cancel() { t.cancel() }

func (t *Task) Snapshot() models.TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

func (t *Task) start() {
	t.mu.Lock()
	t.snapshot.State = TaskStateRunning
	t.mu.Unlock()

	t.events <- TaskEvent{Type: EventStarted}
}

// progress never blocks and always leaves room for the terminal event.
func (t *Task) progress(value float64) {
	t.mu.Lock()
	t.snapshot.Progress = value
	t.mu.Unlock()

	if len(t.events) >= cap(t.events)-1 {
		return
	}
	select {
	case t.events <- TaskEvent{Type: EventProgress, Progress: value}:
	default:
	}
}

// end emits the terminal event once and closes the stream.
func (t *Task) end(report *models.Report, err error) bool {
	ended := false
	t.finish.Do(func() {
		ended = true
		now := time.Now().UTC()

		t.mu.Lock()
		t.snapshot.FinishedAt = &now
		event := TaskEvent{Type: EventCompleted, Report: report, Progress: t.snapshot.Progress}
		switch {
		case err == nil:
			t.snapshot.State = TaskStateCompleted
			t.snapshot.Progress = 1.0
			t.snapshot.ReportID = report.ID
			event.Progress = 1.0
		case errors.Is(err, context.Canceled):
			t.snapshot.State = TaskStateCancelled
			t.snapshot.Error = err.Error()
			event = TaskEvent{Type: EventFailed, Err: err, Progress: t.snapshot.Progress}
		default:
			t.snapshot.State = TaskStateFailed
			t.snapshot.Error = err.Error()
			event = TaskEvent{Type: EventFailed, Err: err, Progress: t.snapshot.Progress}
		}
		t.mu.Unlock()

		select {
		case t.events <- event:
		default:
		}
		close(t.events)
		close(t.done)
	})
	return ended
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

type TaskManager interface {
	// Start schedules a generation and returns immediately. A second request
	// for an assignment that is still generating fails with
	// ErrGenerationInProgress.
	Start(ctx context.Context, req TaskRequest) (*Task, error)
	Get(taskID string) (*Task, error)
	// Snapshot also answers for tasks run by other replicas when a status
	// store is configured.
	Snapshot(ctx context.Context, taskID string) (*models.TaskSnapshot, error)
	Cancel(taskID string) error
	Running() int
	Shutdown()
}

type TaskManagerConfig struct {
	Timeout        time.Duration
	StatusInterval time.Duration
	Retention      time.Duration
}

type taskManager struct {
	coordinator ReportCoordinator
	lock        GenerationLock
	runner      TaskRunner
	statusRepo  repository.TaskStatusRepository
	publisher   ReportEventPublisher
	logger      zerolog.Logger
	config      TaskManagerConfig

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskManager wires the background runner. statusRepo and publisher may be
// nil.
func NewTaskManager(
	coordinator ReportCoordinator,
	lock GenerationLock,
	runner TaskRunner,
	statusRepo repository.TaskStatusRepository,
	publisher ReportEventPublisher,
	logger zerolog.Logger,
	config TaskManagerConfig,
) TaskManager {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.StatusInterval <= 0 {
		config.StatusInterval = time.Second
	}
	if config.Retention <= 0 {
		config.Retention = time.Hour
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &taskManager{
		coordinator: coordinator,
		lock:        lock,
		runner:      runner,
		statusRepo:  statusRepo,
		publisher:   publisher,
		logger:      logger,
		config:      config,
		baseCtx:     baseCtx,
		baseCancel:  baseCancel,
		tasks:       make(map[string]*Task),
	}
}

func (m *taskManager) Start(ctx context.Context, req TaskRequest) (*Task, error) {
	if !models.IsValidReportMode(req.Mode.String()) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if req.Mode == models.ReportModeStudentTarget && req.StudentID == "" {
		return nil, ErrStudentRequired
	}

	lease, err := m.lock.TryLock(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}

	// The task outlives the request that started it.
	taskCtx, cancel := context.WithCancel(m.baseCtx)
	task := newTask(req, cancel)

	m.mu.Lock()
	m.tasks[task.id] = task
	m.mu.Unlock()
	m.saveStatus(task)

	if err := m.runner.Submit(func() { m.run(taskCtx, task, lease) }); err != nil {
		cancel()
		lease.Release()
		m.remove(task.id)
		return nil, fmt.Errorf("failed to schedule report generation: %w", err)
	}

	m.logger.Info().
		Str("task_id", task.id).
		Str("assignment_id", req.AssignmentID).
		Str("mode", req.Mode.String()).
		Msg("Report generation scheduled")

	return task, nil
}

func (m *taskManager) run(ctx context.Context, task *Task, lease Lease) {
	startTime := time.Now()
	release := sync.OnceFunc(lease.Release)

	defer release()
	defer task.cancel()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Str("task_id", task.id).Msg("Report generation panicked")
			m.finish(task, nil, fmt.Errorf("report generation panicked: %v", r), startTime, release)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	task.start()
	if err := runCtx.Err(); err != nil {
		m.finish(task, nil, err, startTime, release)
		return
	}
	// The lease expiry counted from Start; queue time must not eat into it.
	if err := lease.Renew(runCtx); err != nil {
		m.logger.Error().Err(err).Str("task_id", task.id).Msg("Failed to renew generation lock")
		m.finish(task, nil, err, startTime, release)
		return
	}

	stopStatus := m.watchStatus(task)
	defer stopStatus()

	report, err := m.coordinator.Generate(WithActor(runCtx, task.req.ExecutorID), task.req.Mode, GenerateRequest{
		AssignmentID: task.req.AssignmentID,
		ExecutorID:   task.req.ExecutorID,
		StudentID:    task.req.StudentID,
		Progress:     task.progress,
	})

	stopStatus()
	m.finish(task, report, err, startTime, release)
}

// finish releases the assignment lock before the terminal event, so a caller
// woken by it can start the next generation.
func (m *taskManager) finish(task *Task, report *models.Report, err error, startTime time.Time, release func()) {
	release()
	if !task.end(report, err) {
		return
	}

	m.saveStatus(task)
	m.publish(task, report, err, startTime)

	time.AfterFunc(m.config.Retention, func() { m.remove(task.id) })
}

func (m *taskManager) publish(task *Task, report *models.Report, err error, startTime time.Time) {
	if m.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var pubErr error
	if err == nil {
		pubErr = m.publisher.PublishReportCompleted(ctx, models.ReportCompletedEvent{
			ReportID:         report.ID,
			AssignmentID:     report.AssignmentID,
			Mode:             report.Mode,
			TotalSubmissions: report.TotalSubmissions,
			TotalPairs:       report.TotalPairs,
			ProcessingTimeMs: int(time.Since(startTime).Milliseconds()),
			CompletedAt:      time.Now().UTC(),
		})
	} else {
		pubErr = m.publisher.PublishReportFailed(ctx, models.ReportFailedEvent{
			AssignmentID: task.req.AssignmentID,
			Mode:         task.req.Mode.String(),
			Error:        err.Error(),
			FailedAt:     time.Now().UTC(),
		})
	}

	if pubErr != nil {
		m.logger.Error().Err(pubErr).Str("task_id", task.id).Msg("Failed to publish report event")
	}
}

// watchStatus mirrors the snapshot to the status store until stopped, keeping
// store latency out of the progress callback.
func (m *taskManager) watchStatus(task *Task) func() {
	if m.statusRepo == nil {
		return func() {}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(m.config.StatusInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.saveStatus(task)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
		})
	}
}

func (m *taskManager) saveStatus(task *Task) {
	if m.statusRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snapshot := task.Snapshot()
	if err := m.statusRepo.Save(ctx, &snapshot); err != nil {
		m.logger.Warn().Err(err).Str("task_id", task.id).Msg("Failed to save task status")
	}
}

func (m *taskManager) Get(taskID string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (m *taskManager) Snapshot(ctx context.Context, taskID string) (*models.TaskSnapshot, error) {
	if task, err := m.Get(taskID); err == nil {
		snapshot := task.Snapshot()
		return &snapshot, nil
	}

	if m.statusRepo == nil {
		return nil, ErrTaskNotFound
	}

	snapshot, err := m.statusRepo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, ErrTaskNotFound
	}
	return snapshot, nil
}

func (m *taskManager) Cancel(taskID string) error {
	task, err := m.Get(taskID)
	if err != nil {
		return err
	}

	task.Cancel()
	m.logger.Info().Str("task_id", taskID).Msg("Report generation cancelled")
	return nil
}

func (m *taskManager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	running := 0
	for _, task := range m.tasks {
		if !task.finished() {
			running++
		}
	}
	return running
}

// Shutdown cancels every task still running.
func (m *taskManager) Shutdown() {
	m.baseCancel()
}

func (m *taskManager) remove(taskID string) {
	m.mu.Lock()
	delete(m.tasks, taskID)
	m.mu.Unlock()
}
