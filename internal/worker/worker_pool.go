package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPoolStopped = errors.New("worker pool is stopped")
	ErrPoolFull    = errors.New("worker pool task queue is full")
)

type Task func()

type WorkerPool struct {
	tasks         chan Task
	wg            sync.WaitGroup
	activeWorkers int
	maxWorkers    int
	submitTimeout time.Duration
	logger        zerolog.Logger
	mu            sync.RWMutex
	// closeMu guards stopped and the close of tasks against Submit.
	closeMu       sync.RWMutex
	stopped       bool
}

// NewWorkerPool sizes the pool from the CPU count when maxWorkers is not
// positive, keeping a quarter of the cores free.
func NewWorkerPool(maxWorkers int, logger zerolog.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		totalCPU := runtime.NumCPU()
		maxWorkers = max(1, totalCPU-max(1, totalCPU/4))
	}

	return &WorkerPool{
		tasks:         make(chan Task, maxWorkers*10),
		maxWorkers:    maxWorkers,
		submitTimeout: time.Second,
		logger:        logger,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.logger.Info().Int("max_workers", wp.maxWorkers).Msg("Starting worker pool")

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.logger.Info().Int("workers_started", wp.maxWorkers).Msg("Worker pool started")
	return nil
}

// Stop rejects new tasks and waits for queued ones to finish.
func (wp *WorkerPool) Stop() error {
	wp.closeMu.Lock()
	if wp.stopped {
		wp.closeMu.Unlock()
		return nil
	}
	wp.stopped = true
	close(wp.tasks)
	wp.closeMu.Unlock()

	wp.logger.Info().Msg("Stopping worker pool")
	wp.wg.Wait()
	wp.logger.Info().Msg("Worker pool stopped")
	return nil
}

// Submit queues task, waiting up to a second when the queue is full.
func (wp *WorkerPool) Submit(task func()) error {
	wp.closeMu.RLock()
	defer wp.closeMu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.tasks <- task:
		return nil
	default:
	}

	wp.logger.Warn().Msg("Worker pool task queue is full")

	timer := time.NewTimer(wp.submitTimeout)
	defer timer.Stop()

	select {
	case wp.tasks <- task:
		return nil
	case <-timer.C:
		wp.logger.Error().Msg("Failed to submit task to worker pool (timeout)")
		return ErrPoolFull
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug().Int("worker_id", id).Msg("Worker started")

	for task := range wp.tasks {
		wp.run(id, task)
	}

	wp.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

func (wp *WorkerPool) run(id int, task Task) {
	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Int("worker_id", id).
				Interface("panic", r).
				Msg("Worker recovered from panic")
		}

		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	task()
}

// GetActiveWorkers counts workers currently running a task.
func (wp *WorkerPool) GetActiveWorkers() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.activeWorkers
}

func (wp *WorkerPool) GetQueueLength() int {
	return len(wp.tasks)
}

func (wp *WorkerPool) GetStats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return map[string]interface{}{
		"active_workers": wp.activeWorkers,
		"max_workers":    wp.maxWorkers,
		"queue_length":   len(wp.tasks),
		"queue_capacity": cap(wp.tasks),
	}
}
