// Package worker runs periodic maintenance tasks in the background.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/agentguard/internal/metrics"
)

// Worker runs each registered task on its own goroutine at a fixed interval.
type Worker struct {
	tasks  []Task
	config Config
	logger *slog.Logger

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Register adds a task to the worker. Call this before Start().
func (w *Worker) Register(task Task) {
	w.tasks = append(w.tasks, task)
	w.logger.Debug("Registered maintenance task", "task", task.Name())
}

// Start launches one goroutine per task. Each task runs immediately and
// then every Interval until Stop is called or ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for _, task := range w.tasks {
		w.wg.Add(1)
		go w.loop(ctx, task)
	}
	w.logger.Info("Worker started", "tasks", len(w.tasks), "interval", w.config.Interval)
}

// Stop signals all tasks to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some tasks may still be running")
	}
}

func (w *Worker) loop(ctx context.Context, task Task) {
	defer w.wg.Done()

	logger := w.logger.With("task", task.Name())
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		if err := w.runOnce(ctx, task); err != nil {
			if IsPermanent(err) {
				logger.Error("Task failed permanently, unscheduling", "error", err)
				return
			}
			logger.Warn("Task failed", "error", err)
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce executes a task with a timeout and records the outcome.
func (w *Worker) runOnce(ctx context.Context, task Task) error {
	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	metrics.TaskRun(task.Name(), time.Since(start), err)
	return err
}
