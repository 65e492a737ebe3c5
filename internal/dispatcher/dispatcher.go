// Package dispatcher feeds queued harvest jobs to the harvester one at a
// time and tracks their state.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/harvest"
	"github.com/JakeFAU/douyin-harvester/internal/store"
)

// Queue buffers jobs between submission and execution.
type Queue interface {
	Enqueue(ctx context.Context, job harvest.Job) error
	Dequeue(ctx context.Context) (harvest.Job, error)
}

// Runner executes one job.
type Runner interface {
	Run(ctx context.Context, job harvest.Job) (harvest.Summary, error)
}

// IDGenerator issues run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Config wires a Dispatcher.
type Config struct {
	Queue  Queue
	Runner Runner
	Runs   store.RunStore
	IDs    IDGenerator
	Clock  Clock
	Logger *zap.Logger
	// EnqueueTimeout bounds how long Submit waits for queue space.
	EnqueueTimeout time.Duration
}

// Dispatcher runs queued jobs sequentially. Runs never overlap, so two runs
// cannot write the same dataset at once.
type Dispatcher struct {
	queue          Queue
	runner         Runner
	runs           store.RunStore
	ids            IDGenerator
	clock          Clock
	logger         *zap.Logger
	enqueueTimeout time.Duration
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 5 * time.Second
	}
	return &Dispatcher{
		queue:          cfg.Queue,
		runner:         cfg.Runner,
		runs:           cfg.Runs,
		ids:            cfg.IDs,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		enqueueTimeout: cfg.EnqueueTimeout,
	}
}

// Submit registers job as queued and enqueues it. It returns the run id.
func (d *Dispatcher) Submit(ctx context.Context, job harvest.Job) (string, error) {
	id, err := d.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	job.RunID = id
	if err := d.runs.Create(ctx, store.Run{
		ID:        id,
		Job:       job,
		State:     store.StateQueued,
		Submitted: d.clock.Now(),
	}); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, d.enqueueTimeout)
	defer cancel()
	if err := d.queue.Enqueue(queueCtx, job); err != nil {
		if completeErr := d.runs.Complete(ctx, id, harvest.Summary{RunID: id}, err, d.clock.Now()); completeErr != nil {
			d.logger.Warn("mark unqueued run failed", zap.String("run_id", id), zap.Error(completeErr))
		}
		return "", fmt.Errorf("queue enqueue: %w", err)
	}
	d.logger.Info("run queued", zap.String("run_id", id), zap.String("command", job.Command))
	return id, nil
}

// Run processes jobs until ctx ends or the queue is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		job, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				d.logger.Info("dispatcher stopped", zap.Error(err))
			}
			return
		}
		d.process(ctx, job)
	}
}

func (d *Dispatcher) process(ctx context.Context, job harvest.Job) {
	logger := d.logger.With(zap.String("run_id", job.RunID), zap.String("command", job.Command))
	if err := d.runs.MarkRunning(ctx, job.RunID, d.clock.Now()); err != nil {
		logger.Warn("mark run running failed", zap.Error(err))
	}
	summary, err := d.runner.Run(ctx, job)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
	}
	// The run context may be canceled on shutdown; the final state is still
	// recorded.
	if completeErr := d.runs.Complete(context.WithoutCancel(ctx), job.RunID, summary, err, d.clock.Now()); completeErr != nil {
		logger.Warn("mark run complete failed", zap.Error(completeErr))
	}
}
