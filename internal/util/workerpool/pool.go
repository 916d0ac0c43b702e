// Package workerpool runs tasks on a fixed set of goroutines, each with its own
// FIFO queue. Tasks submitted with the same key always run on the same worker,
// in submission order.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/toypay/internal/metrics"
)

// Task represents a unit of work to be executed
type Task struct {
	Key int // Selects the worker: Key mod workers
	Fn  func(context.Context) error
}

// WorkerPool manages a bounded set of keyed worker goroutines
type WorkerPool struct {
	name           string
	workers        int
	queueSize      int
	queues         []chan Task
	ctx            context.Context
	logger         *zap.Logger
	metrics        *metrics.Metrics
	wg             sync.WaitGroup
	mu             sync.RWMutex
	stopped        bool
	stopOnce       sync.Once
	activeWorkers  int32
	totalTasks     uint64
	completedTasks uint64
	failedTasks    uint64
	rejectedTasks  uint64
}

// Config holds worker pool configuration
type Config struct {
	Name      string
	Workers   int
	QueueSize int // Per worker
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// NewWorkerPool creates a new worker pool and starts its workers. ctx is
// passed to every task.
func NewWorkerPool(ctx context.Context, cfg *Config) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pool := &WorkerPool{
		name:      cfg.Name,
		workers:   cfg.Workers,
		queueSize: cfg.QueueSize,
		queues:    make([]chan Task, cfg.Workers),
		ctx:       ctx,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	for i := 0; i < pool.workers; i++ {
		pool.queues[i] = make(chan Task, pool.queueSize)
		pool.wg.Add(1)
		go pool.worker(i)
	}

	pool.logger.Debug("Worker pool started",
		zap.String("name", pool.name),
		zap.Int("workers", pool.workers),
		zap.Int("queue_size", pool.queueSize))

	return pool
}

// worker drains its queue until it is closed
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for task := range p.queues[id] {
		p.executeTask(id, task)
	}

	p.logger.Debug("Worker stopped",
		zap.String("pool", p.name),
		zap.Int("worker_id", id))
}

// executeTask executes a single task
func (p *WorkerPool) executeTask(workerID int, task Task) {
	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)

	start := time.Now()
	err := p.safeExecute(task)
	duration := time.Since(start)

	if err != nil {
		atomic.AddUint64(&p.failedTasks, 1)
		p.metrics.RecordWorkerTask("failed")
		p.logger.Debug("Task failed",
			zap.String("pool", p.name),
			zap.Int("worker_id", workerID),
			zap.Int("key", task.Key),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	atomic.AddUint64(&p.completedTasks, 1)
	p.metrics.RecordWorkerTask("completed")
}

// safeExecute executes a task with panic recovery
func (p *WorkerPool) safeExecute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			p.logger.Error("Task panic recovered",
				zap.String("pool", p.name),
				zap.Int("key", task.Key),
				zap.Any("panic", r))
		}
	}()

	return task.Fn(p.ctx)
}

// Submit queues a task on the worker owning task.Key, blocking while that
// worker's queue is full. It fails if ctx is canceled or the pool is stopped.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		atomic.AddUint64(&p.rejectedTasks, 1)
		return fmt.Errorf("worker pool '%s' is stopped", p.name)
	}

	queue := p.queues[p.workerFor(task.Key)]
	select {
	case queue <- task:
		atomic.AddUint64(&p.totalTasks, 1)
		return nil
	case <-ctx.Done():
		atomic.AddUint64(&p.rejectedTasks, 1)
		return ctx.Err()
	}
}

func (p *WorkerPool) workerFor(key int) int {
	if key < 0 {
		key = -key
	}
	return key % p.workers
}

// Stop closes all queues and waits for queued tasks to finish
func (p *WorkerPool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		for _, q := range p.queues {
			close(q)
		}
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Debug("Worker pool stopped", zap.String("name", p.name))
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool '%s' stop timeout after %v", p.name, timeout)
			p.logger.Warn("Worker pool stop timeout", zap.String("name", p.name))
		}
	})
	return err
}

// Stats returns current worker pool statistics
func (p *WorkerPool) Stats() Stats {
	queued := 0
	for _, q := range p.queues {
		queued += len(q)
	}

	return Stats{
		Name:           p.name,
		Workers:        p.workers,
		ActiveWorkers:  int(atomic.LoadInt32(&p.activeWorkers)),
		QueueSize:      p.queueSize * p.workers,
		QueuedTasks:    queued,
		TotalTasks:     atomic.LoadUint64(&p.totalTasks),
		CompletedTasks: atomic.LoadUint64(&p.completedTasks),
		FailedTasks:    atomic.LoadUint64(&p.failedTasks),
		RejectedTasks:  atomic.LoadUint64(&p.rejectedTasks),
	}
}

// Stats represents worker pool statistics
type Stats struct {
	Name           string
	Workers        int
	ActiveWorkers  int
	QueueSize      int
	QueuedTasks    int
	TotalTasks     uint64
	CompletedTasks uint64
	FailedTasks    uint64
	RejectedTasks  uint64
}

// SuccessRate returns the task success rate as a percentage
func (s Stats) SuccessRate() float64 {
	if s.TotalTasks == 0 {
		return 100.0
	}
	return (float64(s.CompletedTasks) / float64(s.TotalTasks)) * 100.0
}
