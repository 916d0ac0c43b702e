package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ledgererrors "github.com/devrev/toypay/internal/errors"
	"github.com/devrev/toypay/internal/metrics"
	"github.com/devrev/toypay/internal/model"
	"github.com/devrev/toypay/internal/util/workerpool"
)

// RecordSource yields input records in stream order. Next returns io.EOF at
// the end of the stream. An error matching ledgererrors.ErrInvalidRecord marks
// one undecodable row, which the run skips.
type RecordSource interface {
	Next() (model.InputRecord, error)
}

// RunOptions controls how a run dispatches records
type RunOptions struct {
	// Workers > 1 dispatches on one goroutine per partition group. Records of
	// a given client always go to the same worker in stream order.
	Workers     int
	QueueSize   int
	StopTimeout time.Duration
}

// Summary holds run statistics
type Summary struct {
	RunID    string
	Records  int // Dispatched records
	Applied  int
	Ignored  int // Silent no-ops
	Rejected int // Records the engine returned an error for
	Skipped  int // Undecodable rows reported by the source
	Duration time.Duration
}

type tally struct {
	mu      sync.Mutex
	summary *Summary
	logger  *zap.Logger
}

func (t *tally) add(rec model.InputRecord, outcome string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.Records++
	switch outcome {
	case metrics.OutcomeApplied:
		t.summary.Applied++
	case metrics.OutcomeIgnored:
		t.summary.Ignored++
	default:
		t.summary.Rejected++
		fields := []zap.Field{
			zap.String("type", rec.Type),
			zap.Uint16("client", rec.ClientID),
			zap.Uint32("tx", rec.TxID),
			zap.String("code", ledgererrors.GetCode(err).String()),
			zap.Error(err),
		}
		t.logger.Warn("Record rejected", append(fields, detailFields(err)...)...)
	}
}

// detailFields turns LedgerError details into log fields under "detail."
func detailFields(err error) []zap.Field {
	le, ok := ledgererrors.AsLedgerError(err)
	if !ok {
		return nil
	}
	fields := make([]zap.Field, 0, len(le.Details))
	for _, k := range le.DetailKeys() {
		fields = append(fields, zap.Any("detail."+k, le.Details[k]))
	}
	return fields
}

func (t *tally) skip(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.Skipped++
	t.logger.Warn("Input row skipped", append([]zap.Field{zap.Error(err)}, detailFields(err)...)...)
}

// Run drains src through the engine. Per-record errors are logged and
// counted; only source failures and ctx cancellation end the run early.
func (e *Engine) Run(ctx context.Context, src RecordSource, opts RunOptions) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := e.logger.With(zap.String("run_id", summary.RunID))
	t := &tally{summary: summary, logger: logger}

	logger.Info("Run started",
		zap.Int("partitions", e.store.PartitionCount()),
		zap.Int("workers", opts.Workers))

	var err error
	if opts.Workers > 1 {
		err = e.runParallel(ctx, src, opts, t, logger)
	} else {
		err = e.runSequential(ctx, src, t)
	}

	summary.Duration = time.Since(start)
	e.metrics.RecordRun(summary.Duration.Seconds())
	e.store.Stats()

	fields := []zap.Field{
		zap.Int("records", summary.Records),
		zap.Int("applied", summary.Applied),
		zap.Int("ignored", summary.Ignored),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration),
	}
	if err != nil {
		logger.Error("Run aborted", append(fields, zap.Error(err))...)
		return summary, err
	}
	logger.Info("Run completed", fields...)
	return summary, nil
}

func (e *Engine) runSequential(ctx context.Context, src RecordSource, t *tally) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ledgererrors.ErrInvalidRecord) {
				t.skip(err)
				continue
			}
			return ledgererrors.InternalError("failed to read record", err)
		}

		outcome, err := e.dispatch(rec)
		t.add(rec, outcome, err)
	}
}

func (e *Engine) runParallel(ctx context.Context, src RecordSource, opts RunOptions, t *tally, logger *zap.Logger) error {
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}

	pool := workerpool.NewWorkerPool(ctx, &workerpool.Config{
		Name:      "dispatch",
		Workers:   opts.Workers,
		QueueSize: opts.QueueSize,
		Logger:    logger,
		Metrics:   e.metrics,
	})

	readErr := e.feed(ctx, src, pool, t)

	// Always drain what was queued so per-client state stays consistent
	if err := pool.Stop(stopTimeout); err != nil {
		return err
	}

	stats := pool.Stats()
	logger.Debug("Dispatch pool drained",
		zap.Int("workers", stats.Workers),
		zap.Uint64("tasks", stats.TotalTasks),
		zap.Uint64("completed", stats.CompletedTasks),
		zap.Uint64("failed", stats.FailedTasks),
		zap.Float64("success_rate", stats.SuccessRate()))
	return readErr
}

func (e *Engine) feed(ctx context.Context, src RecordSource, pool *workerpool.WorkerPool, t *tally) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ledgererrors.ErrInvalidRecord) {
				t.skip(err)
				continue
			}
			return ledgererrors.InternalError("failed to read record", err)
		}

		task := workerpool.Task{
			Key: e.store.PartitionIndex(rec.ClientID),
			Fn: func(context.Context) error {
				outcome, err := e.dispatch(rec)
				t.add(rec, outcome, err)
				return err
			},
		}
		if err := pool.Submit(ctx, task); err != nil {
			return err
		}
	}
}
