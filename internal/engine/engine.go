// Package engine applies input records to the partitioned store.
package engine

import (
	"time"

	"go.uber.org/zap"

	ledgererrors "github.com/devrev/toypay/internal/errors"
	"github.com/devrev/toypay/internal/metrics"
	"github.com/devrev/toypay/internal/model"
	"github.com/devrev/toypay/internal/storage"
)

// Engine routes records to the transaction handlers
type Engine struct {
	store   *storage.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a new engine over store
func NewEngine(store *storage.Store, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Store returns the underlying store
func (e *Engine) Store() *storage.Store {
	return e.store
}

// Dispatch applies one record. Only missing or zero amounts, amount decoding
// failures and unknown types are returned as errors; every other rejected
// record is a silent no-op.
func (e *Engine) Dispatch(rec model.InputRecord) error {
	_, err := e.dispatch(rec)
	return err
}

func (e *Engine) dispatch(rec model.InputRecord) (string, error) {
	start := time.Now()

	txType, known := model.ParseTransactionType(rec.Type)
	if !known {
		err := ledgererrors.UnknownTransactionType(rec.Type)
		e.observe(rec, "unknown", metrics.OutcomeError, start, err)
		return metrics.OutcomeError, err
	}
	handler := handlers[txType]

	var applied bool
	err := e.store.WithPartition(rec.ClientID, func(p *storage.Partition) error {
		var herr error
		applied, herr = handler(p, rec)
		return herr
	})

	outcome := metrics.OutcomeIgnored
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case applied:
		outcome = metrics.OutcomeApplied
	}

	e.observe(rec, string(txType), outcome, start, err)
	return outcome, err
}

func (e *Engine) observe(rec model.InputRecord, txType, outcome string, start time.Time, err error) {
	e.metrics.RecordDispatch(txType, outcome, time.Since(start).Seconds())

	if err != nil {
		e.metrics.RecordError(ledgererrors.GetCode(err).String())
		return
	}

	if ce := e.logger.Check(zap.DebugLevel, "Record dispatched"); ce != nil {
		ce.Write(
			zap.String("type", txType),
			zap.Uint16("client", rec.ClientID),
			zap.Uint32("tx", rec.TxID),
			zap.String("outcome", outcome))
	}
}

// Snapshot returns every account ordered by client id
func (e *Engine) Snapshot() []model.AccountSnapshot {
	return e.store.Snapshot()
}
