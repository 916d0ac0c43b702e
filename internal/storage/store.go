// Package storage holds account balances and deposit history, split into a
// fixed number of partitions selected by client id.
package storage

import (
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/devrev/toypay/internal/amount"
	"github.com/devrev/toypay/internal/metrics"
	"github.com/devrev/toypay/internal/model"
)

const (
	// MinPartitions is the floor applied to the automatic partition count
	MinPartitions = 4

	// DefaultTransactionCapacity bounds each partition's deposit history
	DefaultTransactionCapacity = 100000

	initialAccountCapacity = 1000
)

// Config holds store configuration
type Config struct {
	Partitions          int // 0 selects max(MinPartitions, runtime.NumCPU())
	TransactionCapacity int // Per partition; 0 selects DefaultTransactionCapacity
}

// Store is the partitioned account and transaction store
type Store struct {
	partitions []*Partition
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// DefaultPartitionCount returns max(MinPartitions, runtime.NumCPU())
func DefaultPartitionCount() int {
	if n := runtime.NumCPU(); n > MinPartitions {
		return n
	}
	return MinPartitions
}

// NewStore creates a new store. Failing to allocate the store is fatal for a run.
func NewStore(cfg *Config, logger *zap.Logger, m *metrics.Metrics) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	count := cfg.Partitions
	if count <= 0 {
		count = DefaultPartitionCount()
	}
	capacity := cfg.TransactionCapacity
	if capacity <= 0 {
		capacity = DefaultTransactionCapacity
	}

	s := &Store{
		partitions: make([]*Partition, count),
		logger:     logger,
		metrics:    m,
	}
	for i := range s.partitions {
		p, err := newPartition(i, capacity, logger, m)
		if err != nil {
			return nil, err
		}
		s.partitions[i] = p
	}

	logger.Debug("Store initialized",
		zap.Int("partitions", count),
		zap.Int("transaction_capacity", capacity))

	return s, nil
}

// PartitionCount returns the number of partitions
func (s *Store) PartitionCount() int {
	return len(s.partitions)
}

// PartitionIndex maps a client to its partition: client_id mod N
func (s *Store) PartitionIndex(clientID uint16) int {
	return int(clientID) % len(s.partitions)
}

// PartitionFor returns the partition owning clientID
func (s *Store) PartitionFor(clientID uint16) *Partition {
	return s.partitions[s.PartitionIndex(clientID)]
}

// WithPartition runs fn under the lock of the partition owning clientID
func (s *Store) WithPartition(clientID uint16, fn func(p *Partition) error) error {
	p := s.PartitionFor(clientID)
	p.Lock()
	defer p.Unlock()
	return fn(p)
}

// GetOrCreateAccount returns the client's account, creating it if needed
func (s *Store) GetOrCreateAccount(clientID uint16) *model.Account {
	return s.PartitionFor(clientID).GetOrCreateAccount(clientID)
}

// RecordTransaction stores tx in its owner's partition
func (s *Store) RecordTransaction(txID uint32, tx model.Transaction) {
	s.PartitionFor(tx.ClientID).RecordTransaction(txID, tx)
}

// LookupTransaction looks txID up in clientID's partition
func (s *Store) LookupTransaction(txID uint32, clientID uint16) (model.Transaction, bool) {
	return s.PartitionFor(clientID).LookupTransaction(txID, clientID)
}

// SetDisputed sets the disputed flag of a resident transaction
func (s *Store) SetDisputed(txID uint32, clientID uint16, disputed bool) {
	s.PartitionFor(clientID).SetDisputed(txID, clientID, disputed)
}

// Snapshot returns every known account ordered by client id ascending,
// independent of the partition layout.
func (s *Store) Snapshot() []model.AccountSnapshot {
	var out []model.AccountSnapshot
	for _, p := range s.partitions {
		p.Lock()
		out = p.snapshot(out)
		p.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ClientID < out[j].ClientID
	})
	return out
}

// Stats returns per-partition statistics and refreshes the storage gauges
func (s *Store) Stats() []PartitionStats {
	stats := make([]PartitionStats, len(s.partitions))
	var accounts, locked, resident int
	for i, p := range s.partitions {
		p.Lock()
		stats[i] = p.Stats()
		p.Unlock()

		accounts += stats[i].Accounts
		locked += stats[i].Locked
		resident += stats[i].Transactions
	}

	s.metrics.UpdateStorageStats(len(s.partitions), accounts, locked, resident)
	return stats
}

func snapshotOf(clientID uint16, account *model.Account) model.AccountSnapshot {
	return model.AccountSnapshot{
		ClientID:  clientID,
		Available: amount.ToDecimal(account.Available),
		Held:      amount.ToDecimal(account.Held),
		Total:     amount.ToDecimal64(account.Total()),
		Locked:    account.Locked,
	}
}
