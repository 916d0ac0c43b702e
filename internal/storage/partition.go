package storage

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
	"go.uber.org/zap"

	"github.com/devrev/toypay/internal/metrics"
	"github.com/devrev/toypay/internal/model"
)

// Partition owns the accounts and deposit history of every client whose id
// maps to it. It is not safe for concurrent use; callers serialize through
// Lock/Unlock or Store.WithPartition.
type Partition struct {
	mu           sync.Mutex
	id           int
	accounts     map[uint16]*model.Account
	transactions *simplelru.LRU
	capacity     int
	evictions    uint64
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// PartitionStats holds partition statistics
type PartitionStats struct {
	ID           int
	Accounts     int
	Locked       int
	Transactions int
	Capacity     int
	Evictions    uint64
}

func newPartition(id, capacity int, logger *zap.Logger, m *metrics.Metrics) (*Partition, error) {
	p := &Partition{
		id:       id,
		accounts: make(map[uint16]*model.Account, initialAccountCapacity),
		capacity: capacity,
		logger:   logger,
		metrics:  m,
	}

	lru, err := simplelru.NewLRU(capacity, p.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction table for partition %d: %w", id, err)
	}
	p.transactions = lru

	return p, nil
}

// ID returns the partition index
func (p *Partition) ID() int {
	return p.id
}

// Lock acquires the partition lock
func (p *Partition) Lock() {
	p.mu.Lock()
}

// Unlock releases the partition lock
func (p *Partition) Unlock() {
	p.mu.Unlock()
}

// GetOrCreateAccount returns the client's account, creating a zeroed,
// unlocked one on first reference.
func (p *Partition) GetOrCreateAccount(clientID uint16) *model.Account {
	if account, ok := p.accounts[clientID]; ok {
		return account
	}
	account := &model.Account{}
	p.accounts[clientID] = account
	return account
}

// RecordTransaction stores a deposit under txID, evicting the least recently
// used record if the table is full.
func (p *Partition) RecordTransaction(txID uint32, tx model.Transaction) {
	stored := tx
	p.transactions.Add(txID, &stored)
}

// LookupTransaction returns a copy of the record if it is still resident.
// A hit refreshes the record's recency.
func (p *Partition) LookupTransaction(txID uint32, clientID uint16) (model.Transaction, bool) {
	value, ok := p.transactions.Get(txID)
	if !ok {
		return model.Transaction{}, false
	}
	return *value.(*model.Transaction), true
}

// SetDisputed updates the disputed flag. It is a no-op if the record was evicted.
func (p *Partition) SetDisputed(txID uint32, clientID uint16, disputed bool) {
	value, ok := p.transactions.Get(txID)
	if !ok {
		return
	}
	value.(*model.Transaction).Disputed = disputed
}

// onEvict is called by the LRU when the table is at capacity
func (p *Partition) onEvict(key interface{}, value interface{}) {
	p.evictions++
	p.metrics.RecordEviction()

	tx := value.(*model.Transaction)
	p.logger.Debug("Evicted transaction record",
		zap.Int("partition", p.id),
		zap.Uint32("tx", key.(uint32)),
		zap.Uint16("client", tx.ClientID),
		zap.Bool("disputed", tx.Disputed))
}

// snapshot appends every account of this partition to out
func (p *Partition) snapshot(out []model.AccountSnapshot) []model.AccountSnapshot {
	for clientID, account := range p.accounts {
		out = append(out, snapshotOf(clientID, account))
	}
	return out
}

// Stats returns partition statistics
func (p *Partition) Stats() PartitionStats {
	locked := 0
	for _, account := range p.accounts {
		if account.Locked {
			locked++
		}
	}

	return PartitionStats{
		ID:           p.id,
		Accounts:     len(p.accounts),
		Locked:       locked,
		Transactions: p.transactions.Len(),
		Capacity:     p.capacity,
		Evictions:    p.evictions,
	}
}
