package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ledgererrors "github.com/devrev/toypay/internal/errors"
	"github.com/devrev/toypay/internal/model"
	"github.com/devrev/toypay/internal/storage"
)

func setupStore(t *testing.T) *storage.Store {
	t.Helper()

	s, err := storage.NewStore(&storage.Config{Partitions: 4, TransactionCapacity: 100}, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func record(txType string, client uint16, tx uint32, amount string) model.InputRecord {
	rec := model.InputRecord{Type: txType, ClientID: client, TxID: tx}
	if amount != "" {
		d := decimal.RequireFromString(amount)
		rec.Amount = &d
	}
	return rec
}

func mustApply(t *testing.T, h handlerFunc, l Ledger, rec model.InputRecord) bool {
	t.Helper()
	applied, err := h(l, rec)
	require.NoError(t, err)
	return applied
}

func TestDeposit(t *testing.T) {
	t.Run("successful", func(t *testing.T) {
		s := setupStore(t)

		assert.True(t, mustApply(t, deposit, s, record("deposit", 1, 1, "10.50")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1050), a.Available)
		assert.Equal(t, uint32(0), a.Held)
		assert.False(t, a.Locked)

		tx, ok := s.LookupTransaction(1, 1)
		require.True(t, ok)
		assert.Equal(t, model.Transaction{ClientID: 1, Amount: 1050}, tx)
	})

	t.Run("missing amount", func(t *testing.T) {
		s := setupStore(t)

		_, err := deposit(s, record("deposit", 1, 1, ""))
		assert.ErrorIs(t, err, ledgererrors.ErrMissingAmount)
		assert.Contains(t, err.Error(), "deposit requires amount")
		assert.Empty(t, s.Snapshot(), "a rejected deposit must not create an account")
	})

	t.Run("zero amount", func(t *testing.T) {
		s := setupStore(t)

		_, err := deposit(s, record("deposit", 1, 1, "0"))
		assert.ErrorIs(t, err, ledgererrors.ErrNonPositiveAmount)
		assert.Empty(t, s.Snapshot())
		_, ok := s.LookupTransaction(1, 1)
		assert.False(t, ok)
	})

	t.Run("codec failures", func(t *testing.T) {
		s := setupStore(t)

		_, err := deposit(s, record("deposit", 1, 1, "-5"))
		assert.ErrorIs(t, err, ledgererrors.ErrAmountNegative)
		_, err = deposit(s, record("deposit", 1, 2, "50000000"))
		assert.ErrorIs(t, err, ledgererrors.ErrAmountTooLarge)
		_, err = deposit(s, record("deposit", 1, 3, "1.001"))
		assert.ErrorIs(t, err, ledgererrors.ErrAmountPrecisionLoss)
	})

	t.Run("locked account drops funds", func(t *testing.T) {
		s := setupStore(t)
		s.GetOrCreateAccount(1).Locked = true

		assert.False(t, mustApply(t, deposit, s, record("deposit", 1, 1, "10.00")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(0), a.Available)
		assert.True(t, a.Locked)
		_, ok := s.LookupTransaction(1, 1)
		assert.False(t, ok, "no record is stored for a dropped deposit")
	})

	t.Run("saturates", func(t *testing.T) {
		s := setupStore(t)

		mustApply(t, deposit, s, record("deposit", 1, 1, "42949672.95"))
		mustApply(t, deposit, s, record("deposit", 1, 2, "1.00"))
		assert.Equal(t, ^uint32(0), s.GetOrCreateAccount(1).Available)
	})
}

func TestWithdrawal(t *testing.T) {
	t.Run("successful", func(t *testing.T) {
		s := setupStore(t)
		mustApply(t, deposit, s, record("deposit", 1, 1, "20.00"))

		assert.True(t, mustApply(t, withdrawal, s, record("withdrawal", 1, 2, "5.00")))
		assert.Equal(t, uint32(1500), s.GetOrCreateAccount(1).Available)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		s := setupStore(t)
		mustApply(t, deposit, s, record("deposit", 1, 1, "5.00"))

		assert.False(t, mustApply(t, withdrawal, s, record("withdrawal", 1, 2, "10.00")))
		assert.Equal(t, uint32(500), s.GetOrCreateAccount(1).Available)
	})

	t.Run("missing amount", func(t *testing.T) {
		s := setupStore(t)

		_, err := withdrawal(s, record("withdrawal", 1, 1, ""))
		assert.ErrorIs(t, err, ledgererrors.ErrMissingAmount)
		assert.Contains(t, err.Error(), "withdrawal requires amount")
	})

	t.Run("zero amount", func(t *testing.T) {
		s := setupStore(t)

		_, err := withdrawal(s, record("withdrawal", 1, 1, "0.00"))
		assert.ErrorIs(t, err, ledgererrors.ErrNonPositiveAmount)
	})

	t.Run("locked account", func(t *testing.T) {
		s := setupStore(t)
		mustApply(t, deposit, s, record("deposit", 1, 1, "20.00"))
		s.GetOrCreateAccount(1).Locked = true

		assert.False(t, mustApply(t, withdrawal, s, record("withdrawal", 1, 2, "5.00")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(2000), a.Available)
		assert.True(t, a.Locked)
	})

	t.Run("not recorded", func(t *testing.T) {
		s := setupStore(t)
		mustApply(t, deposit, s, record("deposit", 1, 1, "20.00"))
		mustApply(t, withdrawal, s, record("withdrawal", 1, 2, "5.00"))

		_, ok := s.LookupTransaction(2, 1)
		assert.False(t, ok)
		assert.False(t, mustApply(t, dispute, s, record("dispute", 1, 2, "")))
	})
}

func setupDeposit(t *testing.T, s *storage.Store, client uint16, tx uint32, amount string) {
	t.Helper()
	mustApply(t, deposit, s, record("deposit", client, tx, amount))
}

func setupDisputed(t *testing.T, s *storage.Store, client uint16, tx uint32, amount string) {
	t.Helper()
	setupDeposit(t, s, client, tx, amount)
	require.True(t, mustApply(t, dispute, s, record("dispute", client, tx, "")))
}

func TestDispute(t *testing.T) {
	t.Run("successful", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")

		assert.True(t, mustApply(t, dispute, s, record("dispute", 1, 1, "")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(0), a.Available)
		assert.Equal(t, uint32(1000), a.Held)
		assert.False(t, a.Locked)

		tx, _ := s.LookupTransaction(1, 1)
		assert.True(t, tx.Disputed)
	})

	t.Run("nonexistent transaction", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")

		assert.False(t, mustApply(t, dispute, s, record("dispute", 1, 999, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Available)
		assert.Equal(t, uint32(0), a.Held)
	})

	t.Run("unknown client is not created", func(t *testing.T) {
		s := setupStore(t)

		assert.False(t, mustApply(t, dispute, s, record("dispute", 1, 999, "")))
		assert.Empty(t, s.Snapshot())
	})

	t.Run("wrong client", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")

		// Client 5 shares client 1's partition, so the lookup hits the record
		assert.False(t, mustApply(t, dispute, s, record("dispute", 5, 1, "")))
		assert.False(t, mustApply(t, dispute, s, record("dispute", 2, 1, "")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Available)
		assert.Equal(t, uint32(0), a.Held)
	})

	t.Run("insufficient available funds", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")
		mustApply(t, withdrawal, s, record("withdrawal", 1, 2, "8.00"))

		assert.False(t, mustApply(t, dispute, s, record("dispute", 1, 1, "")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(200), a.Available)
		assert.Equal(t, uint32(0), a.Held)
		tx, _ := s.LookupTransaction(1, 1)
		assert.False(t, tx.Disputed, "an unfunded dispute does not mark the transaction")
	})

	t.Run("double dispute", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")
		setupDeposit(t, s, 1, 2, "10.00")

		assert.True(t, mustApply(t, dispute, s, record("dispute", 1, 1, "")))
		assert.False(t, mustApply(t, dispute, s, record("dispute", 1, 1, "")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Available)
		assert.Equal(t, uint32(1000), a.Held)
	})

	t.Run("locked account", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")
		s.GetOrCreateAccount(1).Locked = true

		assert.False(t, mustApply(t, dispute, s, record("dispute", 1, 1, "")))
		assert.Equal(t, uint32(0), s.GetOrCreateAccount(1).Held)
	})
}

func TestResolve(t *testing.T) {
	t.Run("successful", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")

		assert.True(t, mustApply(t, resolve, s, record("resolve", 1, 1, "")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Available)
		assert.Equal(t, uint32(0), a.Held)
		assert.False(t, a.Locked)
		tx, _ := s.LookupTransaction(1, 1)
		assert.False(t, tx.Disputed)
	})

	t.Run("nonexistent transaction", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")

		assert.False(t, mustApply(t, resolve, s, record("resolve", 1, 999, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(0), a.Available)
		assert.Equal(t, uint32(1000), a.Held)
	})

	t.Run("not disputed", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")

		assert.False(t, mustApply(t, resolve, s, record("resolve", 1, 1, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Available)
		assert.Equal(t, uint32(0), a.Held)
	})

	t.Run("wrong client", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")

		assert.False(t, mustApply(t, resolve, s, record("resolve", 5, 1, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(0), a.Available)
		assert.Equal(t, uint32(1000), a.Held)
	})

	t.Run("ignores lock", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")
		s.GetOrCreateAccount(1).Locked = true

		assert.True(t, mustApply(t, resolve, s, record("resolve", 1, 1, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Available)
		assert.Equal(t, uint32(0), a.Held)
		assert.True(t, a.Locked)
	})

	t.Run("after chargeback", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")
		mustApply(t, chargeback, s, record("chargeback", 1, 1, ""))

		assert.True(t, mustApply(t, resolve, s, record("resolve", 1, 1, "")))
		assert.Equal(t, model.Account{Available: 1000, Held: 0, Locked: true}, *s.GetOrCreateAccount(1))

		tx, ok := s.LookupTransaction(1, 1)
		require.True(t, ok)
		assert.False(t, tx.Disputed)
	})

	t.Run("redispute after resolve", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")
		mustApply(t, resolve, s, record("resolve", 1, 1, ""))

		assert.True(t, mustApply(t, dispute, s, record("dispute", 1, 1, "")))
		assert.Equal(t, uint32(1000), s.GetOrCreateAccount(1).Held)
	})
}

func TestChargeback(t *testing.T) {
	t.Run("successful", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")

		assert.True(t, mustApply(t, chargeback, s, record("chargeback", 1, 1, "")))

		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(0), a.Available)
		assert.Equal(t, uint32(0), a.Held)
		assert.True(t, a.Locked)

		tx, _ := s.LookupTransaction(1, 1)
		assert.True(t, tx.Disputed, "chargeback leaves the disputed flag set")
	})

	t.Run("nonexistent transaction", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")

		assert.False(t, mustApply(t, chargeback, s, record("chargeback", 1, 999, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Held)
		assert.False(t, a.Locked)
	})

	t.Run("wrong client", func(t *testing.T) {
		s := setupStore(t)
		setupDisputed(t, s, 1, 1, "10.00")

		assert.False(t, mustApply(t, chargeback, s, record("chargeback", 2, 1, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Held)
		assert.False(t, a.Locked)
	})

	t.Run("not disputed", func(t *testing.T) {
		s := setupStore(t)
		setupDeposit(t, s, 1, 1, "10.00")

		assert.False(t, mustApply(t, chargeback, s, record("chargeback", 1, 1, "")))
		a := s.GetOrCreateAccount(1)
		assert.Equal(t, uint32(1000), a.Available)
		assert.False(t, a.Locked)
	})
}

func TestHandlers_EvictedTransactionIsNotFound(t *testing.T) {
	s, err := storage.NewStore(&storage.Config{Partitions: 1, TransactionCapacity: 1}, zap.NewNop(), nil)
	require.NoError(t, err)

	setupDeposit(t, s, 1, 1, "10.00")
	setupDeposit(t, s, 1, 2, "5.00")

	assert.False(t, mustApply(t, dispute, s, record("dispute", 1, 1, "")))
	assert.True(t, mustApply(t, dispute, s, record("dispute", 1, 2, "")))

	a := s.GetOrCreateAccount(1)
	assert.Equal(t, uint32(1000), a.Available)
	assert.Equal(t, uint32(500), a.Held)
}
