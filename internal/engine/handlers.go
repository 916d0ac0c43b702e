package engine

import (
	"github.com/devrev/toypay/internal/amount"
	ledgererrors "github.com/devrev/toypay/internal/errors"
	"github.com/devrev/toypay/internal/model"
)

// Ledger is the storage surface the handlers mutate. Both *storage.Store and
// *storage.Partition satisfy it.
type Ledger interface {
	GetOrCreateAccount(clientID uint16) *model.Account
	RecordTransaction(txID uint32, tx model.Transaction)
	LookupTransaction(txID uint32, clientID uint16) (model.Transaction, bool)
	SetDisputed(txID uint32, clientID uint16, disputed bool)
}

// handlerFunc applies one record. applied is false for the silent no-op paths.
type handlerFunc func(l Ledger, rec model.InputRecord) (applied bool, err error)

var handlers = map[model.TransactionType]handlerFunc{
	model.TransactionTypeDeposit:    deposit,
	model.TransactionTypeWithdrawal: withdrawal,
	model.TransactionTypeDispute:    dispute,
	model.TransactionTypeResolve:    resolve,
	model.TransactionTypeChargeback: chargeback,
}

// requireAmount decodes the record amount. It runs before the account is
// touched, so a rejected record never creates an account.
func requireAmount(txType model.TransactionType, rec model.InputRecord) (uint32, error) {
	if rec.Amount == nil {
		return 0, ledgererrors.MissingAmount(string(txType), rec.TxID)
	}

	centimes, err := amount.ToInternal(*rec.Amount)
	if err != nil {
		return 0, err
	}
	if centimes == 0 {
		return 0, ledgererrors.NonPositiveAmount(string(txType), rec.TxID)
	}
	return centimes, nil
}

func deposit(l Ledger, rec model.InputRecord) (bool, error) {
	centimes, err := requireAmount(model.TransactionTypeDeposit, rec)
	if err != nil {
		return false, err
	}

	account := l.GetOrCreateAccount(rec.ClientID)
	if account.Locked {
		return false, nil
	}

	account.Credit(centimes)
	l.RecordTransaction(rec.TxID, model.Transaction{
		ClientID: rec.ClientID,
		Amount:   centimes,
	})
	return true, nil
}

// withdrawal never records history, so withdrawals cannot be disputed.
func withdrawal(l Ledger, rec model.InputRecord) (bool, error) {
	centimes, err := requireAmount(model.TransactionTypeWithdrawal, rec)
	if err != nil {
		return false, err
	}

	account := l.GetOrCreateAccount(rec.ClientID)
	if account.Locked {
		return false, nil
	}

	return account.Debit(centimes), nil
}

// disputed looks up the referenced deposit. ok is false when it is unknown,
// evicted, owned by another client or not in the wanted dispute state.
func disputed(l Ledger, rec model.InputRecord, want bool) (model.Transaction, bool) {
	tx, found := l.LookupTransaction(rec.TxID, rec.ClientID)
	if !found || tx.ClientID != rec.ClientID || tx.Disputed != want {
		return model.Transaction{}, false
	}
	return tx, true
}

func dispute(l Ledger, rec model.InputRecord) (bool, error) {
	tx, ok := disputed(l, rec, false)
	if !ok {
		return false, nil
	}

	account := l.GetOrCreateAccount(rec.ClientID)
	if account.Locked || !account.Hold(tx.Amount) {
		return false, nil
	}

	l.SetDisputed(rec.TxID, rec.ClientID, true)
	return true, nil
}

// resolve does not check the account lock: a frozen account still gets
// its held funds released.
func resolve(l Ledger, rec model.InputRecord) (bool, error) {
	tx, ok := disputed(l, rec, true)
	if !ok {
		return false, nil
	}

	l.GetOrCreateAccount(rec.ClientID).Release(tx.Amount)
	l.SetDisputed(rec.TxID, rec.ClientID, false)
	return true, nil
}

// chargeback leaves the record flagged as disputed.
func chargeback(l Ledger, rec model.InputRecord) (bool, error) {
	tx, ok := disputed(l, rec, true)
	if !ok {
		return false, nil
	}

	l.GetOrCreateAccount(rec.ClientID).Reverse(tx.Amount)
	return true, nil
}
