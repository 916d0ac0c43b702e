package model

import "github.com/shopspring/decimal"

// TransactionType defines the type of an input record
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeDispute    TransactionType = "dispute"
	TransactionTypeResolve    TransactionType = "resolve"
	TransactionTypeChargeback TransactionType = "chargeback"
)

// TransactionTypes lists every known type in dispatch order.
var TransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypeWithdrawal,
	TransactionTypeDispute,
	TransactionTypeResolve,
	TransactionTypeChargeback,
}

// ParseTransactionType is an exact match against the known types. ok is
// false for any other spelling, including different case or padding.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(s)
	for _, known := range TransactionTypes {
		if t == known {
			return t, true
		}
	}
	return t, false
}

// Transaction is a stored deposit that later records may dispute
type Transaction struct {
	ClientID uint16 // Owner
	Amount   uint32 // Centimes, always positive
	Disputed bool
}

// InputRecord is one row of the input stream
type InputRecord struct {
	Type     string
	ClientID uint16
	TxID     uint32
	Amount   *decimal.Decimal // nil when the row carries no amount
}
