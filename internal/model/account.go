// Package model holds the account, transaction and input record types.
package model

import "github.com/shopspring/decimal"

// Account is the per-client balance record. Balances are in centimes.
type Account struct {
	Available uint32
	Held      uint32
	Locked    bool // Monotonic: set by a chargeback, never cleared
}

// Total is Available + Held. It is derived, never stored.
func (a *Account) Total() uint64 {
	return uint64(a.Available) + uint64(a.Held)
}

// Credit adds to Available, saturating at the uint32 ceiling.
func (a *Account) Credit(amount uint32) {
	a.Available = saturatingAdd(a.Available, amount)
}

// Debit removes amount from Available only if it is fully covered.
// It reports whether the debit was applied.
func (a *Account) Debit(amount uint32) bool {
	if a.Available < amount {
		return false
	}
	a.Available -= amount
	return true
}

// Hold moves amount from Available to Held if Available covers it.
func (a *Account) Hold(amount uint32) bool {
	if a.Available < amount {
		return false
	}
	a.Available -= amount
	a.Held = saturatingAdd(a.Held, amount)
	return true
}

// Release moves amount from Held back to Available.
func (a *Account) Release(amount uint32) {
	a.Held = saturatingSub(a.Held, amount)
	a.Available = saturatingAdd(a.Available, amount)
}

// Reverse removes amount from Held permanently and freezes the account.
func (a *Account) Reverse(amount uint32) {
	a.Held = saturatingSub(a.Held, amount)
	a.Freeze()
}

// Freeze locks the account.
func (a *Account) Freeze() {
	a.Locked = true
}

func saturatingAdd(a, b uint32) uint32 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint32(0)
}

func saturatingSub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

// AccountSnapshot is the output view of an account
type AccountSnapshot struct {
	ClientID  uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}
