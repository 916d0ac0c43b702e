package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
)

// ErrorCode represents internal error codes for ledger operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Per-record errors. These are reported to the caller and never abort a run.
	ErrCodeMissingAmount          ErrorCode = 1000
	ErrCodeNonPositiveAmount      ErrorCode = 1001
	ErrCodeAmountNegative         ErrorCode = 1002
	ErrCodeAmountTooLarge         ErrorCode = 1003
	ErrCodeAmountPrecisionLoss    ErrorCode = 1004
	ErrCodeUnknownTransactionType ErrorCode = 1005
	ErrCodeInvalidRecord          ErrorCode = 1006

	// Process errors
	ErrCodeInternal ErrorCode = 2000
	ErrCodeConfig   ErrorCode = 2001
)

var codeNames = map[ErrorCode]string{
	ErrCodeOK:                     "ok",
	ErrCodeMissingAmount:          "missing_amount",
	ErrCodeNonPositiveAmount:      "non_positive_amount",
	ErrCodeAmountNegative:         "amount_negative",
	ErrCodeAmountTooLarge:         "amount_too_large",
	ErrCodeAmountPrecisionLoss:    "amount_precision_loss",
	ErrCodeUnknownTransactionType: "unknown_transaction_type",
	ErrCodeInvalidRecord:          "invalid_record",
	ErrCodeInternal:               "internal",
	ErrCodeConfig:                 "config",
}

// String returns a stable snake_case name, used as a metrics label.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Sentinels for errors.Is comparisons. LedgerError.Is matches on code only.
var (
	ErrMissingAmount          = &LedgerError{Code: ErrCodeMissingAmount, Message: "amount is required"}
	ErrNonPositiveAmount      = &LedgerError{Code: ErrCodeNonPositiveAmount, Message: "amount must be positive"}
	ErrAmountNegative         = &LedgerError{Code: ErrCodeAmountNegative, Message: "amount cannot be negative"}
	ErrAmountTooLarge         = &LedgerError{Code: ErrCodeAmountTooLarge, Message: "amount too large"}
	ErrAmountPrecisionLoss    = &LedgerError{Code: ErrCodeAmountPrecisionLoss, Message: "invalid amount precision"}
	ErrUnknownTransactionType = &LedgerError{Code: ErrCodeUnknownTransactionType, Message: "unknown transaction type"}
	ErrInvalidRecord          = &LedgerError{Code: ErrCodeInvalidRecord, Message: "invalid record"}
	ErrInternal               = &LedgerError{Code: ErrCodeInternal, Message: "internal error"}
	ErrConfig                 = &LedgerError{Code: ErrCodeConfig, Message: "invalid configuration"}
)

// LedgerError represents a structured error with code and context
type LedgerError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a LedgerError carrying the same code.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewLedgerError creates a new LedgerError
func NewLedgerError(code ErrorCode, message string, cause error) *LedgerError {
	return &LedgerError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *LedgerError) WithDetail(key string, value interface{}) *LedgerError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func MissingAmount(txType string, txID uint32) *LedgerError {
	return NewLedgerError(ErrCodeMissingAmount, fmt.Sprintf("%s requires amount", txType), nil).
		WithDetail("type", txType).
		WithDetail("tx", txID)
}

func NonPositiveAmount(txType string, txID uint32) *LedgerError {
	return NewLedgerError(ErrCodeNonPositiveAmount, fmt.Sprintf("%s amount must be positive", txType), nil).
		WithDetail("type", txType).
		WithDetail("tx", txID)
}

func AmountNegative(amount string) *LedgerError {
	return NewLedgerError(ErrCodeAmountNegative, fmt.Sprintf("amount cannot be negative: %s", amount), nil).
		WithDetail("amount", amount)
}

func AmountTooLarge(amount, max string) *LedgerError {
	return NewLedgerError(ErrCodeAmountTooLarge, fmt.Sprintf("amount %s exceeds maximum %s", amount, max), nil).
		WithDetail("amount", amount).
		WithDetail("max", max)
}

func AmountPrecisionLoss(amount string) *LedgerError {
	return NewLedgerError(ErrCodeAmountPrecisionLoss, fmt.Sprintf("amount %s has more than 2 fractional digits", amount), nil).
		WithDetail("amount", amount)
}

func UnknownTransactionType(txType string) *LedgerError {
	return NewLedgerError(ErrCodeUnknownTransactionType, fmt.Sprintf("unexpected transaction type: %q", txType), nil).
		WithDetail("type", txType)
}

func InvalidRecord(line int, reason string, cause error) *LedgerError {
	return NewLedgerError(ErrCodeInvalidRecord, fmt.Sprintf("invalid record at line %d: %s", line, reason), cause).
		WithDetail("line", line).
		WithDetail("reason", reason)
}

func InternalError(message string, cause error) *LedgerError {
	return NewLedgerError(ErrCodeInternal, message, cause)
}

func ConfigError(message string, cause error) *LedgerError {
	return NewLedgerError(ErrCodeConfig, message, cause)
}

// AsLedgerError finds the first LedgerError in err's chain
func AsLedgerError(err error) (*LedgerError, bool) {
	var le *LedgerError
	if stderrors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// DetailKeys returns the detail keys in sorted order
func (e *LedgerError) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	if le, ok := err.(*LedgerError); ok {
		return le.Code
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return GetCode(u.Unwrap())
	}
	return ErrCodeInternal
}
