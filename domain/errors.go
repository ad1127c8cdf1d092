package domain

import (
	"errors"
	"fmt"
)

type DomainError struct {
	message string
}

func NewDomainError(format string, args ...interface{}) *DomainError {
	return &DomainError{message: fmt.Sprintf(format, args...)}
}

func (e *DomainError) Error() string {
	return e.message
}

// Rejection reasons. A ledger records them for diagnostics but never
// returns them from Apply: rejected commands are silent no-ops.
var (
	ErrInsufficientFunds    = NewDomainError("insufficient funds")
	ErrWouldCreateDebt      = NewDomainError("dispute would drive available funds negative")
	ErrNonPositiveAmount    = NewDomainError("amount must be positive")
	ErrDuplicateTransaction = NewDomainError("transaction already posted")
	ErrUnknownTransaction   = NewDomainError("transaction not found")
	ErrDisputeOpen          = NewDomainError("transaction already under dispute")
	ErrNoOpenDispute        = NewDomainError("transaction is not under dispute")
	ErrAccountLocked        = NewDomainError("account is locked")
	ErrUnknownCommand       = NewDomainError("unknown command")
)

// Engine defects. These are returned from Apply and must stop processing.
var (
	ErrInvariantViolation = errors.New("invariant violation: total != available + held")
	ErrLedgerHalted       = errors.New("ledger halted after invariant violation")
)
