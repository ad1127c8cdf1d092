package domain

import (
	"github.com/shopspring/decimal"

	"payments-engine/shared"
)

// --- Command Definitions ---
// Commands are the five instructions a ledger understands. Only deposits
// and withdrawals carry an amount.

type Command interface {
	TxID() shared.TxID
	Kind() CommandKind
}

type CommandKind string

const (
	DepositKind    CommandKind = "deposit"
	WithdrawalKind CommandKind = "withdrawal"
	DisputeKind    CommandKind = "dispute"
	ResolveKind    CommandKind = "resolve"
	ChargebackKind CommandKind = "chargeback"
)

type Deposit struct {
	Tx     shared.TxID
	Amount decimal.Decimal
}

type Withdrawal struct {
	Tx     shared.TxID
	Amount decimal.Decimal
}

type Dispute struct {
	Tx shared.TxID
}

// Resolve retracts an open dispute.
type Resolve struct {
	Tx shared.TxID
}

// Chargeback finalizes an open dispute against the client and locks the ledger.
type Chargeback struct {
	Tx shared.TxID
}

func (c Deposit) TxID() shared.TxID    { return c.Tx }
func (c Withdrawal) TxID() shared.TxID { return c.Tx }
func (c Dispute) TxID() shared.TxID    { return c.Tx }
func (c Resolve) TxID() shared.TxID    { return c.Tx }
func (c Chargeback) TxID() shared.TxID { return c.Tx }

func (Deposit) Kind() CommandKind    { return DepositKind }
func (Withdrawal) Kind() CommandKind { return WithdrawalKind }
func (Dispute) Kind() CommandKind    { return DisputeKind }
func (Resolve) Kind() CommandKind    { return ResolveKind }
func (Chargeback) Kind() CommandKind { return ChargebackKind }
