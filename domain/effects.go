package domain

import (
	"github.com/shopspring/decimal"
)

// --- Balance Effects ---
// Each accepted command is expressed as a named effect that only exposes
// the balances it is allowed to touch. Every effect converts to a signed
// Balances delta which the ledger adds to its state.

// Posting is the effect an accepted deposit or withdrawal had on
// available/total. Deposits and withdrawals differ only by sign. Postings
// are retained forever so a later dispute can compute its exact reversal.
type Posting struct {
	Available decimal.Decimal `json:"available"`
	Total     decimal.Decimal `json:"total"`
}

func newDepositPosting(amount decimal.Decimal) Posting {
	return Posting{Available: amount, Total: amount}
}

func newWithdrawalPosting(amount decimal.Decimal) Posting {
	return Posting{Available: amount.Neg(), Total: amount.Neg()}
}

func (p Posting) delta() Balances {
	return Balances{Available: p.Available, Held: decimal.Zero, Total: p.Total}
}

// Dispute provisionally reverses the posting's effect on available and
// parks it in held. For a withdrawal this makes held negative: funds owed
// back if the dispute is rejected.
func (p Posting) Dispute() DisputeRecord {
	return DisputeRecord{
		Available: p.Available.Neg(),
		Held:      p.Available,
	}
}

// DisputeRecord is the available/held delta in force while a transaction is
// disputed. It is consumed by exactly one Resolve or Chargeback.
type DisputeRecord struct {
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
}

func (d DisputeRecord) delta() Balances {
	return Balances{Available: d.Available, Held: d.Held, Total: decimal.Zero}
}

// Resolve undoes the dispute exactly.
func (d DisputeRecord) Resolve() ResolveEffect {
	return ResolveEffect{
		Available: d.Available.Neg(),
		Held:      d.Held.Neg(),
	}
}

// Chargeback clears held and makes the dispute's available delta permanent
// on total.
func (d DisputeRecord) Chargeback() ChargebackEffect {
	return ChargebackEffect{
		Held:  d.Held.Neg(),
		Total: d.Available,
	}
}

type ResolveEffect struct {
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
}

func (r ResolveEffect) delta() Balances {
	return Balances{Available: r.Available, Held: r.Held, Total: decimal.Zero}
}

type ChargebackEffect struct {
	Held  decimal.Decimal `json:"held"`
	Total decimal.Decimal `json:"total"`
}

func (c ChargebackEffect) delta() Balances {
	return Balances{Available: decimal.Zero, Held: c.Held, Total: c.Total}
}
