package domain

import (
	"github.com/shopspring/decimal"

	"payments-engine/shared"
)

// Snapshot is a read-only view of a ledger's balances at one point in time.
type Snapshot struct {
	Client    shared.ClientID `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
	Locked    bool            `json:"locked"`
}

// Snapshot is a pure read. It stays valid after the ledger is locked or
// halted.
func (l *ClientLedger) Snapshot() Snapshot {
	return Snapshot{
		Client:    l.ID,
		Available: l.balances.Available,
		Held:      l.balances.Held,
		Total:     l.balances.Total,
		Locked:    l.locked,
	}
}

// ApplySnapshot rebuilds a ledger from a snapshot. The restored ledger has
// no postings, so it cannot be disputed against until new deposits arrive.
// The balances are taken as given: a snapshot that breaks
// total == available + held halts the ledger on its next accepted command.
func ApplySnapshot(snap Snapshot) *ClientLedger {
	l := NewClientLedger(snap.Client)
	l.balances = snap.Balances()
	l.locked = snap.Locked
	return l
}

// Balances returns the snapshot's amounts as a Balances triple.
func (s Snapshot) Balances() Balances {
	return Balances{Available: s.Available, Held: s.Held, Total: s.Total}
}

// Record renders the snapshot as the report row
// client,available,held,total,locked.
func (s Snapshot) Record() []string {
	locked := "false"
	if s.Locked {
		locked = "true"
	}
	return []string{
		s.Client.String(),
		FormatAmount(s.Available),
		FormatAmount(s.Held),
		FormatAmount(s.Total),
		locked,
	}
}
