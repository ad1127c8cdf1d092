package domain

import (
	"github.com/shopspring/decimal"
)

// MinFractionDigits is the number of fractional digits always rendered in
// reports. Amounts carrying more precision are printed in full.
const MinFractionDigits = 4

// FormatAmount renders d exactly, padded to at least MinFractionDigits
// fractional digits. It never rounds.
func FormatAmount(d decimal.Decimal) string {
	places := int32(MinFractionDigits)
	if exp := d.Exponent(); exp < 0 && -exp > places {
		places = -exp
	}
	return d.StringFixed(places)
}

// Balances is the (available, held, total) triple of a ledger. All changes
// to it go through Add so that every mutation is a signed delta.
type Balances struct {
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
}

func (b Balances) Add(delta Balances) Balances {
	return Balances{
		Available: b.Available.Add(delta.Available),
		Held:      b.Held.Add(delta.Held),
		Total:     b.Total.Add(delta.Total),
	}
}

// Consistent reports whether total == available + held, exactly.
func (b Balances) Consistent() bool {
	return b.Total.Equal(b.Available.Add(b.Held))
}
