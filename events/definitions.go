package events

import (
	"github.com/shopspring/decimal"
)

type FundsDepositedEvent struct {
	BaseEvent
	Amount decimal.Decimal `json:"amount"`
}

type FundsWithdrawnEvent struct {
	BaseEvent
	Amount decimal.Decimal `json:"amount"`
}

// DisputeOpenedEvent carries the signed deltas moved between available and held.
type DisputeOpenedEvent struct {
	BaseEvent
	AvailableDelta decimal.Decimal `json:"availableDelta"`
	HeldDelta      decimal.Decimal `json:"heldDelta"`
}

type DisputeResolvedEvent struct {
	BaseEvent
	AvailableDelta decimal.Decimal `json:"availableDelta"`
	HeldDelta      decimal.Decimal `json:"heldDelta"`
}

type ChargedBackEvent struct {
	BaseEvent
	HeldDelta  decimal.Decimal `json:"heldDelta"`
	TotalDelta decimal.Decimal `json:"totalDelta"`
}
