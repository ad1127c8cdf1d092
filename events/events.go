package events

import (
	"time"

	"github.com/google/uuid"

	"payments-engine/shared"
)

type EventType string

type BaseEvent struct {
	EventID   uuid.UUID       `json:"eventId"`
	ClientID  shared.ClientID `json:"clientId"`
	Tx        shared.TxID     `json:"tx"`
	Sequence  int             `json:"sequence"` // Number of accepted commands on the ledger *after* this event.
	Timestamp time.Time       `json:"timestamp"`
	Type      EventType       `json:"type"`
}

type Event interface {
	GetBase() BaseEvent
}

func (e BaseEvent) GetBase() BaseEvent {
	return e
}

const (
	FundsDepositedType  EventType = "FundsDeposited"
	FundsWithdrawnType  EventType = "FundsWithdrawn"
	DisputeOpenedType   EventType = "DisputeOpened"
	DisputeResolvedType EventType = "DisputeResolved"
	ChargedBackType     EventType = "ChargedBack"
)

func NewBaseEvent(clientID shared.ClientID, tx shared.TxID, sequence int, eventType EventType) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New(),
		ClientID:  clientID,
		Tx:        tx,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
