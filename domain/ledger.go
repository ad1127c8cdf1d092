package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"payments-engine/events"
	"payments-engine/shared"
)

// ClientLedger is the per-client aggregate. It owns the client's balances,
// every accepted posting and the disputes currently open, and enforces the
// business rules for the five command kinds.
//
// A ClientLedger is not safe for concurrent use. The routing layer must
// guarantee a single caller per ledger.
type ClientLedger struct {
	ID shared.ClientID

	balances     Balances
	locked       bool
	halted       bool
	sequence     int
	postings     map[shared.TxID]Posting
	openDisputes map[shared.TxID]DisputeRecord

	lastRejection *DomainError
	changes       []events.Event
}

func NewClientLedger(id shared.ClientID) *ClientLedger {
	return &ClientLedger{
		ID: id,
		balances: Balances{
			Available: decimal.Zero,
			Held:      decimal.Zero,
			Total:     decimal.Zero,
		},
		postings:     make(map[shared.TxID]Posting),
		openDisputes: make(map[shared.TxID]DisputeRecord),
	}
}

// GetUncommittedChanges returns the events recorded for accepted commands
// since the previous call, and clears them.
func (l *ClientLedger) GetUncommittedChanges() []events.Event {
	changes := l.changes
	l.changes = nil
	return changes
}

// LastRejection reports why the most recent Apply call was a no-op, or nil
// if it was accepted.
func (l *ClientLedger) LastRejection() *DomainError {
	return l.lastRejection
}

func (l *ClientLedger) Locked() bool {
	return l.locked
}

func (l *ClientLedger) Halted() bool {
	return l.halted
}

// Apply runs one command against the ledger. Business-rule rejections are
// silent: the ledger is left untouched and Apply returns nil. A non-nil
// error means the ledger itself is defective (ErrInvariantViolation, or
// ErrLedgerHalted for every call after that) and processing must stop.
func (l *ClientLedger) Apply(cmd Command) error {
	if l.halted {
		return fmt.Errorf("%w: client %s", ErrLedgerHalted, l.ID)
	}
	l.lastRejection = nil

	if l.locked {
		l.lastRejection = ErrAccountLocked
		return nil
	}

	var rejection *DomainError
	switch c := cmd.(type) {
	case Deposit:
		rejection = l.handleDeposit(c)
	case Withdrawal:
		rejection = l.handleWithdrawal(c)
	case Dispute:
		rejection = l.handleDispute(c)
	case Resolve:
		rejection = l.handleResolve(c)
	case Chargeback:
		rejection = l.handleChargeback(c)
	default:
		rejection = ErrUnknownCommand
	}

	if rejection != nil {
		l.lastRejection = rejection
		return nil
	}

	return l.checkInvariant(cmd)
}

// --- Command Handlers ---
// Each handler validates its preconditions against the current state and
// either returns a rejection without touching anything, or applies its
// effect and records an event.

func (l *ClientLedger) handleDeposit(c Deposit) *DomainError {
	if !c.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if _, ok := l.postings[c.Tx]; ok {
		return ErrDuplicateTransaction
	}

	posting := newDepositPosting(c.Amount)
	l.balances = l.balances.Add(posting.delta())
	l.postings[c.Tx] = posting

	l.record(events.FundsDepositedEvent{
		BaseEvent: l.nextBase(c.Tx, events.FundsDepositedType),
		Amount:    c.Amount,
	})
	return nil
}

func (l *ClientLedger) handleWithdrawal(c Withdrawal) *DomainError {
	if !c.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if _, ok := l.postings[c.Tx]; ok {
		return ErrDuplicateTransaction
	}

	posting := newWithdrawalPosting(c.Amount)
	// No debt.
	if l.balances.Available.Add(posting.Available).IsNegative() {
		return ErrInsufficientFunds
	}

	l.balances = l.balances.Add(posting.delta())
	l.postings[c.Tx] = posting

	l.record(events.FundsWithdrawnEvent{
		BaseEvent: l.nextBase(c.Tx, events.FundsWithdrawnType),
		Amount:    c.Amount,
	})
	return nil
}

func (l *ClientLedger) handleDispute(c Dispute) *DomainError {
	if _, open := l.openDisputes[c.Tx]; open {
		return ErrDisputeOpen
	}
	posting, ok := l.postings[c.Tx]
	if !ok {
		return ErrUnknownTransaction
	}

	dispute := posting.Dispute()
	// A dispute asks to cancel a posting, so it is denied like a
	// withdrawal would be when it leaves available negative.
	if l.balances.Available.Add(dispute.Available).IsNegative() {
		return ErrWouldCreateDebt
	}

	l.balances = l.balances.Add(dispute.delta())
	l.openDisputes[c.Tx] = dispute

	l.record(events.DisputeOpenedEvent{
		BaseEvent:      l.nextBase(c.Tx, events.DisputeOpenedType),
		AvailableDelta: dispute.Available,
		HeldDelta:      dispute.Held,
	})
	return nil
}

func (l *ClientLedger) handleResolve(c Resolve) *DomainError {
	dispute, ok := l.takeDispute(c.Tx)
	if !ok {
		return ErrNoOpenDispute
	}

	effect := dispute.Resolve()
	l.balances = l.balances.Add(effect.delta())

	l.record(events.DisputeResolvedEvent{
		BaseEvent:      l.nextBase(c.Tx, events.DisputeResolvedType),
		AvailableDelta: effect.Available,
		HeldDelta:      effect.Held,
	})
	return nil
}

func (l *ClientLedger) handleChargeback(c Chargeback) *DomainError {
	dispute, ok := l.takeDispute(c.Tx)
	if !ok {
		return ErrNoOpenDispute
	}

	effect := dispute.Chargeback()
	l.balances = l.balances.Add(effect.delta())
	l.locked = true

	l.record(events.ChargedBackEvent{
		BaseEvent:  l.nextBase(c.Tx, events.ChargedBackType),
		HeldDelta:  effect.Held,
		TotalDelta: effect.Total,
	})
	return nil
}

// takeDispute removes the open dispute for tx and returns it. A dispute
// record can therefore be consumed only once.
func (l *ClientLedger) takeDispute(tx shared.TxID) (DisputeRecord, bool) {
	dispute, ok := l.openDisputes[tx]
	if !ok {
		return DisputeRecord{}, false
	}
	delete(l.openDisputes, tx)
	return dispute, true
}

func (l *ClientLedger) nextBase(tx shared.TxID, eventType events.EventType) events.BaseEvent {
	return events.NewBaseEvent(l.ID, tx, l.sequence+1, eventType)
}

func (l *ClientLedger) record(event events.Event) {
	l.sequence = event.GetBase().Sequence
	l.changes = append(l.changes, event)
}

func (l *ClientLedger) checkInvariant(cmd Command) error {
	if l.balances.Consistent() {
		return nil
	}
	l.halted = true
	return fmt.Errorf("%w: client %s after %s of tx %s (available=%s held=%s total=%s)",
		ErrInvariantViolation, l.ID, cmd.Kind(), cmd.TxID(),
		l.balances.Available.String(), l.balances.Held.String(), l.balances.Total.String())
}
