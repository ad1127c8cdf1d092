package domain_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payments-engine/domain"
	"payments-engine/events"
	"payments-engine/shared"
)

// Helper to create decimals in tests, panics on error
func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func run(t *testing.T, cmds ...domain.Command) *domain.ClientLedger {
	t.Helper()
	l := domain.NewClientLedger(1)
	for _, cmd := range cmds {
		require.NoError(t, l.Apply(cmd))
	}
	return l
}

func assertSnapshot(t *testing.T, got domain.Snapshot, available, held, total string, locked bool) {
	t.Helper()
	assert.Truef(t, got.Available.Equal(dec(available)), "available: expected %s, got %s", available, got.Available)
	assert.Truef(t, got.Held.Equal(dec(held)), "held: expected %s, got %s", held, got.Held)
	assert.Truef(t, got.Total.Equal(dec(total)), "total: expected %s, got %s", total, got.Total)
	assert.Equal(t, locked, got.Locked, "locked")
}

func assertSameBalances(t *testing.T, want, got domain.Balances) {
	t.Helper()
	assert.Truef(t, want.Available.Equal(got.Available), "available: expected %s, got %s", want.Available, got.Available)
	assert.Truef(t, want.Held.Equal(got.Held), "held: expected %s, got %s", want.Held, got.Held)
	assert.Truef(t, want.Total.Equal(got.Total), "total: expected %s, got %s", want.Total, got.Total)
}

func TestClientLedger_NewClientLedger(t *testing.T) {
	l := domain.NewClientLedger(42)
	snap := l.Snapshot()

	assert.Equal(t, shared.ClientID(42), snap.Client)
	assertSnapshot(t, snap, "0", "0", "0", false)
	assert.Empty(t, l.GetUncommittedChanges())
	assert.Nil(t, l.LastRejection())
}

func TestClientLedger_Scenarios(t *testing.T) {
	deposit1 := domain.Deposit{Tx: 1, Amount: dec("3.0")}
	withdraw2 := domain.Withdrawal{Tx: 2, Amount: dec("2.0")}

	tests := []struct {
		name      string
		cmds      []domain.Command
		available string
		held      string
		total     string
		locked    bool
	}{
		{
			name:      "DepositThenWithdraw",
			cmds:      []domain.Command{deposit1, withdraw2},
			available: "1.0", held: "0", total: "1.0",
		},
		{
			name:      "WithdrawalExceedingAvailableIsRejected",
			cmds:      []domain.Command{deposit1, domain.Withdrawal{Tx: 2, Amount: dec("4.0")}},
			available: "3.0", held: "0", total: "3.0",
		},
		{
			name:      "DisputeThatWouldCreateDebtIsRejected",
			cmds:      []domain.Command{deposit1, withdraw2, domain.Dispute{Tx: 1}},
			available: "1.0", held: "0", total: "1.0",
		},
		{
			name:      "DisputeOfWithdrawal",
			cmds:      []domain.Command{deposit1, withdraw2, domain.Dispute{Tx: 2}},
			available: "3.0", held: "-2.0", total: "1.0",
		},
		{
			name:      "ResolveOfDisputedWithdrawal",
			cmds:      []domain.Command{deposit1, withdraw2, domain.Dispute{Tx: 2}, domain.Resolve{Tx: 2}},
			available: "1.0", held: "0", total: "1.0",
		},
		{
			name:      "ChargebackOfDisputedWithdrawal",
			cmds:      []domain.Command{deposit1, withdraw2, domain.Dispute{Tx: 2}, domain.Chargeback{Tx: 2}},
			available: "3.0", held: "0", total: "3.0", locked: true,
		},
		{
			name:      "DisputeOfDeposit",
			cmds:      []domain.Command{deposit1, domain.Dispute{Tx: 1}},
			available: "0", held: "3.0", total: "3.0",
		},
		{
			name:      "ChargebackOfDisputedDeposit",
			cmds:      []domain.Command{deposit1, domain.Deposit{Tx: 2, Amount: dec("1.5")}, domain.Dispute{Tx: 1}, domain.Chargeback{Tx: 1}},
			available: "1.5", held: "0", total: "1.5", locked: true,
		},
		{
			name:      "WithdrawExactlyAvailable",
			cmds:      []domain.Command{deposit1, domain.Withdrawal{Tx: 2, Amount: dec("3")}},
			available: "0", held: "0", total: "0",
		},
		{
			name:      "FourDecimalPlacesStayExact",
			cmds:      []domain.Command{domain.Deposit{Tx: 1, Amount: dec("0.1")}, domain.Deposit{Tx: 2, Amount: dec("0.2")}, domain.Withdrawal{Tx: 3, Amount: dec("0.0003")}},
			available: "0.2997", held: "0", total: "0.2997",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := run(t, tc.cmds...)
			assertSnapshot(t, l.Snapshot(), tc.available, tc.held, tc.total, tc.locked)
		})
	}
}

func TestClientLedger_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup []domain.Command
		cmd   domain.Command
		want  *domain.DomainError
	}{
		{"InsufficientFunds", nil, domain.Withdrawal{Tx: 1, Amount: dec("1")}, domain.ErrInsufficientFunds},
		{"ZeroDeposit", nil, domain.Deposit{Tx: 1, Amount: decimal.Zero}, domain.ErrNonPositiveAmount},
		{"NegativeDeposit", nil, domain.Deposit{Tx: 1, Amount: dec("-5")}, domain.ErrNonPositiveAmount},
		{"NegativeWithdrawal", []domain.Command{domain.Deposit{Tx: 1, Amount: dec("5")}}, domain.Withdrawal{Tx: 2, Amount: dec("-1")}, domain.ErrNonPositiveAmount},
		{"DuplicateDeposit", []domain.Command{domain.Deposit{Tx: 1, Amount: dec("5")}}, domain.Deposit{Tx: 1, Amount: dec("5")}, domain.ErrDuplicateTransaction},
		{"DisputeUnknownTx", nil, domain.Dispute{Tx: 9}, domain.ErrUnknownTransaction},
		{"DisputeTwice", []domain.Command{domain.Deposit{Tx: 1, Amount: dec("5")}, domain.Dispute{Tx: 1}}, domain.Dispute{Tx: 1}, domain.ErrDisputeOpen},
		{"ResolveWithoutDispute", []domain.Command{domain.Deposit{Tx: 1, Amount: dec("5")}}, domain.Resolve{Tx: 1}, domain.ErrNoOpenDispute},
		{"ChargebackWithoutDispute", []domain.Command{domain.Deposit{Tx: 1, Amount: dec("5")}}, domain.Chargeback{Tx: 1}, domain.ErrNoOpenDispute},
		{"DisputeCreatingDebt", []domain.Command{domain.Deposit{Tx: 1, Amount: dec("3")}, domain.Withdrawal{Tx: 2, Amount: dec("2")}}, domain.Dispute{Tx: 1}, domain.ErrWouldCreateDebt},
		{"NilCommand", nil, nil, domain.ErrUnknownCommand},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := run(t, tc.setup...)
			before := l.Snapshot()
			l.GetUncommittedChanges()

			require.NoError(t, l.Apply(tc.cmd), "rejections must not surface as errors")
			assert.Same(t, tc.want, l.LastRejection())
			assert.Equal(t, before, l.Snapshot())
			assert.Empty(t, l.GetUncommittedChanges(), "rejected command must not record events")
		})
	}
}

func TestClientLedger_LockedLedgerIgnoresCommands(t *testing.T) {
	l := run(t,
		domain.Deposit{Tx: 1, Amount: dec("10")},
		domain.Deposit{Tx: 2, Amount: dec("5")},
		domain.Dispute{Tx: 2},
		domain.Chargeback{Tx: 2},
	)
	locked := l.Snapshot()
	require.True(t, locked.Locked)
	assertSnapshot(t, locked, "10", "0", "10", true)
	l.GetUncommittedChanges()

	followUps := []domain.Command{
		domain.Deposit{Tx: 3, Amount: dec("1")},
		domain.Withdrawal{Tx: 4, Amount: dec("1")},
		domain.Dispute{Tx: 1},
		domain.Resolve{Tx: 1},
		domain.Chargeback{Tx: 1},
	}
	for _, cmd := range followUps {
		require.NoError(t, l.Apply(cmd))
		assert.Same(t, domain.ErrAccountLocked, l.LastRejection())
		assert.Equal(t, locked, l.Snapshot())
	}
	assert.Empty(t, l.GetUncommittedChanges())
}

func TestClientLedger_DisputeResolveRoundTrip(t *testing.T) {
	t.Run("Deposit", func(t *testing.T) {
		l := run(t, domain.Deposit{Tx: 1, Amount: dec("7.25")}, domain.Deposit{Tx: 2, Amount: dec("1")})
		before := l.Snapshot()

		require.NoError(t, l.Apply(domain.Dispute{Tx: 1}))
		assertSnapshot(t, l.Snapshot(), "1", "7.25", "8.25", false)
		require.NoError(t, l.Apply(domain.Resolve{Tx: 1}))

		assertSameBalances(t, before.Balances(), l.Snapshot().Balances())
	})

	t.Run("Withdrawal", func(t *testing.T) {
		l := run(t, domain.Deposit{Tx: 1, Amount: dec("3")}, domain.Withdrawal{Tx: 2, Amount: dec("2")})
		before := l.Snapshot()

		require.NoError(t, l.Apply(domain.Dispute{Tx: 2}))
		require.NoError(t, l.Apply(domain.Resolve{Tx: 2}))

		assertSameBalances(t, before.Balances(), l.Snapshot().Balances())
		assert.False(t, l.Snapshot().Locked)
	})
}

func TestClientLedger_RedisputeAfterResolve(t *testing.T) {
	l := run(t, domain.Deposit{Tx: 1, Amount: dec("4")})

	require.NoError(t, l.Apply(domain.Dispute{Tx: 1}))
	first := l.Snapshot()
	require.NoError(t, l.Apply(domain.Resolve{Tx: 1}))
	require.NoError(t, l.Apply(domain.Dispute{Tx: 1}))

	assert.Nil(t, l.LastRejection())
	assertSameBalances(t, first.Balances(), l.Snapshot().Balances())

	// Consumed once: a second resolve after the first one is a no-op.
	require.NoError(t, l.Apply(domain.Resolve{Tx: 1}))
	require.NoError(t, l.Apply(domain.Resolve{Tx: 1}))
	assert.Same(t, domain.ErrNoOpenDispute, l.LastRejection())
	assertSnapshot(t, l.Snapshot(), "4", "0", "4", false)
}

func TestClientLedger_Events(t *testing.T) {
	l := domain.NewClientLedger(7)
	require.NoError(t, l.Apply(domain.Deposit{Tx: 1, Amount: dec("3")}))
	require.NoError(t, l.Apply(domain.Withdrawal{Tx: 2, Amount: dec("2")}))
	require.NoError(t, l.Apply(domain.Withdrawal{Tx: 3, Amount: dec("50")})) // rejected
	require.NoError(t, l.Apply(domain.Dispute{Tx: 2}))
	require.NoError(t, l.Apply(domain.Chargeback{Tx: 2}))

	changes := l.GetUncommittedChanges()
	require.Len(t, changes, 4)

	wantTypes := []events.EventType{
		events.FundsDepositedType,
		events.FundsWithdrawnType,
		events.DisputeOpenedType,
		events.ChargedBackType,
	}
	for i, ev := range changes {
		base := ev.GetBase()
		assert.Equal(t, wantTypes[i], base.Type)
		assert.Equal(t, i+1, base.Sequence)
		assert.Equal(t, shared.ClientID(7), base.ClientID)
	}

	opened, ok := changes[2].(events.DisputeOpenedEvent)
	require.True(t, ok, "expected DisputeOpenedEvent, got %T", changes[2])
	assert.True(t, opened.AvailableDelta.Equal(dec("2")))
	assert.True(t, opened.HeldDelta.Equal(dec("-2")))

	charged, ok := changes[3].(events.ChargedBackEvent)
	require.True(t, ok, "expected ChargedBackEvent, got %T", changes[3])
	assert.True(t, charged.HeldDelta.Equal(dec("2")))
	assert.True(t, charged.TotalDelta.Equal(dec("2")))

	assert.Empty(t, l.GetUncommittedChanges())
}

func TestClientLedger_InvariantViolation(t *testing.T) {
	snap := run(t, domain.Deposit{Tx: 1, Amount: dec("5")}).Snapshot()
	snap.Total = snap.Total.Add(dec("0.0001"))
	l := domain.ApplySnapshot(snap)

	err := l.Apply(domain.Deposit{Tx: 2, Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.True(t, l.Halted())

	err = l.Apply(domain.Deposit{Tx: 3, Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrLedgerHalted)

	// Reads still work after the halt.
	snap = l.Snapshot()
	assert.True(t, snap.Total.Equal(dec("6.0001")))
}

func TestApplySnapshot(t *testing.T) {
	original := run(t,
		domain.Deposit{Tx: 1, Amount: dec("3")},
		domain.Dispute{Tx: 1},
		domain.Chargeback{Tx: 1},
		domain.Deposit{Tx: 2, Amount: dec("1")},
	)
	require.True(t, original.Locked())

	restored := domain.ApplySnapshot(original.Snapshot())
	assert.Equal(t, original.ID, restored.ID)
	assert.True(t, restored.Locked())
	assertSameBalances(t, original.Snapshot().Balances(), restored.Snapshot().Balances())

	require.NoError(t, restored.Apply(domain.Deposit{Tx: 3, Amount: dec("1")}))
	assert.Same(t, domain.ErrAccountLocked, restored.LastRejection())
}

func TestClientLedger_GetUncommittedChangesDoesNotAllocateWhenEmpty(t *testing.T) {
	l := run(t, domain.Deposit{Tx: 1, Amount: dec("1")})
	require.Len(t, l.GetUncommittedChanges(), 1)

	allocs := testing.AllocsPerRun(100, func() {
		_ = l.GetUncommittedChanges()
	})
	assert.Zero(t, allocs)
}

// Random command streams must keep total == available + held after every
// call, and never leave available negative after an accepted withdrawal or
// dispute.
func TestClientLedger_RandomStreamsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(20240601))
	amounts := []string{"0.0001", "0.5", "1", "2.25", "10", "99.9999"}

	for stream := 0; stream < 200; stream++ {
		l := domain.NewClientLedger(shared.ClientID(stream))
		nextTx := shared.TxID(1)

		for step := 0; step < 60; step++ {
			var cmd domain.Command
			amount := dec(amounts[rng.Intn(len(amounts))])
			ref := shared.TxID(rng.Intn(int(nextTx)) + 1)

			switch rng.Intn(5) {
			case 0:
				cmd = domain.Deposit{Tx: nextTx, Amount: amount}
				nextTx++
			case 1:
				cmd = domain.Withdrawal{Tx: nextTx, Amount: amount}
				nextTx++
			case 2:
				cmd = domain.Dispute{Tx: ref}
			case 3:
				cmd = domain.Resolve{Tx: ref}
			default:
				if rng.Intn(4) == 0 {
					cmd = domain.Chargeback{Tx: ref}
				} else {
					cmd = domain.Dispute{Tx: ref}
				}
			}

			before := l.Snapshot()
			require.NoError(t, l.Apply(cmd))
			after := l.Snapshot()

			require.Truef(t, after.Balances().Consistent(), "stream %d step %d: %+v", stream, step, after)

			if before.Locked {
				require.Equal(t, before, after)
				continue
			}
			if l.LastRejection() != nil {
				require.Equal(t, before, after)
				continue
			}
			switch cmd.(type) {
			case domain.Withdrawal, domain.Dispute:
				require.Falsef(t, after.Available.IsNegative(), "stream %d step %d: available went negative", stream, step)
			}
		}
	}
}
