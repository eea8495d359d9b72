package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

func TestFeesAggregateWireCharges(t *testing.T) {
	p := NewFees(newTestDeps(t, &fakeStore{}))

	d := day(2026, time.February, 2)
	var movements []domain.BankMovement
	for i := 0; i < 5; i++ {
		movements = append(movements, stmtLine(i, domain.KindFeeWire, cashAccount, d, "6.00", domain.DirOut))
	}
	for i := 5; i < 10; i++ {
		movements = append(movements, stmtLine(i, domain.KindFeeWireVAT, cashAccount, d, "0.96", domain.DirOut))
	}

	plan, err := p.BuildPlan(context.Background(), Input{Date: d, Movements: movements})
	require.NoError(t, err)
	require.NoError(t, plan.CheckShape())
	require.NoError(t, plan.CheckBalance())

	require.Len(t, plan.Movements, 1, "ten statement lines collapse into one expense")
	mv := plan.Movements[0]
	require.Equal(t, 0, mv.SourceIndex)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, mv.Covers)
	require.True(t, mv.Amount.Equal(amt("34.80")), "base 30.00 plus 16%% VAT, got %s", mv.Amount)
	require.Equal(t, domain.DirOut, mv.Direction)
	require.Equal(t, domain.ClassFees, mv.Class)
	require.Equal(t, "COMISIONES BANCARIAS 02/02/2026", mv.Description)
	require.Equal(t, "02022026", mv.InvoiceRef)
	require.Equal(t, "BMX", mv.Counterparty)

	require.Len(t, plan.APInvoices, 1)
	inv := plan.APInvoices[0]
	require.Equal(t, "BMX", inv.Supplier)
	require.Equal(t, "02022026", inv.Reference)
	require.True(t, inv.Base.Equal(amt("30.00")))
	require.True(t, inv.VAT.Equal(amt("4.80")))
	require.True(t, inv.Total.Equal(amt("34.80")))

	require.Equal(t, []int{4}, plan.LinesPerMovement)
	lines := plan.LinesFor(0)
	require.Equal(t, "2110", lines[0].Account, "payable debit")
	require.Equal(t, domain.Debit, lines[0].Side)
	require.True(t, lines[0].Amount.Equal(amt("34.80")))
	require.Equal(t, "1240", lines[1].Account)
	require.Equal(t, "020000", lines[1].SubAccount, "VAT leaves pending-payment")
	require.Equal(t, domain.Credit, lines[1].Side)
	require.Equal(t, "1240", lines[2].Account)
	require.Equal(t, "010000", lines[2].SubAccount, "and lands on VAT-paid")
	require.Equal(t, domain.Debit, lines[2].Side)
	require.Equal(t, "1120", lines[3].Account)
	require.Equal(t, domain.Credit, lines[3].Side)
	require.True(t, lines[3].Amount.Equal(amt("34.80")))

	require.Empty(t, plan.Validations, "statement VAT matches 16%% of the base")
}

func TestFeesFlagVATDrift(t *testing.T) {
	p := NewFees(newTestDeps(t, &fakeStore{}))

	d := day(2026, time.February, 2)
	movements := []domain.BankMovement{
		stmtLine(0, domain.KindFeeCard, cashAccount, d, "30.00", domain.DirOut),
		stmtLine(1, domain.KindFeeCardVAT, cashAccount, d, "4.85", domain.DirOut),
	}

	plan, err := p.BuildPlan(context.Background(), Input{Date: d, Movements: movements})
	require.NoError(t, err)
	require.Len(t, plan.Movements, 1)
	require.True(t, plan.Movements[0].Amount.Equal(amt("34.80")),
		"the recomputed VAT wins over the statement rows")
	require.Len(t, plan.Validations, 1)
	require.Contains(t, plan.Validations[0], "fee VAT on "+cashAccount)
}

func TestFeesGroupPerAccount(t *testing.T) {
	p := NewFees(newTestDeps(t, &fakeStore{}))

	d := day(2026, time.February, 2)
	movements := []domain.BankMovement{
		stmtLine(0, domain.KindFeeWire, cashAccount, d, "6.00", domain.DirOut),
		stmtLine(1, domain.KindFeeCard, cardAccount, d, "100.00", domain.DirOut),
		stmtLine(2, domain.KindFeeWireVAT, cashAccount, d, "0.96", domain.DirOut),
		stmtLine(3, domain.KindFeeCardVAT, cardAccount, d, "16.00", domain.DirOut),
	}

	plan, err := p.BuildPlan(context.Background(), Input{Date: d, Movements: movements})
	require.NoError(t, err)
	require.NoError(t, plan.CheckBalance())

	require.Len(t, plan.Movements, 2, "one expense per account, in first-seen order")
	require.Equal(t, cashAccount, plan.Movements[0].Account)
	require.Equal(t, []int{2}, plan.Movements[0].Covers)
	require.True(t, plan.Movements[0].Amount.Equal(amt("6.96")))
	require.Equal(t, cardAccount, plan.Movements[1].Account)
	require.Equal(t, []int{3}, plan.Movements[1].Covers)
	require.True(t, plan.Movements[1].Amount.Equal(amt("116.00")))
	require.Len(t, plan.APInvoices, 2)
}

func TestFeesUnknownAccountFlagsWholeGroup(t *testing.T) {
	p := NewFees(newTestDeps(t, &fakeStore{}))

	d := day(2026, time.February, 2)
	movements := []domain.BankMovement{
		stmtLine(0, domain.KindFeeWire, "0000000000", d, "6.00", domain.DirOut),
		stmtLine(1, domain.KindFeeWireVAT, "0000000000", d, "0.96", domain.DirOut),
	}

	plan, err := p.BuildPlan(context.Background(), Input{Date: d, Movements: movements})
	require.NoError(t, err)
	require.Empty(t, plan.Movements)
	require.Len(t, plan.Outcomes, 2, "the first line and every covered line")
	for _, o := range plan.Outcomes {
		require.Equal(t, domain.ActionNeedsReview, o.Action)
	}
}
