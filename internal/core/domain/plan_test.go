package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPlanAppendMovementRecordsCounts(t *testing.T) {
	day := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	p := NewPlan(FamilyCardSales, day)

	p.AppendMovement(
		MovementRow{Account: "0441234567", Amount: amt("215370.52"), Direction: DirIn},
		[]InvoiceLinkRow{{Series: "FD", Number: "20204", Applied: amt("215370.52"), Kind: LinkGlobal}},
		[]LedgerLine{
			{Account: "1120", SubAccount: "060000", Side: Debit, Amount: amt("215370.52")},
			{Account: "1210", SubAccount: "010000", Side: Credit, Amount: amt("215370.52")},
		},
	)
	p.AppendMovement(
		MovementRow{Account: "0441234567", Amount: amt("100.00"), Direction: DirIn},
		nil,
		nil,
	)

	assert.Equal(t, []int{1, 0}, p.InvoicesPerMovement)
	assert.Equal(t, []int{2, 0}, p.LinesPerMovement)
	require.NoError(t, p.CheckShape())

	// Slices map back to the right movement.
	assert.Len(t, p.InvoicesFor(0), 1)
	assert.Len(t, p.LinesFor(0), 2)
	assert.Empty(t, p.InvoicesFor(1))
	assert.Empty(t, p.LinesFor(1))
}

func TestPlanDefaultsWhenCountsOmitted(t *testing.T) {
	p := &ExecutionPlan{
		Movements: []MovementRow{{}, {}},
	}

	assert.Equal(t, DefaultInvoicesPerMovement, p.InvoiceCount(0))
	assert.Equal(t, DefaultLinesPerMovement, p.LineCount(1))
}

func TestPlanCheckShapeDetectsDrift(t *testing.T) {
	p := &ExecutionPlan{
		Movements:           []MovementRow{{}},
		InvoicesPerMovement: []int{2},
		LinesPerMovement:    []int{0},
		Invoices:            []InvoiceLinkRow{{Number: "1"}},
	}

	err := p.CheckShape()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice links")
}

func TestPlanCheckBalance(t *testing.T) {
	day := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	balanced := NewPlan(FamilyTransfers, day)
	balanced.AppendMovement(MovementRow{Amount: amt("500000")}, nil, []LedgerLine{
		{Account: "1120", SubAccount: "060000", Side: Debit, Amount: amt("500000")},
		{Account: "1120", SubAccount: "040000", Side: Credit, Amount: amt("500000")},
	})
	assert.NoError(t, balanced.CheckBalance())

	skewed := NewPlan(FamilyTransfers, day)
	skewed.AppendMovement(MovementRow{Amount: amt("500000")}, nil, []LedgerLine{
		{Account: "1120", SubAccount: "060000", Side: Debit, Amount: amt("500000")},
		{Account: "1120", SubAccount: "040000", Side: Credit, Amount: amt("499999.99")},
	})
	err := skewed.CheckBalance()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced")
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		tol  decimal.Decimal
		want bool
	}{
		{"exact", "34.80", "34.80", TolCent, true},
		{"one cent off", "34.80", "34.81", TolCent, true},
		{"two cents off", "34.80", "34.82", TolCent, false},
		{"half dollar match", "1200.00", "1200.50", TolMatch, true},
		{"beyond match", "1200.00", "1200.51", TolMatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithinTolerance(amt(tt.a), amt(tt.b), tt.tol)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMovementRowKey(t *testing.T) {
	row := MovementRow{
		Bank:        "072",
		Account:     "0441234567",
		Date:        time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		Description: "VENTA TARJETA CREDITO",
		Amount:      amt("215370.52"),
		Direction:   DirIn,
	}

	key := row.Key()
	assert.Equal(t, 2026, key.Year)
	assert.Equal(t, 2, key.Month)
	assert.Equal(t, 3, key.Day)
	assert.Equal(t, "072", key.Bank)
	assert.Equal(t, DirIn, key.Direction)
	assert.True(t, key.Amount.Equal(amt("215370.52")))
}

func TestFamilyOf(t *testing.T) {
	f, ok := FamilyOf(KindCardCreditSale)
	assert.True(t, ok)
	assert.Equal(t, FamilyCardSales, f)

	// The in-leg is never dispatched; the out-leg mints both rows.
	_, ok = FamilyOf(KindTransferIn)
	assert.False(t, ok)

	_, ok = FamilyOf(KindUnknown)
	assert.False(t, ok)

	// Every family named in the dispatch order resolves from some kind.
	seen := map[Family]bool{}
	for k := range kindFamilies {
		f, ok := FamilyOf(k)
		require.True(t, ok)
		seen[f] = true
	}
	for _, f := range DispatchOrder {
		assert.True(t, seen[f], "family %s has no kind mapped to it", f)
	}
}

func TestDelayedKinds(t *testing.T) {
	assert.True(t, KindSupplierPayment.Delayed())
	assert.True(t, KindExpensePayment.Delayed())
	assert.False(t, KindCashSale.Delayed())
}

func TestMonthsBackCrossesYearBoundary(t *testing.T) {
	y, m := MonthsBack(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), 2)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.December, m)

	y, m = MonthsBack(time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC), 2)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.March, m)

	y, m = MonthsBack(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 2)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.November, m)
}

func TestPayrollSecondaryMatching(t *testing.T) {
	p := NewPayroll("2026-02-Q1",
		amt("184520.33"), amt("12480.00"), amt("5300.50"), amt("0"),
		nil, nil)

	// Severance was zero, so only two buckets exist.
	require.Len(t, p.Secondaries, 2)

	got := p.MatchSecondary(amt("12480.00"), TolCent)
	require.NotNil(t, got)
	assert.Equal(t, BucketChecks, got.Label)
	assert.True(t, got.Matched)

	// The same bucket is never matched twice.
	assert.Nil(t, p.MatchSecondary(amt("12480.00"), TolCent))

	got = p.MatchSecondary(amt("5300.49"), TolCent)
	require.NotNil(t, got)
	assert.Equal(t, BucketVacations, got.Label)

	p.ResetMatches()
	assert.NotNil(t, p.MatchSecondary(amt("12480.00"), TolCent))
}

func TestDailyCloseHelpers(t *testing.T) {
	closes := []DailyClose{
		{Date: time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC), CardTotal: amt("50000")},
		{Date: time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC), CardTotal: amt("250000")},
		{Date: time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC), CardTotal: amt("200000")},
	}

	c := CloseByDate(closes, time.Date(2026, 2, 7, 12, 30, 0, 0, time.UTC))
	require.NotNil(t, c)
	assert.True(t, c.CardTotal.Equal(amt("200000")))

	assert.Nil(t, CloseByDate(closes, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)))

	window := ClosesInWindow(closes,
		time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC))
	require.Len(t, window, 3)
	assert.True(t, window[0].Date.Before(window[1].Date))
	assert.True(t, window[1].Date.Before(window[2].Date))
}

func TestCountByAction(t *testing.T) {
	results := []LineResult{
		{Action: ActionInsert},
		{Action: ActionInsert},
		{Action: ActionSkip},
		{Action: ActionUnknown},
	}

	counts := CountByAction(results)
	assert.Equal(t, 2, counts[ActionInsert])
	assert.Equal(t, 1, counts[ActionSkip])
	assert.Equal(t, 1, counts[ActionUnknown])
	assert.Equal(t, 0, counts[ActionError])
}
