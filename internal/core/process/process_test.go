package process

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

// fakeStore answers the processors' read-only queries from in-memory
// fixtures, mirroring the gateway's miss conventions (nil, nil).
type fakeStore struct {
	taxes         map[string][2]decimal.Decimal // "series/number" → vat, excise
	unreconciled  []storedMovement
	apInvoices    []gateway.APInvoiceRef
	arInvoices    []gateway.ARInvoiceRef
	ledgerCredits map[string]decimal.Decimal // "account/sub/year-month"
}

type storedMovement struct {
	folio     int64
	account   string
	date      time.Time
	amount    decimal.Decimal
	direction domain.Direction
	class     string
	concept   string
}

func (s *fakeStore) InvoiceTaxBreakdown(_ context.Context, series, number string) (decimal.Decimal, decimal.Decimal, error) {
	if t, ok := s.taxes[series+"/"+number]; ok {
		return t[0], t[1], nil
	}
	return domain.Zero, domain.Zero, gateway.ErrInvoiceNotFound
}

func (s *fakeStore) SearchUnreconciled(_ context.Context, f gateway.SearchFilter) (*gateway.FoundMovement, error) {
	for _, m := range s.unreconciled {
		if m.account != f.Account {
			continue
		}
		gap := int(m.date.Sub(f.Date).Hours() / 24)
		if gap < -f.DayWindow || gap > f.DayWindow {
			continue
		}
		if !domain.WithinTolerance(m.amount, f.Amount, f.Tolerance) {
			continue
		}
		if f.Direction != 0 && m.direction != f.Direction {
			continue
		}
		if f.Class != "" && m.class != f.Class {
			continue
		}
		if f.ConceptLike != "" && !strings.Contains(strings.ToUpper(m.concept), strings.ToUpper(f.ConceptLike)) {
			continue
		}
		found := gateway.FoundMovement{Folio: m.folio, Date: m.date, Description: m.concept, Amount: m.amount}
		return &found, nil
	}
	return nil, nil
}

func (s *fakeStore) UnpaidAPInvoiceByAmount(_ context.Context, amount, tol decimal.Decimal) (*gateway.APInvoiceRef, error) {
	for i := range s.apInvoices {
		inv := s.apInvoices[i]
		if inv.Balance.GreaterThan(domain.Zero) && domain.WithinTolerance(inv.Total, amount, tol) {
			return &inv, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindARInvoiceByNumber(_ context.Context, number string) (*gateway.ARInvoiceRef, error) {
	for i := range s.arInvoices {
		if s.arInvoices[i].Number == number {
			inv := s.arInvoices[i]
			return &inv, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) PendingARInvoiceByAmount(_ context.Context, amount, tol decimal.Decimal) (*gateway.ARInvoiceRef, error) {
	for i := range s.arInvoices {
		inv := s.arInvoices[i]
		if inv.Balance.GreaterThan(domain.Zero) && domain.WithinTolerance(inv.Total, amount, tol) {
			return &inv, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) MonthlyLedgerCredits(_ context.Context, account, sub string, year int, month time.Month) (decimal.Decimal, error) {
	if v, ok := s.ledgerCredits[balanceKey(account, sub, year, month)]; ok {
		return v, nil
	}
	return domain.Zero, gateway.ErrBalanceNotFound
}

func balanceKey(account, sub string, year int, month time.Month) string {
	return fmt.Sprintf("%s/%s/%d-%02d", account, sub, year, int(month))
}

// Test accounts: CASH posts to 1120/040000, CARD to 1120/060000, matching
// the ledger references asserted throughout.
const (
	cashAccount    = "0154321001"
	cardAccount    = "0154321002"
	expenseAccount = "0154321003"
	pettyAccount   = "CAJA-01"
)

func newTestDeps(t *testing.T, store Store) Deps {
	t.Helper()
	reg, err := config.NewRegistry([]config.BankAccount{
		{Number: cashAccount, Institution: "BMX", Name: "Operating", Role: config.RoleCash, LedgerAccount: "1120", LedgerSub: "040000"},
		{Number: cardAccount, Institution: "BMX", Name: "Card settlements", Role: config.RoleCard, LedgerAccount: "1120", LedgerSub: "060000"},
		{Number: expenseAccount, Institution: "BMX", Name: "Expense card", Role: config.RoleExpense, LedgerAccount: "1120", LedgerSub: "080000"},
		{Number: pettyAccount, Institution: "INT", Name: "Petty cash", Role: config.RolePettyCash, LedgerAccount: "1110", LedgerSub: "010000"},
	})
	require.NoError(t, err)

	cat, err := config.BuildCatalog(testCatalogConfig())
	require.NoError(t, err)

	return Deps{Registry: reg, Catalog: cat, Tol: config.TolerancesConfig{}, Store: store}
}

func testCatalogConfig() config.CatalogConfig {
	return config.CatalogConfig{
		Customers:               "1210/000000",
		CustomerCreditors:       "2120/000000",
		VATCollected:            "2150/010000",
		VATPendingCollection:    "2150/020000",
		ExciseCollected:         "2160/010000",
		ExcisePendingCollection: "2160/020000",
		Suppliers:               "2110/000000",
		VATPaid:                 "1240/010000",
		VATPendingPayment:       "1240/020000",
		VATFavourable:           "1245/000000",
		VATWithheldPaid:         "2155/000000",
		ExcisePaid:              "1250/000000",
		PayrollPayables:         "2130/000000",
		GenericSalary:           "6100/010000",
		RetISRHonoraria:         "2140/020000",
		RetISRRental:            "2140/030000",
		ISRProvisional:          "1260/000000",
		ISRSalaryRetention:      "2140/040000",
		StatePayrollTax:         "6300/010000",
		SSRetention:             "2140/010000",
		SSExpense:               "6200/070000",
		Retirement:              "6200/080000",
		HousingFund:             "6200/090000",
		HousingAmort:            "2140/050000",
		JobRisk:                 "6200/100000",
		Payroll: map[string]string{
			"P001": "6100/010000",
			"P010": "6100/020000",
			"D001": "2140/040000",
			"D002": "2140/010000",
		},
	}
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func stmtLine(idx int, kind domain.ProcessKind, account string, date time.Time, amount string, dir domain.Direction) domain.BankMovement {
	return domain.BankMovement{
		Index:       idx,
		Bank:        "BMX",
		Account:     account,
		Date:        date,
		Description: fmt.Sprintf("LINE %d", idx),
		Amount:      amt(amount),
		Direction:   dir,
		Kind:        kind,
	}
}

// sideTotals sums one movement's ledger slice per side.
func sideTotals(t *testing.T, plan *domain.ExecutionPlan, i int) (dr, cr decimal.Decimal) {
	t.Helper()
	lines := plan.LinesFor(i)
	require.NotNil(t, lines)
	return domain.BalanceOf(lines)
}
