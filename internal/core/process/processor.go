// Package process holds the per-family plan builders. Each processor
// takes one day's statement lines of its family plus whatever side-channel
// data it needs and returns a declarative ExecutionPlan. Processors read
// the database but never write; all mutation happens in the executor.
package process

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

// Store is the read-only slice of the gateway a processor may touch.
type Store interface {
	InvoiceTaxBreakdown(ctx context.Context, series, number string) (vat, excise decimal.Decimal, err error)
	SearchUnreconciled(ctx context.Context, f gateway.SearchFilter) (*gateway.FoundMovement, error)
	UnpaidAPInvoiceByAmount(ctx context.Context, amount, tol decimal.Decimal) (*gateway.APInvoiceRef, error)
	FindARInvoiceByNumber(ctx context.Context, number string) (*gateway.ARInvoiceRef, error)
	PendingARInvoiceByAmount(ctx context.Context, amount, tol decimal.Decimal) (*gateway.ARInvoiceRef, error)
	MonthlyLedgerCredits(ctx context.Context, account, subAccount string, year int, month time.Month) (decimal.Decimal, error)
}

// Deps are the read-only collaborators shared by every processor.
type Deps struct {
	Registry *config.Registry
	Catalog  *config.Catalog
	Tol      config.TolerancesConfig
	Store    Store
	Log      logrus.FieldLogger
}

func (d Deps) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// Input is the slate a processor sees for one day: its family's statement
// lines plus the side-channel data loaded for the job.
type Input struct {
	Date      time.Time
	Movements []domain.BankMovement

	// Closes are all treasury closes of the period (sales processors).
	Closes []domain.DailyClose

	// DepositDates are the card-deposit dates present in the statement,
	// ascending; the deposit assigner derives its look-back window from
	// the gap to the previous date.
	DepositDates []time.Time

	// Payroll is the parsed payroll spreadsheet, nil when absent.
	Payroll *domain.Payroll

	// Taxes is the parsed tax-PDF bundle, nil when absent.
	Taxes *domain.TaxBundle
}

// Processor builds one family's plan for a day.
type Processor interface {
	Family() domain.Family
	BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error)
}

// emptyPlan is the shared empty-slate answer: an empty plan carrying
// exactly one warning.
func emptyPlan(family domain.Family, date time.Time) *domain.ExecutionPlan {
	plan := domain.NewPlan(family, date)
	plan.Warnf("no %s movements for %s", family, date.Format("2006-01-02"))
	return plan
}

// legacyDate renders a date the way the ERP concepts spell it.
func legacyDate(d time.Time) string {
	return d.Format("02/01/2006")
}

// previousDepositDate returns the latest deposit date strictly before d,
// or nil when d opens the run.
func previousDepositDate(dates []time.Time, d time.Time) *time.Time {
	var prev *time.Time
	for i := range dates {
		if dates[i].Before(d) && (prev == nil || dates[i].After(*prev)) {
			p := dates[i]
			prev = &p
		}
	}
	return prev
}

// validateAmount attaches a validation string when got strays from want
// beyond tol. Validations are informational; processing continues.
func validateAmount(plan *domain.ExecutionPlan, label string, got, want, tol decimal.Decimal) {
	if got.Sub(want).Abs().GreaterThan(tol) {
		plan.Validatef("%s: statement %s vs expected %s (diff %s)",
			label, domain.FormatAmount(got), domain.FormatAmount(want),
			domain.FormatAmount(got.Sub(want).Abs()))
	}
}
