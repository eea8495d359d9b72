package process

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/core/tdc"
)

// CrossChecks compares one dispatch date's statement totals against the
// treasury closes and the payroll workbook. Findings are informational
// strings attached to the job; a discrepancy never stops the run. Checks
// whose side-channel source is absent are skipped, not reported.
func CrossChecks(date time.Time, lines []domain.BankMovement, closes []domain.DailyClose, depositDates []time.Time, payroll *domain.Payroll, tol decimal.Decimal) []string {
	var out []string
	for _, check := range []string{
		cardCrossCheck(date, lines, closes, depositDates, tol),
		cashCrossCheck(date, lines, closes, tol),
		payrollCrossCheck(date, lines, payroll, tol),
	} {
		if check != "" {
			out = append(out, check)
		}
	}
	return out
}

// cardCrossCheck compares the day's card deposits against the card totals
// of the closes its look-back window covers.
func cardCrossCheck(date time.Time, lines []domain.BankMovement, closes []domain.DailyClose, depositDates []time.Time, tol decimal.Decimal) string {
	got := sumByKind(lines, domain.DirIn, domain.KindCardCreditSale, domain.KindCardDebitSale)
	if got.IsZero() || len(closes) == 0 {
		return ""
	}
	w := tdc.WindowForDeposit(date, previousDepositDate(depositDates, date))
	want := decimal.Zero
	covered := domain.ClosesInWindow(closes, w.From, w.To)
	if len(covered) == 0 {
		return ""
	}
	for _, c := range covered {
		want = want.Add(c.CardTotal)
	}
	if got.Sub(want).Abs().LessThanOrEqual(tol) {
		return ""
	}
	return fmt.Sprintf("card deposits %s on %s vs close card total %s for %s..%s (diff %s)",
		domain.FormatAmount(got), date.Format("2006-01-02"),
		domain.FormatAmount(want), w.From.Format("2006-01-02"), w.To.Format("2006-01-02"),
		domain.FormatAmount(got.Sub(want).Abs()))
}

// cashCrossCheck compares the day's cash deposits against the cash total
// of the close they settle: the previous day's, falling back to the
// deposit day's own.
func cashCrossCheck(date time.Time, lines []domain.BankMovement, closes []domain.DailyClose, tol decimal.Decimal) string {
	got := sumByKind(lines, domain.DirIn, domain.KindCashSale)
	if got.IsZero() {
		return ""
	}
	cl := domain.CloseByDate(closes, date.AddDate(0, 0, -1))
	if cl == nil {
		cl = domain.CloseByDate(closes, date)
	}
	if cl == nil {
		return ""
	}
	if got.Sub(cl.CashTotal).Abs().LessThanOrEqual(tol) {
		return ""
	}
	return fmt.Sprintf("cash deposits %s on %s vs close cash total %s of %s (diff %s)",
		domain.FormatAmount(got), date.Format("2006-01-02"),
		domain.FormatAmount(cl.CashTotal), cl.Date.Format("2006-01-02"),
		domain.FormatAmount(got.Sub(cl.CashTotal).Abs()))
}

// payrollCrossCheck compares the day's payroll wire against the parsed
// workbook's dispersion total.
func payrollCrossCheck(date time.Time, lines []domain.BankMovement, payroll *domain.Payroll, tol decimal.Decimal) string {
	if payroll == nil {
		return ""
	}
	got := sumByKind(lines, domain.DirOut, domain.KindPayroll)
	if got.IsZero() {
		return ""
	}
	if got.Sub(payroll.Dispersion).Abs().LessThanOrEqual(tol) {
		return ""
	}
	return fmt.Sprintf("payroll wire %s on %s vs workbook dispersion %s for period %s (diff %s)",
		domain.FormatAmount(got), date.Format("2006-01-02"),
		domain.FormatAmount(payroll.Dispersion), payroll.Period,
		domain.FormatAmount(got.Sub(payroll.Dispersion).Abs()))
}

func sumByKind(lines []domain.BankMovement, dir domain.Direction, kinds ...domain.ProcessKind) decimal.Decimal {
	total := decimal.Zero
	for _, mv := range lines {
		if mv.Direction != dir {
			continue
		}
		for _, k := range kinds {
			if mv.Kind == k {
				total = total.Add(mv.Amount)
				break
			}
		}
	}
	return total
}
