package domain

import (
	"github.com/shopspring/decimal"
)

// PayrollConcept is one perception or deduction total from the payroll
// workbook. Code keys the ledger catalog; Name feeds the line narrative.
type PayrollConcept struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// PayrollSecondary is a payout bucket settled by cashed checks rather
// than the dispersion wire. Matched is the one piece of cross-plan
// mutable state in the engine; it is reset per job.
type PayrollSecondary struct {
	Label   string
	Amount  decimal.Decimal
	Matched bool
}

// Secondary bucket labels.
const (
	BucketChecks    = "CHECKS"
	BucketVacations = "VACATIONS"
	BucketSeverance = "SEVERANCE"
)

// Payroll is the parsed payroll workbook for one pay period.
type Payroll struct {
	Period      string
	Dispersion  decimal.Decimal
	Checks      decimal.Decimal
	Vacations   decimal.Decimal
	Severance   decimal.Decimal
	Perceptions []PayrollConcept
	Deductions  []PayrollConcept
	Secondaries []PayrollSecondary
}

// NewPayroll builds a payroll with the secondary buckets derived from the
// three non-dispersion totals. Zero buckets are omitted.
func NewPayroll(period string, dispersion, checks, vacations, severance decimal.Decimal, perceptions, deductions []PayrollConcept) *Payroll {
	p := &Payroll{
		Period:      period,
		Dispersion:  dispersion,
		Checks:      checks,
		Vacations:   vacations,
		Severance:   severance,
		Perceptions: perceptions,
		Deductions:  deductions,
	}
	for _, b := range []struct {
		label  string
		amount decimal.Decimal
	}{
		{BucketChecks, checks},
		{BucketVacations, vacations},
		{BucketSeverance, severance},
	} {
		if b.amount.IsZero() {
			continue
		}
		p.Secondaries = append(p.Secondaries, PayrollSecondary{Label: b.label, Amount: b.amount})
	}
	return p
}

// MatchSecondary claims the first unmatched bucket within tol of amount
// and returns it, or nil when no bucket fits.
func (p *Payroll) MatchSecondary(amount, tol decimal.Decimal) *PayrollSecondary {
	for i := range p.Secondaries {
		s := &p.Secondaries[i]
		if s.Matched {
			continue
		}
		if WithinTolerance(s.Amount, amount, tol) {
			s.Matched = true
			return s
		}
	}
	return nil
}

// ResetMatches clears every bucket's matched flag. Called once per job so
// a fresh dispatch never sees a previous run's consumption.
func (p *Payroll) ResetMatches() {
	for i := range p.Secondaries {
		p.Secondaries[i].Matched = false
	}
}

// SecondariesTotal sums the payout buckets not wired with the dispersion.
func (p *Payroll) SecondariesTotal() decimal.Decimal {
	return p.Checks.Add(p.Vacations).Add(p.Severance)
}

// PerceptionsTotal sums every perception concept.
func (p *Payroll) PerceptionsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Perceptions {
		total = total.Add(c.Amount)
	}
	return total
}

// DeductionsTotal sums every deduction concept.
func (p *Payroll) DeductionsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Deductions {
		total = total.Add(c.Amount)
	}
	return total
}
