// Package domain provides the value types shared across the engine:
// classified bank movements, treasury closes, payroll and tax summaries,
// and the plan primitives consumed by the executor.
package domain

import (
	"github.com/shopspring/decimal"
)

// VATRate is the value-added-tax rate used when a fee VAT is recomputed
// from an aggregated base instead of summing the bank's per-line rows.
var VATRate = decimal.New(16, -2)

// Tolerances for amount comparison. Money is decimal end to end; equality
// is never tested directly, always |a-b| <= tol.
var (
	// TolCent accepts one cent of rounding drift (exact-sum matching).
	TolCent = decimal.New(1, -2)

	// TolMatch is the widest gap allowed when pairing a bank amount with
	// an invoice or payroll bucket.
	TolMatch = decimal.New(50, -2)

	// TolValidate flags day-level aggregate mismatches in validations.
	TolValidate = decimal.New(1, 0)
)

// Zero is the zero amount.
var Zero = decimal.Zero

// WithinTolerance reports whether a and b differ by at most tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(tol) <= 0
}

// Round2 rounds an amount to two fractional digits, half away from zero,
// matching how the ERP stores money columns.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatAmount renders an amount with exactly two decimals for notes,
// validations and report cells.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// SumAmounts adds a list of amounts.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
