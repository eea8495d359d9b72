package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfidenceFull means the PDF parse matched the expected layout exactly.
// Tax processors refuse to build plans below full confidence.
const ConfidenceFull = 100

// RetentionReturn is the federal retentions+excise acknowledgement.
type RetentionReturn struct {
	Period       time.Time
	ISRHonoraria decimal.Decimal
	ISRRental    decimal.Decimal
	ExciseGross  decimal.Decimal
	ExciseNet    decimal.Decimal

	// Total is the amount actually paid; it is what the bank line shows.
	Total decimal.Decimal
}

// MainReturn is the federal income-tax+VAT acknowledgement.
type MainReturn struct {
	Period         time.Time
	ISRProvisional decimal.Decimal
	ISRSalary      decimal.Decimal

	// VATCollected and VATPaid are gross figures; the net position is
	// derived at plan-build time.
	VATCollected decimal.Decimal
	VATPaid      decimal.Decimal

	Total decimal.Decimal
}

// SupplierRetention is one per-supplier VAT retention payment listed on
// the federal acknowledgement.
type SupplierRetention struct {
	Supplier string
	RFC      string
	Amount   decimal.Decimal
}

// FederalTax is the parsed federal filing bundle for one period.
type FederalTax struct {
	Confidence int
	Retentions *RetentionReturn
	Main       *MainReturn
	Suppliers  []SupplierRetention
}

// StateTax is the parsed state payroll-tax payment slip.
type StateTax struct {
	Confidence int
	Period     time.Time
	Total      decimal.Decimal
}

// SSTax is the parsed social-security SUA summary. Monthly payments carry
// only the total; bimonthly ones add the retirement and housing figures.
type SSTax struct {
	Confidence int
	Period     time.Time
	Bimonthly  bool
	Total      decimal.Decimal

	// Retirement is the RCV contribution (bimonthly only).
	Retirement decimal.Decimal

	// HousingFund is the employer 5 % contribution, already the sum of
	// the two sub-totals printed on the summary.
	HousingFund decimal.Decimal

	// HousingAmort is the employee credit amortization withheld.
	HousingAmort decimal.Decimal

	// JobRisk is the workplace-risk insurance premium.
	JobRisk decimal.Decimal
}

// TaxBundle carries every parsed tax document available to one job.
type TaxBundle struct {
	Federal *FederalTax
	State   *StateTax
	Social  *SSTax
}

// MonthsBack returns the calendar month m months before date, rolling
// the year back when the subtraction crosses a boundary. The day of
// month is discarded.
func MonthsBack(date time.Time, m int) (year int, month time.Month) {
	y := date.Year()
	mo := int(date.Month()) - m
	for mo < 1 {
		mo += 12
		y--
	}
	return y, time.Month(mo)
}
