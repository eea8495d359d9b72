package config

import (
	"fmt"
)

// CatalogConfig is the raw [catalog] section: compact "ACCOUNT/SUB"
// strings, parsed into a typed Catalog at load time.
type CatalogConfig struct {
	Customers               string `toml:"customers" mapstructure:"customers"`
	CustomerCreditors       string `toml:"customer_creditors" mapstructure:"customer_creditors"`
	VATCollected            string `toml:"vat_collected" mapstructure:"vat_collected"`
	VATPendingCollection    string `toml:"vat_pending_collection" mapstructure:"vat_pending_collection"`
	ExciseCollected         string `toml:"excise_collected" mapstructure:"excise_collected"`
	ExcisePendingCollection string `toml:"excise_pending_collection" mapstructure:"excise_pending_collection"`
	Suppliers               string `toml:"suppliers" mapstructure:"suppliers"`
	VATPaid                 string `toml:"vat_paid" mapstructure:"vat_paid"`
	VATPendingPayment       string `toml:"vat_pending_payment" mapstructure:"vat_pending_payment"`
	VATFavourable           string `toml:"vat_favourable" mapstructure:"vat_favourable"`
	VATWithheldPaid         string `toml:"vat_withheld_paid" mapstructure:"vat_withheld_paid"`
	ExcisePaid              string `toml:"excise_paid" mapstructure:"excise_paid"`
	PayrollPayables         string `toml:"payroll_payables" mapstructure:"payroll_payables"`
	GenericSalary           string `toml:"generic_salary" mapstructure:"generic_salary"`
	RetISRHonoraria         string `toml:"ret_isr_honoraria" mapstructure:"ret_isr_honoraria"`
	RetISRRental            string `toml:"ret_isr_rental" mapstructure:"ret_isr_rental"`
	ISRProvisional          string `toml:"isr_provisional" mapstructure:"isr_provisional"`
	ISRSalaryRetention      string `toml:"isr_salary_retention" mapstructure:"isr_salary_retention"`
	StatePayrollTax         string `toml:"state_payroll_tax" mapstructure:"state_payroll_tax"`
	SSRetention             string `toml:"ss_retention" mapstructure:"ss_retention"`
	SSExpense               string `toml:"ss_expense" mapstructure:"ss_expense"`
	Retirement              string `toml:"retirement" mapstructure:"retirement"`
	HousingFund             string `toml:"housing_fund" mapstructure:"housing_fund"`
	HousingAmort            string `toml:"housing_amort" mapstructure:"housing_amort"`
	JobRisk                 string `toml:"job_risk" mapstructure:"job_risk"`

	// Payroll maps perception/deduction concept codes to refs.
	Payroll map[string]string `toml:"payroll" mapstructure:"payroll"`
}

// Catalog is the typed ledger catalog every processor posts against.
// Read-only after startup.
type Catalog struct {
	Customers               AccountRef
	CustomerCreditors       AccountRef
	VATCollected            AccountRef
	VATPendingCollection    AccountRef
	ExciseCollected         AccountRef
	ExcisePendingCollection AccountRef
	Suppliers               AccountRef
	VATPaid                 AccountRef
	VATPendingPayment       AccountRef
	VATFavourable           AccountRef
	VATWithheldPaid         AccountRef
	ExcisePaid              AccountRef
	PayrollPayables         AccountRef
	GenericSalary           AccountRef
	RetISRHonoraria         AccountRef
	RetISRRental            AccountRef
	ISRProvisional          AccountRef
	ISRSalaryRetention      AccountRef
	StatePayrollTax         AccountRef
	SSRetention             AccountRef
	SSExpense               AccountRef
	Retirement              AccountRef
	HousingFund             AccountRef
	HousingAmort            AccountRef
	JobRisk                 AccountRef

	payrollConcepts map[string]AccountRef
}

// BuildCatalog parses the raw section into typed references. Every entry
// is required; the defaults fill any the file omits.
func BuildCatalog(raw CatalogConfig) (*Catalog, error) {
	cat := &Catalog{payrollConcepts: make(map[string]AccountRef, len(raw.Payroll))}

	entries := []struct {
		key string
		src string
		dst *AccountRef
	}{
		{"customers", raw.Customers, &cat.Customers},
		{"customer_creditors", raw.CustomerCreditors, &cat.CustomerCreditors},
		{"vat_collected", raw.VATCollected, &cat.VATCollected},
		{"vat_pending_collection", raw.VATPendingCollection, &cat.VATPendingCollection},
		{"excise_collected", raw.ExciseCollected, &cat.ExciseCollected},
		{"excise_pending_collection", raw.ExcisePendingCollection, &cat.ExcisePendingCollection},
		{"suppliers", raw.Suppliers, &cat.Suppliers},
		{"vat_paid", raw.VATPaid, &cat.VATPaid},
		{"vat_pending_payment", raw.VATPendingPayment, &cat.VATPendingPayment},
		{"vat_favourable", raw.VATFavourable, &cat.VATFavourable},
		{"vat_withheld_paid", raw.VATWithheldPaid, &cat.VATWithheldPaid},
		{"excise_paid", raw.ExcisePaid, &cat.ExcisePaid},
		{"payroll_payables", raw.PayrollPayables, &cat.PayrollPayables},
		{"generic_salary", raw.GenericSalary, &cat.GenericSalary},
		{"ret_isr_honoraria", raw.RetISRHonoraria, &cat.RetISRHonoraria},
		{"ret_isr_rental", raw.RetISRRental, &cat.RetISRRental},
		{"isr_provisional", raw.ISRProvisional, &cat.ISRProvisional},
		{"isr_salary_retention", raw.ISRSalaryRetention, &cat.ISRSalaryRetention},
		{"state_payroll_tax", raw.StatePayrollTax, &cat.StatePayrollTax},
		{"ss_retention", raw.SSRetention, &cat.SSRetention},
		{"ss_expense", raw.SSExpense, &cat.SSExpense},
		{"retirement", raw.Retirement, &cat.Retirement},
		{"housing_fund", raw.HousingFund, &cat.HousingFund},
		{"housing_amort", raw.HousingAmort, &cat.HousingAmort},
		{"job_risk", raw.JobRisk, &cat.JobRisk},
	}
	for _, e := range entries {
		ref, err := ParseAccountRef(e.src)
		if err != nil {
			return nil, fmt.Errorf("catalog.%s: %w", e.key, err)
		}
		*e.dst = ref
	}

	for code, src := range raw.Payroll {
		ref, err := ParseAccountRef(src)
		if err != nil {
			return nil, fmt.Errorf("catalog.payroll.%s: %w", code, err)
		}
		cat.payrollConcepts[code] = ref
	}

	return cat, nil
}

// PayrollConcept resolves a payroll concept code, falling back to the
// generic salary account for codes the catalog does not know.
func (c *Catalog) PayrollConcept(code string) AccountRef {
	if ref, ok := c.payrollConcepts[code]; ok {
		return ref
	}
	return c.GenericSalary
}

// HasPayrollConcept reports whether the code is explicitly mapped.
func (c *Catalog) HasPayrollConcept(code string) bool {
	_, ok := c.payrollConcepts[code]
	return ok
}
