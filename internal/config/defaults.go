package config

import (
	"github.com/spf13/viper"
)

// setDefaults installs default values before the file and environment are
// read. The catalog defaults are the production chart of accounts; a site
// file only overrides what differs.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Database defaults. Development runs on the sqlite candidate alone;
	// production files declare the full sqlserver/postgres/sqlite chain.
	v.SetDefault("database.drivers", []string{"sqlite"})
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 1433)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.connect_timeout_seconds", 10)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.legacy_encoding", true)
	v.SetDefault("database.sqlite_path", "reconbank.db")

	// Company constants
	v.SetDefault("company.code", "01")
	v.SetDefault("company.office", "001")
	v.SetDefault("company.branch", "MATRIZ")
	v.SetDefault("company.source", "BANK-MVMT")
	v.SetDefault("company.created_by", "RECONBANK")
	v.SetDefault("company.currency", "MXN")
	v.SetDefault("company.fx", 1)

	// Job policy
	v.SetDefault("job.mode", "dry-run")
	v.SetDefault("job.max_window_days", 7)
	v.SetDefault("job.month_edge_days", 4)

	// Tolerances
	v.SetDefault("tolerances.cents", "0.01")
	v.SetDefault("tolerances.match", "0.50")
	v.SetDefault("tolerances.validate", "1.00")
	v.SetDefault("tolerances.reconcile_days", 2)

	// Job directories
	v.SetDefault("paths.incoming", "data/incoming")
	v.SetDefault("paths.processed", "data/processed")
	v.SetDefault("paths.error", "data/error")
	v.SetDefault("paths.logs", "data/logs")
	v.SetDefault("paths.reports", "data/reports")

	// Ledger catalog
	v.SetDefault("catalog.customers", "1210/010000")
	v.SetDefault("catalog.customer_creditors", "2160/010000")
	v.SetDefault("catalog.vat_collected", "2150/010000")
	v.SetDefault("catalog.vat_pending_collection", "2150/020000")
	v.SetDefault("catalog.excise_collected", "2151/010000")
	v.SetDefault("catalog.excise_pending_collection", "2151/020000")
	v.SetDefault("catalog.suppliers", "2120/010000")
	v.SetDefault("catalog.vat_paid", "1240/010000")
	v.SetDefault("catalog.vat_pending_payment", "1240/020000")
	v.SetDefault("catalog.vat_favourable", "1240/030000")
	v.SetDefault("catalog.vat_withheld_paid", "2145/010000")
	v.SetDefault("catalog.excise_paid", "1241/010000")
	v.SetDefault("catalog.payroll_payables", "2130/010000")
	v.SetDefault("catalog.generic_salary", "6100/010000")
	v.SetDefault("catalog.ret_isr_honoraria", "2140/020000")
	v.SetDefault("catalog.ret_isr_rental", "2140/030000")
	v.SetDefault("catalog.isr_provisional", "1160/010000")
	v.SetDefault("catalog.isr_salary_retention", "2140/040000")
	v.SetDefault("catalog.state_payroll_tax", "6300/020000")
	v.SetDefault("catalog.ss_retention", "2140/010000")
	v.SetDefault("catalog.ss_expense", "6200/070000")
	v.SetDefault("catalog.retirement", "6200/080000")
	v.SetDefault("catalog.housing_fund", "6200/090000")
	v.SetDefault("catalog.housing_amort", "2140/050000")
	v.SetDefault("catalog.job_risk", "6200/100000")

	// Payroll concept accounts
	v.SetDefault("catalog.payroll", map[string]string{
		"SALARY":           "6100/010000",
		"SEVENTH_DAY":      "6100/020000",
		"SUNDAY_PREMIUM":   "6100/030000",
		"VACATIONS":        "6100/040000",
		"VACATION_PREMIUM": "6100/050000",
		"BONUS":            "6100/060000",
		"OVERTIME":         "6100/070000",
		"ISR":              "2140/040000",
		"IMSS":             "2140/010000",
		"INFONAVIT":        "2140/050000",
	})
}
