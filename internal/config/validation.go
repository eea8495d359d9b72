package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var knownDrivers = map[string]bool{
	"sqlserver": true,
	"postgres":  true,
	"sqlite":    true,
}

var knownRoles = map[string]bool{
	RoleCash:      true,
	RoleCard:      true,
	RoleExpense:   true,
	RolePettyCash: true,
}

// ValidateConfig checks the complete configuration for consistency.
func ValidateConfig(config *Config) error {
	if err := validateDatabase(&config.Database); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := validateCompany(&config.Company); err != nil {
		return fmt.Errorf("company: %w", err)
	}
	if err := validateJob(&config.Job); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	if err := validateTolerances(&config.Tolerances); err != nil {
		return fmt.Errorf("tolerances: %w", err)
	}
	if err := validateAccounts(config.Accounts); err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	return nil
}

func validateDatabase(db *DatabaseConfig) error {
	if len(db.Drivers) == 0 {
		return fmt.Errorf("at least one driver candidate is required")
	}
	for _, d := range db.Drivers {
		if !knownDrivers[d] {
			return fmt.Errorf("unknown driver %q (valid options: sqlserver, postgres, sqlite)", d)
		}
	}
	needsServer := false
	for _, d := range db.Drivers {
		if d == "sqlserver" || d == "postgres" {
			needsServer = true
		}
	}
	if needsServer {
		if db.Host == "" {
			return fmt.Errorf("host is required for sqlserver/postgres candidates")
		}
		if db.Port <= 0 || db.Port > 65535 {
			return fmt.Errorf("invalid port %d", db.Port)
		}
		if db.Name == "" {
			return fmt.Errorf("database name is required")
		}
	}
	return nil
}

func validateCompany(c *CompanyConfig) error {
	if c.Code == "" {
		return fmt.Errorf("code is required")
	}
	if c.Source == "" {
		return fmt.Errorf("source is required (the ledger-number stream key)")
	}
	if c.CreatedBy == "" {
		return fmt.Errorf("created_by is required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", c.Currency)
	}
	return nil
}

func validateJob(j *JobConfig) error {
	if j.Mode != "dry-run" && j.Mode != "commit" {
		return fmt.Errorf("mode must be dry-run or commit, got %q", j.Mode)
	}
	if j.MaxWindowDays < 0 || j.MaxWindowDays > 31 {
		return fmt.Errorf("max_window_days out of range: %d", j.MaxWindowDays)
	}
	if j.MonthEdgeDays < 0 || j.MonthEdgeDays > 10 {
		return fmt.Errorf("month_edge_days out of range: %d", j.MonthEdgeDays)
	}
	return nil
}

func validateTolerances(t *TolerancesConfig) error {
	for key, s := range map[string]string{
		"cents":    t.Cents,
		"match":    t.Match,
		"validate": t.Validate,
	} {
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("%s is not a decimal: %q", key, s)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must be non-negative, got %s", key, s)
		}
	}
	if t.ReconcileDays < 0 || t.ReconcileDays > 14 {
		return fmt.Errorf("reconcile_days out of range: %d", t.ReconcileDays)
	}
	return nil
}

func validateAccounts(accounts []BankAccount) error {
	roles := map[string]int{}
	for _, a := range accounts {
		if !knownRoles[a.Role] {
			return fmt.Errorf("account %s: unknown role %q", a.Number, a.Role)
		}
		if a.Institution == "" {
			return fmt.Errorf("account %s: institution is required", a.Number)
		}
		if a.LedgerAccount == "" || a.LedgerSub == "" {
			return fmt.Errorf("account %s: ledger mapping is required", a.Number)
		}
		roles[a.Role]++
	}
	// An empty registry is allowed for utility commands that never touch
	// the DB; the job runner re-checks the roles it needs.
	if len(accounts) > 0 {
		if roles[RoleCash] == 0 {
			return fmt.Errorf("no account with role CASH")
		}
		if roles[RoleCard] == 0 {
			return fmt.Errorf("no account with role CARD")
		}
	}
	return nil
}
