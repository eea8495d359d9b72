// Package config loads and validates the engine configuration: database
// connection, company constants, bank-account registry, ledger catalog,
// tolerances and job paths.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// Config is the root configuration, assembled by LoadConfig.
type Config struct {
	Environment string `toml:"environment" mapstructure:"environment"`

	Database   DatabaseConfig   `toml:"database" mapstructure:"database"`
	Company    CompanyConfig    `toml:"company" mapstructure:"company"`
	Job        JobConfig        `toml:"job" mapstructure:"job"`
	Tolerances TolerancesConfig `toml:"tolerances" mapstructure:"tolerances"`
	Paths      PathsConfig      `toml:"paths" mapstructure:"paths"`

	// Accounts is the raw [[accounts]] list; use Registry for lookups.
	Accounts []BankAccount `toml:"accounts" mapstructure:"accounts"`

	// CatalogRaw is the raw [catalog] section; use Catalog for typed refs.
	CatalogRaw CatalogConfig `toml:"catalog" mapstructure:"catalog"`

	registry *Registry
	catalog  *Catalog

	configPath string
}

// DatabaseConfig represents the [database] section. Credentials normally
// arrive through the environment (RECONBANK_DATABASE_USER / _PASSWORD).
type DatabaseConfig struct {
	// Drivers lists candidate drivers in preference order; the gateway
	// tries each until one connects.
	Drivers []string `toml:"drivers" mapstructure:"drivers"`

	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	Name     string `toml:"name" mapstructure:"name"`
	User     string `toml:"user" mapstructure:"user"`
	Password string `toml:"password" mapstructure:"password"`

	// SQLitePath backs the "sqlite" candidate (local runs and CI).
	SQLitePath string `toml:"sqlite_path" mapstructure:"sqlite_path"`

	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds" mapstructure:"connect_timeout_seconds"`
	MaxOpenConns          int `toml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns          int `toml:"max_idle_conns" mapstructure:"max_idle_conns"`

	// LegacyEncoding decodes text columns as Windows-1252 (the ERP
	// predates Unicode collation).
	LegacyEncoding bool `toml:"legacy_encoding" mapstructure:"legacy_encoding"`
}

// ConnectTimeout returns the per-attempt connection timeout.
func (d DatabaseConfig) ConnectTimeout() time.Duration {
	if d.ConnectTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(d.ConnectTimeoutSeconds) * time.Second
}

// GetMaxOpenConns returns the pool ceiling with default.
func (d DatabaseConfig) GetMaxOpenConns() int {
	if d.MaxOpenConns <= 0 {
		return 4
	}
	return d.MaxOpenConns
}

// GetMaxIdleConns returns the idle pool size with default.
func (d DatabaseConfig) GetMaxIdleConns() int {
	if d.MaxIdleConns <= 0 {
		return 2
	}
	return d.MaxIdleConns
}

// CompanyConfig represents the [company] section: the constant legacy
// columns stamped on every row the engine writes.
type CompanyConfig struct {
	Code      string `toml:"code" mapstructure:"code"`
	Office    string `toml:"office" mapstructure:"office"`
	Branch    string `toml:"branch" mapstructure:"branch"`
	Source    string `toml:"source" mapstructure:"source"`
	CreatedBy string `toml:"created_by" mapstructure:"created_by"`
	Currency  string `toml:"currency" mapstructure:"currency"`
	FX        int    `toml:"fx" mapstructure:"fx"`
}

// JobConfig represents the [job] section.
type JobConfig struct {
	// Mode is "dry-run" or "commit".
	Mode string `toml:"mode" mapstructure:"mode"`

	// MaxWindowDays caps the [from, to] period a single job may cover.
	MaxWindowDays int `toml:"max_window_days" mapstructure:"max_window_days"`

	// MonthEdgeDays force-skips cash-sale deposits this close to a month
	// boundary; cross-month alignment is handled manually.
	MonthEdgeDays int `toml:"month_edge_days" mapstructure:"month_edge_days"`
}

// GetMaxWindowDays returns the window cap with default.
func (j JobConfig) GetMaxWindowDays() int {
	if j.MaxWindowDays <= 0 {
		return 7
	}
	return j.MaxWindowDays
}

// GetMonthEdgeDays returns the month-edge width with default.
func (j JobConfig) GetMonthEdgeDays() int {
	if j.MonthEdgeDays <= 0 {
		return 4
	}
	return j.MonthEdgeDays
}

// DryRun reports whether plans are built but never executed.
func (j JobConfig) DryRun() bool {
	return j.Mode != "commit"
}

// TolerancesConfig represents the [tolerances] section. Amount fields are
// decimal strings; never floats.
type TolerancesConfig struct {
	Cents    string `toml:"cents" mapstructure:"cents"`
	Match    string `toml:"match" mapstructure:"match"`
	Validate string `toml:"validate" mapstructure:"validate"`

	// ReconcileDays is the ± date window for supplier-payment matching.
	ReconcileDays int `toml:"reconcile_days" mapstructure:"reconcile_days"`
}

// CentsTol returns the exact-sum tolerance.
func (t TolerancesConfig) CentsTol() decimal.Decimal {
	return parseTol(t.Cents, domain.TolCent)
}

// MatchTol returns the fuzzy amount-pairing tolerance.
func (t TolerancesConfig) MatchTol() decimal.Decimal {
	return parseTol(t.Match, domain.TolMatch)
}

// ValidateTol returns the aggregate-validation tolerance.
func (t TolerancesConfig) ValidateTol() decimal.Decimal {
	return parseTol(t.Validate, domain.TolValidate)
}

// GetReconcileDays returns the reconciliation window with default.
func (t TolerancesConfig) GetReconcileDays() int {
	if t.ReconcileDays <= 0 {
		return 2
	}
	return t.ReconcileDays
}

func parseTol(s string, fallback decimal.Decimal) decimal.Decimal {
	if s == "" {
		return fallback
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	return d
}

// PathsConfig represents the [paths] section: job-scoped directories.
type PathsConfig struct {
	Incoming  string `toml:"incoming" mapstructure:"incoming"`
	Processed string `toml:"processed" mapstructure:"processed"`
	Error     string `toml:"error" mapstructure:"error"`
	Logs      string `toml:"logs" mapstructure:"logs"`
	Reports   string `toml:"reports" mapstructure:"reports"`
}

// Registry returns the bank-account registry built at load time.
func (c *Config) Registry() *Registry {
	return c.registry
}

// Catalog returns the typed ledger catalog built at load time.
func (c *Config) Catalog() *Catalog {
	return c.catalog
}

// GetConfigPath returns the path the configuration was loaded from.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// IsProduction reports whether the engine points at the production ERP.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// String renders a redacted one-line summary for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("env=%s db=%s@%s:%d/%s accounts=%d mode=%s",
		c.Environment, c.Database.User, c.Database.Host, c.Database.Port,
		c.Database.Name, len(c.Accounts), c.Job.Mode)
}
