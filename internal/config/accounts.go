package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// Account roles. The classifier binds account-dependent kinds to these.
const (
	RoleCash      = "CASH"
	RoleCard      = "CARD"
	RoleExpense   = "EXPENSE"
	RolePettyCash = "PETTY_CASH"
)

// BankAccount is one [[accounts]] entry: a bank account the statement
// loader and classifier know about, with its ledger mapping.
type BankAccount struct {
	// Number is the account number as printed on the statement.
	Number string `toml:"number" mapstructure:"number"`

	// Institution is the bank code stamped on movement rows.
	Institution string `toml:"institution" mapstructure:"institution"`

	Name string `toml:"name" mapstructure:"name"`

	// Role is one of CASH, CARD, EXPENSE, PETTY_CASH.
	Role string `toml:"role" mapstructure:"role"`

	// Sheet maps the statement worksheet carrying this account's lines.
	Sheet string `toml:"sheet" mapstructure:"sheet"`

	LedgerAccount string `toml:"ledger_account" mapstructure:"ledger_account"`
	LedgerSub     string `toml:"ledger_subaccount" mapstructure:"ledger_subaccount"`
}

// Ref returns the account's ledger reference.
func (a BankAccount) Ref() AccountRef {
	return AccountRef{Account: a.LedgerAccount, Sub: a.LedgerSub}
}

// AccountRef is a ledger (account, sub-account) pair from the catalog.
type AccountRef struct {
	Account string
	Sub     string
}

// Line builds a ledger line on this reference.
func (r AccountRef) Line(side domain.Side, amount decimal.Decimal, concept string) domain.LedgerLine {
	return domain.LedgerLine{
		Account:    r.Account,
		SubAccount: r.Sub,
		Side:       side,
		Amount:     amount,
		Concept:    concept,
	}
}

// IsZero reports whether the reference was never configured.
func (r AccountRef) IsZero() bool {
	return r.Account == "" && r.Sub == ""
}

func (r AccountRef) String() string {
	return r.Account + "/" + r.Sub
}

// ParseAccountRef parses the catalog's compact "1120/040000" form.
func ParseAccountRef(s string) (AccountRef, error) {
	if s == "" {
		return AccountRef{}, fmt.Errorf("empty account reference")
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i == 0 || i == len(s)-1 {
				break
			}
			return AccountRef{Account: s[:i], Sub: s[i+1:]}, nil
		}
	}
	return AccountRef{}, fmt.Errorf("account reference %q: want ACCOUNT/SUBACCOUNT", s)
}

// Registry resolves bank accounts by number and by role. Read-only after
// startup; safe to share.
type Registry struct {
	byNumber map[string]*BankAccount
	byRole   map[string]*BankAccount
	bySheet  map[string]*BankAccount
	accounts []BankAccount
}

// NewRegistry indexes the configured accounts. Duplicate numbers are
// rejected; duplicate roles keep the first entry.
func NewRegistry(accounts []BankAccount) (*Registry, error) {
	r := &Registry{
		byNumber: make(map[string]*BankAccount, len(accounts)),
		byRole:   make(map[string]*BankAccount, len(accounts)),
		bySheet:  make(map[string]*BankAccount, len(accounts)),
		accounts: accounts,
	}
	for i := range r.accounts {
		a := &r.accounts[i]
		if a.Number == "" {
			return nil, fmt.Errorf("account %q has no number", a.Name)
		}
		if _, dup := r.byNumber[a.Number]; dup {
			return nil, fmt.Errorf("duplicate account number %s", a.Number)
		}
		r.byNumber[a.Number] = a
		if _, taken := r.byRole[a.Role]; !taken {
			r.byRole[a.Role] = a
		}
		if a.Sheet != "" {
			if _, dup := r.bySheet[a.Sheet]; dup {
				return nil, fmt.Errorf("worksheet %q mapped to more than one account", a.Sheet)
			}
			r.bySheet[a.Sheet] = a
		}
	}
	return r, nil
}

// ByNumber resolves an account by its statement number.
func (r *Registry) ByNumber(number string) (*BankAccount, bool) {
	a, ok := r.byNumber[number]
	return a, ok
}

// BySheet resolves the account whose statement lines a worksheet carries.
func (r *Registry) BySheet(sheet string) (*BankAccount, bool) {
	a, ok := r.bySheet[sheet]
	return a, ok
}

// ByRole resolves the first account configured with the role.
func (r *Registry) ByRole(role string) (*BankAccount, bool) {
	a, ok := r.byRole[role]
	return a, ok
}

// Cash returns the CASH account; panics are avoided, validation
// guarantees presence at load time.
func (r *Registry) Cash() *BankAccount {
	a := r.byRole[RoleCash]
	return a
}

// Card returns the CARD account.
func (r *Registry) Card() *BankAccount {
	a := r.byRole[RoleCard]
	return a
}

// Expense returns the EXPENSE account, or nil when not configured.
func (r *Registry) Expense() *BankAccount {
	return r.byRole[RoleExpense]
}

// PettyCash returns the petty-cash pseudo-account, or nil.
func (r *Registry) PettyCash() *BankAccount {
	return r.byRole[RolePettyCash]
}

// All returns every configured account in declaration order.
func (r *Registry) All() []BankAccount {
	return r.accounts
}
