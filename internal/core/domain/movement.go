package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankMovement is one bank-statement line after mojibake normalization
// and classification. Immutable once classified.
type BankMovement struct {
	// Index is the line's position within the parsed statement. Every
	// downstream effect is attributed back to it.
	Index int

	// Sheet is the worksheet the line came from.
	Sheet string

	// Bank is the institution code resolved from the account registry.
	Bank string

	// Account is the bank-account number, the key into the registry.
	Account string

	Date        time.Time
	Description string

	// Amount is always positive; Direction tells which statement column
	// carried it. A line never has both columns nonzero.
	Amount    decimal.Decimal
	Direction Direction

	// Kind is attached by the classifier.
	Kind ProcessKind

	// DestAccount is the destination account captured from the
	// description of an INTERNAL_TRANSFER_OUT line.
	DestAccount string
}

// MovementKey is the natural key for idempotent movement lookups:
// same bank, account, calendar day, description and amount on the same
// side means the same movement.
type MovementKey struct {
	Bank        string
	Account     string
	Year        int
	Month       int
	Day         int
	Description string
	Amount      decimal.Decimal
	Direction   Direction
}

// MovementRef is a previously inserted row found by key lookup.
type MovementRef struct {
	Folio      int
	Reconciled bool
}

// MovementRow is one row bound for the movement header table. Folio and
// ledger number are assigned by the executor at insert time; constant
// legacy columns (currency, company, office) are supplied by the gateway.
type MovementRow struct {
	// SourceIndex is the statement line this row settles.
	SourceIndex int

	// Covers lists additional statement lines settled by this row
	// (aggregated movements such as the daily fee roll-up).
	Covers []int

	Bank    string
	Account string
	Date    time.Time

	Amount    decimal.Decimal
	Direction Direction

	Description   string
	Class         string
	PaymentMethod string
	SubKind       string
	LedgerKind    LedgerKind
	DocType       string
	Reconciled    bool
	Counterparty  string
	InvoiceRef    string
}

// Key derives the natural lookup key for the row.
func (m MovementRow) Key() MovementKey {
	return MovementKey{
		Bank:        m.Bank,
		Account:     m.Account,
		Year:        m.Date.Year(),
		Month:       int(m.Date.Month()),
		Day:         m.Date.Day(),
		Description: m.Description,
		Amount:      m.Amount,
		Direction:   m.Direction,
	}
}

// Invoice-link kinds: the daily catch-all invoice versus an itemised one.
type LinkKind string

const (
	LinkGlobal     LinkKind = "GLOBAL"
	LinkIndividual LinkKind = "INDIVIDUAL"
)

// InvoiceLinkRow links a minted movement to a sales invoice. InvoiceDate
// is the close's business date; the executor falls back to the movement
// date when it is zero.
type InvoiceLinkRow struct {
	Series      string
	Number      string
	Applied     decimal.Decimal
	Kind        LinkKind
	InvoiceDate time.Time
}

// LedgerLine is one side of a ledger entry. Account and SubAccount use
// the ERP's segmented numbering ("1120", "060000").
type LedgerLine struct {
	Account    string
	SubAccount string
	Side       Side
	Amount     decimal.Decimal
	Concept    string
}

// APInvoiceRow is a purchase invoice fabricated on the fly, header plus a
// single line (bank-fee provider invoices).
type APInvoiceRow struct {
	Supplier  string
	Reference string
	Base      decimal.Decimal
	VAT       decimal.Decimal
	Total     decimal.Decimal
}

// Reconciliation flips the reconciled flag on an existing movement
// instead of minting a new one.
type Reconciliation struct {
	SourceIndex int
	Folio       int
	Note        string
}

// APSettlement applies a paid amount against an open payable. The
// executor writes the payment, the payment link, and the balance update.
type APSettlement struct {
	MovementIndex int
	InvoiceID     int64
	Supplier      string
	Amount        decimal.Decimal
}

// ARCollectionRow records a customer payment against a receivable.
type ARCollectionRow struct {
	MovementIndex int
	InvoiceID     int64
	Customer      string
	Series        string
	Number        string
	Amount        decimal.Decimal
}
