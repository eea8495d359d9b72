package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Counts assumed by the executor when a plan omits per-movement counts.
// Legacy card-sale plans relied on these.
const (
	DefaultInvoicesPerMovement = 1
	DefaultLinesPerMovement    = 6
)

// ExecutionPlan is the declarative bundle a processor hands the executor:
// movement rows to mint, flat lists of invoice links and ledger lines
// sliced per movement by the count arrays, fabricated AP invoices, AP/AR
// side effects, and reconciliation flags for rows that already exist.
// Plans are plain data; the executor never calls back into a processor.
type ExecutionPlan struct {
	Family Family
	Date   time.Time

	Movements           []MovementRow
	InvoicesPerMovement []int
	LinesPerMovement    []int
	Invoices            []InvoiceLinkRow
	Lines               []LedgerLine
	APInvoices          []APInvoiceRow
	Settlements         []APSettlement
	Collections         []ARCollectionRow
	Reconciliations     []Reconciliation

	// Outcomes pre-assign terminal actions to statement lines that
	// produce no DB effect (holds, skips, review flags).
	Outcomes []Outcome

	Warnings    []string
	Validations []string
}

// Outcome is a terminal action decided at plan-build time for a line the
// plan will not touch.
type Outcome struct {
	SourceIndex int
	Action      Action
	Note        string
}

// NewPlan starts an empty plan for one family and date.
func NewPlan(family Family, date time.Time) *ExecutionPlan {
	return &ExecutionPlan{Family: family, Date: date}
}

// AppendMovement adds a movement with its invoice links and ledger lines,
// recording explicit per-movement counts.
func (p *ExecutionPlan) AppendMovement(m MovementRow, invoices []InvoiceLinkRow, lines []LedgerLine) {
	p.Movements = append(p.Movements, m)
	p.InvoicesPerMovement = append(p.InvoicesPerMovement, len(invoices))
	p.LinesPerMovement = append(p.LinesPerMovement, len(lines))
	p.Invoices = append(p.Invoices, invoices...)
	p.Lines = append(p.Lines, lines...)
}

// AppendReconciliation flags an existing folio instead of minting a row.
func (p *ExecutionPlan) AppendReconciliation(r Reconciliation) {
	p.Reconciliations = append(p.Reconciliations, r)
}

// MarkLine assigns a terminal action to a statement line the plan leaves
// untouched.
func (p *ExecutionPlan) MarkLine(sourceIndex int, action Action, note string) {
	p.Outcomes = append(p.Outcomes, Outcome{SourceIndex: sourceIndex, Action: action, Note: note})
}

// Warnf appends a warning. Warnings never stop execution.
func (p *ExecutionPlan) Warnf(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Validatef appends an informational validation string.
func (p *ExecutionPlan) Validatef(format string, args ...any) {
	p.Validations = append(p.Validations, fmt.Sprintf(format, args...))
}

// Empty reports whether the plan carries no DB effect at all.
func (p *ExecutionPlan) Empty() bool {
	return len(p.Movements) == 0 && len(p.Reconciliations) == 0 &&
		len(p.Settlements) == 0 && len(p.Collections) == 0
}

// InvoiceCount returns the invoice-link count for movement i, applying
// the legacy default when the plan omits counts.
func (p *ExecutionPlan) InvoiceCount(i int) int {
	if i < len(p.InvoicesPerMovement) {
		return p.InvoicesPerMovement[i]
	}
	return DefaultInvoicesPerMovement
}

// LineCount returns the ledger-line count for movement i, applying the
// legacy default when the plan omits counts.
func (p *ExecutionPlan) LineCount(i int) int {
	if i < len(p.LinesPerMovement) {
		return p.LinesPerMovement[i]
	}
	return DefaultLinesPerMovement
}

// InvoicesFor slices the invoice links belonging to movement i.
func (p *ExecutionPlan) InvoicesFor(i int) []InvoiceLinkRow {
	start := 0
	for j := 0; j < i; j++ {
		start += p.InvoiceCount(j)
	}
	end := start + p.InvoiceCount(i)
	if end > len(p.Invoices) {
		return nil
	}
	return p.Invoices[start:end]
}

// LinesFor slices the ledger lines belonging to movement i.
func (p *ExecutionPlan) LinesFor(i int) []LedgerLine {
	start := 0
	for j := 0; j < i; j++ {
		start += p.LineCount(j)
	}
	end := start + p.LineCount(i)
	if end > len(p.Lines) {
		return nil
	}
	return p.Lines[start:end]
}

// CheckShape verifies the count arrays cover the flat lists exactly, so
// the executor's cursors can never run past the end mid-plan.
func (p *ExecutionPlan) CheckShape() error {
	wantInv, wantLines := 0, 0
	for i := range p.Movements {
		wantInv += p.InvoiceCount(i)
		wantLines += p.LineCount(i)
	}
	if wantInv != len(p.Invoices) {
		return fmt.Errorf("plan shape: %d invoice links declared, %d present", wantInv, len(p.Invoices))
	}
	if wantLines != len(p.Lines) {
		return fmt.Errorf("plan shape: %d ledger lines declared, %d present", wantLines, len(p.Lines))
	}
	return nil
}

// CheckBalance verifies every movement's ledger slice balances to the
// cent: sum of debits equals sum of credits, decimal-exact.
func (p *ExecutionPlan) CheckBalance() error {
	for i := range p.Movements {
		lines := p.LinesFor(i)
		if len(lines) == 0 {
			continue
		}
		dr, cr := BalanceOf(lines)
		if !dr.Equal(cr) {
			return fmt.Errorf("ledger entry for movement %d unbalanced: Dr %s vs Cr %s",
				i, FormatAmount(dr), FormatAmount(cr))
		}
	}
	return nil
}

// BalanceOf totals the debit and credit sides of a line set.
func BalanceOf(lines []LedgerLine) (dr, cr decimal.Decimal) {
	dr, cr = decimal.Zero, decimal.Zero
	for _, l := range lines {
		switch l.Side {
		case Debit:
			dr = dr.Add(l.Amount)
		case Credit:
			cr = cr.Add(l.Amount)
		}
	}
	return dr, cr
}
