package process

import (
	"context"
	"errors"
	"regexp"

	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

// invoiceRefPattern pulls an invoice number out of a deposit description,
// tolerating the bank's FAC/FACT/FACTURA spellings and an optional series
// prefix ("FACTURA A-12345", "DEP FAC 8811").
var invoiceRefPattern = regexp.MustCompile(`(?i)\bFAC(?:T(?:URA)?)?[.\s#]*(?:[A-Z]{1,3}-)?([0-9]{2,10})\b`)

// Collections settles customer deposits. A deposit the collections module
// already captured is only reconciled; an unknown one is booked in full
// against the receivable it pays, found by invoice number when the
// description names one, by amount otherwise.
type Collections struct {
	deps Deps
}

func NewCollections(deps Deps) *Collections {
	return &Collections{deps: deps}
}

func (p *Collections) Family() domain.Family {
	return domain.FamilyCollections
}

func (p *Collections) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyCollections, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyCollections, in.Date)

	for _, mv := range in.Movements {
		found, err := p.deps.Store.SearchUnreconciled(ctx, gateway.SearchFilter{
			Account:     mv.Account,
			Date:        mv.Date,
			DayWindow:   p.deps.Tol.GetReconcileDays(),
			Amount:      mv.Amount,
			Tolerance:   p.deps.Tol.MatchTol(),
			Direction:   domain.DirIn,
			Class:       domain.ClassDeposits,
			ConceptLike: "CLIENT",
		})
		if err != nil {
			return nil, err
		}
		if found != nil {
			plan.AppendReconciliation(domain.Reconciliation{
				SourceIndex: mv.Index,
				Folio:       int(found.Folio),
				Note:        domain.NoteReconciledNow,
			})
			continue
		}

		inv, err := p.findInvoice(ctx, mv)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "no receivable matches the deposit")
			continue
		}
		if err := p.bookCollection(ctx, plan, mv, inv); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// findInvoice resolves the receivable a deposit pays: by the invoice
// number in the description first, by pending balance and amount second.
func (p *Collections) findInvoice(ctx context.Context, mv domain.BankMovement) (*gateway.ARInvoiceRef, error) {
	if m := invoiceRefPattern.FindStringSubmatch(mv.Description); m != nil {
		inv, err := p.deps.Store.FindARInvoiceByNumber(ctx, m[1])
		if err != nil && !errors.Is(err, gateway.ErrInvoiceNotFound) {
			return nil, err
		}
		if inv != nil {
			return inv, nil
		}
	}
	return p.deps.Store.PendingARInvoiceByAmount(ctx, mv.Amount, p.deps.Tol.MatchTol())
}

func (p *Collections) bookCollection(ctx context.Context, plan *domain.ExecutionPlan, mv domain.BankMovement, inv *gateway.ARInvoiceRef) error {
	acct, ok := p.deps.Registry.ByNumber(mv.Account)
	if !ok {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
		return nil
	}

	vat, excise, err := p.deps.Store.InvoiceTaxBreakdown(ctx, inv.Series, inv.Number)
	switch {
	case errors.Is(err, gateway.ErrInvoiceNotFound):
		plan.Warnf("invoice %s-%s has no tax rows; reclassification booked at zero", inv.Series, inv.Number)
		vat, excise = domain.Zero, domain.Zero
	case err != nil:
		return err
	}

	concept := "COBRO CLIENTE FACTURA " + inv.Number
	cat := p.deps.Catalog
	lines := []domain.LedgerLine{
		acct.Ref().Line(domain.Debit, mv.Amount, concept),
		cat.Customers.Line(domain.Credit, mv.Amount, concept),
		cat.VATCollected.Line(domain.Credit, vat, concept),
		cat.VATPendingCollection.Line(domain.Debit, vat, concept),
		cat.ExciseCollected.Line(domain.Credit, excise, concept),
		cat.ExcisePendingCollection.Line(domain.Debit, excise, concept),
	}
	row := domain.MovementRow{
		SourceIndex: mv.Index,
		Bank:        mv.Bank,
		Account:     mv.Account,
		Date:        mv.Date,
		Amount:      mv.Amount,
		Direction:   domain.DirIn,
		// The statement text stays as the description so re-runs find
		// the row by key.
		Description:   mv.Description,
		Class:         domain.ClassDeposits,
		PaymentMethod: domain.PayMethodTransfer,
		LedgerKind:    domain.LedgerIncome,
		Reconciled:    true,
		Counterparty:  inv.Customer,
		InvoiceRef:    inv.Number,
	}
	plan.AppendMovement(row, nil, lines)
	plan.Collections = append(plan.Collections, domain.ARCollectionRow{
		MovementIndex: len(plan.Movements) - 1,
		InvoiceID:     inv.ID,
		Customer:      inv.Customer,
		Series:        inv.Series,
		Number:        inv.Number,
		Amount:        mv.Amount,
	})
	return nil
}
