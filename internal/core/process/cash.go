package process

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

// CashSales books over-the-counter cash deposits. Cash is banked the
// morning after the sales day, so the close of D-1 settles a deposit on
// D; when the treasury banks same-day the close of D is tried next.
// Unlike card sales, every individual invoice of the close is linked and
// the global invoice only absorbs the remainder.
type CashSales struct {
	deps Deps
}

func NewCashSales(deps Deps) *CashSales {
	return &CashSales{deps: deps}
}

func (p *CashSales) Family() domain.Family {
	return domain.FamilyCashSales
}

func (p *CashSales) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyCashSales, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyCashSales, in.Date)

	cl := domain.CloseByDate(in.Closes, in.Date.AddDate(0, 0, -1))
	if cl == nil {
		cl = domain.CloseByDate(in.Closes, in.Date)
	}
	if cl == nil {
		plan.Warnf("no treasury close on %s or the day before for %d cash deposit(s)",
			in.Date.Format("2006-01-02"), len(in.Movements))
		for _, mv := range in.Movements {
			plan.MarkLine(mv.Index, domain.ActionNotProcessed, domain.NoteNoCloseForDate)
		}
		return plan, nil
	}

	total := domain.Zero
	for _, mv := range in.Movements {
		if err := p.bookDeposit(ctx, plan, cl, mv); err != nil {
			return nil, err
		}
		total = total.Add(mv.Amount)
	}
	validateAmount(plan, "cash deposits vs close "+legacyDate(cl.Date),
		total, cl.CashTotal, p.deps.Tol.ValidateTol())
	return plan, nil
}

func (p *CashSales) bookDeposit(ctx context.Context, plan *domain.ExecutionPlan, cl *domain.DailyClose, mv domain.BankMovement) error {
	acct, ok := p.deps.Registry.ByNumber(mv.Account)
	if !ok {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
		return nil
	}

	concept := "VENTA EFECTIVO " + legacyDate(cl.Date)
	remainder := mv.Amount.Sub(cl.IndividualTotal())
	if remainder.IsNegative() {
		plan.Warnf("individual invoices of close %s exceed cash deposit %s; global application capped at zero",
			legacyDate(cl.Date), domain.FormatAmount(mv.Amount))
		remainder = domain.Zero
	}

	links := make([]domain.InvoiceLinkRow, 0, len(cl.Individual)+1)
	lines := make([]domain.LedgerLine, 0, 1+5*(len(cl.Individual)+1))
	lines = append(lines, acct.Ref().Line(domain.Debit, mv.Amount, concept))

	for _, inv := range cl.Individual {
		links = append(links, domain.InvoiceLinkRow{
			Series:      inv.Series,
			Number:      inv.Number,
			Applied:     inv.Amount,
			Kind:        domain.LinkIndividual,
			InvoiceDate: cl.Date,
		})
		blk, err := p.invoiceBlock(ctx, plan, inv.Series, inv.Number, inv.Amount, concept)
		if err != nil {
			return err
		}
		lines = append(lines, blk...)
	}
	links = append(links, domain.InvoiceLinkRow{
		Series:      cl.Global.Series,
		Number:      cl.Global.Number,
		Applied:     remainder,
		Kind:        domain.LinkGlobal,
		InvoiceDate: cl.Date,
	})
	blk, err := p.invoiceBlock(ctx, plan, cl.Global.Series, cl.Global.Number, remainder, concept)
	if err != nil {
		return err
	}
	lines = append(lines, blk...)

	row := domain.MovementRow{
		SourceIndex:   mv.Index,
		Bank:          mv.Bank,
		Account:       mv.Account,
		Date:          mv.Date,
		Amount:        mv.Amount,
		Direction:     domain.DirIn,
		Description:   concept,
		Class:         domain.ClassDailySale,
		PaymentMethod: domain.PayMethodCash,
		SubKind:       cl.Branch,
		LedgerKind:    domain.LedgerIncome,
		Reconciled:    true,
		InvoiceRef:    cl.Global.Number,
	}
	plan.AppendMovement(row, links, lines)
	return nil
}

// invoiceBlock builds the 1-5 credit-side lines for one applied invoice:
// the customer credit, then a reclassification pair per nonzero tax.
func (p *CashSales) invoiceBlock(ctx context.Context, plan *domain.ExecutionPlan, series, number string, applied decimal.Decimal, concept string) ([]domain.LedgerLine, error) {
	vat, excise, err := p.deps.Store.InvoiceTaxBreakdown(ctx, series, number)
	switch {
	case errors.Is(err, gateway.ErrInvoiceNotFound):
		plan.Warnf("invoice %s-%s not found; tax reclassification booked at zero", series, number)
		vat, excise = domain.Zero, domain.Zero
	case err != nil:
		return nil, err
	}

	cat := p.deps.Catalog
	lines := []domain.LedgerLine{cat.Customers.Line(domain.Credit, applied, concept)}
	if vat.GreaterThan(domain.Zero) {
		lines = append(lines,
			cat.VATCollected.Line(domain.Credit, vat, concept),
			cat.VATPendingCollection.Line(domain.Debit, vat, concept))
	}
	if excise.GreaterThan(domain.Zero) {
		lines = append(lines,
			cat.ExciseCollected.Line(domain.Credit, excise, concept),
			cat.ExcisePendingCollection.Line(domain.Debit, excise, concept))
	}
	return lines, nil
}
