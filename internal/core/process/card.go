package process

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/core/tdc"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

// CardSales books card-terminal deposits against treasury closes. The
// deposit settles the prior sales day, so the movement concept carries
// the close date, never the deposit date. When several closes feed one
// deposit day the two-phase assigner decides who gets what.
type CardSales struct {
	deps Deps
}

func NewCardSales(deps Deps) *CardSales {
	return &CardSales{deps: deps}
}

func (p *CardSales) Family() domain.Family {
	return domain.FamilyCardSales
}

func (p *CardSales) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyCardSales, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyCardSales, in.Date)

	window := tdc.LegacyWindow(in.Date)
	if len(in.DepositDates) > 0 {
		window = tdc.WindowForDeposit(in.Date, previousDepositDate(in.DepositDates, in.Date))
	}
	closes := domain.ClosesInWindow(in.Closes, window.From, window.To)
	if len(closes) == 0 {
		plan.Warnf("no treasury close between %s and %s for %d card deposit(s)",
			window.From.Format("2006-01-02"), window.To.Format("2006-01-02"), len(in.Movements))
		for _, mv := range in.Movements {
			plan.MarkLine(mv.Index, domain.ActionNotProcessed, domain.NoteNoCloseForDate)
		}
		return plan, nil
	}

	if len(closes) == 1 {
		cl := closes[0]
		total := domain.Zero
		for _, mv := range in.Movements {
			if err := p.bookDeposit(ctx, plan, cl, mv, mv.Amount); err != nil {
				return nil, err
			}
			total = total.Add(mv.Amount)
		}
		validateAmount(plan, "card deposits vs close "+legacyDate(cl.Date),
			total, cl.CardTotal, p.deps.Tol.ValidateTol())
		return plan, nil
	}

	byIndex := make(map[int]domain.BankMovement, len(in.Movements))
	deposits := make([]tdc.Deposit, 0, len(in.Movements))
	for _, mv := range in.Movements {
		byIndex[mv.Index] = mv
		deposits = append(deposits, tdc.Deposit{SourceIndex: mv.Index, Amount: mv.Amount})
	}
	res := tdc.Assign(closes, deposits, p.deps.Tol.CentsTol())
	if !res.Exact {
		plan.Warnf("deposits of %s do not cover the %d closes exactly; sequential split applied",
			in.Date.Format("2006-01-02"), len(closes))
	}
	for _, asg := range res.Assignments {
		for _, dep := range asg.Deposits {
			mv, ok := byIndex[dep.SourceIndex]
			if !ok {
				continue
			}
			if err := p.bookDeposit(ctx, plan, asg.Close, mv, dep.Amount); err != nil {
				return nil, err
			}
		}
		if asg.Shortfall.GreaterThan(p.deps.Tol.CentsTol()) {
			plan.Warnf("close %s short by %s after deposit assignment",
				legacyDate(asg.Close.Date), domain.FormatAmount(asg.Shortfall))
		}
	}
	for _, left := range res.Leftovers {
		mv, ok := byIndex[left.SourceIndex]
		if !ok {
			continue
		}
		p.bookAdjustment(plan, mv, left.Amount)
	}
	return plan, nil
}

// bookDeposit appends one DAILY_SALE movement settled against the close's
// global invoice. amount may be a split portion of the statement line.
func (p *CardSales) bookDeposit(ctx context.Context, plan *domain.ExecutionPlan, cl domain.DailyClose, mv domain.BankMovement, amount decimal.Decimal) error {
	acct, ok := p.deps.Registry.ByNumber(mv.Account)
	if !ok {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
		return nil
	}

	vat, excise, err := p.deps.Store.InvoiceTaxBreakdown(ctx, cl.Global.Series, cl.Global.Number)
	switch {
	case errors.Is(err, gateway.ErrInvoiceNotFound):
		plan.Warnf("global invoice %s-%s not found; tax reclassification booked at zero",
			cl.Global.Series, cl.Global.Number)
		vat, excise = domain.Zero, domain.Zero
	case err != nil:
		return err
	}

	concept := "VENTA TARJETA " + legacyDate(cl.Date)
	row := domain.MovementRow{
		SourceIndex:   mv.Index,
		Bank:          mv.Bank,
		Account:       mv.Account,
		Date:          mv.Date,
		Amount:        amount,
		Direction:     domain.DirIn,
		Description:   concept,
		Class:         domain.ClassDailySale,
		PaymentMethod: cardPayMethod(mv.Kind),
		SubKind:       cl.Branch,
		LedgerKind:    domain.LedgerIncome,
		Reconciled:    true,
		InvoiceRef:    cl.Global.Number,
	}
	links := []domain.InvoiceLinkRow{{
		Series:      cl.Global.Series,
		Number:      cl.Global.Number,
		Applied:     amount,
		Kind:        domain.LinkGlobal,
		InvoiceDate: cl.Date,
	}}
	cat := p.deps.Catalog
	lines := []domain.LedgerLine{
		acct.Ref().Line(domain.Debit, amount, concept),
		cat.Customers.Line(domain.Credit, amount, concept),
		cat.VATCollected.Line(domain.Credit, vat, concept),
		cat.VATPendingCollection.Line(domain.Debit, vat, concept),
		cat.ExciseCollected.Line(domain.Credit, excise, concept),
		cat.ExcisePendingCollection.Line(domain.Debit, excise, concept),
	}
	plan.AppendMovement(row, links, lines)
	return nil
}

// bookAdjustment parks a deposit no close accounts for on
// customer-creditors pending an audit.
func (p *CardSales) bookAdjustment(plan *domain.ExecutionPlan, mv domain.BankMovement, amount decimal.Decimal) {
	acct, ok := p.deps.Registry.ByNumber(mv.Account)
	if !ok {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
		return
	}
	plan.Warnf("deposit %s on %s matches no close; booked as bank adjustment",
		domain.FormatAmount(amount), mv.Date.Format("2006-01-02"))

	concept := "AJUSTE BANCARIO " + legacyDate(mv.Date)
	row := domain.MovementRow{
		SourceIndex:   mv.Index,
		Bank:          mv.Bank,
		Account:       mv.Account,
		Date:          mv.Date,
		Amount:        amount,
		Direction:     domain.DirIn,
		Description:   concept,
		Class:         domain.ClassBankAdjustment,
		PaymentMethod: cardPayMethod(mv.Kind),
		LedgerKind:    domain.LedgerIncome,
		Reconciled:    true,
	}
	lines := []domain.LedgerLine{
		acct.Ref().Line(domain.Debit, amount, concept),
		p.deps.Catalog.CustomerCreditors.Line(domain.Credit, amount, concept),
	}
	plan.AppendMovement(row, nil, lines)
}

func cardPayMethod(k domain.ProcessKind) string {
	if k == domain.KindCardDebitSale {
		return domain.PayMethodDebitCard
	}
	return domain.PayMethodCreditCard
}
