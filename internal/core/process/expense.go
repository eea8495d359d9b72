package process

import (
	"context"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// ExpensePayments books card debits from the expense account against the
// open payable they settle. The purchasing module never sees these, so
// the movement is minted here and the executor applies the payment to
// the invoice balance. Runs on yesterday's lines, like supplier wires.
type ExpensePayments struct {
	deps Deps
}

func NewExpensePayments(deps Deps) *ExpensePayments {
	return &ExpensePayments{deps: deps}
}

func (p *ExpensePayments) Family() domain.Family {
	return domain.FamilyExpenses
}

func (p *ExpensePayments) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyExpenses, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyExpenses, in.Date)

	for _, mv := range in.Movements {
		acct, ok := p.deps.Registry.ByNumber(mv.Account)
		if !ok {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
			continue
		}
		inv, err := p.deps.Store.UnpaidAPInvoiceByAmount(ctx, mv.Amount, p.deps.Tol.MatchTol())
		if err != nil {
			return nil, err
		}
		if inv == nil {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "no open payable matches the amount")
			continue
		}

		concept := "PAGO PROVEEDOR " + inv.Supplier
		cat := p.deps.Catalog
		lines := make([]domain.LedgerLine, 0, 4)
		lines = append(lines, cat.Suppliers.Line(domain.Debit, mv.Amount, concept))
		if inv.VAT.GreaterThan(domain.Zero) {
			lines = append(lines,
				cat.VATPaid.Line(domain.Debit, inv.VAT, concept),
				cat.VATPendingPayment.Line(domain.Credit, inv.VAT, concept))
		}
		lines = append(lines, acct.Ref().Line(domain.Credit, mv.Amount, concept))

		row := domain.MovementRow{
			SourceIndex:   mv.Index,
			Bank:          mv.Bank,
			Account:       mv.Account,
			Date:          mv.Date,
			Amount:        mv.Amount,
			Direction:     domain.DirOut,
			Description:   mv.Description,
			Class:         domain.ClassExpenses,
			PaymentMethod: domain.PayMethodDebitCard,
			LedgerKind:    domain.LedgerExpense,
			Reconciled:    true,
			Counterparty:  inv.Supplier,
		}
		plan.AppendMovement(row, nil, lines)
		plan.Settlements = append(plan.Settlements, domain.APSettlement{
			MovementIndex: len(plan.Movements) - 1,
			InvoiceID:     inv.ID,
			Supplier:      inv.Supplier,
			Amount:        mv.Amount,
		})
	}
	return plan, nil
}
