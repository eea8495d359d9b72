package process

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

// Fees collapses the day's bank-fee lines into one expense movement per
// account, backed by a fabricated provider invoice. VAT is recomputed as
// 16 % of the aggregated base; summing the bank's per-line VAT rows
// drifts by a cent on most days.
type Fees struct {
	deps Deps
}

func NewFees(deps Deps) *Fees {
	return &Fees{deps: deps}
}

func (p *Fees) Family() domain.Family {
	return domain.FamilyFees
}

type feeGroup struct {
	first        int
	covers       []int
	base         decimal.Decimal
	statementVAT decimal.Decimal
}

func (p *Fees) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyFees, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyFees, in.Date)

	groups := make(map[string]*feeGroup)
	var order []string
	for _, mv := range in.Movements {
		g, ok := groups[mv.Account]
		if !ok {
			g = &feeGroup{first: mv.Index, base: domain.Zero, statementVAT: domain.Zero}
			groups[mv.Account] = g
			order = append(order, mv.Account)
		} else {
			g.covers = append(g.covers, mv.Index)
		}
		if isFeeVAT(mv.Kind) {
			g.statementVAT = g.statementVAT.Add(mv.Amount)
		} else {
			g.base = g.base.Add(mv.Amount)
		}
	}

	for _, account := range order {
		g := groups[account]
		acct, ok := p.deps.Registry.ByNumber(account)
		if !ok {
			plan.MarkLine(g.first, domain.ActionNeedsReview, "account "+account+" not in registry")
			for _, idx := range g.covers {
				plan.MarkLine(idx, domain.ActionNeedsReview, "account "+account+" not in registry")
			}
			continue
		}
		p.bookGroup(plan, in.Date, acct, g)
	}
	return plan, nil
}

func (p *Fees) bookGroup(plan *domain.ExecutionPlan, date time.Time, acct *config.BankAccount, g *feeGroup) {
	vat := domain.Round2(g.base.Mul(domain.VATRate))
	total := g.base.Add(vat)
	if !domain.WithinTolerance(vat, g.statementVAT, p.deps.Tol.CentsTol()) {
		plan.Validatef("fee VAT on %s: statement rows sum %s vs 16%% of base %s",
			acct.Number, domain.FormatAmount(g.statementVAT), domain.FormatAmount(vat))
	}

	reference := date.Format("02012006")
	concept := "COMISIONES BANCARIAS " + legacyDate(date)
	row := domain.MovementRow{
		SourceIndex:   g.first,
		Covers:        g.covers,
		Bank:          acct.Institution,
		Account:       acct.Number,
		Date:          date,
		Amount:        total,
		Direction:     domain.DirOut,
		Description:   concept,
		Class:         domain.ClassFees,
		PaymentMethod: domain.PayMethodTransfer,
		LedgerKind:    domain.LedgerExpense,
		Reconciled:    true,
		Counterparty:  acct.Institution,
		InvoiceRef:    reference,
	}
	cat := p.deps.Catalog
	lines := []domain.LedgerLine{
		cat.Suppliers.Line(domain.Debit, total, concept),
		cat.VATPendingPayment.Line(domain.Credit, vat, concept),
		cat.VATPaid.Line(domain.Debit, vat, concept),
		acct.Ref().Line(domain.Credit, total, concept),
	}
	plan.AppendMovement(row, nil, lines)
	plan.APInvoices = append(plan.APInvoices, domain.APInvoiceRow{
		Supplier:  acct.Institution,
		Reference: reference,
		Base:      g.base,
		VAT:       vat,
		Total:     total,
	})
}

func isFeeVAT(k domain.ProcessKind) bool {
	return k == domain.KindFeeWireVAT || k == domain.KindFeeCardVAT
}
