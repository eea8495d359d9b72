package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

// Taxes books federal, state and social-security payments by matching
// statement amounts against the parsed filing PDFs. A filing parsed
// below full confidence never generates movements; the lines wait for a
// manual rerun with a corrected document.
type Taxes struct {
	deps Deps
}

func NewTaxes(deps Deps) *Taxes {
	return &Taxes{deps: deps}
}

func (p *Taxes) Family() domain.Family {
	return domain.FamilyTaxes
}

// federalClaims tracks which returns of one filing the day's lines have
// already consumed, so two equal payments never book the same return.
type federalClaims struct {
	retention bool
	main      bool
	suppliers map[int]bool
}

func (p *Taxes) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyTaxes, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyTaxes, in.Date)

	claims := &federalClaims{suppliers: make(map[int]bool)}
	for _, mv := range in.Movements {
		acct, ok := p.deps.Registry.ByNumber(mv.Account)
		if !ok {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
			continue
		}
		var err error
		switch mv.Kind {
		case domain.KindTaxFederal:
			p.bookFederal(plan, mv, acct, federalOf(in.Taxes), claims)
		case domain.KindTaxState:
			p.bookState(plan, mv, acct, stateOf(in.Taxes))
		case domain.KindTaxSocialSecurity:
			err = p.bookSocial(ctx, plan, mv, acct, socialOf(in.Taxes))
		default:
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, fmt.Sprintf("kind %s is not a tax payment", mv.Kind))
		}
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (p *Taxes) bookFederal(plan *domain.ExecutionPlan, mv domain.BankMovement, acct *config.BankAccount, fed *domain.FederalTax, claims *federalClaims) {
	if fed == nil || fed.Confidence != domain.ConfidenceFull {
		holdLine(plan, mv, "federal filing")
		return
	}
	tol := p.deps.Tol.CentsTol()
	switch {
	case !claims.retention && fed.Retentions != nil && domain.WithinTolerance(mv.Amount, fed.Retentions.Total, tol):
		claims.retention = true
		p.bookRetentionReturn(plan, mv, acct, fed.Retentions)
	case !claims.main && fed.Main != nil && domain.WithinTolerance(mv.Amount, fed.Main.Total, tol):
		claims.main = true
		p.bookMainReturn(plan, mv, acct, fed.Main)
	default:
		for i := range fed.Suppliers {
			if claims.suppliers[i] {
				continue
			}
			if domain.WithinTolerance(mv.Amount, fed.Suppliers[i].Amount, tol) {
				claims.suppliers[i] = true
				p.bookSupplierRetention(plan, mv, acct, fed.Suppliers[i])
				return
			}
		}
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "no federal return matches the amount")
	}
}

// bookRetentionReturn posts the retentions+excise acknowledgement: the
// two ISR retentions paid out, and the excise position unwound from
// collected to paid for the non-creditable part.
func (p *Taxes) bookRetentionReturn(plan *domain.ExecutionPlan, mv domain.BankMovement, acct *config.BankAccount, ret *domain.RetentionReturn) {
	cat := p.deps.Catalog
	concept := "IMPUESTOS FEDERALES RETENCIONES " + legacyDate(ret.Period)
	lines := []domain.LedgerLine{
		cat.RetISRHonoraria.Line(domain.Debit, ret.ISRHonoraria, concept),
		cat.RetISRRental.Line(domain.Debit, ret.ISRRental, concept),
		acct.Ref().Line(domain.Credit, mv.Amount, concept),
		cat.ExciseCollected.Line(domain.Debit, ret.ExciseGross, concept),
		cat.ExcisePaid.Line(domain.Credit, ret.ExciseGross.Sub(ret.ExciseNet), concept),
	}
	plan.AppendMovement(p.taxRow(mv, concept, "RETENCIONES"), nil, lines)
}

// bookMainReturn posts the income-tax+VAT acknowledgement. The VAT
// position nets collected against paid; whatever the payment does not
// absorb lands on VAT-favourable for the next period.
func (p *Taxes) bookMainReturn(plan *domain.ExecutionPlan, mv domain.BankMovement, acct *config.BankAccount, m *domain.MainReturn) {
	cat := p.deps.Catalog
	concept := "IMPUESTOS FEDERALES " + legacyDate(m.Period)

	fav := mv.Amount.Add(m.VATPaid).Sub(m.ISRProvisional).Sub(m.ISRSalary).Sub(m.VATCollected)
	if fav.IsNegative() {
		plan.Warnf("VAT-favourable residual %s negative; clamped to zero", domain.FormatAmount(fav))
		fav = domain.Zero
	}
	lines := []domain.LedgerLine{
		cat.ISRProvisional.Line(domain.Debit, m.ISRProvisional, concept),
		cat.ISRSalaryRetention.Line(domain.Debit, m.ISRSalary, concept),
		acct.Ref().Line(domain.Credit, mv.Amount, concept),
		cat.VATCollected.Line(domain.Debit, m.VATCollected, concept),
		cat.VATPaid.Line(domain.Credit, m.VATPaid, concept),
		cat.VATFavourable.Line(domain.Debit, fav, concept),
	}
	plan.AppendMovement(p.taxRow(mv, concept, "FEDERAL"), nil, lines)
}

func (p *Taxes) bookSupplierRetention(plan *domain.ExecutionPlan, mv domain.BankMovement, acct *config.BankAccount, s domain.SupplierRetention) {
	cat := p.deps.Catalog
	concept := "RETENCION IVA " + s.RFC
	lines := []domain.LedgerLine{
		cat.VATWithheldPaid.Line(domain.Debit, mv.Amount, concept),
		acct.Ref().Line(domain.Credit, mv.Amount, concept),
		cat.VATPaid.Line(domain.Debit, mv.Amount, concept),
		cat.VATPendingPayment.Line(domain.Credit, mv.Amount, concept),
	}
	row := p.taxRow(mv, concept, "RETENCION IVA")
	row.Counterparty = s.Supplier
	plan.AppendMovement(row, nil, lines)
}

func (p *Taxes) bookState(plan *domain.ExecutionPlan, mv domain.BankMovement, acct *config.BankAccount, st *domain.StateTax) {
	if st == nil || st.Confidence != domain.ConfidenceFull {
		holdLine(plan, mv, "state filing")
		return
	}
	if !domain.WithinTolerance(mv.Amount, st.Total, p.deps.Tol.CentsTol()) {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "state filing total does not match the amount")
		return
	}
	concept := "IMPUESTO ESTATAL NOMINA " + legacyDate(st.Period)
	lines := []domain.LedgerLine{
		p.deps.Catalog.StatePayrollTax.Line(domain.Debit, mv.Amount, concept),
		acct.Ref().Line(domain.Credit, mv.Amount, concept),
	}
	plan.AppendMovement(p.taxRow(mv, concept, "ESTATAL"), nil, lines)
}

// bookSocial posts the SUA payment. The employee retention collected two
// calendar months earlier comes from the ledger balance table; the
// difference to the payment is the employer expense. Bimonthly payments
// break out retirement and the housing figures on their own accounts.
func (p *Taxes) bookSocial(ctx context.Context, plan *domain.ExecutionPlan, mv domain.BankMovement, acct *config.BankAccount, ss *domain.SSTax) error {
	if ss == nil || ss.Confidence != domain.ConfidenceFull {
		holdLine(plan, mv, "social-security summary")
		return nil
	}
	if !domain.WithinTolerance(mv.Amount, ss.Total, p.deps.Tol.CentsTol()) {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "social-security total does not match the amount")
		return nil
	}

	cat := p.deps.Catalog
	year, month := domain.MonthsBack(mv.Date, 2)
	retention, err := p.deps.Store.MonthlyLedgerCredits(ctx, cat.SSRetention.Account, cat.SSRetention.Sub, year, month)
	switch {
	case errors.Is(err, gateway.ErrBalanceNotFound):
		plan.Warnf("no ledger balance for %s in %d-%02d; retention booked at zero", cat.SSRetention, year, month)
		retention = domain.Zero
	case err != nil:
		return err
	}

	expense := mv.Amount.Sub(retention)
	if ss.Bimonthly {
		expense = expense.Sub(ss.Retirement).Sub(ss.HousingFund).Sub(ss.HousingAmort).Sub(ss.JobRisk)
	}
	if expense.IsNegative() {
		plan.Warnf("social-security components exceed the payment by %s; expense clamped to zero",
			domain.FormatAmount(expense.Abs()))
		expense = domain.Zero
	}

	concept := "CUOTAS IMSS " + legacyDate(ss.Period)
	lines := make([]domain.LedgerLine, 0, 7)
	lines = append(lines,
		cat.SSRetention.Line(domain.Debit, retention, concept),
		cat.SSExpense.Line(domain.Debit, expense, concept))
	if ss.Bimonthly {
		lines = append(lines,
			cat.Retirement.Line(domain.Debit, ss.Retirement, concept),
			cat.HousingFund.Line(domain.Debit, ss.HousingFund, concept),
			cat.HousingAmort.Line(domain.Debit, ss.HousingAmort, concept),
			cat.JobRisk.Line(domain.Debit, ss.JobRisk, concept))
	}
	lines = append(lines, acct.Ref().Line(domain.Credit, mv.Amount, concept))
	plan.AppendMovement(p.taxRow(mv, concept, "IMSS"), nil, lines)
	return nil
}

func (p *Taxes) taxRow(mv domain.BankMovement, concept, subKind string) domain.MovementRow {
	return domain.MovementRow{
		SourceIndex:   mv.Index,
		Bank:          mv.Bank,
		Account:       mv.Account,
		Date:          mv.Date,
		Amount:        mv.Amount,
		Direction:     domain.DirOut,
		Description:   concept,
		Class:         domain.ClassTaxes,
		PaymentMethod: domain.PayMethodTransfer,
		SubKind:       subKind,
		LedgerKind:    domain.LedgerExpense,
		Reconciled:    true,
	}
}

func holdLine(plan *domain.ExecutionPlan, mv domain.BankMovement, doc string) {
	plan.Warnf("%s missing or parsed below full confidence; line %d held", doc, mv.Index)
	plan.MarkLine(mv.Index, domain.ActionNotProcessed, doc+" not parsed at full confidence")
}

func federalOf(t *domain.TaxBundle) *domain.FederalTax {
	if t == nil {
		return nil
	}
	return t.Federal
}

func stateOf(t *domain.TaxBundle) *domain.StateTax {
	if t == nil {
		return nil
	}
	return t.State
}

func socialOf(t *domain.TaxBundle) *domain.SSTax {
	if t == nil {
		return nil
	}
	return t.Social
}
