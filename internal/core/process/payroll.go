package process

import (
	"context"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// PayrollDispersion books the per-period payroll wire. The ledger entry
// spreads the workbook's perception and deduction totals; the non-wire
// payout buckets (checks, vacations, severance) are provisioned on
// payroll-payables and consumed later by cashed checks.
type PayrollDispersion struct {
	deps Deps
}

func NewPayrollDispersion(deps Deps) *PayrollDispersion {
	return &PayrollDispersion{deps: deps}
}

func (p *PayrollDispersion) Family() domain.Family {
	return domain.FamilyPayroll
}

func (p *PayrollDispersion) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyPayroll, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyPayroll, in.Date)
	if in.Payroll == nil {
		plan.Warnf("payroll workbook not loaded; %d dispersion line(s) held", len(in.Movements))
		for _, mv := range in.Movements {
			plan.MarkLine(mv.Index, domain.ActionNotProcessed, "payroll workbook missing")
		}
		return plan, nil
	}

	for _, mv := range in.Movements {
		p.bookDispersion(plan, mv, in.Payroll)
	}
	return plan, nil
}

func (p *PayrollDispersion) bookDispersion(plan *domain.ExecutionPlan, mv domain.BankMovement, pr *domain.Payroll) {
	acct, ok := p.deps.Registry.ByNumber(mv.Account)
	if !ok {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
		return
	}
	validateAmount(plan, "dispersion vs payroll workbook", mv.Amount, pr.Dispersion, p.deps.Tol.ValidateTol())

	concept := "DISPERSION NOMINA " + legacyDate(mv.Date)
	cat := p.deps.Catalog
	payables := pr.SecondariesTotal()

	lines := make([]domain.LedgerLine, 0, len(pr.Perceptions)+len(pr.Deductions)+3)
	for _, c := range pr.Perceptions {
		if c.Amount.IsZero() {
			continue
		}
		lines = append(lines, cat.PayrollConcept(c.Code).Line(domain.Debit, c.Amount, c.Name))
	}
	for _, c := range pr.Deductions {
		if c.Amount.IsZero() {
			continue
		}
		lines = append(lines, cat.PayrollConcept(c.Code).Line(domain.Credit, c.Amount, c.Name))
	}
	lines = append(lines, acct.Ref().Line(domain.Credit, mv.Amount, concept))
	if payables.GreaterThan(domain.Zero) {
		lines = append(lines, cat.PayrollPayables.Line(domain.Credit, payables, concept))
	}

	// Workbook perceptions rarely foot to the cent against the wire plus
	// the withholdings; a generic-salary debit closes any shortfall.
	gap := pr.DeductionsTotal().Add(mv.Amount).Add(payables).Sub(pr.PerceptionsTotal())
	if gap.GreaterThan(domain.Zero) {
		lines = append(lines, cat.GenericSalary.Line(domain.Debit, gap, concept))
	} else if gap.IsNegative() && gap.Abs().GreaterThan(p.deps.Tol.CentsTol()) {
		plan.Warnf("payroll perceptions exceed wire plus withholdings by %s; entry left unbalanced",
			domain.FormatAmount(gap.Abs()))
	}

	row := domain.MovementRow{
		SourceIndex:   mv.Index,
		Bank:          mv.Bank,
		Account:       mv.Account,
		Date:          mv.Date,
		Amount:        mv.Amount,
		Direction:     domain.DirOut,
		Description:   concept,
		Class:         domain.ClassPayroll,
		PaymentMethod: domain.PayMethodTransfer,
		SubKind:       pr.Period,
		LedgerKind:    domain.LedgerExpense,
		Reconciled:    true,
	}
	plan.AppendMovement(row, nil, lines)
}

// CashedChecks settles payout checks drawn against the payroll provision.
// Each statement line claims one unmatched workbook bucket; a line no
// bucket fits is somebody else's check and stays untouched.
type CashedChecks struct {
	deps Deps
}

func NewCashedChecks(deps Deps) *CashedChecks {
	return &CashedChecks{deps: deps}
}

func (p *CashedChecks) Family() domain.Family {
	return domain.FamilyChecks
}

func (p *CashedChecks) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyChecks, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyChecks, in.Date)
	if in.Payroll == nil {
		plan.Warnf("payroll workbook not loaded; %d cashed check(s) unmatched", len(in.Movements))
		for _, mv := range in.Movements {
			plan.MarkLine(mv.Index, domain.ActionUnknown, domain.NoteNotOurPayroll)
		}
		return plan, nil
	}

	for _, mv := range in.Movements {
		bucket := in.Payroll.MatchSecondary(mv.Amount, p.deps.Tol.CentsTol())
		if bucket == nil {
			plan.MarkLine(mv.Index, domain.ActionUnknown, domain.NoteNotOurPayroll)
			continue
		}
		p.bookCheck(plan, mv, bucket.Label)
	}
	return plan, nil
}

func (p *CashedChecks) bookCheck(plan *domain.ExecutionPlan, mv domain.BankMovement, bucket string) {
	acct, ok := p.deps.Registry.ByNumber(mv.Account)
	if !ok {
		plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
		return
	}

	concept := "CHEQUE COBRADO " + bucket
	row := domain.MovementRow{
		SourceIndex: mv.Index,
		Bank:        mv.Bank,
		Account:     mv.Account,
		Date:        mv.Date,
		Amount:      mv.Amount,
		// The statement text keeps the check number, so re-runs find the
		// same row.
		Description:   mv.Description,
		Direction:     domain.DirOut,
		Class:         domain.ClassPayroll,
		PaymentMethod: domain.PayMethodCheck,
		SubKind:       bucket,
		LedgerKind:    domain.LedgerExpense,
		DocType:       domain.DocTypeChecks,
		Reconciled:    true,
	}
	lines := []domain.LedgerLine{
		p.deps.Catalog.PayrollPayables.Line(domain.Debit, mv.Amount, concept),
		acct.Ref().Line(domain.Credit, mv.Amount, concept),
	}
	plan.AppendMovement(row, nil, lines)
}
