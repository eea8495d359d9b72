package process

import (
	"context"

	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

// SupplierPayments reconciles wires the purchasing module already
// registered. The processor only flips the reconciled flag; it never
// mints rows. The dispatcher hands it yesterday's lines so a reversed
// wire never locks a match in.
type SupplierPayments struct {
	deps Deps
}

func NewSupplierPayments(deps Deps) *SupplierPayments {
	return &SupplierPayments{deps: deps}
}

func (p *SupplierPayments) Family() domain.Family {
	return domain.FamilySuppliers
}

func (p *SupplierPayments) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilySuppliers, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilySuppliers, in.Date)

	for _, mv := range in.Movements {
		found, err := p.deps.Store.SearchUnreconciled(ctx, gateway.SearchFilter{
			Account:   mv.Account,
			Date:      mv.Date,
			DayWindow: p.deps.Tol.GetReconcileDays(),
			Amount:    mv.Amount,
			Tolerance: p.deps.Tol.CentsTol(),
			Direction: mv.Direction,
		})
		if err != nil {
			return nil, err
		}
		if found == nil {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "no unreconciled payment within the day window")
			continue
		}
		plan.AppendReconciliation(domain.Reconciliation{
			SourceIndex: mv.Index,
			Folio:       int(found.Folio),
			Note:        domain.NoteReconciledNow,
		})
	}
	return plan, nil
}
