package process

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

// Transfers books internal account-to-account moves. One statement line
// (the out-leg) mints both movement rows; the ledger entry hangs off the
// out-leg only, so the executor never double-books the transfer.
type Transfers struct {
	deps Deps
}

func NewTransfers(deps Deps) *Transfers {
	return &Transfers{deps: deps}
}

func (p *Transfers) Family() domain.Family {
	return domain.FamilyTransfers
}

func (p *Transfers) BuildPlan(ctx context.Context, in Input) (*domain.ExecutionPlan, error) {
	if len(in.Movements) == 0 {
		return emptyPlan(domain.FamilyTransfers, in.Date), nil
	}
	plan := domain.NewPlan(domain.FamilyTransfers, in.Date)

	for _, mv := range in.Movements {
		if mv.DestAccount == "" {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "destination account not captured from description")
			continue
		}
		src, ok := p.deps.Registry.ByNumber(mv.Account)
		if !ok {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "account "+mv.Account+" not in registry")
			continue
		}
		dst, ok := p.deps.Registry.ByNumber(mv.DestAccount)
		if !ok {
			plan.MarkLine(mv.Index, domain.ActionNeedsReview, "destination account "+mv.DestAccount+" not in registry")
			continue
		}
		bookTransfer(plan, mv.Date, src, dst, mv.Amount, mv.Index)
	}
	return plan, nil
}

// PettyCashPlan builds the two-leg move between a bank account and the
// petty-cash pseudo-account, for callers outside the statement flow.
// fromBank selects the direction: true drains the bank account into
// petty cash.
func (p *Transfers) PettyCashPlan(date time.Time, account string, amount decimal.Decimal, fromBank bool) (*domain.ExecutionPlan, error) {
	bank, ok := p.deps.Registry.ByNumber(account)
	if !ok {
		return nil, fmt.Errorf("account %s not in registry", account)
	}
	petty := p.deps.Registry.PettyCash()
	if petty == nil {
		return nil, fmt.Errorf("no %s account configured", config.RolePettyCash)
	}

	plan := domain.NewPlan(domain.FamilyTransfers, date)
	if fromBank {
		bookTransfer(plan, date, bank, petty, amount, -1)
	} else {
		bookTransfer(plan, date, petty, bank, amount, -1)
	}
	return plan, nil
}

// bookTransfer appends the out and in legs. Out carries the two ledger
// lines (Dr destination, Cr source) tagged TRANSFER; in carries none.
func bookTransfer(plan *domain.ExecutionPlan, date time.Time, src, dst *config.BankAccount, amount decimal.Decimal, sourceIndex int) {
	outConcept := "TRASPASO A CUENTA " + dst.Number
	inConcept := "TRASPASO DE CUENTA " + src.Number

	out := domain.MovementRow{
		SourceIndex:   sourceIndex,
		Bank:          src.Institution,
		Account:       src.Number,
		Date:          date,
		Amount:        amount,
		Direction:     domain.DirOut,
		Description:   outConcept,
		Class:         domain.ClassTransfer,
		PaymentMethod: domain.PayMethodTransfer,
		LedgerKind:    domain.LedgerJournal,
		DocType:       domain.DocTypeTransfer,
		Reconciled:    true,
		Counterparty:  dst.Number,
	}
	lines := []domain.LedgerLine{
		dst.Ref().Line(domain.Debit, amount, outConcept),
		src.Ref().Line(domain.Credit, amount, outConcept),
	}
	plan.AppendMovement(out, nil, lines)

	in := domain.MovementRow{
		SourceIndex:   sourceIndex,
		Bank:          dst.Institution,
		Account:       dst.Number,
		Date:          date,
		Amount:        amount,
		Direction:     domain.DirIn,
		Description:   inConcept,
		Class:         domain.ClassTransfer,
		PaymentMethod: domain.PayMethodTransfer,
		LedgerKind:    domain.LedgerJournal,
		DocType:       domain.DocTypeTransfer,
		Reconciled:    true,
		Counterparty:  src.Number,
	}
	plan.AppendMovement(in, nil, nil)
}
