// Package execute commits execution plans against the ERP database. One
// plan runs inside exactly one transaction: movement headers first, then
// invoice links, fabricated AP invoices, ledger lines, and finally the
// movement's ledger pointer. Any error rolls the whole plan back; partial
// plans never commit.
package execute

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// PlanTx is the transactional slice of the gateway the executor drives.
// *gateway.Tx satisfies it; tests substitute an in-memory fake.
type PlanTx interface {
	NextFolio(ctx context.Context) (int64, error)
	NextLedgerNumber(ctx context.Context) (int64, error)
	LookupMovement(ctx context.Context, key domain.MovementKey) (*domain.MovementRef, error)
	InsertMovement(ctx context.Context, folio int64, row domain.MovementRow, now time.Time) error
	MarkReconciled(ctx context.Context, folio int64) error
	SetMovementLedger(ctx context.Context, folio, ledgerNumber int64) error
	InsertInvoiceLink(ctx context.Context, folio int64, date time.Time, link domain.InvoiceLinkRow) error
	InsertLedgerLines(ctx context.Context, ledgerNumber, folio int64, date time.Time, docType string, lines []domain.LedgerLine) error
	InsertAPInvoice(ctx context.Context, inv domain.APInvoiceRow, date time.Time) (int64, error)
	InsertAPPayment(ctx context.Context, supplier string, amount decimal.Decimal, folio int64, date time.Time) (int64, error)
	InsertAPPaymentLink(ctx context.Context, paymentID, invoiceID int64, applied decimal.Decimal) error
	ApplyAPInvoiceBalance(ctx context.Context, invoiceID int64, applied decimal.Decimal) error
	InsertARCollection(ctx context.Context, c domain.ARCollectionRow, folio int64, date time.Time) (int64, error)
	ApplyARInvoiceBalance(ctx context.Context, invoiceID int64, applied decimal.Decimal) error
	Commit() error
	Rollback() error
}

// BeginFunc opens the transaction a plan runs in.
type BeginFunc func(ctx context.Context) (PlanTx, error)

// Effect is what the executor did for one plan movement or reconciliation,
// attributed back to the statement line(s) it settles.
type Effect struct {
	SourceIndex int

	// Covers lists further statement lines the same row settles
	// (aggregated movements).
	Covers []int

	Action domain.Action
	Folio  int64
	Note   string
}

// Result is the outcome of executing one plan.
type Result struct {
	Family  domain.Family
	Date    time.Time
	Effects []Effect

	// Folios lists every minted or touched folio in plan order.
	Folios []int64

	// DryRun is true when the transaction was rolled back on purpose.
	DryRun bool
}

// Executor runs plans. DryRun mode performs every read and write inside
// the transaction and then rolls back instead of committing, so the
// reported folios and idempotency outcomes are the real ones.
type Executor struct {
	begin  BeginFunc
	dryRun bool
	log    logrus.FieldLogger
	now    func() time.Time
}

// Option tweaks an Executor.
type Option func(*Executor)

// WithDryRun switches commit off.
func WithDryRun(dry bool) Option {
	return func(e *Executor) { e.dryRun = dry }
}

// WithClock injects the timestamp source used for audit columns.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New builds an executor over a transaction source.
func New(begin BeginFunc, log logrus.FieldLogger, opts ...Option) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Executor{begin: begin, log: log, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs one plan in one transaction. Plans with movements take the
// standard path; plans carrying only reconciliation flags take the
// batched-update path. An error means nothing was committed. Plan
// outcomes (lines decided at build time, with no DB effect) pass through
// as effects so callers read a single stream.
func (e *Executor) Execute(ctx context.Context, plan *domain.ExecutionPlan) (*Result, error) {
	res := &Result{Family: plan.Family, Date: plan.Date, DryRun: e.dryRun}
	for _, o := range plan.Outcomes {
		res.Effects = append(res.Effects, Effect{
			SourceIndex: o.SourceIndex,
			Action:      o.Action,
			Note:        o.Note,
		})
	}
	if plan.Empty() {
		return res, nil
	}
	if len(plan.Movements) == 0 {
		return e.reconcileOnly(ctx, plan, res)
	}
	return e.standard(ctx, plan, res)
}

// standard is the insert path of §movements: idempotency lookup, folio
// minting, dependency-ordered writes, and the AP/AR side effects hanging
// off minted movements.
func (e *Executor) standard(ctx context.Context, plan *domain.ExecutionPlan, res *Result) (*Result, error) {
	if err := plan.CheckShape(); err != nil {
		return nil, err
	}
	if err := plan.CheckBalance(); err != nil {
		return nil, err
	}

	tx, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := e.now()
	invCursor, lineCursor, apCursor := 0, 0, 0

	// Folio per plan-movement index; 0 marks a skipped movement whose
	// side effects were already applied by the run that created it.
	folioByMovement := make([]int64, len(plan.Movements))

	for i, mvmt := range plan.Movements {
		nInvoices := plan.InvoiceCount(i)
		nLines := plan.LineCount(i)

		existing, err := tx.LookupMovement(ctx, mvmt.Key())
		if err != nil {
			return nil, err
		}
		if existing != nil {
			// Idempotency branch: the row is already there. Cursors still
			// advance so the next movement slices its own rows.
			invCursor += nInvoices
			lineCursor += nLines
			if apCursor < len(plan.APInvoices) {
				apCursor++
			}
			if existing.Reconciled {
				res.Effects = append(res.Effects, Effect{
					SourceIndex: mvmt.SourceIndex,
					Covers:      mvmt.Covers,
					Action:      domain.ActionSkip,
					Note:        domain.NoteAlreadyReconciled,
				})
				continue
			}
			if err := tx.MarkReconciled(ctx, int64(existing.Folio)); err != nil {
				return nil, err
			}
			res.Effects = append(res.Effects, Effect{
				SourceIndex: mvmt.SourceIndex,
				Covers:      mvmt.Covers,
				Action:      domain.ActionReconcile,
				Folio:       int64(existing.Folio),
				Note:        domain.NoteReconciledNow,
			})
			res.Folios = append(res.Folios, int64(existing.Folio))
			continue
		}

		folio, err := tx.NextFolio(ctx)
		if err != nil {
			return nil, err
		}
		if err := tx.InsertMovement(ctx, folio, mvmt, now); err != nil {
			return nil, err
		}

		for j := 0; j < nInvoices; j++ {
			link := plan.Invoices[invCursor]
			invCursor++
			linkDate := link.InvoiceDate
			if linkDate.IsZero() {
				linkDate = mvmt.Date
			}
			if err := tx.InsertInvoiceLink(ctx, folio, linkDate, link); err != nil {
				return nil, err
			}
		}

		if apCursor < len(plan.APInvoices) {
			if _, err := tx.InsertAPInvoice(ctx, plan.APInvoices[apCursor], mvmt.Date); err != nil {
				return nil, err
			}
			apCursor++
		}

		if nLines > 0 {
			ledger, err := tx.NextLedgerNumber(ctx)
			if err != nil {
				return nil, err
			}
			lines := plan.Lines[lineCursor : lineCursor+nLines]
			lineCursor += nLines
			if err := tx.InsertLedgerLines(ctx, ledger, folio, mvmt.Date, mvmt.DocType, lines); err != nil {
				return nil, err
			}
			if err := tx.SetMovementLedger(ctx, folio, ledger); err != nil {
				return nil, err
			}
		}

		folioByMovement[i] = folio
		res.Effects = append(res.Effects, Effect{
			SourceIndex: mvmt.SourceIndex,
			Covers:      mvmt.Covers,
			Action:      domain.ActionInsert,
			Folio:       folio,
		})
		res.Folios = append(res.Folios, folio)
	}

	if err := e.applySettlements(ctx, tx, plan, folioByMovement); err != nil {
		return nil, err
	}
	if err := e.applyCollections(ctx, tx, plan, folioByMovement); err != nil {
		return nil, err
	}
	if err := e.applyReconciliations(ctx, tx, plan, res); err != nil {
		return nil, err
	}

	return e.finish(tx, plan, res)
}

// applySettlements writes the AP payment, its link and the balance update
// for every expense settlement whose movement was actually minted.
func (e *Executor) applySettlements(ctx context.Context, tx PlanTx, plan *domain.ExecutionPlan, folios []int64) error {
	for _, s := range plan.Settlements {
		if s.MovementIndex < 0 || s.MovementIndex >= len(folios) || folios[s.MovementIndex] == 0 {
			continue
		}
		mvmt := plan.Movements[s.MovementIndex]
		paymentID, err := tx.InsertAPPayment(ctx, s.Supplier, s.Amount, folios[s.MovementIndex], mvmt.Date)
		if err != nil {
			return err
		}
		if err := tx.InsertAPPaymentLink(ctx, paymentID, s.InvoiceID, s.Amount); err != nil {
			return err
		}
		if err := tx.ApplyAPInvoiceBalance(ctx, s.InvoiceID, s.Amount); err != nil {
			return err
		}
	}
	return nil
}

// applyCollections records AR collections and reduces the receivable for
// every collection whose movement was actually minted.
func (e *Executor) applyCollections(ctx context.Context, tx PlanTx, plan *domain.ExecutionPlan, folios []int64) error {
	for _, c := range plan.Collections {
		if c.MovementIndex < 0 || c.MovementIndex >= len(folios) || folios[c.MovementIndex] == 0 {
			continue
		}
		mvmt := plan.Movements[c.MovementIndex]
		if _, err := tx.InsertARCollection(ctx, c, folios[c.MovementIndex], mvmt.Date); err != nil {
			return err
		}
		if err := tx.ApplyARInvoiceBalance(ctx, c.InvoiceID, c.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) applyReconciliations(ctx context.Context, tx PlanTx, plan *domain.ExecutionPlan, res *Result) error {
	for _, rec := range plan.Reconciliations {
		if err := tx.MarkReconciled(ctx, int64(rec.Folio)); err != nil {
			return err
		}
		note := rec.Note
		if note == "" {
			note = domain.NoteReconciledNow
		}
		res.Effects = append(res.Effects, Effect{
			SourceIndex: rec.SourceIndex,
			Action:      domain.ActionReconcile,
			Folio:       int64(rec.Folio),
			Note:        note,
		})
		res.Folios = append(res.Folios, int64(rec.Folio))
	}
	return nil
}

// reconcileOnly is the batched-update path for plans that flip flags and
// insert nothing (supplier payments, collection phase B).
func (e *Executor) reconcileOnly(ctx context.Context, plan *domain.ExecutionPlan, res *Result) (*Result, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := e.applyReconciliations(ctx, tx, plan, res); err != nil {
		return nil, err
	}
	return e.finish(tx, plan, res)
}

// finish commits the transaction, or rolls it back in dry-run mode.
func (e *Executor) finish(tx PlanTx, plan *domain.ExecutionPlan, res *Result) (*Result, error) {
	if e.dryRun {
		if err := tx.Rollback(); err != nil {
			return nil, err
		}
		e.log.WithFields(logrus.Fields{
			"family":  plan.Family,
			"date":    plan.Date.Format("2006-01-02"),
			"effects": len(res.Effects),
		}).Info("Plan rolled back (dry run)")
		return res, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"family": plan.Family,
		"date":   plan.Date.Format("2006-01-02"),
		"folios": len(res.Folios),
	}).Info("Plan committed")
	return res, nil
}
