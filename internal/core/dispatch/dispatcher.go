// Package dispatch drives one reconciliation job: the runner walks the
// statement's dates in ascending order and the dispatcher routes each
// day's lines to the family processors in a fixed order, executing one
// plan per family. Plan failures never abort the job; the affected lines
// end the run as ERROR.
package dispatch

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/core/execute"
	"github.com/rmorelos/reconbank/internal/core/process"
)

// PlanExecutor commits one plan in one transaction. *execute.Executor
// satisfies it; dispatcher tests substitute a recorder.
type PlanExecutor interface {
	Execute(ctx context.Context, plan *domain.ExecutionPlan) (*execute.Result, error)
}

// Dispatcher routes one day's classified lines to the family processors.
type Dispatcher struct {
	procs    map[domain.Family]process.Processor
	exec     PlanExecutor
	edgeDays int
	tol      decimal.Decimal
	log      logrus.FieldLogger
}

// NewDispatcher registers the processors under their families. The job
// config supplies the month-edge width, the tolerances the cross-check
// threshold.
func NewDispatcher(exec PlanExecutor, procs []process.Processor, job config.JobConfig, tol config.TolerancesConfig, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	byFamily := make(map[domain.Family]process.Processor, len(procs))
	for _, p := range procs {
		byFamily[p.Family()] = p
	}
	return &Dispatcher{
		procs:    byFamily,
		exec:     exec,
		edgeDays: job.GetMonthEdgeDays(),
		tol:      tol.ValidateTol(),
		log:      log,
	}
}

// DayInput is the slate for one dispatch date.
type DayInput struct {
	Date time.Time

	// Today holds the date's own statement lines.
	Today []domain.BankMovement

	// Yesterday holds the previous date's delayed-kind lines; supplier
	// and expense payments settle one day late to guard against
	// reversals.
	Yesterday []domain.BankMovement

	Closes       []domain.DailyClose
	DepositDates []time.Time
	Payroll      *domain.Payroll
	Taxes        *domain.TaxBundle
}

// DayReport is everything one dispatch date produced: effects to merge
// into line results, plus the plans' warnings and validations. PlanErrors
// records family-level failures; the day still completes.
type DayReport struct {
	Date        time.Time
	Effects     []execute.Effect
	Warnings    []string
	Validations []string
	PlanErrors  []string
}

// DispatchDay routes one date. Lines that never reach a processor
// (transfer in-legs, unknowns, month-edge cash sales, held delayed
// payments) get their terminal effect here.
func (d *Dispatcher) DispatchDay(ctx context.Context, in DayInput) *DayReport {
	rep := &DayReport{Date: in.Date}
	groups := make(map[domain.Family][]domain.BankMovement)

	for _, mv := range in.Today {
		switch {
		case mv.Kind == domain.KindTransferIn:
			rep.Effects = append(rep.Effects, execute.Effect{
				SourceIndex: mv.Index,
				Action:      domain.ActionSkip,
				Note:        domain.NoteAutoGenerated,
			})
		case mv.Kind == domain.KindUnknown:
			rep.Effects = append(rep.Effects, execute.Effect{
				SourceIndex: mv.Index,
				Action:      domain.ActionUnknown,
				Note:        "no classification rule matches",
			})
		case mv.Kind == domain.KindCashSale && d.monthEdge(mv.Date):
			rep.Effects = append(rep.Effects, execute.Effect{
				SourceIndex: mv.Index,
				Action:      domain.ActionSkip,
				Note:        domain.NoteMonthEdge,
			})
		case mv.Kind.Delayed():
			rep.Effects = append(rep.Effects, execute.Effect{
				SourceIndex: mv.Index,
				Action:      domain.ActionNotProcessed,
				Note:        domain.NotePendingNextDay,
			})
		default:
			fam, ok := domain.FamilyOf(mv.Kind)
			if !ok {
				rep.Effects = append(rep.Effects, execute.Effect{
					SourceIndex: mv.Index,
					Action:      domain.ActionUnknown,
					Note:        "no classification rule matches",
				})
				continue
			}
			groups[fam] = append(groups[fam], mv)
		}
	}

	// Delayed pickup: yesterday's supplier and expense payments settle
	// on today's dispatch.
	for _, mv := range in.Yesterday {
		if !mv.Kind.Delayed() {
			continue
		}
		fam, _ := domain.FamilyOf(mv.Kind)
		groups[fam] = append(groups[fam], mv)
	}

	for _, fam := range domain.DispatchOrder {
		lines := groups[fam]
		if len(lines) == 0 {
			continue
		}
		d.runFamily(ctx, rep, fam, lines, in)
	}

	rep.Validations = append(rep.Validations,
		process.CrossChecks(in.Date, in.Today, in.Closes, in.DepositDates, in.Payroll, d.tol)...)
	return rep
}

func (d *Dispatcher) runFamily(ctx context.Context, rep *DayReport, fam domain.Family, lines []domain.BankMovement, in DayInput) {
	proc, ok := d.procs[fam]
	if !ok {
		d.failLines(rep, fam, lines, "no processor registered")
		return
	}

	plan, err := proc.BuildPlan(ctx, process.Input{
		Date:         in.Date,
		Movements:    lines,
		Closes:       in.Closes,
		DepositDates: in.DepositDates,
		Payroll:      in.Payroll,
		Taxes:        in.Taxes,
	})
	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"family": fam,
			"date":   in.Date.Format("2006-01-02"),
		}).Error("Plan construction failed")
		d.failLines(rep, fam, lines, err.Error())
		return
	}

	res, err := d.exec.Execute(ctx, plan)
	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"family": fam,
			"date":   in.Date.Format("2006-01-02"),
		}).Error("Plan execution failed")
		d.failLines(rep, fam, lines, err.Error())
		return
	}

	rep.Effects = append(rep.Effects, res.Effects...)
	rep.Warnings = append(rep.Warnings, plan.Warnings...)
	rep.Validations = append(rep.Validations, plan.Validations...)
}

// failLines marks every line of a failed family ERROR. The job goes on.
func (d *Dispatcher) failLines(rep *DayReport, fam domain.Family, lines []domain.BankMovement, msg string) {
	rep.PlanErrors = append(rep.PlanErrors, string(fam)+": "+msg)
	for _, mv := range lines {
		rep.Effects = append(rep.Effects, execute.Effect{
			SourceIndex: mv.Index,
			Action:      domain.ActionError,
			Note:        msg,
		})
	}
}

// monthEdge reports dates within edgeDays of either month boundary.
// Cross-month deposit-to-sale alignment is handled manually there.
func (d *Dispatcher) monthEdge(date time.Time) bool {
	last := time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, date.Location()).Day()
	return date.Day() <= d.edgeDays || date.Day() > last-d.edgeDays
}
