package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/classify"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

// RunInput is one job: a statement window plus the side-channel data
// loaded for it.
type RunInput struct {
	From, To  time.Time
	Statement []domain.BankMovement
	Closes    []domain.DailyClose
	Payroll   *domain.Payroll
	Taxes     *domain.TaxBundle
}

// JobResult is the terminal outcome of a run: one LineResult per
// statement line, summary counts per action, and the accumulated
// warnings, validations and plan errors.
type JobResult struct {
	ID       string
	From, To time.Time
	DryRun   bool

	Results     []domain.LineResult
	Summary     map[domain.Action]int
	Warnings    []string
	Validations []string
	PlanErrors  []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner walks a job's dates in ascending order, dispatching each one.
type Runner struct {
	classifier *classify.Classifier
	disp       *Dispatcher
	maxDays    int
	dryRun     bool
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewRunner wires the classifier and dispatcher under the job policy.
func NewRunner(classifier *classify.Classifier, disp *Dispatcher, job config.JobConfig, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		classifier: classifier,
		disp:       disp,
		maxDays:    job.GetMaxWindowDays(),
		dryRun:     job.DryRun(),
		log:        log,
		now:        time.Now,
	}
}

// Run executes one job. Dates run ascending; within a date, families run
// in the fixed dispatch order. Every statement line ends with exactly one
// terminal action.
func (r *Runner) Run(ctx context.Context, in RunInput) (*JobResult, error) {
	from, to := dateOnly(in.From), dateOnly(in.To)
	if to.Before(from) {
		return nil, fmt.Errorf("job window: to %s before from %s",
			to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > r.maxDays {
		return nil, fmt.Errorf("job window: %d days exceeds the %d-day cap", days, r.maxDays)
	}

	job := &JobResult{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		DryRun:    r.dryRun,
		StartedAt: r.now(),
	}
	log := r.log.WithField("job", job.ID)
	log.WithFields(logrus.Fields{
		"from":  from.Format("2006-01-02"),
		"to":    to.Format("2006-01-02"),
		"lines": len(in.Statement),
		"dry":   r.dryRun,
	}).Info("Job started")

	// The runner owns line attribution; indices are positional.
	for i := range in.Statement {
		in.Statement[i].Index = i
	}
	r.classifier.Apply(in.Statement)
	if in.Payroll != nil {
		in.Payroll.ResetMatches()
	}

	depositDates := cardDepositDates(in.Statement)

	// One pre-filled slot per line; untouched lines end NOT_PROCESSED.
	slots := make([]domain.LineResult, len(in.Statement))
	for i, mv := range in.Statement {
		slots[i] = domain.LineResult{Movement: mv, Kind: mv.Kind, Action: domain.ActionNotProcessed}
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep := r.disp.DispatchDay(ctx, DayInput{
			Date:         d,
			Today:        linesOn(in.Statement, d),
			Yesterday:    linesOn(in.Statement, d.AddDate(0, 0, -1)),
			Closes:       in.Closes,
			DepositDates: depositDates,
			Payroll:      in.Payroll,
			Taxes:        in.Taxes,
		})
		for _, eff := range rep.Effects {
			applyEffect(slots, eff.SourceIndex, eff.Action, eff.Folio, eff.Note)
			for _, covered := range eff.Covers {
				applyEffect(slots, covered, eff.Action, eff.Folio, eff.Note)
			}
		}
		job.Warnings = append(job.Warnings, rep.Warnings...)
		job.Validations = append(job.Validations, rep.Validations...)
		job.PlanErrors = append(job.PlanErrors, rep.PlanErrors...)
	}

	job.Results = slots
	job.Summary = domain.CountByAction(slots)
	job.FinishedAt = r.now()

	fields := logrus.Fields{"duration": job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond)}
	for action, n := range job.Summary {
		fields[string(action)] = n
	}
	log.WithFields(fields).Info("Job finished")
	return job, nil
}

// actionRank orders terminal actions when several effects land on one
// line (a delayed hold overridden by the next day's settlement, a
// transfer line accruing both legs). Higher wins; equals accumulate
// folios.
func actionRank(a domain.Action) int {
	switch a {
	case domain.ActionInsert:
		return 6
	case domain.ActionReconcile:
		return 5
	case domain.ActionError:
		return 4
	case domain.ActionNeedsReview:
		return 3
	case domain.ActionSkip:
		return 2
	case domain.ActionUnknown:
		return 1
	default:
		return 0
	}
}

func applyEffect(slots []domain.LineResult, idx int, action domain.Action, folio int64, note string) {
	if idx < 0 || idx >= len(slots) {
		return
	}
	slot := &slots[idx]
	newRank, oldRank := actionRank(action), actionRank(slot.Action)
	switch {
	case newRank > oldRank:
		slot.Action = action
		slot.Note = note
	case newRank == oldRank && slot.Note == "":
		slot.Note = note
	}
	if folio > 0 && newRank >= oldRank {
		slot.Folios = append(slot.Folios, int(folio))
	}
}

// cardDepositDates extracts the distinct card-deposit dates, ascending.
// The deposit assigner derives each look-back window from the gap to the
// previous date.
func cardDepositDates(statement []domain.BankMovement) []time.Time {
	seen := make(map[time.Time]bool)
	for _, mv := range statement {
		if mv.Kind != domain.KindCardCreditSale && mv.Kind != domain.KindCardDebitSale {
			continue
		}
		seen[dateOnly(mv.Date)] = true
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func linesOn(statement []domain.BankMovement, d time.Time) []domain.BankMovement {
	var out []domain.BankMovement
	for _, mv := range statement {
		if sameDay(mv.Date, d) {
			out = append(out, mv)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
