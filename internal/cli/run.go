package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/classify"
	"github.com/rmorelos/reconbank/internal/core/dispatch"
	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/core/execute"
	"github.com/rmorelos/reconbank/internal/core/process"
	"github.com/rmorelos/reconbank/internal/report"
	"github.com/rmorelos/reconbank/internal/sidechannel"
	"github.com/rmorelos/reconbank/internal/storage/gateway"
)

const dateLayout = "2006-01-02"

var (
	// Window flags
	runFrom string
	runTo   string
	runDate string

	// Mode flags
	runCommit bool
	runDryRun bool

	// Source flags; anything left empty is discovered by convention
	// inside --sources (default paths.incoming).
	runSources   string
	runStatement string
	runCloses    string
	runPayroll   string
	runFederal   []string
	runState     string
	runSocial    string

	// Petty-cash maintenance flags
	pettyAmount  string
	pettyAccount string
	pettyToBank  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile a statement window against the ERP",
	Long: `Run loads the side-channel sources for the window, classifies every
statement line, builds one plan per movement family per day and hands the
plans to the executor. In dry-run mode (the default) every transaction is
rolled back after validation; --commit makes the run permanent.

With --petty-cash AMOUNT the statement flow is skipped entirely and a
single petty-cash transfer is booked instead.`,
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFrom, "from", "", "window start (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runTo, "to", "", "window end, inclusive (default --from)")
	runCmd.Flags().StringVar(&runDate, "date", "", "single-day shorthand for --from/--to")

	runCmd.Flags().BoolVar(&runCommit, "commit", false, "execute plans against the database")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "build and validate plans, then roll back")

	runCmd.Flags().StringVar(&runSources, "sources", "", "directory scanned for conventionally named source files")
	runCmd.Flags().StringVar(&runStatement, "statement", "", "bank statement workbook (.xlsx)")
	runCmd.Flags().StringVar(&runCloses, "closes", "", "daily-close workbook (.xlsx)")
	runCmd.Flags().StringVar(&runPayroll, "payroll", "", "payroll summary workbook (.xlsx)")
	runCmd.Flags().StringSliceVar(&runFederal, "federal", nil, "federal tax acknowledgment PDFs")
	runCmd.Flags().StringVar(&runState, "state", "", "state payroll-tax slip PDF")
	runCmd.Flags().StringVar(&runSocial, "social", "", "social-security summary PDF")

	runCmd.Flags().StringVar(&pettyAmount, "petty-cash", "", "book a petty-cash transfer of this amount instead of running a window")
	runCmd.Flags().StringVar(&pettyAccount, "petty-account", "", "bank account number for --petty-cash (default the CASH account)")
	runCmd.Flags().BoolVar(&pettyToBank, "petty-to-bank", false, "reverse the transfer: return petty cash to the bank")
}

func runJob(cmd *cobra.Command, args []string) error {
	if runCommit && runDryRun {
		return fmt.Errorf("--commit and --dry-run are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runCommit {
		cfg.Job.Mode = "commit"
	} else if runDryRun {
		cfg.Job.Mode = "dry-run"
	}
	log.WithField("config", cfg.String()).Info("Configuration loaded")

	gw, err := gateway.Open(ctx, cfg.Database, cfg.Company, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	deps := process.Deps{
		Registry: cfg.Registry(),
		Catalog:  cfg.Catalog(),
		Tol:      cfg.Tolerances,
		Store:    gw,
		Log:      log,
	}
	exec := execute.New(func(ctx context.Context) (execute.PlanTx, error) {
		return gw.Begin(ctx)
	}, log, execute.WithDryRun(cfg.Job.DryRun()))

	if pettyAmount != "" {
		return runPettyCash(ctx, cfg, deps, exec)
	}

	from, to, err := jobWindow()
	if err != nil {
		return err
	}

	loader, err := sidechannel.NewLoader(cfg.Registry(), log)
	if err != nil {
		return err
	}
	src := sidechannel.Sources{
		Statement: runStatement,
		Closes:    runCloses,
		Payroll:   runPayroll,
		Federal:   runFederal,
		State:     runState,
		Social:    runSocial,
	}
	dir := runSources
	if dir == "" {
		dir = cfg.Paths.Incoming
	}
	if dir != "" {
		src = sidechannel.Discover(dir, src)
	}
	bundle, err := loader.LoadAll(ctx, src, from)
	if err != nil {
		return err
	}

	classifier, err := classify.NewDefault(cfg.Registry())
	if err != nil {
		return err
	}
	disp := dispatch.NewDispatcher(exec, processors(deps), cfg.Job, cfg.Tolerances, log)
	runner := dispatch.NewRunner(classifier, disp, cfg.Job, log)

	res, err := runner.Run(ctx, dispatch.RunInput{
		From:      from,
		To:        to,
		Statement: bundle.Statement,
		Closes:    bundle.Closes,
		Payroll:   bundle.Payroll,
		Taxes:     bundle.Taxes,
	})
	if err != nil {
		return err
	}
	res.Warnings = append(bundle.Warnings, res.Warnings...)

	writer := report.NewWriter(cfg.Paths, log)
	logPath, err := writer.WriteJSON(res)
	if err != nil {
		return err
	}
	reportPath, err := writer.WriteExcel(res)
	if err != nil {
		return err
	}
	printSummary(res, logPath, reportPath)

	if !cfg.Job.DryRun() {
		archiveStatement(cfg, src.Statement, len(res.PlanErrors) == 0)
	}
	if n := len(res.PlanErrors); n > 0 {
		return fmt.Errorf("%d plan(s) failed, see %s", n, logPath)
	}
	return nil
}

// jobWindow resolves the --from/--to/--date flags into an inclusive window.
func jobWindow() (time.Time, time.Time, error) {
	var zero time.Time
	if runDate != "" {
		if runFrom != "" || runTo != "" {
			return zero, zero, fmt.Errorf("--date excludes --from and --to")
		}
		d, err := time.Parse(dateLayout, runDate)
		if err != nil {
			return zero, zero, fmt.Errorf("bad --date %q: want YYYY-MM-DD", runDate)
		}
		return d, d, nil
	}
	if runFrom == "" {
		return zero, zero, fmt.Errorf("--from or --date is required")
	}
	from, err := time.Parse(dateLayout, runFrom)
	if err != nil {
		return zero, zero, fmt.Errorf("bad --from %q: want YYYY-MM-DD", runFrom)
	}
	to := from
	if runTo != "" {
		to, err = time.Parse(dateLayout, runTo)
		if err != nil {
			return zero, zero, fmt.Errorf("bad --to %q: want YYYY-MM-DD", runTo)
		}
	}
	return from, to, nil
}

// processors builds one instance of every movement-family processor.
func processors(deps process.Deps) []process.Processor {
	return []process.Processor{
		process.NewTransfers(deps),
		process.NewFees(deps),
		process.NewCardSales(deps),
		process.NewCashSales(deps),
		process.NewPayrollDispersion(deps),
		process.NewCashedChecks(deps),
		process.NewExpensePayments(deps),
		process.NewSupplierPayments(deps),
		process.NewCollections(deps),
		process.NewTaxes(deps),
	}
}

// runPettyCash books a single transfer between a bank account and the
// petty-cash pseudo-account, outside the statement flow.
func runPettyCash(ctx context.Context, cfg *config.Config, deps process.Deps, exec *execute.Executor) error {
	amount, err := decimal.NewFromString(pettyAmount)
	if err != nil {
		return fmt.Errorf("bad --petty-cash amount %q: %w", pettyAmount, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("--petty-cash amount must be positive, got %s", amount)
	}

	now := time.Now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if runDate != "" {
		date, err = time.Parse(dateLayout, runDate)
		if err != nil {
			return fmt.Errorf("bad --date %q: want YYYY-MM-DD", runDate)
		}
	}

	account := pettyAccount
	if account == "" {
		cash := cfg.Registry().Cash()
		if cash == nil {
			return fmt.Errorf("no CASH account configured, use --petty-account")
		}
		account = cash.Number
	}

	plan, err := process.NewTransfers(deps).PettyCashPlan(date, account, amount, !pettyToBank)
	if err != nil {
		return err
	}
	res, err := exec.Execute(ctx, plan)
	if err != nil {
		return err
	}

	mode := "commit"
	if res.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("Petty-cash transfer of %s booked for %s (%s)\n",
		amount.StringFixed(2), date.Format(dateLayout), mode)
	for _, f := range res.Folios {
		fmt.Printf("  folio %d\n", f)
	}
	return nil
}

var summaryOrder = []domain.Action{
	domain.ActionInsert,
	domain.ActionReconcile,
	domain.ActionSkip,
	domain.ActionNotProcessed,
	domain.ActionNeedsReview,
	domain.ActionError,
	domain.ActionUnknown,
}

func printSummary(res *dispatch.JobResult, logPath, reportPath string) {
	mode := "commit"
	if res.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("Run %s finished (%s)\n", res.ID, mode)
	fmt.Printf("  window:  %s .. %s\n", res.From.Format(dateLayout), res.To.Format(dateLayout))
	fmt.Printf("  lines:   %d\n", len(res.Results))
	for _, a := range summaryOrder {
		if n := res.Summary[a]; n > 0 {
			fmt.Printf("  %-14s %d\n", string(a)+":", n)
		}
	}
	if n := len(res.Warnings); n > 0 {
		fmt.Printf("  warnings:      %d\n", n)
	}
	if n := len(res.Validations); n > 0 {
		fmt.Printf("  validations:   %d\n", n)
	}
	if n := len(res.PlanErrors); n > 0 {
		fmt.Printf("  plan errors:   %d\n", n)
	}
	fmt.Printf("  log:     %s\n", logPath)
	fmt.Printf("  report:  %s\n", reportPath)
}

// archiveStatement moves a statement that arrived through the incoming
// directory to processed/ or error/. Files referenced from anywhere else
// stay where they are.
func archiveStatement(cfg *config.Config, path string, clean bool) {
	if path == "" || cfg.Paths.Incoming == "" {
		return
	}
	rel, err := filepath.Rel(cfg.Paths.Incoming, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	dest := cfg.Paths.Processed
	if !clean {
		dest = cfg.Paths.Error
	}
	if dest == "" {
		return
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		log.WithError(err).Warn("Could not archive statement")
		return
	}
	target := filepath.Join(dest, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		log.WithError(err).Warn("Could not archive statement")
		return
	}
	log.WithField("to", target).Info("Statement archived")
}
