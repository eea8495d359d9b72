package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/classify"
	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/core/execute"
	"github.com/rmorelos/reconbank/internal/core/process"
)

const (
	cashAccount = "0154321001"
	cardAccount = "0154321002"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(d int) time.Time {
	return time.Date(2025, time.December, d, 0, 0, 0, 0, time.UTC)
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func line(idx int, d time.Time, account, desc string, kind domain.ProcessKind, amount string, dir domain.Direction) domain.BankMovement {
	return domain.BankMovement{
		Index:       idx,
		Bank:        "BANORTE",
		Account:     account,
		Date:        d,
		Description: desc,
		Amount:      amt(amount),
		Direction:   dir,
		Kind:        kind,
	}
}

// stubProcessor records its inputs and builds one zero-line movement per
// statement line unless a custom build is supplied.
type stubProcessor struct {
	family domain.Family
	inputs []process.Input
	build  func(in process.Input) (*domain.ExecutionPlan, error)
	order  *[]domain.Family
}

func (s *stubProcessor) Family() domain.Family { return s.family }

func (s *stubProcessor) BuildPlan(_ context.Context, in process.Input) (*domain.ExecutionPlan, error) {
	s.inputs = append(s.inputs, in)
	if s.order != nil {
		*s.order = append(*s.order, s.family)
	}
	if s.build != nil {
		return s.build(in)
	}
	plan := domain.NewPlan(s.family, in.Date)
	for _, mv := range in.Movements {
		plan.AppendMovement(domain.MovementRow{
			SourceIndex: mv.Index,
			Bank:        mv.Bank,
			Account:     mv.Account,
			Date:        mv.Date,
			Amount:      mv.Amount,
			Direction:   mv.Direction,
			Description: mv.Description,
		}, nil, nil)
	}
	return plan, nil
}

// stubExecutor mints folios the way the real executor reports them,
// without a database.
type stubExecutor struct {
	plans  []*domain.ExecutionPlan
	errFor map[domain.Family]error
	folio  int64
}

func (s *stubExecutor) Execute(_ context.Context, plan *domain.ExecutionPlan) (*execute.Result, error) {
	s.plans = append(s.plans, plan)
	if err := s.errFor[plan.Family]; err != nil {
		return nil, err
	}
	res := &execute.Result{Family: plan.Family, Date: plan.Date}
	for _, o := range plan.Outcomes {
		res.Effects = append(res.Effects, execute.Effect{
			SourceIndex: o.SourceIndex, Action: o.Action, Note: o.Note,
		})
	}
	for _, mv := range plan.Movements {
		s.folio++
		res.Effects = append(res.Effects, execute.Effect{
			SourceIndex: mv.SourceIndex, Covers: mv.Covers,
			Action: domain.ActionInsert, Folio: s.folio,
		})
		res.Folios = append(res.Folios, s.folio)
	}
	for _, rec := range plan.Reconciliations {
		res.Effects = append(res.Effects, execute.Effect{
			SourceIndex: rec.SourceIndex, Action: domain.ActionReconcile,
			Folio: int64(rec.Folio), Note: rec.Note,
		})
		res.Folios = append(res.Folios, int64(rec.Folio))
	}
	return res, nil
}

func allStubs(order *[]domain.Family) []process.Processor {
	procs := make([]process.Processor, 0, len(domain.DispatchOrder))
	for _, fam := range domain.DispatchOrder {
		procs = append(procs, &stubProcessor{family: fam, order: order})
	}
	return procs
}

func stubByFamily(procs []process.Processor, fam domain.Family) *stubProcessor {
	for _, p := range procs {
		if p.Family() == fam {
			return p.(*stubProcessor)
		}
	}
	return nil
}

func TestDispatchFamilyOrder(t *testing.T) {
	d := day(15)
	var order []domain.Family
	procs := allStubs(&order)
	disp := NewDispatcher(&stubExecutor{}, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog())

	today := []domain.BankMovement{
		line(0, d, cashAccount, "PAGO IMPUESTOS SAT", domain.KindTaxFederal, "100.00", domain.DirOut),
		line(1, d, cashAccount, "DEPOSITO EFECTIVO", domain.KindCashSale, "200.00", domain.DirIn),
		line(2, d, cardAccount, "DEPOSITO TARJETA TDC", domain.KindCardCreditSale, "300.00", domain.DirIn),
		line(3, d, cashAccount, "COMISION SPEI", domain.KindFeeWire, "6.00", domain.DirOut),
		line(4, d, cashAccount, "TRASPASO A CUENTA: 0154321002", domain.KindTransferOut, "400.00", domain.DirOut),
		line(5, d, cashAccount, "DISPERSION NOMINA", domain.KindPayroll, "500.00", domain.DirOut),
		line(6, d, cashAccount, "CHEQUE PAGADO", domain.KindCheckCashed, "50.00", domain.DirOut),
		line(7, d, cashAccount, "COBRANZA CLIENTE", domain.KindCustomerCollection, "70.00", domain.DirIn),
	}
	rep := disp.DispatchDay(context.Background(), DayInput{Date: d, Today: today})
	require.Empty(t, rep.PlanErrors)

	require.Equal(t, []domain.Family{
		domain.FamilyTransfers,
		domain.FamilyFees,
		domain.FamilyCardSales,
		domain.FamilyCashSales,
		domain.FamilyPayroll,
		domain.FamilyChecks,
		domain.FamilyCollections,
		domain.FamilyTaxes,
	}, order, "families run in the fixed order regardless of statement order")
}

func TestDispatchLinesNeverReachingAProcessor(t *testing.T) {
	d := day(15)
	procs := allStubs(nil)
	disp := NewDispatcher(&stubExecutor{}, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog())

	t.Run("transfer in-legs are skipped as auto-generated", func(t *testing.T) {
		rep := disp.DispatchDay(context.Background(), DayInput{Date: d, Today: []domain.BankMovement{
			line(0, d, cardAccount, "TRASPASO RECIBIDO", domain.KindTransferIn, "400.00", domain.DirIn),
		}})
		require.Len(t, rep.Effects, 1)
		require.Equal(t, domain.ActionSkip, rep.Effects[0].Action)
		require.Equal(t, domain.NoteAutoGenerated, rep.Effects[0].Note)
		require.Empty(t, stubByFamily(procs, domain.FamilyTransfers).inputs)
	})

	t.Run("unknown lines get the UNKNOWN action", func(t *testing.T) {
		rep := disp.DispatchDay(context.Background(), DayInput{Date: d, Today: []domain.BankMovement{
			line(1, d, cashAccount, "XYZZY", domain.KindUnknown, "1.00", domain.DirOut),
		}})
		require.Len(t, rep.Effects, 1)
		require.Equal(t, domain.ActionUnknown, rep.Effects[0].Action)
	})
}

func TestDispatchMonthEdgeCashSales(t *testing.T) {
	procs := allStubs(nil)
	disp := NewDispatcher(&stubExecutor{}, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog())
	cash := stubByFamily(procs, domain.FamilyCashSales)

	// December has 31 days: days 1-4 and 28-31 are the edges.
	for _, d := range []time.Time{day(2), day(4), day(28), day(31)} {
		rep := disp.DispatchDay(context.Background(), DayInput{Date: d, Today: []domain.BankMovement{
			line(0, d, cashAccount, "DEPOSITO EFECTIVO", domain.KindCashSale, "100.00", domain.DirIn),
		}})
		require.Len(t, rep.Effects, 1, "day %d", d.Day())
		require.Equal(t, domain.ActionSkip, rep.Effects[0].Action)
		require.Equal(t, domain.NoteMonthEdge, rep.Effects[0].Note)
	}
	require.Empty(t, cash.inputs, "edge days never reach the processor")

	mid := day(15)
	rep := disp.DispatchDay(context.Background(), DayInput{Date: mid, Today: []domain.BankMovement{
		line(0, mid, cashAccount, "DEPOSITO EFECTIVO", domain.KindCashSale, "100.00", domain.DirIn),
	}})
	require.Len(t, cash.inputs, 1)
	require.Len(t, rep.Effects, 1)
	require.Equal(t, domain.ActionInsert, rep.Effects[0].Action)
}

func TestDispatchDelayedPayments(t *testing.T) {
	d := day(16)
	procs := allStubs(nil)
	disp := NewDispatcher(&stubExecutor{}, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog())
	suppliers := stubByFamily(procs, domain.FamilySuppliers)

	supplierToday := line(0, d, cashAccount, "SPEI ENVIADO PROV", domain.KindSupplierPayment, "900.00", domain.DirOut)
	supplierYesterday := line(1, d.AddDate(0, 0, -1), cashAccount, "SPEI ENVIADO PROV", domain.KindSupplierPayment, "700.00", domain.DirOut)

	rep := disp.DispatchDay(context.Background(), DayInput{
		Date:      d,
		Today:     []domain.BankMovement{supplierToday},
		Yesterday: []domain.BankMovement{supplierYesterday},
	})

	var held, settled bool
	for _, eff := range rep.Effects {
		switch eff.SourceIndex {
		case 0:
			require.Equal(t, domain.ActionNotProcessed, eff.Action)
			require.Equal(t, domain.NotePendingNextDay, eff.Note)
			held = true
		case 1:
			require.Equal(t, domain.ActionInsert, eff.Action)
			settled = true
		}
	}
	require.True(t, held, "own-day supplier payment is held")
	require.True(t, settled, "previous day's payment settles today")

	require.Len(t, suppliers.inputs, 1)
	require.Equal(t, d, suppliers.inputs[0].Date, "delayed pickup substitutes the dispatch date")
	require.Len(t, suppliers.inputs[0].Movements, 1)
	require.Equal(t, 1, suppliers.inputs[0].Movements[0].Index)
}

func TestDispatchFailuresIsolatePerFamily(t *testing.T) {
	d := day(15)

	t.Run("plan construction error", func(t *testing.T) {
		procs := allStubs(nil)
		stubByFamily(procs, domain.FamilyFees).build = func(process.Input) (*domain.ExecutionPlan, error) {
			return nil, errors.New("fee catalog missing")
		}
		disp := NewDispatcher(&stubExecutor{}, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog())

		rep := disp.DispatchDay(context.Background(), DayInput{Date: d, Today: []domain.BankMovement{
			line(0, d, cashAccount, "COMISION", domain.KindFeeWire, "6.00", domain.DirOut),
			line(1, d, cashAccount, "DEPOSITO EFECTIVO", domain.KindCashSale, "100.00", domain.DirIn),
		}})
		require.Len(t, rep.PlanErrors, 1)
		require.Contains(t, rep.PlanErrors[0], "fee catalog missing")

		byIdx := map[int]execute.Effect{}
		for _, eff := range rep.Effects {
			byIdx[eff.SourceIndex] = eff
		}
		require.Equal(t, domain.ActionError, byIdx[0].Action)
		require.Equal(t, domain.ActionInsert, byIdx[1].Action, "other families still run")
	})

	t.Run("execution error", func(t *testing.T) {
		procs := allStubs(nil)
		exec := &stubExecutor{errFor: map[domain.Family]error{
			domain.FamilyCashSales: errors.New("deadlock victim"),
		}}
		disp := NewDispatcher(exec, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog())

		rep := disp.DispatchDay(context.Background(), DayInput{Date: d, Today: []domain.BankMovement{
			line(0, d, cashAccount, "DEPOSITO EFECTIVO", domain.KindCashSale, "100.00", domain.DirIn),
		}})
		require.Len(t, rep.Effects, 1)
		require.Equal(t, domain.ActionError, rep.Effects[0].Action)
		require.Contains(t, rep.Effects[0].Note, "deadlock victim")
	})
}

func testClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	registry, err := config.NewRegistry([]config.BankAccount{
		{Number: cashAccount, Institution: "BMX", Name: "Operating", Role: config.RoleCash, LedgerAccount: "1120", LedgerSub: "040000"},
		{Number: cardAccount, Institution: "BMX", Name: "Cards", Role: config.RoleCard, LedgerAccount: "1120", LedgerSub: "060000"},
	})
	require.NoError(t, err)
	c, err := classify.NewDefault(registry)
	require.NoError(t, err)
	return c
}

func TestRunWindowValidation(t *testing.T) {
	r := NewRunner(testClassifier(t), NewDispatcher(&stubExecutor{}, allStubs(nil), config.JobConfig{}, config.TolerancesConfig{}, quietLog()),
		config.JobConfig{}, quietLog())

	t.Run("inverted window", func(t *testing.T) {
		_, err := r.Run(context.Background(), RunInput{From: day(9), To: day(8)})
		require.Error(t, err)
	})

	t.Run("window over the cap", func(t *testing.T) {
		_, err := r.Run(context.Background(), RunInput{From: day(1), To: day(8)})
		require.Error(t, err)
		require.Contains(t, err.Error(), "7-day cap")
	})

	t.Run("cap-sized window passes", func(t *testing.T) {
		res, err := r.Run(context.Background(), RunInput{From: day(8), To: day(14)})
		require.NoError(t, err)
		require.NotEmpty(t, res.ID)
	})
}

func TestRunMergesEffectsAcrossDays(t *testing.T) {
	procs := allStubs(nil)

	// The transfer out-leg mints both legs; the statement line accrues
	// both folios.
	stubByFamily(procs, domain.FamilyTransfers).build = func(in process.Input) (*domain.ExecutionPlan, error) {
		plan := domain.NewPlan(domain.FamilyTransfers, in.Date)
		for _, mv := range in.Movements {
			out := domain.MovementRow{SourceIndex: mv.Index, Bank: mv.Bank, Account: mv.Account,
				Date: mv.Date, Amount: mv.Amount, Direction: domain.DirOut}
			in2 := domain.MovementRow{SourceIndex: mv.Index, Bank: mv.Bank, Account: mv.DestAccount,
				Date: mv.Date, Amount: mv.Amount, Direction: domain.DirIn}
			plan.AppendMovement(out, nil, nil)
			plan.AppendMovement(in2, nil, nil)
		}
		return plan, nil
	}
	stubByFamily(procs, domain.FamilySuppliers).build = func(in process.Input) (*domain.ExecutionPlan, error) {
		plan := domain.NewPlan(domain.FamilySuppliers, in.Date)
		for _, mv := range in.Movements {
			plan.AppendReconciliation(domain.Reconciliation{
				SourceIndex: mv.Index, Folio: 555, Note: domain.NoteReconciledNow,
			})
		}
		return plan, nil
	}

	exec := &stubExecutor{}
	r := NewRunner(testClassifier(t),
		NewDispatcher(exec, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog()),
		config.JobConfig{Mode: "commit"}, quietLog())

	d8, d9 := day(8), day(9)
	statement := []domain.BankMovement{
		{Bank: "BANORTE", Account: cashAccount, Date: d8, Description: "DEPOSITO EFECTIVO SUC 0123", Amount: amt("8500.00"), Direction: domain.DirIn},
		{Bank: "BANORTE", Account: cashAccount, Date: d8, Description: "TRASPASO A LA CUENTA: 0154321002", Amount: amt("500000.00"), Direction: domain.DirOut},
		{Bank: "BANORTE", Account: cardAccount, Date: d8, Description: "TRASPASO RECIBIDO", Amount: amt("500000.00"), Direction: domain.DirIn},
		{Bank: "BANORTE", Account: cashAccount, Date: d8, Description: "SPEI ENVIADO BANAMEX PROV ACME", Amount: amt("17400.00"), Direction: domain.DirOut},
		{Bank: "BANORTE", Account: cashAccount, Date: d8, Description: "XYZZY 000", Amount: amt("1.00"), Direction: domain.DirOut},
	}

	res, err := r.Run(context.Background(), RunInput{From: d8, To: d9, Statement: statement})
	require.NoError(t, err)
	require.False(t, res.DryRun)
	require.Len(t, res.Results, 5)

	cashRes := res.Results[0]
	require.Equal(t, domain.KindCashSale, cashRes.Kind)
	require.Equal(t, domain.ActionInsert, cashRes.Action)
	require.Len(t, cashRes.Folios, 1)

	transferRes := res.Results[1]
	require.Equal(t, domain.KindTransferOut, transferRes.Kind)
	require.Equal(t, domain.ActionInsert, transferRes.Action)
	require.Len(t, transferRes.Folios, 2, "out-leg line accrues both legs' folios")

	inRes := res.Results[2]
	require.Equal(t, domain.ActionSkip, inRes.Action)
	require.Equal(t, domain.NoteAutoGenerated, inRes.Note)

	supplierRes := res.Results[3]
	require.Equal(t, domain.KindSupplierPayment, supplierRes.Kind)
	require.Equal(t, domain.ActionReconcile, supplierRes.Action, "next-day pickup overrides the hold")
	require.Equal(t, domain.NoteReconciledNow, supplierRes.Note)
	require.Equal(t, []int{555}, supplierRes.Folios)

	unknownRes := res.Results[4]
	require.Equal(t, domain.ActionUnknown, unknownRes.Action)

	require.Equal(t, 2, res.Summary[domain.ActionInsert])
	require.Equal(t, 1, res.Summary[domain.ActionReconcile])
	require.Equal(t, 1, res.Summary[domain.ActionSkip])
	require.Equal(t, 1, res.Summary[domain.ActionUnknown])
}

func TestRunComputesCardDepositDates(t *testing.T) {
	procs := allStubs(nil)
	card := stubByFamily(procs, domain.FamilyCardSales)
	r := NewRunner(testClassifier(t),
		NewDispatcher(&stubExecutor{}, procs, config.JobConfig{}, config.TolerancesConfig{}, quietLog()),
		config.JobConfig{}, quietLog())

	statement := []domain.BankMovement{
		{Bank: "BANORTE", Account: cardAccount, Date: day(10), Description: "DEPOSITO TARJETA TDC", Amount: amt("100.00"), Direction: domain.DirIn},
		{Bank: "BANORTE", Account: cardAccount, Date: day(8), Description: "DEPOSITO TARJETA TDD", Amount: amt("200.00"), Direction: domain.DirIn},
	}
	_, err := r.Run(context.Background(), RunInput{From: day(8), To: day(10), Statement: statement})
	require.NoError(t, err)

	require.NotEmpty(t, card.inputs)
	require.Equal(t, []time.Time{day(8), day(10)}, card.inputs[0].DepositDates, "ascending, deduplicated")
}

func TestRunResetsPayrollMatches(t *testing.T) {
	payroll := domain.NewPayroll("2025-12-Q1", amt("100000.00"), amt("5000.00"),
		decimal.Zero, decimal.Zero, nil, nil)
	payroll.Secondaries[0].Matched = true

	r := NewRunner(testClassifier(t),
		NewDispatcher(&stubExecutor{}, allStubs(nil), config.JobConfig{}, config.TolerancesConfig{}, quietLog()),
		config.JobConfig{}, quietLog())
	_, err := r.Run(context.Background(), RunInput{From: day(8), To: day(8), Payroll: payroll})
	require.NoError(t, err)
	require.False(t, payroll.Secondaries[0].Matched, "bucket consumption never leaks across jobs")
}
