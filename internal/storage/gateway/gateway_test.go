package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

func testCompany() config.CompanyConfig {
	return config.CompanyConfig{
		Code:      "01",
		Office:    "001",
		Branch:    "MATRIZ",
		Source:    "BANK-MVMT",
		CreatedBy: "RECONBANK",
		Currency:  "MXN",
		FX:        1,
	}
}

func setupGateway(t *testing.T) (*Gateway, context.Context) {
	t.Helper()
	ctx := context.Background()

	dbCfg := config.DatabaseConfig{
		Drivers:        []string{"sqlite"},
		SQLitePath:     filepath.Join(t.TempDir(), "gateway_test.db"),
		LegacyEncoding: true,
	}
	g, err := Open(ctx, dbCfg, testCompany(), nil)
	require.NoError(t, err, "Open should bootstrap a sqlite gateway")
	t.Cleanup(func() { _ = g.Close() })
	return g, ctx
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func testMovementRow(date time.Time, amount decimal.Decimal) domain.MovementRow {
	return domain.MovementRow{
		SourceIndex:   0,
		Bank:          "072",
		Account:       "0441234567",
		Date:          date,
		Amount:        amount,
		Direction:     domain.DirIn,
		Description:   "DEPOSITO EN EFECTIVO",
		Class:         domain.ClassDailySale,
		PaymentMethod: domain.PayMethodCash,
		LedgerKind:    domain.LedgerIncome,
		Reconciled:    true,
	}
}

func TestOpenFallsBackAcrossCandidates(t *testing.T) {
	ctx := context.Background()
	dbCfg := config.DatabaseConfig{
		Drivers:               []string{"sqlserver", "sqlite"},
		Host:                  "127.0.0.1",
		Port:                  1,
		Name:                  "erp",
		User:                  "u",
		Password:              "p",
		SQLitePath:            filepath.Join(t.TempDir(), "fallback.db"),
		ConnectTimeoutSeconds: 1,
	}

	g, err := Open(ctx, dbCfg, testCompany(), nil)
	require.NoError(t, err, "sqlite candidate should win after sqlserver fails")
	defer g.Close()
	require.Equal(t, DialectSQLite, g.Dialect())
	require.NoError(t, g.Ping(ctx))
}

func TestOpenNoCandidates(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{}, testCompany(), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoDriverAvailable))
}

func TestFolioMinting(t *testing.T) {
	g, ctx := setupGateway(t)
	date := time.Date(2025, time.December, 8, 0, 0, 0, 0, time.UTC)

	t.Run("folios are monotonic across transactions", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			tx, err := g.Begin(ctx)
			require.NoError(t, err)

			folio, err := tx.NextFolio(ctx)
			require.NoError(t, err)
			require.Equal(t, want, folio)

			row := testMovementRow(date, decimal.NewFromInt(1000+want))
			require.NoError(t, tx.InsertMovement(ctx, folio, row, date))
			require.NoError(t, tx.Commit())
		}
	})

	t.Run("ledger numbers are scoped to the source stream", func(t *testing.T) {
		// A foreign source already holds number 50; ours starts at 1.
		_, err := g.db.ExecContext(ctx, `INSERT INTO LedgerEntry
			(Co, Source, LedgerNumber, Movement, Account, SubAccount, Debit, Credit)
			VALUES ('01', 'MANUAL', 50, 1, '1120', '040000', 100, 0)`)
		require.NoError(t, err)

		tx, err := g.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		n, err := tx.NextLedgerNumber(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})

	t.Run("rolled back folios are reused", func(t *testing.T) {
		tx, err := g.Begin(ctx)
		require.NoError(t, err)
		folio, err := tx.NextFolio(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		tx2, err := g.Begin(ctx)
		require.NoError(t, err)
		defer tx2.Rollback()
		folio2, err := tx2.NextFolio(ctx)
		require.NoError(t, err)
		require.Equal(t, folio, folio2, "an aborted plan must not burn folios")
	})
}

func TestMovementLookup(t *testing.T) {
	g, ctx := setupGateway(t)
	date := time.Date(2025, time.December, 8, 0, 0, 0, 0, time.UTC)
	amount := dec(t, "215370.52")

	tx, err := g.Begin(ctx)
	require.NoError(t, err)
	folio, err := tx.NextFolio(ctx)
	require.NoError(t, err)
	row := testMovementRow(date, amount)
	require.NoError(t, tx.InsertMovement(ctx, folio, row, date))
	require.NoError(t, tx.Commit())

	t.Run("natural key finds the row", func(t *testing.T) {
		tx, err := g.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		ref, err := tx.LookupMovement(ctx, row.Key())
		require.NoError(t, err)
		require.NotNil(t, ref)
		require.Equal(t, int(folio), ref.Folio)
		require.True(t, ref.Reconciled)
	})

	t.Run("same key on the other side misses", func(t *testing.T) {
		tx, err := g.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		key := row.Key()
		key.Direction = domain.DirOut
		ref, err := tx.LookupMovement(ctx, key)
		require.NoError(t, err)
		require.Nil(t, ref)
	})

	t.Run("different amount misses", func(t *testing.T) {
		tx, err := g.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		key := row.Key()
		key.Amount = dec(t, "215370.53")
		ref, err := tx.LookupMovement(ctx, key)
		require.NoError(t, err)
		require.Nil(t, ref)
	})
}

func TestMarkReconciled(t *testing.T) {
	g, ctx := setupGateway(t)
	date := time.Date(2025, time.December, 9, 0, 0, 0, 0, time.UTC)

	tx, err := g.Begin(ctx)
	require.NoError(t, err)
	folio, err := tx.NextFolio(ctx)
	require.NoError(t, err)
	row := testMovementRow(date, dec(t, "500.00"))
	row.Reconciled = false
	require.NoError(t, tx.InsertMovement(ctx, folio, row, date))
	require.NoError(t, tx.MarkReconciled(ctx, folio))
	require.NoError(t, tx.Commit())

	tx2, err := g.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	ref, err := tx2.LookupMovement(ctx, row.Key())
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.True(t, ref.Reconciled)

	err = tx2.MarkReconciled(ctx, 9999)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMovementNotFound))
}

func TestLedgerLinesAndPointer(t *testing.T) {
	g, ctx := setupGateway(t)
	date := time.Date(2025, time.December, 8, 0, 0, 0, 0, time.UTC)

	lines := []domain.LedgerLine{
		{Account: "1120", SubAccount: "040000", Side: domain.Debit, Amount: dec(t, "215370.52"), Concept: "DEPOSITO VENTA 07/12/2025"},
		{Account: "1210", SubAccount: "010000", Side: domain.Credit, Amount: dec(t, "215370.52"), Concept: "DEPOSITO VENTA 07/12/2025"},
	}

	tx, err := g.Begin(ctx)
	require.NoError(t, err)
	folio, err := tx.NextFolio(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertMovement(ctx, folio, testMovementRow(date, dec(t, "215370.52")), date))

	ledgerNo, err := tx.NextLedgerNumber(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertLedgerLines(ctx, ledgerNo, folio, date, "", lines))
	require.NoError(t, tx.SetMovementLedger(ctx, folio, ledgerNo))
	require.NoError(t, tx.Commit())

	rows, err := g.db.QueryContext(ctx, `SELECT Movement, Debit, Credit FROM LedgerEntry
		WHERE Source = 'BANK-MVMT' AND LedgerNumber = ? ORDER BY Movement`, ledgerNo)
	require.NoError(t, err)
	defer rows.Close()

	var got []struct {
		ordinal       int
		debit, credit decimal.Decimal
	}
	for rows.Next() {
		var r struct {
			ordinal       int
			debit, credit decimal.Decimal
		}
		require.NoError(t, rows.Scan(&r.ordinal, &r.debit, &r.credit))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].ordinal)
	require.True(t, got[0].debit.Equal(dec(t, "215370.52")))
	require.True(t, got[0].credit.IsZero())
	require.Equal(t, 2, got[1].ordinal)
	require.True(t, got[1].credit.Equal(dec(t, "215370.52")))

	var pointer int64
	require.NoError(t, g.db.QueryRowContext(ctx,
		`SELECT LedgerNumber FROM MovHeader WHERE Folio = ?`, folio).Scan(&pointer))
	require.Equal(t, ledgerNo, pointer)
}

func TestSearchUnreconciled(t *testing.T) {
	g, ctx := setupGateway(t)
	account := "0441234567"

	seed := func(day int, amount, reconciled, direction int, class, desc string) {
		in, out := 0, amount
		if direction == int(domain.DirIn) {
			in, out = amount, 0
		}
		_, err := g.db.ExecContext(ctx, `INSERT INTO MovHeader
			(Bank, Account, Year, Month, Day, Kind, InAmount, OutAmount, Description, Class, Reconciled)
			VALUES ('072', ?, 2025, 12, ?, ?, ?, ?, ?, ?, ?)`,
			account, day, direction, in, out, desc, class, reconciled)
		require.NoError(t, err)
	}

	// Day 6: already reconciled. Day 7: the target. Day 8: wrong class.
	seed(6, 74250, 1, int(domain.DirOut), domain.ClassExpenses, "PAGO PROVEEDOR ACME")
	seed(7, 74250, 0, int(domain.DirOut), domain.ClassExpenses, "PAGO PROVEEDOR ACME")
	seed(8, 74250, 0, int(domain.DirOut), domain.ClassFees, "PAGO PROVEEDOR ACME")

	base := SearchFilter{
		Account:   account,
		Date:      time.Date(2025, time.December, 8, 0, 0, 0, 0, time.UTC),
		DayWindow: 2,
		Amount:    decimal.NewFromInt(74250),
		Tolerance: dec(t, "0.01"),
		Direction: domain.DirOut,
		Class:     domain.ClassExpenses,
	}

	t.Run("finds the oldest unreconciled match in the window", func(t *testing.T) {
		found, err := g.SearchUnreconciled(ctx, base)
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Equal(t, 7, found.Date.Day())
		require.Equal(t, "PAGO PROVEEDOR ACME", found.Description)
		require.True(t, found.Amount.Equal(decimal.NewFromInt(74250)))
	})

	t.Run("concept filter narrows matches", func(t *testing.T) {
		f := base
		f.ConceptLike = "ACME"
		found, err := g.SearchUnreconciled(ctx, f)
		require.NoError(t, err)
		require.NotNil(t, found)

		f.ConceptLike = "CLIENT"
		found, err = g.SearchUnreconciled(ctx, f)
		require.NoError(t, err)
		require.Nil(t, found)
	})

	t.Run("amount outside tolerance misses", func(t *testing.T) {
		f := base
		f.Amount = dec(t, "74250.50")
		found, err := g.SearchUnreconciled(ctx, f)
		require.NoError(t, err)
		require.Nil(t, found)
	})

	t.Run("window excludes days outside range", func(t *testing.T) {
		f := base
		f.Date = time.Date(2025, time.December, 12, 0, 0, 0, 0, time.UTC)
		found, err := g.SearchUnreconciled(ctx, f)
		require.NoError(t, err)
		require.Nil(t, found)
	})
}

func TestInvoiceTaxBreakdown(t *testing.T) {
	g, ctx := setupGateway(t)

	_, err := g.db.ExecContext(ctx, `INSERT INTO Invoices
		(Series, Number, Customer, Subtotal, VAT, Excise, Total, Year, Month, Day)
		VALUES ('FD', '20204', 'PUBLICO GENERAL', 180000.00, 28800.00, 6570.52, 215370.52, 2025, 12, 7)`)
	require.NoError(t, err)

	vat, excise, err := g.InvoiceTaxBreakdown(ctx, "FD", "20204")
	require.NoError(t, err)
	require.True(t, vat.Equal(dec(t, "28800.00")))
	require.True(t, excise.Equal(dec(t, "6570.52")))

	_, _, err = g.InvoiceTaxBreakdown(ctx, "FD", "99999")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvoiceNotFound))
}

func TestMonthlyLedgerCredits(t *testing.T) {
	g, ctx := setupGateway(t)

	_, err := g.db.ExecContext(ctx, `INSERT INTO LedgerBalance
		(Account, SubAccount, PeriodYear, DecCredits)
		VALUES ('2140', '010000', 2025, 14548.30)`)
	require.NoError(t, err)

	credits, err := g.MonthlyLedgerCredits(ctx, "2140", "010000", 2025, time.December)
	require.NoError(t, err)
	require.True(t, credits.Equal(dec(t, "14548.30")))

	_, err = g.MonthlyLedgerCredits(ctx, "2140", "010000", 2024, time.December)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBalanceNotFound))
}

func TestAPInvoiceFabrication(t *testing.T) {
	g, ctx := setupGateway(t)
	date := time.Date(2025, time.December, 8, 0, 0, 0, 0, time.UTC)

	tx, err := g.Begin(ctx)
	require.NoError(t, err)
	id, err := tx.InsertAPInvoice(ctx, domain.APInvoiceRow{
		Supplier:  "BANCO COMISIONES",
		Reference: "08122025",
		Base:      dec(t, "30.00"),
		VAT:       dec(t, "4.80"),
		Total:     dec(t, "34.80"),
	}, date)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	require.NoError(t, tx.Commit())

	var status int
	var balance decimal.Decimal
	require.NoError(t, g.db.QueryRowContext(ctx,
		`SELECT Status, Balance FROM APInvoice WHERE InvoiceID = ?`, id).Scan(&status, &balance))
	require.Equal(t, apStatusPaid, status, "fabricated fee invoices are born settled")
	require.True(t, balance.IsZero())

	var lines int
	require.NoError(t, g.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM APInvoiceLine WHERE InvoiceID = ?`, id).Scan(&lines))
	require.Equal(t, 1, lines)
}

func TestAPSettlementFlow(t *testing.T) {
	g, ctx := setupGateway(t)
	date := time.Date(2025, time.December, 9, 0, 0, 0, 0, time.UTC)

	_, err := g.db.ExecContext(ctx, `INSERT INTO APInvoice
		(InvoiceID, Supplier, Reference, Base, VAT, Total, Balance, Status, Year, Month, Day)
		VALUES (10, 'FERRETERIA LOPEZ', 'B-312', 1000.00, 160.00, 1160.00, 1160.00, 1, 2025, 12, 1)`)
	require.NoError(t, err)

	t.Run("amount within tolerance finds the payable", func(t *testing.T) {
		ref, err := g.UnpaidAPInvoiceByAmount(ctx, dec(t, "1160.30"), dec(t, "0.50"))
		require.NoError(t, err)
		require.NotNil(t, ref)
		require.Equal(t, int64(10), ref.ID)
		require.Equal(t, "FERRETERIA LOPEZ", ref.Supplier)
		require.True(t, ref.VAT.Equal(dec(t, "160.00")))
	})

	t.Run("amount outside tolerance misses", func(t *testing.T) {
		ref, err := g.UnpaidAPInvoiceByAmount(ctx, dec(t, "1161.00"), dec(t, "0.50"))
		require.NoError(t, err)
		require.Nil(t, ref)
	})

	t.Run("settlement links payment and closes the invoice", func(t *testing.T) {
		tx, err := g.Begin(ctx)
		require.NoError(t, err)

		payID, err := tx.InsertAPPayment(ctx, "FERRETERIA LOPEZ", dec(t, "1160.00"), 77, date)
		require.NoError(t, err)
		require.NoError(t, tx.InsertAPPaymentLink(ctx, payID, 10, dec(t, "1160.00")))
		require.NoError(t, tx.ApplyAPInvoiceBalance(ctx, 10, dec(t, "1160.00")))
		require.NoError(t, tx.Commit())

		var status int
		var balance decimal.Decimal
		require.NoError(t, g.db.QueryRowContext(ctx,
			`SELECT Status, Balance FROM APInvoice WHERE InvoiceID = 10`).Scan(&status, &balance))
		require.Equal(t, apStatusPaid, status)
		require.True(t, balance.IsZero())

		ref, err := g.UnpaidAPInvoiceByAmount(ctx, dec(t, "1160.00"), dec(t, "0.50"))
		require.NoError(t, err)
		require.Nil(t, ref, "settled invoices drop out of the open search")
	})
}

func TestARCollectionFlow(t *testing.T) {
	g, ctx := setupGateway(t)
	date := time.Date(2025, time.December, 10, 0, 0, 0, 0, time.UTC)

	_, err := g.db.ExecContext(ctx, `INSERT INTO ARInvoice
		(InvoiceID, Customer, Series, Number, Total, Balance, Status)
		VALUES (5, 'DISTRIBUIDORA NORTE', 'A', '4417', 80000.00, 80000.00, 1)`)
	require.NoError(t, err)

	t.Run("lookup by number", func(t *testing.T) {
		ref, err := g.FindARInvoiceByNumber(ctx, "4417")
		require.NoError(t, err)
		require.NotNil(t, ref)
		require.Equal(t, "DISTRIBUIDORA NORTE", ref.Customer)
		require.True(t, ref.Balance.Equal(dec(t, "80000.00")))

		ref, err = g.FindARInvoiceByNumber(ctx, "0000")
		require.NoError(t, err)
		require.Nil(t, ref)
	})

	t.Run("fallback lookup by pending amount", func(t *testing.T) {
		ref, err := g.PendingARInvoiceByAmount(ctx, dec(t, "80000.00"), dec(t, "0.50"))
		require.NoError(t, err)
		require.NotNil(t, ref)
		require.Equal(t, int64(5), ref.ID)
	})

	t.Run("collection reduces the balance and settles", func(t *testing.T) {
		tx, err := g.Begin(ctx)
		require.NoError(t, err)

		id, err := tx.InsertARCollection(ctx, domain.ARCollectionRow{
			InvoiceID: 5,
			Customer:  "DISTRIBUIDORA NORTE",
			Amount:    dec(t, "80000.00"),
		}, 88, date)
		require.NoError(t, err)
		require.Equal(t, int64(1), id)
		require.NoError(t, tx.ApplyARInvoiceBalance(ctx, 5, dec(t, "80000.00")))
		require.NoError(t, tx.Commit())

		ref, err := g.PendingARInvoiceByAmount(ctx, dec(t, "80000.00"), dec(t, "0.50"))
		require.NoError(t, err)
		require.Nil(t, ref)
	})
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	require.Equal(t, "SELECT a FROM t WHERE x = @p1 AND y = @p2", DialectSQLServer.rebind(q))
	require.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", DialectPostgres.rebind(q))
	require.Equal(t, q, DialectSQLite.rebind(q))
}

func TestDecodeText(t *testing.T) {
	g := &Gateway{dbCfg: config.DatabaseConfig{LegacyEncoding: true}}
	// "DEPÓSITO" in Windows-1252: Ó is 0xD3, invalid as UTF-8 here.
	raw := []byte{'D', 'E', 'P', 0xD3, 'S', 'I', 'T', 'O'}
	require.Equal(t, "DEPÓSITO", g.decodeText(raw))
	require.Equal(t, "DEPÓSITO", g.decodeText([]byte("DEPÓSITO")), "valid UTF-8 passes through")

	plain := &Gateway{dbCfg: config.DatabaseConfig{LegacyEncoding: false}}
	require.Equal(t, string(raw), plain.decodeText(raw))
}
