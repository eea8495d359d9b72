package gateway

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// amountColumn maps a direction to the statement-side column holding
// the amount.
func amountColumn(d domain.Direction) string {
	if d == domain.DirIn {
		return "InAmount"
	}
	return "OutAmount"
}

// LookupMovement finds an existing row by the natural key. Returns
// (nil, nil) when no row matches; this is the executor's idempotency
// branch, not an error.
func (t *Tx) LookupMovement(ctx context.Context, key domain.MovementKey) (*domain.MovementRef, error) {
	q := `SELECT Folio, Reconciled FROM MovHeader
		WHERE Bank = ? AND Account = ? AND Year = ? AND Month = ? AND Day = ?
		AND Description = ? AND ` + amountColumn(key.Direction) + ` = ?
		ORDER BY Folio`

	var folio int64
	var reconciled scanBool
	err := t.queryRow(ctx, q,
		key.Bank, key.Account, key.Year, key.Month, key.Day,
		key.Description, key.Amount,
	).Scan(&folio, &reconciled)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, NewQueryError("lookup_movement", "failed to look up movement by key", err)
	}
	return &domain.MovementRef{Folio: int(folio), Reconciled: bool(reconciled)}, nil
}

// InsertMovement writes the movement header under a pre-minted folio.
// Company constants (Co, Source, Office, currency, FX) are stamped here
// so processors never see them. LedgerNumber starts at 0; the executor
// points it at the entry after the ledger lines land, inside the same
// transaction. Legs that carry no ledger entry keep the 0.
func (t *Tx) InsertMovement(ctx context.Context, folio int64, row domain.MovementRow, now time.Time) error {
	in, out := domain.Zero, domain.Zero
	if row.Direction == domain.DirIn {
		in = row.Amount
	} else {
		out = row.Amount
	}

	co := t.g.company
	q := `INSERT INTO MovHeader (
		Folio, Bank, Account, Year, Month, Day, Kind, InAmount, OutAmount,
		Description, Class, PaymentMethod, SubKind, DocType, Reconciled,
		FX, MoneyKind, Co, Source, Office, AccountOffice, Branch,
		LedgerKind, LedgerNumber, Balance, Counterparty, InvoiceRef,
		CreatedBy, CreatedAt, CreatedHour
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.exec(ctx, q,
		folio, row.Bank, row.Account,
		row.Date.Year(), int(row.Date.Month()), row.Date.Day(),
		int(row.Direction), in, out,
		row.Description, row.Class, row.PaymentMethod, row.SubKind, row.DocType,
		bit(row.Reconciled),
		co.FX, co.Currency, co.Code, co.Source, co.Office, co.Office, co.Branch,
		int(row.LedgerKind), 0, domain.Zero, row.Counterparty, row.InvoiceRef,
		co.CreatedBy, now.Format("2006-01-02 15:04:05"), now.Format("15:04:05"),
	)
	if err != nil {
		return NewQueryError("insert_movement", "failed to insert movement header", err)
	}
	return nil
}

// MarkReconciled flips the reconciled flag on an existing movement.
func (t *Tx) MarkReconciled(ctx context.Context, folio int64) error {
	res, err := t.exec(ctx, `UPDATE MovHeader SET Reconciled = 1 WHERE Folio = ?`, folio)
	if err != nil {
		return NewQueryError("mark_reconciled", "failed to mark movement reconciled", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewDataError("mark_reconciled", "no movement with that folio", nil).WithCode("MOVEMENT_NOT_FOUND")
	}
	return nil
}

// SetMovementLedger points the movement at its ledger entry. Last write
// of the plan's insert sequence.
func (t *Tx) SetMovementLedger(ctx context.Context, folio, ledgerNumber int64) error {
	_, err := t.exec(ctx, `UPDATE MovHeader SET LedgerNumber = ? WHERE Folio = ?`, ledgerNumber, folio)
	if err != nil {
		return NewQueryError("set_movement_ledger", "failed to set ledger pointer", err)
	}
	return nil
}

// SearchFilter narrows an unreconciled-movement search. Zero-valued
// optional fields are ignored.
type SearchFilter struct {
	Account   string
	Date      time.Time
	DayWindow int
	Amount    decimal.Decimal
	Tolerance decimal.Decimal
	Direction domain.Direction

	// Class filters by the legacy class label.
	Class string

	// ConceptLike filters descriptions by case-insensitive substring.
	ConceptLike string
}

// FoundMovement is a pre-existing row located by SearchUnreconciled.
type FoundMovement struct {
	Folio       int64
	Date        time.Time
	Description string
	Amount      decimal.Decimal
}

// SearchUnreconciled finds the oldest unreconciled movement matching the
// filter within ±DayWindow days. Returns (nil, nil) when nothing matches.
// Date windows are expanded to explicit (year, month, day) triples so the
// query stays sane across month boundaries on the legacy column layout.
func (g *Gateway) SearchUnreconciled(ctx context.Context, f SearchFilter) (*FoundMovement, error) {
	if g.db == nil {
		return nil, ErrGatewayClosed
	}

	col := amountColumn(f.Direction)
	var b strings.Builder
	b.WriteString(`SELECT Folio, Year, Month, Day, Description, ` + col + ` FROM MovHeader
		WHERE Account = ? AND Reconciled = 0 AND Kind = ?`)
	args := []interface{}{f.Account, int(f.Direction)}

	b.WriteString(" AND (")
	for i := -f.DayWindow; i <= f.DayWindow; i++ {
		if i > -f.DayWindow {
			b.WriteString(" OR ")
		}
		d := f.Date.AddDate(0, 0, i)
		b.WriteString("(Year = ? AND Month = ? AND Day = ?)")
		args = append(args, d.Year(), int(d.Month()), d.Day())
	}
	b.WriteString(")")

	tol := f.Tolerance
	if tol.IsNegative() {
		tol = domain.Zero
	}
	b.WriteString(" AND " + col + " >= ? AND " + col + " <= ?")
	args = append(args, f.Amount.Sub(tol), f.Amount.Add(tol))

	if f.Class != "" {
		b.WriteString(" AND Class = ?")
		args = append(args, f.Class)
	}
	if f.ConceptLike != "" {
		b.WriteString(" AND UPPER(Description) LIKE ?")
		args = append(args, "%"+strings.ToUpper(f.ConceptLike)+"%")
	}
	b.WriteString(" ORDER BY Year, Month, Day, Folio")

	rows, err := g.query(ctx, b.String(), args...)
	if err != nil {
		return nil, NewQueryError("search_unreconciled", "failed to search movements", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, NewQueryError("search_unreconciled", "failed to scan movements", err)
		}
		return nil, nil
	}

	var (
		folio   int64
		y, m, d int
		desc    []byte
		amount  decimal.Decimal
	)
	if err := rows.Scan(&folio, &y, &m, &d, &desc, &amount); err != nil {
		return nil, NewQueryError("search_unreconciled", "failed to scan movement row", err)
	}
	return &FoundMovement{
		Folio:       folio,
		Date:        time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC),
		Description: g.decodeText(desc),
		Amount:      amount,
	}, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
