package gateway

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// ARInvoiceRef is an open receivable.
type ARInvoiceRef struct {
	ID       int64
	Customer string
	Series   string
	Number   string
	Total    decimal.Decimal
	Balance  decimal.Decimal
}

func (g *Gateway) scanARInvoice(rows *sql.Rows) (*ARInvoiceRef, error) {
	var ref ARInvoiceRef
	var customer []byte
	if err := rows.Scan(&ref.ID, &customer, &ref.Series, &ref.Number, &ref.Total, &ref.Balance); err != nil {
		return nil, err
	}
	ref.Customer = g.decodeText(customer)
	return &ref, nil
}

// FindARInvoiceByNumber locates a receivable by its invoice number.
// Returns (nil, nil) when absent.
func (g *Gateway) FindARInvoiceByNumber(ctx context.Context, number string) (*ARInvoiceRef, error) {
	if g.db == nil {
		return nil, ErrGatewayClosed
	}
	q := `SELECT InvoiceID, Customer, Series, Number, Total, Balance FROM ARInvoice
		WHERE Number = ? ORDER BY InvoiceID`

	rows, err := g.query(ctx, q, number)
	if err != nil {
		return nil, NewQueryError("find_ar_invoice", "failed to search receivables", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, NewQueryError("find_ar_invoice", "failed to scan receivables", err)
		}
		return nil, nil
	}
	ref, err := g.scanARInvoice(rows)
	if err != nil {
		return nil, NewQueryError("find_ar_invoice", "failed to scan receivable row", err)
	}
	return ref, nil
}

// PendingARInvoiceByAmount finds the oldest receivable with outstanding
// balance within tol of amount. The fallback when the description names
// no invoice. Returns (nil, nil) when none matches.
func (g *Gateway) PendingARInvoiceByAmount(ctx context.Context, amount, tol decimal.Decimal) (*ARInvoiceRef, error) {
	if g.db == nil {
		return nil, ErrGatewayClosed
	}
	q := `SELECT InvoiceID, Customer, Series, Number, Total, Balance FROM ARInvoice
		WHERE Balance > 0 AND Balance >= ? AND Balance <= ?
		ORDER BY InvoiceID`

	rows, err := g.query(ctx, q, amount.Sub(tol), amount.Add(tol))
	if err != nil {
		return nil, NewQueryError("pending_ar_invoice", "failed to search receivables", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, NewQueryError("pending_ar_invoice", "failed to scan receivables", err)
		}
		return nil, nil
	}
	ref, err := g.scanARInvoice(rows)
	if err != nil {
		return nil, NewQueryError("pending_ar_invoice", "failed to scan receivable row", err)
	}
	return ref, nil
}

// InsertARCollection records a customer payment against a receivable and
// returns the minted collection ID.
func (t *Tx) InsertARCollection(ctx context.Context, c domain.ARCollectionRow, folio int64, date time.Time) (int64, error) {
	id, err := t.nextNumber(ctx, "ARCollection", "CollectionID", "")
	if err != nil {
		return 0, err
	}
	_, err = t.exec(ctx, `INSERT INTO ARCollection (
		CollectionID, InvoiceID, Customer, Amount, SourceFolio, Year, Month, Day
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.InvoiceID, c.Customer, c.Amount, folio,
		date.Year(), int(date.Month()), date.Day(),
	)
	if err != nil {
		return 0, NewQueryError("insert_ar_collection", "failed to insert AR collection", err)
	}
	return id, nil
}

// ApplyARInvoiceBalance reduces a receivable's outstanding balance,
// flipping its status to settled inside the cent tolerance.
func (t *Tx) ApplyARInvoiceBalance(ctx context.Context, invoiceID int64, applied decimal.Decimal) error {
	res, err := t.exec(ctx, `UPDATE ARInvoice SET Balance = Balance - ? WHERE InvoiceID = ?`,
		applied, invoiceID)
	if err != nil {
		return NewQueryError("apply_ar_balance", "failed to update receivable balance", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewDataError("apply_ar_balance", "no AR invoice with that ID", nil).WithCode("INVOICE_NOT_FOUND")
	}

	_, err = t.exec(ctx, `UPDATE ARInvoice SET Status = 2 WHERE InvoiceID = ? AND Balance <= ?`,
		invoiceID, domain.TolCent)
	if err != nil {
		return NewQueryError("apply_ar_balance", "failed to update receivable status", err)
	}
	return nil
}
