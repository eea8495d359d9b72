package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// AP invoice status values used by the legacy schema.
const (
	apStatusOpen = 1
	apStatusPaid = 2
)

// InsertAPInvoice writes a purchase invoice header plus its single line
// and returns the minted invoice ID. Bank-fee providers never send real
// invoices, so the engine fabricates one per fee group.
func (t *Tx) InsertAPInvoice(ctx context.Context, inv domain.APInvoiceRow, date time.Time) (int64, error) {
	id, err := t.nextNumber(ctx, "APInvoice", "InvoiceID", "")
	if err != nil {
		return 0, err
	}

	_, err = t.exec(ctx, `INSERT INTO APInvoice (
		InvoiceID, Supplier, Reference, Base, VAT, Total, Balance, Status,
		Year, Month, Day
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, inv.Supplier, inv.Reference, inv.Base, inv.VAT, inv.Total,
		domain.Zero, apStatusPaid,
		date.Year(), int(date.Month()), date.Day(),
	)
	if err != nil {
		return 0, NewQueryError("insert_ap_invoice", "failed to insert AP invoice header", err)
	}

	_, err = t.exec(ctx, `INSERT INTO APInvoiceLine (
		InvoiceID, LineNo, Concept, Base, VAT, Total
	) VALUES (?, ?, ?, ?, ?, ?)`,
		id, 1, inv.Reference, inv.Base, inv.VAT, inv.Total,
	)
	if err != nil {
		return 0, NewQueryError("insert_ap_invoice", "failed to insert AP invoice line", err)
	}
	return id, nil
}

// APInvoiceRef is an open payable located by amount.
type APInvoiceRef struct {
	ID       int64
	Supplier string
	Base     decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal
	Balance  decimal.Decimal
}

// UnpaidAPInvoiceByAmount finds the oldest open payable whose total is
// within tol of amount. Returns (nil, nil) when none matches.
func (g *Gateway) UnpaidAPInvoiceByAmount(ctx context.Context, amount, tol decimal.Decimal) (*APInvoiceRef, error) {
	if g.db == nil {
		return nil, ErrGatewayClosed
	}
	q := `SELECT InvoiceID, Supplier, Base, VAT, Total, Balance FROM APInvoice
		WHERE Balance > 0 AND Total >= ? AND Total <= ?
		ORDER BY InvoiceID`

	rows, err := g.query(ctx, q, amount.Sub(tol), amount.Add(tol))
	if err != nil {
		return nil, NewQueryError("unpaid_ap_invoice", "failed to search open payables", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, NewQueryError("unpaid_ap_invoice", "failed to scan payables", err)
		}
		return nil, nil
	}

	var ref APInvoiceRef
	var supplier []byte
	if err := rows.Scan(&ref.ID, &supplier, &ref.Base, &ref.VAT, &ref.Total, &ref.Balance); err != nil {
		return nil, NewQueryError("unpaid_ap_invoice", "failed to scan payable row", err)
	}
	ref.Supplier = g.decodeText(supplier)
	return &ref, nil
}

// InsertAPPayment writes a payment header and returns the minted
// payment ID.
func (t *Tx) InsertAPPayment(ctx context.Context, supplier string, amount decimal.Decimal, folio int64, date time.Time) (int64, error) {
	id, err := t.nextNumber(ctx, "APPayment", "PaymentID", "")
	if err != nil {
		return 0, err
	}
	_, err = t.exec(ctx, `INSERT INTO APPayment (
		PaymentID, Supplier, Amount, Method, SourceFolio, Year, Month, Day
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, supplier, amount, domain.PayMethodTransfer, folio,
		date.Year(), int(date.Month()), date.Day(),
	)
	if err != nil {
		return 0, NewQueryError("insert_ap_payment", "failed to insert AP payment", err)
	}
	return id, nil
}

// InsertAPPaymentLink applies a payment against an invoice.
func (t *Tx) InsertAPPaymentLink(ctx context.Context, paymentID, invoiceID int64, applied decimal.Decimal) error {
	_, err := t.exec(ctx, `INSERT INTO APPaymentLink (PaymentID, InvoiceID, Applied)
		VALUES (?, ?, ?)`, paymentID, invoiceID, applied)
	if err != nil {
		return NewQueryError("insert_ap_payment_link", "failed to insert payment link", err)
	}
	return nil
}

// ApplyAPInvoiceBalance reduces an invoice's outstanding balance and
// flips its status to paid once the balance falls inside the cent
// tolerance.
func (t *Tx) ApplyAPInvoiceBalance(ctx context.Context, invoiceID int64, applied decimal.Decimal) error {
	res, err := t.exec(ctx, `UPDATE APInvoice SET Balance = Balance - ? WHERE InvoiceID = ?`,
		applied, invoiceID)
	if err != nil {
		return NewQueryError("apply_ap_balance", "failed to update invoice balance", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewDataError("apply_ap_balance", "no AP invoice with that ID", nil).WithCode("INVOICE_NOT_FOUND")
	}

	_, err = t.exec(ctx, `UPDATE APInvoice SET Status = ? WHERE InvoiceID = ? AND Balance <= ?`,
		apStatusPaid, invoiceID, domain.TolCent)
	if err != nil {
		return NewQueryError("apply_ap_balance", "failed to update invoice status", err)
	}
	return nil
}
