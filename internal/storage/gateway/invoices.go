package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// InsertInvoiceLink ties a minted movement to a sales invoice. The date
// is the close's business date, which may differ from the deposit date.
func (t *Tx) InsertInvoiceLink(ctx context.Context, folio int64, date time.Time, link domain.InvoiceLinkRow) error {
	q := `INSERT INTO MovInvoices (Folio, Series, Number, Applied, InvoiceDate, Kind)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := t.exec(ctx, q,
		folio, link.Series, link.Number, link.Applied,
		date.Format("2006-01-02"), string(link.Kind),
	)
	if err != nil {
		return NewQueryError("insert_invoice_link", "failed to insert invoice link", err)
	}
	return nil
}

// InvoiceTaxBreakdown returns the VAT and excise carried by one sales
// invoice. ErrInvoiceNotFound when the invoice does not exist.
func (g *Gateway) InvoiceTaxBreakdown(ctx context.Context, series, number string) (vat, excise decimal.Decimal, err error) {
	if g.db == nil {
		return domain.Zero, domain.Zero, ErrGatewayClosed
	}
	q := `SELECT VAT, Excise FROM Invoices WHERE Series = ? AND Number = ?`
	err = g.queryRow(ctx, q, series, number).Scan(&vat, &excise)
	if err != nil {
		if isNoRows(err) {
			return domain.Zero, domain.Zero,
				NewDataError("invoice_tax_breakdown", "invoice not found", err).WithCode("INVOICE_NOT_FOUND")
		}
		return domain.Zero, domain.Zero,
			NewQueryError("invoice_tax_breakdown", "failed to read invoice taxes", err)
	}
	return vat, excise, nil
}
