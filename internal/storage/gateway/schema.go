package gateway

import (
	"context"
	"fmt"
)

// ensureSchema bootstraps the ERP tables on SQLite. Production runs
// against an existing SQL Server / Postgres schema and never reaches
// this path; the statements double as documentation of the columns the
// gateway touches.
func (g *Gateway) ensureSchema(ctx context.Context) error {
	queries := []string{
		// Central movement table. Primary key is Folio, but idempotency
		// lookups use the natural key (Bank, Account, Year, Month, Day,
		// Description, amount-on-side).
		`CREATE TABLE IF NOT EXISTS MovHeader (
			Folio INTEGER PRIMARY KEY,
			Bank TEXT NOT NULL,
			Account TEXT NOT NULL,
			Year INTEGER NOT NULL,
			Month INTEGER NOT NULL,
			Day INTEGER NOT NULL,
			Kind INTEGER NOT NULL,
			InAmount DECIMAL(18,2) NOT NULL DEFAULT 0,
			OutAmount DECIMAL(18,2) NOT NULL DEFAULT 0,
			Description TEXT NOT NULL,
			Class TEXT NOT NULL DEFAULT '',
			PaymentMethod TEXT NOT NULL DEFAULT '',
			SubKind TEXT NOT NULL DEFAULT '',
			DocType TEXT NOT NULL DEFAULT '',
			Reconciled INTEGER NOT NULL DEFAULT 0,
			FX DECIMAL(18,6) NOT NULL DEFAULT 1,
			MoneyKind TEXT NOT NULL DEFAULT 'MXN',
			Co TEXT NOT NULL DEFAULT '',
			Source TEXT NOT NULL DEFAULT '',
			Office TEXT NOT NULL DEFAULT '',
			AccountOffice TEXT NOT NULL DEFAULT '',
			Branch TEXT NOT NULL DEFAULT '',
			LedgerKind INTEGER NOT NULL DEFAULT 0,
			LedgerNumber INTEGER,
			Balance DECIMAL(18,2) NOT NULL DEFAULT 0,
			Counterparty TEXT NOT NULL DEFAULT '',
			InvoiceRef TEXT NOT NULL DEFAULT '',
			CreatedBy TEXT NOT NULL DEFAULT '',
			CreatedAt TEXT NOT NULL DEFAULT '',
			CreatedHour TEXT NOT NULL DEFAULT ''
		)`,

		// Sales-invoice links hanging off a minted movement.
		`CREATE TABLE IF NOT EXISTS MovInvoices (
			Folio INTEGER NOT NULL,
			Series TEXT NOT NULL,
			Number TEXT NOT NULL,
			Applied DECIMAL(18,2) NOT NULL,
			InvoiceDate TEXT NOT NULL DEFAULT '',
			Kind TEXT NOT NULL
		)`,

		// Ledger lines. LedgerNumber is unique within a Source stream;
		// Movement is the 1-based line ordinal inside the entry.
		`CREATE TABLE IF NOT EXISTS LedgerEntry (
			Co TEXT NOT NULL,
			Source TEXT NOT NULL,
			LedgerNumber INTEGER NOT NULL,
			Movement INTEGER NOT NULL,
			AccountOffice TEXT NOT NULL DEFAULT '',
			Account TEXT NOT NULL,
			SubAccount TEXT NOT NULL,
			Name TEXT NOT NULL DEFAULT '',
			Debit DECIMAL(18,2) NOT NULL DEFAULT 0,
			Credit DECIMAL(18,2) NOT NULL DEFAULT 0,
			Note TEXT NOT NULL DEFAULT '',
			SourceFolio INTEGER NOT NULL DEFAULT 0,
			Year INTEGER NOT NULL DEFAULT 0,
			Month INTEGER NOT NULL DEFAULT 0,
			Day INTEGER NOT NULL DEFAULT 0
		)`,

		// Sales invoices, read-only for the VAT/excise breakdown.
		`CREATE TABLE IF NOT EXISTS Invoices (
			Series TEXT NOT NULL,
			Number TEXT NOT NULL,
			Customer TEXT NOT NULL DEFAULT '',
			Subtotal DECIMAL(18,2) NOT NULL DEFAULT 0,
			VAT DECIMAL(18,2) NOT NULL DEFAULT 0,
			Excise DECIMAL(18,2) NOT NULL DEFAULT 0,
			Total DECIMAL(18,2) NOT NULL DEFAULT 0,
			Year INTEGER NOT NULL DEFAULT 0,
			Month INTEGER NOT NULL DEFAULT 0,
			Day INTEGER NOT NULL DEFAULT 0
		)`,

		// Accounts payable.
		`CREATE TABLE IF NOT EXISTS APInvoice (
			InvoiceID INTEGER PRIMARY KEY,
			Supplier TEXT NOT NULL,
			Reference TEXT NOT NULL DEFAULT '',
			Base DECIMAL(18,2) NOT NULL DEFAULT 0,
			VAT DECIMAL(18,2) NOT NULL DEFAULT 0,
			Total DECIMAL(18,2) NOT NULL DEFAULT 0,
			Balance DECIMAL(18,2) NOT NULL DEFAULT 0,
			Status INTEGER NOT NULL DEFAULT 1,
			Year INTEGER NOT NULL DEFAULT 0,
			Month INTEGER NOT NULL DEFAULT 0,
			Day INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS APInvoiceLine (
			InvoiceID INTEGER NOT NULL,
			LineNo INTEGER NOT NULL,
			Concept TEXT NOT NULL DEFAULT '',
			Base DECIMAL(18,2) NOT NULL DEFAULT 0,
			VAT DECIMAL(18,2) NOT NULL DEFAULT 0,
			Total DECIMAL(18,2) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS APPayment (
			PaymentID INTEGER PRIMARY KEY,
			Supplier TEXT NOT NULL,
			Amount DECIMAL(18,2) NOT NULL,
			Method TEXT NOT NULL DEFAULT '',
			SourceFolio INTEGER NOT NULL DEFAULT 0,
			Year INTEGER NOT NULL DEFAULT 0,
			Month INTEGER NOT NULL DEFAULT 0,
			Day INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS APPaymentLink (
			PaymentID INTEGER NOT NULL,
			InvoiceID INTEGER NOT NULL,
			Applied DECIMAL(18,2) NOT NULL
		)`,

		// Accounts receivable.
		`CREATE TABLE IF NOT EXISTS ARInvoice (
			InvoiceID INTEGER PRIMARY KEY,
			Customer TEXT NOT NULL DEFAULT '',
			Series TEXT NOT NULL DEFAULT '',
			Number TEXT NOT NULL DEFAULT '',
			Total DECIMAL(18,2) NOT NULL DEFAULT 0,
			Balance DECIMAL(18,2) NOT NULL DEFAULT 0,
			Status INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS ARCollection (
			CollectionID INTEGER PRIMARY KEY,
			InvoiceID INTEGER NOT NULL,
			Customer TEXT NOT NULL DEFAULT '',
			Amount DECIMAL(18,2) NOT NULL,
			SourceFolio INTEGER NOT NULL DEFAULT 0,
			Year INTEGER NOT NULL DEFAULT 0,
			Month INTEGER NOT NULL DEFAULT 0,
			Day INTEGER NOT NULL DEFAULT 0
		)`,

		// Period balances, read-only for the social-security retention.
		`CREATE TABLE IF NOT EXISTS LedgerBalance (
			Account TEXT NOT NULL,
			SubAccount TEXT NOT NULL,
			PeriodYear INTEGER NOT NULL,
			JanDebits DECIMAL(18,2) NOT NULL DEFAULT 0, JanCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			FebDebits DECIMAL(18,2) NOT NULL DEFAULT 0, FebCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			MarDebits DECIMAL(18,2) NOT NULL DEFAULT 0, MarCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			AprDebits DECIMAL(18,2) NOT NULL DEFAULT 0, AprCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			MayDebits DECIMAL(18,2) NOT NULL DEFAULT 0, MayCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			JunDebits DECIMAL(18,2) NOT NULL DEFAULT 0, JunCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			JulDebits DECIMAL(18,2) NOT NULL DEFAULT 0, JulCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			AugDebits DECIMAL(18,2) NOT NULL DEFAULT 0, AugCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			SepDebits DECIMAL(18,2) NOT NULL DEFAULT 0, SepCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			OctDebits DECIMAL(18,2) NOT NULL DEFAULT 0, OctCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			NovDebits DECIMAL(18,2) NOT NULL DEFAULT 0, NovCredits DECIMAL(18,2) NOT NULL DEFAULT 0,
			DecDebits DECIMAL(18,2) NOT NULL DEFAULT 0, DecCredits DECIMAL(18,2) NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_movheader_key ON MovHeader(Bank, Account, Year, Month, Day)`,
		`CREATE INDEX IF NOT EXISTS idx_movinvoices_folio ON MovInvoices(Folio)`,
		`CREATE INDEX IF NOT EXISTS idx_ledgerentry_stream ON LedgerEntry(Source, LedgerNumber)`,
		`CREATE INDEX IF NOT EXISTS idx_apinvoice_open ON APInvoice(Status, Total)`,
		`CREATE INDEX IF NOT EXISTS idx_arinvoice_number ON ARInvoice(Number)`,
	}

	for _, query := range queries {
		if _, err := g.db.ExecContext(ctx, query); err != nil {
			return NewQueryError("ensure_schema", fmt.Sprintf("failed to bootstrap schema: %v", err), err)
		}
	}
	return nil
}
