package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// InsertLedgerLines writes one ledger entry: all lines share the minted
// ledger number; Movement is the 1-based line ordinal. Debit and credit
// land in separate columns, the other side zero.
func (t *Tx) InsertLedgerLines(ctx context.Context, ledgerNumber, folio int64, date time.Time, docType string, lines []domain.LedgerLine) error {
	q := `INSERT INTO LedgerEntry (
		Co, Source, LedgerNumber, Movement, AccountOffice,
		Account, SubAccount, Name, Debit, Credit, Note, SourceFolio,
		Year, Month, Day
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	co := t.g.company
	for i, line := range lines {
		debit, credit := domain.Zero, domain.Zero
		if line.Side == domain.Debit {
			debit = line.Amount
		} else {
			credit = line.Amount
		}
		_, err := t.exec(ctx, q,
			co.Code, co.Source, ledgerNumber, i+1, co.Office,
			line.Account, line.SubAccount, line.Concept, debit, credit,
			docType, folio,
			date.Year(), int(date.Month()), date.Day(),
		)
		if err != nil {
			return NewQueryError("insert_ledger",
				fmt.Sprintf("failed to insert ledger line %d of %d", i+1, len(lines)), err)
		}
	}
	return nil
}

// monthColumns maps a calendar month to its LedgerBalance column pair.
// Interpolated into SQL, so the names stay a closed set.
var monthColumns = map[time.Month]struct{ debits, credits string }{
	time.January:   {"JanDebits", "JanCredits"},
	time.February:  {"FebDebits", "FebCredits"},
	time.March:     {"MarDebits", "MarCredits"},
	time.April:     {"AprDebits", "AprCredits"},
	time.May:       {"MayDebits", "MayCredits"},
	time.June:      {"JunDebits", "JunCredits"},
	time.July:      {"JulDebits", "JulCredits"},
	time.August:    {"AugDebits", "AugCredits"},
	time.September: {"SepDebits", "SepCredits"},
	time.October:   {"OctDebits", "OctCredits"},
	time.November:  {"NovDebits", "NovCredits"},
	time.December:  {"DecDebits", "DecCredits"},
}

// MonthlyLedgerCredits reads one month's credit total for an account from
// the period-balance table. ErrBalanceNotFound when no balance row exists
// for the period.
func (g *Gateway) MonthlyLedgerCredits(ctx context.Context, account, subAccount string, year int, month time.Month) (decimal.Decimal, error) {
	if g.db == nil {
		return domain.Zero, ErrGatewayClosed
	}
	cols, ok := monthColumns[month]
	if !ok {
		return domain.Zero, NewQueryError("monthly_ledger_credits", fmt.Sprintf("invalid month %d", month), nil)
	}

	q := fmt.Sprintf(`SELECT %s FROM LedgerBalance
		WHERE Account = ? AND SubAccount = ? AND PeriodYear = ?`, cols.credits)

	var credits decimal.Decimal
	err := g.queryRow(ctx, q, account, subAccount, year).Scan(&credits)
	if err != nil {
		if isNoRows(err) {
			return domain.Zero,
				NewDataError("monthly_ledger_credits", "ledger balance row not found", err).WithCode("BALANCE_NOT_FOUND")
		}
		return domain.Zero, NewQueryError("monthly_ledger_credits", "failed to read ledger balance", err)
	}
	return credits, nil
}
