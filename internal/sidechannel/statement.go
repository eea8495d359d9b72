package sidechannel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

// Statement column headers, by the names the banks print. Each list is
// tried in order; the first header present wins.
var (
	stmtDateHeaders   = []string{"FECHA"}
	stmtDescHeaders   = []string{"CONCEPTO", "DESCRIPCION", "DESCRIPCIÓN"}
	stmtDebitHeaders  = []string{"CARGO", "CARGOS", "RETIROS"}
	stmtCreditHeaders = []string{"ABONO", "ABONOS", "DEPOSITOS", "DEPÓSITOS"}
)

// ReadStatement parses the bank-statement workbook. Each worksheet maps
// to one registered account via the registry's sheet binding; unmapped
// sheets are skipped with a warning. Lines come back in workbook order,
// descriptions already repaired, amounts positive with the direction
// carrying the statement column.
func ReadStatement(path string, reg *config.Registry) ([]domain.BankMovement, []string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var (
		movements []domain.BankMovement
		warnings  []string
	)
	for _, sheet := range f.GetSheetList() {
		acct, ok := reg.BySheet(sheet)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("statement sheet %q: no account mapped; skipped", sheet))
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		parsed, sheetWarnings := parseStatementSheet(sheet, acct, rows)
		movements = append(movements, parsed...)
		warnings = append(warnings, sheetWarnings...)
	}
	if len(movements) == 0 {
		return nil, warnings, fmt.Errorf("no statement lines in any mapped sheet")
	}
	return movements, warnings, nil
}

// parseStatementSheet walks one account's sheet. Rows above the header
// are bank letterhead; rows below with no amounts are balance footers.
func parseStatementSheet(sheet string, acct *config.BankAccount, rows [][]string) ([]domain.BankMovement, []string) {
	var (
		movements []domain.BankMovement
		warnings  []string
	)

	dateCol, descCol, debitCol, creditCol := -1, -1, -1, -1
	for rowIdx, row := range rows {
		if dateCol < 0 {
			dateCol = headerIndex(row, stmtDateHeaders)
			if dateCol < 0 {
				continue
			}
			descCol = headerIndex(row, stmtDescHeaders)
			debitCol = headerIndex(row, stmtDebitHeaders)
			creditCol = headerIndex(row, stmtCreditHeaders)
			if descCol < 0 || (debitCol < 0 && creditCol < 0) {
				warnings = append(warnings, fmt.Sprintf("statement sheet %q: header row lacks concept or amount columns; sheet skipped", sheet))
				return nil, warnings
			}
			continue
		}

		if rowIsBlank(row) {
			continue
		}

		debit, derr := parseCellAmount(cell(row, debitCol))
		credit, cerr := parseCellAmount(cell(row, creditCol))
		if derr != nil || cerr != nil {
			warnings = append(warnings, fmt.Sprintf("statement sheet %q row %d: bad amount; line skipped", sheet, rowIdx+1))
			continue
		}
		if debit.IsZero() && credit.IsZero() {
			// Balance and subtotal rows carry no movement.
			continue
		}

		date, err := parseCellDate(cell(row, dateCol))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("statement sheet %q row %d: %v; line skipped", sheet, rowIdx+1, err))
			continue
		}
		if !debit.IsZero() && !credit.IsZero() {
			warnings = append(warnings, fmt.Sprintf("statement sheet %q row %d: both columns carry amounts; line skipped", sheet, rowIdx+1))
			continue
		}

		mv := domain.BankMovement{
			Sheet:       sheet,
			Bank:        acct.Institution,
			Account:     acct.Number,
			Date:        date,
			Description: RepairMojibake(cell(row, descCol)),
		}
		if !debit.IsZero() {
			mv.Amount = debit
			mv.Direction = domain.DirOut
		} else {
			mv.Amount = credit
			mv.Direction = domain.DirIn
		}
		movements = append(movements, mv)
	}

	if dateCol < 0 {
		warnings = append(warnings, fmt.Sprintf("statement sheet %q: no header row found; sheet skipped", sheet))
	}
	return movements, warnings
}

// headerIndex finds the first column whose header matches any candidate,
// ignoring case and padding.
func headerIndex(row []string, candidates []string) int {
	for _, want := range candidates {
		for i, got := range row {
			if strings.EqualFold(strings.TrimSpace(got), want) {
				return i
			}
		}
	}
	return -1
}
