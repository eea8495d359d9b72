package sidechannel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// The treasury workbook holds one sheet per sales day. Rows are labelled
// in the first column:
//
//	SUCURSAL  <branch>
//	FECHA     <dd/mm/yyyy, may be blank>
//	EFECTIVO  <cash total>
//	TARJETA   <card total>
//	OTROS     <other total>
//	GLOBAL    <series> <number> <amount>
//	SERIE     FOLIO    IMPORTE      (starts the itemised-invoice table)
//	<series>  <number> <amount>
//
// The close date is authoritative; a blank FECHA falls back to the
// sheet's position in the workbook as the day of month.

// closeSheet is one parsed sheet before the date fallback is applied.
type closeSheet struct {
	pos     int
	hasDate bool
	close   domain.DailyClose
}

// closeParse is the cached form of one treasury workbook.
type closeParse struct {
	sheets   []closeSheet
	warnings []string
}

// ReadCloses parses the treasury workbook. period supplies the year and
// month for sheets whose date cell is blank.
func ReadCloses(path string, period time.Time) ([]domain.DailyClose, []string, error) {
	parsed, err := readCloseSheets(path)
	if err != nil {
		return nil, nil, err
	}
	closes, warnings := parsed.resolve(period)
	return closes, warnings, nil
}

// readCloseSheets is the pure file parse, period-independent so it can
// be cached.
func readCloseSheets(path string) (closeParse, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return closeParse{}, err
	}
	defer f.Close()

	var parse closeParse
	for pos, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return closeParse{}, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		cs, warnings, found := parseCloseSheet(sheet, pos, rows)
		parse.warnings = append(parse.warnings, warnings...)
		if found {
			parse.sheets = append(parse.sheets, cs)
		}
	}
	return parse, nil
}

// parseCloseSheet scans one sheet's labelled rows. found is false when
// the sheet carried no close at all (trailing empty sheets are routine).
func parseCloseSheet(sheet string, pos int, rows [][]string) (closeSheet, []string, bool) {
	cs := closeSheet{pos: pos}
	var warnings []string
	labelled := false
	inInvoices := false

	for rowIdx, row := range rows {
		label := strings.ToUpper(cell(row, 0))
		switch label {
		case "":
			continue
		case "SUCURSAL":
			cs.close.Branch = cell(row, 1)
			labelled = true
		case "FECHA":
			raw := cell(row, 1)
			if raw == "" {
				labelled = true
				continue
			}
			date, err := parseCellDate(raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("close sheet %q: %v; using sheet position", sheet, err))
				labelled = true
				continue
			}
			cs.close.Date = date
			cs.hasDate = true
			labelled = true
		case "EFECTIVO", "TARJETA", "OTROS":
			amount, err := parseCellAmount(cell(row, 1))
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("close sheet %q row %d: %v", sheet, rowIdx+1, err))
				continue
			}
			switch label {
			case "EFECTIVO":
				cs.close.CashTotal = amount
			case "TARJETA":
				cs.close.CardTotal = amount
			case "OTROS":
				cs.close.OtherTotal = amount
			}
			labelled = true
		case "GLOBAL":
			amount, err := parseCellAmount(cell(row, 3))
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("close sheet %q row %d: %v", sheet, rowIdx+1, err))
				continue
			}
			cs.close.Global = domain.CloseInvoice{Series: cell(row, 1), Number: cell(row, 2), Amount: amount}
			labelled = true
		case "SERIE":
			inInvoices = true
			labelled = true
		case "TOTAL":
			// Footer under the invoice table.
			inInvoices = false
		default:
			if !inInvoices {
				continue
			}
			amount, err := parseCellAmount(cell(row, 2))
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("close sheet %q row %d: %v", sheet, rowIdx+1, err))
				continue
			}
			cs.close.Individual = append(cs.close.Individual, domain.CloseInvoice{
				Series: cell(row, 0),
				Number: cell(row, 1),
				Amount: amount,
			})
		}
	}
	return cs, warnings, labelled
}

// resolve applies the sheet-position date fallback and returns the
// closes in date order as parsed.
func (p closeParse) resolve(period time.Time) ([]domain.DailyClose, []string) {
	warnings := append([]string(nil), p.warnings...)
	lastDay := time.Date(period.Year(), period.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()

	closes := make([]domain.DailyClose, 0, len(p.sheets))
	for _, cs := range p.sheets {
		if !cs.hasDate {
			day := cs.pos + 1
			if day > lastDay {
				warnings = append(warnings, fmt.Sprintf(
					"close sheet %d: no date and position exceeds %s; sheet skipped",
					cs.pos+1, period.Format("January 2006")))
				continue
			}
			cs.close.Date = time.Date(period.Year(), period.Month(), day, 0, 0, 0, 0, time.UTC)
		}
		closes = append(closes, cs.close)
	}
	return closes, warnings
}
