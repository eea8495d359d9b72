package sidechannel

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// The payroll workbook's first sheet carries the period totals followed
// by the concept tables:
//
//	PERIODO      <label>
//	DISPERSION   <wire total>
//	CHEQUES      <checks total>
//	VACACIONES   <vacations total>
//	FINIQUITO    <severance total>
//	PERCEPCIONES
//	CLAVE        CONCEPTO  IMPORTE
//	<code>       <name>    <amount>
//	DEDUCCIONES
//	CLAVE        CONCEPTO  IMPORTE
//	<code>       <name>    <amount>

// ReadPayroll parses the payroll workbook. The period label and the
// dispersion total are mandatory; a workbook without them is unusable
// and errors out.
func ReadPayroll(path string) (*domain.Payroll, []string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	return parsePayrollRows(rows)
}

func parsePayrollRows(rows [][]string) (*domain.Payroll, []string, error) {
	var (
		warnings    []string
		period      string
		dispersion  decimal.Decimal
		checks      decimal.Decimal
		vacations   decimal.Decimal
		severance   decimal.Decimal
		perceptions []domain.PayrollConcept
		deductions  []domain.PayrollConcept
	)
	haveDispersion := false

	const (
		sectionTotals = iota
		sectionPerceptions
		sectionDeductions
	)
	section := sectionTotals

	for rowIdx, row := range rows {
		label := strings.ToUpper(cell(row, 0))
		switch label {
		case "":
			continue
		case "PERIODO":
			period = cell(row, 1)
			continue
		case "PERCEPCIONES":
			section = sectionPerceptions
			continue
		case "DEDUCCIONES":
			section = sectionDeductions
			continue
		case "CLAVE":
			// Concept-table header.
			continue
		}

		if section == sectionTotals {
			amount, err := parseCellAmount(cell(row, 1))
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("payroll row %d: %v", rowIdx+1, err))
				continue
			}
			switch label {
			case "DISPERSION", "DISPERSIÓN":
				dispersion = amount
				haveDispersion = true
			case "CHEQUES":
				checks = amount
			case "VACACIONES":
				vacations = amount
			case "FINIQUITO", "FINIQUITOS":
				severance = amount
			default:
				warnings = append(warnings, fmt.Sprintf("payroll row %d: unknown total %q", rowIdx+1, label))
			}
			continue
		}

		amount, err := parseCellAmount(cell(row, 2))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("payroll row %d: %v", rowIdx+1, err))
			continue
		}
		concept := domain.PayrollConcept{
			Code:   cell(row, 0),
			Name:   RepairMojibake(cell(row, 1)),
			Amount: amount,
		}
		if section == sectionPerceptions {
			perceptions = append(perceptions, concept)
		} else {
			deductions = append(deductions, concept)
		}
	}

	if period == "" {
		return nil, warnings, fmt.Errorf("no PERIODO row")
	}
	if !haveDispersion {
		return nil, warnings, fmt.Errorf("no DISPERSION row")
	}
	return domain.NewPayroll(period, dispersion, checks, vacations, severance, perceptions, deductions), warnings, nil
}
