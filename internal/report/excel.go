package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/rmorelos/reconbank/internal/core/dispatch"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

const (
	resultsSheet = "RESULTADOS"
	noticesSheet = "AVISOS"
)

var resultHeaders = []string{
	"FECHA", "HOJA", "CUENTA", "DESCRIPCION", "IMPORTE",
	"SENTIDO", "TIPO", "ACCION", "FOLIOS", "NOTA",
}

// actionOrder fixes the summary block's row order.
var actionOrder = []domain.Action{
	domain.ActionInsert,
	domain.ActionReconcile,
	domain.ActionSkip,
	domain.ActionNotProcessed,
	domain.ActionNeedsReview,
	domain.ActionError,
	domain.ActionUnknown,
}

// WriteExcel writes the run report workbook and returns its path: one
// row per statement line, a per-action summary below the table, and a
// second sheet with the run's warnings when there are any.
func (w *Writer) WriteExcel(res *dispatch.JobResult) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return "", err
	}
	if err := renderResults(f, res); err != nil {
		return "", fmt.Errorf("render results sheet: %w", err)
	}
	if err := renderNotices(f, res); err != nil {
		return "", fmt.Errorf("render notices sheet: %w", err)
	}

	if err := os.MkdirAll(w.reportsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.reportsDir, fileStem(res)+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", err
	}

	w.log.WithFields(logrus.Fields{
		"job":  res.ID,
		"path": path,
	}).Info("Run report written")
	return path, nil
}

func renderResults(f *excelize.File, res *dispatch.JobResult) error {
	mode := "EJECUTADO"
	if res.DryRun {
		mode = "SIMULACION"
	}
	f.SetCellValue(resultsSheet, "A1", "CONCILIACION BANCARIA")
	f.SetCellValue(resultsSheet, "A2", fmt.Sprintf("Periodo: %s a %s (%s)",
		res.From.Format("02/01/2006"), res.To.Format("02/01/2006"), mode))
	f.SetCellValue(resultsSheet, "A3", fmt.Sprintf("Corrida: %s", res.ID))

	const headerRow = 5
	for i, header := range resultHeaders {
		f.SetCellValue(resultsSheet, string(rune('A'+i))+strconv.Itoa(headerRow), header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	f.SetCellStyle(resultsSheet, "A"+strconv.Itoa(headerRow), "J"+strconv.Itoa(headerRow), headerStyle)

	dataStyle, err := f.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	currencyStyle, err := f.NewStyle(&excelize.Style{
		NumFmt: 4,
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	for i, r := range res.Results {
		row := strconv.Itoa(headerRow + 1 + i)
		mv := r.Movement
		f.SetCellValue(resultsSheet, "A"+row, mv.Date.Format("02/01/2006"))
		f.SetCellValue(resultsSheet, "B"+row, mv.Sheet)
		f.SetCellValue(resultsSheet, "C"+row, mv.Account)
		f.SetCellValue(resultsSheet, "D"+row, mv.Description)
		f.SetCellValue(resultsSheet, "E"+row, mv.Amount.InexactFloat64())
		f.SetCellValue(resultsSheet, "F"+row, mv.Direction.String())
		f.SetCellValue(resultsSheet, "G"+row, string(r.Kind))
		f.SetCellValue(resultsSheet, "H"+row, string(r.Action))
		f.SetCellValue(resultsSheet, "I"+row, foliosText(r.Folios))
		f.SetCellValue(resultsSheet, "J"+row, r.Note)

		f.SetCellStyle(resultsSheet, "A"+row, "D"+row, dataStyle)
		f.SetCellStyle(resultsSheet, "E"+row, "E"+row, currencyStyle)
		f.SetCellStyle(resultsSheet, "F"+row, "J"+row, dataStyle)
	}

	summaryRow := headerRow + len(res.Results) + 2
	f.SetCellValue(resultsSheet, "A"+strconv.Itoa(summaryRow), "RESUMEN")
	f.SetCellStyle(resultsSheet, "A"+strconv.Itoa(summaryRow), "A"+strconv.Itoa(summaryRow), headerStyle)
	for _, action := range actionOrder {
		n, ok := res.Summary[action]
		if !ok {
			continue
		}
		summaryRow++
		f.SetCellValue(resultsSheet, "A"+strconv.Itoa(summaryRow), string(action))
		f.SetCellValue(resultsSheet, "B"+strconv.Itoa(summaryRow), n)
	}
	summaryRow++
	f.SetCellValue(resultsSheet, "A"+strconv.Itoa(summaryRow), "TOTAL")
	f.SetCellValue(resultsSheet, "B"+strconv.Itoa(summaryRow), len(res.Results))

	f.SetColWidth(resultsSheet, "A", "A", 12)
	f.SetColWidth(resultsSheet, "B", "C", 16)
	f.SetColWidth(resultsSheet, "D", "D", 48)
	f.SetColWidth(resultsSheet, "E", "E", 14)
	f.SetColWidth(resultsSheet, "J", "J", 40)
	return nil
}

// renderNotices adds the warnings sheet; a clean run does not get one.
func renderNotices(f *excelize.File, res *dispatch.JobResult) error {
	if len(res.Warnings)+len(res.Validations)+len(res.PlanErrors) == 0 {
		return nil
	}
	if _, err := f.NewSheet(noticesSheet); err != nil {
		return err
	}

	row := 1
	put := func(kind string, messages []string) {
		for _, msg := range messages {
			f.SetCellValue(noticesSheet, "A"+strconv.Itoa(row), kind)
			f.SetCellValue(noticesSheet, "B"+strconv.Itoa(row), msg)
			row++
		}
	}
	put("ADVERTENCIA", res.Warnings)
	put("VALIDACION", res.Validations)
	put("ERROR DE PLAN", res.PlanErrors)

	f.SetColWidth(noticesSheet, "A", "A", 16)
	f.SetColWidth(noticesSheet, "B", "B", 90)
	return nil
}
