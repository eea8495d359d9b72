package sidechannel

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// cellDateLayouts are the date renderings the workbooks use. Day-first
// throughout; the statements never use US ordering.
var cellDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
}

// parseCellDate parses a workbook date cell.
func parseCellDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date cell")
	}
	for _, layout := range cellDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

var amountCleaner = strings.NewReplacer("$", "", ",", "", " ", "", " ", "")

// parseCellAmount parses a workbook money cell. Blank and dash cells are
// zero; anything else must be a number.
func parseCellAmount(s string) (decimal.Decimal, error) {
	s = amountCleaner.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" || s == "--" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", s)
	}
	return d, nil
}

// cell returns row[i] trimmed, or "" past the row's end. GetRows trims
// trailing empty cells, so short rows are routine.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowIsBlank reports whether every cell of the row is empty.
func rowIsBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// mojibakeMarks are the lead runes UTF-8 text shows after a wrong
// Windows-1252 decode. Plain Spanish text never contains them.
const mojibakeMarks = "ÃÂâ"

// RepairMojibake undoes UTF-8 text that was read as Windows-1252 on its
// way into the workbook ("DISPERSIÃ“N" back to "DISPERSIÓN"). Text that
// never took the legacy path comes back unchanged; two passes cover the
// occasional double-encoded cell.
func RepairMojibake(s string) string {
	for i := 0; i < 2; i++ {
		if !strings.ContainsAny(s, mojibakeMarks) {
			return s
		}
		raw, err := charmap.Windows1252.NewEncoder().String(s)
		if err != nil || raw == s || !utf8.ValidString(raw) {
			return s
		}
		s = raw
	}
	return s
}
