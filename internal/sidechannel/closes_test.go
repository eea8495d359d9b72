package sidechannel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

func TestReadClosesParsesLabelledSheet(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "closes.xlsx", []sheetFixture{
		{
			name: "01",
			rows: [][]any{
				{"Sucursal", "MATRIZ"},
				{"Fecha", "05/02/2026"},
				{"Efectivo", "12,500.00"},
				{"Tarjeta", "8,300.00"},
				{"Otros", "150.00"},
				{"Global", "G", "4410", "2,000.00"},
				{},
				{"SERIE", "FOLIO", "IMPORTE"},
				{"A", "1201", "10,150.00"},
				{"A", "1202", "8,800.00"},
				{"TOTAL", "", "18,950.00"},
				{"B", "999", "1.00"},
			},
		},
	})

	closes, warnings, err := ReadCloses(path, day(2026, time.February, 1))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, closes, 1)

	c := closes[0]
	require.Equal(t, "MATRIZ", c.Branch)
	require.Equal(t, day(2026, time.February, 5), c.Date, "the date cell wins over sheet position")
	require.True(t, c.CashTotal.Equal(amt("12500.00")))
	require.True(t, c.CardTotal.Equal(amt("8300.00")))
	require.True(t, c.OtherTotal.Equal(amt("150.00")))

	require.Equal(t, domain.CloseInvoice{Series: "G", Number: "4410", Amount: amt("2000.00")}, c.Global)
	require.Len(t, c.Individual, 2, "rows after the TOTAL footer are not invoices")
	require.Equal(t, "A", c.Individual[0].Series)
	require.Equal(t, "1201", c.Individual[0].Number)
	require.True(t, c.Individual[0].Amount.Equal(amt("10150.00")))
	require.True(t, c.IndividualTotal().Equal(amt("18950.00")))
}

func TestReadClosesFallsBackToSheetPosition(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "closes.xlsx", []sheetFixture{
		{
			name: "01",
			rows: [][]any{
				{"SUCURSAL", "MATRIZ"},
				{"FECHA", "01/02/2026"},
				{"EFECTIVO", "100.00"},
			},
		},
		{
			name: "02",
			rows: [][]any{
				{"SUCURSAL", "MATRIZ"},
				{"FECHA", ""},
				{"EFECTIVO", "200.00"},
			},
		},
		{
			name: "03",
			rows: [][]any{},
		},
	})

	closes, warnings, err := ReadCloses(path, day(2026, time.February, 1))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, closes, 2, "the trailing empty sheet carries no close")

	require.Equal(t, day(2026, time.February, 1), closes[0].Date)
	require.Equal(t, day(2026, time.February, 2), closes[1].Date, "blank date falls back to sheet position as day of month")
	require.True(t, closes[1].CashTotal.Equal(amt("200.00")))
}

func TestReadClosesWarnsOnUnparseableDate(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "closes.xlsx", []sheetFixture{
		{
			name: "01",
			rows: [][]any{
				{"FECHA", "proximamente"},
				{"EFECTIVO", "100.00"},
			},
		},
	})

	closes, warnings, err := ReadCloses(path, day(2026, time.March, 1))
	require.NoError(t, err)
	require.Len(t, closes, 1)
	require.Equal(t, day(2026, time.March, 1), closes[0].Date, "bad date degrades to the position fallback")
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "using sheet position")
}

func TestResolveSkipsPositionPastMonthEnd(t *testing.T) {
	parse := closeParse{
		sheets: []closeSheet{
			{pos: 27, close: domain.DailyClose{Branch: "MATRIZ"}},
			{pos: 28, close: domain.DailyClose{Branch: "MATRIZ"}},
		},
	}

	closes, warnings := parse.resolve(day(2026, time.February, 1))
	require.Len(t, closes, 1, "February 2026 has 28 days; position 29 cannot be a close")
	require.Equal(t, day(2026, time.February, 28), closes[0].Date)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "position exceeds February 2026")
}
