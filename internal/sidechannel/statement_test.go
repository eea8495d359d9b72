package sidechannel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

func TestReadStatementMapsSheetsToAccounts(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "statement.xlsx", []sheetFixture{
		{
			name: "BMX EFECTIVO",
			rows: [][]any{
				{"BANCO MEXICANO DEL NORTE"},
				{"ESTADO DE CUENTA", "FECHA DE CORTE: 28/02/2026"},
				{},
				{"FECHA", "CONCEPTO", "CARGO", "ABONO"},
				{"02/02/2026", "DEPOSITO EFECTIVO SUC 12", "", "15,400.00"},
				{"03/02/2026", "PAGO PROVEEDOR 778812", "8,120.50", ""},
				{},
				{"", "SALDO FINAL", "", ""},
			},
		},
		{
			name: "BMX TARJETAS",
			rows: [][]any{
				{"FECHA", "DESCRIPCION", "RETIROS", "DEPOSITOS"},
				{"02/02/2026", "VENTAS TARJETAS AFIL 99", "", "9,876.54"},
			},
		},
	})

	movements, warnings, err := ReadStatement(path, testRegistry(t))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, movements, 3)

	require.Equal(t, "BMX EFECTIVO", movements[0].Sheet)
	require.Equal(t, "BMX", movements[0].Bank)
	require.Equal(t, "0154321001", movements[0].Account, "sheet binding resolves the account")
	require.Equal(t, day(2026, time.February, 2), movements[0].Date)
	require.Equal(t, "DEPOSITO EFECTIVO SUC 12", movements[0].Description)
	require.Equal(t, domain.DirIn, movements[0].Direction)
	require.True(t, movements[0].Amount.Equal(amt("15400.00")))

	require.Equal(t, domain.DirOut, movements[1].Direction, "the debit column is a withdrawal")
	require.True(t, movements[1].Amount.Equal(amt("8120.50")))

	require.Equal(t, "0154321002", movements[2].Account)
	require.Equal(t, domain.DirIn, movements[2].Direction)
}

func TestReadStatementSkipsUnmappedSheet(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "statement.xlsx", []sheetFixture{
		{
			name: "CUENTA VIEJA",
			rows: [][]any{
				{"FECHA", "CONCEPTO", "CARGO", "ABONO"},
				{"02/02/2026", "NO DEBE SALIR", "1.00", ""},
			},
		},
		{
			name: "BMX EFECTIVO",
			rows: [][]any{
				{"FECHA", "CONCEPTO", "CARGO", "ABONO"},
				{"02/02/2026", "DEPOSITO", "", "100.00"},
			},
		},
	})

	movements, warnings, err := ReadStatement(path, testRegistry(t))
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, "DEPOSITO", movements[0].Description)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], `"CUENTA VIEJA"`)
	require.Contains(t, warnings[0], "no account mapped")
}

func TestReadStatementRepairsMojibake(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "statement.xlsx", []sheetFixture{
		{
			name: "BMX EFECTIVO",
			rows: [][]any{
				{"FECHA", "CONCEPTO", "CARGO", "ABONO"},
				{"16/02/2026", "DISPERSIÃ“N NÃ“MINA QNA 03", "250,000.00", ""},
			},
		},
	})

	movements, _, err := ReadStatement(path, testRegistry(t))
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, "DISPERSIÓN NÓMINA QNA 03", movements[0].Description)
}

func TestReadStatementSkipsMalformedLines(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "statement.xlsx", []sheetFixture{
		{
			name: "BMX EFECTIVO",
			rows: [][]any{
				{"FECHA", "CONCEPTO", "CARGO", "ABONO"},
				{"02/02/2026", "AMBOS LADOS", "10.00", "10.00"},
				{"02/02/2026", "MONTO ROTO", "x10", ""},
				{"mañana", "FECHA ROTA", "10.00", ""},
				{"03/02/2026", "LINEA BUENA", "10.00", ""},
			},
		},
	})

	movements, warnings, err := ReadStatement(path, testRegistry(t))
	require.NoError(t, err)
	require.Len(t, movements, 1, "only the well-formed line survives")
	require.Equal(t, "LINEA BUENA", movements[0].Description)
	require.Len(t, warnings, 3)
	require.Contains(t, warnings[0], "both columns carry amounts")
	require.Contains(t, warnings[1], "bad amount")
	require.Contains(t, warnings[2], "line skipped")
}

func TestReadStatementErrsWhenNothingMapped(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "statement.xlsx", []sheetFixture{
		{
			name: "DESCONOCIDA",
			rows: [][]any{
				{"FECHA", "CONCEPTO", "CARGO", "ABONO"},
				{"02/02/2026", "ALGO", "1.00", ""},
			},
		},
	})

	_, warnings, err := ReadStatement(path, testRegistry(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no statement lines")
	require.NotEmpty(t, warnings)
}

func TestReadStatementWarnsOnHeaderlessSheet(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "statement.xlsx", []sheetFixture{
		{
			name: "BMX TARJETAS",
			rows: [][]any{
				{"HOJA SIN ENCABEZADO"},
				{"02/02/2026", "ALGO", "1.00", ""},
			},
		},
		{
			name: "BMX EFECTIVO",
			rows: [][]any{
				{"FECHA", "CONCEPTO", "CARGO", "ABONO"},
				{"02/02/2026", "DEPOSITO", "", "5.00"},
			},
		},
	})

	movements, warnings, err := ReadStatement(path, testRegistry(t))
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "no header row found")
}
