package gateway

import (
	"context"
	"fmt"
)

// nextNumber mints the next value of a monotonic column inside the
// transaction. The read of the current maximum is serialised so two
// concurrent transactions never observe the same value:
//
//   - SQL Server: WITH (UPDLOCK, HOLDLOCK) row-range lock, held to commit.
//   - Postgres: transaction-scoped advisory lock on the (table, column) pair.
//   - SQLite: the engine admits a single writer, nothing extra needed.
func (t *Tx) nextNumber(ctx context.Context, table, column, where string, args ...interface{}) (int64, error) {
	if t.done {
		return 0, ErrTxClosed
	}

	if t.g.dialect == DialectPostgres {
		lock := fmt.Sprintf("SELECT pg_advisory_xact_lock(hashtext('%s.%s'))", table, column)
		if _, err := t.tx.ExecContext(ctx, lock); err != nil {
			return 0, NewTransactionError("next_number", fmt.Sprintf("failed to take advisory lock on %s.%s", table, column), err)
		}
	}

	hint := ""
	if t.g.dialect == DialectSQLServer {
		hint = " WITH (UPDLOCK, HOLDLOCK)"
	}

	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s%s", column, table, hint)
	if where != "" {
		q += " WHERE " + where
	}

	var next int64
	if err := t.queryRow(ctx, q, args...).Scan(&next); err != nil {
		return 0, NewQueryError("next_number", fmt.Sprintf("failed to read max %s.%s", table, column), err)
	}
	return next, nil
}

// NextFolio mints the next movement folio. Folios are globally unique
// across the movement table.
func (t *Tx) NextFolio(ctx context.Context) (int64, error) {
	return t.nextNumber(ctx, "MovHeader", "Folio", "")
}

// NextLedgerNumber mints the next ledger-entry number within this
// engine's source stream.
func (t *Tx) NextLedgerNumber(ctx context.Context) (int64, error) {
	return t.nextNumber(ctx, "LedgerEntry", "LedgerNumber", "Source = ?", t.g.company.Source)
}
