// Package gateway is the single seam between the reconciliation engine and
// the ERP database. All SQL lives here; callers speak in domain types.
//
// Connections are attempted against an ordered list of driver candidates
// (sqlserver, postgres, sqlite) and the first engine that answers a ping
// wins. Queries are written once with '?' placeholders and rebound to the
// engine's native placeholder form.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	_ "github.com/lib/pq"                // PostgreSQL driver
	_ "modernc.org/sqlite"               // SQLite driver (cgo-free)

	"github.com/rmorelos/reconbank/internal/config"
)

// Gateway owns the database handle and the company constants stamped on
// every row it writes.
type Gateway struct {
	db      *sql.DB
	dialect Dialect
	dbCfg   config.DatabaseConfig
	company config.CompanyConfig
	log     logrus.FieldLogger
}

// Open connects to the first reachable driver candidate in cfg.Drivers.
// On SQLite it also bootstraps the schema, so a file path (or ":memory:")
// is all a development run needs.
func Open(ctx context.Context, dbCfg config.DatabaseConfig, company config.CompanyConfig, log logrus.FieldLogger) (*Gateway, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(dbCfg.Drivers) == 0 {
		return nil, NewConnectionError("open", "no driver candidates configured", nil).WithCode("NO_DRIVER")
	}

	var lastErr error
	for _, name := range dbCfg.Drivers {
		entry, ok := dialectByName[name]
		if !ok {
			lastErr = NewConnectionError("open", fmt.Sprintf("unknown driver %q", name), nil)
			log.WithField("driver", name).Warn("Skipping unknown database driver")
			continue
		}

		dsn, err := buildDSN(entry.dialect, dbCfg)
		if err != nil {
			lastErr = err
			continue
		}

		db, err := sql.Open(entry.driverName, dsn)
		if err != nil {
			lastErr = NewConnectionError("open", fmt.Sprintf("failed to open %s connection", name), err)
			continue
		}

		db.SetMaxOpenConns(dbCfg.GetMaxOpenConns())
		db.SetMaxIdleConns(dbCfg.GetMaxIdleConns())
		if entry.dialect == DialectSQLite {
			// modernc serialises writers; a second writer conn only buys
			// "database is locked" errors.
			db.SetMaxOpenConns(1)
		}

		pingCtx, cancel := context.WithTimeout(ctx, dbCfg.ConnectTimeout())
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			db.Close()
			lastErr = NewConnectionError("open", fmt.Sprintf("failed to ping %s", name), err).WithCode("CONNECTION_FAILED")
			log.WithField("driver", name).WithError(err).Warn("Database candidate unreachable, trying next")
			continue
		}

		g := &Gateway{
			db:      db,
			dialect: entry.dialect,
			dbCfg:   dbCfg,
			company: company,
			log:     log.WithField("driver", name),
		}

		if entry.dialect == DialectSQLite {
			if err := g.ensureSchema(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}

		g.log.Info("Connected to ERP database")
		return g, nil
	}

	if lastErr == nil {
		lastErr = NewConnectionError("open", "all driver candidates failed", nil)
	}
	return nil, NewConnectionError("open", "no database candidate reachable", lastErr).WithCode("NO_DRIVER")
}

// buildDSN renders the connection string for a dialect.
func buildDSN(d Dialect, cfg config.DatabaseConfig) (string, error) {
	switch d {
	case DialectSQLServer:
		query := url.Values{}
		query.Set("database", cfg.Name)
		query.Set("dial timeout", fmt.Sprintf("%d", int(cfg.ConnectTimeout().Seconds())))
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			RawQuery: query.Encode(),
		}
		return u.String(), nil
	case DialectPostgres:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable connect_timeout=%d",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name,
			int(cfg.ConnectTimeout().Seconds()),
		), nil
	case DialectSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "reconbank.db"
		}
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)", path), nil
	default:
		return "", NewConnectionError("build_dsn", fmt.Sprintf("unsupported dialect %v", d), nil)
	}
}

// Close releases the database handle.
func (g *Gateway) Close() error {
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	if err != nil {
		return NewConnectionError("close", "failed to close database", err)
	}
	return nil
}

// Ping verifies the connection is still alive.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.db == nil {
		return ErrGatewayClosed
	}
	ctx, cancel := context.WithTimeout(ctx, g.dbCfg.ConnectTimeout())
	defer cancel()
	if err := g.db.PingContext(ctx); err != nil {
		return NewConnectionError("ping", "database ping failed", err).WithCode("CONNECTION_FAILED")
	}
	return nil
}

// Dialect reports the dialect of the connected engine.
func (g *Gateway) Dialect() Dialect {
	return g.dialect
}

// Begin opens a plan transaction. Every execution plan runs inside
// exactly one of these.
func (g *Gateway) Begin(ctx context.Context) (*Tx, error) {
	if g.db == nil {
		return nil, ErrGatewayClosed
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewTransactionError("begin", "failed to begin transaction", err)
	}
	return &Tx{tx: tx, g: g}, nil
}

func (g *Gateway) query(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	if g.db == nil {
		return nil, ErrGatewayClosed
	}
	return g.db.QueryContext(ctx, g.dialect.rebind(q), args...)
}

func (g *Gateway) queryRow(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return g.db.QueryRowContext(ctx, g.dialect.rebind(q), args...)
}

// Tx is a single plan transaction. It carries the gateway so rebinding
// and company constants stay available inside the transaction.
type Tx struct {
	tx   *sql.Tx
	g    *Gateway
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxClosed
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return NewTransactionError("commit", "failed to commit transaction", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return NewTransactionError("rollback", "failed to roll back transaction", err)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, q string, args ...interface{}) (sql.Result, error) {
	if t.done {
		return nil, ErrTxClosed
	}
	return t.tx.ExecContext(ctx, t.g.dialect.rebind(q), args...)
}

func (t *Tx) queryRow(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.g.dialect.rebind(q), args...)
}
