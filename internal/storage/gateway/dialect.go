package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour of the connected engine. Queries in
// this package are written with '?' placeholders and rebound per dialect.
type Dialect int

const (
	DialectSQLServer Dialect = iota
	DialectPostgres
	DialectSQLite
)

// String returns the config-file name of the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectSQLServer:
		return "sqlserver"
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// dialectByName maps config driver names to dialects and registered
// database/sql driver names.
var dialectByName = map[string]struct {
	dialect    Dialect
	driverName string
}{
	"sqlserver": {DialectSQLServer, "sqlserver"},
	"postgres":  {DialectPostgres, "postgres"},
	"sqlite":    {DialectSQLite, "sqlite"},
}

// rebind rewrites '?' placeholders into the engine's native form:
// @pN for SQL Server, $N for Postgres, left as-is for SQLite.
func (d Dialect) rebind(query string) string {
	if d == DialectSQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		switch d {
		case DialectSQLServer:
			b.WriteString("@p")
		case DialectPostgres:
			b.WriteByte('$')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// scanBool accepts the boolean encodings the three engines produce:
// BIT scans as bool, legacy SMALLINT flags as int64, text affinity as
// "0"/"1" bytes.
type scanBool bool

// Scan implements sql.Scanner.
func (b *scanBool) Scan(v interface{}) error {
	switch x := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = scanBool(x)
	case int64:
		*b = x != 0
	case []byte:
		*b = len(x) > 0 && x[0] != '0'
	case string:
		*b = len(x) > 0 && x[0] != '0'
	default:
		return fmt.Errorf("cannot scan %T into bool flag", v)
	}
	return nil
}

// bit converts a bool into the portable 0/1 integer form used for
// flag columns on all three engines.
func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}
