// Package sqlproc runs SQL statements as procedure handlers. Statements use
// :name placeholders that are bound from the procedure input object.
package sqlproc

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/hanpama/procgraph/router"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// driverNames maps a dialect to the database/sql driver registered for it.
var driverNames = map[Dialect]string{
	SQLite:   "sqlite",
	Postgres: "pgx",
	MySQL:    "mysql",
}

type Mode int

const (
	// ModeQuery returns every row as a list of column maps.
	ModeQuery Mode = iota
	// ModeOne returns the first row, or nil when there is none.
	ModeOne
	// ModeExec returns rowsAffected and, where the driver supports it,
	// lastInsertId.
	ModeExec
)

// Open opens a pool for the named dialect.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	d := Dialect(driver)
	name, ok := driverNames[d]
	if !ok {
		return nil, "", fmt.Errorf("sqlproc: unsupported driver %q", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("sqlproc: open %s: %w", driver, err)
	}
	if d == SQLite {
		// every connection to an in-memory database is a separate database
		db.SetMaxOpenConns(1)
	}
	return db, d, nil
}

// Statement is a query with its placeholders rewritten for a dialect.
type Statement struct {
	SQL   string
	Names []string
}

// Compile rewrites :name placeholders to ? (sqlite, mysql) or $n (postgres).
// Quoted strings and postgres :: casts are left alone. A name used twice
// binds twice.
func Compile(d Dialect, query string) Statement {
	var b strings.Builder
	var names []string
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(query) && query[j] != c {
				j++
			}
			if j >= len(query) {
				j = len(query) - 1
			}
			b.WriteString(query[i : j+1])
			i = j
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			b.WriteString("::")
			i++
		case c == ':' && i+1 < len(query) && isNameStart(query[i+1]):
			j := i + 1
			for j < len(query) && isNamePart(query[j]) {
				j++
			}
			names = append(names, query[i+1:j])
			if d == Postgres {
				b.WriteString("$" + strconv.Itoa(len(names)))
			} else {
				b.WriteByte('?')
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return Statement{SQL: b.String(), Names: names}
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool { return isNameStart(c) || (c >= '0' && c <= '9') }

// Args binds the statement's placeholders from input. Absent keys bind NULL.
func (s Statement) Args(input any) ([]any, error) {
	if len(s.Names) == 0 {
		return nil, nil
	}
	m, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("sqlproc: input must be an object to bind :%s, got %T", s.Names[0], input)
	}
	args := make([]any, len(s.Names))
	for i, n := range s.Names {
		args[i] = m[n]
	}
	return args, nil
}

// New returns a handler running query against db.
func New(db *sql.DB, d Dialect, query string, mode Mode) router.Handler {
	stmt := Compile(d, query)
	return func(ctx context.Context, input any) (any, error) {
		args, err := stmt.Args(input)
		if err != nil {
			return nil, err
		}
		if mode == ModeExec {
			return exec(ctx, db, stmt.SQL, args)
		}
		rows, err := queryRows(ctx, db, stmt.SQL, args, mode == ModeOne)
		if err != nil {
			return nil, err
		}
		if mode == ModeOne {
			if len(rows) == 0 {
				return nil, nil
			}
			return rows[0], nil
		}
		return rows, nil
	}
}

func exec(ctx context.Context, db *sql.DB, query string, args []any) (any, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlproc: exec: %w", err)
	}
	out := map[string]any{}
	if n, err := res.RowsAffected(); err == nil {
		out["rowsAffected"] = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out["lastInsertId"] = id
	}
	return out, nil
}

func queryRows(ctx context.Context, db *sql.DB, query string, args []any, first bool) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlproc: query: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlproc: columns: %w", err)
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlproc: scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
		if first {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlproc: rows: %w", err)
	}
	return out, nil
}
