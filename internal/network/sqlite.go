package network

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRelation reads the relationship table from a SQLite database, such
// as the network layer of a hydrofabric GeoPackage.
type SQLiteRelation struct {
	conn  *sql.DB
	table string
}

// OpenSQLite opens path read-only and checks that table exists.
func OpenSQLite(path, table string) (*SQLiteRelation, error) {
	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("network: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("network: ping: %w", err)
	}

	var name string
	err = conn.QueryRow(`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, table).Scan(&name)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("network: table %q in %s: %w", table, path, err)
	}
	return &SQLiteRelation{conn: conn, table: table}, nil
}

// Read runs a single SELECT with one IN clause per predicate, joined by OR.
// Each value set is bound as one JSON array, so its length is not limited by
// the SQLite bind parameter cap.
func (s *SQLiteRelation) Read(ctx context.Context, columns []string, filter Filter) (*Table, error) {
	query, args := selectQuery(s.table, columns, filter)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("network: query: %w", err)
	}
	defer rows.Close()

	out := NewTable(columns...)
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("network: scan: %w", err)
		}
		row := make([]*string, len(columns))
		for i, v := range values {
			if v.Valid {
				str := v.String
				row[i] = &str
			}
		}
		out.Append(row...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("network: rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *SQLiteRelation) Close() error {
	return s.conn.Close()
}

func selectQuery(table string, columns []string, filter Filter) (string, []any) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}

	var (
		where []string
		args  []any
	)
	for _, p := range filter {
		cond, arg := InList(p.Column, p.Values)
		where = append(where, cond)
		args = append(args, arg)
	}

	query := "SELECT " + strings.Join(quoted, ", ") + " FROM " + QuoteIdent(table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " OR ")
	}
	return query, args
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// InList returns a condition matching column against values and the single
// argument to bind for it.
func InList(column string, values []string) (string, string) {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values) // []string always marshals
	return QuoteIdent(column) + " IN (SELECT value FROM json_each(?))", string(b)
}
