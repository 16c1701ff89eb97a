// Package testutil provides shared fixtures: small network relationship
// tables and a miniature hydrofabric GeoPackage.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/parquet-go/parquet-go"
)

// NetworkRow is one catchment–waterbody–nexus association.
type NetworkRow struct {
	ID       *string `parquet:"id"`
	ToID     *string `parquet:"toid"`
	DivideID *string `parquet:"divide_id"`
}

// Str returns a pointer to s.
func Str(s string) *string {
	return &s
}

// Row builds a NetworkRow; empty strings become nulls.
func Row(id, toid, divideID string) NetworkRow {
	r := NetworkRow{}
	if id != "" {
		r.ID = Str(id)
	}
	if toid != "" {
		r.ToID = Str(toid)
	}
	if divideID != "" {
		r.DivideID = Str(divideID)
	}
	return r
}

// NetworkRows is the association table shared by the fixtures.
//
//	wb-10 -> nex-85 (cat-10)
//	wb-11 -> nex-85 (cat-11)
//	wb-12 -> nex-86 (cat-12)
//	wb-13 -> tnx-1  (no divide)
//	wb-20 -> (none) (cat-20)
func NetworkRows() []NetworkRow {
	return []NetworkRow{
		Row("wb-10", "nex-85", "cat-10"),
		Row("wb-11", "nex-85", "cat-11"),
		Row("wb-12", "nex-86", "cat-12"),
		Row("wb-13", "tnx-1", ""),
		Row("wb-20", "", "cat-20"),
	}
}

// NetworkParquet writes rows to a Parquet file and returns its path. opts
// control the row group and page layout.
func NetworkParquet(t *testing.T, rows []NetworkRow, opts ...parquet.WriterOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "network.parquet")
	if err := parquet.WriteFile(path, rows, opts...); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	return path
}

// NetworkSQLite writes rows to a "network" table of a SQLite file and
// returns its path.
func NetworkSQLite(t *testing.T, rows []NetworkRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "network.gpkg")
	db := open(t, path)
	defer db.Close()

	exec(t, db, `CREATE TABLE network (id TEXT, toid TEXT, divide_id TEXT, type TEXT)`)
	insertNetwork(t, db, rows)
	return path
}

func insertNetwork(t *testing.T, db *sql.DB, rows []NetworkRow) {
	t.Helper()
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO network (id, toid, divide_id, type) VALUES (?, ?, ?, 'network')`,
			r.ID, r.ToID, r.DivideID); err != nil {
			t.Fatalf("insert network row: %v", err)
		}
	}
}

func open(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func exec(t *testing.T, db *sql.DB, stmt string, args ...any) {
	t.Helper()
	if _, err := db.Exec(stmt, args...); err != nil {
		t.Fatalf("exec %q: %v", stmt, err)
	}
}
