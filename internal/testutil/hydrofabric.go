package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
)

const gpkgSchemaSQL = `
CREATE TABLE gpkg_spatial_ref_sys (
	srs_name                 TEXT NOT NULL,
	srs_id                   INTEGER NOT NULL PRIMARY KEY,
	organization             TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition               TEXT NOT NULL,
	description              TEXT
);

CREATE TABLE gpkg_contents (
	table_name  TEXT NOT NULL PRIMARY KEY,
	data_type   TEXT NOT NULL,
	identifier  TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x       DOUBLE,
	min_y       DOUBLE,
	max_x       DOUBLE,
	max_y       DOUBLE,
	srs_id      INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE gpkg_geometry_columns (
	table_name         TEXT NOT NULL,
	column_name        TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id             INTEGER NOT NULL,
	z                  TINYINT NOT NULL,
	m                  TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

INSERT INTO gpkg_spatial_ref_sys VALUES
	('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', NULL),
	('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', NULL),
	('NAD83 / Conus Albers', 5070, 'EPSG', 5070, 'PROJCS["NAD83 / Conus Albers"]', NULL);

CREATE TABLE divides (
	fid       INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	geom      BLOB,
	divide_id TEXT,
	toid      TEXT,
	areasqkm  REAL
);

CREATE TABLE flowpaths (
	fid       INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	geom      BLOB,
	id        TEXT,
	toid      TEXT,
	divide_id TEXT,
	lengthkm  REAL
);

CREATE TABLE nexus (
	fid  INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	geom BLOB,
	id   TEXT,
	toid TEXT,
	type TEXT
);

CREATE TABLE network (id TEXT, toid TEXT, divide_id TEXT, type TEXT);

INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES
	('divides', 'features', 'divides', 5070),
	('flowpaths', 'features', 'flowpaths', 5070),
	('nexus', 'features', 'nexus', 5070),
	('network', 'attributes', 'network', NULL);

INSERT INTO gpkg_geometry_columns VALUES
	('divides', 'geom', 'MULTIPOLYGON', 5070, 0, 0),
	('flowpaths', 'geom', 'MULTILINESTRING', 5070, 0, 0),
	('nexus', 'geom', 'POINT', 5070, 0, 0);
`

// Hydrofabric writes a miniature hydrofabric GeoPackage containing the
// divides, flowpaths, nexus and network layers for NetworkRows, plus one
// unrelated feature per layer, and returns its path.
func Hydrofabric(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conus.gpkg")
	db := open(t, path)
	defer db.Close()

	exec(t, db, `PRAGMA application_id = 1196444487`)
	exec(t, db, `PRAGMA user_version = 10300`)
	exec(t, db, gpkgSchemaSQL)

	rows := NetworkRows()
	insertNetwork(t, db, rows)
	for _, r := range rows {
		if r.ID != nil {
			exec(t, db, `INSERT INTO flowpaths (geom, id, toid, divide_id, lengthkm) VALUES (?, ?, ?, ?, 1.5)`,
				geom(*r.ID), r.ID, r.ToID, r.DivideID)
		}
		if r.DivideID != nil {
			exec(t, db, `INSERT INTO divides (geom, divide_id, toid, areasqkm) VALUES (?, ?, ?, 2.5)`,
				geom(*r.DivideID), r.DivideID, r.ID)
		}
	}
	for _, nex := range []string{"nex-85", "nex-86", "tnx-1"} {
		exec(t, db, `INSERT INTO nexus (geom, id, toid, type) VALUES (?, ?, NULL, 'nexus')`, geom(nex), nex)
	}

	exec(t, db, `INSERT INTO divides (geom, divide_id, toid, areasqkm) VALUES (?, 'cat-99', 'wb-99', 9)`, geom("cat-99"))
	exec(t, db, `INSERT INTO flowpaths (geom, id, toid, divide_id, lengthkm) VALUES (?, 'wb-99', 'nex-99', 'cat-99', 9)`, geom("wb-99"))
	exec(t, db, `INSERT INTO nexus (geom, id, toid, type) VALUES (?, 'nex-99', NULL, 'nexus')`, geom("nex-99"))
	return path
}

// Count returns the number of rows in table of the SQLite file at path.
func Count(t *testing.T, path, table string) int {
	t.Helper()
	db := open(t, path)
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// Strings returns column of table in rowid order.
func Strings(t *testing.T, path, table, column string) []string {
	t.Helper()
	db := open(t, path)
	defer db.Close()
	rows, err := db.Query(`SELECT "` + column + `" FROM "` + table + `" ORDER BY rowid`)
	if err != nil {
		t.Fatalf("query %s.%s: %v", table, column, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			t.Fatal(err)
		}
		out = append(out, s.String)
	}
	return out
}

// geom returns a placeholder geometry blob tagged with the feature id.
func geom(id string) []byte {
	return append([]byte("GP\x00\x01"), id...)
}
