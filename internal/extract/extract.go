// Package extract copies the hydrofabric features named by a resolved spec
// from a source GeoPackage into a new GeoPackage.
package extract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/models"
	"github.com/starford/hfx/internal/network"
)

// GeoPackage header values (OGC 12-128r18, version 1.3).
const (
	gpkgApplicationID = 0x47504B47
	gpkgUserVersion   = 10300
)

// Tables every output GeoPackage carries, copied from the source in
// dependency order.
var coreTables = []string{"gpkg_spatial_ref_sys", "gpkg_contents", "gpkg_geometry_columns"}

// Layer describes a feature table and the column holding its identifier.
type Layer struct {
	Name     string
	Key      string
	Category models.Category
}

// Layers lists the layers written for a spec, in write order.
var Layers = []Layer{
	{Name: "divides", Key: "divide_id", Category: models.Catchment},
	{Name: "flowpaths", Key: "id", Category: models.Waterbody},
	{Name: "nexus", Key: "id", Category: models.Nexus},
}

// Result summarises an extraction.
type Result struct {
	Path     string         `json:"path"`
	Features map[string]int `json:"features"`
}

// Extractor reads features from a local hydrofabric GeoPackage.
type Extractor struct {
	source string
	logger *slog.Logger
}

// New creates an Extractor over the GeoPackage at source.
func New(source string, logger *slog.Logger) (*Extractor, error) {
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("extract: source: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{source: source, logger: logger}, nil
}

// Source returns the path of the source GeoPackage.
func (e *Extractor) Source() string {
	return e.source
}

// Extract writes one layer per non-empty category of spec to output. The
// file is assembled next to output and renamed into place only when every
// layer has been written.
func (e *Extractor) Extract(ctx context.Context, spec models.FilterSpec, output string) (*Result, error) {
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("extract: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".hfx-tmp-*.gpkg")
	if err != nil {
		return nil, fmt.Errorf("extract: create temp: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	features, err := e.write(ctx, spec, tmpName)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, output); err != nil {
		return nil, fmt.Errorf("extract: rename: %w", err)
	}
	success = true

	return &Result{Path: output, Features: features}, nil
}

func (e *Extractor) write(ctx context.Context, spec models.FilterSpec, path string) (map[string]int, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("extract: open output: %w", err)
	}
	defer db.Close()

	// ATTACH is per connection, so all work happens on one.
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS src`, e.source); err != nil {
		return nil, fmt.Errorf("extract: attach source: %w", err)
	}
	defer conn.ExecContext(context.Background(), `DETACH DATABASE src`) //nolint:errcheck

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmts := []string{
		fmt.Sprintf(`PRAGMA main.application_id = %d`, gpkgApplicationID),
		fmt.Sprintf(`PRAGMA main.user_version = %d`, gpkgUserVersion),
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return nil, fmt.Errorf("extract: %s: %w", s, err)
		}
	}
	for _, table := range coreTables {
		if err := copySchema(ctx, tx, table); err != nil {
			return nil, err
		}
	}

	features := make(map[string]int)
	for _, layer := range Layers {
		ids := spec.Set(layer.Category)
		if len(ids) == 0 {
			continue
		}
		n, err := e.writeLayer(ctx, tx, layer, ids)
		if err != nil {
			return nil, err
		}
		features[layer.Name] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("extract: commit: %w", err)
	}
	return features, nil
}

func (e *Extractor) writeLayer(ctx context.Context, tx *sql.Tx, layer Layer, ids []string) (int, error) {
	e.logger.Debug("filtering layer",
		slog.String("layer", layer.Name),
		slog.Any("ids", ids))

	if err := copySchema(ctx, tx, layer.Name); err != nil {
		return 0, err
	}

	name := network.QuoteIdent(layer.Name)
	cond, arg := network.InList(layer.Key, ids)
	query := `INSERT INTO main.` + name + ` SELECT * FROM src.` + name + ` WHERE ` + cond
	e.logger.Debug("layer query", slog.String("layer", layer.Name), slog.String("sql", query))

	res, err := tx.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("extract: copy %s: %w", layer.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("extract: copy %s: rows affected: %w", layer.Name, err)
	}

	metadata := []struct {
		what  string
		query string
	}{
		{"srs", `INSERT OR IGNORE INTO main.gpkg_spatial_ref_sys
			SELECT * FROM src.gpkg_spatial_ref_sys WHERE srs_id IN (
				SELECT srs_id FROM src.gpkg_contents WHERE table_name = ?1
				UNION SELECT srs_id FROM src.gpkg_geometry_columns WHERE table_name = ?1)`},
		{"contents", `INSERT OR REPLACE INTO main.gpkg_contents
			SELECT * FROM src.gpkg_contents WHERE table_name = ?1`},
		{"geometry columns", `INSERT OR REPLACE INTO main.gpkg_geometry_columns
			SELECT * FROM src.gpkg_geometry_columns WHERE table_name = ?1`},
		{"last change", `UPDATE main.gpkg_contents
			SET last_change = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE table_name = ?1`},
	}
	for _, m := range metadata {
		if _, err := tx.ExecContext(ctx, m.query, layer.Name); err != nil {
			return 0, fmt.Errorf("extract: copy %s %s: %w", layer.Name, m.what, err)
		}
	}

	if n == 0 {
		e.logger.Warn("no features matched", slog.String("layer", layer.Name))
	}
	e.logger.Info("wrote layer", slog.String("layer", layer.Name), slog.Int64("features", n))
	return int(n), nil
}

// copySchema recreates a source table in the output database using the
// source's own CREATE statement.
func copySchema(ctx context.Context, tx *sql.Tx, table string) error {
	var ddl string
	err := tx.QueryRowContext(ctx,
		`SELECT sql FROM src.sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("extract: %s: %w", table, apperr.ErrLayerNotFound)
	}
	if err != nil {
		return fmt.Errorf("extract: schema of %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("extract: create %s: %w", table, err)
	}
	return nil
}
