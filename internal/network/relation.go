package network

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/hfx/internal/apperr"
)

// Relation is a read-only, filterable columnar table of
// catchment–waterbody–nexus associations.
type Relation interface {
	// Read returns the given columns of every row matching filter.
	Read(ctx context.Context, columns []string, filter Filter) (*Table, error)
	Close() error
}

// Verify implementations satisfy Relation at compile time.
var (
	_ Relation = (*ParquetRelation)(nil)
	_ Relation = (*SQLiteRelation)(nil)
)

// DefaultLayer is the network table name inside a hydrofabric GeoPackage.
const DefaultLayer = "network"

// Open opens the relationship table at the local path, choosing the reader
// by file extension. layer names the table for SQLite-based files.
func Open(path, layer string) (Relation, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return OpenParquet(path)
	case ".gpkg", ".sqlite", ".db":
		if layer == "" {
			layer = DefaultLayer
		}
		return OpenSQLite(path, layer)
	default:
		return nil, fmt.Errorf("network: open %s: %w", path, apperr.ErrUnsupportedLocation)
	}
}
