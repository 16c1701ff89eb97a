package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Page index statistics for byte arrays may be truncated to this length, so
// bounds this long are not trusted for pruning.
const statsTruncateLen = 16

// ParquetRelation reads the relationship table from a Parquet file. Only the
// requested column chunks are decoded, and row groups whose page index
// bounds exclude every predicate value are skipped.
type ParquetRelation struct {
	f    *os.File
	file *parquet.File
}

// OpenParquet opens the Parquet file at path.
func OpenParquet(path string) (*ParquetRelation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("network: open parquet: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("network: stat parquet: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("network: read parquet footer: %w", err)
	}
	return &ParquetRelation{f: f, file: pf}, nil
}

// NumRows returns the number of rows in the file.
func (p *ParquetRelation) NumRows() int64 {
	return p.file.NumRows()
}

// Read scans the file and returns the rows matching filter.
func (p *ParquetRelation) Read(ctx context.Context, columns []string, filter Filter) (*Table, error) {
	projected, err := p.leafIndexes(columns)
	if err != nil {
		return nil, err
	}
	filter = filter.Indexed()
	predicates := make([]int, len(filter))
	for i, pred := range filter {
		idx, err := p.leafIndex(pred.Column)
		if err != nil {
			return nil, err
		}
		predicates[i] = idx
	}

	out := NewTable(columns...)
	for g, rg := range p.file.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !mayMatch(rg, filter, predicates) {
			continue
		}

		chunks := rg.ColumnChunks()
		projectedValues := make([][]*string, len(projected))
		for i, idx := range projected {
			vals, err := readColumn(chunks[idx])
			if err != nil {
				return nil, fmt.Errorf("network: row group %d column %q: %w", g, columns[i], err)
			}
			projectedValues[i] = vals
		}
		predicateValues := make([][]*string, len(filter))
		for i, idx := range predicates {
			if j := indexOf(projected, idx); j >= 0 {
				predicateValues[i] = projectedValues[j]
				continue
			}
			vals, err := readColumn(chunks[idx])
			if err != nil {
				return nil, fmt.Errorf("network: row group %d column %q: %w", g, filter[i].Column, err)
			}
			predicateValues[i] = vals
		}

		for row := int64(0); row < rg.NumRows(); row++ {
			if !matchRow(filter, predicateValues, row) {
				continue
			}
			values := make([]*string, len(projected))
			for i := range projected {
				values[i] = at(projectedValues[i], row)
			}
			out.Append(values...)
		}
	}
	return out, nil
}

// Close closes the underlying file.
func (p *ParquetRelation) Close() error {
	return p.f.Close()
}

func (p *ParquetRelation) leafIndexes(columns []string) ([]int, error) {
	out := make([]int, len(columns))
	for i, c := range columns {
		idx, err := p.leafIndex(c)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func (p *ParquetRelation) leafIndex(column string) (int, error) {
	leaf, ok := p.file.Schema().Lookup(column)
	if !ok {
		return 0, fmt.Errorf("network: parquet column %q not found", column)
	}
	return leaf.ColumnIndex, nil
}

// readColumn decodes every value of a flat column chunk. Nulls are returned
// as nil entries so that positions line up across columns.
func readColumn(chunk parquet.ColumnChunk) ([]*string, error) {
	pages := chunk.Pages()
	defer pages.Close()

	out := make([]*string, 0, chunk.NumValues())
	buf := make([]parquet.Value, 1024)
	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		values := page.Values()
		for {
			n, err := values.ReadValues(buf)
			for _, v := range buf[:n] {
				if v.IsNull() {
					out = append(out, nil)
					continue
				}
				s := string(v.ByteArray())
				out = append(out, &s)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				parquet.Release(page)
				return nil, err
			}
		}
		parquet.Release(page)
	}
}

// mayMatch uses the page index of each predicate column to decide whether a
// row group can contain a matching row. Missing statistics never prune.
func mayMatch(rg parquet.RowGroup, filter Filter, leaves []int) bool {
	chunks := rg.ColumnChunks()
	for i, pred := range filter {
		index, err := chunks[leaves[i]].ColumnIndex()
		if err != nil || index == nil {
			return true
		}
		for page := 0; page < index.NumPages(); page++ {
			if index.NullPage(page) {
				continue
			}
			if pageMayContain(index.MinValue(page), index.MaxValue(page), pred.Values) {
				return true
			}
		}
	}
	return false
}

func pageMayContain(lo, hi parquet.Value, values []string) bool {
	if lo.IsNull() || hi.IsNull() {
		return true
	}
	lower, upper := lo.ByteArray(), hi.ByteArray()
	if len(upper) >= statsTruncateLen {
		return true
	}
	for _, v := range values {
		b := []byte(v)
		if bytes.Compare(b, lower) >= 0 && bytes.Compare(b, upper) <= 0 {
			return true
		}
	}
	return false
}

func matchRow(filter Filter, values [][]*string, row int64) bool {
	for i, pred := range filter {
		if pred.Match(at(values[i], row)) {
			return true
		}
	}
	return false
}

func at(values []*string, row int64) *string {
	if row >= int64(len(values)) {
		return nil
	}
	return values[row]
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
