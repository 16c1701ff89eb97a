package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/models"
	"github.com/starford/hfx/internal/testutil"
)

func mustFold(t *testing.T, ids ...string) models.FilterSpec {
	t.Helper()
	spec, err := models.FoldIdentifiers(ids)
	if err != nil {
		t.Fatalf("FoldIdentifiers: %v", err)
	}
	return spec
}

// relationCases runs the same read checks against every relation backend.
func relationCases(t *testing.T, rel Relation) {
	t.Helper()
	cols := DefaultColumns()
	ctx := context.Background()

	t.Run("or of predicates", func(t *testing.T) {
		filter := Filter{
			{Column: "toid", Values: []string{"nex-86"}},
			{Column: "divide_id", Values: []string{"cat-10"}},
		}
		table, err := rel.Read(ctx, cols.Names(), filter)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if table.NumRows() != 2 {
			t.Fatalf("rows = %d, want 2", table.NumRows())
		}
		ids := table.NonNull("id")
		sort.Strings(ids)
		if len(ids) != 2 || ids[0] != "wb-10" || ids[1] != "wb-12" {
			t.Errorf("ids = %v, want [wb-10 wb-12]", ids)
		}
	})

	t.Run("nulls preserved", func(t *testing.T) {
		table, err := rel.Read(ctx, cols.Names(), Filter{{Column: "id", Values: []string{"wb-13"}}})
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if table.NumRows() != 1 {
			t.Fatalf("rows = %d, want 1", table.NumRows())
		}
		divides, _ := table.Column("divide_id")
		if divides[0] != nil {
			t.Errorf("divide_id = %q, want null", *divides[0])
		}
		to := table.NonNull("toid")
		if len(to) != 1 || to[0] != "tnx-1" {
			t.Errorf("toid = %v, want [tnx-1]", to)
		}
	})

	t.Run("no match", func(t *testing.T) {
		table, err := rel.Read(ctx, cols.Names(), Filter{{Column: "id", Values: []string{"wb-404"}}})
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if table.NumRows() != 0 {
			t.Errorf("rows = %d, want 0", table.NumRows())
		}
	})

	t.Run("resolve", func(t *testing.T) {
		r := newTestResolver(rel)
		spec, err := r.Resolve(ctx, mustFold(t, "nex-85"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if len(spec.Catchments) != 2 || len(spec.Waterbodies) != 2 || len(spec.Nexuses) != 1 {
			t.Errorf("spec = %+v", spec)
		}
	})

	t.Run("long identifier list", func(t *testing.T) {
		seed := models.FilterSpec{Catchments: make([]string, 0, 40001)}
		for i := 0; i < 40000; i++ {
			seed.Catchments = append(seed.Catchments, fmt.Sprintf("cat-%d", 100000+i))
		}
		seed.Catchments = append(seed.Catchments, "cat-12")

		spec, err := newTestResolver(rel).Resolve(ctx, seed)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if len(spec.Waterbodies) != 1 || spec.Waterbodies[0] != "wb-12" {
			t.Errorf("waterbodies = %v", spec.Waterbodies)
		}
		if len(spec.Nexuses) != 1 || spec.Nexuses[0] != "nex-86" {
			t.Errorf("nexuses = %v", spec.Nexuses)
		}
		if len(spec.Catchments) != 40001 {
			t.Errorf("catchments = %d, want 40001", len(spec.Catchments))
		}
	})
}

func TestSQLiteRelation(t *testing.T) {
	rel, err := Open(testutil.NetworkSQLite(t, testutil.NetworkRows()), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { rel.Close() })
	relationCases(t, rel)
}

func TestSQLiteRelation_HydrofabricLayer(t *testing.T) {
	rel, err := OpenSQLite(testutil.Hydrofabric(t), DefaultLayer)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { rel.Close() })
	relationCases(t, rel)
}

func TestSQLiteRelation_MissingTable(t *testing.T) {
	_, err := OpenSQLite(testutil.NetworkSQLite(t, nil), "flowpath_edges")
	if err == nil {
		t.Fatal("expected error for missing table")
	}
}

func TestParquetRelation(t *testing.T) {
	rel, err := Open(testutil.NetworkParquet(t, testutil.NetworkRows()), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { rel.Close() })
	relationCases(t, rel)
}

func TestParquetRelation_PrunesRowGroups(t *testing.T) {
	rows := make([]testutil.NetworkRow, 3000)
	for i := range rows {
		rows[i] = testutil.Row(fmt.Sprintf("wb-%05d", i), fmt.Sprintf("nex-%05d", i/2), fmt.Sprintf("cat-%05d", i))
	}
	path := testutil.NetworkParquet(t, rows, parquet.MaxRowsPerRowGroup(500), parquet.PageBufferSize(512))

	rel, err := OpenParquet(path)
	if err != nil {
		t.Fatalf("OpenParquet: %v", err)
	}
	t.Cleanup(func() { rel.Close() })

	groups := rel.file.RowGroups()
	if len(groups) != 6 {
		t.Fatalf("row groups = %d, want 6", len(groups))
	}
	idLeaf, err := rel.leafIndex("id")
	if err != nil {
		t.Fatal(err)
	}

	filter := Filter{NewPredicate("id", []string{"wb-00007", "wb-01234", "wb-02999"})}
	var scanned []int
	for g, rg := range groups {
		if mayMatch(rg, filter, []int{idLeaf}) {
			scanned = append(scanned, g)
		}
	}
	if fmt.Sprint(scanned) != "[0 2 5]" {
		t.Errorf("scanned row groups = %v, want [0 2 5]", scanned)
	}

	table, err := rel.Read(context.Background(), DefaultColumns().Names(), filter)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ids := table.NonNull("id")
	sort.Strings(ids)
	if fmt.Sprint(ids) != "[wb-00007 wb-01234 wb-02999]" {
		t.Errorf("ids = %v", ids)
	}
	divides := table.NonNull("divide_id")
	sort.Strings(divides)
	if fmt.Sprint(divides) != "[cat-00007 cat-01234 cat-02999]" {
		t.Errorf("divide_ids = %v", divides)
	}

	// Two predicates: a group is read when either one may match.
	filter = Filter{
		NewPredicate("id", []string{"wb-00001"}),
		NewPredicate("toid", []string{"nex-01000"}),
	}
	toidLeaf, err := rel.leafIndex("toid")
	if err != nil {
		t.Fatal(err)
	}
	scanned = scanned[:0]
	for g, rg := range groups {
		if mayMatch(rg, filter, []int{idLeaf, toidLeaf}) {
			scanned = append(scanned, g)
		}
	}
	if fmt.Sprint(scanned) != "[0 4]" {
		t.Errorf("scanned row groups = %v, want [0 4]", scanned)
	}
	table, err = rel.Read(context.Background(), DefaultColumns().Names(), filter)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ids = table.NonNull("id")
	sort.Strings(ids)
	if fmt.Sprint(ids) != "[wb-00001 wb-02000 wb-02001]" {
		t.Errorf("ids = %v", ids)
	}
}

func TestParquetRelation_UnknownColumn(t *testing.T) {
	rel, err := OpenParquet(testutil.NetworkParquet(t, testutil.NetworkRows()))
	if err != nil {
		t.Fatalf("OpenParquet: %v", err)
	}
	defer rel.Close()
	if rel.NumRows() != int64(len(testutil.NetworkRows())) {
		t.Errorf("NumRows = %d", rel.NumRows())
	}
	_, err = rel.Read(context.Background(), []string{"id", "hf_id"}, Filter{{Column: "id", Values: []string{"wb-10"}}})
	if err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestOpen_UnsupportedExtension(t *testing.T) {
	_, err := Open("network.csv", "")
	if !errors.Is(err, apperr.ErrUnsupportedLocation) {
		t.Fatalf("err = %v, want ErrUnsupportedLocation", err)
	}
}

func TestSelectQuery(t *testing.T) {
	q, args := selectQuery("network", []string{"id", "toid"}, Filter{
		{Column: "id", Values: []string{"wb-1", "wb-2"}},
		{Column: "toid", Values: []string{"nex-1"}},
	})
	want := `SELECT "id", "toid" FROM "network" WHERE "id" IN (SELECT value FROM json_each(?))` +
		` OR "toid" IN (SELECT value FROM json_each(?))`
	if q != want {
		t.Errorf("query = %s\nwant    %s", q, want)
	}
	if len(args) != 2 || args[0] != `["wb-1","wb-2"]` || args[1] != `["nex-1"]` {
		t.Errorf("args = %v", args)
	}
}
