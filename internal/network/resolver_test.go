package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/models"
	"github.com/starford/hfx/internal/testutil"
)

// memRelation applies filters to an in-memory row set and counts reads.
type memRelation struct {
	rows    []testutil.NetworkRow
	reads   int
	columns []string
	err     error
}

func (m *memRelation) Read(_ context.Context, columns []string, filter Filter) (*Table, error) {
	m.reads++
	m.columns = columns
	if m.err != nil {
		return nil, m.err
	}
	out := NewTable(columns...)
	for _, r := range m.rows {
		byName := map[string]*string{"id": r.ID, "toid": r.ToID, "divide_id": r.DivideID}
		match := false
		for _, p := range filter {
			if p.Match(byName[p.Column]) {
				match = true
			}
		}
		if !match {
			continue
		}
		values := make([]*string, len(columns))
		for i, c := range columns {
			values[i] = byName[c]
		}
		out.Append(values...)
	}
	return out, nil
}

func (m *memRelation) Close() error { return nil }

type readObserver struct{ calls int }

func (o *readObserver) ObserveRead(time.Duration) { o.calls++ }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(rel Relation, opts ...ResolverOption) *Resolver {
	return NewResolver(rel, append([]ResolverOption{WithLogger(quietLogger())}, opts...)...)
}

func TestResolve_NexusOnlySeed(t *testing.T) {
	rel := &memRelation{rows: []testutil.NetworkRow{testutil.Row("wb-10", "nex-85", "cat-10")}}
	r := newTestResolver(rel)

	seed := models.FilterSpec{Catchments: []string{}, Waterbodies: []string{}, Nexuses: []string{"nex-85"}}
	got, err := r.Resolve(context.Background(), seed)
	require.NoError(t, err)

	assert.Equal(t, []string{"cat-10"}, got.Catchments)
	assert.Equal(t, []string{"wb-10"}, got.Waterbodies)
	assert.Equal(t, []string{"nex-85"}, got.Nexuses)
	assert.Equal(t, 1, rel.reads)
	assert.Equal(t, []string{"id", "toid", "divide_id"}, rel.columns)
}

func TestResolve_CollectsAllUpstream(t *testing.T) {
	rel := &memRelation{rows: testutil.NetworkRows()}
	r := newTestResolver(rel)

	got, err := r.Resolve(context.Background(), models.FilterSpec{Nexuses: []string{"nex-85"}})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"cat-10", "cat-11"}, got.Catchments)
	assert.ElementsMatch(t, []string{"wb-10", "wb-11"}, got.Waterbodies)
	assert.Equal(t, []string{"nex-85"}, got.Nexuses, "duplicate nexus references collapse")
}

func TestResolve_DropsNulls(t *testing.T) {
	rel := &memRelation{rows: testutil.NetworkRows()}
	r := newTestResolver(rel)

	got, err := r.Resolve(context.Background(), models.FilterSpec{Waterbodies: []string{"wb-13", "wb-20"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"cat-20"}, got.Catchments)
	assert.Equal(t, []string{"wb-13", "wb-20"}, got.Waterbodies)
	assert.Equal(t, []string{"tnx-1"}, got.Nexuses)
}

func TestResolve_NoNonNullCrossReferences(t *testing.T) {
	rel := &memRelation{rows: []testutil.NetworkRow{testutil.Row("", "nex-7", "")}}
	r := newTestResolver(rel)

	got, err := r.Resolve(context.Background(), models.FilterSpec{Nexuses: []string{"nex-7"}})
	require.NoError(t, err)
	assert.Empty(t, got.Catchments)
	assert.Empty(t, got.Waterbodies)
	assert.Equal(t, []string{"nex-7"}, got.Nexuses)
}

func TestResolve_EmptySeed(t *testing.T) {
	rel := &memRelation{rows: testutil.NetworkRows()}
	r := newTestResolver(rel)

	_, err := r.Resolve(context.Background(), models.NewFilterSpec())
	require.ErrorIs(t, err, apperr.ErrNoFilterCriteria)
	assert.Zero(t, rel.reads, "no query may be issued for an empty seed")
}

func TestResolve_NotFound(t *testing.T) {
	rel := &memRelation{rows: testutil.NetworkRows()}
	r := newTestResolver(rel)

	_, err := r.Resolve(context.Background(), models.FilterSpec{Catchments: []string{"cat-404"}})
	require.ErrorIs(t, err, apperr.ErrEmptyResolution)
}

func TestResolve_ReadError(t *testing.T) {
	boom := errors.New("table unreachable")
	obs := &readObserver{}
	r := newTestResolver(&memRelation{err: boom}, WithObserver(obs))

	_, err := r.Resolve(context.Background(), models.FilterSpec{Nexuses: []string{"nex-85"}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, obs.calls)
}

func TestResolve_FixedPoint(t *testing.T) {
	rel := &memRelation{rows: testutil.NetworkRows()}
	r := newTestResolver(rel)
	ctx := context.Background()

	for _, seed := range []models.FilterSpec{
		{Nexuses: []string{"nex-85"}},
		{Catchments: []string{"cat-12"}},
		{Waterbodies: []string{"wb-13"}, Catchments: []string{"cat-20"}},
	} {
		once, err := r.Resolve(ctx, seed)
		require.NoError(t, err)
		twice, err := r.Resolve(ctx, once)
		require.NoError(t, err)
		assert.True(t, once.Equal(twice), "re-resolving %+v changed %+v to %+v", seed, once, twice)
	}
}

func TestResolve_KeepsUnmatchedSeedIdentifiers(t *testing.T) {
	rel := &memRelation{rows: testutil.NetworkRows()}
	r := newTestResolver(rel)

	got, err := r.Resolve(context.Background(), models.FilterSpec{Catchments: []string{"cat-10", "cat-404"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat-10", "cat-404"}, got.Catchments)
}

func TestResolve_CustomColumns(t *testing.T) {
	rel := &memRelation{rows: testutil.NetworkRows()}
	cols := Columns{Waterbody: "id", To: "toid", Divide: "divide_id"}
	r := newTestResolver(rel, WithColumns(cols))

	_, err := r.Resolve(context.Background(), models.FilterSpec{Nexuses: []string{"nex-86"}})
	require.NoError(t, err)
	assert.Equal(t, cols.Names(), rel.columns)
}

func TestBuildFilter(t *testing.T) {
	seed := models.FilterSpec{
		Catchments:  []string{"cat-1"},
		Waterbodies: []string{"wb-1", "wb-2"},
		Nexuses:     []string{"nex-1"},
	}
	f, err := BuildFilter(seed, DefaultColumns())
	require.NoError(t, err)
	require.Len(t, f, 3)
	assert.Equal(t, NewPredicate("id", []string{"wb-1", "wb-2"}), f[0])
	assert.Equal(t, NewPredicate("toid", []string{"nex-1"}), f[1])
	assert.Equal(t, NewPredicate("divide_id", []string{"cat-1"}), f[2])
	assert.Equal(t, "(id IN [wb-1 wb-2]) OR (toid IN [nex-1]) OR (divide_id IN [cat-1])", f.String())

	f, err = BuildFilter(models.FilterSpec{Nexuses: []string{"cnx-3"}}, DefaultColumns())
	require.NoError(t, err)
	assert.Len(t, f, 1)

	_, err = BuildFilter(models.FilterSpec{}, DefaultColumns())
	assert.ErrorIs(t, err, apperr.ErrNoFilterCriteria)
}

func TestPredicateMatch(t *testing.T) {
	for _, p := range []Predicate{
		{Column: "toid", Values: []string{"nex-1", "nex-2"}},
		NewPredicate("toid", []string{"nex-1", "nex-2"}),
	} {
		assert.True(t, p.Match(testutil.Str("nex-2")))
		assert.False(t, p.Match(testutil.Str("nex-3")))
		assert.False(t, p.Match(nil))
	}
}

func TestFilterIndexed(t *testing.T) {
	values := make([]string, 50000)
	for i := range values {
		values[i] = fmt.Sprintf("cat-%d", i)
	}
	f := Filter{{Column: "divide_id", Values: values}}.Indexed()

	require.Len(t, f, 1)
	assert.Len(t, f[0].set, len(values))
	assert.True(t, f[0].Match(testutil.Str("cat-49999")))
	assert.False(t, f[0].Match(testutil.Str("cat-50000")))
	assert.Equal(t, f[0], Filter{f[0]}.Indexed()[0])
}
