// Package network resolves identifier specs against the hydrofabric network
// relationship table.
package network

import (
	"fmt"
	"strings"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/models"
)

// Columns names the relationship table columns used for resolution.
type Columns struct {
	Waterbody string `yaml:"waterbody"`
	To        string `yaml:"to"`
	Divide    string `yaml:"divide"`
}

// DefaultColumns returns the column names of the published hydrofabric
// network table.
func DefaultColumns() Columns {
	return Columns{Waterbody: "id", To: "toid", Divide: "divide_id"}
}

// Names returns the projected column names in table order.
func (c Columns) Names() []string {
	return []string{c.Waterbody, c.To, c.Divide}
}

// Predicate matches rows whose Column value is one of Values.
type Predicate struct {
	Column string
	Values []string

	set map[string]struct{}
}

// NewPredicate returns a predicate with its value set indexed for Match.
func NewPredicate(column string, values []string) Predicate {
	return Predicate{Column: column, Values: values}.indexed()
}

func (p Predicate) indexed() Predicate {
	if p.set != nil {
		return p
	}
	p.set = make(map[string]struct{}, len(p.Values))
	for _, v := range p.Values {
		p.set[v] = struct{}{}
	}
	return p
}

// Match reports whether v is a member of the predicate's value set.
// Null values never match. Predicates built without NewPredicate fall back
// to a linear scan.
func (p Predicate) Match(v *string) bool {
	if v == nil {
		return false
	}
	if p.set != nil {
		_, ok := p.set[*v]
		return ok
	}
	for _, want := range p.Values {
		if *v == want {
			return true
		}
	}
	return false
}

func (p Predicate) String() string {
	return fmt.Sprintf("(%s IN %v)", p.Column, p.Values)
}

// Filter is a disjunction of predicates: a row matches when any predicate
// matches.
type Filter []Predicate

// Indexed returns a copy of f whose predicates all have indexed value sets.
func (f Filter) Indexed() Filter {
	out := make(Filter, len(f))
	for i, p := range f {
		out[i] = p.indexed()
	}
	return out
}

func (f Filter) String() string {
	parts := make([]string, len(f))
	for i, p := range f {
		parts[i] = p.String()
	}
	return strings.Join(parts, " OR ")
}

// BuildFilter returns one predicate per non-empty set in seed. An empty seed
// fails with apperr.ErrNoFilterCriteria since an empty disjunction would
// either match nothing or everything.
func BuildFilter(seed models.FilterSpec, cols Columns) (Filter, error) {
	var f Filter
	if len(seed.Waterbodies) > 0 {
		f = append(f, NewPredicate(cols.Waterbody, seed.Waterbodies))
	}
	if len(seed.Nexuses) > 0 {
		f = append(f, NewPredicate(cols.To, seed.Nexuses))
	}
	if len(seed.Catchments) > 0 {
		f = append(f, NewPredicate(cols.Divide, seed.Catchments))
	}
	if len(f) == 0 {
		return nil, apperr.ErrNoFilterCriteria
	}
	return f, nil
}
