package models

import (
	"log/slog"

	"github.com/starford/hfx/internal/apperr"
)

// FilterSpec holds identifiers grouped by category. Order within a set is
// insertion order and carries no meaning.
type FilterSpec struct {
	Catchments  []string `json:"catchments" yaml:"catchments"`
	Waterbodies []string `json:"waterbodies" yaml:"waterbodies"`
	Nexuses     []string `json:"nexuses" yaml:"nexuses"`
}

// NewFilterSpec returns an empty spec with non-nil sets.
func NewFilterSpec() FilterSpec {
	return FilterSpec{
		Catchments:  []string{},
		Waterbodies: []string{},
		Nexuses:     []string{},
	}
}

// Add classifies id and appends it to the matching set. An unrecognised id
// returns an *apperr.InvalidIdentifierError and leaves s untouched.
func (s *FilterSpec) Add(id string) error {
	cat := Classify(id)
	slog.Debug("adding identifier", slog.String("id", id), slog.String("category", cat.String()))

	switch cat {
	case Catchment:
		s.Catchments = append(s.Catchments, id)
	case Waterbody:
		s.Waterbodies = append(s.Waterbodies, id)
	case Nexus:
		s.Nexuses = append(s.Nexuses, id)
	default:
		return &apperr.InvalidIdentifierError{ID: id}
	}
	return nil
}

// FoldIdentifiers builds a seed spec from raw identifiers. The first invalid
// identifier aborts the fold; no partial spec is returned.
func FoldIdentifiers(ids []string) (FilterSpec, error) {
	spec := NewFilterSpec()
	for _, id := range ids {
		if err := spec.Add(id); err != nil {
			return FilterSpec{}, err
		}
	}
	return spec, nil
}

// Set returns the identifiers stored for c, or nil for Unknown.
func (s FilterSpec) Set(c Category) []string {
	switch c {
	case Catchment:
		return s.Catchments
	case Waterbody:
		return s.Waterbodies
	case Nexus:
		return s.Nexuses
	default:
		return nil
	}
}

// Len returns the total number of identifiers across all sets.
func (s FilterSpec) Len() int {
	return len(s.Catchments) + len(s.Waterbodies) + len(s.Nexuses)
}

// IsEmpty reports whether all three sets are empty.
func (s FilterSpec) IsEmpty() bool {
	return s.Len() == 0
}

// Union returns a new spec holding the identifiers of s followed by those of
// other, with duplicates removed.
func (s FilterSpec) Union(other FilterSpec) FilterSpec {
	return FilterSpec{
		Catchments:  dedup(s.Catchments, other.Catchments),
		Waterbodies: dedup(s.Waterbodies, other.Waterbodies),
		Nexuses:     dedup(s.Nexuses, other.Nexuses),
	}
}

// Dedup returns a copy of s with duplicate identifiers removed, keeping the
// first occurrence of each.
func (s FilterSpec) Dedup() FilterSpec {
	return s.Union(FilterSpec{})
}

// Equal reports whether s and other contain the same identifiers per
// category, ignoring order and duplicates.
func (s FilterSpec) Equal(other FilterSpec) bool {
	return sameSet(s.Catchments, other.Catchments) &&
		sameSet(s.Waterbodies, other.Waterbodies) &&
		sameSet(s.Nexuses, other.Nexuses)
}

func dedup(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, id := range a {
		as[id] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, id := range b {
		if _, ok := as[id]; !ok {
			return false
		}
		bs[id] = struct{}{}
	}
	return len(as) == len(bs)
}
