package geomap

import (
	"sort"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// FuelTable holds the weights for one fuel.  Exactly one of Flat, Variants or
// EndUse is normally populated.
type FuelTable struct {
	// Flat applies to every leaf under the fuel.
	Flat *Matrix
	// Variants is used by the building stock and square footage bucket and is
	// keyed "homes" / "square footage".
	Variants map[string]*Matrix
	// EndUse is keyed metric ("stock"/"energy") → EULP end use.
	EndUse map[string]map[string]*Matrix
}

// HasEndUses reports whether the fuel is disaggregated by EULP end use.
func (f *FuelTable) HasEndUses() bool {
	return f != nil && len(f.EndUse) > 0
}

// Set is the weight collection for one building class.
type Set struct {
	Flat  *Matrix
	Fuels map[string]*FuelTable
}

// NewFlatSet wraps a single matrix.
func NewFlatSet(m *Matrix) *Set { return &Set{Flat: m} }

// FuelKeyed reports whether weights depend on the fuel.
func (s *Set) FuelKeyed() bool {
	return s != nil && s.Fuels != nil
}

// Fuel returns the table for fuel.
func (s *Set) Fuel(fuel string) (*FuelTable, bool) {
	if !s.FuelKeyed() {
		return nil, false
	}
	f, ok := s.Fuels[fuel]
	return f, ok
}

// Key selects a weight within a Set.
type Key struct {
	Fuel    string
	Metric  string
	EndUse  string
	Variant string
}

// Factor returns the weight for key at (origin row, destination).
//
// A fuel-keyed set with no entry for the fuel is a lookup miss; there is no
// fallback to another table.
func (s *Set) Factor(k Key, origin int, dest string) (float64, error) {
	if s == nil {
		return 0, errs.LookupMiss("no weight table resolved for this subtree")
	}
	if !s.FuelKeyed() {
		if s.Flat == nil {
			return 0, errs.New(errs.CodeWeightTable, "empty weight set")
		}
		return s.Flat.At(origin, dest)
	}
	if k.Fuel == "" {
		return 0, errs.LookupMiss("no fuel resolved for fuel-keyed weights")
	}
	ft, ok := s.Fuels[k.Fuel]
	if !ok || ft == nil {
		return 0, errs.LookupMiss("fuel not in weight table").WithDetail(k.Fuel)
	}

	if ft.HasEndUses() && k.EndUse != "" {
		byEU, ok := ft.EndUse[k.Metric]
		if !ok {
			return 0, errs.LookupMiss("metric not in end-use weights").
				WithDetailf("%s / %q", k.Fuel, k.Metric)
		}
		m, ok := byEU[k.EndUse]
		if !ok {
			return 0, errs.LookupMiss("end use not present in EULP disaggregation data").
				WithDetailf("%s / %s / %s", k.Fuel, k.Metric, k.EndUse)
		}
		return m.At(origin, dest)
	}
	if ft.Flat != nil {
		return ft.Flat.At(origin, dest)
	}
	if m := ft.variant(k.Variant); m != nil {
		return m.At(origin, dest)
	}
	if ft.HasEndUses() {
		return 0, errs.LookupMiss("no end use resolved for EULP weights").WithDetail(k.Fuel)
	}
	return 0, errs.New(errs.CodeWeightTable, "empty fuel table").WithDetail(k.Fuel)
}

// variant picks the named variant, falling back to homes then square footage.
func (f *FuelTable) variant(name string) *Matrix {
	if m, ok := f.Variants[name]; ok {
		return m
	}
	for _, fallback := range []string{"homes", "square footage"} {
		if m, ok := f.Variants[fallback]; ok {
			return m
		}
	}
	return nil
}

// Destinations returns the destination names of a flat set.
func (s *Set) Destinations() ([]string, bool) {
	if s == nil || s.Flat == nil {
		return nil, false
	}
	return s.Flat.Columns(), true
}

// Matrices returns every matrix of the set keyed by a descriptive label.
func (s *Set) Matrices() map[string]*Matrix {
	out := make(map[string]*Matrix)
	if s == nil {
		return out
	}
	if s.Flat != nil {
		out["flat"] = s.Flat
	}
	for fuel, ft := range s.Fuels {
		if ft.Flat != nil {
			out[fuel] = ft.Flat
		}
		for v, m := range ft.Variants {
			out[fuel+"/"+v] = m
		}
		for metric, byEU := range ft.EndUse {
			for eu, m := range byEU {
				out[fuel+"/"+metric+"/"+eu] = m
			}
		}
	}
	return out
}

// SortedLabels returns the keys of a Matrices result in order.
func SortedLabels(ms map[string]*Matrix) []string {
	labels := make([]string, 0, len(ms))
	for l := range ms {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

//Personal.AI order the ending
