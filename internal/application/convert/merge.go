package convert

import (
	"github.com/turtacn/mseg-regionalizer/internal/domain/geomap"
	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Mode selects the conversion semantics.
type Mode int

const (
	// ModeEnergy converts energy, stock and floor-area data.
	ModeEnergy Mode = iota
	// ModeCPL converts cost, performance and lifetime data.  The "unspecified"
	// building type and bare "other" leaves are not converted in this mode.
	ModeCPL
)

func (m Mode) String() string {
	if m == ModeCPL {
		return "cpl"
	}
	return "energy"
}

// skipped reports whether a subtree is excluded from conversion.
func (m Mode) skipped(key string, child *segment.Tree) bool {
	if m != ModeCPL {
		return false
	}
	return key == taxonomy.KeyUnspecified || (key == taxonomy.KeyOther && child.IsLeaf())
}

// Merger folds one origin region's subtree into a destination accumulator.
type Merger struct {
	Taxonomy    *taxonomy.Taxonomy
	Residential *geomap.Set
	Commercial  *geomap.Set
	Mode        Mode
}

// frame is the context inherited by a subtree: the weight set of the
// enclosing building class and the weight key resolved so far.
type frame struct {
	set   *geomap.Set
	class taxonomy.Class
	key   geomap.Key
	path  []string
}

// Merge adds contrib × w into acc at every numeric leaf, where w is looked up
// for (origin row, dest) from the weight set and key resolved along the path.
// Both trees are walked in sorted key order and must share their key sets at
// every level.  acc is mutated in place.  Merge returns the number of leaves
// updated.
func (m *Merger) Merge(acc, contrib *segment.Tree, origin int, dest string) (int, error) {
	return m.merge(acc, contrib, origin, dest, m.rootFrame())
}

// rootFrame starts leaves outside any building-type subtree on the residential
// weights when those do not depend on the fuel.
func (m *Merger) rootFrame() frame {
	if m.Residential != nil && !m.Residential.FuelKeyed() {
		return frame{set: m.Residential}
	}
	return frame{}
}

func (m *Merger) merge(acc, contrib *segment.Tree, origin int, dest string, fr frame) (int, error) {
	if !segment.SameKeys(acc, contrib) {
		return 0, errs.StructureMismatch("merge keys do not match").
			WithDetail(segment.PathString(fr.path))
	}
	merged := 0
	for _, k := range acc.SortedKeys() {
		a, _ := acc.Child(k)
		c, _ := contrib.Child(k)
		if m.Mode.skipped(k, c) {
			continue
		}
		if a.IsLeaf() != c.IsLeaf() {
			return merged, errs.StructureMismatch("leaf and node at the same path").
				WithDetail(segment.PathString(append(fr.path, k)))
		}

		next, err := m.descend(fr, k, c)
		if err != nil {
			return merged, err
		}

		if c.IsNode() {
			n, err := m.merge(a, c, origin, dest, next)
			merged += n
			if err != nil {
				return merged, err
			}
			continue
		}

		av := a.Leaf()
		if !av.IsNumeric() {
			continue
		}
		w, err := next.set.Factor(next.key, origin, dest)
		if err != nil {
			return merged, errs.Wrap(err, errs.CodeUnknown, "resolve conversion factor").
				WithDetail(segment.PathString(next.path))
		}
		if err := av.AddScaled(*c.Leaf(), w); err != nil {
			return merged, errs.Wrap(err, errs.CodeUnknown, "accumulate leaf").
				WithDetail(segment.PathString(next.path))
		}
		merged++
	}
	return merged, nil
}

// descend derives the frame of child k from its parent's frame.
func (m *Merger) descend(fr frame, k string, child *segment.Tree) (frame, error) {
	tx := m.Taxonomy
	next := fr
	next.path = append(append([]string(nil), fr.path...), k)

	if k == taxonomy.MetricStock || k == taxonomy.MetricEnergy {
		next.key.Metric = k
	}

	if child.IsNode() {
		if class, ok := tx.BuildingClass(k, child.Keys()); ok {
			next.class = class
			next.set = m.Residential
			if class == taxonomy.Commercial {
				next.set = m.Commercial
			}
			return next, nil
		}
	}

	switch {
	case tx.IsFuel(k) && m.Residential.FuelKeyed():
		next.key.Fuel = k
		next.key.EndUse = ""
		next.key.Variant = ""
	case isStockKey(tx, k):
		v, _ := tx.StockVariant(k)
		next.key.Fuel = taxonomy.StockBucket
		next.key.Variant = v
	case m.endUseWeighted(fr) && tx.IsEndUse(k):
		eu, err := tx.EULPEndUse(fr.class, fr.key.Fuel, k, fr.path)
		if err != nil {
			return next, err
		}
		next.key.EndUse = eu
	case fr.key.EndUse == taxonomy.EndUseMisc && tx.IsEULPOtherTech(k):
		eu, err := tx.EULPOtherEndUse(fr.class, fr.key.Fuel, k)
		if err != nil {
			return next, err
		}
		next.key.EndUse = eu
	}
	return next, nil
}

func isStockKey(tx *taxonomy.Taxonomy, k string) bool {
	_, ok := tx.StockVariant(k)
	return ok
}

// endUseWeighted reports whether the current fuel is disaggregated by EULP
// end use in the active weight set.
func (m *Merger) endUseWeighted(fr frame) bool {
	if fr.key.Fuel == "" || fr.key.Fuel == taxonomy.StockBucket {
		return false
	}
	ft, ok := fr.set.Fuel(fr.key.Fuel)
	return ok && ft.HasEndUses()
}

//Personal.AI order the ending
