package enrich

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/turtacn/mseg-regionalizer/internal/domain/geomap"
	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Consumer choice parameters attached to residential envelope records, taken
// from the AEO heating and cooling equipment choice model.
const (
	choiceB1     = -0.003
	choiceB2     = -0.012
	choiceSource = "EIA AEO choice model parameters for heating and cooling equipment"
)

// EnvelopeBuilder builds installed cost, performance and lifetime records for
// envelope components.
type EnvelopeBuilder struct {
	ref     *Reference
	costs   *CostConverter
	tax     *taxonomy.Taxonomy
	years   []string
	aia     []string
	regions map[string]bool
	// perf re-weights climate-zone performance onto the output regions; rows
	// follow the AIA zone order.  nil when the output is on AIA zones.
	perf *geomap.Matrix
}

// NewEnvelopeBuilder returns a builder.  perf may be nil.
func NewEnvelopeBuilder(ref *Reference, tax *taxonomy.Taxonomy, years []string, perf *geomap.Matrix) (*EnvelopeBuilder, error) {
	aia, err := tax.RegionNames(taxonomy.SchemeAIA)
	if err != nil {
		return nil, err
	}
	b := &EnvelopeBuilder{
		ref:     ref,
		costs:   NewCostConverter(ref.Conversions),
		tax:     tax,
		years:   years,
		aia:     aia,
		regions: make(map[string]bool),
		perf:    perf,
	}
	for _, s := range []taxonomy.Scheme{taxonomy.SchemeAIA, taxonomy.SchemeEMM, taxonomy.SchemeCDIV} {
		names, err := tax.RegionNames(s)
		if err != nil {
			continue
		}
		for _, n := range names {
			b.regions[n] = true
		}
	}
	return b, nil
}

// Build returns the record for the envelope component at keys (the full path
// from the region down to the component).  ok is false when the reference
// holds no usable data for the component, e.g. for internal gains.
func (b *EnvelopeBuilder) Build(keys []string) (rec *segment.Tree, ok bool, err error) {
	if len(keys) == 0 {
		return nil, false, nil
	}
	var class taxonomy.Class
	var bldgType, region string
	for _, k := range keys {
		if c, isBldg := b.tax.ClassOfBuilding(k); isBldg {
			class, bldgType = c, k
		} else if b.regions[k] {
			region = k
		}
	}
	component := strings.Fields(keys[len(keys)-1])
	if len(component) == 0 || class == "" {
		return nil, false, nil
	}
	data := get(b.ref.CPL, "envelope", component[0], string(class))
	if !truthy(data) {
		return nil, false, nil
	}

	cost, err := b.cost(get(data, "cost"), class, bldgType)
	if err != nil {
		return nil, false, err
	}
	perf, ok, err := b.performance(get(data, "performance"), component, region)
	if err != nil || !ok {
		return nil, false, err
	}
	life, err := b.lifetime(get(data, "lifetime"))
	if err != nil {
		return nil, false, err
	}

	rec = segment.NewNode()
	rec.Set("installed cost", cost)
	rec.Set("performance", perf)
	rec.Set("lifetime", life)
	if class == taxonomy.Residential {
		params := segment.NewNode()
		params.SetValue("b1", segment.Uniform(b.years, choiceB1))
		params.SetValue("b2", segment.Uniform(b.years, choiceB2))
		share := segment.NewNode()
		share.Set("parameters", params)
		share.SetValue("source", segment.Text(choiceSource))
		choice := segment.NewNode()
		choice.Set("competed market share", share)
		rec.Set("consumer choice", choice)
	}
	return rec, true, nil
}

func (b *EnvelopeBuilder) cost(cost gjson.Result, class taxonomy.Class, bldgType string) (*segment.Tree, error) {
	units := ""
	if cost.IsObject() {
		units = unitString(get(cost, "units"))
	}
	if units == "" {
		return toTree(cost)
	}

	typical := get(cost, "typical")
	out := segment.NewNode()
	outUnits := units

	if len(units) < 4 || units[4:] != FloorAreaUnits {
		convert := func(v gjson.Result) (segment.Value, error) {
			if v.Type != gjson.Number {
				return segment.Value{}, errs.New(errs.CodeParse, "envelope cost is not a number").WithDetail(v.Raw)
			}
			adj, adjUnits, err := b.costs.ToFloorArea(v.Num, units, class, bldgType)
			if err != nil {
				return segment.Value{}, err
			}
			outUnits = adjUnits
			return segment.Uniform(b.years, adj), nil
		}
		if typical.IsObject() {
			byKey := segment.NewNode()
			var convErr error
			typical.ForEach(func(k, v gjson.Result) bool {
				val, err := convert(v)
				if err != nil {
					convErr = err
					return false
				}
				byKey.SetValue(k.String(), val)
				return true
			})
			if convErr != nil {
				return nil, convErr
			}
			out.Set("typical", byKey)
		} else {
			val, err := convert(typical)
			if err != nil {
				return nil, err
			}
			out.SetValue("typical", val)
		}
	} else {
		if typical.IsObject() {
			byKey := segment.NewNode()
			var perYearErr error
			typical.ForEach(func(k, v gjson.Result) bool {
				t, err := b.perYear(v)
				if err != nil {
					perYearErr = err
					return false
				}
				byKey.Set(k.String(), t)
				return true
			})
			if perYearErr != nil {
				return nil, perYearErr
			}
			out.Set("typical", byKey)
		} else {
			t, err := b.perYear(typical)
			if err != nil {
				return nil, err
			}
			out.Set("typical", t)
		}
	}

	out.SetValue("units", segment.Text(outUnits))
	src, err := toTree(get(cost, "source"))
	if err != nil {
		return nil, err
	}
	out.Set("source", src)
	return out, nil
}

// perYear repeats v for every year.
func (b *EnvelopeBuilder) perYear(v gjson.Result) (*segment.Tree, error) {
	if v.Type == gjson.Number {
		return segment.NewLeaf(segment.Uniform(b.years, v.Num)), nil
	}
	t, err := toTree(v)
	if err != nil {
		return nil, err
	}
	out := segment.NewNode()
	for _, y := range b.years {
		out.Set(y, t.Clone())
	}
	return out, nil
}

func (b *EnvelopeBuilder) performance(perf gjson.Result, component []string, region string) (*segment.Tree, bool, error) {
	out := segment.NewNode()

	if len(component) > 1 {
		sub := get(perf, component[1])
		if !sub.Exists() {
			return nil, false, nil
		}
		v, ok, err := b.climate(get(sub, "typical"), region)
		if err != nil || !ok {
			return nil, false, err
		}
		if err := b.setMeta(out, sub); err != nil {
			return nil, false, err
		}
		typical, ok := v.tree(b.years)
		if !ok {
			return nil, false, nil
		}
		out.Set("typical", typical)
		return out, true, nil
	}

	typical := get(perf, "typical")
	if err := b.setMeta(out, perf); err != nil {
		return nil, false, err
	}
	newV, existV := get(typical, "new"), get(typical, "existing")
	if newV.Exists() && existV.Exists() {
		vintages := segment.NewNode()
		for _, vin := range []struct {
			name string
			val  gjson.Result
		}{{"new", newV}, {"existing", existV}} {
			v, ok, err := b.climate(vin.val, region)
			if err != nil || !ok {
				return nil, false, err
			}
			t, ok := v.tree(b.years)
			if !ok {
				return nil, false, nil
			}
			vintages.Set(vin.name, t)
		}
		out.Set("typical", vintages)
		return out, true, nil
	}

	v, ok, err := b.climate(typical, region)
	if err != nil || !ok {
		return nil, false, err
	}
	t, ok := v.tree(b.years)
	if !ok {
		return nil, false, nil
	}
	out.Set("typical", t)
	return out, true, nil
}

func (b *EnvelopeBuilder) setMeta(out *segment.Tree, from gjson.Result) error {
	for _, k := range []string{"units", "source"} {
		t, err := toTree(get(from, k))
		if err != nil {
			return err
		}
		out.Set(k, t)
	}
	return nil
}

// climate resolves a performance value that may be broken out by AIA climate
// zone.  With a performance matrix the zone values are re-weighted onto
// region; without one the region's own zone value is taken.
func (b *EnvelopeBuilder) climate(typical gjson.Result, region string) (perfValue, bool, error) {
	if !typical.IsObject() || len(b.aia) == 0 || !get(typical, b.aia[0]).Exists() {
		v, ok := perfValueOf(typical)
		return v, ok, nil
	}
	if b.perf == nil {
		v, ok := perfValueOf(get(typical, region))
		return v, ok, nil
	}

	weights := make([]float64, len(b.aia))
	for i := range b.aia {
		w, err := b.perf.At(i, region)
		if err != nil {
			return perfValue{}, false, err
		}
		weights[i] = w
	}

	if get(typical, b.aia[0]).IsObject() {
		byYear := make(map[string]float64, len(b.years))
		for _, y := range b.years {
			var sum float64
			for i, zone := range b.aia {
				v := get(typical, zone, y)
				if v.Type != gjson.Number {
					return perfValue{}, false, nil
				}
				sum += v.Num * weights[i]
			}
			byYear[y] = sum
		}
		return perfValue{byYear: byYear}, true, nil
	}
	var sum float64
	for i, zone := range b.aia {
		v := get(typical, zone)
		if v.Type != gjson.Number {
			return perfValue{}, false, nil
		}
		sum += v.Num * weights[i]
	}
	return perfValue{scalar: sum}, true, nil
}

func (b *EnvelopeBuilder) lifetime(life gjson.Result) (*segment.Tree, error) {
	out := segment.NewNode()
	avg, err := b.perYear(get(life, "average"))
	if err != nil {
		return nil, err
	}
	out.Set("average", avg)
	for _, k := range []string{"range", "units", "source"} {
		t, err := toTree(get(life, k))
		if err != nil {
			return nil, err
		}
		out.Set(k, t)
	}
	return out, nil
}

// perfValue is a single performance figure or one per year.
type perfValue struct {
	scalar float64
	byYear map[string]float64
}

func perfValueOf(r gjson.Result) (perfValue, bool) {
	switch {
	case r.Type == gjson.Number:
		return perfValue{scalar: r.Num}, true
	case r.IsObject():
		byYear := make(map[string]float64)
		ok := true
		r.ForEach(func(k, v gjson.Result) bool {
			if v.Type != gjson.Number {
				ok = false
				return false
			}
			byYear[k.String()] = v.Num
			return true
		})
		return perfValue{byYear: byYear}, ok
	}
	return perfValue{}, false
}

// tree expands p over years.  ok is false when a per-year value lacks one of
// the years.
func (p perfValue) tree(years []string) (*segment.Tree, bool) {
	if p.byYear == nil {
		return segment.NewLeaf(segment.Uniform(years, p.scalar)), true
	}
	vals := make([]float64, len(years))
	for i, y := range years {
		v, ok := p.byYear[y]
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return segment.NewLeaf(segment.SeriesOf(years, vals)), true
}

//Personal.AI order the ending
