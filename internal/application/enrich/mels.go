package enrich

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

const (
	annualEnergyUnits = "kWh/yr"
	hoursPerYear      = 8760
)

// operatingModes are the MELs performance breakouts by operational mode.
var operatingModes = []string{"active", "ready", "sleep", "off"}

// MELsBuilder builds installed cost, performance and lifetime records for
// miscellaneous electric load technologies.
type MELsBuilder struct {
	ref   *Reference
	tax   *taxonomy.Taxonomy
	years []string
}

// NewMELsBuilder returns a builder.
func NewMELsBuilder(ref *Reference, tax *taxonomy.Taxonomy, years []string) *MELsBuilder {
	return &MELsBuilder{ref: ref, tax: tax, years: years}
}

// Covers reports whether the MELs reference carries name for either class.
func (b *MELsBuilder) Covers(name string) bool {
	for _, c := range []taxonomy.Class{taxonomy.Residential, taxonomy.Commercial} {
		if get(b.ref.CPL, "MELs", string(c), name).Exists() {
			return true
		}
	}
	return false
}

// Build returns the record for the MELs leaf at keys, laid out as
// region > building type > fuel > end use [> technology].  ok is false when
// the reference has no complete record.
func (b *MELsBuilder) Build(keys []string) (rec *segment.Tree, ok bool, err error) {
	if len(keys) < 4 || len(keys) > 5 {
		return nil, false, nil
	}
	bldgType, eu := keys[1], keys[3]
	class, isBldg := b.tax.ClassOfBuilding(bldgType)
	if !isBldg {
		return nil, false, nil
	}
	data := get(b.ref.CPL, "MELs", string(class), eu)
	if len(keys) == 5 {
		data = get(data, keys[4])
	}
	if !truthy(data) {
		return nil, false, nil
	}

	cost, err := b.cost(get(data, "cost"), class, bldgType, eu, keys)
	if err != nil {
		return nil, false, err
	}
	perf, err := b.performance(get(data, "performance"), keys)
	if err != nil {
		return nil, false, err
	}
	life := get(data, "lifetime")
	avg := get(life, "average")

	if cost == nil || perf == nil || !life.IsObject() {
		return nil, false, nil
	}
	if avg.Type != gjson.Number || math.IsNaN(avg.Num) || avg.Num == 0 {
		return nil, false, nil
	}
	if !complete(cost.typical) || !complete(perf.typical) {
		return nil, false, nil
	}

	rec = segment.NewNode()
	costNode, err := cost.tree()
	if err != nil {
		return nil, false, err
	}
	rec.Set("installed cost", costNode)
	perfNode, err := perf.tree()
	if err != nil {
		return nil, false, err
	}
	rec.Set("performance", perfNode)
	lifeNode := segment.NewNode()
	for _, k := range []string{"average", "range", "units", "source"} {
		t, err := toTree(get(life, k))
		if err != nil {
			return nil, false, err
		}
		lifeNode.Set(k, t)
	}
	rec.Set("lifetime", lifeNode)
	return rec, true, nil
}

// component is one of the cost or performance parts of a MELs record.
type component struct {
	typical yearly
	units   string
	source  gjson.Result
}

func (c *component) tree() (*segment.Tree, error) {
	out := segment.NewNode()
	out.Set("typical", c.typical.tree())
	out.SetValue("units", segment.Text(c.units))
	src, err := toTree(c.source)
	if err != nil {
		return nil, err
	}
	out.Set("source", src)
	return out, nil
}

// cost returns nil when no usable cost exists for the technology.
func (b *MELsBuilder) cost(cost gjson.Result, class taxonomy.Class, bldgType, eu string, keys []string) (*component, error) {
	units := unitString(get(cost, "units"))
	if units == "" {
		return nil, nil
	}
	typical := get(cost, "typical")

	switch {
	case class == taxonomy.Commercial && !strings.Contains(units, FloorAreaUnits) && strings.Contains(units, "$/unit"):
		if eu != "PCs" || len(units) < 4 {
			return nil, nil
		}
		factor := get(b.ref.Conversions, "cost unit conversions", eu, "conversion factor", "value", pcConversionKey(bldgType))
		if factor.Type != gjson.Number {
			return nil, errs.LookupMiss("no PC cost conversion factor").WithDetail(bldgType)
		}
		var y yearly
		for _, yr := range b.years {
			v := get(typical, yr)
			if v.Type != gjson.Number {
				return nil, nil
			}
			y.add(yr, v.Num*factor.Num)
		}
		return &component{typical: y, units: units[:4] + FloorAreaUnits, source: get(cost, "source")}, nil
	case !strings.Contains(units, "$/unit"):
		return nil, errs.UnexpectedUnit("baseline MELs technology cost units are not in $/unit").
			WithDetail(segment.PathString(keys))
	}
	y, ok := yearlyOf(typical)
	if !ok {
		return nil, nil
	}
	return &component{typical: y, units: units, source: get(cost, "source")}, nil
}

// pcConversionKey groups building types for the PC cost conversion.
func pcConversionKey(bldgType string) string {
	switch bldgType {
	case "large office", "small office", "education":
		return "office and education"
	case "health care":
		return "health care"
	}
	return "all other"
}

// performance normalizes MELs performance to kWh/yr.
func (b *MELsBuilder) performance(perf gjson.Result, keys []string) (*component, error) {
	typical := get(perf, "typical")
	unitsR := get(perf, "units")
	out := &component{units: annualEnergyUnits, source: get(perf, "source")}

	hasMode, allModes := false, true
	typical.ForEach(func(k, _ gjson.Result) bool {
		if isMode(k.String()) {
			hasMode = true
		} else {
			allModes = false
		}
		return true
	})

	switch {
	case unitString(unitsR) == annualEnergyUnits && !allModes:
		y, ok := yearlyOf(typical)
		if !ok {
			return nil, nil
		}
		out.typical = y
	case unitString(unitsR) == annualEnergyUnits && hasMode:
		var y yearly
		for _, yr := range b.years {
			var sum float64
			var missing bool
			typical.ForEach(func(_, byYear gjson.Result) bool {
				v := get(byYear, yr)
				if v.Type != gjson.Number {
					missing = true
					return false
				}
				sum += v.Num
				return true
			})
			if missing {
				return nil, nil
			}
			y.add(yr, sum)
		}
		out.typical = y
	case isPowerAndHours(unitsR):
		var y yearly
		sums := make(map[string]float64)
		typical.ForEach(func(_, byYear gjson.Result) bool {
			byYear.ForEach(func(yr, pair gjson.Result) bool {
				arr := pair.Array()
				if len(arr) < 2 {
					return true
				}
				k := yr.String()
				if _, seen := sums[k]; !seen {
					y.add(k, 0)
				}
				sums[k] += arr[0].Float() * arr[1].Float() * hoursPerYear / 1000
				return true
			})
			return true
		})
		for i, k := range y.keys {
			y.vals[i] = sums[k]
		}
		out.typical = y
	default:
		return nil, errs.UnexpectedUnit("unexpected baseline performance units for MELs segment").
			WithDetail(segment.PathString(keys))
	}
	return out, nil
}

func isMode(k string) bool {
	for _, m := range operatingModes {
		if k == m {
			return true
		}
	}
	return false
}

func isPowerAndHours(units gjson.Result) bool {
	if !units.IsArray() {
		return false
	}
	var w, h bool
	for _, u := range units.Array() {
		switch u.String() {
		case "W":
			w = true
		case "fraction annual operating hours":
			h = true
		}
	}
	return w && h
}

// yearly is an ordered year → value map.
type yearly struct {
	keys []string
	vals []float64
}

func (y *yearly) add(k string, v float64) {
	y.keys = append(y.keys, k)
	y.vals = append(y.vals, v)
}

func yearlyOf(r gjson.Result) (yearly, bool) {
	var y yearly
	if !r.IsObject() {
		return y, false
	}
	ok := true
	r.ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.Number {
			ok = false
			return false
		}
		y.add(k.String(), v.Num)
		return true
	})
	return y, ok && len(y.keys) > 0
}

func (y yearly) tree() *segment.Tree {
	allYears := true
	for _, k := range y.keys {
		if !segment.IsYear(k) {
			allYears = false
			break
		}
	}
	if allYears {
		return segment.NewLeaf(segment.SeriesOf(y.keys, y.vals))
	}
	out := segment.NewNode()
	for i, k := range y.keys {
		out.SetValue(k, segment.Scalar(y.vals[i]))
	}
	return out
}

// complete reports whether every value is a non-zero number.
func complete(y yearly) bool {
	if len(y.keys) == 0 {
		return false
	}
	for _, v := range y.vals {
		if math.IsNaN(v) || v == 0 {
			return false
		}
	}
	return true
}

//Personal.AI order the ending
