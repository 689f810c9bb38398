package enrich

import (
	"github.com/tidwall/gjson"

	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// maxConversionSteps bounds a conversion chain such as window area → wall
// area → floor area.
const maxConversionSteps = 8

// CostConverter converts envelope costs to YYYY$/ft^2 floor.
type CostConverter struct {
	conv gjson.Result
}

// NewCostConverter wraps the cost conversion document.
func NewCostConverter(conversions gjson.Result) *CostConverter {
	return &CostConverter{conv: conversions}
}

// ToFloorArea converts cost given in units "YYYY$/<unit>" for a building type.
// Conversion factors are matched on their "original units"; when several
// match, the last one wins.  Factors keyed by EnergyPlus prototype are
// weighted with the building type's prototype mix.
func (c *CostConverter) ToFloorArea(cost float64, units string, class taxonomy.Class, bldgType string) (float64, string, error) {
	return c.convert(cost, units, class, bldgType, 0)
}

func (c *CostConverter) convert(cost float64, units string, class taxonomy.Class, bldgType string, step int) (float64, string, error) {
	if step >= maxConversionSteps {
		return 0, "", errs.UnexpectedUnit("cost conversion does not reach floor area basis").WithDetail(units)
	}
	if len(units) < 4 {
		return 0, "", errs.UnexpectedUnit("cost units lack a dollar year").WithDetail(units)
	}
	year, base := units[:4], units[4:]

	factors := get(c.conv, "cost unit conversions", "heating and cooling", "demand")
	component := ""
	factors.ForEach(func(k, v gjson.Result) bool {
		if v.Get(path("original units")).String() == base {
			component = k.String()
		}
		return true
	})
	if component == "" {
		return 0, "", errs.UnexpectedUnit("no cost conversion for units").WithDetail(units)
	}

	entry := get(factors, component)
	byClass := get(entry, "conversion factor", "value", string(class))
	revised := year + get(entry, "revised units").String()
	mix := get(c.conv, "building type conversions", "conversion data", "value", string(class), bldgType)

	var adj float64
	if byClass.IsObject() {
		byType := get(byClass, bldgType)
		if !byType.Exists() {
			return 0, "", errs.LookupMiss("no cost conversion for building type").
				WithDetailf("%s / %s / %s", component, class, bldgType)
		}
		if !mix.Exists() || mix.Type == gjson.Null {
			adj = cost * byType.Float()
		} else {
			byType.ForEach(func(proto, f gjson.Result) bool {
				adj += cost * get(mix, proto.String()).Float() * f.Float()
				return true
			})
		}
	} else {
		adj = cost * byClass.Float()
	}

	if revised != year+FloorAreaUnits {
		return c.convert(adj, revised, class, bldgType, step+1)
	}
	return adj, revised, nil
}

//Personal.AI order the ending
