package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/mseg-regionalizer/internal/domain/geomap"
	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	"github.com/turtacn/mseg-regionalizer/internal/testutil"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

var testYears = []string{"2020", "2021"}

const cplReference = `{
  "envelope": {
    "roof": {
      "residential": {
        "cost": {"typical": 10, "units": "2016$/ft^2 roof", "source": "RSMeans"},
        "performance": {
          "typical": {"AIA_CZ1": 30, "AIA_CZ2": 40, "AIA_CZ3": 50, "AIA_CZ4": 60, "AIA_CZ5": 70},
          "units": "R value", "source": "IECC"
        },
        "lifetime": {"average": 30, "range": 5, "units": "years", "source": "NAHB"}
      },
      "commercial": {
        "cost": {"typical": 3, "units": "2016$/ft^2 floor", "source": "RSMeans"},
        "performance": {
          "typical": {
            "new": 20,
            "existing": {"AIA_CZ1": 1, "AIA_CZ2": 2, "AIA_CZ3": 3, "AIA_CZ4": 4, "AIA_CZ5": 5}
          },
          "units": "R value", "source": "ASHRAE"
        },
        "lifetime": {"average": 25, "range": 5, "units": "years", "source": "NAHB"}
      }
    },
    "windows": {
      "residential": {
        "cost": {"typical": 20, "units": "2016$/ft^2 glazing", "source": "RSMeans"},
        "performance": {
          "solar": {"typical": 0.4, "units": "SHGC", "source": "ENERGY STAR"},
          "conduction": {
            "typical": {
              "AIA_CZ1": {"2020": 0.30, "2021": 0.28},
              "AIA_CZ2": {"2020": 0.32, "2021": 0.30},
              "AIA_CZ3": {"2020": 0.34, "2021": 0.32},
              "AIA_CZ4": {"2020": 0.36, "2021": 0.34},
              "AIA_CZ5": {"2020": 0.38, "2021": 0.36}
            },
            "units": "U factor", "source": "ENERGY STAR"
          }
        },
        "lifetime": {"average": 20, "range": 3, "units": "years", "source": "NAHB"}
      }
    }
  },
  "MELs": {
    "residential": {
      "TVs": {
        "TVs": {
          "cost": {"typical": {"2020": 500, "2021": 450}, "units": "2019$/unit", "source": "retail"},
          "performance": {
            "typical": {"active": {"2020": 100, "2021": 90}, "off": {"2020": 5, "2021": 5}},
            "units": "kWh/yr", "source": "metered"
          },
          "lifetime": {"average": 8, "range": 2, "units": "years", "source": "survey"}
        }
      },
      "other": {
        "dishwasher": {
          "cost": {"typical": {"2020": 600, "2021": 600}, "units": "2019$/unit", "source": "retail"},
          "performance": {
            "typical": {"active": {"2020": [100, 0.1], "2021": [100, 0.1]}, "off": {"2020": [1, 0.9], "2021": [1, 0.9]}},
            "units": ["W", "fraction annual operating hours"], "source": "metered"
          },
          "lifetime": {"average": 12, "range": 3, "units": "years", "source": "survey"}
        },
        "freezers": {
          "cost": {"typical": {"2020": 400, "2021": 400}, "units": "2019$/unit", "source": "retail"},
          "performance": {"typical": {"2020": 300, "2021": 290}, "units": "kWh/yr", "source": "metered"},
          "lifetime": {"average": 0, "range": 3, "units": "years", "source": "survey"}
        }
      }
    },
    "commercial": {
      "PCs": {
        "cost": {"typical": {"2020": 1000, "2021": 900}, "units": "2019$/unit", "source": "retail"},
        "performance": {"typical": {"2020": 200, "2021": 190}, "units": "kWh/yr", "source": "metered"},
        "lifetime": {"average": 5, "range": 1, "units": "years", "source": "survey"}
      },
      "non-PC office equipment": {
        "cost": {"typical": {"2020": 300, "2021": 300}, "units": "2019$/unit", "source": "retail"},
        "performance": {"typical": {"2020": 50, "2021": 50}, "units": "kWh/yr", "source": "metered"},
        "lifetime": {"average": 6, "range": 1, "units": "years", "source": "survey"}
      }
    }
  }
}`

const conversionReference = `{
  "cost unit conversions": {
    "heating and cooling": {
      "demand": {
        "roof": {
          "original units": "$/ft^2 roof", "revised units": "$/ft^2 floor",
          "conversion factor": {"value": {"residential": {"single family home": 0.5, "mobile home": 1.0}, "commercial": 1.2}}
        },
        "windows": {
          "original units": "$/ft^2 glazing", "revised units": "$/ft^2 wall",
          "conversion factor": {"value": {"residential": 0.15, "commercial": 0.3}}
        },
        "wall": {
          "original units": "$/ft^2 wall", "revised units": "$/ft^2 floor",
          "conversion factor": {"value": {
            "residential": {"single family home": 1.2},
            "commercial": {"small office": {"SmallOffice": 1.0, "OutPatient": 2.0}}
          }}
        },
        "loop a": {
          "original units": "$/ft^2 loop a", "revised units": "$/ft^2 loop b",
          "conversion factor": {"value": {"residential": 1}}
        },
        "loop b": {
          "original units": "$/ft^2 loop b", "revised units": "$/ft^2 loop a",
          "conversion factor": {"value": {"residential": 1}}
        }
      }
    },
    "PCs": {"conversion factor": {"value": {"office and education": 0.01, "health care": 0.02, "all other": 0.005}}}
  },
  "building type conversions": {
    "conversion data": {"value": {"commercial": {"small office": {"SmallOffice": 0.75, "OutPatient": 0.25}}}}
  }
}`

func testReference(t *testing.T) *Reference {
	t.Helper()
	ref, err := ParseReference([]byte(cplReference), []byte(conversionReference))
	require.NoError(t, err)
	return ref
}

func seriesOf(t *testing.T, tree *segment.Tree, path ...string) []float64 {
	t.Helper()
	n, ok := tree.Get(path...)
	require.True(t, ok, segment.PathString(path))
	require.True(t, n.IsLeaf(), segment.PathString(path))
	require.Equal(t, segment.KindSeries, n.Leaf().Kind, segment.PathString(path))
	return n.Leaf().Series.Values
}

func textOf(t *testing.T, tree *segment.Tree, path ...string) string {
	t.Helper()
	n, ok := tree.Get(path...)
	require.True(t, ok, segment.PathString(path))
	return n.Leaf().Text
}

func TestParseReference_Invalid(t *testing.T) {
	_, err := ParseReference([]byte("{"), []byte("{}"))
	assert.True(t, errs.IsCode(err, errs.CodeParse))
	_, err = ParseReference([]byte("{}"), []byte("nope"))
	assert.True(t, errs.IsCode(err, errs.CodeParse))
}

func TestPath_EscapesSyntax(t *testing.T) {
	assert.Equal(t, `a.b\.c.d\*`, path("a", "b.c", "d*"))
	ref := testReference(t)
	assert.True(t, get(ref.CPL, "MELs", "commercial", "non-PC office equipment").Exists())
}

func TestCostConverter(t *testing.T) {
	c := NewCostConverter(testReference(t).Conversions)

	cases := []struct {
		name      string
		cost      float64
		units     string
		class     taxonomy.Class
		bldg      string
		want      float64
		wantUnits string
	}{
		{"by building type", 10, "2016$/ft^2 roof", taxonomy.Residential, "single family home", 5, "2016$/ft^2 floor"},
		{"by class", 10, "2016$/ft^2 roof", taxonomy.Commercial, "assembly", 12, "2016$/ft^2 floor"},
		{"chained", 20, "2016$/ft^2 glazing", taxonomy.Residential, "single family home", 3.6, "2016$/ft^2 floor"},
		{"prototype mix", 10, "2016$/ft^2 wall", taxonomy.Commercial, "small office", 12.5, "2016$/ft^2 floor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, units, err := c.ToFloorArea(tc.cost, tc.units, tc.class, tc.bldg)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.Equal(t, tc.wantUnits, units)
		})
	}
}

func TestCostConverter_Errors(t *testing.T) {
	c := NewCostConverter(testReference(t).Conversions)

	_, _, err := c.ToFloorArea(1, "2016$/ft^2 door", taxonomy.Residential, "single family home")
	assert.True(t, errs.IsCode(err, errs.CodeUnexpectedUnit))

	_, _, err = c.ToFloorArea(1, "$", taxonomy.Residential, "single family home")
	assert.True(t, errs.IsCode(err, errs.CodeUnexpectedUnit))

	_, _, err = c.ToFloorArea(1, "2016$/ft^2 loop a", taxonomy.Residential, "single family home")
	assert.True(t, errs.IsCode(err, errs.CodeUnexpectedUnit))

	_, _, err = c.ToFloorArea(1, "2016$/ft^2 roof", taxonomy.Residential, "multi family home")
	assert.True(t, errs.IsCode(err, errs.CodeLookupMiss))
}

func newEnvelope(t *testing.T, perf *geomap.Matrix) *EnvelopeBuilder {
	t.Helper()
	b, err := NewEnvelopeBuilder(testReference(t), taxonomy.Default(), testYears, perf)
	require.NoError(t, err)
	return b
}

func TestEnvelopeBuilder_Residential(t *testing.T) {
	b := newEnvelope(t, nil)

	rec, ok, err := b.Build([]string{"AIA_CZ2", "single family home", "electricity", "heating", "demand", "roof"})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{"installed cost", "performance", "lifetime", "consumer choice"}, rec.Keys())
	assert.Equal(t, []float64{5, 5}, seriesOf(t, rec, "installed cost", "typical"))
	assert.Equal(t, "2016$/ft^2 floor", textOf(t, rec, "installed cost", "units"))
	assert.Equal(t, "RSMeans", textOf(t, rec, "installed cost", "source"))

	perf, _ := rec.Child("performance")
	assert.Equal(t, []string{"units", "source", "typical"}, perf.Keys())
	assert.Equal(t, []float64{40, 40}, seriesOf(t, rec, "performance", "typical"))

	assert.Equal(t, []float64{30, 30}, seriesOf(t, rec, "lifetime", "average"))
	assert.Equal(t, []float64{-0.003, -0.003}, seriesOf(t, rec, "consumer choice", "competed market share", "parameters", "b1"))
	assert.Equal(t, []float64{-0.012, -0.012}, seriesOf(t, rec, "consumer choice", "competed market share", "parameters", "b2"))
}

func TestEnvelopeBuilder_WindowsSubtypes(t *testing.T) {
	b := newEnvelope(t, nil)

	rec, ok, err := b.Build([]string{"AIA_CZ2", "single family home", "electricity", "heating", "demand", "windows conduction"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.32, 0.30}, seriesOf(t, rec, "performance", "typical"))
	assert.Equal(t, "U factor", textOf(t, rec, "performance", "units"))
	assert.InDeltaSlice(t, []float64{3.6, 3.6}, seriesOf(t, rec, "installed cost", "typical"), 1e-9)

	rec, ok, err = b.Build([]string{"AIA_CZ2", "single family home", "electricity", "cooling", "demand", "windows solar"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.4, 0.4}, seriesOf(t, rec, "performance", "typical"))
}

func TestEnvelopeBuilder_CommercialVintages(t *testing.T) {
	b := newEnvelope(t, nil)

	rec, ok, err := b.Build([]string{"AIA_CZ2", "assembly", "electricity", "heating", "demand", "roof"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, rec.Has("consumer choice"))
	assert.Equal(t, []float64{3, 3}, seriesOf(t, rec, "installed cost", "typical"))
	assert.Equal(t, "2016$/ft^2 floor", textOf(t, rec, "installed cost", "units"))
	assert.Equal(t, []float64{20, 20}, seriesOf(t, rec, "performance", "typical", "new"))
	assert.Equal(t, []float64{2, 2}, seriesOf(t, rec, "performance", "typical", "existing"))
}

func TestEnvelopeBuilder_PerformanceMatrix(t *testing.T) {
	perf, err := geomap.NewMatrix([]string{"TRE"}, [][]float64{{0.5}, {0.5}, {0}, {0}, {0}})
	require.NoError(t, err)
	b := newEnvelope(t, perf)

	rec, ok, err := b.Build([]string{"TRE", "single family home", "electricity", "heating", "demand", "roof"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{35, 35}, seriesOf(t, rec, "performance", "typical"))

	rec, ok, err = b.Build([]string{"TRE", "single family home", "electricity", "heating", "demand", "windows conduction"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0.31, 0.29}, seriesOf(t, rec, "performance", "typical"), 1e-12)

	_, _, err = b.Build([]string{"FRCC", "single family home", "electricity", "heating", "demand", "roof"})
	assert.True(t, errs.IsCode(err, errs.CodeLookupMiss))
}

func TestEnvelopeBuilder_NoData(t *testing.T) {
	b := newEnvelope(t, nil)
	for _, component := range []string{"people gain", "infiltration", "windows radiation"} {
		_, ok, err := b.Build([]string{"AIA_CZ2", "single family home", "electricity", "heating", "demand", component})
		require.NoError(t, err, component)
		assert.False(t, ok, component)
	}
}

func TestMELsBuilder(t *testing.T) {
	b := NewMELsBuilder(testReference(t), taxonomy.Default(), testYears)

	rec, ok, err := b.Build([]string{"AIA_CZ1", "single family home", "electricity", "TVs", "TVs"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{500, 450}, seriesOf(t, rec, "installed cost", "typical"))
	assert.Equal(t, []float64{105, 95}, seriesOf(t, rec, "performance", "typical"))
	assert.Equal(t, "kWh/yr", textOf(t, rec, "performance", "units"))

	rec, ok, err = b.Build([]string{"AIA_CZ1", "single family home", "electricity", "other", "dishwasher"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{95.484, 95.484}, seriesOf(t, rec, "performance", "typical"), 1e-9)

	rec, ok, err = b.Build([]string{"AIA_CZ1", "small office", "electricity", "PCs"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{10, 9}, seriesOf(t, rec, "installed cost", "typical"))
	assert.Equal(t, "2019$/ft^2 floor", textOf(t, rec, "installed cost", "units"))

	_, ok, err = b.Build([]string{"AIA_CZ1", "small office", "electricity", "non-PC office equipment"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = b.Build([]string{"AIA_CZ1", "single family home", "electricity", "other", "freezers"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMELsBuilder_UnexpectedUnits(t *testing.T) {
	cpl := strings.Replace(cplReference, `"units": "2019$/unit", "source": "retail"},
          "performance": {
            "typical": {"active"`, `"units": "2019$/ft^2", "source": "retail"},
          "performance": {
            "typical": {"active"`, 1)
	ref, err := ParseReference([]byte(cpl), []byte(conversionReference))
	require.NoError(t, err)
	b := NewMELsBuilder(ref, taxonomy.Default(), testYears)

	_, _, err = b.Build([]string{"AIA_CZ1", "single family home", "electricity", "TVs", "TVs"})
	assert.True(t, errs.IsCode(err, errs.CodeUnexpectedUnit))
}

func TestMELsBuilder_CommercialFloorAreaCostRejected(t *testing.T) {
	cpl := strings.Replace(cplReference,
		`"typical": {"2020": 1000, "2021": 900}, "units": "2019$/unit"`,
		`"typical": {"2020": 1000, "2021": 900}, "units": "2019$/ft^2 floor"`, 1)
	ref, err := ParseReference([]byte(cpl), []byte(conversionReference))
	require.NoError(t, err)
	b := NewMELsBuilder(ref, taxonomy.Default(), testYears)

	_, _, err = b.Build([]string{"AIA_CZ1", "small office", "electricity", "PCs"})
	assert.True(t, errs.IsCode(err, errs.CodeUnexpectedUnit))
}

const cplTree = `{
  "AIA_CZ2": {
    "single family home": {
      "electricity": {
        "heating": {"demand": {"roof": 0, "people gain": 0}, "supply": {"ASHP": {"installed cost": 1}}},
        "TVs": {"TVs": 0},
        "other": {"dishwasher": 0, "freezers": 0}
      }
    },
    "small office": {
      "electricity": {"PCs": 0, "non-PC office equipment": 0}
    }
  }
}`

func TestInjector_Inject(t *testing.T) {
	tree, err := segment.DecodeBytes([]byte(cplTree))
	require.NoError(t, err)
	log := testutil.NewMockLogger()
	ref := testReference(t)
	env, err := NewEnvelopeBuilder(ref, taxonomy.Default(), testYears, nil)
	require.NoError(t, err)
	in := NewInjector(env, NewMELsBuilder(ref, taxonomy.Default(), testYears), log)

	rep, err := in.Inject(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Envelope)
	assert.Equal(t, 3, rep.MELs)
	assert.Equal(t, 3, rep.Placeholders)
	assert.Equal(t, []string{"freezers", "non-PC office equipment"}, rep.Unmatched)

	roof, ok := tree.Get("AIA_CZ2", "single family home", "electricity", "heating", "demand", "roof")
	require.True(t, ok)
	assert.True(t, roof.IsNode())
	gain, _ := tree.Get("AIA_CZ2", "single family home", "electricity", "heating", "demand", "people gain")
	assert.Equal(t, 0.0, gain.Leaf().Scalar)
	ashp, _ := tree.Get("AIA_CZ2", "single family home", "electricity", "heating", "supply", "ASHP", "installed cost")
	assert.Equal(t, 1.0, ashp.Leaf().Scalar)

	demand, _ := tree.Get("AIA_CZ2", "single family home", "electricity", "heating", "demand")
	assert.Equal(t, []string{"roof", "people gain"}, demand.Keys())
	assert.True(t, log.HasMessage("info", "supplemental records injected"))
}

func TestInjector_Canceled(t *testing.T) {
	tree, err := segment.DecodeBytes([]byte(cplTree))
	require.NoError(t, err)
	ref := testReference(t)
	env, err := NewEnvelopeBuilder(ref, taxonomy.Default(), testYears, nil)
	require.NoError(t, err)
	in := NewInjector(env, NewMELsBuilder(ref, taxonomy.Default(), testYears), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = in.Inject(ctx, tree)
	assert.True(t, errs.IsCode(err, errs.CodeCanceled))
}

const shareTree = `{
  "TRE": {
    "single family home": {
      "electricity": {
        "heating": {"supply": {"ASHP": {"stock": {"2020": 1, "2021": 1}, "energy": {"2020": 10, "2021": 20}}}},
        "cooling": {"supply": {"central AC": {"energy": {"2020": 30, "2021": 20}}}}
      },
      "natural gas": {"heating": {"supply": {"furnace": {"energy": {"2020": 7, "2021": 7}}}}}
    }
  }
}`

func TestLoadShares(t *testing.T) {
	tbl, err := LoadShares(strings.NewReader("share,region,building class,end use\n0.5,TRE,Residential,heating\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, tbl[ShareKey{Region: "TRE", Class: taxonomy.Residential, EndUse: "heating"}])

	_, err = LoadShares(strings.NewReader("region,end use,share\nTRE,heating,1\n"))
	assert.True(t, errs.IsCode(err, errs.CodeParse))

	_, err = LoadShares(strings.NewReader("region,building class,end use,share\nTRE,residential,heating,x\n"))
	assert.True(t, errs.IsCode(err, errs.CodeParse))
}

func TestRecalibrator_Apply(t *testing.T) {
	tree, err := segment.DecodeBytes([]byte(shareTree))
	require.NoError(t, err)
	shares := ShareTable{{Region: "TRE", Class: taxonomy.Residential, EndUse: "heating"}: 0.5}

	rep, err := NewRecalibrator(taxonomy.Default(), nil).Apply(tree, shares)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Rescaled)
	assert.Equal(t, []string{"TRE / residential / cooling"}, rep.Misses)

	base := []string{"TRE", "single family home"}
	assert.Equal(t, []float64{20, 20}, seriesOf(t, tree, append(base, "electricity", "heating", "supply", "ASHP", "energy")...))
	assert.Equal(t, []float64{1, 1}, seriesOf(t, tree, append(base, "electricity", "heating", "supply", "ASHP", "stock")...))
	assert.Equal(t, []float64{30, 20}, seriesOf(t, tree, append(base, "electricity", "cooling", "supply", "central AC", "energy")...))
	assert.Equal(t, []float64{7, 7}, seriesOf(t, tree, append(base, "natural gas", "heating", "supply", "furnace", "energy")...))
}

func TestRecalibrator_ZeroTotalIsMiss(t *testing.T) {
	tree, err := segment.DecodeBytes([]byte(`{"TRE": {"assembly": {"electricity": {"lighting": {"energy": {"2020": 0}}}}}}`))
	require.NoError(t, err)
	shares := ShareTable{{Region: "TRE", Class: taxonomy.Commercial, EndUse: "lighting"}: 1}

	rep, err := NewRecalibrator(taxonomy.Default(), nil).Apply(tree, shares)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Rescaled)
	assert.Equal(t, []string{"TRE / commercial / lighting"}, rep.Misses)
}

//Personal.AI order the ending
