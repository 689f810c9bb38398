package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/mseg-regionalizer/internal/application/convert"
	"github.com/turtacn/mseg-regionalizer/internal/domain/geomap"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Data choices.
const (
	DataEnergy = 1
	DataCPL    = 2
)

// Geography choices.
const (
	GeoAIA   = 1
	GeoEMM   = 2
	GeoState = 3
)

// Fuel disaggregation choices.
const (
	FuelElectricityOnly = 1
	FuelAll             = 2
)

// Detail choices for the electricity disaggregation.
const (
	DetailTechnology = 1
	DetailEndUse     = 2
)

// Input and reference file names.
const (
	EnergyInput = "mseg_res_com_cdiv.json"
	CPLInput    = "cpl_res_com_cdiv.json"
)

// Choices selects one conversion run.
type Choices struct {
	Data     int
	Geo      int
	Fuel     int
	Detail   int
	Captured bool
}

// NeedsFuel reports whether the fuel disaggregation choice applies.
func (c Choices) NeedsFuel() bool {
	return c.Data == DataEnergy && (c.Geo == GeoEMM || c.Geo == GeoState)
}

// NeedsDetail reports whether the electricity detail choice applies.
func (c Choices) NeedsDetail() bool { return c.NeedsFuel() }

// Validate checks every choice that applies.
func (c Choices) Validate() error {
	if c.Data != DataEnergy && c.Data != DataCPL {
		return errs.InvalidParam("data choice must be 1 or 2").WithDetailf("got %d", c.Data)
	}
	if c.Geo < GeoAIA || c.Geo > GeoState {
		return errs.InvalidParam("geography choice must be 1, 2 or 3").WithDetailf("got %d", c.Geo)
	}
	if c.NeedsFuel() && c.Fuel != FuelElectricityOnly && c.Fuel != FuelAll {
		return errs.InvalidParam("fuel choice must be 1 or 2").WithDetailf("got %d", c.Fuel)
	}
	if c.NeedsDetail() && c.Detail != DetailTechnology && c.Detail != DetailEndUse {
		return errs.InvalidParam("detail choice must be 1 or 2").WithDetailf("got %d", c.Detail)
	}
	return nil
}

// Plan is the resolved file set and semantics of one run.
type Plan struct {
	Choices Choices
	Mode    convert.Mode
	Scheme  taxonomy.Scheme
	// Convert is false when the data stay on census divisions.
	Convert     bool
	Input       string
	Output      string
	Residential geomap.Source
	Commercial  geomap.Source
	// EnvelopePerf names the AIA zone → output region table used for
	// envelope performance; empty when the output is on AIA zones.
	EnvelopePerf string
}

// NewPlan resolves choices into a plan.
func NewPlan(c Choices) (*Plan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &Plan{Choices: c, Convert: true}
	if c.Data == DataCPL {
		p.Mode = convert.ModeCPL
		p.Input = CPLInput
		planCPL(p)
	} else {
		p.Mode = convert.ModeEnergy
		p.Input = EnergyInput
		planEnergy(p)
	}
	return p, nil
}

// GzipName returns the compressed copy's file name, or "" when the output is
// not compressed.
func (p *Plan) GzipName() string {
	if !strings.HasPrefix(p.Output, "cpl") && p.Output != "mseg_res_com_state.json" && p.Output != "mseg_res_com_emm.json" {
		return ""
	}
	return strings.SplitN(p.Output, ".", 2)[0] + ".gz"
}

// Destinations returns the destination list to pass to the converter: nil
// for flat tables (their columns are used), else the scheme's regions.
func (p *Plan) Destinations(tax *taxonomy.Taxonomy) ([]string, error) {
	if p.Residential.Flat != "" {
		return nil, nil
	}
	return tax.RegionNames(p.Scheme)
}

// Files lists every weight table the plan reads, without duplicates.
func (p *Plan) Files() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, src := range []geomap.Source{p.Residential, p.Commercial} {
		add(src.Flat)
		for _, fuel := range sortedFuels(src.Fuels) {
			fs := src.Fuels[fuel]
			add(fs.Flat)
			for _, k := range []string{taxonomy.StockHomes, taxonomy.StockFloorArea} {
				add(fs.Variants[k])
			}
			for _, k := range []string{taxonomy.MetricEnergy, taxonomy.MetricStock} {
				add(fs.EndUse[k])
			}
		}
	}
	add(p.EnvelopePerf)
	return out
}

func sortedFuels(m map[string]geomap.FuelSource) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ─────────────────────────────────────────────────────────────────────────────
// Energy, stock and floor area
// ─────────────────────────────────────────────────────────────────────────────

func planEnergy(p *Plan) {
	c := p.Choices
	switch c.Geo {
	case GeoAIA:
		p.Scheme = taxonomy.SchemeAIA
		p.Residential = geomap.Source{Flat: "Res_Cdiv_Czone_RowSums.txt"}
		p.Commercial = geomap.Source{Flat: "Com_Cdiv_Czone_RowSums.txt"}
		p.Output = "mseg_res_com_cz.json"
		return
	case GeoEMM:
		p.Scheme = taxonomy.SchemeEMM
		p.Output = "mseg_res_com_emm.json"
	case GeoState:
		p.Scheme = taxonomy.SchemeState
		p.Output = "mseg_res_com_state.json"
	}
	p.Residential = energySource("Res", c)
	p.Commercial = energySource("Com", c)
}

// fuelTags pairs fuels with the tags used in the population-weighted TSV and
// the EULP CSV file names.
var fuelTags = []struct {
	fuel, tsv, csv string
}{
	{"natural gas", "NG", "naturalgas"},
	{"distillate", "Dist", "distillate"},
	{"other fuel", "Other", "otherfuel"},
}

func energySource(class string, c Choices) geomap.Source {
	geo := "EMM"
	if c.Geo == GeoState {
		geo = "State"
	}
	prefix := fmt.Sprintf("%s_Cdiv_%s", class, geo)

	elec := fmt.Sprintf("%s_amy2018_electricity", prefix)
	energy, stock := elec+".csv", elec+"_Stock.csv"
	if c.Detail == DetailTechnology {
		energy, stock = elec+"_Tech.csv", elec+"_Stock_Tech.csv"
	}
	fuels := map[string]geomap.FuelSource{
		taxonomy.FuelElectricity: {EndUse: map[string]string{
			taxonomy.MetricEnergy: energy,
			taxonomy.MetricStock:  stock,
		}},
	}
	for _, ft := range fuelTags {
		if c.Fuel == FuelAll {
			base := fmt.Sprintf("%s_amy2018_%s", prefix, ft.csv)
			fuels[ft.fuel] = geomap.FuelSource{EndUse: map[string]string{
				taxonomy.MetricEnergy: base + ".csv",
				taxonomy.MetricStock:  base + "_Stock.csv",
			}}
		} else {
			fuels[ft.fuel] = geomap.FuelSource{Flat: fmt.Sprintf("%s_%s_RowSums.txt", prefix, ft.tsv)}
		}
	}

	var bucket geomap.FuelSource
	switch {
	case c.Geo == GeoEMM:
		bucket = geomap.FuelSource{Flat: prefix + "_Elec_RowSums.txt"}
	case class == "Res":
		bucket = geomap.FuelSource{Variants: map[string]string{
			taxonomy.StockHomes:     "Res_Homes_RowSums.txt",
			taxonomy.StockFloorArea: "Res_SF_RowSums.txt",
		}}
	default:
		bucket = geomap.FuelSource{Flat: prefix + "_AllFuels_RowSums.txt"}
	}
	fuels[taxonomy.StockBucket] = bucket
	// On-site generation follows the building stock.
	if class == "Res" {
		fuels[onSiteElectricity] = bucket
	}
	return geomap.Source{Fuels: fuels}
}

const onSiteElectricity = "electricity (on site)"

// ─────────────────────────────────────────────────────────────────────────────
// Cost, performance and lifetime
// ─────────────────────────────────────────────────────────────────────────────

func planCPL(p *Plan) {
	switch p.Choices.Geo {
	case GeoAIA:
		p.Scheme = taxonomy.SchemeAIA
		p.Residential = geomap.Source{Flat: "Res_Cdiv_Czone_ColSums.txt"}
		p.Commercial = geomap.Source{Flat: "Com_Cdiv_Czone_ColSums.txt"}
		p.Output = "cpl_res_com_cz.json"
	case GeoEMM:
		p.Scheme = taxonomy.SchemeEMM
		p.Residential = cplEMMSource("Res")
		p.Commercial = cplEMMSource("Com")
		p.EnvelopePerf = "AIA_EMM_ColSums.txt"
		p.Output = "cpl_res_com_emm.json"
	case GeoState:
		p.Scheme = taxonomy.SchemeCDIV
		p.Convert = false
		p.EnvelopePerf = "AIA_Cdiv_ColSums.txt"
		p.Output = "cpl_res_com_cdiv.json"
	}
}

func cplEMMSource(class string) geomap.Source {
	elec := geomap.FuelSource{Flat: class + "_Cdiv_EMM_Elec_ColSums.txt"}
	nonElec := geomap.FuelSource{Flat: "NElec_Cdiv_EMM_ColSums.txt"}
	fuels := map[string]geomap.FuelSource{
		taxonomy.FuelElectricity: elec,
		taxonomy.StockBucket:     elec,
	}
	for _, ft := range fuelTags {
		fuels[ft.fuel] = nonElec
	}
	if class == "Res" {
		fuels[onSiteElectricity] = elec
	}
	return geomap.Source{Fuels: fuels}
}

//Personal.AI order the ending
