package enrich

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Share table column names.
const (
	ColRegion = "region"
	ColClass  = "building class"
	ColEndUse = "end use"
	ColShare  = "share"
)

// ShareKey addresses one reference end-use share.
type ShareKey struct {
	Region string
	Class  taxonomy.Class
	EndUse string
}

// ShareTable holds reference electricity end-use shares of a region and
// building class total.
type ShareTable map[ShareKey]float64

// LoadShares reads a comma-delimited share table.  Columns are located by
// header name and may appear in any order.
func LoadShares(r io.Reader) (ShareTable, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeParse, "read end-use share table")
	}
	if len(records) < 1 {
		return nil, errs.New(errs.CodeParse, "end-use share table is empty")
	}
	idx := make(map[string]int)
	for i, h := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{ColRegion, ColClass, ColEndUse, ColShare} {
		if _, ok := idx[col]; !ok {
			return nil, errs.New(errs.CodeParse, "end-use share table lacks column").WithDetail(col)
		}
	}
	out := make(ShareTable, len(records)-1)
	for n, rec := range records[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[ColShare]]), 64)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParse, "parse share").WithDetailf("line %d", n+2)
		}
		k := ShareKey{
			Region: rec[idx[ColRegion]],
			Class:  taxonomy.Class(strings.ToLower(strings.TrimSpace(rec[idx[ColClass]]))),
			EndUse: rec[idx[ColEndUse]],
		}
		out[k] = v
	}
	return out, nil
}

// LoadSharesFile reads a share table from path.
func LoadSharesFile(path string) (ShareTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "open end-use share table").WithDetail(path)
	}
	defer f.Close()
	return LoadShares(f)
}

// ShareReport summarizes a recalibration pass.
type ShareReport struct {
	Rescaled int
	// Misses lists region/class/end-use triples left unmodified.
	Misses []string
}

// Recalibrator rescales electricity energy so that each end use's share of
// its region and building class total matches a reference table.
type Recalibrator struct {
	tax    *taxonomy.Taxonomy
	logger logging.Logger
}

// NewRecalibrator returns a recalibrator.
func NewRecalibrator(tax *taxonomy.Taxonomy, logger logging.Logger) *Recalibrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Recalibrator{tax: tax, logger: logger.Named("eushares")}
}

// branch gathers the electricity energy series of one end use.
type branch struct {
	leaves []*segment.Value
	total  yearlySum
}

// classBranches holds the end-use branches of one region and building class.
type classBranches struct {
	order []string
	byEU  map[string]*branch
	total yearlySum
}

// Apply rescales tree in place.  The tree is keyed region > building type >
// fuel > end use > ... and only "energy" series under "electricity" take part.
func (r *Recalibrator) Apply(tree *segment.Tree, shares ShareTable) (*ShareReport, error) {
	rep := &ShareReport{}
	for _, region := range tree.Keys() {
		regionNode, _ := tree.Child(region)
		if regionNode.IsLeaf() {
			continue
		}
		classes, err := r.processBranches(regionNode)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeUnknown, "sum end-use branches").WithDetail(region)
		}
		for _, class := range []taxonomy.Class{taxonomy.Residential, taxonomy.Commercial} {
			cb, ok := classes[class]
			if !ok {
				continue
			}
			r.finalize(region, class, cb, shares, rep)
		}
	}
	sort.Strings(rep.Misses)
	r.logger.Info("end-use shares recalibrated",
		logging.Int("rescaled", rep.Rescaled),
		logging.Int("misses", len(rep.Misses)))
	return rep, nil
}

func (r *Recalibrator) processBranches(regionNode *segment.Tree) (map[taxonomy.Class]*classBranches, error) {
	out := make(map[taxonomy.Class]*classBranches)
	for _, bldg := range regionNode.Keys() {
		class, ok := r.tax.ClassOfBuilding(bldg)
		if !ok {
			continue
		}
		elec, ok := regionNode.Get(bldg, taxonomy.FuelElectricity)
		if !ok || elec.IsLeaf() {
			continue
		}
		cb := out[class]
		if cb == nil {
			cb = &classBranches{byEU: make(map[string]*branch)}
			out[class] = cb
		}
		for _, eu := range elec.Keys() {
			euNode, _ := elec.Child(eu)
			b := cb.byEU[eu]
			if b == nil {
				b = &branch{}
				cb.byEU[eu] = b
				cb.order = append(cb.order, eu)
			}
			err := euNode.Walk(func(path []string, n *segment.Tree) error {
				if !n.IsLeaf() || len(path) == 0 || path[len(path)-1] != taxonomy.MetricEnergy {
					return nil
				}
				v := n.Leaf()
				if v.Kind != segment.KindSeries {
					return nil
				}
				b.leaves = append(b.leaves, v)
				if err := b.total.add(v.Series); err != nil {
					return err
				}
				return cb.total.add(v.Series)
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *Recalibrator) finalize(region string, class taxonomy.Class, cb *classBranches, shares ShareTable, rep *ShareReport) {
	for _, eu := range cb.order {
		b := cb.byEU[eu]
		if len(b.leaves) == 0 {
			continue
		}
		label := region + " / " + string(class) + " / " + eu
		share, ok := shares[ShareKey{Region: region, Class: class, EndUse: eu}]
		if !ok {
			rep.Misses = append(rep.Misses, label)
			continue
		}
		ratio, ok := ratios(share, cb.total, b.total)
		if !ok {
			rep.Misses = append(rep.Misses, label)
			continue
		}
		for _, v := range b.leaves {
			for i, y := range v.Series.Years {
				if j := b.total.index(y); j >= 0 {
					v.Series.Values[i] *= ratio[j]
				}
			}
		}
		rep.Rescaled++
	}
}

// ratios returns share × class total ÷ end-use total per year, indexed like
// the end-use total.
func ratios(share float64, class, eu yearlySum) ([]float64, bool) {
	if len(eu.vals) == 0 {
		return nil, false
	}
	out := make([]float64, len(eu.vals))
	for j, y := range eu.years {
		i := class.index(y)
		if i < 0 || eu.vals[j] == 0 {
			return nil, false
		}
		out[j] = class.vals[i]
	}
	floats.Scale(share, out)
	floats.Div(out, eu.vals)
	return out, true
}

// yearlySum accumulates series aligned on the years of the first one added.
type yearlySum struct {
	years []string
	vals  []float64
}

func (s *yearlySum) add(series *segment.Series) error {
	if s.years == nil {
		s.years = append([]string(nil), series.Years...)
		s.vals = append([]float64(nil), series.Values...)
		return nil
	}
	if len(series.Years) != len(s.years) {
		return errs.StructureMismatch("energy series cover different years")
	}
	if equalStrings(series.Years, s.years) {
		floats.Add(s.vals, series.Values)
		return nil
	}
	for i, y := range series.Years {
		j := s.index(y)
		if j < 0 {
			return errs.StructureMismatch("energy series cover different years").WithDetail(y)
		}
		s.vals[j] += series.Values[i]
	}
	return nil
}

func (s *yearlySum) index(year string) int {
	for i, y := range s.years {
		if y == year {
			return i
		}
	}
	return -1
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

//Personal.AI order the ending
