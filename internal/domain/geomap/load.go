package geomap

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// EndUseColumn is the grouping column of EULP CSV files.
const EndUseColumn = "End use"

// LoadTSV reads a tab-delimited weight table.  The header row names the origin
// id column followed by the destination columns; each following row is one
// origin in registry order.  Lines starting with '#' are ignored.
func LoadTSV(r io.Reader) (*Matrix, error) {
	records, err := readRecords(r, '\t')
	if err != nil {
		return nil, err
	}
	header := records[0]
	if len(header) < 2 {
		return nil, errs.New(errs.CodeWeightTable, "weight table needs an id column and at least one destination")
	}
	rows := make([][]float64, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, errs.New(errs.CodeWeightTable, "ragged weight table").
				WithDetailf("line %d has %d fields, want %d", i+2, len(rec), len(header))
		}
		row, err := parseRow(rec[1:], i+2)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return NewMatrix(header[1:], rows)
}

// LoadEndUseCSV reads a comma-delimited EULP weight file.  Rows are grouped by
// the "End use" column; within a group, row order is origin order.  Besides
// "End use", the first column is the origin id and the rest are destinations.
func LoadEndUseCSV(r io.Reader) (map[string]*Matrix, error) {
	records, err := readRecords(r, ',')
	if err != nil {
		return nil, err
	}
	header := records[0]
	euCol := -1
	for i, h := range header {
		if strings.TrimSpace(h) == EndUseColumn {
			euCol = i
			break
		}
	}
	if euCol < 0 {
		return nil, errs.New(errs.CodeWeightTable, "end-use weight file lacks column").WithDetail(EndUseColumn)
	}

	var keep []int
	idSkipped := false
	for i := range header {
		if i == euCol {
			continue
		}
		if !idSkipped {
			idSkipped = true
			continue
		}
		keep = append(keep, i)
	}
	if len(keep) == 0 {
		return nil, errs.New(errs.CodeWeightTable, "end-use weight file has no destination columns")
	}
	columns := make([]string, len(keep))
	for j, i := range keep {
		columns[j] = header[i]
	}

	var order []string
	groups := make(map[string][][]float64)
	for n, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, errs.New(errs.CodeWeightTable, "ragged end-use weight file").
				WithDetailf("line %d", n+2)
		}
		fields := make([]string, len(keep))
		for j, i := range keep {
			fields[j] = rec[i]
		}
		row, err := parseRow(fields, n+2)
		if err != nil {
			return nil, err
		}
		eu := rec[euCol]
		if _, ok := groups[eu]; !ok {
			order = append(order, eu)
		}
		groups[eu] = append(groups[eu], row)
	}

	out := make(map[string]*Matrix, len(order))
	for _, eu := range order {
		m, err := NewMatrix(columns, groups[eu])
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeUnknown, "build end-use matrix").WithDetail(eu)
		}
		out[eu] = m
	}
	return out, nil
}

func readRecords(r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeParse, "read weight table")
	}
	if len(records) < 2 {
		return nil, errs.New(errs.CodeWeightTable, "weight table needs a header and at least one row")
	}
	return records, nil
}

func parseRow(fields []string, line int) ([]float64, error) {
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseWeight(f)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParse, "parse weight").
				WithDetailf("line %d field %d: %q", line, i+1, f)
		}
		row[i] = v
	}
	return row, nil
}

// parseWeight accepts numbers plus the NA/nan spellings of missing data.
func parseWeight(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ─────────────────────────────────────────────────────────────────────────────
// File-backed sets
// ─────────────────────────────────────────────────────────────────────────────

// FuelSource names the files of one fuel; paths are relative to the table
// directory.  Flat is a TSV; Variants are TSVs keyed by variant; EndUse maps
// metric → EULP CSV.
type FuelSource struct {
	Flat     string
	Variants map[string]string
	EndUse   map[string]string
}

// Source names the files of one building class.  Either Flat or Fuels is set.
type Source struct {
	Flat  string
	Fuels map[string]FuelSource
}

// LoadSet reads every file named by src below dir.
func LoadSet(dir string, src Source) (*Set, error) {
	if src.Flat != "" {
		m, err := loadTSVFile(filepath.Join(dir, src.Flat))
		if err != nil {
			return nil, err
		}
		return NewFlatSet(m), nil
	}
	if len(src.Fuels) == 0 {
		return nil, errs.InvalidParam("weight source names no files")
	}
	set := &Set{Fuels: make(map[string]*FuelTable, len(src.Fuels))}
	for fuel, fs := range src.Fuels {
		ft := &FuelTable{}
		if fs.Flat != "" {
			m, err := loadTSVFile(filepath.Join(dir, fs.Flat))
			if err != nil {
				return nil, err
			}
			ft.Flat = m
		}
		if len(fs.Variants) > 0 {
			ft.Variants = make(map[string]*Matrix, len(fs.Variants))
			for v, name := range fs.Variants {
				m, err := loadTSVFile(filepath.Join(dir, name))
				if err != nil {
					return nil, err
				}
				ft.Variants[v] = m
			}
		}
		if len(fs.EndUse) > 0 {
			ft.EndUse = make(map[string]map[string]*Matrix, len(fs.EndUse))
			for metric, name := range fs.EndUse {
				ms, err := loadEndUseFile(filepath.Join(dir, name))
				if err != nil {
					return nil, err
				}
				ft.EndUse[metric] = ms
			}
		}
		set.Fuels[fuel] = ft
	}
	return set, nil
}

// LoadTSVFile reads a tab-delimited weight table from path.
func LoadTSVFile(path string) (*Matrix, error) {
	return loadTSVFile(path)
}

func loadTSVFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "open weight table").WithDetail(path)
	}
	defer f.Close()
	m, err := LoadTSV(f)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeUnknown, "load weight table").WithDetail(path)
	}
	return m, nil
}

func loadEndUseFile(path string) (map[string]*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "open end-use weight file").WithDetail(path)
	}
	defer f.Close()
	ms, err := LoadEndUseCSV(f)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeUnknown, "load end-use weight file").WithDetail(path)
	}
	return ms, nil
}

//Personal.AI order the ending
