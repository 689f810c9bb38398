package segment

import (
	"fmt"
	"math"
	"regexp"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Kind tags the shape of a leaf value.  The tag is fixed when a tree is
// decoded; arithmetic dispatches on it.
type Kind int

const (
	// KindNull is a JSON null.
	KindNull Kind = iota
	// KindScalar is a single number.
	KindScalar
	// KindSeries is a mapping from four-digit year to number.
	KindSeries
	// KindVector is a flat list of numbers.
	KindVector
	// KindMatrix is a list of number lists ("incentives"-shaped data).
	KindMatrix
	// KindText is a string.  "NA" is the not-applicable sentinel.
	KindText
	// KindRaw is any other JSON fragment, carried through untouched.
	KindRaw
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindScalar: "scalar",
	KindSeries: "series",
	KindVector: "vector",
	KindMatrix: "matrix",
	KindText:   "text",
	KindRaw:    "raw",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// NA is the sentinel text meaning "not applicable, do not aggregate".
const NA = "NA"

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

// IsYear reports whether key is a four-digit year string.
func IsYear(key string) bool {
	return yearPattern.MatchString(key)
}

// Series is an ordered year → value mapping.
type Series struct {
	Years  []string
	Values []float64
}

// Len returns the number of years.
func (s *Series) Len() int { return len(s.Years) }

// Index returns the position of year, or -1.
func (s *Series) Index(year string) int {
	for i, y := range s.Years {
		if y == year {
			return i
		}
	}
	return -1
}

// Get returns the value for year.
func (s *Series) Get(year string) (float64, bool) {
	if i := s.Index(year); i >= 0 {
		return s.Values[i], true
	}
	return 0, false
}

// Set assigns a value to year, appending the year if absent.
func (s *Series) Set(year string, v float64) {
	if i := s.Index(year); i >= 0 {
		s.Values[i] = v
		return
	}
	s.Years = append(s.Years, year)
	s.Values = append(s.Values, v)
}

func (s *Series) clone() *Series {
	if s == nil {
		return nil
	}
	return &Series{
		Years:  append([]string(nil), s.Years...),
		Values: append([]float64(nil), s.Values...),
	}
}

// Value is the tagged leaf union.  Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Scalar float64
	Series *Series
	Vector []float64
	Matrix [][]float64
	Text   string
	Raw    []byte
}

// Scalar builds a scalar value.
func Scalar(v float64) Value { return Value{Kind: KindScalar, Scalar: v} }

// Text builds a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Null builds a null value.
func Null() Value { return Value{Kind: KindNull} }

// Vector builds a vector value from a copy of vs.
func Vector(vs ...float64) Value {
	return Value{Kind: KindVector, Vector: append([]float64{}, vs...)}
}

// Matrix builds a matrix value from a copy of rows.
func Matrix(rows ...[]float64) Value {
	m := make([][]float64, len(rows))
	for i, r := range rows {
		m[i] = append([]float64{}, r...)
	}
	return Value{Kind: KindMatrix, Matrix: m}
}

// SeriesOf builds a series value.  years and values must have equal length.
func SeriesOf(years []string, values []float64) Value {
	return Value{Kind: KindSeries, Series: &Series{
		Years:  append([]string(nil), years...),
		Values: append([]float64(nil), values...),
	}}
}

// Uniform builds a series with the same value for every year.
func Uniform(years []string, v float64) Value {
	vals := make([]float64, len(years))
	for i := range vals {
		vals[i] = v
	}
	return SeriesOf(years, vals)
}

// Raw builds a raw value from a compact JSON fragment.
func Raw(b []byte) Value { return Value{Kind: KindRaw, Raw: append([]byte(nil), b...)} }

// IsNumeric reports whether the value takes part in weighted sums.
func (v Value) IsNumeric() bool {
	switch v.Kind {
	case KindScalar, KindSeries, KindVector, KindMatrix:
		return true
	}
	return false
}

// IsNA reports whether the value is the "NA" sentinel.
func (v Value) IsNA() bool {
	return v.Kind == KindText && v.Text == NA
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	out := v
	switch v.Kind {
	case KindSeries:
		out.Series = v.Series.clone()
	case KindVector:
		out.Vector = append([]float64{}, v.Vector...)
	case KindMatrix:
		out.Matrix = make([][]float64, len(v.Matrix))
		for i, r := range v.Matrix {
			out.Matrix[i] = append([]float64{}, r...)
		}
	case KindRaw:
		out.Raw = append([]byte(nil), v.Raw...)
	}
	return out
}

// Zero returns the additive identity of the same shape.  Non-numeric values
// are returned unchanged.
func (v Value) Zero() Value {
	return v.Scale(0)
}

// Scale returns a copy with every number multiplied by w.  Non-numeric values
// are returned unchanged.
func (v Value) Scale(w float64) Value {
	out := v.Clone()
	switch out.Kind {
	case KindScalar:
		out.Scalar = scale(out.Scalar, w)
	case KindSeries:
		for i := range out.Series.Values {
			out.Series.Values[i] = scale(out.Series.Values[i], w)
		}
	case KindVector:
		for i := range out.Vector {
			out.Vector[i] = scale(out.Vector[i], w)
		}
	case KindMatrix:
		for _, r := range out.Matrix {
			for i := range r {
				r[i] = scale(r[i], w)
			}
		}
	}
	return out
}

// scale treats a zero weight as an exact reset so that NaN data never leaks
// into a zero-identity seed.
func scale(x, w float64) float64 {
	if w == 0 {
		return 0
	}
	return x * w
}

// AddScaled adds other × w into v in place.  Both values must share kind and
// shape; text, null and raw values are left untouched.
func (v *Value) AddScaled(other Value, w float64) error {
	if v.Kind != other.Kind {
		return errs.StructureMismatch("leaf kinds differ").
			WithDetailf("%s vs %s", v.Kind, other.Kind)
	}
	switch v.Kind {
	case KindScalar:
		v.Scalar += other.Scalar * w
	case KindSeries:
		if v.Series.Len() != other.Series.Len() {
			return errs.StructureMismatch("series lengths differ").
				WithDetailf("%d vs %d", v.Series.Len(), other.Series.Len())
		}
		for i, y := range other.Series.Years {
			j := i
			if v.Series.Years[j] != y {
				j = v.Series.Index(y)
			}
			if j < 0 {
				return errs.StructureMismatch("series years differ").WithDetail(y)
			}
			v.Series.Values[j] += other.Series.Values[i] * w
		}
	case KindVector:
		if len(v.Vector) != len(other.Vector) {
			return errs.StructureMismatch("vector lengths differ").
				WithDetailf("%d vs %d", len(v.Vector), len(other.Vector))
		}
		for i := range v.Vector {
			v.Vector[i] += other.Vector[i] * w
		}
	case KindMatrix:
		if len(v.Matrix) != len(other.Matrix) {
			return errs.StructureMismatch("matrix row counts differ").
				WithDetailf("%d vs %d", len(v.Matrix), len(other.Matrix))
		}
		for r := range v.Matrix {
			if len(v.Matrix[r]) != len(other.Matrix[r]) {
				return errs.StructureMismatch("matrix row lengths differ").
					WithDetailf("row %d", r)
			}
			for i := range v.Matrix[r] {
				v.Matrix[r][i] += other.Matrix[r][i] * w
			}
		}
	}
	return nil
}

// Sum returns the sum of every number in the value; NaN entries are skipped.
func (v Value) Sum() float64 {
	var total float64
	add := func(x float64) {
		if !math.IsNaN(x) {
			total += x
		}
	}
	switch v.Kind {
	case KindScalar:
		add(v.Scalar)
	case KindSeries:
		for _, x := range v.Series.Values {
			add(x)
		}
	case KindVector:
		for _, x := range v.Vector {
			add(x)
		}
	case KindMatrix:
		for _, r := range v.Matrix {
			for _, x := range r {
				add(x)
			}
		}
	}
	return total
}

//Personal.AI order the ending
