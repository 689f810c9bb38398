package segment

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Decode reads one JSON document into a Tree, preserving object key order and
// tagging every leaf with its Kind.
//
//   - numbers become scalars, strings text, null null
//   - an object whose keys are all four-digit years and whose values are all
//     numbers becomes a series
//   - a list of numbers becomes a vector, a list of number lists a matrix
//   - anything else (booleans, lists of strings or objects) is kept raw
func Decode(r io.Reader) (*Tree, error) {
	dec := json.NewDecoder(bufio.NewReaderSize(r, 1<<16))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeParse, "read json")
	}
	t, err := decodeValue(dec, tok)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errs.New(errs.CodeParse, "trailing data after json document")
	}
	return t, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(b []byte) (*Tree, error) {
	return Decode(bytes.NewReader(b))
}

func decodeValue(dec *json.Decoder, tok json.Token) (*Tree, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, errs.Newf(errs.CodeParse, "unexpected delimiter %q", rune(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParse, "parse number").WithDetail(v.String())
		}
		return NewLeaf(Scalar(f)), nil
	case string:
		return NewLeaf(Text(v)), nil
	case bool:
		return NewLeaf(Raw([]byte(strconv.FormatBool(v)))), nil
	case nil:
		return NewLeaf(Null()), nil
	}
	return nil, errs.Newf(errs.CodeParse, "unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (*Tree, error) {
	node := NewNode()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParse, "read object key")
		}
		key, ok := kt.(string)
		if !ok {
			return nil, errs.Newf(errs.CodeParse, "object key %v is not a string", kt)
		}
		vt, err := dec.Token()
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParse, "read object value").WithDetail(key)
		}
		child, err := decodeValue(dec, vt)
		if err != nil {
			return nil, err
		}
		node.Set(key, child)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errs.Wrap(err, errs.CodeParse, "close object")
	}
	if s, ok := asSeries(node); ok {
		return NewLeaf(s), nil
	}
	return node, nil
}

func asSeries(node *Tree) (Value, bool) {
	if node.Len() == 0 {
		return Value{}, false
	}
	s := &Series{}
	for _, k := range node.keys {
		c := node.children[k]
		if !IsYear(k) || !c.IsLeaf() || c.leaf.Kind != KindScalar {
			return Value{}, false
		}
		s.Years = append(s.Years, k)
		s.Values = append(s.Values, c.leaf.Scalar)
	}
	return Value{Kind: KindSeries, Series: s}, true
}

func decodeArray(dec *json.Decoder) (*Tree, error) {
	var elems []*Tree
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParse, "read array element")
		}
		e, err := decodeValue(dec, tok)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errs.Wrap(err, errs.CodeParse, "close array")
	}
	return NewLeaf(classifyArray(elems)), nil
}

func classifyArray(elems []*Tree) Value {
	vec := make([]float64, 0, len(elems))
	allScalar := true
	for _, e := range elems {
		if !e.IsLeaf() || e.leaf.Kind != KindScalar {
			allScalar = false
			break
		}
		vec = append(vec, e.leaf.Scalar)
	}
	if allScalar {
		return Value{Kind: KindVector, Vector: vec}
	}

	mat := make([][]float64, 0, len(elems))
	for _, e := range elems {
		if !e.IsLeaf() || e.leaf.Kind != KindVector {
			mat = nil
			break
		}
		mat = append(mat, e.leaf.Vector)
	}
	if mat != nil {
		return Value{Kind: KindMatrix, Matrix: mat}
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCompact(&buf, e)
	}
	buf.WriteByte(']')
	return Value{Kind: KindRaw, Raw: buf.Bytes()}
}

// Encode writes t as JSON in insertion order.  A non-empty indent produces
// indented output.  NaN and infinities are written as null.
func Encode(w io.Writer, t *Tree, indent string) error {
	var compact bytes.Buffer
	writeCompact(&compact, t)
	payload := compact.Bytes()
	if indent != "" {
		var out bytes.Buffer
		if err := json.Indent(&out, payload, "", indent); err != nil {
			return errs.Wrap(err, errs.CodeInternal, "indent json")
		}
		out.WriteByte('\n')
		payload = out.Bytes()
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(err, errs.CodeIO, "write json")
	}
	return nil
}

// MarshalJSON implements json.Marshaler with compact output.
func (t *Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	writeCompact(&buf, t)
	return buf.Bytes(), nil
}

func writeCompact(buf *bytes.Buffer, t *Tree) {
	if t.leaf != nil {
		writeValue(buf, *t.leaf)
		return
	}
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		writeCompact(buf, t.children[k])
	}
	buf.WriteByte('}')
}

func writeValue(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case KindScalar:
		writeNumber(buf, v.Scalar)
	case KindSeries:
		buf.WriteByte('{')
		for i, y := range v.Series.Years {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, y)
			buf.WriteByte(':')
			writeNumber(buf, v.Series.Values[i])
		}
		buf.WriteByte('}')
	case KindVector:
		writeNumbers(buf, v.Vector)
	case KindMatrix:
		buf.WriteByte('[')
		for i, r := range v.Matrix {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNumbers(buf, r)
		}
		buf.WriteByte(']')
	case KindText:
		writeString(buf, v.Text)
	case KindRaw:
		buf.Write(v.Raw)
	default:
		buf.WriteString("null")
	}
}

func writeNumbers(buf *bytes.Buffer, xs []float64) {
	buf.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeNumber(buf, x)
	}
	buf.WriteByte(']')
}

func writeNumber(buf *bytes.Buffer, x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		buf.WriteString("null")
		return
	}
	format := byte('f')
	if abs := math.Abs(x); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	buf.WriteString(strconv.FormatFloat(x, format, -1, 64))
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
}

//Personal.AI order the ending
