// Package enrich injects cost, performance and lifetime records into a
// converted cost/performance/lifetime tree and recalibrates electricity
// end-use shares of a converted energy tree.
//
// Reference documents are queried in place with gjson; only the records that
// end up in the output are materialized as segment trees.
package enrich

import (
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// FloorAreaUnits is the common cost basis, without its leading year.
const FloorAreaUnits = "$/ft^2 floor"

// Reference holds the envelope/MELs cost, performance and lifetime document and
// the cost conversion document.
type Reference struct {
	CPL         gjson.Result
	Conversions gjson.Result
}

// ParseReference validates and wraps the two reference documents.
func ParseReference(cpl, conversions []byte) (*Reference, error) {
	if !gjson.ValidBytes(cpl) {
		return nil, errs.New(errs.CodeParse, "envelope/MELs reference is not valid json")
	}
	if !gjson.ValidBytes(conversions) {
		return nil, errs.New(errs.CodeParse, "cost conversion reference is not valid json")
	}
	return &Reference{
		CPL:         gjson.ParseBytes(cpl),
		Conversions: gjson.ParseBytes(conversions),
	}, nil
}

// LoadReference reads both reference documents from disk.
func LoadReference(cplPath, conversionsPath string) (*Reference, error) {
	cpl, err := os.ReadFile(cplPath)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "read envelope/MELs reference").WithDetail(cplPath)
	}
	conv, err := os.ReadFile(conversionsPath)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "read cost conversion reference").WithDetail(conversionsPath)
	}
	return ParseReference(cpl, conv)
}

// path joins keys into a gjson path, escaping path syntax inside keys.
func path(keys ...string) string {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('.')
		}
		for _, r := range k {
			switch r {
			case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', '"', ',', ':', '{', '}', '[', ']':
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// get descends r along keys.
func get(r gjson.Result, keys ...string) gjson.Result {
	return r.Get(path(keys...))
}

// toTree materializes a gjson value.
func toTree(r gjson.Result) (*segment.Tree, error) {
	if !r.Exists() {
		return segment.NewLeaf(segment.Null()), nil
	}
	return segment.DecodeBytes([]byte(r.Raw))
}

// truthy mirrors the emptiness test applied to reference entries: missing,
// null, false, zero, empty strings and empty containers are all "no data".
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		empty := true
		r.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return !empty
	}
	return true
}

// unitString returns r as a unit string, or "" when r is not a string.
func unitString(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

//Personal.AI order the ending
