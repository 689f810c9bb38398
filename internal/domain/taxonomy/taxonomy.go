// Package taxonomy holds the translation tables the converter relies on:
// census divisions and their registry codes, residential and commercial
// building types, fuels and end uses, the destination region sets, and the
// map between microsegment end uses and End Use Load Profile (EULP) end uses.
//
// A Taxonomy is plain configuration.  Default returns the built-in AEO
// vocabulary; LoadFile overlays a YAML document so a different AEO vintage
// can be converted without code changes.
package taxonomy

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Class is a building class.
type Class string

const (
	Residential Class = "residential"
	Commercial  Class = "commercial"
)

// Scheme names a geographic axis.
type Scheme string

const (
	SchemeCDIV  Scheme = "cdiv"
	SchemeAIA   Scheme = "aia"
	SchemeEMM   Scheme = "emm"
	SchemeState Scheme = "state"
)

// Well-known keys.
const (
	FuelElectricity = "electricity"
	StockBucket     = "building stock and square footage"
	StockHomes      = "homes"
	StockFloorArea  = "square footage"
	MetricStock     = "stock"
	MetricEnergy    = "energy"
	EndUseMisc      = "misc"
	KeyUnspecified  = "unspecified"
	KeyOther        = "other"
	KeySupply       = "supply"
	KeyDemand       = "demand"
)

// Division is a census division and its 1-based registry code.
type Division struct {
	Name string `yaml:"name"`
	Code int    `yaml:"code"`
}

// ClassVocabulary lists the building types, fuels and end uses of a class.
type ClassVocabulary struct {
	BuildingTypes []string `yaml:"building_types"`
	Fuels         []string `yaml:"fuels"`
	EndUses       []string `yaml:"end_uses"`
}

// EULPGroup is one EULP end use and the microsegment end uses it covers.
// Entries of the form "other-<technology>" cover technologies that sit under
// the "other" end use in the microsegment data.
type EULPGroup struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// Taxonomy is the full set of translation tables.
type Taxonomy struct {
	Divisions   []Division          `yaml:"census_divisions"`
	Residential ClassVocabulary     `yaml:"residential"`
	Commercial  ClassVocabulary     `yaml:"commercial"`
	Regions     map[Scheme][]string `yaml:"regions"`

	// StockKeys map building stock / floor area keys to their weight variant.
	StockKeys map[string]string `yaml:"stock_keys"`

	// EULP maps fuel → ordered EULP end-use groups.
	EULP map[string][]EULPGroup `yaml:"eulp"`

	// EULPOtherTech lists "other" technologies with their own EULP profile.
	EULPOtherTech []string `yaml:"eulp_other_tech"`
}

// Vocabulary returns the vocabulary for class.
func (t *Taxonomy) Vocabulary(c Class) ClassVocabulary {
	if c == Commercial {
		return t.Commercial
	}
	return t.Residential
}

// OriginIndex returns the 0-based weight-table row for a census division.
func (t *Taxonomy) OriginIndex(name string) (int, error) {
	for _, d := range t.Divisions {
		if d.Name == name {
			return d.Code - 1, nil
		}
	}
	return 0, errs.LookupMiss("census division not in registry").WithDetail(name)
}

// OriginNames returns census division names in registry order.
func (t *Taxonomy) OriginNames() []string {
	names := make([]string, len(t.Divisions))
	for i, d := range t.Divisions {
		names[i] = d.Name
	}
	return names
}

// RegionNames returns the destination names for scheme.  The census division
// scheme is derived from the division registry.
func (t *Taxonomy) RegionNames(s Scheme) ([]string, error) {
	if s == SchemeCDIV {
		return t.OriginNames(), nil
	}
	names, ok := t.Regions[s]
	if !ok || len(names) == 0 {
		return nil, errs.LookupMiss("no regions configured for scheme").WithDetail(string(s))
	}
	return append([]string(nil), names...), nil
}

// IsFuel reports whether key is a fuel of either class.
func (t *Taxonomy) IsFuel(key string) bool {
	return contains(t.Residential.Fuels, key) || contains(t.Commercial.Fuels, key)
}

// IsEndUse reports whether key is an end use of either class.
func (t *Taxonomy) IsEndUse(key string) bool {
	return contains(t.Residential.EndUses, key) || contains(t.Commercial.EndUses, key)
}

// BuildingClass reports the class of a building-type key.  childKeys are the
// keys one level below; a building type is recognized only when at least one
// of them is a fuel of the same class, which disambiguates keys such as
// "other" that are both a commercial building type and an end use.
func (t *Taxonomy) BuildingClass(key string, childKeys []string) (Class, bool) {
	if contains(t.Residential.BuildingTypes, key) && anyIn(childKeys, t.Residential.Fuels) {
		return Residential, true
	}
	if contains(t.Commercial.BuildingTypes, key) && anyIn(childKeys, t.Commercial.Fuels) {
		return Commercial, true
	}
	return "", false
}

// ClassOfBuilding reports the class of a building type by name alone.
func (t *Taxonomy) ClassOfBuilding(key string) (Class, bool) {
	switch {
	case contains(t.Residential.BuildingTypes, key):
		return Residential, true
	case contains(t.Commercial.BuildingTypes, key):
		return Commercial, true
	}
	return "", false
}

// StockVariant returns the weight variant for a stock/floor-area key.
func (t *Taxonomy) StockVariant(key string) (string, bool) {
	v, ok := t.StockKeys[key]
	return v, ok
}

// EULPEndUse resolves the EULP end use for a microsegment end-use key.
// path holds the keys above the current one.
func (t *Taxonomy) EULPEndUse(class Class, fuel, key string, path []string) (string, error) {
	if key == "ventilation" {
		if fuel != FuelElectricity || !contains(path, "fans and pumps") {
			return EndUseMisc, nil
		}
		return t.uniqueGroup(class, fuel, key, func(g EULPGroup) bool { return contains(g.Members, key) })
	}
	if key == KeyOther || (key == "cooking" && class != Residential) {
		return EndUseMisc, nil
	}
	return t.uniqueGroup(class, fuel, key, func(g EULPGroup) bool { return contains(g.Members, key) })
}

// IsEULPOtherTech reports whether tech has its own EULP profile.
func (t *Taxonomy) IsEULPOtherTech(tech string) bool {
	return contains(t.EULPOtherTech, tech)
}

// EULPOtherEndUse resolves the EULP end use for an "other" technology.  A group
// matches when one of its members contains the technology name or when the
// group itself is named after the technology.
func (t *Taxonomy) EULPOtherEndUse(class Class, fuel, tech string) (string, error) {
	return t.uniqueGroup(class, fuel, tech, func(g EULPGroup) bool {
		if g.Name == tech {
			return true
		}
		for _, m := range g.Members {
			if strings.HasPrefix(m, KeyOther+"-") && strings.Contains(m, tech) {
				return true
			}
		}
		return false
	})
}

func (t *Taxonomy) uniqueGroup(class Class, fuel, key string, match func(EULPGroup) bool) (string, error) {
	var found []string
	for _, g := range t.EULP[fuel] {
		if match(g) {
			found = append(found, g.Name)
		}
	}
	if len(found) != 1 {
		return "", errs.LookupMiss("could not match end use to EULP data").
			WithDetailf("%s %s %s (%d matches)", class, fuel, key, len(found))
	}
	return found[0], nil
}

// EULPEndUses returns the EULP end-use names for fuel in declaration order.
func (t *Taxonomy) EULPEndUses(fuel string) []string {
	groups := t.EULP[fuel]
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Name
	}
	return out
}

// Validate checks internal consistency.
func (t *Taxonomy) Validate() error {
	if len(t.Divisions) == 0 {
		return errs.InvalidParam("taxonomy: census_divisions must not be empty")
	}
	seen := make(map[int]string, len(t.Divisions))
	for _, d := range t.Divisions {
		if d.Code < 1 {
			return errs.InvalidParam("taxonomy: division codes are 1-based").WithDetail(d.Name)
		}
		if prev, ok := seen[d.Code]; ok {
			return errs.InvalidParam("taxonomy: duplicate division code").
				WithDetailf("%s and %s share %d", prev, d.Name, d.Code)
		}
		seen[d.Code] = d.Name
	}
	if len(t.Residential.BuildingTypes) == 0 || len(t.Commercial.BuildingTypes) == 0 {
		return errs.InvalidParam("taxonomy: building types must not be empty")
	}
	return nil
}

// LoadFile reads a YAML taxonomy and overlays it on Default.  Sections absent
// from the file keep their built-in values.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "read taxonomy file").WithDetail(path)
	}
	return Parse(data)
}

// Parse decodes a YAML taxonomy document over Default.
func Parse(data []byte) (*Taxonomy, error) {
	t := Default()
	var overlay Taxonomy
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, errs.Wrap(err, errs.CodeParse, "decode taxonomy yaml")
	}
	if len(overlay.Divisions) > 0 {
		t.Divisions = overlay.Divisions
	}
	mergeVocabulary(&t.Residential, overlay.Residential)
	mergeVocabulary(&t.Commercial, overlay.Commercial)
	for s, names := range overlay.Regions {
		t.Regions[s] = names
	}
	for k, v := range overlay.StockKeys {
		t.StockKeys[k] = v
	}
	for fuel, groups := range overlay.EULP {
		t.EULP[fuel] = groups
	}
	if len(overlay.EULPOtherTech) > 0 {
		t.EULPOtherTech = overlay.EULPOtherTech
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func mergeVocabulary(dst *ClassVocabulary, src ClassVocabulary) {
	if len(src.BuildingTypes) > 0 {
		dst.BuildingTypes = src.BuildingTypes
	}
	if len(src.Fuels) > 0 {
		dst.Fuels = src.Fuels
	}
	if len(src.EndUses) > 0 {
		dst.EndUses = src.EndUses
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func anyIn(keys, set []string) bool {
	for _, k := range keys {
		if contains(set, k) {
			return true
		}
	}
	return false
}

//Personal.AI order the ending
