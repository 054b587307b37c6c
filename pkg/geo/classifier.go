package geo

import (
	"strings"
	"unicode/utf8"
)

// Location is a resolved (city, district) pair.
type Location struct {
	City     string
	District string
}

// Input carries the raw fields a position offers for classification.
type Input struct {
	Org      string
	City     string
	District string
}

func (in Input) fields() []string {
	return []string{in.Org, in.City, in.District}
}

// Rule is one step of the layered matcher. Match reports false to defer to the next rule.
type Rule struct {
	Name  string
	Match func(Input) (Location, bool)
}

// Classifier runs its rules in order and takes the first match. It always yields a
// location; inputs nothing recognises fall through to the raw hints or 未知.
type Classifier struct {
	rules []Rule
}

// New returns a classifier with the default rule chain.
func New() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// NewWithRules builds a classifier around a custom chain.
func NewWithRules(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultRules is the production chain, highest priority first.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "provincial", Match: matchProvincial},
		{Name: "known_city", Match: matchKnownCity},
		{Name: "short_city", Match: matchShortCity},
		{Name: "district", Match: matchDistrict},
		{Name: "municipal", Match: matchMunicipal},
		{Name: "alias", Match: matchAlias},
	}
}

// Classify resolves the location for the given organization and hints.
func (c *Classifier) Classify(org, rawCity, rawDistrict string) Location {
	loc, _ := c.ClassifyRule(org, rawCity, rawDistrict)
	return loc
}

// ClassifyRule also returns the name of the rule that matched, "fallback" when none did.
func (c *Classifier) ClassifyRule(org, rawCity, rawDistrict string) (Location, string) {
	in := Input{
		Org:      clean(org),
		City:     clean(rawCity),
		District: clean(rawDistrict),
	}
	for _, r := range c.rules {
		if loc, ok := r.Match(in); ok {
			return loc, r.Name
		}
	}
	return fallback(in), "fallback"
}

var defaultClassifier = New()

// Classify uses the default rule chain.
func Classify(org, rawCity, rawDistrict string) Location {
	return defaultClassifier.Classify(org, rawCity, rawDistrict)
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

func fallback(in Input) Location {
	loc := Location{City: in.City, District: in.District}
	if loc.City == "" {
		loc.City = Unknown
	}
	if loc.District == "" {
		loc.District = Other
	}
	return loc
}

var provincialPrefixes = []string{"省", "湖北省", "中共湖北省", "中国共产党湖北省"}

func matchProvincial(in Input) (Location, bool) {
	if in.City == Province {
		return Location{Province, Other}, true
	}
	for _, p := range provincialPrefixes {
		if strings.HasPrefix(in.Org, p) {
			return Location{Province, Other}, true
		}
	}
	return Location{}, false
}

func matchKnownCity(in Input) (Location, bool) {
	if !IsCity(in.City) {
		return Location{}, false
	}
	if IsDistrict(in.City, in.District) {
		return Location{in.City, in.District}, true
	}
	return Location{in.City, scanDistricts(in.City, in.Org, in.District)}, true
}

func matchShortCity(in Input) (Location, bool) {
	for _, c := range taxonomy {
		short := ShortName(c.Name)
		if strings.Contains(in.City, short) || strings.Contains(in.Org, short) {
			return Location{c.Name, scanDistricts(c.Name, in.fields()...)}, true
		}
	}
	return Location{}, false
}

// stripped district forms that are also everyday words in agency names (市公安局)
var ambiguousShortDistricts = map[string]bool{
	"公安": true,
}

// matchDistrict scans every (city, district) pair, full names first, then the stripped
// forms. Stripped forms shorter than two runes (房, 随) match too much and are skipped,
// as are the ambiguous ones above.
func matchDistrict(in Input) (Location, bool) {
	fields := in.fields()
	for _, c := range taxonomy {
		for _, d := range c.Districts {
			if containsAny(fields, d) {
				return Location{c.Name, d}, true
			}
		}
	}
	for _, c := range taxonomy {
		for _, d := range c.Districts {
			short := shortDistrict(d)
			if short == d || utf8.RuneCountInString(short) < 2 || ambiguousShortDistricts[short] {
				continue
			}
			if containsAny(fields, short) {
				return Location{c.Name, d}, true
			}
		}
	}
	return Location{}, false
}

func matchMunicipal(in Input) (Location, bool) {
	if strings.HasPrefix(in.Org, "市") || strings.HasPrefix(in.City, "市") {
		return Location{Capital, Municipal}, true
	}
	return Location{}, false
}

// legacy and informal names that no taxonomy entry contains
var aliases = []struct {
	token string
	city  string
}{
	{"襄樊", "襄阳市"},
	{"郧县", "十堰市"},
	{"东湖高新", "武汉市"},
	{"东湖新技术", "武汉市"},
	{"沌口", "武汉市"},
}

func matchAlias(in Input) (Location, bool) {
	fields := in.fields()
	for _, a := range aliases {
		if containsAny(fields, a.token) {
			return Location{a.city, scanDistricts(a.city, fields...)}, true
		}
	}
	return Location{}, false
}

// scanDistricts returns the first district of city contained in any field, or 其他.
func scanDistricts(city string, fields ...string) string {
	for _, d := range taxonomy[cityIndex[city]].Districts {
		if containsAny(fields, d) {
			return d
		}
	}
	return Other
}

func containsAny(fields []string, token string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(f, token) {
			return true
		}
	}
	return false
}
