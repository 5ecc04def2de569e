package extract

import (
	"strings"
	"time"
	"unicode"
)

// CanonicalDateLayout is the single output format for normalized dates.
const CanonicalDateLayout = "2006-01-02"

const minPlausibleYear = 1900

// Numeric date layouts after separator unification. Which list is tried
// first is a configured policy (day-first vs month-first); ambiguous inputs
// like 01/02/2020 resolve according to it rather than being auto-detected.
var (
	monthFirstLayouts = []string{"1/2/2006", "1/2/06"}
	dayFirstLayouts   = []string{"2/1/2006", "2/1/06"}

	// Unambiguous layouts tried after the numeric ones.
	extraLayouts = []string{
		"2006/1/2",
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"2 January 2006",
		"2 Jan 2006",
	}
)

// Normalizer canonicalizes raw matched substrings per field type. It never
// fails hard on malformed input: Normalize returns ok == false for values a
// pattern matched but normalization rejected.
type Normalizer struct {
	dayFirst bool
	now      func() time.Time
}

// NewNormalizer creates a normalizer. dayFirst selects day-first resolution
// for ambiguous numeric dates; the default callers should use is
// month-first.
func NewNormalizer(dayFirst bool) *Normalizer {
	return &Normalizer{
		dayFirst: dayFirst,
		now:      time.Now,
	}
}

// Normalize canonicalizes raw per the field's rules and reports whether the
// result is usable. Fields other than the built-in name and date fields use
// the generic identifier rule.
func (n *Normalizer) Normalize(field, raw string) (string, bool) {
	switch field {
	case FieldName:
		return n.normalizeName(raw)
	case FieldDateOfBirth:
		return n.normalizeDate(raw)
	default:
		return n.normalizeIdentifier(raw)
	}
}

// normalizeName trims and collapses whitespace and rejects values with no
// letters in them (empty or purely numeric captures).
func (n *Normalizer) normalizeName(raw string) (string, bool) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", false
	}
	if !strings.ContainsFunc(name, unicode.IsLetter) {
		return "", false
	}
	return name, true
}

// normalizeDate parses raw under the prioritized layout list and reformats
// it to the canonical ISO form. Dates outside [1900, current year] and
// strings no layout accepts are rejected.
func (n *Normalizer) normalizeDate(raw string) (string, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return "", false
	}

	// Unify numeric separators so one layout set covers -, . and /.
	numeric := strings.NewReplacer("-", "/", ".", "/").Replace(s)

	layouts := make([]string, 0, len(monthFirstLayouts)+len(dayFirstLayouts)+len(extraLayouts))
	if n.dayFirst {
		layouts = append(layouts, dayFirstLayouts...)
		layouts = append(layouts, monthFirstLayouts...)
	} else {
		layouts = append(layouts, monthFirstLayouts...)
		layouts = append(layouts, dayFirstLayouts...)
	}
	layouts = append(layouts, extraLayouts...)

	for _, layout := range layouts {
		candidate := numeric
		if strings.Contains(layout, "Jan") {
			candidate = s
		}
		t, err := time.Parse(layout, candidate)
		if err != nil {
			continue
		}
		if t.Year() < minPlausibleYear || t.Year() > n.now().Year() {
			continue
		}
		return t.Format(CanonicalDateLayout), true
	}
	return "", false
}

// normalizeIdentifier cleans generic identifier values such as insurance
// details: whitespace collapsed, only letters, digits, hyphens and spaces
// kept.
func (n *Normalizer) normalizeIdentifier(raw string) (string, bool) {
	collapsed := strings.Join(strings.Fields(raw), " ")
	var b strings.Builder
	for _, r := range collapsed {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == ' ':
			b.WriteRune(r)
		}
	}
	value := strings.TrimSpace(b.String())
	if value == "" {
		return "", false
	}
	return value, true
}
