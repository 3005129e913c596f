// Package taxonomy normalizes free-text job titles to canonical position names.
package taxonomy

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Option is one numbered choice offered when a position term is ambiguous.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

var positions = map[string]string{
	// Heilerziehungspfleger
	"hep":                      "Heilerziehungspfleger",
	"heilerziehungspfleger":    "Heilerziehungspfleger",
	"heilerziehungspflegerin":  "Heilerziehungspfleger",
	"heilerziehungspfleger/in": "Heilerziehungspfleger",
	// Pflegefachkraft
	"pfk":                             "Pflegefachkraft",
	"pflegefachkraft":                 "Pflegefachkraft",
	"pflegefachfrau":                  "Pflegefachkraft",
	"pflegefachmann":                  "Pflegefachkraft",
	"exam. pflegekraft":               "Pflegefachkraft",
	"examinierte pflegekraft":         "Pflegefachkraft",
	"krankenschwester":                "Pflegefachkraft",
	"krankenpfleger":                  "Pflegefachkraft",
	"gesundheits- und krankenpfleger": "Pflegefachkraft",
	// Erzieher
	"erzieher":    "Erzieher",
	"erzieherin":  "Erzieher",
	"erzieher/in": "Erzieher",
	// Altenpfleger
	"ap":              "Altenpfleger",
	"altenpfleger":    "Altenpfleger",
	"altenpflegerin":  "Altenpfleger",
	"altenpfleger/in": "Altenpfleger",
	// OTA
	"ota":                              "OTA",
	"op-pflege":                        "OTA",
	"op-pflegekraft":                   "OTA",
	"operationstechnischer assistent":  "OTA",
	"operationstechnische assistentin": "OTA",
	// Sozialarbeiter
	"sozialarbeiter":    "Sozialarbeiter",
	"sozialarbeiterin":  "Sozialarbeiter",
	"sozialpädagoge":    "Sozialarbeiter",
	"sozialpädagogin":   "Sozialarbeiter",
	"sozialarbeiter/in": "Sozialarbeiter",
}

// Terms that name more than one plausible position and need an explicit choice.
var ambiguous = map[string]struct{}{
	"pfleger":     {},
	"pflegerin":   {},
	"pflege":      {},
	"pflegekraft": {},
	"fachkraft":   {},
}

var options = []Option{
	{Key: "1", Label: "Pflegefachkraft (PFK)", Value: "Pflegefachkraft"},
	{Key: "2", Label: "Heilerziehungspfleger (HEP)", Value: "Heilerziehungspfleger"},
	{Key: "3", Label: "Altenpfleger/in", Value: "Altenpfleger"},
	{Key: "4", Label: "Pflegehelfer / Pflegeassistent", Value: "Pflegehelfer"},
}

// Normalize trims, composes (NFC) and lower-cases a raw term so that
// decomposed umlauts from some chat clients match the table keys.
func Normalize(raw string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(raw)))
}

// Resolve maps a raw position term to its canonical name.
//
// The second return value is false both for unknown terms and for known
// ambiguous terms. Callers that need to tell the two apart use IsAmbiguous.
func Resolve(raw string) (string, bool) {
	term := Normalize(raw)
	if _, ok := ambiguous[term]; ok {
		return "", false
	}
	canonical, ok := positions[term]
	return canonical, ok
}

// IsAmbiguous reports whether raw is a known ambiguous position term.
func IsAmbiguous(raw string) bool {
	_, ok := ambiguous[Normalize(raw)]
	return ok
}

// Options returns the fixed disambiguation choices in display order.
func Options() []Option {
	return slices.Clone(options)
}

// LookupOption returns the disambiguation option with the given key.
func LookupOption(key string) (Option, bool) {
	key = strings.TrimSpace(key)
	for _, opt := range options {
		if opt.Key == key {
			return opt, true
		}
	}
	return Option{}, false
}

// Canonical returns every distinct canonical position name, sorted.
func Canonical() []string {
	seen := make(map[string]struct{}, len(positions))
	out := make([]string, 0, 8)
	for _, v := range positions {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
