// Package validator checks extracted briefings for completeness and builds
// the reply sent back to the requester.
package validator

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/salesbot/internal/classifier"
	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
	"github.com/MikeSquared-Agency/salesbot/internal/taxonomy"
)

const (
	previewLimit      = 120
	fallbackAmbiguity = "Pfleger"
)

var fieldQuestions = map[extractor.Field]string{
	extractor.FieldCompany:  "Unternehmensname",
	extractor.FieldLocation: "Standort (Stadt/Region)",
	extractor.FieldPosition: "Position / Berufsbezeichnung (z.B. HEP, PFK, Erzieher)",
}

// Validation is the verdict on one extraction.
//
// Extraction is a copy of the validated input with ambiguous positions
// cleared. Re-validate after changing it; Reply is not recomputed.
type Validation struct {
	Valid      bool                                  `json:"is_valid"`
	Missing    []extractor.Field                     `json:"missing_fields"`
	Ambiguous  map[extractor.Field][]taxonomy.Option `json:"ambiguous_fields"`
	Reply      string                                `json:"reply_message"`
	Extraction extractor.Result                      `json:"extraction"`
}

// Validate checks the mandatory fields of ext. Blank values count as missing.
// The argument is not modified.
func Validate(ext extractor.Result) Validation {
	v := Validation{
		Ambiguous:  map[extractor.Field][]taxonomy.Option{},
		Extraction: ext.Clone(),
	}
	out := &v.Extraction
	for _, f := range extractor.Fields {
		if p := out.Get(f); p != nil && strings.TrimSpace(*p) == "" {
			out.Set(f, nil)
		}
	}

	if out.Company == nil {
		v.Missing = append(v.Missing, extractor.FieldCompany)
	}
	if out.Location == nil {
		v.Missing = append(v.Missing, extractor.FieldLocation)
	}
	if out.Position == nil {
		v.Missing = append(v.Missing, extractor.FieldPosition)
	} else if taxonomy.IsAmbiguous(*out.Position) {
		v.Ambiguous[extractor.FieldPosition] = taxonomy.Options()
		out.Position = nil
	}

	if len(v.Missing) > 0 || len(v.Ambiguous) > 0 {
		v.Reply = buildReprompt(v)
		return v
	}

	v.Valid = true
	v.Reply = buildConfirmation(v.Extraction)
	return v
}

// ApplyChoice returns a copy of ext with the chosen option applied. Unknown
// keys and fields other than position leave the copy unchanged.
func ApplyChoice(ext extractor.Result, field extractor.Field, key string) extractor.Result {
	out := ext.Clone()
	if field != extractor.FieldPosition {
		return out
	}
	if opt, ok := taxonomy.LookupOption(key); ok {
		out.Position = extractor.Ptr(opt.Value)
	}
	return out
}

// IsChoice reports whether text is a valid disambiguation key.
func IsChoice(text string) bool {
	_, ok := taxonomy.LookupOption(text)
	return ok
}

func buildReprompt(v Validation) string {
	var parts []string

	if v.Extraction.Company != nil {
		parts = append(parts, "Erkannt: "+*v.Extraction.Company)
	}

	if opts, ok := v.Ambiguous[extractor.FieldPosition]; ok {
		parts = append(parts, "\n\""+ambiguousTerm(v.Extraction.RawInput)+"\" ist mehrdeutig. Meinst du:")
		for _, opt := range opts {
			parts = append(parts, fmt.Sprintf("  %s. %s", opt.Key, opt.Label))
		}
	}

	for _, f := range v.Missing {
		if _, covered := v.Ambiguous[f]; covered {
			continue
		}
		parts = append(parts, fmt.Sprintf("\nWelche(r) %s?", fieldQuestions[f]))
	}

	return strings.Join(parts, "\n")
}

func ambiguousTerm(raw string) string {
	for _, line := range classifier.Lines(raw) {
		if taxonomy.IsAmbiguous(line) {
			return line
		}
	}
	return fallbackAmbiguity
}

func buildConfirmation(ext extractor.Result) string {
	lines := []string{
		"Unternehmen: " + extractor.Value(ext.Company),
		"Position:    " + extractor.Value(ext.Position),
		"Standort:    " + extractor.Value(ext.Location),
	}
	if ext.ExtraContext != nil {
		lines = append(lines, "\nZusatzkontext: "+preview(*ext.ExtraContext))
	}
	lines = append(lines, "\nWettbewerbsanalyse wird erstellt...")
	return strings.Join(lines, "\n")
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit]) + "..."
}
