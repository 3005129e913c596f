package extractor

import (
	"slices"

	"github.com/MikeSquared-Agency/salesbot/internal/classifier"
)

// Field identifies one of the mandatory briefing fields.
type Field string

const (
	FieldCompany  Field = "company"
	FieldLocation Field = "location"
	FieldPosition Field = "position"
)

// Fields lists the mandatory fields in the order they are checked and asked for.
var Fields = []Field{FieldCompany, FieldLocation, FieldPosition}

// Failure is the reason the language-model path produced no fields.
type Failure string

const (
	FailureNone         Failure = ""
	FailureNoCredential Failure = "no_credential"
	FailureParse        Failure = "parse"
	FailureTransport    Failure = "transport"
)

// Result is the outcome of extracting one briefing. Nil fields were not found.
type Result struct {
	Company           *string         `json:"company"`
	Location          *string         `json:"location"`
	Position          *string         `json:"position"`
	ExtraContext      *string         `json:"extra_context"`
	RawInput          string          `json:"raw_input"`
	Mode              classifier.Mode `json:"input_mode"`
	UsedLanguageModel bool            `json:"used_language_model"`
	Errors            []string        `json:"errors,omitempty"`
	Failure           Failure         `json:"failure,omitempty"`
}

// Get returns the value of a mandatory field.
func (r *Result) Get(f Field) *string {
	switch f {
	case FieldCompany:
		return r.Company
	case FieldLocation:
		return r.Location
	case FieldPosition:
		return r.Position
	}
	return nil
}

// Set overwrites a mandatory field.
func (r *Result) Set(f Field, v *string) {
	switch f {
	case FieldCompany:
		r.Company = v
	case FieldLocation:
		r.Location = v
	case FieldPosition:
		r.Position = v
	}
}

// Complete reports whether all mandatory fields are present.
func (r *Result) Complete() bool {
	return r.Company != nil && r.Location != nil && r.Position != nil
}

// Clone returns a deep copy so callers can modify it without aliasing.
func (r Result) Clone() Result {
	out := r
	out.Company = clonePtr(r.Company)
	out.Location = clonePtr(r.Location)
	out.Position = clonePtr(r.Position)
	out.ExtraContext = clonePtr(r.ExtraContext)
	out.Errors = slices.Clone(r.Errors)
	return out
}

// Ptr returns a pointer to s.
func Ptr(s string) *string {
	return &s
}

// Value dereferences p, returning "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
