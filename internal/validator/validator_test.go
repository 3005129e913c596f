package validator

import (
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/salesbot/internal/classifier"
	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
)

func result(company, location, position string, raw string) extractor.Result {
	r := extractor.Result{RawInput: raw, Mode: classifier.ModeMinimal}
	if company != "" {
		r.Company = extractor.Ptr(company)
	}
	if location != "" {
		r.Location = extractor.Ptr(location)
	}
	if position != "" {
		r.Position = extractor.Ptr(position)
	}
	return r
}

func TestValidate_Valid(t *testing.T) {
	v := Validate(result("Acme Care GmbH", "Berlin", "Pflegefachkraft", ""))

	if !v.Valid {
		t.Fatalf("expected valid, got missing=%v ambiguous=%v", v.Missing, v.Ambiguous)
	}
	want := "Unternehmen: Acme Care GmbH\nPosition:    Pflegefachkraft\nStandort:    Berlin\n\nWettbewerbsanalyse wird erstellt..."
	if v.Reply != want {
		t.Errorf("unexpected confirmation:\n%s", v.Reply)
	}
}

func TestValidate_UnknownPositionIsValid(t *testing.T) {
	v := Validate(result("Acme", "Berlin", "Hausmeister", ""))
	if !v.Valid {
		t.Error("unresolved but unambiguous positions pass validation")
	}
}

func TestValidate_ExtraContextPreview(t *testing.T) {
	short := result("Acme", "Berlin", "OTA", "")
	short.ExtraContext = extractor.Ptr("Rentenwelle")
	v := Validate(short)
	if !strings.Contains(v.Reply, "\n\nZusatzkontext: Rentenwelle\n") {
		t.Errorf("expected full short context, got:\n%s", v.Reply)
	}

	long := result("Acme", "Berlin", "OTA", "")
	long.ExtraContext = extractor.Ptr(strings.Repeat("ä", 130))
	v = Validate(long)
	wantPreview := "Zusatzkontext: " + strings.Repeat("ä", 120) + "...\n"
	if !strings.Contains(v.Reply, wantPreview) {
		t.Errorf("expected 120-rune preview with ellipsis, got:\n%s", v.Reply)
	}

	exact := result("Acme", "Berlin", "OTA", "")
	exact.ExtraContext = extractor.Ptr(strings.Repeat("x", 120))
	v = Validate(exact)
	if strings.Contains(v.Reply, "...\n") {
		t.Error("no ellipsis expected at exactly 120 runes")
	}
}

func TestValidate_Missing(t *testing.T) {
	tests := []struct {
		name    string
		ext     extractor.Result
		missing []extractor.Field
	}{
		{"all", result("", "", "", ""), []extractor.Field{extractor.FieldCompany, extractor.FieldLocation, extractor.FieldPosition}},
		{"location", result("Acme", "", "PFK", ""), []extractor.Field{extractor.FieldLocation}},
		{"company and position", result("", "Berlin", "", ""), []extractor.Field{extractor.FieldCompany, extractor.FieldPosition}},
		{"empty company", extractor.Result{Company: extractor.Ptr(""), Location: extractor.Ptr("Berlin"), Position: extractor.Ptr("Erzieher")}, []extractor.Field{extractor.FieldCompany}},
		{"blank company and location", extractor.Result{Company: extractor.Ptr(""), Location: extractor.Ptr("  "), Position: extractor.Ptr("Erzieher")}, []extractor.Field{extractor.FieldCompany, extractor.FieldLocation}},
		{"blank position", extractor.Result{Company: extractor.Ptr("Acme"), Location: extractor.Ptr("Berlin"), Position: extractor.Ptr("\t")}, []extractor.Field{extractor.FieldPosition}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.ext)
			if v.Valid {
				t.Fatal("expected invalid")
			}
			if len(v.Missing) != len(tt.missing) {
				t.Fatalf("missing = %v, want %v", v.Missing, tt.missing)
			}
			for i := range tt.missing {
				if v.Missing[i] != tt.missing[i] {
					t.Errorf("missing[%d] = %q, want %q", i, v.Missing[i], tt.missing[i])
				}
			}
		})
	}
}

func TestValidate_MissingReprompt(t *testing.T) {
	v := Validate(result("Acme Care GmbH", "", "", ""))
	want := "Erkannt: Acme Care GmbH\n" +
		"\nWelche(r) Standort (Stadt/Region)?\n" +
		"\nWelche(r) Position / Berufsbezeichnung (z.B. HEP, PFK, Erzieher)?"
	if v.Reply != want {
		t.Errorf("unexpected reprompt:\n%q\nwant:\n%q", v.Reply, want)
	}

	v = Validate(result("", "", "", ""))
	if strings.Contains(v.Reply, "Erkannt") {
		t.Error("no echo expected without company")
	}
	if !strings.HasPrefix(v.Reply, "\nWelche(r) Unternehmensname?") {
		t.Errorf("unexpected reprompt start %q", v.Reply)
	}
}

func TestValidate_BlankCompanyNotEchoed(t *testing.T) {
	in := extractor.Result{Company: extractor.Ptr("  "), Location: extractor.Ptr("Berlin"), Position: extractor.Ptr("PFK")}
	v := Validate(in)
	if v.Valid {
		t.Fatal("expected invalid")
	}
	if strings.Contains(v.Reply, "Erkannt") {
		t.Errorf("blank company must not be echoed: %q", v.Reply)
	}
	if v.Extraction.Company != nil {
		t.Errorf("expected blank company cleared, got %q", *v.Extraction.Company)
	}
	if extractor.Value(in.Company) != "  " {
		t.Error("input extraction must not be modified")
	}
}

func TestValidate_Ambiguous(t *testing.T) {
	in := result("Acme Care GmbH", "Berlin", "Pfleger", "Acme Care GmbH\nPfleger\nBerlin")
	v := Validate(in)

	if v.Valid {
		t.Fatal("expected invalid for ambiguous position")
	}
	if v.Extraction.Position != nil {
		t.Errorf("expected position cleared, got %q", *v.Extraction.Position)
	}
	if extractor.Value(in.Position) != "Pfleger" {
		t.Error("input extraction must not be modified")
	}
	if len(v.Missing) != 0 {
		t.Errorf("ambiguous position is not missing, got %v", v.Missing)
	}

	opts := v.Ambiguous[extractor.FieldPosition]
	if len(opts) != 4 {
		t.Fatalf("expected 4 options, got %d", len(opts))
	}
	for i, key := range []string{"1", "2", "3", "4"} {
		if opts[i].Key != key {
			t.Errorf("option %d key = %q, want %q", i, opts[i].Key, key)
		}
	}

	want := "Erkannt: Acme Care GmbH\n" +
		"\n\"Pfleger\" ist mehrdeutig. Meinst du:\n" +
		"  1. Pflegefachkraft (PFK)\n" +
		"  2. Heilerziehungspfleger (HEP)\n" +
		"  3. Altenpfleger/in\n" +
		"  4. Pflegehelfer / Pflegeassistent"
	if v.Reply != want {
		t.Errorf("unexpected reprompt:\n%q\nwant:\n%q", v.Reply, want)
	}
}

func TestValidate_AmbiguousTermFallback(t *testing.T) {
	v := Validate(result("Acme", "Berlin", "Fachkraft", "Wir suchen eine Fachkraft in Berlin"))
	if !strings.Contains(v.Reply, "\"Pfleger\" ist mehrdeutig") {
		t.Errorf("expected fallback term, got:\n%s", v.Reply)
	}

	v = Validate(result("Acme", "Berlin", "pflegekraft", "Acme\n  Pflegekraft  \nBerlin"))
	if !strings.Contains(v.Reply, "\"Pflegekraft\" ist mehrdeutig") {
		t.Errorf("expected term from input line, got:\n%s", v.Reply)
	}
}

func TestApplyChoice(t *testing.T) {
	v := Validate(result("Acme", "Berlin", "Pfleger", "Acme\nPfleger\nBerlin"))

	tests := []struct {
		key  string
		want string
	}{
		{"1", "Pflegefachkraft"},
		{"2", "Heilerziehungspfleger"},
		{"3", "Altenpfleger"},
		{"4", "Pflegehelfer"},
	}
	for _, tt := range tests {
		got := ApplyChoice(v.Extraction, extractor.FieldPosition, tt.key)
		if extractor.Value(got.Position) != tt.want {
			t.Errorf("key %s: position = %q, want %q", tt.key, extractor.Value(got.Position), tt.want)
		}
		if !Validate(got).Valid {
			t.Errorf("key %s: expected valid after choice", tt.key)
		}
	}
}

func TestApplyChoice_NoOp(t *testing.T) {
	ext := result("Acme", "Berlin", "", "")

	if got := ApplyChoice(ext, extractor.FieldPosition, "7"); got.Position != nil {
		t.Errorf("unknown key must not change position, got %q", *got.Position)
	}
	if got := ApplyChoice(ext, extractor.FieldCompany, "1"); extractor.Value(got.Company) != "Acme" || got.Position != nil {
		t.Error("non-position field must be left unchanged")
	}
}

func TestIsChoice(t *testing.T) {
	if !IsChoice(" 3 ") {
		t.Error("expected 3 to be a choice")
	}
	if IsChoice("Pflegefachkraft") {
		t.Error("free text is not a choice")
	}
}
