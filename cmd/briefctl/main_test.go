package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PROMPT_TEMPLATE_FILE", "")
	modeFlag, choiceFlag, templateFlag, provider = "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestClassify(t *testing.T) {
	out, err := run(t, "Acme GmbH\nHEP\nBerlin\n", "classify")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var got classifyOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.Mode != "minimal" || got.Lines != 3 || len(got.Indicators) != 0 {
		t.Errorf("unexpected output %+v", got)
	}
}

func TestClassify_EmptyStdin(t *testing.T) {
	if _, err := run(t, "  \n", "classify"); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestExtract_ArgsAreLines(t *testing.T) {
	out, err := run(t, "", "extract", "Acme GmbH", "HEP", "Berlin")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var got map[string]any
	json.Unmarshal([]byte(out), &got)
	if got["company"] != "Acme GmbH" || got["position"] != "Heilerziehungspfleger" || got["location"] != "Berlin" {
		t.Errorf("unexpected extraction %v", got)
	}
	if got["used_language_model"] != false {
		t.Errorf("minimal briefing should not use the model: %v", got)
	}
}

func TestExtract_UnknownMode(t *testing.T) {
	if _, err := run(t, "Acme", "extract", "--mode", "fancy"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestValidate_Choice(t *testing.T) {
	out, err := run(t, "Acme GmbH\nPfleger\nBerlin", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var got map[string]any
	json.Unmarshal([]byte(out), &got)
	if got["is_valid"] != false {
		t.Fatalf("ambiguous position should be invalid: %s", out)
	}

	out, err = run(t, "Acme GmbH\nPfleger\nBerlin", "validate", "--choice", "2")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	got = nil
	json.Unmarshal([]byte(out), &got)
	ext, _ := got["extraction"].(map[string]any)
	if got["is_valid"] != true || ext["position"] != "Heilerziehungspfleger" {
		t.Errorf("unexpected validation %s", out)
	}
}

func TestPrompt(t *testing.T) {
	tpl := filepath.Join(t.TempDir(), "prompt.yaml")
	os.WriteFile(tpl, []byte("preamble: \"Analysiere den Wettbewerb.\"\n"), 0o644)

	out, err := run(t, "Acme GmbH\nPFK\nHamburg", "prompt", "--template", tpl)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	var got promptOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(got.Prompt, "Analysiere den Wettbewerb.") {
		t.Errorf("template preamble missing: %q", got.Prompt)
	}
	if !strings.Contains(got.Prompt, "Acme GmbH") || !strings.Contains(got.Prompt, "Hamburg") {
		t.Errorf("prompt lacks briefing fields: %q", got.Prompt)
	}
}

func TestPrompt_Incomplete(t *testing.T) {
	out, err := run(t, "Acme GmbH", "prompt")
	if err == nil {
		t.Fatal("expected error for incomplete briefing")
	}
	var got promptOutput
	json.Unmarshal([]byte(out), &got)
	if got.Prompt != "" || got.Validation.Valid {
		t.Errorf("unexpected output %s", out)
	}
}
