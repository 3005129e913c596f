// Package prompt renders a validated briefing into the task prompt.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
)

// Template holds the operator-configurable parts of the prompt.
type Template struct {
	// Preamble is prepended verbatim, separated by a blank line.
	Preamble string `yaml:"preamble"`
}

// LoadTemplate reads a YAML template file.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt template %s: %w", path, err)
	}
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return Template{}, fmt.Errorf("parse prompt template: %w", err)
	}
	tpl.Preamble = strings.TrimSpace(tpl.Preamble)
	return tpl, nil
}

type Builder struct {
	tpl Template
}

func NewBuilder(tpl Template) *Builder {
	return &Builder{tpl: tpl}
}

// Build renders ext. It assumes validation already guaranteed the
// mandatory fields.
func (b *Builder) Build(ext extractor.Result) string {
	var sb strings.Builder
	if b.tpl.Preamble != "" {
		sb.WriteString(b.tpl.Preamble)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Erstelle eine Wettbewerbsanalyse für:\n\n")
	fmt.Fprintf(&sb, "**Unternehmen:** %s\n", extractor.Value(ext.Company))
	fmt.Fprintf(&sb, "**Standort:** %s\n", extractor.Value(ext.Location))
	fmt.Fprintf(&sb, "**Position:** %s", extractor.Value(ext.Position))

	if ext.ExtraContext != nil {
		sb.WriteString("\n\n**Zusätzlicher Kontext aus dem Erstgespräch:**\n")
		sb.WriteString(*ext.ExtraContext)
	}
	return sb.String()
}

// Build renders ext without a preamble.
func Build(ext extractor.Result) string {
	return NewBuilder(Template{}).Build(ext)
}
