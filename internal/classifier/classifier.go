// Package classifier decides which extraction strategy a briefing needs.
package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode is the recognized shape of a briefing.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeMinimal    Mode = "minimal"
	ModeRich       Mode = "rich"
)

// ParseMode converts a textual mode (e.g. from a CLI flag) into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStructured:
		return ModeStructured, nil
	case ModeMinimal:
		return ModeMinimal, nil
	case ModeRich:
		return ModeRich, nil
	}
	return "", fmt.Errorf("unknown input mode %q", s)
}

const (
	richThreshold  = 3
	minimalMaxLine = 5
	richMinLine    = 8
)

// Three bold-labeled fields in fixed order, possibly spread over several lines.
var structuredPattern = regexp.MustCompile(`(?is)\*\*\s*unternehmen\s*:\*\*.*\*\*\s*standort\s*:\*\*.*\*\*\s*position\s*:\*\*`)

// Staffing and recruiting vocabulary typical of first-call notes.
var indicators = []*regexp.Regexp{
	regexp.MustCompile(`rentenwelle`),
	regexp.MustCompile(`ghosting`),
	regexp.MustCompile(`pain\s*point`),
	regexp.MustCompile(`krankenstand`),
	regexp.MustCompile(`fachkräftemangel`),
	regexp.MustCompile(`agentur`),
	regexp.MustCompile(`arbeitnehmerüberlassung`),
	regexp.MustCompile(`leiharbeit`),
	regexp.MustCompile(`schwäche`),
	regexp.MustCompile(`stärke`),
	regexp.MustCompile(`risik`),
	regexp.MustCompile(`einrichtung`),
	regexp.MustCompile(`mitarbeiter`),
	regexp.MustCompile(`bewerber`),
	regexp.MustCompile(`rekrutierung`),
	regexp.MustCompile(`schichtmodell`),
	regexp.MustCompile(`wechsel`),
	regexp.MustCompile(`müssen wachsen`),
	regexp.MustCompile(`in rente`),
	regexp.MustCompile(`eingestellt`),
	regexp.MustCompile(`unqualifiziert`),
}

// Classify returns the input mode for text. First match wins:
// structured markup, then rich vocabulary, then line-count heuristics.
func Classify(text string) Mode {
	if structuredPattern.MatchString(text) {
		return ModeStructured
	}

	score := len(Indicators(text))
	if score >= richThreshold {
		return ModeRich
	}

	lines := Lines(text)
	if len(lines) <= minimalMaxLine && score == 0 {
		return ModeMinimal
	}
	if len(lines) > richMinLine {
		return ModeRich
	}
	return ModeMinimal
}

// Indicators returns the distinct indicator patterns found in text.
func Indicators(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, re := range indicators {
		if re.MatchString(lower) {
			matched = append(matched, re.String())
		}
	}
	return matched
}

// Line boundaries: CRLF, lone CR or LF, and the Unicode line and paragraph
// separators, including form feed, vertical tab and NEL.
var lineBreak = regexp.MustCompile(`\r\n|[\n\v\f\r\x{1c}\x{1d}\x{1e}\x{85}\x{2028}\x{2029}]`)

// Lines splits text into trimmed, non-blank lines.
func Lines(text string) []string {
	var out []string
	for _, line := range lineBreak.Split(text, -1) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
