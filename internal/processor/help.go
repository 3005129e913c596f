package processor

import (
	"strings"

	"github.com/MikeSquared-Agency/salesbot/internal/store"
)

const helpTemplate = `{b}SalesBot – Wettbewerbsanalyse{b}

Schicke mir ein Briefing in einem der folgenden Formate:

{b}Kurzformat:{b}
` + "```" + `
DRK Kreisverband Lausitz e.V.
HEP
Lausitz
` + "```" + `

{b}Ausführlich (mit Pain Points):{b}
` + "```" + `
DRK Kreisverband Lausitz e.V.
2-3 HEPs, Lausitz
Rentenwelle, Agenturversagen, Ghosting...
` + "```" + `

{b}Strukturiert:{b}
` + "```" + `
{b}Unternehmen:{b} Name
{b}Standort:{b} Stadt
{b}Position:{b} Berufsbezeichnung
` + "```" + `

Ich extrahiere die Daten, erstelle einen Manus-Auftrag und schicke dir die fertige Präsentation.`

var helpCommands = map[string]bool{"hilfe": true, "help": true, "?": true}

func isHelp(text string) bool {
	return helpCommands[strings.ToLower(strings.TrimSpace(text))]
}

// HelpText returns the usage message in the platform's bold syntax.
func HelpText(platform store.Platform) string {
	return strings.ReplaceAll(helpTemplate, "{b}", boldMarker(platform))
}

// Bold wraps s in the platform's bold syntax.
func Bold(platform store.Platform, s string) string {
	m := boldMarker(platform)
	return m + s + m
}

func boldMarker(platform store.Platform) string {
	if platform == store.PlatformSlack {
		return "*"
	}
	return "**"
}
