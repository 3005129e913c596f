package extractor

const systemPrompt = `Du bist ein Extraktions-Assistent für ein Recruiting-Unternehmen.
Deine Aufgabe: Extrahiere aus dem folgenden Text exakt drei Felder:

1. **unternehmen**: Vollständiger Name inkl. Rechtsform (z.B. "DRK Kreisverband Lausitz e.V.")
2. **standort**: Stadt/Region + Bundesland (z.B. "Lausitz, Brandenburg")
3. **position**: Berufsbezeichnung der gesuchten Fachkraft (z.B. "Heilerziehungspfleger")

Zusätzlich extrahiere:
4. **zusatzkontext**: Alle weiteren relevanten Informationen (Pain Points, Mitarbeiterzahlen, etc.)
   Falls keine vorhanden, setze auf null.

Antworte ausschließlich im folgenden JSON-Format, ohne Markdown-Codeblöcke:
{"unternehmen": "...", "standort": "...", "position": "...", "zusatzkontext": "..."}

Wenn ein Feld nicht erkennbar ist, setze es auf null.
Verwende für die Position immer die vollständige Berufsbezeichnung (nicht die Abkürzung).`

// responseSchema constrains the model reply. Unknown keys are tolerated,
// missing keys read as null.
const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "unternehmen":   {"type": ["string", "null"]},
    "standort":      {"type": ["string", "null"]},
    "position":      {"type": ["string", "null"]},
    "zusatzkontext": {"type": ["string", "null"]}
  }
}`

const (
	modelTemperature = 0.0
	modelMaxTokens   = 500
)

// Diagnostic messages recorded in Result.Errors.
const (
	errNoCredential = "LLM API Key nicht konfiguriert, LLM-Extraktion nicht möglich"
	errParse        = "LLM-Antwort konnte nicht geparst werden: %v"
	errTransport    = "LLM-Extraktion fehlgeschlagen: %v"
)
