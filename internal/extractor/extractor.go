// Package extractor pulls the mandatory briefing fields out of free text,
// rule-based where the shape allows it and through a language model otherwise.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MikeSquared-Agency/salesbot/internal/classifier"
	"github.com/MikeSquared-Agency/salesbot/internal/llm"
	"github.com/MikeSquared-Agency/salesbot/internal/taxonomy"
)

const defaultTimeout = 30 * time.Second

var structuredFields = []struct {
	field   Field
	pattern *regexp.Regexp
}{
	{FieldCompany, regexp.MustCompile(`(?i)\*\*\s*unternehmen\s*:\*\*\s*(.+)`)},
	{FieldLocation, regexp.MustCompile(`(?i)\*\*\s*standort\s*:\*\*\s*(.+)`)},
	{FieldPosition, regexp.MustCompile(`(?i)\*\*\s*position\s*:\*\*\s*(.+)`)},
}

var compiledSchema = jsonschema.MustCompileString("extraction.json", responseSchema)

type Extractor struct {
	llm     llm.Completer
	timeout time.Duration
	logger  *slog.Logger
}

// New returns an Extractor. A nil completer behaves like a provider without
// credentials. timeout bounds the single model call; zero means 30s.
func New(completer llm.Completer, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Extractor{llm: completer, timeout: timeout, logger: logger}
}

type modelResponse struct {
	Company      *string `json:"unternehmen"`
	Location     *string `json:"standort"`
	Position     *string `json:"position"`
	ExtraContext *string `json:"zusatzkontext"`
}

// Extract returns the fields found in text for the given mode. It never
// fails; problems on the model path are recorded in Errors and Failure.
func (e *Extractor) Extract(ctx context.Context, text string, mode classifier.Mode) *Result {
	switch mode {
	case classifier.ModeStructured:
		return extractStructured(text)
	case classifier.ModeMinimal:
		res := extractMinimal(text)
		if res.Complete() {
			return res
		}
		e.logger.Debug("minimal extraction incomplete, falling back to model")
		return e.extractWithModel(ctx, text, mode)
	default:
		return e.extractWithModel(ctx, text, mode)
	}
}

func extractStructured(text string) *Result {
	res := &Result{RawInput: text, Mode: classifier.ModeStructured}
	for _, sf := range structuredFields {
		m := sf.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			res.Set(sf.field, &v)
		}
	}
	if res.Position != nil {
		res.Position = resolveOrKeep(*res.Position)
	}
	return res
}

func extractMinimal(text string) *Result {
	res := &Result{RawInput: text, Mode: classifier.ModeMinimal}
	lines := classifier.Lines(text)
	if len(lines) >= 1 {
		res.Company = Ptr(lines[0])
	}
	if len(lines) >= 2 {
		res.Position = resolveOrKeep(lines[1])
	}
	if len(lines) >= 3 {
		res.Location = Ptr(lines[2])
	}
	return res
}

func (e *Extractor) extractWithModel(ctx context.Context, text string, mode classifier.Mode) *Result {
	res := &Result{RawInput: text, Mode: mode, UsedLanguageModel: true}

	if e.llm == nil {
		return res.fail(FailureNoCredential, errNoCredential)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.llm.Complete(ctx, systemPrompt, text, llm.Params{
		Temperature: modelTemperature,
		MaxTokens:   modelMaxTokens,
	})
	if errors.Is(err, llm.ErrNoCredential) {
		e.logger.Warn("model extraction skipped, no credential")
		return res.fail(FailureNoCredential, errNoCredential)
	}
	if err != nil {
		e.logger.Error("model extraction failed", "error", err, "elapsed", time.Since(start))
		return res.fail(FailureTransport, fmt.Sprintf(errTransport, err))
	}

	parsed, err := parseModelResponse(raw)
	if err != nil {
		e.logger.Error("failed to parse model response", "error", err, "raw", raw)
		return res.fail(FailureParse, fmt.Sprintf(errParse, err))
	}

	res.Company = nonEmpty(parsed.Company)
	res.Location = nonEmpty(parsed.Location)
	res.ExtraContext = nonEmpty(parsed.ExtraContext)
	if p := nonEmpty(parsed.Position); p != nil {
		res.Position = resolveOrKeep(*p)
	}

	e.logger.Info("model extraction complete",
		"mode", mode,
		"complete", res.Complete(),
		"elapsed", time.Since(start),
	)
	return res
}

func parseModelResponse(raw string) (*modelResponse, error) {
	body := stripCodeFence(raw)

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, err
	}

	var out modelResponse
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// resolveOrKeep returns the canonical position, or the raw term when the
// taxonomy has no mapping. Ambiguous terms are kept raw for the validator.
func resolveOrKeep(raw string) *string {
	if canonical, ok := taxonomy.Resolve(raw); ok {
		return &canonical
	}
	return &raw
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (r *Result) fail(f Failure, msg string) *Result {
	r.Company, r.Location, r.Position, r.ExtraContext = nil, nil, nil, nil
	r.Failure = f
	r.Errors = append(r.Errors, msg)
	return r
}
