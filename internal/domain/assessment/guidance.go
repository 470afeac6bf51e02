package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/yanqian/mindcheck/pkg/metrics"
)

// GenerationRequest is sent to the external text generator.
type GenerationRequest struct {
	System      string
	Prompt      string
	Schema      map[string]any
	Temperature float32
	MaxTokens   int
}

// Generation is the raw text returned by a generator.
type Generation struct {
	Text  string
	Usage metrics.TokenUsage
	Model string
}

// TextGenerator produces text for a prompt. Output is expected, not
// guaranteed, to be JSON matching the requested schema.
type TextGenerator interface {
	GenerateText(ctx context.Context, req GenerationRequest) (Generation, error)
}

// GuidanceRequest carries what the generator needs to tailor guidance.
type GuidanceRequest struct {
	State    SeverityState
	Scores   Scores
	Language Language
	Geo      *GeoPoint
}

// GuidanceConfig tunes the LLM call.
type GuidanceConfig struct {
	Timeout      time.Duration
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// GuidanceGenerator asks the text generator for bilingual guidance and
// substitutes the static fallback table on any failure.
type GuidanceGenerator struct {
	cfg       GuidanceConfig
	generator TextGenerator
	logger    *slog.Logger
}

// NewGuidanceGenerator constructs the guidance component. A nil generator
// always yields fallback guidance.
func NewGuidanceGenerator(cfg GuidanceConfig, generator TextGenerator, logger *slog.Logger) *GuidanceGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuidanceGenerator{
		cfg:       cfg,
		generator: generator,
		logger:    logger.With("component", "assessment.GuidanceGenerator"),
	}
}

// Generate never fails: generation and parse errors are logged and the
// fallback bundle is returned instead.
func (g *GuidanceGenerator) Generate(ctx context.Context, req GuidanceRequest) GuidanceBundle {
	bundle, err := g.fromGenerator(ctx, req)
	if err != nil {
		g.logger.Warn("guidance generated", "source", "fallback", "state", int(req.State), "error", err)
		return FallbackGuidance(req.State, req.Geo != nil)
	}
	g.logger.Info("guidance generated", "source", "llm", "state", int(req.State))
	return bundle
}

func (g *GuidanceGenerator) fromGenerator(ctx context.Context, req GuidanceRequest) (GuidanceBundle, error) {
	if g.generator == nil {
		return GuidanceBundle{}, &GenerationError{Err: errors.New("no text generator configured")}
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.generator.GenerateText(ctx, GenerationRequest{
		System:      g.systemPrompt(),
		Prompt:      BuildGuidancePrompt(req),
		Schema:      guidanceSchema,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return GuidanceBundle{}, &GenerationError{Err: err}
	}
	attrs := append([]any{"model", out.Model, "duration_ms", time.Since(start).Milliseconds()}, out.Usage.LogAttrs()...)
	g.logger.Debug("guidance generator responded", attrs...)

	bundle, failure := ParseGuidance(out.Text)
	if failure != nil {
		return GuidanceBundle{}, failure
	}
	return bundle, nil
}

func (g *GuidanceGenerator) systemPrompt() string {
	base := strings.TrimSpace(g.cfg.SystemPrompt)
	if base == "" {
		base = "You are a supportive mental wellness assistant. You do not diagnose; you encourage healthy habits and professional help where appropriate."
	}
	enforcer := ` Respond ONLY with valid minified JSON using this shape: {"suggestion":{"en":string,"id":string},"tips":{"en":string,"id":string}}. "en" is English and "id" is Bahasa Indonesia. Never return plain text or other fields.`
	return base + enforcer
}

// concerningValues lists raw answers treated as concerning per field.
var concerningValues = map[string][]int{
	"suicidalIdeation": {2, 3, 5},
	"panicAttacks":     {2, 3, 5},
}

var defaultConcerning = []int{2, 3}

// ConcerningFields returns "field (Meaning)" for each answer considered
// concerning, in Fields order.
func ConcerningFields(scores Scores) []string {
	var out []string
	for i, field := range Fields {
		values, ok := concerningValues[field]
		if !ok {
			values = defaultConcerning
		}
		for _, v := range values {
			if scores[i] == v {
				out = append(out, fmt.Sprintf("%s (%s)", field, ScoreMeanings[v]))
				break
			}
		}
	}
	return out
}

// BuildGuidancePrompt renders the user prompt for one assessment.
func BuildGuidancePrompt(req GuidanceRequest) string {
	var details string
	if concerns := ConcerningFields(req.Scores); len(concerns) > 0 {
		details = " The assessment noted particular concerns with: " + strings.Join(concerns, ", ") + "."
	}

	var b strings.Builder
	switch req.State {
	case SeverityNone:
		b.WriteString("A user's mental health assessment indicates no significant depressive symptoms." + details +
			" Provide a brief, encouraging suggestion (1-2 sentences) for maintaining good mental well-being, subtly acknowledging any minor concerns while keeping a positive tone.")
	case SeverityMild:
		b.WriteString("A user's mental health assessment indicates mild depressive symptoms." + details +
			" Provide a brief, supportive suggestion (1-2 sentences) focusing on self-care, monitoring mood and addressing the mentioned concerns.")
	case SeverityModerate:
		b.WriteString("A user's mental health assessment indicates moderate depressive symptoms." + details +
			" Provide a brief, supportive suggestion (2-3 sentences) encouraging them to consider talking to a mental health professional about the mentioned concerns.")
	case SeveritySevere:
		b.WriteString("A user's mental health assessment indicates severe depressive symptoms." + details +
			" Provide a brief, empathetic suggestion (2-3 sentences) strongly recommending they seek professional help immediately. Emphasize the seriousness of concerns like suicidal ideation.")
		if req.Geo != nil {
			fmt.Fprintf(&b, " The user is located near latitude %.4f, longitude %.4f. In the tips, point them to the kind of nearby professional resources to look for (hospital emergency units, community mental health clinics, crisis lines) around that location.", req.Geo.Latitude, req.Geo.Longitude)
		} else {
			b.WriteString(" The user's location is unknown. In the tips, offer destigmatizing encouragement to reach out for help and suggest enabling location sharing so nearby services can be recommended.")
		}
	default:
		b.WriteString("Provide a general mental wellness tip (1-2 sentences)." + details)
	}
	b.WriteString(" Also provide one or two short practical tips. Please ensure the suggestion is empathetic and actionable.")
	if req.Language == LanguageIndonesian {
		b.WriteString(" The user reads Bahasa Indonesia; keep both translations equally complete.")
	}
	return b.String()
}

var guidanceSchema = map[string]any{
	"type":     "object",
	"required": []any{"suggestion", "tips"},
	"properties": map[string]any{
		"suggestion": localizedSchema(),
		"tips":       localizedSchema(),
	},
}

func localizedSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"en", "id"},
		"properties": map[string]any{
			"en": map[string]any{"type": "string", "minLength": 1},
			"id": map[string]any{"type": "string", "minLength": 1},
		},
	}
}

// GuidanceSchema returns the JSON schema generators are asked to honour.
func GuidanceSchema() map[string]any {
	return guidanceSchema
}

var compiledGuidanceSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	const url = "schema://guidance-bundle.json"
	// The compiler wants a decoded JSON document, not Go literals.
	defBytes, err := json.Marshal(guidanceSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal guidance schema: %w", err)
	}
	var def any
	if err := json.Unmarshal(defBytes, &def); err != nil {
		return nil, fmt.Errorf("parse guidance schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add guidance schema: %w", err)
	}
	return c.Compile(url)
})

// ParseGuidance converts raw generator output into a bundle. Anything that
// is not a complete bilingual bundle is reported as a *ParseFailure.
func ParseGuidance(raw string) (GuidanceBundle, *ParseFailure) {
	sanitized := stripCodeFence(raw)
	if sanitized == "" {
		return GuidanceBundle{}, &ParseFailure{Reason: "empty response", Raw: raw}
	}

	var parsed any
	if err := json.Unmarshal([]byte(sanitized), &parsed); err != nil {
		return GuidanceBundle{}, &ParseFailure{Reason: "invalid JSON: " + err.Error(), Raw: raw}
	}
	schema, err := compiledGuidanceSchema()
	if err != nil {
		return GuidanceBundle{}, &ParseFailure{Reason: err.Error(), Raw: raw}
	}
	if err := schema.Validate(parsed); err != nil {
		return GuidanceBundle{}, &ParseFailure{Reason: "schema mismatch: " + err.Error(), Raw: raw}
	}

	var bundle GuidanceBundle
	if err := json.Unmarshal([]byte(sanitized), &bundle); err != nil {
		return GuidanceBundle{}, &ParseFailure{Reason: err.Error(), Raw: raw}
	}
	bundle = trimBundle(bundle)
	if bundle.Suggestion.EN == "" || bundle.Suggestion.ID == "" || bundle.Tips.EN == "" || bundle.Tips.ID == "" {
		return GuidanceBundle{}, &ParseFailure{Reason: "blank guidance text", Raw: raw}
	}
	return bundle, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimSuffix(s, "```")
	s = strings.Trim(s, "`")
	return strings.TrimSpace(s)
}

func trimBundle(b GuidanceBundle) GuidanceBundle {
	return GuidanceBundle{
		Suggestion: LocalizedText{EN: strings.TrimSpace(b.Suggestion.EN), ID: strings.TrimSpace(b.Suggestion.ID)},
		Tips:       LocalizedText{EN: strings.TrimSpace(b.Tips.EN), ID: strings.TrimSpace(b.Tips.ID)},
	}
}
