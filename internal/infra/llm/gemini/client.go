package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/infra/llm"
	"github.com/yanqian/mindcheck/pkg/metrics"
)

const defaultModel = "gemini-2.0-flash"

// Config selects the Gemini model.
type Config struct {
	APIKey string
	Model  string
}

// Client generates guidance text with the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient constructs a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key cannot be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{client: client, model: model}, nil
}

// GenerateText implements assessment.TextGenerator.
func (c *Client) GenerateText(ctx context.Context, req assessment.GenerationRequest) (assessment.Generation, error) {
	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		config.Temperature = &temp
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toSchema(req.Schema)
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return assessment.Generation{}, mapError(err)
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return assessment.Generation{}, &llm.ErrEmptyResponse{Reason: finishReason(result)}
	}

	out := assessment.Generation{Text: text, Model: c.model}
	if result.UsageMetadata != nil {
		out.Usage = metrics.TokenUsage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// toSchema converts a JSON Schema map into Gemini's schema subset.
func toSchema(def map[string]any) *genai.Schema {
	schema := &genai.Schema{}
	if t, ok := def["type"].(string); ok {
		schema.Type = schemaType(t)
	}
	if props, ok := def["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			if child, ok := v.(map[string]any); ok {
				schema.Properties[name] = toSchema(child)
			}
		}
	}
	if required, ok := def["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := def["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}
	return schema
}

func schemaType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func finishReason(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) > 0 && result.Candidates[0].FinishReason != "" {
		return string(result.Candidates[0].FinishReason)
	}
	return "empty text"
}

func mapError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.Code, err)
	}
	return &llm.ErrProviderUnavailable{Err: fmt.Errorf("generate content: %w", err)}
}

var _ assessment.TextGenerator = (*Client)(nil)
