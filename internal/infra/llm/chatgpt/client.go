package chatgpt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/infra/llm"
	"github.com/yanqian/mindcheck/pkg/metrics"
)

const defaultModel = "gpt-4o-mini"

// Config selects the OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client generates guidance text through any OpenAI-compatible chat API.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient constructs a ChatGPT client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("chatgpt api key cannot be empty")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		config.BaseURL = strings.TrimRight(base, "/")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{client: openai.NewClientWithConfig(config), model: model}, nil
}

// GenerateText implements assessment.TextGenerator. When a schema is
// requested the call asks for a JSON object response.
func (c *Client) GenerateText(ctx context.Context, req assessment.GenerationRequest) (assessment.Generation, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return assessment.Generation{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return assessment.Generation{}, &llm.ErrEmptyResponse{Reason: "no choices"}
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return assessment.Generation{}, &llm.ErrEmptyResponse{Reason: "truncated at max tokens"}
	}
	return assessment.Generation{
		Text:  choice.Message.Content,
		Model: resp.Model,
		Usage: metrics.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.FromStatus(reqErr.HTTPStatusCode, err)
	}
	return &llm.ErrProviderUnavailable{Err: fmt.Errorf("chat completion: %w", err)}
}

var _ assessment.TextGenerator = (*Client)(nil)
