package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	promptTemperature = 0.7
	promptMaxTokens   = 2000
)

// buildPrompt asks for a row-generation spec in the exact JSON shape
// the validator accepts. Sample rows give the model the value style to
// imitate.
func buildPrompt(schema Schema) string {
	schemaJSON, _ := json.MarshalIndent(schema, "", "  ")
	var sb strings.Builder
	sb.WriteString("You design synthetic tabular datasets. Given this dataset schema and sample rows:\n\n")
	sb.Write(schemaJSON)
	sb.WriteString(`

Return a JSON object {"columns": [...]} with one entry per column, in the same order. Each entry has:
  "name": the column name
  "generator": one of "id", "date", "email", "currency", "count", "category", "word", "float", "int"
  optional "min"/"max" numeric bounds, "values" (for category), "start_date"/"end_date" as YYYY-MM-DD (for date)

Match each column's style in the samples. Dates must stay within a realistic recent window. Return ONLY the JSON object, no explanations and no code.`)
	return sb.String()
}

// extractJSON pulls the JSON object out of a model reply, tolerating
// markdown fences and surrounding prose.
func extractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("synth: empty model response")
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("synth: no JSON object in model response")
	}
	return []byte(text[start : end+1]), nil
}

// parseResponse turns raw model text into a validated spec.
func parseResponse(text string, schema Schema) (RowSpec, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return RowSpec{}, err
	}
	return ParseSpec(raw, schema.Columns)
}

// GeminiSource generates specs with the Gemini API.
type GeminiSource struct {
	client *genai.Client
}

// NewGeminiSource builds a Gemini-backed source from an API key.
func NewGeminiSource(ctx context.Context, apiKey string) (*GeminiSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("synth: gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("synth: gemini: create client: %w", err)
	}
	return &GeminiSource{client: client}, nil
}

func (s *GeminiSource) GenerateSpec(ctx context.Context, model string, schema Schema) (RowSpec, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](promptTemperature),
		MaxOutputTokens: promptMaxTokens,
	}
	resp, err := s.client.Models.GenerateContent(ctx, model, genai.Text(buildPrompt(schema)), config)
	if err != nil {
		return RowSpec{}, fmt.Errorf("synth: gemini %s: %w", model, err)
	}
	return parseResponse(resp.Text(), schema)
}

// OpenAISource generates specs through any chat-completions endpoint.
type OpenAISource struct {
	client *openai.Client
}

// NewOpenAISource builds an OpenAI-backed source from an API key.
func NewOpenAISource(apiKey string) (*OpenAISource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("synth: openai: API key is required")
	}
	return &OpenAISource{client: openai.NewClient(apiKey)}, nil
}

func (s *OpenAISource) GenerateSpec(ctx context.Context, model string, schema Schema) (RowSpec, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: promptTemperature,
		MaxTokens:   promptMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(schema)},
		},
	})
	if err != nil {
		return RowSpec{}, fmt.Errorf("synth: openai %s: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return RowSpec{}, fmt.Errorf("synth: openai %s: empty model response", model)
	}
	return parseResponse(resp.Choices[0].Message.Content, schema)
}

// AnthropicSource generates specs with the Anthropic Messages API.
type AnthropicSource struct {
	client anthropic.Client
}

// NewAnthropicSource builds an Anthropic-backed source from an API key.
func NewAnthropicSource(apiKey string) (*AnthropicSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("synth: anthropic: API key is required")
	}
	return &AnthropicSource{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

func (s *AnthropicSource) GenerateSpec(ctx context.Context, model string, schema Schema) (RowSpec, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: promptMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(schema))),
		},
	})
	if err != nil {
		return RowSpec{}, fmt.Errorf("synth: anthropic %s: %w", model, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return parseResponse(sb.String(), schema)
}
