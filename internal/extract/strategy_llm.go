package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMConfig selects and configures the model backing the primary strategy.
type LLMConfig struct {
	Provider  string
	Model     string
	APIKey    string
	ServerURL string
}

const llmSystemPrompt = `You are a metadata extraction assistant for university course syllabi.
Given the full text of a syllabus, respond with a single JSON object containing:
year, semester, class_name, class_number, instructor, university, main_topic,
and reading_materials (a list of {title, creator, requirement, type, url} objects
where requirement is "required" or "optional").
Use the string "Unknown" for any field you cannot determine. Respond with JSON only.`

// LLMStrategy extracts metadata fields with a language model. It is the
// primary link of the extraction chain; any error falls through to the
// heuristic strategy.
type LLMStrategy struct {
	model llms.Model
	name  string
}

// NewLLMStrategy builds the model client for the configured provider.
func NewLLMStrategy(cfg LLMConfig) (*LLMStrategy, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		)
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.ServerURL),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}
	return &LLMStrategy{model: model, name: "llm/" + cfg.Provider}, nil
}

// NewLLMStrategyFromModel wraps an existing model, mainly for tests.
func NewLLMStrategyFromModel(model llms.Model) *LLMStrategy {
	return &LLMStrategy{model: model, name: "llm"}
}

// Name identifies the strategy in logs and fallback messages.
func (s *LLMStrategy) Name() string { return s.name }

// Extract prompts the model with the document text and parses the JSON
// object out of its response.
func (s *LLMStrategy) Extract(ctx context.Context, text string) (map[string]any, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, llmSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}
	response, err := s.model.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("llm generate: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}
	return parseModelJSON(response.Choices[0].Content)
}

// parseModelJSON tolerates code fences and prose around the JSON object.
func parseModelJSON(content string) (map[string]any, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("model response contained no fields")
	}
	return fields, nil
}
