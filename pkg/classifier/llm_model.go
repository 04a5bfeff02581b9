package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// default system prompt for article classification
const defaultSystemPrompt = `You are a news article classifier. You receive an article text and an ordered
list of labels. Estimate the probability of each label for the article.

Labels mean:
- unrest: terrorism, protests, political unrest, riots
- positive: positive or uplifting news
- natural_disaster: earthquakes, floods, storms, fires and other natural disasters
- other: anything else

Respond with a JSON array of numbers only, one probability per label in the given
order, summing to 1. Example for 4 labels: [0.1, 0.7, 0.1, 0.1]`

// LLMModel asks an OpenAI-compatible chat model for label probabilities
type LLMModel struct {
	client      *openai.Client
	model       string
	temperature float64
	labels      []string
	systemMsg   string
}

// LLMModelParams configures LLMModel
type LLMModelParams struct {
	Endpoint     string
	APIKey       string
	Model        string
	Temperature  float64
	Labels       []string
	SystemPrompt string
}

var errNoJSONArray = errors.New("no json array found in response")

// NewLLMModel creates a new LLM backed model
func NewLLMModel(params LLMModelParams) *LLMModel {
	clientConfig := openai.DefaultConfig(params.APIKey)
	if params.Endpoint != "" {
		clientConfig.BaseURL = params.Endpoint
	}

	// use custom system prompt if provided, otherwise use default
	systemMsg := params.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	return &LLMModel{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       params.Model,
		temperature: params.Temperature,
		labels:      params.Labels,
		systemMsg:   systemMsg,
	}
}

// Predict returns probabilities ordered as the configured labels
func (m *LLMModel) Predict(ctx context.Context, text string) ([]float64, error) {
	prompt := m.buildPrompt(text)

	// retry up to 3 times if we get invalid JSON
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       m.model,
			Temperature: float32(m.temperature),
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: m.systemMsg},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("llm request failed: %w", err)
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no response from llm")
		}

		probs, err := m.parseResponse(resp.Choices[0].Message.Content)
		if err == nil {
			return probs, nil
		}
		lastErr = err

		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.Is(err, errNoJSONArray) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			continue
		}

		// for other errors, don't retry
		return nil, err
	}

	return nil, fmt.Errorf("failed after 3 attempts: %w", lastErr)
}

func (m *LLMModel) buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Labels in order: ")
	sb.WriteString(strings.Join(m.labels, ", "))
	sb.WriteString("\n\nArticle:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nRespond with a JSON array of ")
	sb.WriteString(fmt.Sprintf("%d", len(m.labels)))
	sb.WriteString(" probabilities.")
	return sb.String()
}

// parseResponse extracts the first JSON array from the answer, models like to wrap it in prose
func (m *LLMModel) parseResponse(content string) ([]float64, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || start >= end {
		return nil, errNoJSONArray
	}

	var probs []float64
	if err := json.Unmarshal([]byte(content[start:end+1]), &probs); err != nil {
		return nil, fmt.Errorf("failed to parse json array response: %w", err)
	}

	if len(probs) != len(m.labels) {
		return nil, fmt.Errorf("expected %d probabilities, got %d", len(m.labels), len(probs))
	}
	return probs, nil
}
