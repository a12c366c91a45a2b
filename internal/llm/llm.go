package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/gradebook/internal/grading"
	"github.com/pavelanni/gradebook/internal/llm/prompts"
	"github.com/pavelanni/gradebook/internal/model"
)

// Client wraps an OpenAI-compatible API client and proposes essay scores.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptVariant(variant),
	}, nil
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// SuggestScore asks the model for a score of one subjective answer.
func (c *Client) SuggestScore(ctx context.Context, q model.Question, answer string) (*grading.Suggestion, error) {
	systemPrompt, err := prompts.BuildEssayPrompt(c.variant, q, answer)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseSuggestion(raw)
}

type suggestionPayload struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

// parseSuggestion decodes the model's JSON reply. Models sometimes wrap the
// object in a markdown fence, which is stripped first.
func parseSuggestion(raw string) (*grading.Suggestion, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	var p suggestionPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &p); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if p.Score == nil {
		return nil, fmt.Errorf("LLM response has no score (raw: %s)", raw)
	}
	return &grading.Suggestion{Score: *p.Score, Feedback: p.Feedback}, nil
}
