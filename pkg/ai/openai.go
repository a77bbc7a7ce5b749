package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

// Config for the OpenAI generator
type Config struct {
	APIKey      string
	BaseURL     string  // optional, for compatible gateways
	Model       string  // default: gpt-4o-mini
	Temperature float32 // default: 0.7
	MaxTokens   int     // default: 1500
}

// OpenAIGenerator asks a chat model for JSON encoded drafts
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	log         logger.Logger
}

// NewOpenAIGenerator creates a generator for cfg
func NewOpenAIGenerator(cfg Config, log logger.Logger) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1500
	}
	if log == nil {
		log = logger.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		log:         log,
	}
}

// GenerateEmail implements Generator
func (g *OpenAIGenerator) GenerateEmail(ctx context.Context, lead LeadContext) (*EmailContent, error) {
	var out EmailContent
	if err := g.complete(ctx, EmailSystemPrompt, BuildLeadPrompt(lead), &out); err != nil {
		return nil, err
	}
	out.Subject = strings.TrimSpace(out.Subject)
	out.Body = strings.TrimSpace(out.Body)
	if out.Subject == "" || out.Body == "" {
		return nil, errors.New("model returned an incomplete email")
	}
	return &out, nil
}

// GenerateReport implements Generator
func (g *OpenAIGenerator) GenerateReport(ctx context.Context, lead LeadContext) (*ReportContent, error) {
	var out ReportContent
	if err := g.complete(ctx, ReportSystemPrompt, BuildLeadPrompt(lead), &out); err != nil {
		return nil, err
	}
	out.Summary = strings.TrimSpace(out.Summary)
	out.Content = strings.TrimSpace(out.Content)
	if out.Summary == "" || out.Content == "" {
		return nil, errors.New("model returned an incomplete report")
	}
	return &out, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string, dest any) error {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.log.Error("openai completion failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("openai chat failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("no response from openai")
	}
	g.log.Debug("openai completion finished", "tokens", resp.Usage.TotalTokens, "duration", time.Since(start))

	if err := json.Unmarshal([]byte(stripFences(resp.Choices[0].Message.Content)), dest); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	return nil
}

// stripFences removes a markdown code fence some models wrap JSON in
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
