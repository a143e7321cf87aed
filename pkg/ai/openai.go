package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI provider.
type OpenAIConfig struct {
	APIKey              string
	BaseURL             string // optional; compatible gateways or test servers
	Model               string
	EvaluationMaxTokens int
	GenerationMaxTokens int
	Logger              zerolog.Logger
}

// OpenAIProvider implements Provider against the OpenAI chat completion API.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIProvider builds a new provider using the provided configuration.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EvaluationMaxTokens == 0 {
		cfg.EvaluationMaxTokens = 1024
	}
	if cfg.GenerationMaxTokens == 0 {
		cfg.GenerationMaxTokens = 8192
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/promptlab-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_provider").Logger(),
	}, nil
}

// Name identifies the provider in metrics and logs.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Evaluate scores the prompt and decodes the JSON reply.
func (p *OpenAIProvider) Evaluate(parent context.Context, input EvaluationInput) (Evaluation, error) {
	ctx, span := p.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
		attribute.Bool("template", input.Template != nil),
	))
	defer span.End()

	content, err := p.complete(ctx, "evaluate", openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.EvaluationMaxTokens,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildEvaluationPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Evaluation{}, err
	}

	evaluation, err := ParseEvaluation(content, evaluationHint(input))
	if err != nil {
		aiFailures.WithLabelValues(p.Name(), "evaluate").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn().Err(err).Msg("unparseable evaluation reply")
		return Evaluation{}, err
	}

	return evaluation, nil
}

// Generate produces the HTML artifact for an approved prompt.
func (p *OpenAIProvider) Generate(parent context.Context, input GenerationInput) (string, error) {
	ctx, span := p.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
		attribute.Int("images", len(input.ImageURLs)),
	))
	defer span.End()

	content, err := p.complete(ctx, "generate", openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.GenerationMaxTokens,
		Temperature: 0.8,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildGenerationPrompt(input)},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return CleanHTML(content)
}

func (p *OpenAIProvider) complete(ctx context.Context, operation string, request openai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(p.Name(), operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(p.Name(), operation).Inc()
		return "", fmt.Errorf("openai %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues(p.Name(), operation).Inc()
		return "", fmt.Errorf("openai %s: %w", operation, ErrEmptyResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		aiFailures.WithLabelValues(p.Name(), operation).Inc()
		return "", fmt.Errorf("openai %s: %w", operation, ErrEmptyResponse)
	}

	return content, nil
}
