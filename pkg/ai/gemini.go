package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// GeminiConfig defines configuration options for the Gemini provider.
type GeminiConfig struct {
	APIKey              string
	Model               string
	EvaluationMaxTokens int
	GenerationMaxTokens int
	Logger              zerolog.Logger
}

// GeminiProvider implements Provider against Google's Gemini API.
type GeminiProvider struct {
	client    *genai.Client
	evaluator *genai.GenerativeModel
	generator *genai.GenerativeModel
	cfg       GeminiConfig
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewGeminiProvider opens a Gemini client with separate evaluation and generation models.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.EvaluationMaxTokens == 0 {
		cfg.EvaluationMaxTokens = 1024
	}
	if cfg.GenerationMaxTokens == 0 {
		cfg.GenerationMaxTokens = 8192
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	evaluator := client.GenerativeModel(cfg.Model)
	evaluator.SetTemperature(0.7)
	evaluator.SetMaxOutputTokens(int32(cfg.EvaluationMaxTokens))
	evaluator.ResponseMIMEType = "application/json"

	generator := client.GenerativeModel(cfg.Model)
	generator.SetTemperature(0.8)
	generator.SetMaxOutputTokens(int32(cfg.GenerationMaxTokens))

	return &GeminiProvider{
		client:    client,
		evaluator: evaluator,
		generator: generator,
		cfg:       cfg,
		tracer:    otel.Tracer("github.com/noah-isme/promptlab-api/pkg/ai/gemini"),
		logger:    cfg.Logger.With().Str("component", "gemini_provider").Logger(),
	}, nil
}

// Name identifies the provider in metrics and logs.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Evaluate scores the prompt and decodes the JSON reply.
func (p *GeminiProvider) Evaluate(parent context.Context, input EvaluationInput) (Evaluation, error) {
	ctx, span := p.tracer.Start(parent, "gemini.evaluate", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
		attribute.Bool("template", input.Template != nil),
	))
	defer span.End()

	content, err := p.generate(ctx, p.evaluator, "evaluate", buildEvaluationPrompt(input))
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
func (p *GeminiProvider) Generate(parent context.Context, input GenerationInput) (string, error) {
	ctx, span := p.tracer.Start(parent, "gemini.generate", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
		attribute.Int("images", len(input.ImageURLs)),
	))
	defer span.End()

	content, err := p.generate(ctx, p.generator, "generate", buildGenerationPrompt(input))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return CleanHTML(content)
}

func (p *GeminiProvider) generate(ctx context.Context, model *genai.GenerativeModel, operation, prompt string) (string, error) {
	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	aiDuration.WithLabelValues(p.Name(), operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(p.Name(), operation).Inc()
		return "", fmt.Errorf("gemini %s: %w", operation, err)
	}

	content := candidateText(resp)
	if content == "" {
		aiFailures.WithLabelValues(p.Name(), operation).Inc()
		return "", fmt.Errorf("gemini %s: %w", operation, ErrEmptyResponse)
	}

	return content, nil
}

// candidateText joins the text parts of the first candidate. Non-text parts
// are skipped.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return strings.TrimSpace(builder.String())
}
