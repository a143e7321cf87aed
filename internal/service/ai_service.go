package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/pkg/ai"
)

// AIService runs prompt evaluation and HTML generation against the configured provider.
type AIService interface {
	Evaluate(ctx context.Context, req dto.EvaluateRequest) (ai.Evaluation, error)
	Generate(ctx context.Context, req dto.GenerateRequest) (string, error)
	Ready(ctx context.Context) error
}

// aiUnhealthyAfter is the number of consecutive provider failures after which
// the service reports itself as not ready.
const aiUnhealthyAfter = 3

type aiService struct {
	evaluator         ai.Evaluator
	generator         ai.Generator
	templates         repository.TemplateRepository
	validator         *validator.Validate
	generationTimeout time.Duration
	logger            zerolog.Logger
	tracer            trace.Tracer
	failures          atomic.Int32
}

// NewAIService wires the evaluation and generation calls.
func NewAIService(evaluator ai.Evaluator, generator ai.Generator, templates repository.TemplateRepository, validate *validator.Validate, generationTimeout time.Duration, logger zerolog.Logger) AIService {
	if generationTimeout <= 0 {
		generationTimeout = 120 * time.Second
	}
	return &aiService{
		evaluator:         evaluator,
		generator:         generator,
		templates:         templates,
		validator:         validate,
		generationTimeout: generationTimeout,
		logger:            logger.With().Str("component", "ai_service").Logger(),
		tracer:            otel.Tracer("github.com/noah-isme/promptlab-api/internal/service/ai"),
	}
}

func (s *aiService) Evaluate(ctx context.Context, req dto.EvaluateRequest) (ai.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return ai.Evaluation{}, validationError(err)
	}
	title := strings.TrimSpace(req.Title)
	prompt := strings.TrimSpace(req.Prompt)
	if title == "" {
		return ai.Evaluation{}, requiredField("title")
	}
	if prompt == "" {
		return ai.Evaluation{}, requiredField("prompt")
	}

	ctx, span := s.tracer.Start(ctx, "ai.evaluate", trace.WithAttributes(
		attribute.Bool("template", req.TemplateID != nil),
	))
	defer span.End()

	input := ai.EvaluationInput{Title: title, Prompt: prompt, ImageURLs: req.ImageURLs}
	if req.TemplateID != nil {
		template, err := s.templates.GetByID(ctx, *req.TemplateID)
		if err != nil {
			return ai.Evaluation{}, notFoundOr(err, ErrTemplateNotFound)
		}
		input.Template = templateContext(template)
	}

	evaluation, err := s.evaluator.Evaluate(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.failures.Add(1)
		s.logger.Error().Err(err).Msg("prompt evaluation failed")
		return ai.Evaluation{}, upstreamError("evaluate prompt", err)
	}
	s.failures.Store(0)

	return evaluation, nil
}

func (s *aiService) Generate(ctx context.Context, req dto.GenerateRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", validationError(err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", requiredField("prompt")
	}

	ctx, span := s.tracer.Start(ctx, "ai.generate", trace.WithAttributes(
		attribute.Int("images", len(req.ImageURLs)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	html, err := s.generator.Generate(ctx, ai.GenerationInput{
		Title:     strings.TrimSpace(req.Title),
		Prompt:    strings.TrimSpace(req.Prompt),
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("generation timed out after %s: %w", s.generationTimeout, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.failures.Add(1)
		s.logger.Error().Err(err).Msg("content generation failed")
		return "", upstreamError("generate content", err)
	}
	s.failures.Store(0)

	return html, nil
}

// Ready fails once the provider has failed several calls in a row. It never
// calls the provider itself.
func (s *aiService) Ready(context.Context) error {
	if n := s.failures.Load(); n >= aiUnhealthyAfter {
		return fmt.Errorf("%w: %d consecutive provider failures", ErrUpstream, n)
	}
	return nil
}

func templateContext(template models.Template) *ai.TemplateContext {
	return &ai.TemplateContext{
		Grade:                   template.Grade,
		MathDomain:              template.MathDomain,
		DomainLabel:             models.DomainLabel(template.MathDomain),
		UnitName:                template.UnitName,
		AchievementStandardCode: template.AchievementStandardCode,
		AchievementStandard:     template.AchievementStandard,
		LearningObjectives:      template.LearningObjectives,
		ExpectedLevel:           template.ExpectedLevel,
		Guidelines:              template.Guidelines,
		AIRestrictions:          template.AIRestrictions,
	}
}
