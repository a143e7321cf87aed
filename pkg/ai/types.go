package ai

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("ai response was empty")
	// ErrMalformedResponse is returned when no JSON object could be recovered from the reply.
	ErrMalformedResponse = errors.New("ai response was not valid json")
)

// TemplateContext carries the curriculum context a template adds to an evaluation.
type TemplateContext struct {
	Grade                   int
	MathDomain              string
	DomainLabel             string
	UnitName                string
	AchievementStandardCode string
	AchievementStandard     string
	LearningObjectives      []string
	ExpectedLevel           string
	Guidelines              string
	AIRestrictions          string
}

// EvaluationInput contains the prompt under review.
type EvaluationInput struct {
	Title     string
	Prompt    string
	ImageURLs []string
	Template  *TemplateContext
}

// GenerationInput contains what the generator needs to build an HTML artifact.
type GenerationInput struct {
	Title     string
	Prompt    string
	ImageURLs []string
}

// Evaluator scores and critiques a student prompt.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluationInput) (Evaluation, error)
}

// Generator produces a standalone HTML document from an approved prompt.
type Generator interface {
	Generate(ctx context.Context, input GenerationInput) (string, error)
}

// Provider bundles both capabilities of a model backend.
type Provider interface {
	Evaluator
	Generator
	Name() string
}
