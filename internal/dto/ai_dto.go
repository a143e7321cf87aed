package dto

import "github.com/noah-isme/promptlab-api/pkg/ai"

// EvaluateRequest asks for a prompt evaluation without creating a project.
type EvaluateRequest struct {
	Title      string   `json:"title" validate:"required,max=255"`
	Prompt     string   `json:"prompt" validate:"required,max=20000"`
	TemplateID *uint    `json:"template_id"`
	ImageURLs  []string `json:"image_urls" validate:"omitempty,max=10,dive,url"`
}

// EvaluateResponse returns the stored form alongside the display form.
type EvaluateResponse struct {
	Evaluation ai.Evaluation     `json:"evaluation"`
	View       ai.EvaluationView `json:"view"`
}

// GenerateRequest asks for an HTML preview of a prompt.
type GenerateRequest struct {
	Title     string   `json:"title" validate:"required,max=255"`
	Prompt    string   `json:"prompt" validate:"required,max=20000"`
	ImageURLs []string `json:"image_urls" validate:"omitempty,max=10,dive,url"`
}

// GenerateResponse carries the generated document.
type GenerateResponse struct {
	HTMLContent string `json:"html_content"`
}

// SearchTokenResponse carries a scoped search token.
type SearchTokenResponse struct {
	Token string `json:"token"`
	Host  string `json:"host"`
	Index string `json:"index"`
}
