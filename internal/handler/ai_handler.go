package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

// AIHandler exposes standalone evaluation and preview generation.
type AIHandler struct {
	service service.AIService
	logger  zerolog.Logger
}

// NewAIHandler constructs an AI handler.
func NewAIHandler(service service.AIService, logger zerolog.Logger) *AIHandler {
	return &AIHandler{
		service: service,
		logger:  logger.With().Str("component", "ai_handler").Logger(),
	}
}

// Register wires AI routes.
func (h *AIHandler) Register(router fiber.Router) {
	router.Post("/evaluate", h.evaluate)
	router.Post("/generate", h.generate)
}

func (h *AIHandler) evaluate(c *fiber.Ctx) error {
	var req dto.EvaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	evaluation, err := h.service.Evaluate(requestContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "evaluation complete", dto.EvaluateResponse{
		Evaluation: evaluation,
		View:       evaluation.View(),
	})
}

func (h *AIHandler) generate(c *fiber.Ctx) error {
	var req dto.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	html, err := h.service.Generate(requestContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "generation complete", dto.GenerateResponse{HTMLContent: html})
}
