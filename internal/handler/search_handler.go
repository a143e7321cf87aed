package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/middleware"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

// SearchHandler issues scoped search tokens.
type SearchHandler struct {
	service service.SearchService
	logger  zerolog.Logger
}

// NewSearchHandler constructs a search handler.
func NewSearchHandler(service service.SearchService, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger.With().Str("component", "search_handler").Logger(),
	}
}

// Register wires search routes.
func (h *SearchHandler) Register(router fiber.Router) {
	router.Get("/token", middleware.WithAuth(h.token, middleware.AuthOptions{}))
}

func (h *SearchHandler) token(c *fiber.Ctx) error {
	token, err := h.service.Token(requestContext(c), activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "search token", token)
}
