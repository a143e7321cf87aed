package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/middleware"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

// UserHandler serves profile registration and the class roster.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs a user handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register wires user routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/", middleware.WithAuth(h.list, middleware.AuthOptions{Role: middleware.AuthRoleTeacher}))
	router.Get("/me", middleware.WithAuth(h.me, middleware.AuthOptions{}))
	router.Put("/me", middleware.WithAuth(h.register, middleware.AuthOptions{}))
}

func (h *UserHandler) list(c *fiber.Ctx) error {
	users, err := h.service.List(requestContext(c), activityActorFromContext(c), c.Query("role"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "users", users)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	user, err := h.service.GetMe(requestContext(c), activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile", user)
}

func (h *UserHandler) register(c *fiber.Ctx) error {
	var req dto.UserProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	user, err := h.service.Register(requestContext(c), activityActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile saved", user)
}
