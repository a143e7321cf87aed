package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

// ActivityHandler exposes the audit log to teachers.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the activity handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires activity routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	actorID, err := parseQueryUint(c, "actor_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor_id")
	}
	projectID, err := parseQueryUint(c, "project_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid project_id")
	}

	since, err := parseQueryTime(c, "since")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid since, expected RFC3339")
	}
	until, err := parseQueryTime(c, "until")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid until, expected RFC3339")
	}

	req := dto.ActivityListRequest{
		Page:     page,
		PageSize: pageSize,
		Action:   c.Query("action"),
		Status:   c.Query("status"),
		Since:    since,
		Until:    until,
	}
	if actorID != nil {
		req.ActorID = *actorID
	}
	if projectID != nil {
		req.ProjectID = *projectID
	}

	result, err := h.service.List(requestContext(c), activityActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.OK(c, result.Items, "activity logs", result.Pagination)
}
