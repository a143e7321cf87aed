package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

// ProjectHandler exposes the project lifecycle and attachments.
type ProjectHandler struct {
	projects service.ProjectService
	images   service.ImageService
	logger   zerolog.Logger
}

// NewProjectHandler constructs a project handler.
func NewProjectHandler(projects service.ProjectService, images service.ImageService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		images:   images,
		logger:   logger.With().Str("component", "project_handler").Logger(),
	}
}

// Register wires project routes.
func (h *ProjectHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/pending", h.listPending)
	router.Post("/", h.submit)
	router.Get("/:id", h.get)
	router.Put("/:id", h.edit)
	router.Delete("/:id", h.delete)
	router.Post("/:id/withdraw", h.withdraw)
	router.Post("/:id/resubmit", h.resubmit)
	router.Post("/:id/improve", h.improve)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
	router.Post("/:id/request-feedback", h.requestFeedback)
	router.Get("/:id/versions", h.versions)
	router.Get("/:id/images", h.listImages)
	router.Post("/:id/images", h.uploadImage)
	router.Delete("/:id/images/:imageId", h.deleteImage)
}

func (h *ProjectHandler) listRequest(c *fiber.Ctx) (dto.ProjectListRequest, error) {
	ownerID, err := parseQueryUint(c, "owner_id")
	if err != nil {
		return dto.ProjectListRequest{}, err
	}
	templateID, err := parseQueryUint(c, "template_id")
	if err != nil {
		return dto.ProjectListRequest{}, err
	}
	return dto.ProjectListRequest{
		Search:     c.Query("search"),
		Sort:       c.Query("sort"),
		Status:     c.Query("status"),
		OwnerID:    ownerID,
		TemplateID: templateID,
	}, nil
}

func (h *ProjectHandler) list(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid filter")
	}
	projects, err := h.projects.List(requestContext(c), activityActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.OK(c, projects, "projects", fiber.Map{"total": len(projects)})
}

func (h *ProjectHandler) listPending(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid filter")
	}
	projects, err := h.projects.ListPending(requestContext(c), activityActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.OK(c, projects, "pending projects", fiber.Map{"total": len(projects)})
}

func (h *ProjectHandler) submit(c *fiber.Ctx) error {
	var req dto.ProjectSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	project, err := h.projects.Submit(requestContext(c), activityActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "project submitted", project)
}

func (h *ProjectHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	project, err := h.projects.Get(requestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project", project)
}

func (h *ProjectHandler) edit(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.ProjectEditRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	project, err := h.projects.Edit(requestContext(c), activityActorFromContext(c), id, req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project updated", project)
}

func (h *ProjectHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if err := h.projects.Delete(requestContext(c), activityActorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project deleted", nil)
}

func (h *ProjectHandler) withdraw(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	project, err := h.projects.Withdraw(requestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project withdrawn", project)
}

func (h *ProjectHandler) resubmit(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.ProjectResubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	project, err := h.projects.Resubmit(requestContext(c), activityActorFromContext(c), id, req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project resubmitted", project)
}

func (h *ProjectHandler) improve(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.ProjectImproveRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	project, err := h.projects.Improve(requestContext(c), activityActorFromContext(c), id, req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project reopened for improvement", project)
}

func (h *ProjectHandler) approve(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	project, err := h.projects.Approve(requestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project approved", project)
}

func (h *ProjectHandler) reject(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.ProjectRejectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	project, err := h.projects.Reject(requestContext(c), activityActorFromContext(c), id, req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project rejected", project)
}

func (h *ProjectHandler) requestFeedback(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.ProjectFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	project, err := h.projects.RequestFeedback(requestContext(c), activityActorFromContext(c), id, req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedback requested", project)
}

func (h *ProjectHandler) versions(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	versions, err := h.projects.Versions(requestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "versions", versions)
}

func (h *ProjectHandler) listImages(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	images, err := h.images.List(requestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "images", images)
}

func (h *ProjectHandler) uploadImage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	header, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer file.Close()

	image, err := h.images.Upload(requestContext(c), activityActorFromContext(c), id, service.ImageUpload{
		FileName: header.Filename,
		Size:     header.Size,
		Reader:   file,
	})
	if err != nil {
		if errors.Is(err, service.ErrUploadTooLarge) {
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		}
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload successful", image)
}

func (h *ProjectHandler) deleteImage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	imageID, err := parseIDParam(c, "imageId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if err := h.images.Delete(requestContext(c), activityActorFromContext(c), id, imageID); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "image deleted", nil)
}
