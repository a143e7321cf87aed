package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// ActivityService exposes read access to the audit trail.
type ActivityService interface {
	List(ctx context.Context, actor ActivityActor, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) List(ctx context.Context, actor ActivityActor, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if !actor.IsTeacher() {
		return dto.ActivityListResponse{}, ErrForbidden
	}

	if req.PageSize > repository.MaxActivityPageSize {
		req.PageSize = repository.MaxActivityPageSize
	}
	if req.Since != nil && req.Until != nil && !req.Since.Before(*req.Until) {
		return dto.ActivityListResponse{}, fmt.Errorf("%w: since must be before until", ErrValidation)
	}

	filter := repository.ActivityLogFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Action:   strings.ToLower(strings.TrimSpace(req.Action)),
		Since:    req.Since,
		Until:    req.Until,
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := workflow.ParseStatus(strings.ToLower(raw))
		if err != nil {
			return dto.ActivityListResponse{}, validationError(err)
		}
		filter.NewStatus = string(status)
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}
	if req.ProjectID > 0 {
		filter.ProjectID = &req.ProjectID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list activity logs")
		return dto.ActivityListResponse{}, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.ActivityListResponse{Items: responses, Pagination: pagination}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
