package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/repository"
)

// TemplateService manages the curriculum template catalog.
type TemplateService interface {
	Create(ctx context.Context, actor ActivityActor, req dto.TemplateRequest) (dto.TemplateResponse, error)
	Update(ctx context.Context, actor ActivityActor, id uint, req dto.TemplateRequest) (dto.TemplateResponse, error)
	Get(ctx context.Context, actor ActivityActor, id uint) (dto.TemplateResponse, error)
	List(ctx context.Context, actor ActivityActor, req dto.TemplateListRequest) ([]dto.TemplateResponse, error)
	Delete(ctx context.Context, actor ActivityActor, id uint) error
}

type templateService struct {
	store     repository.Store
	audit     AuditWriter
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTemplateService constructs the template catalog service.
func NewTemplateService(store repository.Store, validate *validator.Validate, logger zerolog.Logger) TemplateService {
	return &templateService{
		store:     store,
		validator: validate,
		logger:    logger.With().Str("component", "template_service").Logger(),
	}
}

func (s *templateService) Create(ctx context.Context, actor ActivityActor, req dto.TemplateRequest) (dto.TemplateResponse, error) {
	if err := s.requireTeacher(actor); err != nil {
		return dto.TemplateResponse{}, err
	}
	if err := s.validate(req); err != nil {
		return dto.TemplateResponse{}, err
	}

	template := models.Template{AuthorID: actor.ID, IsActive: true}
	applyTemplateRequest(&template, req)

	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Templates().Create(ctx, &template); err != nil {
			return fmt.Errorf("create template: %w", err)
		}
		_, err := s.audit.Record(ctx, tx, ActivityEntry{
			Actor:   actor,
			Action:  "template.created",
			Details: map[string]interface{}{"template_id": template.ID, "title": template.Title},
		})
		return err
	})
	if err != nil {
		return dto.TemplateResponse{}, err
	}

	s.logger.Info().Uint("template_id", template.ID).Msg("template created")
	return dto.NewTemplateResponse(template), nil
}

func (s *templateService) Update(ctx context.Context, actor ActivityActor, id uint, req dto.TemplateRequest) (dto.TemplateResponse, error) {
	if err := s.requireTeacher(actor); err != nil {
		return dto.TemplateResponse{}, err
	}
	if err := s.validate(req); err != nil {
		return dto.TemplateResponse{}, err
	}

	var template models.Template
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		existing, err := tx.Templates().GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, ErrTemplateNotFound)
		}
		applyTemplateRequest(&existing, req)
		if err := tx.Templates().Update(ctx, &existing); err != nil {
			return fmt.Errorf("update template: %w", err)
		}
		template = existing
		_, err = s.audit.Record(ctx, tx, ActivityEntry{
			Actor:   actor,
			Action:  "template.updated",
			Details: map[string]interface{}{"template_id": id},
		})
		return err
	})
	if err != nil {
		return dto.TemplateResponse{}, err
	}

	return dto.NewTemplateResponse(template), nil
}

func (s *templateService) Get(ctx context.Context, actor ActivityActor, id uint) (dto.TemplateResponse, error) {
	if _, err := actorRole(actor); err != nil {
		return dto.TemplateResponse{}, err
	}
	template, err := s.store.Templates().GetByID(ctx, id)
	if err != nil {
		return dto.TemplateResponse{}, notFoundOr(err, ErrTemplateNotFound)
	}
	return dto.NewTemplateResponse(template), nil
}

func (s *templateService) List(ctx context.Context, actor ActivityActor, req dto.TemplateListRequest) ([]dto.TemplateResponse, error) {
	if _, err := actorRole(actor); err != nil {
		return nil, err
	}

	filter := repository.TemplateFilter{
		Grade:           req.Grade,
		MathDomain:      strings.TrimSpace(req.MathDomain),
		IncludeInactive: req.IncludeInactive && actor.IsTeacher(),
	}
	templates, err := s.store.Templates().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.TemplateResponse, 0, len(templates))
	for _, template := range templates {
		responses = append(responses, dto.NewTemplateResponse(template))
	}
	return responses, nil
}

// Delete deactivates the template. Existing projects keep their reference.
func (s *templateService) Delete(ctx context.Context, actor ActivityActor, id uint) error {
	if err := s.requireTeacher(actor); err != nil {
		return err
	}

	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Templates().Deactivate(ctx, id); err != nil {
			return notFoundOr(err, ErrTemplateNotFound)
		}
		_, err := s.audit.Record(ctx, tx, ActivityEntry{
			Actor:   actor,
			Action:  "template.deactivated",
			Details: map[string]interface{}{"template_id": id},
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info().Uint("template_id", id).Msg("template deactivated")
	return nil
}

func (s *templateService) requireTeacher(actor ActivityActor) error {
	if _, err := actorRole(actor); err != nil {
		return err
	}
	if !actor.IsTeacher() {
		return fmt.Errorf("%w: only teachers manage templates", ErrForbidden)
	}
	return nil
}

func (s *templateService) validate(req dto.TemplateRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err)
	}
	if strings.TrimSpace(req.AchievementStandard) == "" {
		return requiredField("achievement_standard")
	}
	if strings.TrimSpace(req.Guidelines) == "" {
		return requiredField("guidelines")
	}
	return nil
}

func applyTemplateRequest(template *models.Template, req dto.TemplateRequest) {
	template.Title = strings.TrimSpace(req.Title)
	template.Grade = req.Grade
	template.MathDomain = req.MathDomain
	template.UnitName = strings.TrimSpace(req.UnitName)
	template.AchievementStandardCode = strings.TrimSpace(req.AchievementStandardCode)
	template.AchievementStandard = strings.TrimSpace(req.AchievementStandard)
	template.LearningObjectives = req.LearningObjectives
	template.ExpectedLevel = req.ExpectedLevel
	template.Guidelines = strings.TrimSpace(req.Guidelines)
	template.AIRestrictions = strings.TrimSpace(req.AIRestrictions)
}
