package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/observability"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
	"github.com/noah-isme/promptlab-api/pkg/ai"
)

// ProjectService drives projects through the review lifecycle.
type ProjectService interface {
	Submit(ctx context.Context, actor ActivityActor, req dto.ProjectSubmitRequest) (dto.ProjectResponse, error)
	Edit(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectEditRequest) (dto.ProjectResponse, error)
	Withdraw(ctx context.Context, actor ActivityActor, id uint) (dto.ProjectResponse, error)
	Resubmit(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectResubmitRequest) (dto.ProjectResponse, error)
	Improve(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectImproveRequest) (dto.ProjectResponse, error)
	Approve(ctx context.Context, actor ActivityActor, id uint) (dto.ProjectResponse, error)
	Reject(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectRejectRequest) (dto.ProjectResponse, error)
	RequestFeedback(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectFeedbackRequest) (dto.ProjectResponse, error)
	Delete(ctx context.Context, actor ActivityActor, id uint) error
	Get(ctx context.Context, actor ActivityActor, id uint) (dto.ProjectResponse, error)
	List(ctx context.Context, actor ActivityActor, req dto.ProjectListRequest) ([]dto.ProjectResponse, error)
	ListPending(ctx context.Context, actor ActivityActor, req dto.ProjectListRequest) ([]dto.ProjectResponse, error)
	Versions(ctx context.Context, actor ActivityActor, id uint) ([]dto.VersionResponse, error)
}

var activityActions = map[workflow.Action]string{
	workflow.ActionSubmit:          "project.submitted",
	workflow.ActionEdit:            "project.edited",
	workflow.ActionWithdraw:        "project.withdrawn",
	workflow.ActionResubmit:        "project.resubmitted",
	workflow.ActionImprove:         "project.improved",
	workflow.ActionApprove:         "project.approved",
	workflow.ActionReject:          "project.rejected",
	workflow.ActionRequestFeedback: "project.feedback_requested",
	workflow.ActionDelete:          "project.deleted",
}

type projectService struct {
	store     repository.Store
	ai        AIService
	storage   ObjectStorage
	observers observerSet
	audit     AuditWriter
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// ProjectServiceConfig carries the collaborators of the project service.
// Storage may be nil when attachments are disabled.
type ProjectServiceConfig struct {
	Store     repository.Store
	AI        AIService
	Storage   ObjectStorage
	Observers []TransitionObserver
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// NewProjectService constructs the lifecycle service.
func NewProjectService(cfg ProjectServiceConfig) ProjectService {
	return &projectService{
		store:     cfg.Store,
		ai:        cfg.AI,
		storage:   cfg.Storage,
		observers: observerSet(cfg.Observers),
		validator: cfg.Validator,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    cfg.Logger.With().Str("component", "project_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/promptlab-api/internal/service/project"),
		now:       time.Now,
	}
}

// change is one guarded update plus the audit details written with it.
type change struct {
	action  workflow.Action
	fields  map[string]interface{}
	reason  *string
	details map[string]interface{}
}

func (s *projectService) Submit(ctx context.Context, actor ActivityActor, req dto.ProjectSubmitRequest) (dto.ProjectResponse, error) {
	role, err := actorRole(actor)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	if err := workflow.Permitted(workflow.ActionSubmit, role, true); err != nil {
		return dto.ProjectResponse{}, workflowError(err)
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationError(err)
	}

	title := strings.TrimSpace(req.Title)
	prompt := strings.TrimSpace(req.Prompt)
	if title == "" {
		return dto.ProjectResponse{}, requiredField("title")
	}
	if prompt == "" {
		return dto.ProjectResponse{}, requiredField("prompt")
	}

	ctx, span := s.tracer.Start(ctx, "projects.submit", trace.WithAttributes(
		attribute.Int64("project.template_id", int64(req.TemplateID)),
		attribute.Int64("actor.id", int64(actor.ID)),
	))
	defer span.End()

	if _, err := s.store.Users().GetByID(ctx, actor.ID); err != nil {
		return dto.ProjectResponse{}, notFoundOr(err, ErrUserNotFound)
	}

	template, err := s.store.Templates().GetByID(ctx, req.TemplateID)
	if err != nil {
		return dto.ProjectResponse{}, notFoundOr(err, ErrTemplateNotFound)
	}
	if !template.IsActive {
		return dto.ProjectResponse{}, ErrTemplateInactive
	}

	evaluation, err := s.resolveEvaluation(ctx, req.Evaluation, title, prompt, &template.ID, nil)
	if err != nil {
		span.RecordError(err)
		return dto.ProjectResponse{}, err
	}

	templateID := template.ID
	project := models.Project{
		OwnerID:    actor.ID,
		TemplateID: &templateID,
		Title:      title,
		Prompt:     prompt,
		Evaluation: evaluation,
		Status:     workflow.StatusPending,
	}

	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Projects().Create(ctx, &project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		version, err := s.audit.AppendVersion(ctx, tx, project, nil)
		if err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, ActivityEntry{
			Actor:     actor,
			Action:    activityActions[workflow.ActionSubmit],
			ProjectID: &project.ID,
			NewStatus: workflow.StatusPending,
			Details: map[string]interface{}{
				"template_id": templateID,
				"version":     version.Sequence,
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.ProjectResponse{}, err
	}

	created, err := s.store.Projects().GetByID(ctx, project.ID)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	s.committed(ctx, TransitionEvent{
		Project:   created,
		Action:    workflow.ActionSubmit,
		NewStatus: workflow.StatusPending,
		Actor:     actor,
		At:        s.now().UTC(),
	})

	return dto.NewProjectResponse(created), nil
}

func (s *projectService) Edit(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectEditRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationError(err)
	}
	if req.Title == nil && req.Prompt == nil && !hasEvaluation(req.Evaluation) {
		return dto.ProjectResponse{}, validationError(errors.New("no changes supplied"))
	}

	project, next, err := s.prepare(ctx, actor, id, workflow.ActionEdit)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	fields := map[string]interface{}{}
	changed := []string{}
	title := project.Title
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			return dto.ProjectResponse{}, requiredField("title")
		}
		fields["title"] = title
		changed = append(changed, "title")
	}

	prompt := project.Prompt
	promptChanged := false
	if req.Prompt != nil {
		prompt = strings.TrimSpace(*req.Prompt)
		if prompt == "" {
			return dto.ProjectResponse{}, requiredField("prompt")
		}
		promptChanged = prompt != project.Prompt
		fields["prompt"] = prompt
		changed = append(changed, "prompt")
	}

	if hasEvaluation(req.Evaluation) || promptChanged {
		urls, err := s.imageURLs(ctx, project.ID)
		if err != nil {
			return dto.ProjectResponse{}, err
		}
		evaluation, err := s.resolveEvaluation(ctx, req.Evaluation, title, prompt, project.TemplateID, urls)
		if err != nil {
			return dto.ProjectResponse{}, err
		}
		fields["evaluation"] = evaluation
		changed = append(changed, "evaluation")
	}

	return s.commit(ctx, actor, project, next, change{
		action:  workflow.ActionEdit,
		fields:  fields,
		details: map[string]interface{}{"fields": changed},
	})
}

func (s *projectService) Withdraw(ctx context.Context, actor ActivityActor, id uint) (dto.ProjectResponse, error) {
	project, next, err := s.prepare(ctx, actor, id, workflow.ActionWithdraw)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	return s.commit(ctx, actor, project, next, change{action: workflow.ActionWithdraw})
}

func (s *projectService) Resubmit(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectResubmitRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationError(err)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return dto.ProjectResponse{}, requiredField("prompt")
	}

	project, next, err := s.prepare(ctx, actor, id, workflow.ActionResubmit)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	title := project.Title
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			return dto.ProjectResponse{}, requiredField("title")
		}
	}

	urls, err := s.imageURLs(ctx, project.ID)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	evaluation, err := s.resolveEvaluation(ctx, req.Evaluation, title, prompt, project.TemplateID, urls)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	return s.commit(ctx, actor, project, next, change{
		action: workflow.ActionResubmit,
		fields: map[string]interface{}{
			"title":            title,
			"prompt":           prompt,
			"evaluation":       evaluation,
			"rejection_reason": nil,
		},
	})
}

func (s *projectService) Improve(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectImproveRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationError(err)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return dto.ProjectResponse{}, requiredField("prompt")
	}
	reason := strings.TrimSpace(s.sanitizer.Sanitize(req.Reason))
	if reason == "" {
		return dto.ProjectResponse{}, requiredField("reason")
	}

	project, next, err := s.prepare(ctx, actor, id, workflow.ActionImprove)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	urls, err := s.imageURLs(ctx, project.ID)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	evaluation, err := s.resolveEvaluation(ctx, req.Evaluation, project.Title, prompt, project.TemplateID, urls)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	return s.commit(ctx, actor, project, next, change{
		action: workflow.ActionImprove,
		fields: map[string]interface{}{
			"prompt":                prompt,
			"evaluation":            evaluation,
			"html_content":          nil,
			"rejection_reason":      nil,
			"teacher_feedback":      nil,
			"feedback_requested_at": nil,
		},
		reason:  &reason,
		details: map[string]interface{}{"reason": reason},
	})
}

func (s *projectService) Approve(ctx context.Context, actor ActivityActor, id uint) (dto.ProjectResponse, error) {
	project, next, err := s.prepare(ctx, actor, id, workflow.ActionApprove)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	urls, err := s.imageURLs(ctx, project.ID)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	html, err := s.ai.Generate(ctx, dto.GenerateRequest{
		Title:     project.Title,
		Prompt:    project.Prompt,
		ImageURLs: urls,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("project_id", project.ID).Msg("approval aborted, generation failed")
		return dto.ProjectResponse{}, err
	}

	return s.commit(ctx, actor, project, next, change{
		action: workflow.ActionApprove,
		fields: map[string]interface{}{
			"html_content":     html,
			"rejection_reason": nil,
		},
		details: map[string]interface{}{"approved_by": actor.ID},
	})
}

func (s *projectService) Reject(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectRejectRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationError(err)
	}
	reason := strings.TrimSpace(s.sanitizer.Sanitize(req.Reason))
	if reason == "" {
		return dto.ProjectResponse{}, requiredField("reason")
	}

	project, next, err := s.prepare(ctx, actor, id, workflow.ActionReject)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	return s.commit(ctx, actor, project, next, change{
		action:  workflow.ActionReject,
		fields:  map[string]interface{}{"rejection_reason": reason},
		details: map[string]interface{}{"reason": reason},
	})
}

func (s *projectService) RequestFeedback(ctx context.Context, actor ActivityActor, id uint, req dto.ProjectFeedbackRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, validationError(err)
	}
	feedback := strings.TrimSpace(s.sanitizer.Sanitize(req.Feedback))
	if feedback == "" {
		return dto.ProjectResponse{}, requiredField("feedback")
	}

	project, next, err := s.prepare(ctx, actor, id, workflow.ActionRequestFeedback)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	return s.commit(ctx, actor, project, next, change{
		action: workflow.ActionRequestFeedback,
		fields: map[string]interface{}{
			"teacher_feedback":      feedback,
			"feedback_requested_at": s.now().UTC(),
		},
		details: map[string]interface{}{"feedback": feedback},
	})
}

func (s *projectService) Delete(ctx context.Context, actor ActivityActor, id uint) error {
	role, err := actorRole(actor)
	if err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "projects.delete", trace.WithAttributes(
		attribute.Int64("project.id", int64(id)),
	))
	defer span.End()

	project, err := s.store.Projects().GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, ErrProjectNotFound)
	}
	if err := workflow.Permitted(workflow.ActionDelete, role, project.OwnerID == actor.ID); err != nil {
		return workflowError(err)
	}

	images, err := s.store.Images().ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	if len(images) > 0 && s.storage == nil {
		return storageError("delete attachments", errors.New("object storage is not configured"))
	}
	for _, image := range images {
		if err := s.storage.Delete(ctx, image.StoragePath); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return storageError("delete attachment", err)
		}
	}

	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Images().DeleteByProject(ctx, project.ID); err != nil {
			return fmt.Errorf("delete images: %w", err)
		}
		if err := tx.Versions().DeleteByProject(ctx, project.ID); err != nil {
			return fmt.Errorf("delete versions: %w", err)
		}
		if err := tx.Projects().Delete(ctx, project.ID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		_, err := s.audit.Record(ctx, tx, ActivityEntry{
			Actor:     actor,
			Action:    activityActions[workflow.ActionDelete],
			ProjectID: &project.ID,
			OldStatus: project.Status,
			Details: map[string]interface{}{
				"title":  project.Title,
				"images": len(images),
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.committed(ctx, TransitionEvent{
		Project:   project,
		Action:    workflow.ActionDelete,
		OldStatus: project.Status,
		Actor:     actor,
		At:        s.now().UTC(),
		Deleted:   true,
	})
	return nil
}

func (s *projectService) Get(ctx context.Context, actor ActivityActor, id uint) (dto.ProjectResponse, error) {
	project, err := s.readable(ctx, actor, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}
	return dto.NewProjectResponse(project), nil
}

func (s *projectService) List(ctx context.Context, actor ActivityActor, req dto.ProjectListRequest) ([]dto.ProjectResponse, error) {
	role, err := actorRole(actor)
	if err != nil {
		return nil, err
	}

	filter := repository.ProjectFilter{TemplateID: req.TemplateID}
	if role == workflow.RoleStudent {
		owner := actor.ID
		filter.OwnerID = &owner
	} else {
		filter.OwnerID = req.OwnerID
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := workflow.ParseStatus(strings.TrimSpace(req.Status))
		if err != nil {
			return nil, validationError(err)
		}
		filter.Status = status
	}

	return s.list(ctx, filter, req, SortNewest)
}

func (s *projectService) ListPending(ctx context.Context, actor ActivityActor, req dto.ProjectListRequest) ([]dto.ProjectResponse, error) {
	role, err := actorRole(actor)
	if err != nil {
		return nil, err
	}
	if role != workflow.RoleTeacher {
		return nil, fmt.Errorf("%w: only teachers review pending projects", ErrForbidden)
	}

	filter := repository.ProjectFilter{
		OwnerID:    req.OwnerID,
		TemplateID: req.TemplateID,
		Status:     workflow.StatusPending,
	}
	return s.list(ctx, filter, req, SortOldest)
}

func (s *projectService) Versions(ctx context.Context, actor ActivityActor, id uint) ([]dto.VersionResponse, error) {
	project, err := s.readable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	versions, err := s.store.Versions().ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.VersionResponse, 0, len(versions))
	for _, version := range versions {
		responses = append(responses, dto.NewVersionResponse(version))
	}
	return responses, nil
}

func (s *projectService) list(ctx context.Context, filter repository.ProjectFilter, req dto.ProjectListRequest, defaultSort string) ([]dto.ProjectResponse, error) {
	projects, err := s.store.Projects().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	sortKey := strings.TrimSpace(req.Sort)
	if sortKey == "" {
		sortKey = defaultSort
	}
	projects = SortProjects(FilterProjects(projects, req.Search), sortKey)
	return dto.NewProjectResponseSlice(projects), nil
}

// readable loads a project the actor may see. Students only see their own.
func (s *projectService) readable(ctx context.Context, actor ActivityActor, id uint) (models.Project, error) {
	role, err := actorRole(actor)
	if err != nil {
		return models.Project{}, err
	}

	project, err := s.store.Projects().GetByID(ctx, id)
	if err != nil {
		return models.Project{}, notFoundOr(err, ErrProjectNotFound)
	}
	if role == workflow.RoleStudent && project.OwnerID != actor.ID {
		return models.Project{}, fmt.Errorf("%w: project belongs to another student", ErrForbidden)
	}
	return project, nil
}

// prepare loads the project and checks the actor and the transition table.
func (s *projectService) prepare(ctx context.Context, actor ActivityActor, id uint, action workflow.Action) (models.Project, workflow.Status, error) {
	role, err := actorRole(actor)
	if err != nil {
		return models.Project{}, "", err
	}

	project, err := s.store.Projects().GetByID(ctx, id)
	if err != nil {
		return models.Project{}, "", notFoundOr(err, ErrProjectNotFound)
	}
	if err := workflow.Permitted(action, role, project.OwnerID == actor.ID); err != nil {
		return models.Project{}, "", workflowError(err)
	}
	next, err := workflow.Next(project.Status, action)
	if err != nil {
		return models.Project{}, "", workflowError(err)
	}
	return project, next, nil
}

// commit applies a guarded status update, the optional version snapshot and
// the activity entry in one transaction, then notifies observers.
func (s *projectService) commit(ctx context.Context, actor ActivityActor, project models.Project, next workflow.Status, c change) (dto.ProjectResponse, error) {
	ctx, span := s.tracer.Start(ctx, "projects."+string(c.action), trace.WithAttributes(
		attribute.Int64("project.id", int64(project.ID)),
		attribute.String("project.from", string(project.Status)),
		attribute.String("project.to", string(next)),
	))
	defer span.End()

	fields := make(map[string]interface{}, len(c.fields)+1)
	for key, value := range c.fields {
		fields[key] = value
	}
	fields["status"] = next

	details := make(map[string]interface{}, len(c.details)+1)
	for key, value := range c.details {
		details[key] = value
	}

	var updated models.Project
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		rows, err := tx.Projects().UpdateGuarded(ctx, project.ID, project.Status, project.Revision, fields)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if rows == 0 {
			return ErrProjectChanged
		}

		updated, err = tx.Projects().GetByID(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("reload project: %w", err)
		}

		if workflow.AppendsVersion(c.action) {
			version, err := s.audit.AppendVersion(ctx, tx, updated, c.reason)
			if err != nil {
				return err
			}
			details["version"] = version.Sequence
		}

		_, err = s.audit.Record(ctx, tx, ActivityEntry{
			Actor:     actor,
			Action:    activityActions[c.action],
			ProjectID: &project.ID,
			OldStatus: project.Status,
			NewStatus: next,
			Details:   details,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.ProjectResponse{}, err
	}

	s.committed(ctx, TransitionEvent{
		Project:   updated,
		Action:    c.action,
		OldStatus: project.Status,
		NewStatus: next,
		Actor:     actor,
		At:        s.now().UTC(),
	})

	return dto.NewProjectResponse(updated), nil
}

func (s *projectService) committed(ctx context.Context, event TransitionEvent) {
	to := string(event.NewStatus)
	if event.Deleted {
		to = "deleted"
	}
	observability.ProjectTransitions().WithLabelValues(string(event.Action), to).Inc()

	s.logger.Info().
		Uint("project_id", event.Project.ID).
		Uint("actor_id", event.Actor.ID).
		Str("action", string(event.Action)).
		Str("from", string(event.OldStatus)).
		Str("to", to).
		Msg("project transition committed")

	s.observers.notify(ctx, s.logger, event)
}

// resolveEvaluation returns the client supplied evaluation when present and
// otherwise asks the evaluation service.
func (s *projectService) resolveEvaluation(ctx context.Context, raw json.RawMessage, title, prompt string, templateID *uint, imageURLs []string) (datatypes.JSON, error) {
	var evaluation ai.Evaluation
	if hasEvaluation(raw) {
		if err := json.Unmarshal(raw, &evaluation); err != nil {
			return nil, validationError(fmt.Errorf("evaluation: %w", err))
		}
	} else {
		evaluated, err := s.ai.Evaluate(ctx, dto.EvaluateRequest{
			Title:      title,
			Prompt:     prompt,
			TemplateID: templateID,
			ImageURLs:  imageURLs,
		})
		if err != nil {
			return nil, err
		}
		evaluation = evaluated
	}

	encoded, err := json.Marshal(evaluation)
	if err != nil {
		return nil, fmt.Errorf("encode evaluation: %w", err)
	}
	return datatypes.JSON(encoded), nil
}

func (s *projectService) imageURLs(ctx context.Context, projectID uint) ([]string, error) {
	images, err := s.store.Images().ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(images))
	for _, image := range images {
		urls = append(urls, image.URL)
	}
	return urls, nil
}

func hasEvaluation(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

func actorRole(actor ActivityActor) (workflow.Role, error) {
	if actor.ID == 0 {
		return "", ErrUnauthorized
	}
	switch role := workflow.Role(normalizeRole(actor.Role)); role {
	case workflow.RoleStudent, workflow.RoleTeacher:
		return role, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
}
