package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// UserService keeps local profiles for identities issued by the identity provider.
type UserService interface {
	Register(ctx context.Context, actor ActivityActor, req dto.UserProfileRequest) (dto.UserResponse, error)
	GetMe(ctx context.Context, actor ActivityActor) (dto.UserResponse, error)
	List(ctx context.Context, actor ActivityActor, role string) ([]dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the profile service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

// Register creates the caller's profile on first call and updates name, email
// and avatar afterwards. The stored role never changes.
func (s *userService) Register(ctx context.Context, actor ActivityActor, req dto.UserProfileRequest) (dto.UserResponse, error) {
	role, err := actorRole(actor)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, validationError(err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return dto.UserResponse{}, requiredField("name")
	}

	existing, err := s.repo.GetByID(ctx, actor.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user := models.User{
			ID:        actor.ID,
			Name:      name,
			Email:     strings.TrimSpace(req.Email),
			Role:      string(role),
			AvatarURL: strings.TrimSpace(req.AvatarURL),
		}
		if err := s.repo.Create(ctx, &user); err != nil {
			return dto.UserResponse{}, err
		}
		s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Str("email", maskEmailAddress(user.Email)).Msg("user profile created")
		return dto.NewUserResponse(user), nil
	case err != nil:
		return dto.UserResponse{}, err
	}

	if existing.Role != string(role) {
		return dto.UserResponse{}, ErrRoleImmutable
	}

	existing.Name = name
	existing.Email = strings.TrimSpace(req.Email)
	existing.AvatarURL = strings.TrimSpace(req.AvatarURL)
	if err := s.repo.Update(ctx, &existing); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(existing), nil
}

func (s *userService) GetMe(ctx context.Context, actor ActivityActor) (dto.UserResponse, error) {
	role, err := actorRole(actor)
	if err != nil {
		return dto.UserResponse{}, err
	}
	user, err := s.repo.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.UserResponse{}, notFoundOr(err, ErrUserNotFound)
	}
	if user.Role != string(role) {
		return dto.UserResponse{}, ErrRoleImmutable
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, actor ActivityActor, role string) ([]dto.UserResponse, error) {
	if _, err := actorRole(actor); err != nil {
		return nil, err
	}
	if !actor.IsTeacher() {
		return nil, fmt.Errorf("%w: only teachers list users", ErrForbidden)
	}

	role = strings.ToLower(strings.TrimSpace(role))
	if role != "" && role != string(workflow.RoleStudent) && role != string(workflow.RoleTeacher) {
		return nil, validationError(fmt.Errorf("unknown role %q", role))
	}

	users, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, dto.NewUserResponse(user))
	}
	return responses, nil
}
