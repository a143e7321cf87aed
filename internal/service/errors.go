package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// Error categories surfaced to callers. Specific errors wrap one of these.
var (
	ErrUnauthorized  = errors.New("authentication required")
	ErrForbidden     = errors.New("forbidden")
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
	ErrUpstream      = errors.New("upstream service failed")
	ErrStorage       = errors.New("storage failed")
)

var (
	ErrProjectNotFound      = fmt.Errorf("project %w", ErrNotFound)
	ErrTemplateNotFound     = fmt.Errorf("template %w", ErrNotFound)
	ErrImageNotFound        = fmt.Errorf("image %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)

	ErrTemplateInactive = fmt.Errorf("%w: template is no longer active", ErrValidation)
	ErrProjectChanged   = fmt.Errorf("%w: project was changed by another request", ErrStateConflict)
	ErrRoleImmutable    = fmt.Errorf("%w: role cannot be changed", ErrForbidden)
	ErrProjectLocked    = fmt.Errorf("%w: attachments of an approved project cannot change", ErrStateConflict)
	ErrUploadTooLarge   = fmt.Errorf("%w: file exceeds maximum allowed size", ErrValidation)
	ErrUploadNotImage   = fmt.Errorf("%w: only image uploads are allowed", ErrValidation)
)

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func requiredField(name string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, name)
}

func upstreamError(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, operation, err)
}

func storageError(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, operation, err)
}

// notFoundOr maps gorm's not-found error onto the given sentinel.
func notFoundOr(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func workflowError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrActionNotPermitted):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	case errors.Is(err, workflow.ErrInvalidTransition):
		return fmt.Errorf("%w: %w", ErrStateConflict, err)
	}
	return err
}
