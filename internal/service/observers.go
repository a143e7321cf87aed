package service

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// ObjectStorage stores attachment bytes under a storage path.
type ObjectStorage interface {
	Upload(ctx context.Context, storagePath string, reader io.Reader) (string, error)
	Delete(ctx context.Context, storagePath string) error
}

// TransitionEvent describes a committed lifecycle change.
type TransitionEvent struct {
	Project   models.Project
	Action    workflow.Action
	OldStatus workflow.Status
	NewStatus workflow.Status
	Actor     ActivityActor
	At        time.Time
	Deleted   bool
}

// TransitionObserver reacts to committed transitions. Errors are logged by
// the caller and never undo the transition.
type TransitionObserver interface {
	OnTransition(ctx context.Context, event TransitionEvent) error
}

type observerSet []TransitionObserver

func (o observerSet) notify(ctx context.Context, logger zerolog.Logger, event TransitionEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, observer := range o {
		if observer == nil {
			continue
		}
		if err := observer.OnTransition(ctx, event); err != nil {
			logger.Warn().
				Err(err).
				Uint("project_id", event.Project.ID).
				Str("action", string(event.Action)).
				Msg("transition side effect failed")
		}
	}
}
