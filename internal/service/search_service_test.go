package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]projectDocument
	filters []string
	err     error
}

func (f *fakeIndex) Upsert(doc projectDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeIndex) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) Token(filter string, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return "tenant-token", nil
}

func TestSearchIndexFollowsTransitions(t *testing.T) {
	index := &fakeIndex{docs: map[string]projectDocument{}}
	svc := newSearchService(index, "http://search.local", zerolog.Nop())
	ctx := context.Background()

	project := models.Project{
		ID:      3,
		OwnerID: studentActor.ID,
		Owner:   models.User{Name: "김민지"},
		Title:   "확률 실험",
		Status:  workflow.StatusPending,
	}
	require.NoError(t, svc.OnTransition(ctx, TransitionEvent{Project: project, Action: workflow.ActionSubmit}))
	require.Equal(t, "김민지", index.docs["3"].OwnerName)
	require.Equal(t, "pending", index.docs["3"].Status)

	project.Status = workflow.StatusApproved
	require.NoError(t, svc.OnTransition(ctx, TransitionEvent{Project: project, Action: workflow.ActionApprove}))
	require.Equal(t, "approved", index.docs["3"].Status)

	require.NoError(t, svc.OnTransition(ctx, TransitionEvent{Project: project, Action: workflow.ActionDelete, Deleted: true}))
	require.Empty(t, index.docs)

	index.err = errUpstreamDown
	require.Error(t, svc.OnTransition(ctx, TransitionEvent{Project: project, Action: workflow.ActionSubmit}))
}

func TestSearchTokensAreScopedForStudents(t *testing.T) {
	index := &fakeIndex{docs: map[string]projectDocument{}}
	svc := newSearchService(index, "http://search.local", zerolog.Nop())
	ctx := context.Background()

	token, err := svc.Token(ctx, studentActor)
	require.NoError(t, err)
	require.Equal(t, "tenant-token", token.Token)
	require.Equal(t, "http://search.local", token.Host)
	require.Equal(t, projectSearchIndex, token.Index)

	_, err = svc.Token(ctx, teacherActor)
	require.NoError(t, err)
	require.Equal(t, []string{"owner_id = 10", ""}, index.filters)

	_, err = svc.Token(ctx, ActivityActor{})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSearchDisabledWithoutClient(t *testing.T) {
	svc := NewSearchService(nil, "", zerolog.Nop())

	require.NoError(t, svc.OnTransition(context.Background(), TransitionEvent{}))
	_, err := svc.Token(context.Background(), teacherActor)
	require.ErrorIs(t, err, ErrNotFound)
}
