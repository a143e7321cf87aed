package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/repository"
)

func TestClassReportCountsPerStudent(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	reports := NewReportService(f.store, nil, 0, zerolog.Nop())

	first := submitProject(t, f)
	_, err := f.svc.Approve(ctx, teacherActor, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Improve(ctx, studentActor, first.ID, dto.ProjectImproveRequest{Prompt: "개선", Reason: "더 재미있게"})
	require.NoError(t, err)

	second := submitProject(t, f)
	_, err = f.svc.Reject(ctx, teacherActor, second.ID, dto.ProjectRejectRequest{Reason: "불명확"})
	require.NoError(t, err)

	report, err := reports.ClassReport(ctx, teacherActor)
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalProjects)
	require.Len(t, report.Students, 2)

	minji := report.Students[0]
	require.Equal(t, studentActor.ID, minji.StudentID)
	require.Equal(t, 2, minji.Total)
	require.Equal(t, 1, minji.Pending)
	require.Equal(t, 1, minji.Rejected)
	require.Zero(t, minji.Approved)
	require.Equal(t, int64(1), minji.Improvements, "the approval snapshot is not an improvement")
	require.Equal(t, 7.0, minji.AverageScore)

	seojun := report.Students[1]
	require.Equal(t, otherStudentActor.ID, seojun.StudentID)
	require.Zero(t, seojun.Total)
	require.Zero(t, seojun.AverageScore)

	_, err = reports.ClassReport(ctx, studentActor)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestClassReportIsCachedUntilTransition(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reports := NewReportService(f.store, client, time.Minute, zerolog.Nop())
	submitProject(t, f)

	report, err := reports.ClassReport(ctx, teacherActor)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalProjects)
	require.True(t, mr.Exists(classReportCacheKey))

	var cached dto.ClassReport
	raw, err := mr.Get(classReportCacheKey)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	require.Equal(t, 1, cached.TotalProjects)

	submitProject(t, f)
	stale, err := reports.ClassReport(ctx, teacherActor)
	require.NoError(t, err)
	require.Equal(t, 1, stale.TotalProjects, "served from cache")

	require.NoError(t, reports.OnTransition(ctx, TransitionEvent{}))
	require.False(t, mr.Exists(classReportCacheKey))

	fresh, err := reports.ClassReport(ctx, teacherActor)
	require.NoError(t, err)
	require.Equal(t, 2, fresh.TotalProjects)
}

func TestClassReportToleratesCacheOutage(t *testing.T) {
	f := newProjectFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	reports := NewReportService(f.store, client, time.Minute, zerolog.Nop())

	submitProject(t, f)
	mr.Close()

	report, err := reports.ClassReport(context.Background(), teacherActor)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalProjects)
}

// midBuildStore runs onUsers the first time the report reads the roster.
type midBuildStore struct {
	repository.Store
	onUsers func()
}

func (s *midBuildStore) Users() repository.UserRepository {
	if s.onUsers != nil {
		hook := s.onUsers
		s.onUsers = nil
		hook()
	}
	return s.Store.Users()
}

func TestClassReportDiscardsRebuildInvalidatedMidway(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &midBuildStore{Store: f.store}
	reports := NewReportService(store, client, time.Minute, zerolog.Nop())
	submitProject(t, f)

	store.onUsers = func() {
		require.NoError(t, reports.Invalidate(ctx))
	}
	report, err := reports.ClassReport(ctx, teacherActor)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalProjects)
	require.False(t, mr.Exists(classReportCacheKey), "a report built across an invalidation must not be cached")

	generation, err := mr.Get(classReportGenerationKey)
	require.NoError(t, err)
	require.Equal(t, "1", generation)

	_, err = reports.ClassReport(ctx, teacherActor)
	require.NoError(t, err)
	require.True(t, mr.Exists(classReportCacheKey))
}
