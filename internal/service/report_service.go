package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/observability"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
	"github.com/noah-isme/promptlab-api/pkg/ai"
)

const (
	classReportCacheKey      = "report:class"
	classReportGenerationKey = "report:class:generation"
)

// errStaleReport aborts a cache write when an invalidation happened while the
// report was being built.
var errStaleReport = errors.New("class report invalidated during rebuild")

// ReportService builds the teacher's class progress report.
type ReportService interface {
	TransitionObserver
	ClassReport(ctx context.Context, actor ActivityActor) (dto.ClassReport, error)
	Invalidate(ctx context.Context) error
}

type reportService struct {
	store    repository.Store
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReportService constructs the report service. cache may be nil.
func NewReportService(store repository.Store, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ReportService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &reportService{
		store:    store,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "report_service").Logger(),
		now:      time.Now,
	}
}

func (s *reportService) ClassReport(ctx context.Context, actor ActivityActor) (dto.ClassReport, error) {
	if _, err := actorRole(actor); err != nil {
		return dto.ClassReport{}, err
	}
	if !actor.IsTeacher() {
		return dto.ClassReport{}, fmt.Errorf("%w: only teachers view class reports", ErrForbidden)
	}

	var (
		generation    int64
		generationErr error
	)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, classReportCacheKey).Result()
		switch {
		case err == nil:
			var report dto.ClassReport
			if unmarshalErr := json.Unmarshal([]byte(cached), &report); unmarshalErr == nil {
				observability.ReportCacheLookups().WithLabelValues("hit").Inc()
				return report, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Msg("failed to read class report cache")
		}
		observability.ReportCacheLookups().WithLabelValues("miss").Inc()
		generation, generationErr = s.generation(ctx, s.cache)
	}

	report, err := s.build(ctx)
	if err != nil {
		return dto.ClassReport{}, err
	}

	if s.cache != nil && generationErr == nil {
		s.storeIfCurrent(ctx, generation, report)
	}

	return report, nil
}

// Invalidate bumps the generation and drops the cached report atomically, so
// a rebuild that started earlier cannot write its result back.
func (s *reportService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, classReportGenerationKey)
		pipe.Del(ctx, classReportCacheKey)
		return nil
	})
	return err
}

func (s *reportService) storeIfCurrent(ctx context.Context, generation int64, report dto.ClassReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}

	err = s.cache.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != generation {
			return errStaleReport
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, classReportCacheKey, payload, s.cacheTTL)
			return nil
		})
		return err
	}, classReportGenerationKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleReport), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug().Int64("generation", generation).Msg("skipped caching a class report invalidated during rebuild")
	default:
		s.logger.Warn().Err(err).Msg("failed to store class report cache")
	}
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *reportService) generation(ctx context.Context, reader redisGetter) (int64, error) {
	value, err := reader.Get(ctx, classReportGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return value, err
}

func (s *reportService) OnTransition(ctx context.Context, _ TransitionEvent) error {
	return s.Invalidate(ctx)
}

func (s *reportService) build(ctx context.Context) (dto.ClassReport, error) {
	students, err := s.store.Users().List(ctx, string(workflow.RoleStudent))
	if err != nil {
		return dto.ClassReport{}, err
	}
	projects, err := s.store.Projects().List(ctx, repository.ProjectFilter{})
	if err != nil {
		return dto.ClassReport{}, err
	}

	ids := make([]uint, 0, len(projects))
	for _, project := range projects {
		ids = append(ids, project.ID)
	}
	// Submit, resubmit and improve snapshot a pending version; approvals do not.
	promptVersions, err := s.store.Versions().CountByProject(ctx, ids, workflow.StatusPending)
	if err != nil {
		return dto.ClassReport{}, err
	}

	rows := make(map[uint]*dto.StudentReport, len(students))
	for _, student := range students {
		rows[student.ID] = &dto.StudentReport{StudentID: student.ID, StudentName: student.Name}
	}

	scoreSums := map[uint]float64{}
	scoreCounts := map[uint]int{}
	for _, project := range projects {
		row, ok := rows[project.OwnerID]
		if !ok {
			row = &dto.StudentReport{StudentID: project.OwnerID, StudentName: project.Owner.Name}
			rows[project.OwnerID] = row
		}

		row.Total++
		switch project.Status {
		case workflow.StatusPending:
			row.Pending++
		case workflow.StatusApproved:
			row.Approved++
		case workflow.StatusRejected:
			row.Rejected++
		case workflow.StatusWithdrawn:
			row.Withdrawn++
		case workflow.StatusFeedbackRequested:
			row.Feedback++
		}
		if count := promptVersions[project.ID]; count > 1 {
			row.Improvements += count - 1
		}

		if overall, ok := overallScore(project.Evaluation); ok {
			scoreSums[project.OwnerID] += overall
			scoreCounts[project.OwnerID]++
		}
	}

	report := dto.ClassReport{
		GeneratedAt:   s.now().UTC(),
		TotalProjects: len(projects),
		Students:      make([]dto.StudentReport, 0, len(rows)),
	}
	for id, row := range rows {
		if n := scoreCounts[id]; n > 0 {
			row.AverageScore = math.Round(scoreSums[id]/float64(n)*100) / 100
		}
		report.Students = append(report.Students, *row)
	}
	sort.Slice(report.Students, func(i, j int) bool {
		return report.Students[i].StudentID < report.Students[j].StudentID
	})

	return report, nil
}

func overallScore(raw []byte) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var evaluation ai.Evaluation
	if err := json.Unmarshal(raw, &evaluation); err != nil || evaluation.Scores.Overall == nil {
		return 0, false
	}
	return *evaluation.Scores.Overall, true
}
