package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
	"github.com/noah-isme/promptlab-api/pkg/ai"
)

func submitProject(t *testing.T, f *projectFixture) dto.ProjectResponse {
	t.Helper()
	project, err := f.svc.Submit(context.Background(), studentActor, dto.ProjectSubmitRequest{
		TemplateID: f.template.ID,
		Title:      "일차함수 그래프 탐험",
		Prompt:     "기울기와 y절편을 슬라이더로 바꾸면 그래프가 움직이는 콘텐츠",
	})
	require.NoError(t, err)
	return project
}

func activityFor(t *testing.T, f *projectFixture, projectID uint) []models.ActivityLog {
	t.Helper()
	entries, _, err := f.store.Activity().List(context.Background(), repository.ActivityLogFilter{ProjectID: &projectID})
	require.NoError(t, err)
	return entries
}

func versionsFor(t *testing.T, f *projectFixture, projectID uint) []models.Version {
	t.Helper()
	versions, err := f.store.Versions().ListByProject(context.Background(), projectID)
	require.NoError(t, err)
	return versions
}

func loadProject(t *testing.T, f *projectFixture, id uint) models.Project {
	t.Helper()
	project, err := f.store.Projects().GetByID(context.Background(), id)
	require.NoError(t, err)
	return project
}

func requireHTMLMatchesStatus(t *testing.T, project models.Project) {
	t.Helper()
	require.Equal(t, project.Status == workflow.StatusApproved, project.HTMLContent != nil,
		"html_content must be present exactly when the project is approved (status %s)", project.Status)
}

func TestSubmitCreatesPendingProjectWithFirstVersion(t *testing.T) {
	f := newProjectFixture(t)

	project := submitProject(t, f)

	require.Equal(t, workflow.StatusPending, project.Status)
	require.Equal(t, "김민지", project.OwnerName)
	require.Nil(t, project.HTMLContent)
	require.NotNil(t, project.Evaluation)
	require.Equal(t, ai.DefaultScore, project.Evaluation.Scores.Creativity, "missing creativity renders as the default score")
	require.Equal(t, 8.0, project.Evaluation.Scores.Clarity)

	versions := versionsFor(t, f, project.ID)
	require.Len(t, versions, 1)
	require.Equal(t, uint(1), versions[0].Sequence)
	require.Equal(t, workflow.StatusPending, versions[0].Status)

	entries := activityFor(t, f, project.ID)
	require.Len(t, entries, 1)
	require.Equal(t, "project.submitted", entries[0].Action)
	require.Nil(t, entries[0].OldStatus)
	require.Equal(t, "pending", *entries[0].NewStatus)

	require.Len(t, f.ai.evaluations, 1)
	require.NotNil(t, f.ai.evaluations[0].Template, "template context is passed to the evaluator")
	require.Equal(t, "함수", f.ai.evaluations[0].Template.DomainLabel)
	require.Equal(t, []string{"submit"}, f.observer.actions())
}

func TestSubmitUsesClientEvaluationWithoutCallingEvaluator(t *testing.T) {
	f := newProjectFixture(t)

	project, err := f.svc.Submit(context.Background(), studentActor, dto.ProjectSubmitRequest{
		TemplateID: f.template.ID,
		Title:      "원의 넓이",
		Prompt:     "반지름을 바꾸면 넓이가 바뀌는 시뮬레이션",
		Evaluation: json.RawMessage(`{"scores":{"creativity":"9","overall":8},"feedback":"멋져요"}`),
	})
	require.NoError(t, err)
	require.Equal(t, 0, f.ai.evaluationCount())
	require.Equal(t, 9.0, project.Evaluation.Scores.Creativity)
	require.Equal(t, "멋져요", project.Evaluation.Feedback)
}

func TestSubmitClientEvaluationWithNonFiniteScoreRendersDefault(t *testing.T) {
	f := newProjectFixture(t)

	project, err := f.svc.Submit(context.Background(), studentActor, dto.ProjectSubmitRequest{
		TemplateID: f.template.ID,
		Title:      "삼각형 넓이",
		Prompt:     "밑변과 높이를 바꾸면 넓이가 바뀌는 콘텐츠",
		Evaluation: json.RawMessage(`{"scores":{"creativity":"NaN","overall":7}}`),
	})
	require.NoError(t, err)
	require.Equal(t, ai.DefaultScore, project.Evaluation.Scores.Creativity)
	require.Equal(t, 7.0, project.Evaluation.Scores.Overall)
	require.Len(t, versionsFor(t, f, project.ID), 1)
}

func TestSubmitValidation(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	inactive := seedTemplate(t, f.db, false)

	_, err := f.svc.Submit(ctx, studentActor, dto.ProjectSubmitRequest{TemplateID: inactive.ID, Title: "t", Prompt: "p"})
	require.ErrorIs(t, err, ErrTemplateInactive)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Submit(ctx, studentActor, dto.ProjectSubmitRequest{TemplateID: 9999, Title: "t", Prompt: "p"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Submit(ctx, studentActor, dto.ProjectSubmitRequest{TemplateID: f.template.ID, Title: "   ", Prompt: "p"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Submit(ctx, studentActor, dto.ProjectSubmitRequest{TemplateID: f.template.ID, Title: "t", Prompt: "p", Evaluation: json.RawMessage(`[1,2]`)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Submit(ctx, teacherActor, dto.ProjectSubmitRequest{TemplateID: f.template.ID, Title: "t", Prompt: "p"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Submit(ctx, ActivityActor{}, dto.ProjectSubmitRequest{TemplateID: f.template.ID, Title: "t", Prompt: "p"})
	require.ErrorIs(t, err, ErrUnauthorized)

	var count int64
	require.NoError(t, f.db.Model(&models.Project{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubmitEvaluationFailureCreatesNothing(t *testing.T) {
	f := newProjectFixture(t)
	f.ai.evaluateErr = errUpstreamDown

	_, err := f.svc.Submit(context.Background(), studentActor, dto.ProjectSubmitRequest{
		TemplateID: f.template.ID, Title: "t", Prompt: "p",
	})
	require.ErrorIs(t, err, ErrUpstream)

	var count int64
	require.NoError(t, f.db.Model(&models.Project{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRejectWritesActivityWithoutVersion(t *testing.T) {
	f := newProjectFixture(t)
	project := submitProject(t, f)

	rejected, err := f.svc.Reject(context.Background(), teacherActor, project.ID, dto.ProjectRejectRequest{Reason: "수학 개념이 <b>부족</b>해요"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	require.Equal(t, "수학 개념이 부족해요", *rejected.RejectionReason)

	require.Len(t, versionsFor(t, f, project.ID), 1)

	entries := activityFor(t, f, project.ID)
	require.Len(t, entries, 2)
	require.Equal(t, "project.rejected", entries[0].Action)
	require.Equal(t, "pending", *entries[0].OldStatus)
	require.Equal(t, "rejected", *entries[0].NewStatus)
	require.Equal(t, "teacher", entries[0].ActorRole)
	requireHTMLMatchesStatus(t, loadProject(t, f, project.ID))
}

func TestWithdrawThenResubmitAppendsOneVersion(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	withdrawn, err := f.svc.Withdraw(ctx, studentActor, project.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusWithdrawn, withdrawn.Status)
	require.Len(t, versionsFor(t, f, project.ID), 1)

	resubmitted, err := f.svc.Resubmit(ctx, studentActor, project.ID, dto.ProjectResubmitRequest{Prompt: "그래프 두 개를 비교하는 콘텐츠"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, resubmitted.Status)
	require.Equal(t, "그래프 두 개를 비교하는 콘텐츠", resubmitted.Prompt)
	require.Nil(t, resubmitted.RejectionReason)

	versions := versionsFor(t, f, project.ID)
	require.Len(t, versions, 2)
	require.Equal(t, uint(2), versions[0].Sequence)
	require.Equal(t, workflow.StatusPending, versions[0].Status)
	require.Equal(t, "그래프 두 개를 비교하는 콘텐츠", versions[0].Prompt)
}

func TestResubmitAfterRejectionClearsReason(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	_, err := f.svc.Reject(ctx, teacherActor, project.ID, dto.ProjectRejectRequest{Reason: "구체적이지 않아요"})
	require.NoError(t, err)

	resubmitted, err := f.svc.Resubmit(ctx, studentActor, project.ID, dto.ProjectResubmitRequest{Prompt: "더 구체적인 프롬프트"})
	require.NoError(t, err)
	require.Nil(t, resubmitted.RejectionReason)
	require.Len(t, versionsFor(t, f, project.ID), 2)

	_, err = f.svc.Resubmit(ctx, studentActor, project.ID, dto.ProjectResubmitRequest{Prompt: "again"})
	require.ErrorIs(t, err, ErrStateConflict, "pending projects cannot be resubmitted")
}

func TestApproveGeneratesHTMLAndAppendsVersion(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	image, err := f.images.Upload(ctx, studentActor, project.ID, ImageUpload{FileName: "sketch.png", Reader: bytes.NewReader(pngBytes(1))})
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, teacherActor, project.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, approved.Status)
	require.NotNil(t, approved.HTMLContent)
	require.Equal(t, f.ai.html, *approved.HTMLContent)

	require.Len(t, f.ai.generations, 1)
	require.Equal(t, []string{image.URL}, f.ai.generations[0].ImageURLs)

	versions := versionsFor(t, f, project.ID)
	require.Len(t, versions, 2)
	require.Equal(t, workflow.StatusApproved, versions[0].Status)
	require.NotNil(t, versions[0].HTMLContent)

	entries := activityFor(t, f, project.ID)
	require.Equal(t, "project.approved", entries[0].Action)
	require.EqualValues(t, 2, entries[0].Details["version"])
	requireHTMLMatchesStatus(t, loadProject(t, f, project.ID))
}

func TestApproveGenerationFailureLeavesProjectUntouched(t *testing.T) {
	f := newProjectFixture(t)
	project := submitProject(t, f)
	before := loadProject(t, f, project.ID)
	f.ai.generateErr = errUpstreamDown

	_, err := f.svc.Approve(context.Background(), teacherActor, project.ID)
	require.ErrorIs(t, err, ErrUpstream)

	after := loadProject(t, f, project.ID)
	require.Equal(t, workflow.StatusPending, after.Status)
	require.Nil(t, after.HTMLContent)
	require.Equal(t, before.Revision, after.Revision)
	require.Len(t, versionsFor(t, f, project.ID), 1)
	require.Len(t, activityFor(t, f, project.ID), 1)
	require.Equal(t, []string{"submit"}, f.observer.actions())
}

func TestTeacherDecisionsRequirePendingProject(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	_, err := f.svc.Reject(ctx, teacherActor, project.ID, dto.ProjectRejectRequest{Reason: "다시"})
	require.NoError(t, err)
	before := loadProject(t, f, project.ID)

	_, err = f.svc.Approve(ctx, teacherActor, project.ID)
	require.ErrorIs(t, err, ErrStateConflict)
	_, err = f.svc.Reject(ctx, teacherActor, project.ID, dto.ProjectRejectRequest{Reason: "또"})
	require.ErrorIs(t, err, ErrStateConflict)
	_, err = f.svc.RequestFeedback(ctx, teacherActor, project.ID, dto.ProjectFeedbackRequest{Feedback: "f"})
	require.ErrorIs(t, err, ErrStateConflict)

	after := loadProject(t, f, project.ID)
	require.Equal(t, before.Status, after.Status)
	require.Equal(t, before.Revision, after.Revision)
	require.Equal(t, *before.RejectionReason, *after.RejectionReason)
	require.Empty(t, f.ai.generations, "generation must not run for an invalid transition")
}

func TestStudentsCannotDecide(t *testing.T) {
	f := newProjectFixture(t)
	project := submitProject(t, f)

	_, err := f.svc.Approve(context.Background(), studentActor, project.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Withdraw(context.Background(), otherStudentActor, project.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Withdraw(context.Background(), teacherActor, project.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestConcurrentDecisionLosesGuardedUpdate(t *testing.T) {
	f := newProjectFixture(t)
	project := submitProject(t, f)

	secondTeacher := ActivityActor{ID: 2, Role: "teacher"}
	f.ai.onGenerate = func() {
		_, err := f.svc.Reject(context.Background(), secondTeacher, project.ID, dto.ProjectRejectRequest{Reason: "먼저 반려"})
		require.NoError(t, err)
	}

	_, err := f.svc.Approve(context.Background(), teacherActor, project.ID)
	require.ErrorIs(t, err, ErrProjectChanged)
	require.ErrorIs(t, err, ErrStateConflict)

	stored := loadProject(t, f, project.ID)
	require.Equal(t, workflow.StatusRejected, stored.Status)
	require.Nil(t, stored.HTMLContent)
	require.Len(t, versionsFor(t, f, project.ID), 1)
}

func TestImproveApprovedProjectReopensIt(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	_, err := f.svc.Approve(ctx, teacherActor, project.ID)
	require.NoError(t, err)

	_, err = f.svc.Improve(ctx, studentActor, project.ID, dto.ProjectImproveRequest{Prompt: "개선된 프롬프트", Reason: "   "})
	require.ErrorIs(t, err, ErrValidation)

	improved, err := f.svc.Improve(ctx, studentActor, project.ID, dto.ProjectImproveRequest{
		Prompt: "두 직선의 교점을 찾는 게임",
		Reason: "연립방정식 개념을 추가하고 싶어요",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, improved.Status)
	require.Nil(t, improved.HTMLContent)
	require.Nil(t, improved.TeacherFeedback)

	versions := versionsFor(t, f, project.ID)
	require.Len(t, versions, 3)
	require.Equal(t, workflow.StatusPending, versions[0].Status)
	require.NotNil(t, versions[0].ImprovementReason)
	require.Equal(t, "연립방정식 개념을 추가하고 싶어요", *versions[0].ImprovementReason)
	require.Equal(t, "두 직선의 교점을 찾는 게임", versions[0].Prompt)
	requireHTMLMatchesStatus(t, loadProject(t, f, project.ID))
}

func TestRequestFeedbackThenResubmitKeepsFeedback(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	requested, err := f.svc.RequestFeedback(ctx, teacherActor, project.ID, dto.ProjectFeedbackRequest{Feedback: "그래프 범위를 정해 주세요"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusFeedbackRequested, requested.Status)
	require.NotNil(t, requested.FeedbackRequestedAt)
	require.Equal(t, "그래프 범위를 정해 주세요", *requested.TeacherFeedback)
	require.Len(t, versionsFor(t, f, project.ID), 1)

	resubmitted, err := f.svc.Resubmit(ctx, studentActor, project.ID, dto.ProjectResubmitRequest{Prompt: "x는 -10부터 10까지"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, resubmitted.Status)
	require.NotNil(t, resubmitted.TeacherFeedback)
}

func TestEditUpdatesPendingProjectInPlace(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	title := "새 제목"
	edited, err := f.svc.Edit(ctx, studentActor, project.ID, dto.ProjectEditRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "새 제목", edited.Title)
	require.Equal(t, 1, f.ai.evaluationCount(), "title-only edits keep the evaluation")

	prompt := "완전히 다른 프롬프트"
	edited, err = f.svc.Edit(ctx, studentActor, project.ID, dto.ProjectEditRequest{Prompt: &prompt})
	require.NoError(t, err)
	require.Equal(t, prompt, edited.Prompt)
	require.Equal(t, 2, f.ai.evaluationCount())
	require.Len(t, versionsFor(t, f, project.ID), 1)
	require.Equal(t, "project.edited", activityFor(t, f, project.ID)[0].Action)

	_, err = f.svc.Edit(ctx, otherStudentActor, project.ID, dto.ProjectEditRequest{Title: &title})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Edit(ctx, studentActor, project.ID, dto.ProjectEditRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Withdraw(ctx, studentActor, project.ID)
	require.NoError(t, err)
	_, err = f.svc.Edit(ctx, studentActor, project.ID, dto.ProjectEditRequest{Title: &title})
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestDeleteRemovesStorageThenRows(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	_, err := f.images.Upload(ctx, studentActor, project.ID, ImageUpload{FileName: "a.png", Reader: bytes.NewReader(pngBytes(1))})
	require.NoError(t, err)
	_, err = f.images.Upload(ctx, studentActor, project.ID, ImageUpload{FileName: "b.png", Reader: bytes.NewReader(pngBytes(2))})
	require.NoError(t, err)

	f.storage.deleteErr = errUpstreamDown
	err = f.svc.Delete(ctx, studentActor, project.ID)
	require.ErrorIs(t, err, ErrStorage)
	require.Equal(t, project.ID, loadProject(t, f, project.ID).ID)

	f.storage.deleteErr = nil
	err = f.svc.Delete(ctx, otherStudentActor, project.ID)
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, studentActor, project.ID))
	require.Len(t, f.storage.deleted, 2)
	require.Empty(t, f.storage.objects)

	_, err = f.svc.Get(ctx, studentActor, project.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)
	require.Empty(t, versionsFor(t, f, project.ID))

	entries := activityFor(t, f, project.ID)
	require.Equal(t, "project.deleted", entries[0].Action)
	require.Nil(t, entries[0].NewStatus)

	events := f.observer.events
	require.True(t, events[len(events)-1].Deleted)
}

func TestTeacherCanDeleteAnyProject(t *testing.T) {
	f := newProjectFixture(t)
	project := submitProject(t, f)

	require.NoError(t, f.svc.Delete(context.Background(), teacherActor, project.ID))
	err := f.svc.Delete(context.Background(), teacherActor, project.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListScopesAndSorts(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	for _, title := range []string{"다각형", "가우스 합", "나선"} {
		_, err := f.svc.Submit(ctx, studentActor, dto.ProjectSubmitRequest{TemplateID: f.template.ID, Title: title, Prompt: "프롬프트 " + title})
		require.NoError(t, err)
	}
	other, err := f.svc.Submit(ctx, otherStudentActor, dto.ProjectSubmitRequest{TemplateID: f.template.ID, Title: "확률 실험", Prompt: "주사위"})
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, studentActor, dto.ProjectListRequest{Sort: SortTitle})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	require.Equal(t, []string{"가우스 합", "나선", "다각형"}, []string{mine[0].Title, mine[1].Title, mine[2].Title})

	all, err := f.svc.List(ctx, teacherActor, dto.ProjectListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 4)

	searched, err := f.svc.List(ctx, teacherActor, dto.ProjectListRequest{Search: "박서준"})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	require.Equal(t, other.ID, searched[0].ID)

	_, err = f.svc.Reject(ctx, teacherActor, other.ID, dto.ProjectRejectRequest{Reason: "r"})
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx, teacherActor, dto.ProjectListRequest{})
	require.NoError(t, err)
	require.Len(t, pending, 3)

	_, err = f.svc.ListPending(ctx, studentActor, dto.ProjectListRequest{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.List(ctx, teacherActor, dto.ProjectListRequest{Status: "archived"})
	require.ErrorIs(t, err, ErrValidation)

	rejected, err := f.svc.List(ctx, teacherActor, dto.ProjectListRequest{Status: "rejected"})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
}

func TestReadsAreScopedToOwner(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()
	project := submitProject(t, f)

	_, err := f.svc.Get(ctx, otherStudentActor, project.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Versions(ctx, otherStudentActor, project.ID)
	require.ErrorIs(t, err, ErrForbidden)

	versions, err := f.svc.Versions(ctx, teacherActor, project.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.NotNil(t, versions[0].Evaluation)
}

func TestObserverFailureDoesNotUndoTransition(t *testing.T) {
	f := newProjectFixture(t)
	f.observer.err = errUpstreamDown

	project := submitProject(t, f)
	withdrawn, err := f.svc.Withdraw(context.Background(), studentActor, project.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusWithdrawn, withdrawn.Status)
	require.Equal(t, workflow.StatusWithdrawn, loadProject(t, f, project.ID).Status)
}
