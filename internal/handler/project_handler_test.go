package handler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/handler"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

type mockProjectService struct {
	actor      service.ActivityActor
	lastID     uint
	submitted  dto.ProjectSubmitRequest
	rejected   dto.ProjectRejectRequest
	listed     dto.ProjectListRequest
	response   dto.ProjectResponse
	list       []dto.ProjectResponse
	err        error
	calledWith string
}

func (m *mockProjectService) record(method string, actor service.ActivityActor, id uint) {
	m.calledWith = method
	m.actor = actor
	m.lastID = id
}

func (m *mockProjectService) Submit(_ context.Context, actor service.ActivityActor, req dto.ProjectSubmitRequest) (dto.ProjectResponse, error) {
	m.record("submit", actor, 0)
	m.submitted = req
	return m.response, m.err
}

func (m *mockProjectService) Edit(_ context.Context, actor service.ActivityActor, id uint, _ dto.ProjectEditRequest) (dto.ProjectResponse, error) {
	m.record("edit", actor, id)
	return m.response, m.err
}

func (m *mockProjectService) Withdraw(_ context.Context, actor service.ActivityActor, id uint) (dto.ProjectResponse, error) {
	m.record("withdraw", actor, id)
	return m.response, m.err
}

func (m *mockProjectService) Resubmit(_ context.Context, actor service.ActivityActor, id uint, _ dto.ProjectResubmitRequest) (dto.ProjectResponse, error) {
	m.record("resubmit", actor, id)
	return m.response, m.err
}

func (m *mockProjectService) Improve(_ context.Context, actor service.ActivityActor, id uint, _ dto.ProjectImproveRequest) (dto.ProjectResponse, error) {
	m.record("improve", actor, id)
	return m.response, m.err
}

func (m *mockProjectService) Approve(_ context.Context, actor service.ActivityActor, id uint) (dto.ProjectResponse, error) {
	m.record("approve", actor, id)
	return m.response, m.err
}

func (m *mockProjectService) Reject(_ context.Context, actor service.ActivityActor, id uint, req dto.ProjectRejectRequest) (dto.ProjectResponse, error) {
	m.record("reject", actor, id)
	m.rejected = req
	return m.response, m.err
}

func (m *mockProjectService) RequestFeedback(_ context.Context, actor service.ActivityActor, id uint, _ dto.ProjectFeedbackRequest) (dto.ProjectResponse, error) {
	m.record("request-feedback", actor, id)
	return m.response, m.err
}

func (m *mockProjectService) Delete(_ context.Context, actor service.ActivityActor, id uint) error {
	m.record("delete", actor, id)
	return m.err
}

func (m *mockProjectService) Get(_ context.Context, actor service.ActivityActor, id uint) (dto.ProjectResponse, error) {
	m.record("get", actor, id)
	return m.response, m.err
}

func (m *mockProjectService) List(_ context.Context, actor service.ActivityActor, req dto.ProjectListRequest) ([]dto.ProjectResponse, error) {
	m.record("list", actor, 0)
	m.listed = req
	return m.list, m.err
}

func (m *mockProjectService) ListPending(_ context.Context, actor service.ActivityActor, req dto.ProjectListRequest) ([]dto.ProjectResponse, error) {
	m.record("pending", actor, 0)
	m.listed = req
	return m.list, m.err
}

func (m *mockProjectService) Versions(_ context.Context, actor service.ActivityActor, id uint) ([]dto.VersionResponse, error) {
	m.record("versions", actor, id)
	return nil, m.err
}

type mockImageService struct {
	upload   service.ImageUpload
	content  []byte
	response dto.ImageResponse
	err      error
}

func (m *mockImageService) Upload(_ context.Context, _ service.ActivityActor, _ uint, file service.ImageUpload) (dto.ImageResponse, error) {
	m.upload = file
	data, err := io.ReadAll(file.Reader)
	if err != nil {
		return dto.ImageResponse{}, err
	}
	m.content = data
	return m.response, m.err
}

func (m *mockImageService) List(context.Context, service.ActivityActor, uint) ([]dto.ImageResponse, error) {
	return []dto.ImageResponse{m.response}, m.err
}

func (m *mockImageService) Delete(context.Context, service.ActivityActor, uint, uint) error {
	return m.err
}

func newProjectApp(projects service.ProjectService, images service.ImageService, role string) *fiber.App {
	app, group := newTestApp("/api/projects", 7, role)
	handler.NewProjectHandler(projects, images, zerolog.Nop()).Register(group)
	return app
}

func TestProjectHandler_SubmitPassesActor(t *testing.T) {
	svc := &mockProjectService{response: dto.ProjectResponse{ID: 11, Status: workflow.StatusPending, Title: "함수 그래프"}}
	app := newProjectApp(svc, &mockImageService{}, "student")

	req := jsonRequest(t, http.MethodPost, "/api/projects", map[string]interface{}{
		"template_id": 3,
		"title":       "함수 그래프",
		"prompt":      "일차함수 그래프를 그려줘",
		"evaluation":  map[string]interface{}{"scores": map[string]interface{}{"clarity": 8}},
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body envelope[dto.ProjectResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, uint(11), body.Data.ID)
	require.Equal(t, workflow.StatusPending, body.Data.Status)

	require.Equal(t, service.ActivityActor{ID: 7, Role: "student"}, svc.actor)
	require.Equal(t, uint(3), svc.submitted.TemplateID)
	require.JSONEq(t, `{"scores":{"clarity":8}}`, string(svc.submitted.Evaluation))
}

func TestProjectHandler_DecisionRoutes(t *testing.T) {
	svc := &mockProjectService{response: dto.ProjectResponse{ID: 5, Status: workflow.StatusRejected}}
	app := newProjectApp(svc, &mockImageService{}, "teacher")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/projects/5/reject", map[string]string{"reason": "예시가 부족해요"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "reject", svc.calledWith)
	require.Equal(t, uint(5), svc.lastID)
	require.Equal(t, "예시가 부족해요", svc.rejected.Reason)

	for _, action := range []string{"approve", "withdraw"} {
		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/projects/5/"+action, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		require.Equal(t, action, svc.calledWith)
	}

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/projects/abc/approve", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProjectHandler_ListParsesFilters(t *testing.T) {
	svc := &mockProjectService{list: []dto.ProjectResponse{{ID: 1}, {ID: 2}}}
	app := newProjectApp(svc, &mockImageService{}, "teacher")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/projects?search=%EA%B0%80%EC%9A%B0%EC%8A%A4&sort=title&status=pending&owner_id=10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[[]dto.ProjectResponse]
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 2)
	require.JSONEq(t, `{"total":2}`, string(body.Meta))

	require.Equal(t, "가우스", svc.listed.Search)
	require.Equal(t, "title", svc.listed.Sort)
	require.Equal(t, "pending", svc.listed.Status)
	require.NotNil(t, svc.listed.OwnerID)
	require.Equal(t, uint(10), *svc.listed.OwnerID)
	require.Nil(t, svc.listed.TemplateID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/projects/pending", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "pending", svc.calledWith)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/projects?owner_id=x", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProjectHandler_ErrorMapping(t *testing.T) {
	validationErr := validator.New().Struct(dto.ProjectRejectRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unauthorized", err: service.ErrUnauthorized, status: fiber.StatusUnauthorized},
		{name: "forbidden", err: fmt.Errorf("%w: %w", service.ErrForbidden, workflow.ErrActionNotPermitted), status: fiber.StatusForbidden},
		{name: "validation", err: fmt.Errorf("%w: %w", service.ErrValidation, validationErr), status: fiber.StatusBadRequest},
		{name: "not_found", err: service.ErrProjectNotFound, status: fiber.StatusNotFound},
		{name: "conflict", err: service.ErrProjectChanged, status: fiber.StatusConflict},
		{name: "upstream", err: fmt.Errorf("%w: evaluate: boom", service.ErrUpstream), status: fiber.StatusBadGateway},
		{name: "storage", err: fmt.Errorf("%w: delete: boom", service.ErrStorage), status: fiber.StatusBadGateway},
		{name: "generic", err: errors.New("boom"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockProjectService{err: tc.err}
			app := newProjectApp(svc, &mockImageService{}, "teacher")

			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/projects/9/reject", map[string]string{}))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var body envelope[interface{}]
			decodeResponse(t, resp, &body)
			require.False(t, body.Success)
			switch tc.name {
			case "validation":
				require.Equal(t, map[string]string{"Reason": "required"}, body.Details)
			case "generic":
				require.Equal(t, "internal server error", body.Message)
			default:
				require.Equal(t, tc.err.Error(), body.Message)
			}
		})
	}
}

func multipartUpload(t *testing.T, target, fileName string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestProjectHandler_UploadImage(t *testing.T) {
	images := &mockImageService{response: dto.ImageResponse{ID: 4, URL: "https://cdn.example.com/sketch.png"}}
	app := newProjectApp(&mockProjectService{}, images, "student")

	resp, err := app.Test(multipartUpload(t, "/api/projects/3/images", "sketch.png", []byte("png-bytes")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body envelope[dto.ImageResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, "upload successful", body.Message)
	require.Equal(t, images.response.URL, body.Data.URL)
	require.Equal(t, "sketch.png", images.upload.FileName)
	require.Equal(t, int64(len("png-bytes")), images.upload.Size)
	require.Equal(t, []byte("png-bytes"), images.content)
}

func TestProjectHandler_UploadImageErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "too_large", err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{name: "not_image", err: service.ErrUploadNotImage, status: fiber.StatusBadRequest},
		{name: "locked", err: service.ErrProjectLocked, status: fiber.StatusConflict},
		{name: "storage", err: fmt.Errorf("%w: upload: offline", service.ErrStorage), status: fiber.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newProjectApp(&mockProjectService{}, &mockImageService{err: tc.err}, "student")
			resp, err := app.Test(multipartUpload(t, "/api/projects/3/images", "notes.txt", []byte("hello")))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}

	app := newProjectApp(&mockProjectService{}, &mockImageService{}, "student")
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/projects/3/images", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
