package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/database"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/pkg/ai"
)

var (
	teacherActor      = ActivityActor{ID: 1, Role: "teacher"}
	studentActor      = ActivityActor{ID: 10, Role: "student"}
	otherStudentActor = ActivityActor{ID: 11, Role: "student"}
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedUsers(t *testing.T, db *gorm.DB) {
	t.Helper()
	users := []models.User{
		{ID: teacherActor.ID, Name: "이선생", Role: "teacher"},
		{ID: studentActor.ID, Name: "김민지", Role: "student"},
		{ID: otherStudentActor.ID, Name: "박서준", Role: "student"},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}
}

func seedTemplate(t *testing.T, db *gorm.DB, active bool) models.Template {
	t.Helper()
	template := models.Template{
		AuthorID:            teacherActor.ID,
		Title:               "일차함수 탐구",
		Grade:               8,
		MathDomain:          models.DomainFunction,
		AchievementStandard: "일차함수의 그래프를 그리고 그 성질을 이해한다",
		LearningObjectives:  []string{"기울기의 의미를 설명한다"},
		ExpectedLevel:       "B",
		Guidelines:          "그래프 시각화를 포함할 것",
		IsActive:            true,
	}
	require.NoError(t, db.Create(&template).Error)
	if !active {
		require.NoError(t, db.Model(&template).Update("is_active", false).Error)
		template.IsActive = false
	}
	return template
}

type fakeAI struct {
	mu          sync.Mutex
	evaluation  ai.Evaluation
	evaluateErr error
	html        string
	generateErr error
	onGenerate  func()
	evaluations []ai.EvaluationInput
	generations []ai.GenerationInput
}

func newFakeAI() *fakeAI {
	overall := 7.0
	clarity := 8.0
	return &fakeAI{
		evaluation: ai.Evaluation{
			Kind:        ai.KindBasic,
			Scores:      ai.Scores{Clarity: &clarity, Overall: &overall},
			Feedback:    "좋은 아이디어예요",
			Suggestions: []string{"슬라이더를 추가해 보세요"},
		},
		html: "<!DOCTYPE html><html><body>graph</body></html>",
	}
}

func (f *fakeAI) Evaluate(_ context.Context, input ai.EvaluationInput) (ai.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluations = append(f.evaluations, input)
	if f.evaluateErr != nil {
		return ai.Evaluation{}, f.evaluateErr
	}
	return f.evaluation, nil
}

func (f *fakeAI) Generate(_ context.Context, input ai.GenerationInput) (string, error) {
	f.mu.Lock()
	f.generations = append(f.generations, input)
	hook := f.onGenerate
	html, err := f.html, f.generateErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	return html, nil
}

func (f *fakeAI) evaluationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.evaluations)
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
	uploadErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Upload(_ context.Context, storagePath string, reader io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[storagePath] = data
	return "https://cdn.example.com/" + storagePath, nil
}

func (f *fakeStorage) Delete(_ context.Context, storagePath string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, storagePath)
	f.deleted = append(f.deleted, storagePath)
	return nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []TransitionEvent
	err    error
}

func (r *recordingObserver) OnTransition(_ context.Context, event TransitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingObserver) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, string(event.Action))
	}
	return out
}

type projectFixture struct {
	db       *gorm.DB
	store    repository.Store
	ai       *fakeAI
	storage  *fakeStorage
	observer *recordingObserver
	template models.Template
	svc      ProjectService
	images   ImageService
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()
	db := newTestDB(t)
	seedUsers(t, db)

	store := repository.NewStore(db)
	validate := validator.New(validator.WithRequiredStructEnabled())
	fake := newFakeAI()
	storage := newFakeStorage()
	observer := &recordingObserver{}
	aiService := NewAIService(fake, fake, store.Templates(), validate, 0, zerolog.Nop())

	return &projectFixture{
		db:       db,
		store:    store,
		ai:       fake,
		storage:  storage,
		observer: observer,
		template: seedTemplate(t, db, true),
		svc: NewProjectService(ProjectServiceConfig{
			Store:     store,
			AI:        aiService,
			Storage:   storage,
			Observers: []TransitionObserver{observer},
			Validator: validate,
			Logger:    zerolog.Nop(),
		}),
		images: NewImageService(store, storage, 1024*1024, zerolog.Nop()),
	}
}

// pngBytes is a minimal PNG header that mimetype recognises.
func pngBytes(seed byte) []byte {
	header := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	return append(header, bytes.Repeat([]byte{seed}, 32)...)
}

var errUpstreamDown = errors.New("upstream unavailable")
