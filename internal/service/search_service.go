package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/observability"
)

const (
	projectSearchIndex  = "projects"
	tenantSignerKeyName = "PromptlabTenantSigner"
	searchTokenTTL      = 24 * time.Hour
)

// SearchService keeps the project search index in step with the lifecycle and
// issues scoped search tokens to clients.
type SearchService interface {
	TransitionObserver
	Token(ctx context.Context, actor ActivityActor) (dto.SearchTokenResponse, error)
}

type projectDocument struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Prompt     string `json:"prompt"`
	OwnerName  string `json:"owner_name"`
	Status     string `json:"status"`
	OwnerID    uint   `json:"owner_id"`
	TemplateID *uint  `json:"template_id"`
	CreatedAt  int64  `json:"created_at"`
}

// projectIndex is the subset of search engine operations the service needs.
type projectIndex interface {
	Upsert(doc projectDocument) error
	Remove(id string) error
	Token(filter string, expiresAt time.Time) (string, error)
}

type searchService struct {
	index  projectIndex
	host   string
	logger zerolog.Logger
}

// NewSearchService builds the search service over a Meilisearch client.
// A nil client disables indexing and token issuing.
func NewSearchService(client meilisearch.ServiceManager, host string, logger zerolog.Logger) SearchService {
	log := logger.With().Str("component", "search_service").Logger()
	if client == nil {
		return &searchService{host: host, logger: log}
	}
	return newSearchService(newMeiliProjectIndex(client, log), host, log)
}

func newSearchService(index projectIndex, host string, logger zerolog.Logger) *searchService {
	return &searchService{index: index, host: host, logger: logger}
}

func (s *searchService) OnTransition(_ context.Context, event TransitionEvent) error {
	if s.index == nil {
		return nil
	}

	var err error
	if event.Deleted {
		err = s.index.Remove(strconv.FormatUint(uint64(event.Project.ID), 10))
	} else {
		err = s.index.Upsert(newProjectDocument(event.Project))
	}
	if err != nil {
		observability.SearchIndexFailures().Inc()
		return fmt.Errorf("search index: %w", err)
	}
	return nil
}

func (s *searchService) Token(_ context.Context, actor ActivityActor) (dto.SearchTokenResponse, error) {
	if _, err := actorRole(actor); err != nil {
		return dto.SearchTokenResponse{}, err
	}
	if s.index == nil {
		return dto.SearchTokenResponse{}, fmt.Errorf("search is not enabled: %w", ErrNotFound)
	}

	filter := ""
	if !actor.IsTeacher() {
		filter = fmt.Sprintf("owner_id = %d", actor.ID)
	}

	token, err := s.index.Token(filter, time.Now().Add(searchTokenTTL))
	if err != nil {
		return dto.SearchTokenResponse{}, upstreamError("issue search token", err)
	}
	return dto.SearchTokenResponse{Token: token, Host: s.host, Index: projectSearchIndex}, nil
}

func newProjectDocument(project models.Project) projectDocument {
	return projectDocument{
		ID:         strconv.FormatUint(uint64(project.ID), 10),
		Title:      project.Title,
		Prompt:     project.Prompt,
		OwnerName:  project.Owner.Name,
		Status:     string(project.Status),
		OwnerID:    project.OwnerID,
		TemplateID: project.TemplateID,
		CreatedAt:  project.CreatedAt.Unix(),
	}
}

type meiliProjectIndex struct {
	client        meilisearch.ServiceManager
	signingKeyUID string
	signingKey    string
	logger        zerolog.Logger
}

func newMeiliProjectIndex(client meilisearch.ServiceManager, logger zerolog.Logger) *meiliProjectIndex {
	index := &meiliProjectIndex{client: client, logger: logger}
	index.initIndex()
	index.initSigningKey()
	return index
}

func (m *meiliProjectIndex) initIndex() {
	filterable := []any{"owner_id", "status", "template_id"}
	if _, err := m.client.Index(projectSearchIndex).UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn().Err(err).Msg("failed to update project filterable attributes")
	}

	sortable := []string{"created_at", "title"}
	if _, err := m.client.Index(projectSearchIndex).UpdateSortableAttributes(&sortable); err != nil {
		m.logger.Warn().Err(err).Msg("failed to update project sortable attributes")
	}
}

func (m *meiliProjectIndex) initSigningKey() {
	keys, err := m.client.GetKeys(&meilisearch.KeysQuery{Limit: 20})
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to list search keys")
		return
	}
	for _, key := range keys.Results {
		if key.Name == tenantSignerKeyName {
			m.signingKeyUID = key.UID
			m.signingKey = key.Key
			return
		}
	}

	key, err := m.client.CreateKey(&meilisearch.Key{
		Name:        tenantSignerKeyName,
		Description: "Signs tenant tokens for project search",
		Actions:     []string{"search"},
		Indexes:     []string{projectSearchIndex},
		ExpiresAt:   time.Now().AddDate(100, 0, 0),
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to create search signing key")
		return
	}
	m.signingKeyUID = key.UID
	m.signingKey = key.Key
}

func (m *meiliProjectIndex) Upsert(doc projectDocument) error {
	primaryKey := "id"
	_, err := m.client.Index(projectSearchIndex).AddDocuments([]projectDocument{doc}, &primaryKey)
	return err
}

func (m *meiliProjectIndex) Remove(id string) error {
	_, err := m.client.Index(projectSearchIndex).DeleteDocument(id)
	return err
}

func (m *meiliProjectIndex) Token(filter string, expiresAt time.Time) (string, error) {
	if m.signingKeyUID == "" || m.signingKey == "" {
		return "", fmt.Errorf("signing key not initialized")
	}

	rules := map[string]any{"filter": nil}
	if filter != "" {
		rules["filter"] = filter
	}
	return m.client.GenerateTenantToken(m.signingKeyUID, map[string]any{projectSearchIndex: rules}, &meilisearch.TenantTokenOptions{
		APIKey:    m.signingKey,
		ExpiresAt: expiresAt,
	})
}
