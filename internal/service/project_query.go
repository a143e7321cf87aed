package service

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

// Sort keys accepted by SortProjects.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortTitle  = "title"
	SortStatus = "status"
)

// FilterProjects keeps projects whose title, prompt or owner name contains
// term, ignoring case. A blank term returns the input unchanged.
func FilterProjects(projects []models.Project, term string) []models.Project {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return projects
	}

	filtered := make([]models.Project, 0, len(projects))
	for _, project := range projects {
		if strings.Contains(strings.ToLower(project.Title), needle) ||
			strings.Contains(strings.ToLower(project.Prompt), needle) ||
			strings.Contains(strings.ToLower(project.Owner.Name), needle) {
			filtered = append(filtered, project)
		}
	}
	return filtered
}

// SortProjects returns a stably sorted copy. Unknown keys keep input order.
func SortProjects(projects []models.Project, key string) []models.Project {
	sorted := make([]models.Project, len(projects))
	copy(sorted, projects)

	switch strings.ToLower(strings.TrimSpace(key)) {
	case SortNewest:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
	case SortOldest:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		})
	case SortTitle:
		collator := collate.New(language.Korean)
		sort.SliceStable(sorted, func(i, j int) bool {
			return collator.CompareString(sorted[i].Title, sorted[j].Title) < 0
		})
	case SortStatus:
		sort.SliceStable(sorted, func(i, j int) bool {
			return workflow.Priority(sorted[i].Status) < workflow.Priority(sorted[j].Status)
		})
	}

	return sorted
}
