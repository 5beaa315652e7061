package catalog

import (
	"strconv"
	"time"

	"github.com/d1childress/ccmanager/pkg/models"
)

// remoteRepository is one element of GET /user/repos
type remoteRepository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
	Description     *string `json:"description"`
	HTMLURL         string  `json:"html_url"`
	DefaultBranch   *string `json:"default_branch"`
	Private         bool    `json:"private"`
	Language        *string `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	ForksCount      int     `json:"forks_count"`
	OpenIssuesCount int     `json:"open_issues_count"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// toModel maps a remote record; absent default branches become "main" and
// unparseable timestamps fall back to now
func (r remoteRepository) toModel(now time.Time) models.Repository {
	repo := models.Repository{
		ID:              strconv.FormatInt(r.ID, 10),
		Name:            r.Name,
		FullName:        r.FullName,
		Owner:           r.Owner.Login,
		URL:             r.HTMLURL,
		DefaultBranch:   models.DefaultBranch,
		Private:         r.Private,
		StargazersCount: r.StargazersCount,
		ForksCount:      r.ForksCount,
		OpenIssuesCount: r.OpenIssuesCount,
		CreatedAt:       parseTime(r.CreatedAt, now),
		UpdatedAt:       parseTime(r.UpdatedAt, now),
	}
	if r.Description != nil {
		repo.Description = *r.Description
	}
	if r.DefaultBranch != nil && *r.DefaultBranch != "" {
		repo.DefaultBranch = *r.DefaultBranch
	}
	if r.Language != nil {
		repo.Language = *r.Language
	}
	if repo.FullName == "" && repo.Owner != "" {
		repo.FullName = repo.Owner + "/" + repo.Name
	}
	return repo
}

func parseTime(s string, fallback time.Time) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t
}
