package testutil

import (
	"fmt"
	"time"

	"github.com/d1childress/ccmanager/pkg/models"
)

// FixtureTime is the creation time used by every fixture
var FixtureTime = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

// Repository returns a populated repository with the given id
func Repository(id int) models.Repository {
	name := fmt.Sprintf("project-%d", id)
	return models.Repository{
		ID:              fmt.Sprintf("%d", id),
		Name:            name,
		FullName:        "octo/" + name,
		Owner:           "octo",
		URL:             "https://github.com/octo/" + name,
		DefaultBranch:   "main",
		Language:        "Go",
		StargazersCount: id * 10,
		CreatedAt:       FixtureTime,
		UpdatedAt:       FixtureTime,
	}
}

// ClonedRepository returns Repository(id) with a local path
func ClonedRepository(id int, path string) models.Repository {
	return Repository(id).WithLocalPath(path)
}

// GitHubRepoJSON renders one repository the way the hosting API lists it
func GitHubRepoJSON(id int) string {
	return fmt.Sprintf(`{"id":%d,"name":"project-%d","full_name":"octo/project-%d","owner":{"login":"octo"},`+
		`"html_url":"https://github.com/octo/project-%d","default_branch":"main","private":false,"language":"Go",`+
		`"stargazers_count":%d,"forks_count":0,"open_issues_count":0,`+
		`"created_at":"2025-06-01T09:30:00Z","updated_at":"2025-06-01T09:30:00Z"}`, id, id, id, id, id*10)
}
