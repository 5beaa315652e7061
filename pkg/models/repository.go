package models

import (
	"fmt"
	"time"
)

// DefaultBranch is used when the hosting provider omits a repository's default branch
const DefaultBranch = "main"

// Repository represents a repository known to the catalog
type Repository struct {
	ID              string    `yaml:"id" json:"id"`
	Name            string    `yaml:"name" json:"name"`
	FullName        string    `yaml:"full_name" json:"full_name"`
	Owner           string    `yaml:"owner" json:"owner"`
	Description     string    `yaml:"description,omitempty" json:"description,omitempty"`
	URL             string    `yaml:"url" json:"url"`
	DefaultBranch   string    `yaml:"default_branch" json:"default_branch"`
	Private         bool      `yaml:"private" json:"private"`
	Language        string    `yaml:"language,omitempty" json:"language,omitempty"`
	StargazersCount int       `yaml:"stargazers_count" json:"stargazers_count"`
	ForksCount      int       `yaml:"forks_count" json:"forks_count"`
	OpenIssuesCount int       `yaml:"open_issues_count" json:"open_issues_count"`
	CreatedAt       time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt       time.Time `yaml:"updated_at" json:"updated_at"`
	LocalPath       string    `yaml:"local_path,omitempty" json:"local_path,omitempty"`
}

// Equal reports whether two repositories share the same identity
func (r Repository) Equal(other Repository) bool {
	return r.ID == other.ID
}

// HasLocalPath reports whether a working copy has been cloned for the repository
func (r Repository) HasLocalPath() bool {
	return r.LocalPath != ""
}

// WithLocalPath returns a copy of the repository bound to a working copy path
func (r Repository) WithLocalPath(path string) Repository {
	r.LocalPath = path
	return r
}

// CloneURL derives the HTTPS clone URL from the repository's full name
func (r Repository) CloneURL(host string) string {
	return fmt.Sprintf("https://%s/%s.git", host, r.FullName)
}

// ChangeKind describes how a file differs from the tracked revision
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "Added"
	ChangeModified ChangeKind = "Modified"
	ChangeDeleted  ChangeKind = "Deleted"
	ChangeRenamed  ChangeKind = "Renamed"
)

// FileChange is a single entry of a working copy diff
type FileChange struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Kind       ChangeKind `json:"kind"`
	Additions  int        `json:"additions"`
	Deletions  int        `json:"deletions"`
	Patch      string     `json:"patch,omitempty"`
	DetectedAt time.Time  `json:"detected_at"`
}
