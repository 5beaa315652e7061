package testutil

import (
	"context"
	"sync"

	"github.com/d1childress/ccmanager/pkg/models"
)

// FakeChangeSource returns scripted working copy changes
type FakeChangeSource struct {
	mu      sync.Mutex
	Changes []models.FileChange
	Err     error
	calls   int
}

func (f *FakeChangeSource) FetchChanges(_ context.Context, _ models.Repository) ([]models.FileChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]models.FileChange(nil), f.Changes...), nil
}

// Set replaces the scripted result
func (f *FakeChangeSource) Set(changes []models.FileChange, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Changes = changes
	f.Err = err
}

// Calls returns how many fetches were made
func (f *FakeChangeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
