package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

// KeyValueStore is the browser-local-storage stand-in used for learner
// progress. Values are opaque bytes.
type KeyValueStore interface {
	// Get returns the value for key. A missing key is not an error.
	Get(key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// BuildStateStore tracks per-chapter build results for incremental builds
type BuildStateStore interface {
	// GetChapterState returns the last recorded state of a chapter.
	GetChapterState(courseKey, slug string) (state *models.ChapterState, found bool, err error)

	// UpdateChapterState records the state of a chapter
	UpdateChapterState(courseKey, slug string, state *models.ChapterState) error

	// GetContentHash returns the source hash of a chapter that last built
	// successfully.
	GetContentHash(courseKey, slug string) (hash string, exists bool, err error)

	// ListChapterStates returns every recorded state of a course, keyed by slug
	ListChapterStates(courseKey string) (map[string]models.ChapterState, error)

	// ClearBuildState forgets every chapter state of a course.
	ClearBuildState(courseKey string) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// KeyCount returns an approximate count of all keys in the store
	KeyCount() (int, error)

	// RunGC runs periodic garbage collection until ctx is done. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the store
	Close() error
}

// Store combines all store interfaces for components that need full access
type Store interface {
	KeyValueStore
	BuildStateStore
	StoreAdmin
}
