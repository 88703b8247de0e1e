package storage

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

// MemoryStore is a process-local Store, used by tests and the memory backend.
type MemoryStore struct {
	mu     sync.RWMutex
	kv     map[string][]byte
	builds map[string]models.ChapterState // "<course>:<slug>"
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:     make(map[string][]byte),
		builds: make(map[string]models.ChapterState),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = append([]byte{}, value...)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *MemoryStore) GetChapterState(courseKey, slug string) (*models.ChapterState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.builds[buildPrefix(courseKey)+slug]
	if !ok {
		return nil, false, nil
	}
	return &state, true, nil
}

func (s *MemoryStore) UpdateChapterState(courseKey, slug string, state *models.ChapterState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds[buildPrefix(courseKey)+slug] = *state
	return nil
}

func (s *MemoryStore) GetContentHash(courseKey, slug string) (string, bool, error) {
	state, found, _ := s.GetChapterState(courseKey, slug)
	return builtHash(state, found)
}

func (s *MemoryStore) ListChapterStates(courseKey string) (map[string]models.ChapterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := buildPrefix(courseKey)
	out := make(map[string]models.ChapterState)
	for key, state := range s.builds {
		if slug, ok := strings.CutPrefix(key, prefix); ok {
			out[slug] = state
		}
	}
	return out, nil
}

func (s *MemoryStore) ClearBuildState(courseKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := buildPrefix(courseKey)
	maps.DeleteFunc(s.builds, func(key string, _ models.ChapterState) bool {
		return strings.HasPrefix(key, prefix)
	})
	return nil
}

func (s *MemoryStore) KeyCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.kv) + len(s.builds), nil
}

func (s *MemoryStore) RunGC(ctx context.Context, _ time.Duration) {
	<-ctx.Done()
}

func (s *MemoryStore) Close() error { return nil }
