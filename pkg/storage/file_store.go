package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

const stateFileSuffix = "_state.json"

// fileState is the on-disk shape of a FileStore
type fileState struct {
	KV        map[string][]byte                        `json:"kv"`
	Builds    map[string]map[string]models.ChapterState `json:"builds"` // course -> slug -> state
	UpdatedAt time.Time                                `json:"updated_at"`
}

// FileStore keeps everything in one JSON file and rewrites it after every
// change. Suited to small progress blobs where a database is overkill.
type FileStore struct {
	statePath string
	state     fileState
	log       *logrus.Entry
	mu        sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads <stateDir>/<name>_state.json, starting empty when it does not exist.
func NewFileStore(stateDir, name string, logger *logrus.Entry) (*FileStore, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, utils.WrapErrorf(utils.ErrFilesystem, "cannot create state directory %s: %v", stateDir, err)
	}
	s := &FileStore{
		statePath: filepath.Join(stateDir, utils.SanitizeFilename(name)+stateFileSuffix),
		log:       logger,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	logger.Infof("Using file state store at: %s", s.statePath)
	return s, nil
}

func (s *FileStore) load() error {
	s.state = fileState{}
	data, err := os.ReadFile(s.statePath)
	if err != nil && !os.IsNotExist(err) {
		return utils.WrapErrorf(utils.ErrFilesystem, "read state file %s: %v", s.statePath, err)
	}
	if err == nil {
		if errJSON := json.Unmarshal(data, &s.state); errJSON != nil {
			return utils.WrapErrorf(utils.ErrParsing, "parse state file %s: %v", s.statePath, errJSON)
		}
	}
	if s.state.KV == nil {
		s.state.KV = make(map[string][]byte)
	}
	if s.state.Builds == nil {
		s.state.Builds = make(map[string]map[string]models.ChapterState)
	}
	return nil
}

// clone copies the maps a mutation may touch
func (st fileState) clone() fileState {
	out := st
	out.KV = maps.Clone(st.KV)
	out.Builds = make(map[string]map[string]models.ChapterState, len(st.Builds))
	for course, chapters := range st.Builds {
		out.Builds[course] = maps.Clone(chapters)
	}
	return out
}

// commit applies change to a copy of the state and keeps it only once it
// is on disk. Caller holds mu.
func (s *FileStore) commit(change func(st *fileState)) error {
	next := s.state.clone()
	change(&next)
	next.UpdatedAt = time.Now()
	if err := s.save(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// save writes to a temp file then renames it over the state file.
func (s *FileStore) save(st fileState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal state: %w", utils.ErrParsing, err)
	}
	tmp := s.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "write state file %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		_ = os.Remove(tmp)
		return utils.WrapErrorf(utils.ErrFilesystem, "replace state file %s: %v", s.statePath, err)
	}
	return nil
}

// Get implements KeyValueStore
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.KV[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements KeyValueStore
func (s *FileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(func(st *fileState) {
		st.KV[key] = append([]byte{}, value...)
	})
}

// Delete implements KeyValueStore
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.KV[key]; !ok {
		return nil
	}
	return s.commit(func(st *fileState) {
		delete(st.KV, key)
	})
}

// GetChapterState implements BuildStateStore
func (s *FileStore) GetChapterState(courseKey, slug string) (*models.ChapterState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.state.Builds[courseKey][slug]
	if !ok {
		return nil, false, nil
	}
	return &state, true, nil
}

// UpdateChapterState implements BuildStateStore
func (s *FileStore) UpdateChapterState(courseKey, slug string, state *models.ChapterState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(func(st *fileState) {
		course, ok := st.Builds[courseKey]
		if !ok {
			course = make(map[string]models.ChapterState)
			st.Builds[courseKey] = course
		}
		course[slug] = *state
	})
}

// GetContentHash implements BuildStateStore
func (s *FileStore) GetContentHash(courseKey, slug string) (string, bool, error) {
	state, found, _ := s.GetChapterState(courseKey, slug)
	return builtHash(state, found)
}

// ListChapterStates implements BuildStateStore
func (s *FileStore) ListChapterStates(courseKey string) (map[string]models.ChapterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := maps.Clone(s.state.Builds[courseKey])
	if out == nil {
		out = make(map[string]models.ChapterState)
	}
	return out, nil
}

// ClearBuildState implements BuildStateStore
func (s *FileStore) ClearBuildState(courseKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Builds[courseKey]; !ok {
		return nil
	}
	return s.commit(func(st *fileState) {
		delete(st.Builds, courseKey)
	})
}

// KeyCount implements StoreAdmin
func (s *FileStore) KeyCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.state.KV)
	for _, course := range s.state.Builds {
		n += len(course)
	}
	return n, nil
}

// RunGC has nothing to collect; it only waits for ctx so callers can treat stores alike.
func (s *FileStore) RunGC(ctx context.Context, _ time.Duration) {
	<-ctx.Done()
}

// Close implements StoreAdmin
func (s *FileStore) Close() error {
	return nil
}
