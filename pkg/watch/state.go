package watch

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateFileName = "watch_state.json"

// CourseState records the last rebuild of a course triggered by the watcher
type CourseState struct {
	LastBuildTime    time.Time `json:"last_build_time"`
	LastBuildSuccess bool      `json:"last_build_success"`
	ChaptersBuilt    int       `json:"chapters_built"`
	Trigger          string    `json:"trigger"` // "start", "change" or "interval"
	ErrorMessage     string    `json:"error_message,omitempty"`
}

// WatchState contains the persistent state for the watcher
type WatchState struct {
	Courses   map[string]CourseState `json:"courses"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     WatchState
	mu        sync.RWMutex
	now       func() time.Time
}

// NewStateManager creates a state manager for <stateDir>/watch_state.json
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state:     WatchState{Courses: make(map[string]CourseState)},
		now:       time.Now,
	}
}

// Load loads the state from disk. A missing file is a fresh start.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = WatchState{Courses: make(map[string]CourseState)}
			return nil
		}
		return fmt.Errorf("failed to read watch state: %w", err)
	}

	var loaded WatchState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse watch state: %w", err)
	}
	if loaded.Courses == nil {
		loaded.Courses = make(map[string]CourseState)
	}
	m.state = loaded
	return nil
}

// Save writes the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = m.now()
	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watch state: %w", err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write watch state: %w", err)
	}
	return nil
}

// CourseState returns the last recorded rebuild of a course
func (m *StateManager) CourseState(courseKey string) (CourseState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Courses[courseKey]
	return state, ok
}

// RecordBuild stores the outcome of a rebuild
func (m *StateManager) RecordBuild(courseKey, trigger string, chapters int, buildErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := CourseState{
		LastBuildTime:    m.now(),
		LastBuildSuccess: buildErr == nil,
		ChaptersBuilt:    chapters,
		Trigger:          trigger,
	}
	if buildErr != nil {
		state.ErrorMessage = buildErr.Error()
	}
	m.state.Courses[courseKey] = state
}

// ShouldRebuild reports whether a periodic rebuild of the course is due.
// Courses never built are always due.
func (m *StateManager) ShouldRebuild(courseKey string, interval time.Duration) bool {
	return !m.NextRebuildTime(courseKey, interval).After(m.now())
}

// NextRebuildTime returns when the next periodic rebuild is due
func (m *StateManager) NextRebuildTime(courseKey string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Courses[courseKey]
	if !ok {
		return m.now()
	}
	return state.LastBuildTime.Add(interval)
}

// AllCourseStates returns a copy of every course state
func (m *StateManager) AllCourseStates() map[string]CourseState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.state.Courses)
}
