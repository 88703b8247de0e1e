// Package progress holds a learner's reading state: chapter progress,
// checkpoints, revealed answers, concept reviews, bookmarks and settings.
//
// A Store owns one models.UserProgress snapshot. Snapshots are never
// modified in place; every Mutation runs on a deep copy which then
// replaces the current snapshot and is published to listeners.
package progress

import (
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
)

// Mutation edits p in place and reports whether anything changed.
// It always receives a private copy of the current snapshot.
type Mutation func(p *models.UserProgress, now time.Time) bool

// Listener is called with every published snapshot. It must treat the
// snapshot as read-only and must not call Apply.
type Listener func(p models.UserProgress)

type subscription struct {
	id int
	fn Listener
}

// Store is a single-writer state container for UserProgress
type Store struct {
	pubMu     sync.Mutex   // Serializes Apply so listeners see snapshots in order
	mu        sync.RWMutex // Guards current and listeners
	current   models.UserProgress
	listeners []subscription
	nextID    int

	now     func() time.Time
	log     *logrus.Entry
	storage storage.KeyValueStore
	key     string
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now for timestamps written by mutations
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the entry used for persistence warnings
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// WithStorage persists every published snapshot under key and lets Reset
// remove it. The persister is registered before any other listener.
func WithStorage(kv storage.KeyValueStore, key string) Option {
	return func(s *Store) {
		s.storage = kv
		s.key = key
	}
}

// NewStore creates a store holding initial.
func NewStore(initial models.UserProgress, opts ...Option) *Store {
	s := &Store{
		current: normalize(initial.Clone()),
		now:     time.Now,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.storage != nil {
		s.Subscribe(Persister(s.storage, s.key, s.log))
	}
	return s
}

// Open loads the persisted snapshot under key and returns a store that keeps it saved.
func Open(kv storage.KeyValueStore, key string, log *logrus.Entry, opts ...Option) *Store {
	initial := Load(kv, key, log)
	opts = append([]Option{WithLogger(log), WithStorage(kv, key)}, opts...)
	return NewStore(initial, opts...)
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() models.UserProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Apply runs m against a copy of the current snapshot. If m reports a
// change, the copy becomes current and listeners are called in
// subscription order before Apply returns. The resulting snapshot is
// returned either way.
func (s *Store) Apply(m Mutation) models.UserProgress {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.RLock()
	next := s.current.Clone()
	s.mu.RUnlock()

	if !m(&next, s.now()) {
		return next
	}

	s.mu.Lock()
	s.current = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(next.Clone())
	}
	return next.Clone()
}

// Subscribe registers l for future publishes. It is not called with the
// current snapshot. The returned func removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
		})
	}
}

// Reset restores defaults and removes the persisted blob.
func (s *Store) Reset() models.UserProgress {
	p := s.Apply(Reset())
	if s.storage != nil {
		if err := s.storage.Delete(s.key); err != nil {
			s.log.Warnf("Failed to remove persisted progress '%s': %v", s.key, err)
		}
	}
	return p
}

// Import replaces the state with a previously exported blob.
// Missing fields take their defaults. Invalid JSON leaves the state unchanged.
func (s *Store) Import(data []byte) error {
	p, err := Parse(data)
	if err != nil {
		return err
	}
	s.Apply(Replace(p))
	return nil
}

// Export returns the current state as indented JSON.
func (s *Store) Export() ([]byte, error) {
	return Export(s.Snapshot())
}
