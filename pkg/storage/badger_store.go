package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/log"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

const (
	kvKeyPrefix    = "kv:"    // Prefix for local-storage keys in DB
	buildKeyPrefix = "build:" // Prefix for build:<course>:<slug> keys in DB
	stateDBDir     = "db"     // Subdirectory suffix within stateDir for Badger DB files
)

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context // Parent context
	keyCount atomic.Int64    // Cached key count for O(1) KeyCount
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the database <stateDir>/<name>_db.
func NewBadgerStore(ctx context.Context, stateDir, name string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log: logger,
		ctx: ctx,
	}

	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(name)+"_"+stateDBDir)
	logger.Infof("Opening state database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, utils.WrapErrorf(utils.ErrFilesystem, "cannot create state directory %s: %v", dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewStorageLogger(logger.WithField("component", "badgerdb"), name)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrDatabase, "open badger database at %s: %v", dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
		logger.Debugf("Loaded existing key count: %d", count)
	}
	return store, nil
}

// countKeys performs a one-time full key scan (used only during initialization).
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Conflicts on overlapping keys resolve in microseconds, so a tight loop is enough.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// put writes value under key and keeps the cached key count current.
func (s *BadgerStore) put(key, value []byte) error {
	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error: %v", err)
		return fmt.Errorf("%w: setting key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// get copies the value stored under key.
func (s *BadgerStore) get(key []byte) ([]byte, bool, error) {
	var value []byte
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		found = true
		value, errGet = item.ValueCopy(nil)
		return errGet
	})
	if err != nil {
		s.log.Errorf("DB View error for key '%s': %v", string(key), err)
		return nil, false, fmt.Errorf("%w: getting key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return value, found, nil
}

func (s *BadgerStore) del(key []byte) error {
	existed := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: deleting key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if existed {
		s.keyCount.Add(-1)
	}
	return nil
}

// Get implements KeyValueStore
func (s *BadgerStore) Get(key string) ([]byte, bool, error) {
	return s.get([]byte(kvKeyPrefix + key))
}

// Set implements KeyValueStore
func (s *BadgerStore) Set(key string, value []byte) error {
	if s.db == nil {
		return errors.New("state DB not initialized")
	}
	if value == nil {
		value = []byte{}
	}
	return s.put([]byte(kvKeyPrefix+key), value)
}

// Delete implements KeyValueStore
func (s *BadgerStore) Delete(key string) error {
	return s.del([]byte(kvKeyPrefix + key))
}

func buildKey(courseKey, slug string) []byte {
	return []byte(buildPrefix(courseKey) + slug)
}

func buildPrefix(courseKey string) string {
	return buildKeyPrefix + courseKey + ":"
}

// GetChapterState implements BuildStateStore
func (s *BadgerStore) GetChapterState(courseKey, slug string) (*models.ChapterState, bool, error) {
	raw, found, err := s.get(buildKey(courseKey, slug))
	if err != nil || !found {
		return nil, false, err
	}
	var state models.ChapterState
	if errJSON := json.Unmarshal(raw, &state); errJSON != nil {
		s.log.Warnf("Failed to unmarshal ChapterState for '%s/%s': %v. Treating as not built.", courseKey, slug, errJSON)
		return nil, false, nil
	}
	return &state, true, nil
}

// UpdateChapterState implements BuildStateStore
func (s *BadgerStore) UpdateChapterState(courseKey, slug string, state *models.ChapterState) error {
	if s.db == nil {
		return errors.New("state DB not initialized")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: marshal ChapterState for '%s/%s': %w", utils.ErrParsing, courseKey, slug, err)
	}
	if err := s.put(buildKey(courseKey, slug), data); err != nil {
		return err
	}
	s.log.Debugf("Recorded build state for '%s/%s': %s", courseKey, slug, state.Status)
	return nil
}

// GetContentHash implements BuildStateStore
func (s *BadgerStore) GetContentHash(courseKey, slug string) (string, bool, error) {
	state, found, err := s.GetChapterState(courseKey, slug)
	if err != nil {
		return "", false, err
	}
	return builtHash(state, found)
}

// builtHash only reports hashes of chapters that built successfully.
func builtHash(state *models.ChapterState, found bool) (string, bool, error) {
	if found && state != nil && state.Status == models.BuildStatusBuilt && state.ContentHash != "" {
		return state.ContentHash, true, nil
	}
	return "", false, nil
}

// ListChapterStates implements BuildStateStore
func (s *BadgerStore) ListChapterStates(courseKey string) (map[string]models.ChapterState, error) {
	prefix := []byte(buildPrefix(courseKey))
	states := make(map[string]models.ChapterState)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-s.ctx.Done():
				return s.ctx.Err()
			default:
			}
			item := it.Item()
			slug := string(item.KeyCopy(nil)[len(prefix):])
			errValue := item.Value(func(val []byte) error {
				var state models.ChapterState
				if errJSON := json.Unmarshal(val, &state); errJSON != nil {
					s.log.Warnf("Skipping unreadable build state for '%s/%s': %v", courseKey, slug, errJSON)
					return nil
				}
				states[slug] = state
				return nil
			})
			if errValue != nil {
				return errValue
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing build states for '%s': %w", utils.ErrDatabase, courseKey, err)
	}
	return states, nil
}

// ClearBuildState implements BuildStateStore
func (s *BadgerStore) ClearBuildState(courseKey string) error {
	prefix := []byte(buildPrefix(courseKey))
	if err := s.db.DropPrefix(prefix); err != nil {
		return fmt.Errorf("%w: dropping build state for '%s': %w", utils.ErrDatabase, courseKey, err)
	}
	if count, err := s.countKeys(); err == nil {
		s.keyCount.Store(int64(count))
	}
	s.log.Infof("Cleared build state for course '%s'", courseKey)
	return nil
}

// KeyCount implements StoreAdmin.
// Returns the cached key count (O(1)) maintained on writes.
func (s *BadgerStore) KeyCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Debug("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
				s.log.Debug("BadgerDB GC cycle completed.")
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing state DB: %v", err)
			return err
		}
		s.log.Debug("State DB closed.")
	}
	return nil
}
