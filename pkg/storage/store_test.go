package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// storeFactories returns a fresh instance of every backend.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"badger": func(t *testing.T) Store { return newTestStore(t) },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir(), "swe", testLogger())
			require.NoError(t, err)
			return s
		},
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
	}
}

func TestStore_KeyValue(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			_, found, err := store.Get("swe-book-progress")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Set("swe-book-progress", []byte(`{"a":1}`)))
			value, found, err := store.Get("swe-book-progress")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `{"a":1}`, string(value))

			require.NoError(t, store.Set("swe-book-progress", []byte(`{"a":2}`)))
			value, _, _ = store.Get("swe-book-progress")
			assert.Equal(t, `{"a":2}`, string(value))

			require.NoError(t, store.Delete("swe-book-progress"))
			_, found, err = store.Get("swe-book-progress")
			require.NoError(t, err)
			assert.False(t, found)

			assert.NoError(t, store.Delete("never-set"))
		})
	}
}

func TestStore_ReturnedValueIsACopy(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Set("k", []byte("abc")))

			value, _, _ := store.Get("k")
			value[0] = 'z'

			again, _, _ := store.Get("k")
			assert.Equal(t, "abc", string(again))
		})
	}
}

func TestStore_ChapterState(t *testing.T) {
	builtAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			_, found, err := store.GetChapterState("swe", "01-intro")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.UpdateChapterState("swe", "01-intro", &models.ChapterState{
				Status:      models.BuildStatusBuilt,
				ContentHash: "hash-1",
				BuiltAt:     builtAt,
				LastAttempt: builtAt,
			}))
			require.NoError(t, store.UpdateChapterState("swe", "02-git", &models.ChapterState{
				Status:    models.BuildStatusFailed,
				ErrorType: "parsing_error",
			}))
			require.NoError(t, store.UpdateChapterState("llm", "01-intro", &models.ChapterState{
				Status: models.BuildStatusBuilt,
			}))

			state, found, err := store.GetChapterState("swe", "01-intro")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, models.BuildStatusBuilt, state.Status)
			assert.Equal(t, "hash-1", state.ContentHash)
			assert.True(t, builtAt.Equal(state.BuiltAt))

			states, err := store.ListChapterStates("swe")
			require.NoError(t, err)
			assert.Len(t, states, 2)
			assert.Equal(t, models.BuildStatusFailed, states["02-git"].Status)

			require.NoError(t, store.ClearBuildState("swe"))
			states, err = store.ListChapterStates("swe")
			require.NoError(t, err)
			assert.Empty(t, states)

			// Other courses are untouched
			_, found, err = store.GetChapterState("llm", "01-intro")
			require.NoError(t, err)
			assert.True(t, found)
		})
	}
}

func TestStore_GetContentHash(t *testing.T) {
	tests := []struct {
		name      string
		state     *models.ChapterState
		wantHash  string
		wantFound bool
	}{
		{"no state", nil, "", false},
		{"built with hash", &models.ChapterState{Status: models.BuildStatusBuilt, ContentHash: "h"}, "h", true},
		{"built without hash", &models.ChapterState{Status: models.BuildStatusBuilt}, "", false},
		{"failed keeps no hash", &models.ChapterState{Status: models.BuildStatusFailed, ContentHash: "h"}, "", false},
	}

	for name, newStore := range storeFactories() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				store := newStore(t)
				if tt.state != nil {
					require.NoError(t, store.UpdateChapterState("swe", "01-intro", tt.state))
				}
				hash, found, err := store.GetContentHash("swe", "01-intro")
				require.NoError(t, err)
				assert.Equal(t, tt.wantFound, found)
				assert.Equal(t, tt.wantHash, hash)
			})
		}
	}
}

func TestStore_RunGCStopsOnCancel(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				store.RunGC(ctx, time.Hour)
				close(done)
			}()
			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("RunGC did not return after cancel")
			}
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store1, err := NewFileStore(dir, "swe", testLogger())
	require.NoError(t, err)
	require.NoError(t, store1.Set("swe-book-progress", []byte(`{"lastVisited":"02-git"}`)))
	require.NoError(t, store1.UpdateChapterState("swe", "02-git", &models.ChapterState{Status: models.BuildStatusBuilt}))
	require.NoError(t, store1.Close())

	_, err = os.Stat(filepath.Join(dir, "swe"+stateFileSuffix))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "swe"+stateFileSuffix+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	store2, err := NewFileStore(dir, "swe", testLogger())
	require.NoError(t, err)
	value, found, err := store2.Get("swe-book-progress")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"lastVisited":"02-git"}`, string(value))

	count, err := store2.KeyCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFileStore_FailedWriteKeepsState(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "swe", testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Set("kept", []byte("1")))
	require.NoError(t, store.UpdateChapterState("swe", "01-intro", &models.ChapterState{Status: models.BuildStatusBuilt}))

	// A directory in the temp file's place makes every save fail
	tmp := filepath.Join(dir, "swe"+stateFileSuffix+".tmp")
	require.NoError(t, os.Mkdir(tmp, 0755))

	err = store.Set("lost", []byte("2"))
	assert.ErrorIs(t, err, utils.ErrFilesystem)
	_, found, _ := store.Get("lost")
	assert.False(t, found)

	assert.Error(t, store.Delete("kept"))
	_, found, _ = store.Get("kept")
	assert.True(t, found)

	assert.Error(t, store.UpdateChapterState("swe", "02-git", &models.ChapterState{Status: models.BuildStatusBuilt}))
	_, found, _ = store.GetChapterState("swe", "02-git")
	assert.False(t, found)

	assert.Error(t, store.ClearBuildState("swe"))
	_, found, _ = store.GetChapterState("swe", "01-intro")
	assert.True(t, found)

	require.NoError(t, os.Remove(tmp))
	reopened, err := NewFileStore(dir, "swe", testLogger())
	require.NoError(t, err)
	count, err := reopened.KeyCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count, "memory and disk agree")
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "swe"+stateFileSuffix), []byte("{oops"), 0644))

	_, err := NewFileStore(dir, "swe", testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, BackendMemory, "", "swe", testLogger())
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("file", func(t *testing.T) {
		store, err := Open(ctx, BackendFile, t.TempDir(), "swe", testLogger())
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("empty defaults to badger", func(t *testing.T) {
		store, err := Open(ctx, "", t.TempDir(), "swe", testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		assert.IsType(t, &BadgerStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, "redis", t.TempDir(), "swe", testLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, utils.ErrConfigValidation)
	})
}
