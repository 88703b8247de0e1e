package progress

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// failingKV fails every write
type failingKV struct {
	*storage.MemoryStore
	writes int
}

func (f *failingKV) Set(string, []byte) error {
	f.writes++
	return errors.New("quota exceeded")
}

func (f *failingKV) Delete(string) error { return errors.New("quota exceeded") }

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		stored string // empty means missing
		check  func(t *testing.T, p models.UserProgress)
	}{
		{
			name: "missing key yields defaults",
			check: func(t *testing.T, p models.UserProgress) {
				assert.Equal(t, Default(), p)
			},
		},
		{
			name:   "malformed json yields defaults",
			stored: "{not json",
			check: func(t *testing.T, p models.UserProgress) {
				assert.Equal(t, Default(), p)
			},
		},
		{
			name:   "partial settings are completed",
			stored: `{"chapters":{"01-intro":{"readProgress":20}},"settings":{"fontSize":"lg"}}`,
			check: func(t *testing.T, p models.UserProgress) {
				assert.Equal(t, models.FontSizeLarge, p.Settings.FontSize)
				assert.Equal(t, models.ThemeSystem, p.Settings.Theme)
				assert.True(t, p.Settings.ShowReadingTime)
				ch := p.Chapters["01-intro"]
				assert.Equal(t, 20.0, ch.ReadProgress)
				assert.NotNil(t, ch.Checkpoints)
				assert.NotNil(t, ch.ConceptsReviewed)
				assert.NotNil(t, ch.QuestionsRevealed)
				assert.NotNil(t, p.Bookmarks)
			},
		},
		{
			name:   "invalid theme falls back",
			stored: `{"settings":{"theme":"sepia"}}`,
			check: func(t *testing.T, p models.UserProgress) {
				assert.Equal(t, models.ThemeSystem, p.Settings.Theme)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemoryStore()
			if tt.stored != "" {
				require.NoError(t, kv.Set(DefaultKey, []byte(tt.stored)))
			}
			tt.check(t, Load(kv, DefaultKey, testLogger()))
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestOpen_PersistsEveryChange(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := Open(kv, DefaultKey, testLogger())

	s.Apply(RevealQuestion("01-intro", "q1"))

	data, found, err := kv.Get(DefaultKey)
	require.NoError(t, err)
	require.True(t, found)

	var saved models.UserProgress
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, []string{"q1"}, saved.Chapters["01-intro"].QuestionsRevealed)

	reopened := Open(kv, DefaultKey, testLogger())
	assert.Equal(t, s.Snapshot(), reopened.Snapshot())
}

func TestOpen_NaNProgressStillPersists(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := Open(kv, DefaultKey, testLogger())

	s.Apply(UpdateReadProgress("01-intro", math.NaN()))
	s.Apply(RevealQuestion("01-intro", "q1"))

	data, found, err := kv.Get(DefaultKey)
	require.NoError(t, err)
	require.True(t, found)

	var saved models.UserProgress
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Zero(t, saved.Chapters["01-intro"].ReadProgress)
	assert.Equal(t, []string{"q1"}, saved.Chapters["01-intro"].QuestionsRevealed)
}

func TestOpen_SaveFailureDoesNotRollBack(t *testing.T) {
	kv := &failingKV{MemoryStore: storage.NewMemoryStore()}
	s := Open(kv, DefaultKey, testLogger())

	p := s.Apply(UpdateReadProgress("01-intro", 60))
	assert.Equal(t, 60.0, p.Chapters["01-intro"].ReadProgress)
	assert.Equal(t, 60.0, s.Snapshot().Chapters["01-intro"].ReadProgress)
	assert.Equal(t, 1, kv.writes)

	assert.NotPanics(t, func() { s.Reset() })
}

func TestStoreReset_RemovesKey(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := Open(kv, DefaultKey, testLogger())
	s.Apply(CompleteChapter("01-intro"))

	p := s.Reset()
	assert.Equal(t, Default(), p)

	_, found, err := kv.Get(DefaultKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPersister_UsesKey(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := newTestStore(WithStorage(kv, "llm-book-progress"))
	s.Apply(UpdateReadProgress("01-intro", 5))

	_, found, _ := kv.Get("llm-book-progress")
	assert.True(t, found)
	_, found, _ = kv.Get(DefaultKey)
	assert.False(t, found)
}
