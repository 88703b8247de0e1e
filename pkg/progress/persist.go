package progress

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// DefaultKey is the storage key of the persisted progress blob
const DefaultKey = "swe-book-progress"

// DefaultSettings are applied to fresh state and fill gaps in loaded state
func DefaultSettings() models.UserSettings {
	return models.UserSettings{
		Theme:               models.ThemeSystem,
		FontSize:            models.FontSizeMedium,
		ShowReadingTime:     true,
		EnableReviewPrompts: true,
	}
}

// Default returns a fresh, empty progress state
func Default() models.UserProgress {
	return models.UserProgress{
		Chapters:  make(map[string]models.ChapterProgress),
		Bookmarks: []models.Bookmark{},
		Settings:  DefaultSettings(),
	}
}

// normalize replaces nil collections and invalid settings with defaults.
func normalize(p models.UserProgress) models.UserProgress {
	if p.Chapters == nil {
		p.Chapters = make(map[string]models.ChapterProgress)
	}
	if p.Bookmarks == nil {
		p.Bookmarks = []models.Bookmark{}
	}
	for slug, ch := range p.Chapters {
		if ch.Checkpoints == nil {
			ch.Checkpoints = make(map[string]models.CheckpointProgress)
		}
		if ch.QuestionsRevealed == nil {
			ch.QuestionsRevealed = []string{}
		}
		if ch.ConceptsReviewed == nil {
			ch.ConceptsReviewed = newChapterProgress().ConceptsReviewed
		}
		p.Chapters[slug] = ch
	}
	defaults := DefaultSettings()
	if !p.Settings.Theme.IsValid() {
		p.Settings.Theme = defaults.Theme
	}
	if !p.Settings.FontSize.IsValid() {
		p.Settings.FontSize = defaults.FontSize
	}
	return p
}

// Parse decodes a persisted or exported blob over the defaults, so fields
// absent from data keep their default values.
func Parse(data []byte) (models.UserProgress, error) {
	p := Default()
	if err := json.Unmarshal(data, &p); err != nil {
		return models.UserProgress{}, utils.WrapErrorf(utils.ErrParsing, "decode progress json: %v", err)
	}
	return normalize(p), nil
}

// Export encodes p as indented JSON
func Export(p models.UserProgress) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "encode progress json: %v", err)
	}
	return data, nil
}

// Load reads the blob under key. A missing key yields the defaults; an
// unreadable or malformed blob is logged and also yields the defaults.
func Load(kv storage.KeyValueStore, key string, log *logrus.Entry) models.UserProgress {
	data, found, err := kv.Get(key)
	if err != nil {
		log.Warnf("Failed to load progress '%s': %v", key, err)
		return Default()
	}
	if !found {
		return Default()
	}
	p, err := Parse(data)
	if err != nil {
		log.Warnf("Ignoring malformed progress '%s': %v", key, err)
		return Default()
	}
	return p
}

// Persister returns a listener saving each snapshot under key. Save
// failures are logged and never reach the caller of Apply.
func Persister(kv storage.KeyValueStore, key string, log *logrus.Entry) Listener {
	return func(p models.UserProgress) {
		data, err := json.Marshal(p)
		if err != nil {
			log.Warnf("Failed to encode progress for '%s': %v", key, err)
			return
		}
		if err := kv.Set(key, data); err != nil {
			log.Warnf("Failed to save progress '%s': %v", key, err)
		}
	}
}
