package progress

import (
	"math"
	"slices"
	"time"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

const (
	maxReadProgress = 100
	maxConfidence   = 5
)

func newChapterProgress() models.ChapterProgress {
	return models.ChapterProgress{
		Checkpoints:       make(map[string]models.CheckpointProgress),
		QuestionsRevealed: []string{},
		ConceptsReviewed:  make(map[string][]time.Time),
	}
}

// chapter returns the progress for slug, creating an empty record if needed.
func chapter(p *models.UserProgress, slug string) models.ChapterProgress {
	if ch, ok := p.Chapters[slug]; ok {
		return ch
	}
	return newChapterProgress()
}

// UpdateChapterProgress applies update to one chapter and marks it as the
// last visited one.
func UpdateChapterProgress(slug string, update func(ch *models.ChapterProgress, now time.Time)) Mutation {
	return func(p *models.UserProgress, now time.Time) bool {
		ch := chapter(p, slug)
		update(&ch, now)
		p.Chapters[slug] = ch
		p.LastVisited = slug
		return true
	}
}

// StartChapter stamps the chapter's start time once, and the course start
// time if this is the first chapter ever started.
func StartChapter(slug string) Mutation {
	return func(p *models.UserProgress, now time.Time) bool {
		changed := false
		if ch, ok := p.Chapters[slug]; !ok || ch.Started == nil {
			UpdateChapterProgress(slug, func(ch *models.ChapterProgress, now time.Time) {
				ch.Started = &now
			})(p, now)
			changed = true
		}
		if p.StartedAt == nil {
			p.StartedAt = &now
			changed = true
		}
		return changed
	}
}

// CompleteChapter stamps completion and sets read progress to 100.
func CompleteChapter(slug string) Mutation {
	return UpdateChapterProgress(slug, func(ch *models.ChapterProgress, now time.Time) {
		ch.Completed = &now
		ch.ReadProgress = maxReadProgress
	})
}

// UpdateReadProgress records a scroll-based percentage, clamped to 0-100.
// NaN counts as 0.
func UpdateReadProgress(slug string, percent float64) Mutation {
	if math.IsNaN(percent) {
		percent = 0
	}
	return UpdateChapterProgress(slug, func(ch *models.ChapterProgress, _ time.Time) {
		ch.ReadProgress = min(maxReadProgress, max(0, percent))
	})
}

// UpdateScrollPosition remembers where the reader left the chapter.
// Non-finite positions are ignored.
func UpdateScrollPosition(slug string, pos float64) Mutation {
	if math.IsNaN(pos) || math.IsInf(pos, 0) {
		return func(*models.UserProgress, time.Time) bool { return false }
	}
	return UpdateChapterProgress(slug, func(ch *models.ChapterProgress, _ time.Time) {
		ch.ScrollPosition = &pos
	})
}

// RevealQuestion records that an answer was shown. Revealing twice is a no-op.
func RevealQuestion(slug, questionID string) Mutation {
	return func(p *models.UserProgress, now time.Time) bool {
		if ch, ok := p.Chapters[slug]; ok && slices.Contains(ch.QuestionsRevealed, questionID) {
			return false
		}
		return UpdateChapterProgress(slug, func(ch *models.ChapterProgress, _ time.Time) {
			ch.QuestionsRevealed = append(ch.QuestionsRevealed, questionID)
		})(p, now)
	}
}

// CheckpointUpdate carries the fields of a checkpoint to overwrite.
// Nil fields keep their current value.
type CheckpointUpdate struct {
	Confidence *int
	Items      []bool
}

// UpdateCheckpoint merges u into a checkpoint. The completion time is set
// whenever the update carries a non-zero confidence; otherwise the previous
// completion time is kept.
func UpdateCheckpoint(slug, checkpointID string, u CheckpointUpdate) Mutation {
	return UpdateChapterProgress(slug, func(ch *models.ChapterProgress, now time.Time) {
		cp, ok := ch.Checkpoints[checkpointID]
		if !ok {
			cp = models.CheckpointProgress{Items: []bool{}}
		}
		if u.Items != nil {
			cp.Items = slices.Clone(u.Items)
		}
		if u.Confidence != nil {
			cp.Confidence = min(maxConfidence, max(0, *u.Confidence))
			if cp.Confidence != 0 {
				cp.CompletedAt = &now
			}
		}
		ch.Checkpoints[checkpointID] = cp
	})
}

// ReviewConcept appends a review timestamp to the concept's history.
func ReviewConcept(slug, conceptID string) Mutation {
	return UpdateChapterProgress(slug, func(ch *models.ChapterProgress, now time.Time) {
		ch.ConceptsReviewed[conceptID] = append(ch.ConceptsReviewed[conceptID], now)
	})
}

// SettingsUpdate carries the settings to overwrite. Nil fields are kept.
type SettingsUpdate struct {
	Theme               *models.Theme
	FontSize            *models.FontSize
	ShowReadingTime     *bool
	EnableReviewPrompts *bool
}

// UpdateSettings merges u into the settings. Unknown themes and font sizes are ignored.
func UpdateSettings(u SettingsUpdate) Mutation {
	return func(p *models.UserProgress, _ time.Time) bool {
		before := p.Settings
		if u.Theme != nil && u.Theme.IsValid() {
			p.Settings.Theme = *u.Theme
		}
		if u.FontSize != nil && u.FontSize.IsValid() {
			p.Settings.FontSize = *u.FontSize
		}
		if u.ShowReadingTime != nil {
			p.Settings.ShowReadingTime = *u.ShowReadingTime
		}
		if u.EnableReviewPrompts != nil {
			p.Settings.EnableReviewPrompts = *u.EnableReviewPrompts
		}
		return p.Settings != before
	}
}

// AddBookmark adds a bookmark unless one exists for the same chapter and heading.
func AddBookmark(chapterSlug, headingSlug, headingText, note string) Mutation {
	return func(p *models.UserProgress, now time.Time) bool {
		if IsBookmarked(*p, chapterSlug, headingSlug) {
			return false
		}
		p.Bookmarks = append(p.Bookmarks, models.Bookmark{
			ChapterSlug: chapterSlug,
			HeadingSlug: headingSlug,
			HeadingText: headingText,
			CreatedAt:   now,
			Note:        note,
		})
		return true
	}
}

// RemoveBookmark deletes the bookmark for the chapter and heading, if any.
func RemoveBookmark(chapterSlug, headingSlug string) Mutation {
	return func(p *models.UserProgress, _ time.Time) bool {
		n := len(p.Bookmarks)
		p.Bookmarks = slices.DeleteFunc(p.Bookmarks, func(b models.Bookmark) bool {
			return b.ChapterSlug == chapterSlug && b.HeadingSlug == headingSlug
		})
		return len(p.Bookmarks) != n
	}
}

// Replace swaps in a whole snapshot, e.g. an imported backup.
func Replace(next models.UserProgress) Mutation {
	return func(p *models.UserProgress, _ time.Time) bool {
		*p = normalize(next.Clone())
		return true
	}
}

// Reset restores the default state
func Reset() Mutation {
	return Replace(Default())
}
