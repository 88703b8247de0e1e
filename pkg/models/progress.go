package models

import (
	"maps"
	"slices"
	"time"
)

// UserProgress is the persisted per-learner aggregate.
// It is replaced wholesale on every change; use Clone before modifying.
type UserProgress struct {
	Chapters    map[string]ChapterProgress `json:"chapters"`
	Bookmarks   []Bookmark                 `json:"bookmarks"`
	Settings    UserSettings               `json:"settings"`
	LastVisited string                     `json:"lastVisited,omitempty"`
	StartedAt   *time.Time                 `json:"startedAt,omitempty"`
}

// ChapterProgress tracks one chapter.
type ChapterProgress struct {
	Started           *time.Time                    `json:"started,omitempty"`
	Completed         *time.Time                    `json:"completed,omitempty"`
	ReadProgress      float64                       `json:"readProgress"` // 0-100
	ScrollPosition    *float64                      `json:"scrollPosition,omitempty"`
	Checkpoints       map[string]CheckpointProgress `json:"checkpoints"`
	QuestionsRevealed []string                      `json:"questionsRevealed"`
	ConceptsReviewed  map[string][]time.Time        `json:"conceptsReviewed"` // Oldest first
}

// CheckpointProgress is a self-assessment result. Confidence 0 means unset.
type CheckpointProgress struct {
	Confidence  int        `json:"confidence"`
	Items       []bool     `json:"items"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Bookmark is identified by the (ChapterSlug, HeadingSlug) pair.
type Bookmark struct {
	ChapterSlug string    `json:"chapterSlug"`
	HeadingSlug string    `json:"headingSlug"`
	HeadingText string    `json:"headingText"`
	CreatedAt   time.Time `json:"createdAt"`
	Note        string    `json:"note,omitempty"`
}

// UserSettings are reader display preferences.
type UserSettings struct {
	Theme               Theme    `json:"theme"`
	FontSize            FontSize `json:"fontSize"`
	ShowReadingTime     bool     `json:"showReadingTime"`
	EnableReviewPrompts bool     `json:"enableReviewPrompts"`
}

// Clone returns a deep copy sharing no maps or slices with p.
func (p UserProgress) Clone() UserProgress {
	out := p
	out.StartedAt = cloneTime(p.StartedAt)
	out.Bookmarks = slices.Clone(p.Bookmarks)
	if p.Chapters != nil {
		out.Chapters = make(map[string]ChapterProgress, len(p.Chapters))
		for slug, ch := range p.Chapters {
			out.Chapters[slug] = ch.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the chapter progress.
func (c ChapterProgress) Clone() ChapterProgress {
	out := c
	out.Started = cloneTime(c.Started)
	out.Completed = cloneTime(c.Completed)
	if c.ScrollPosition != nil {
		pos := *c.ScrollPosition
		out.ScrollPosition = &pos
	}
	out.QuestionsRevealed = slices.Clone(c.QuestionsRevealed)
	if c.Checkpoints != nil {
		out.Checkpoints = make(map[string]CheckpointProgress, len(c.Checkpoints))
		for id, cp := range c.Checkpoints {
			cp.Items = slices.Clone(cp.Items)
			cp.CompletedAt = cloneTime(cp.CompletedAt)
			out.Checkpoints[id] = cp
		}
	}
	if c.ConceptsReviewed != nil {
		out.ConceptsReviewed = maps.Clone(c.ConceptsReviewed)
		for id, reviews := range out.ConceptsReviewed {
			out.ConceptsReviewed[id] = slices.Clone(reviews)
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
