package review

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

// ChapterLookup resolves chapter metadata by slug. *catalog.Catalog
// satisfies it.
type ChapterLookup interface {
	Chapter(slug string) (models.ChapterMeta, bool)
}

// Item is one concept queued for review.
type Item struct {
	ConceptID    string    `json:"conceptId"`
	ChapterSlug  string    `json:"chapterSlug"`
	ChapterTitle string    `json:"chapterTitle"`
	ReviewCount  int       `json:"reviewCount"`
	LastReview   time.Time `json:"lastReview"`
	NextInterval int       `json:"nextInterval"` // Days
	Strength     float64   `json:"strength"`
}

// DueItems lists every due concept in chapters known to chapters, weakest
// retention first. Progress for unknown chapters is ignored.
func DueItems(p models.UserProgress, chapters ChapterLookup, now time.Time) []Item {
	if chapters == nil {
		panic("review: DueItems called without a chapter catalog")
	}

	// Reviewed concepts in chapter then id order, so urgency ties are stable
	var reviewed []models.Concept
	for slug, ch := range p.Chapters {
		if _, ok := chapters.Chapter(slug); !ok {
			continue
		}
		for id := range ch.ConceptsReviewed {
			reviewed = append(reviewed, models.Concept{ID: id, ChapterSlug: slug})
		}
	}
	slices.SortFunc(reviewed, func(a, b models.Concept) int {
		if c := cmp.Compare(a.ChapterSlug, b.ChapterSlug); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	due := SortByUrgency(ConceptsDueForReview(p, reviewed, now), p, now)
	items := make([]Item, 0, len(due))
	for _, c := range due {
		reviews := reviewsOf(p, c.ChapterSlug, c.ID)
		meta, _ := chapters.Chapter(c.ChapterSlug)
		items = append(items, Item{
			ConceptID:    c.ID,
			ChapterSlug:  c.ChapterSlug,
			ChapterTitle: meta.Title,
			ReviewCount:  len(reviews),
			LastReview:   reviews[len(reviews)-1],
			NextInterval: NextInterval(len(reviews)),
			Strength:     RetentionStrength(reviews, now),
		})
	}
	return items
}

// Session walks a fixed queue of due items. It is not safe for concurrent
// use.
type Session struct {
	ID        string
	StartedAt time.Time

	items    []Item
	pos      int
	reviewed int
	skipped  int
}

// NewSession snapshots the items due at now.
func NewSession(p models.UserProgress, chapters ChapterLookup, now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: now,
		items:     DueItems(p, chapters, now),
	}
}

// Current returns the item under review, or false once the queue is done.
func (s *Session) Current() (Item, bool) {
	if s.Done() {
		return Item{}, false
	}
	return s.items[s.pos], true
}

// Advance moves past the current item, counting it as reviewed or skipped.
func (s *Session) Advance(reviewed bool) {
	if s.Done() {
		return
	}
	if reviewed {
		s.reviewed++
	} else {
		s.skipped++
	}
	s.pos++
}

func (s *Session) Done() bool     { return s.pos >= len(s.items) }
func (s *Session) Len() int       { return len(s.items) }
func (s *Session) Remaining() int { return len(s.items) - s.pos }
func (s *Session) Reviewed() int  { return s.reviewed }
func (s *Session) Skipped() int   { return s.skipped }
