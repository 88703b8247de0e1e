// Package review implements the spaced-repetition schedule for concept
// cards. Everything here is a pure function of review history and the
// supplied clock.
package review

import (
	"math"
	"slices"
	"time"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

// Intervals are the review gaps in days, indexed by review count.
var Intervals = [...]int{1, 3, 7, 14, 30}

const day = 24 * time.Hour

const (
	baseDecay      = 0.1
	bonusPerReview = 0.1
	maxBonus       = 0.5
	bonusWeight    = 0.05
)

// NextInterval returns the gap in days after reviewCount reviews. Counts
// past the table use its last entry.
func NextInterval(reviewCount int) int {
	idx := min(max(reviewCount, 0), len(Intervals)-1)
	return Intervals[idx]
}

// IsConceptDue reports whether a concept last reviewed at last, with
// reviewCount reviews so far, should be reviewed at now. A concept that was
// never reviewed is never due.
func IsConceptDue(last *time.Time, reviewCount int, now time.Time) bool {
	if last == nil {
		return false
	}
	return wholeDays(now.Sub(*last)) >= NextInterval(reviewCount)
}

func wholeDays(d time.Duration) int {
	return int(math.Floor(float64(d) / float64(day)))
}

// RetentionStrength is a 0..1 estimate of recall for a review history
// (oldest first). More reviews slow the decay. It only ranks due items.
func RetentionStrength(reviews []time.Time, now time.Time) float64 {
	if len(reviews) == 0 {
		return 0
	}
	days := float64(now.Sub(reviews[len(reviews)-1])) / float64(day)
	bonus := math.Min(float64(len(reviews))*bonusPerReview, maxBonus)
	decay := baseDecay - bonus*bonusWeight
	strength := math.Exp(-decay * days)
	return math.Max(0, math.Min(1, strength))
}

// reviewsOf returns the history recorded for concept c.
func reviewsOf(p models.UserProgress, chapterSlug, conceptID string) []time.Time {
	ch, ok := p.Chapters[chapterSlug]
	if !ok {
		return nil
	}
	return ch.ConceptsReviewed[conceptID]
}

// ConceptsDueForReview filters concepts to those reviewed at least once and
// due at now, keeping input order.
func ConceptsDueForReview(p models.UserProgress, concepts []models.Concept, now time.Time) []models.Concept {
	due := []models.Concept{}
	for _, c := range concepts {
		reviews := reviewsOf(p, c.ChapterSlug, c.ID)
		if len(reviews) == 0 {
			continue
		}
		last := reviews[len(reviews)-1]
		if IsConceptDue(&last, len(reviews), now) {
			due = append(due, c)
		}
	}
	return due
}

// SortByUrgency returns a copy of concepts ordered weakest retention first.
// Ties keep their input order.
func SortByUrgency(concepts []models.Concept, p models.UserProgress, now time.Time) []models.Concept {
	out := slices.Clone(concepts)
	strength := make(map[models.Concept]float64, len(out))
	for _, c := range out {
		strength[c] = RetentionStrength(reviewsOf(p, c.ChapterSlug, c.ID), now)
	}
	slices.SortStableFunc(out, func(a, b models.Concept) int {
		return compareFloat(strength[a], strength[b])
	})
	return out
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Stats summarises review activity across all chapters.
type Stats struct {
	TotalConcepts    int     `json:"totalConcepts"`
	ReviewedConcepts int     `json:"reviewedConcepts"`
	TotalReviews     int     `json:"totalReviews"`
	AverageReviews   float64 `json:"averageReviews"`
}

// ReviewStats counts every concept with a history entry, reviewed or not.
func ReviewStats(p models.UserProgress) Stats {
	var s Stats
	for _, ch := range p.Chapters {
		for _, reviews := range ch.ConceptsReviewed {
			s.TotalConcepts++
			if len(reviews) > 0 {
				s.ReviewedConcepts++
				s.TotalReviews += len(reviews)
			}
		}
	}
	if s.ReviewedConcepts > 0 {
		s.AverageReviews = float64(s.TotalReviews) / float64(s.ReviewedConcepts)
	}
	return s
}
