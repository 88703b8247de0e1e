package progress

import (
	"math"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

// IsBookmarked reports whether the chapter heading is bookmarked
func IsBookmarked(p models.UserProgress, chapterSlug, headingSlug string) bool {
	for _, b := range p.Bookmarks {
		if b.ChapterSlug == chapterSlug && b.HeadingSlug == headingSlug {
			return true
		}
	}
	return false
}

// Bookmarks returns the bookmarks of one chapter in creation order, or all
// of them when chapterSlug is empty.
func Bookmarks(p models.UserProgress, chapterSlug string) []models.Bookmark {
	out := make([]models.Bookmark, 0, len(p.Bookmarks))
	for _, b := range p.Bookmarks {
		if chapterSlug == "" || b.ChapterSlug == chapterSlug {
			out = append(out, b)
		}
	}
	return out
}

// CourseProgress is the overall percentage: the summed read progress of all
// chapters divided by the number of chapters in the course, rounded.
// A non-positive totalChapters falls back to the number of tracked chapters.
func CourseProgress(p models.UserProgress, totalChapters int) int {
	if len(p.Chapters) == 0 {
		return 0
	}
	if totalChapters <= 0 {
		totalChapters = len(p.Chapters)
	}
	var sum float64
	for _, ch := range p.Chapters {
		sum += ch.ReadProgress
	}
	return int(math.Round(sum / float64(totalChapters)))
}

// ChaptersCompleted counts chapters with a completion time
func ChaptersCompleted(p models.UserProgress) int {
	n := 0
	for _, ch := range p.Chapters {
		if ch.Completed != nil {
			n++
		}
	}
	return n
}
