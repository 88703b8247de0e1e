package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

func TestCourseProgress(t *testing.T) {
	done := time.Now()
	p := Default()
	p.Chapters["01-intro"] = models.ChapterProgress{ReadProgress: 100, Completed: &done}
	p.Chapters["02-git"] = models.ChapterProgress{ReadProgress: 50}
	p.Chapters["03-testing"] = models.ChapterProgress{ReadProgress: 10}

	tests := []struct {
		name  string
		p     models.UserProgress
		total int
		want  int
	}{
		{"no chapters", Default(), 16, 0},
		{"over full course", p, 16, 10}, // 160 / 16
		{"over small course", p, 4, 40},
		{"rounds to nearest", p, 3, 53}, // 160 / 3 = 53.33
		{"unknown total uses tracked chapters", p, 0, 53},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CourseProgress(tt.p, tt.total))
		})
	}
}

func TestChaptersCompleted(t *testing.T) {
	done := time.Now()
	p := Default()
	assert.Equal(t, 0, ChaptersCompleted(p))

	p.Chapters["01-intro"] = models.ChapterProgress{Completed: &done}
	p.Chapters["02-git"] = models.ChapterProgress{ReadProgress: 90}
	assert.Equal(t, 1, ChaptersCompleted(p))
}
