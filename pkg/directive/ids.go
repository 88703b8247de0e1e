package directive

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// IDSource hands out fallback ids for widgets whose directive has no #id.
// One source is shared by every document of a single build, so ids are
// unique within that build.
type IDSource interface {
	NextID(name Name, chapterSlug string) string
}

// Counter yields name-0, name-1, ... from one build-scoped sequence.
type Counter struct {
	next atomic.Int64
}

// NewCounter returns a counter starting at zero.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) NextID(name Name, _ string) string {
	n := c.next.Add(1) - 1
	return name.String() + "-" + strconv.FormatInt(n, 10)
}

// HashIDs derives ids from course, chapter, kind and ordinal within the
// chapter, so ids survive rebuilds as long as a chapter's directives keep
// their order.
type HashIDs struct {
	course string

	mu   sync.Mutex
	seen map[string]int
}

// NewHashIDs returns a hash-based source scoped to course.
func NewHashIDs(course string) *HashIDs {
	return &HashIDs{course: course, seen: make(map[string]int)}
}

func (h *HashIDs) NextID(name Name, chapterSlug string) string {
	key := chapterSlug + "/" + name.String()

	h.mu.Lock()
	n := h.seen[key]
	h.seen[key] = n + 1
	h.mu.Unlock()

	return fmt.Sprintf("%s-%s", name, utils.ShortHash(fmt.Sprintf("%s/%s/%d", h.course, key, n), 10))
}
