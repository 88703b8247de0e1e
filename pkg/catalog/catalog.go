// Package catalog holds a course's ordered chapter list and tier
// descriptions. A Catalog is built once from configuration and handed
// explicitly to every component that needs chapter metadata.
package catalog

import (
	"fmt"
	"sort"

	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// Catalog is read-only after construction.
type Catalog struct {
	courseKey string
	title     string
	chapters  []models.ChapterMeta
	index     map[string]int
	tiers     map[int]config.TierConfig
}

// New validates chapters and builds a catalog. Chapter order is the order given.
func New(courseKey, title string, chapters []models.ChapterMeta, tiers map[int]config.TierConfig) (*Catalog, error) {
	c := &Catalog{
		courseKey: courseKey,
		title:     title,
		chapters:  make([]models.ChapterMeta, len(chapters)),
		index:     make(map[string]int, len(chapters)),
		tiers:     make(map[int]config.TierConfig, len(tiers)),
	}
	copy(c.chapters, chapters)
	for k, v := range tiers {
		c.tiers[k] = v
	}

	for i, ch := range c.chapters {
		if ch.Slug == "" {
			return nil, fmt.Errorf("%w: chapter #%d has no slug", utils.ErrConfigValidation, i+1)
		}
		if _, dup := c.index[ch.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate chapter slug '%s'", utils.ErrConfigValidation, ch.Slug)
		}
		if ch.EstimatedMinutes <= 0 {
			return nil, fmt.Errorf("%w: chapter '%s' needs a positive estimated_minutes", utils.ErrConfigValidation, ch.Slug)
		}
		if ch.Tier <= 0 {
			return nil, fmt.Errorf("%w: chapter '%s' needs a positive tier", utils.ErrConfigValidation, ch.Slug)
		}
		c.index[ch.Slug] = i
	}
	return c, nil
}

// FromConfig builds the catalog for one configured course.
func FromConfig(courseKey string, courseCfg config.CourseConfig) (*Catalog, error) {
	return New(courseKey, courseCfg.Title, courseCfg.Chapters, courseCfg.Tiers)
}

// CourseKey returns the configuration key of the course.
func (c *Catalog) CourseKey() string { return c.courseKey }

// Title returns the course title.
func (c *Catalog) Title() string { return c.title }

// Len returns the number of chapters.
func (c *Catalog) Len() int { return len(c.chapters) }

// Chapters returns a copy of the ordered chapter list.
func (c *Catalog) Chapters() []models.ChapterMeta {
	out := make([]models.ChapterMeta, len(c.chapters))
	copy(out, c.chapters)
	return out
}

// Chapter looks up a chapter by slug.
func (c *Catalog) Chapter(slug string) (models.ChapterMeta, bool) {
	i, ok := c.index[slug]
	if !ok {
		return models.ChapterMeta{}, false
	}
	return c.chapters[i], true
}

// Next returns the chapter after slug, if any.
func (c *Catalog) Next(slug string) (models.ChapterMeta, bool) {
	i, ok := c.index[slug]
	if !ok || i+1 >= len(c.chapters) {
		return models.ChapterMeta{}, false
	}
	return c.chapters[i+1], true
}

// Prev returns the chapter before slug, if any.
func (c *Catalog) Prev(slug string) (models.ChapterMeta, bool) {
	i, ok := c.index[slug]
	if !ok || i == 0 {
		return models.ChapterMeta{}, false
	}
	return c.chapters[i-1], true
}

// TierDescription returns the configured description for tier n.
func (c *Catalog) TierDescription(n int) (config.TierConfig, bool) {
	t, ok := c.tiers[n]
	return t, ok
}

// TableOfContents groups chapters by tier, tiers ascending, chapter order kept.
// Tiers without chapters are omitted.
func (c *Catalog) TableOfContents() models.TableOfContents {
	byTier := make(map[int][]models.ChapterMeta)
	for _, ch := range c.chapters {
		byTier[ch.Tier] = append(byTier[ch.Tier], ch)
	}

	numbers := make([]int, 0, len(byTier))
	for n := range byTier {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	toc := models.TableOfContents{Tiers: make([]models.Tier, 0, len(numbers))}
	for _, n := range numbers {
		tier := models.Tier{Number: n, Title: fmt.Sprintf("Tier %d", n), Chapters: byTier[n]}
		if desc, ok := c.tiers[n]; ok {
			if desc.Title != "" {
				tier.Title = desc.Title
			}
			tier.Description = desc.Description
		}
		toc.Tiers = append(toc.Tiers, tier)
	}
	return toc
}

// TotalReadingTime sums estimated minutes over all chapters.
func (c *Catalog) TotalReadingTime() int {
	total := 0
	for _, ch := range c.chapters {
		total += ch.EstimatedMinutes
	}
	return total
}
