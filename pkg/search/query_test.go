package search

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/book-viewer/pkg/models"
)

func sampleIndex() models.SearchIndex {
	return models.SearchIndex{Chapters: []models.SearchRecord{
		{Slug: "01-caching", Title: "Caching Basics", Chapter: "Ch. 01", Content: "Caches store hot data close to the reader."},
		{Slug: "02-queues", Title: "Queues", Chapter: "Ch. 02", Content: "Message queues decouple producers and consumers.",
			Headings: []models.HeadingRecord{
				{Slug: "ordering", Text: "Ordering", Content: "FIFO is not guaranteed."},
				{Slug: "backpressure", Text: "Backpressure", Content: "When consumers lag, slow the producers down."},
			}},
		{Slug: "03-shedding", Title: "Load Shedding", Chapter: "Ch. 03", Content: "Drop work under overload to protect latency."},
	}}
}

func slugsOf(results []models.SearchResult) []string {
	out := []string{}
	for _, r := range results {
		out = append(out, r.Slug)
	}
	return out
}

func TestQuery_TooShort(t *testing.T) {
	assert.Nil(t, Query(sampleIndex(), "c", QueryOptions{}))
	assert.Nil(t, Query(sampleIndex(), "  q  ", QueryOptions{}))
}

func TestQuery_TitleMatch(t *testing.T) {
	results := Query(sampleIndex(), "CACHING", QueryOptions{})

	require.Len(t, results, 1)
	assert.Equal(t, "01-caching", results[0].Slug)
	assert.Equal(t, "Caches store hot data close to the reader.", results[0].Excerpt)
	assert.Nil(t, results[0].Heading)
}

func TestQuery_AllWordsInContent(t *testing.T) {
	results := Query(sampleIndex(), "consumers producers", QueryOptions{})

	assert.Equal(t, []string{"02-queues"}, slugsOf(results))
}

func TestQuery_HeadingMatch(t *testing.T) {
	results := Query(sampleIndex(), "backpressure", QueryOptions{})

	require.Len(t, results, 1)
	require.NotNil(t, results[0].Heading)
	assert.Equal(t, "backpressure", results[0].Heading.Slug)
	assert.Equal(t, "When consumers lag, slow the producers down.", results[0].Excerpt)
}

func TestQuery_SingleRuneWordsDoNotMatchEverything(t *testing.T) {
	assert.Empty(t, Query(sampleIndex(), "q z", QueryOptions{}))
}

func TestQuery_MaxResults(t *testing.T) {
	var index models.SearchIndex
	for i := 0; i < 15; i++ {
		index.Chapters = append(index.Chapters, models.SearchRecord{
			Slug: fmt.Sprintf("%02d-ch", i), Title: fmt.Sprintf("Chapter %d", i),
		})
	}

	assert.Len(t, Query(index, "chapter", QueryOptions{}), 10)
	assert.Len(t, Query(index, "chapter", QueryOptions{MaxResults: 3}), 3)
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("x", 60) + "needle" + strings.Repeat("y", 200)
	wantMiddle := strings.Repeat("x", 50) + "needle" + strings.Repeat("y", 94)

	tests := []struct {
		name    string
		content string
		query   string
		want    string
	}{
		{"middle", long, "needle", "..." + wantMiddle + "..."},
		{"at start", "needle in a haystack", "needle", "needle in a haystack"},
		{"word fallback", "alpha beta gamma", "zeta beta", "alpha beta gamma"},
		{"no match short", "short text", "nothing", "short text"},
		{"no match long", strings.Repeat("a", 200), "zz", strings.Repeat("a", 150) + "..."},
		{"unicode", "ééé Needle", "needle", "ééé Needle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.content, tt.query))
		})
	}
}
