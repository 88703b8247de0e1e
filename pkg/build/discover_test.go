package build

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func slugs(sources []Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.Slug)
	}
	return out
}

func TestDiscover_OrdersByChapterNumber(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-baz.mdx", "x")
	writeFile(t, dir, "02-foo.md", "x")
	writeFile(t, dir, "00-bar.mdx", "x")
	writeFile(t, dir, "appendix.md", "x")
	writeFile(t, dir, "README.md", "x")
	writeFile(t, dir, "notes.txt", "x")
	writeFile(t, dir, "sub/03-nested.md", "x")

	sources, err := Discover(dir, []string{".mdx", ".md"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"00-bar", "appendix", "02-foo", "10-baz"}, slugs(sources))
	assert.Equal(t, filepath.Join(dir, "02-foo.md"), sources[2].Path)
}

func TestDiscover_Exclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "01-intro.md", "x")
	writeFile(t, dir, "02-wip.draft.md", "x")

	sources, err := Discover(dir, []string{".md"}, []*regexp.Regexp{regexp.MustCompile(`\.draft\.`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"01-intro"}, slugs(sources))
}

func TestDiscover_MissingDir(t *testing.T) {
	sources, err := Discover(filepath.Join(t.TempDir(), "nope"), []string{".md"}, nil)
	require.NoError(t, err)
	assert.Empty(t, sources)
}
