package build

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// Source is one chapter source file found in a content directory.
type Source struct {
	Slug string // File name without extension
	Path string
}

// Discover lists the chapter sources directly inside dir, ordered by their
// NN- prefix and then by slug. Files named README are never chapters.
// A missing dir yields no sources and no error.
func Discover(dir string, exts []string, exclude []*regexp.Regexp) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrFilesystem, "read content dir '%s': %v", dir, err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext, ok := search.SourceExtension(name, exts)
		if !ok || strings.HasPrefix(strings.ToUpper(name), "README") {
			continue
		}
		if utils.MatchesAny(exclude, name) {
			continue
		}
		sources = append(sources, Source{
			Slug: strings.TrimSuffix(name, ext),
			Path: filepath.Join(dir, name),
		})
	}

	slices.SortFunc(sources, func(a, b Source) int {
		if d := ordinal(a.Slug) - ordinal(b.Slug); d != 0 {
			return d
		}
		return strings.Compare(a.Slug, b.Slug)
	})
	return sources, nil
}

func ordinal(slug string) int {
	n, _ := strconv.Atoi(search.ChapterNumber(slug))
	return n
}
