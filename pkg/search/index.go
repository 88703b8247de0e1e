// Package search builds the static chapter search index and answers
// queries against it.
package search

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/frontmatter"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

const (
	DefaultMaxContentLength = 5000
	DefaultMaxHeadings      = 20
)

// DefaultExtensions are the chapter source extensions indexed when none are
// configured.
var DefaultExtensions = []string{".mdx", ".md"}

// Options controls index building.
type Options struct {
	MaxContentLength int              // Runes of stripped content kept per chapter
	MaxHeadings      int              // Heading records kept per chapter
	Extensions       []string         // Source file extensions, with dot
	Exclude          []*regexp.Regexp // Matched against file names
}

func (o Options) withDefaults() Options {
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = DefaultMaxContentLength
	}
	if o.MaxHeadings <= 0 {
		o.MaxHeadings = DefaultMaxHeadings
	}
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	return o
}

// BuildRecord indexes one chapter source. The title comes from the
// frontmatter, falling back to the slug when absent or unreadable.
func BuildRecord(slug string, source []byte, opts Options) models.SearchRecord {
	opts = opts.withDefaults()

	title := slug
	if fm, _, err := frontmatter.Parse(source); err == nil && strings.TrimSpace(fm.Title) != "" {
		title = strings.TrimSpace(fm.Title)
	}

	content := string(source)
	return models.SearchRecord{
		Slug:     slug,
		Title:    title,
		Chapter:  "Ch. " + ChapterNumber(slug),
		Content:  truncateRunes(Strip(content), opts.MaxContentLength),
		Headings: ExtractHeadings(content, opts.MaxContentLength, opts.MaxHeadings),
	}
}

// BuildIndex indexes every chapter source directly inside dir, ordered by
// chapter number. A missing dir yields an empty index, not an error.
func BuildIndex(dir string, opts Options, log *logrus.Entry) (models.SearchIndex, error) {
	opts = opts.withDefaults()
	index := models.SearchIndex{Chapters: []models.SearchRecord{}}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Content directory '%s' not found, writing empty search index", dir)
		return index, nil
	}
	if err != nil {
		return index, utils.WrapErrorf(utils.ErrFilesystem, "read content dir '%s': %v", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext, ok := SourceExtension(name, opts.Extensions)
		if !ok {
			continue
		}
		if utils.MatchesAny(opts.Exclude, name) {
			log.Debugf("Skipping excluded source '%s'", name)
			continue
		}

		source, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return index, utils.WrapErrorf(utils.ErrFilesystem, "read chapter '%s': %v", name, err)
		}
		index.Chapters = append(index.Chapters, BuildRecord(strings.TrimSuffix(name, ext), source, opts))
	}

	SortRecords(index.Chapters)
	log.Infof("Search index built: %d chapters indexed", len(index.Chapters))
	return index, nil
}

// SortRecords orders records by numeric chapter prefix. Equal numbers keep
// their relative order.
func SortRecords(records []models.SearchRecord) {
	slices.SortStableFunc(records, func(a, b models.SearchRecord) int {
		return chapterOrdinal(a.Slug) - chapterOrdinal(b.Slug)
	})
}

func chapterOrdinal(slug string) int {
	n, err := strconv.Atoi(ChapterNumber(slug))
	if err != nil {
		return 0
	}
	return n
}

// SourceExtension reports which of exts name ends with.
func SourceExtension(name string, exts []string) (string, bool) {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return ext, true
		}
	}
	return "", false
}

// WriteIndex writes index as indented JSON, creating parent directories.
func WriteIndex(path string, index models.SearchIndex) error {
	if index.Chapters == nil {
		index.Chapters = []models.SearchRecord{}
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return utils.WrapErrorf(utils.ErrParsing, "marshal search index: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "create dir for '%s': %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "write search index '%s': %v", path, err)
	}
	return nil
}

// LoadIndex reads an index written by WriteIndex.
func LoadIndex(path string) (models.SearchIndex, error) {
	var index models.SearchIndex
	data, err := os.ReadFile(path)
	if err != nil {
		return index, utils.WrapErrorf(utils.ErrFilesystem, "read search index '%s': %v", path, err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return index, utils.WrapErrorf(utils.ErrParsing, "decode search index '%s': %v", path, err)
	}
	if index.Chapters == nil {
		index.Chapters = []models.SearchRecord{}
	}
	return index, nil
}
