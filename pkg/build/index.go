package build

import (
	"errors"
	"io/fs"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// CourseIndex returns the search index of a course: the built index when
// present, otherwise one built directly from the chapter sources.
func CourseIndex(courseKey string, appCfg config.AppConfig, courseCfg config.CourseConfig, log *logrus.Entry) (models.SearchIndex, error) {
	path := SearchIndexPath(config.GetEffectiveOutputDir(courseKey, courseCfg, appCfg), appCfg)
	if _, err := os.Stat(path); err == nil {
		return search.LoadIndex(path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return models.SearchIndex{}, utils.WrapErrorf(utils.ErrFilesystem, "stat search index '%s': %v", path, err)
	}

	exclude, err := utils.CompileRegexPatterns(config.GetEffectiveExcludePatterns(courseCfg, appCfg))
	if err != nil {
		return models.SearchIndex{}, err
	}
	log.Debugf("No built index for '%s', indexing sources", courseKey)
	contentDir := config.GetEffectiveContentDir(courseKey, courseCfg, appCfg)
	return search.BuildIndex(contentDir, searchOptions(courseCfg, appCfg, exclude), log)
}

func searchOptions(courseCfg config.CourseConfig, appCfg config.AppConfig, exclude []*regexp.Regexp) search.Options {
	return search.Options{
		MaxContentLength: config.GetEffectiveSearchMaxContentLength(courseCfg, appCfg),
		MaxHeadings:      config.GetEffectiveSearchMaxHeadings(courseCfg, appCfg),
		Extensions:       appCfg.SourceExtensions,
		Exclude:          exclude,
	}
}
