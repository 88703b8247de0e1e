package orchestrate

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/book-viewer/pkg/build"
	"github.com/Sriram-PR/book-viewer/pkg/catalog"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// CourseResult contains the result of building a single course
type CourseResult struct {
	CourseKey string
	Success   bool
	Error     error
	Built     int
	Skipped   int
	Failed    int // Chapters that failed to render
	Concepts  int
	OutputDir string
	Duration  time.Duration
}

// Orchestrator builds several courses in parallel
type Orchestrator struct {
	appCfg     *config.AppConfig
	log        *logrus.Entry
	courseKeys []string
	state      storage.BuildStateStore // Shared by all courses; keys are course scoped

	// Results, indexed like courseKeys
	results   []CourseResult
	resultsMu sync.Mutex

	// Coordination
	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrchestrator creates an orchestrator for courseKeys. state may be nil
// to disable incremental builds.
func NewOrchestrator(ctx context.Context, appCfg *config.AppConfig, courseKeys []string, state storage.BuildStateStore, log *logrus.Entry) *Orchestrator {
	ctx, cancel := context.WithCancel(ctx)
	return &Orchestrator{
		appCfg:     appCfg,
		log:        log,
		courseKeys: courseKeys,
		state:      state,
		results:    make([]CourseResult, len(courseKeys)),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run builds all courses, at most max_parallel_builds at a time, and waits
// for completion. A failing course does not stop the others.
func (o *Orchestrator) Run() []CourseResult {
	defer o.cancel()
	startTime := time.Now()
	o.log.Infof("Starting build of %d courses: %v", len(o.courseKeys), o.courseKeys)

	g, ctx := errgroup.WithContext(o.ctx)
	limit := o.appCfg.MaxParallelBuilds
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, courseKey := range o.courseKeys {
		g.Go(func() error {
			result := o.buildCourse(ctx, courseKey)
			o.resultsMu.Lock()
			o.results[i] = result
			o.resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	o.logSummary(time.Since(startTime))
	return o.Results()
}

// buildCourse builds a single course
func (o *Orchestrator) buildCourse(ctx context.Context, courseKey string) CourseResult {
	startTime := time.Now()
	result := CourseResult{CourseKey: courseKey}
	courseLog := o.log.WithField("course", courseKey)

	courseCfg, exists := o.appCfg.Courses[courseKey]
	if !exists {
		result.Error = utils.WrapErrorf(utils.ErrUnknownCourse, "course '%s' not found in configuration", courseKey)
		courseLog.Errorf("Course '%s' not found in configuration", courseKey)
		return result
	}

	cat, err := catalog.FromConfig(courseKey, courseCfg)
	if err != nil {
		result.Error = fmt.Errorf("invalid catalog for '%s': %w", courseKey, err)
		courseLog.Errorf("Invalid catalog: %v", err)
		return result
	}

	builder, err := build.NewBuilder(courseKey, *o.appCfg, courseCfg, cat, o.state, courseLog)
	if err != nil {
		result.Error = fmt.Errorf("failed to create builder for '%s': %w", courseKey, err)
		courseLog.Errorf("Failed to create builder: %v", err)
		return result
	}
	result.OutputDir = builder.OutputDir()

	courseLog.Info("Starting course build")
	res, err := builder.Build(ctx)
	result.Duration = time.Since(startTime)
	if err != nil {
		result.Error = err
		courseLog.Errorf("Build failed: %v", err)
		return result
	}

	result.Success = res.Failed == 0
	if !result.Success {
		result.Error = fmt.Errorf("%d chapters failed to build", res.Failed)
	}
	result.Built = res.Built
	result.Skipped = res.Skipped
	result.Failed = res.Failed
	result.Concepts = len(res.Concepts)
	return result
}

// Cancel cancels all running builds
func (o *Orchestrator) Cancel() {
	o.log.Info("Cancelling all builds...")
	o.cancel()
}

// Results returns a copy of the results collected so far
func (o *Orchestrator) Results() []CourseResult {
	o.resultsMu.Lock()
	defer o.resultsMu.Unlock()
	return slices.Clone(o.results)
}

// logSummary logs a summary of all build results
func (o *Orchestrator) logSummary(totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Build completed in %v", totalDuration)
	o.log.Info("Course Results:")

	totalChapters := 0
	successCount := 0
	failCount := 0

	for _, r := range o.Results() {
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		totalChapters += r.Built + r.Skipped

		o.log.Infof("  %s: %s - %d built, %d unchanged, %d concepts in %v",
			r.CourseKey, status, r.Built, r.Skipped, r.Concepts, r.Duration)
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d courses (%d success, %d failed), %d chapters",
		len(o.courseKeys), successCount, failCount, totalChapters)
	o.log.Info("============================================")
}

// ValidateCourseKeys checks that all provided course keys exist in the config
func ValidateCourseKeys(appCfg *config.AppConfig, courseKeys []string) error {
	for _, key := range courseKeys {
		if _, exists := appCfg.Courses[key]; !exists {
			return utils.WrapErrorf(utils.ErrUnknownCourse,
				"course '%s' not found. Available courses: %v", key, GetAllCourseKeys(appCfg))
		}
	}
	return nil
}

// GetAllCourseKeys returns all course keys from the config, sorted
func GetAllCourseKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Courses))
	for k := range appCfg.Courses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
