// Package watch rebuilds courses when their chapter sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/orchestrate"
	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
)

// Rebuild triggers
const (
	TriggerStart    = "start"
	TriggerChange   = "change"
	TriggerInterval = "interval"
)

const defaultDebounce = 300 * time.Millisecond

// RebuildFunc rebuilds one course and reports how many chapters were written
type RebuildFunc func(ctx context.Context, courseKey string) (int, error)

// Options configures a Watcher
type Options struct {
	Extensions   []string      // Source extensions that trigger a rebuild
	Debounce     time.Duration // Quiet period after the last change before rebuilding
	Interval     time.Duration // Periodic full rebuild; 0 disables
	BuildOnStart bool
	State        *StateManager // Optional; records each rebuild
}

// Watcher watches course content directories and calls a RebuildFunc,
// one course at a time, after changes settle.
type Watcher struct {
	fs      *fsnotify.Watcher
	courses map[string]string // content dir -> course key
	opts    Options
	rebuild RebuildFunc
	log     *logrus.Entry

	fire    chan string
	stopped chan struct{}

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// NewWatcher creates a watcher over contentDirs (course key -> directory).
// Directories that do not exist yet are skipped with a warning.
func NewWatcher(contentDirs map[string]string, opts Options, rebuild RebuildFunc, log *logrus.Entry) (*Watcher, error) {
	if rebuild == nil {
		panic("watch: nil RebuildFunc")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = search.DefaultExtensions
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fs:      fsw,
		courses: make(map[string]string, len(contentDirs)),
		opts:    opts,
		rebuild: rebuild,
		log:     log,
		fire:    make(chan string),
		stopped: make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}

	for courseKey, dir := range contentDirs {
		dir = filepath.Clean(dir)
		if _, err := os.Stat(dir); err != nil {
			log.Warnf("Not watching course '%s': %v", courseKey, err)
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.courses[dir] = courseKey
		log.Debugf("Watching %s for course '%s'", dir, courseKey)
	}
	return w, nil
}

// Courses returns the keys of the watched courses, sorted
func (w *Watcher) Courses() []string {
	keys := make([]string, 0, len(w.courses))
	for _, key := range w.courses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Run processes file events until ctx is cancelled. Rebuilds never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	defer close(w.stopped)
	defer w.stopTimers()

	if w.opts.BuildOnStart {
		for _, courseKey := range w.Courses() {
			w.runRebuild(ctx, courseKey, TriggerStart)
		}
	}

	var tick <-chan time.Time
	if w.opts.Interval > 0 {
		ticker := time.NewTicker(tickInterval(w.opts.Interval))
		defer ticker.Stop()
		tick = ticker.C
		w.log.Infof("Periodic rebuild every %s", FormatInterval(w.opts.Interval))
	}

	w.log.Infof("Watching %d courses for changes", len(w.courses))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Watcher stopped")
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if courseKey, relevant := w.courseFor(event); relevant {
				w.log.Debugf("%s: %s", event.Op, event.Name)
				w.schedule(courseKey)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("Watcher error: %v", err)

		case courseKey := <-w.fire:
			w.runRebuild(ctx, courseKey, TriggerChange)

		case <-tick:
			for _, courseKey := range w.Courses() {
				if w.opts.State == nil || w.opts.State.ShouldRebuild(courseKey, w.opts.Interval) {
					w.runRebuild(ctx, courseKey, TriggerInterval)
				}
			}
		}
	}
}

// courseFor maps an event to its course when it touches a chapter source
func (w *Watcher) courseFor(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	if _, ok := search.SourceExtension(filepath.Base(event.Name), w.opts.Extensions); !ok {
		return "", false
	}
	courseKey, ok := w.courses[filepath.Dir(event.Name)]
	return courseKey, ok
}

// schedule (re)starts the debounce timer for a course
func (w *Watcher) schedule(courseKey string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()
	w.scheduleLocked(courseKey)
}

// scheduleLocked requires timersMu. A timer that already fired is replaced
// rather than reset, since its callback may still be waiting for the lock.
func (w *Watcher) scheduleLocked(courseKey string) {
	if t, ok := w.timers[courseKey]; ok && t.Stop() {
		t.Reset(w.opts.Debounce)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(w.opts.Debounce, func() {
		w.timersMu.Lock()
		if w.timers[courseKey] == t {
			delete(w.timers, courseKey)
		}
		w.timersMu.Unlock()

		select {
		case w.fire <- courseKey:
		case <-w.stopped:
		}
	})
	w.timers[courseKey] = t
}

func (w *Watcher) stopTimers() {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()
	for key, t := range w.timers {
		t.Stop()
		delete(w.timers, key)
	}
}

func (w *Watcher) runRebuild(ctx context.Context, courseKey, trigger string) {
	if ctx.Err() != nil {
		return
	}
	courseLog := w.log.WithFields(logrus.Fields{"course": courseKey, "trigger": trigger})
	start := time.Now()

	chapters, err := w.rebuild(ctx, courseKey)
	if err != nil {
		courseLog.Errorf("Rebuild failed after %v: %v", time.Since(start), err)
	} else {
		courseLog.Infof("Rebuilt %d chapters in %v", chapters, time.Since(start))
	}

	if w.opts.State == nil {
		return
	}
	w.opts.State.RecordBuild(courseKey, trigger, chapters, err)
	if err := w.opts.State.Save(); err != nil {
		courseLog.Warnf("Failed to save watch state: %v", err)
	}
}

// tickInterval checks for due rebuilds often enough to be on time without
// spinning for long intervals.
func tickInterval(interval time.Duration) time.Duration {
	tick := interval / 10
	switch {
	case tick < time.Second:
		return time.Second
	case tick > 5*time.Minute:
		return 5 * time.Minute
	}
	return tick
}

// OrchestratorRebuild returns a RebuildFunc that builds one course through
// the orchestrator, sharing state across rebuilds for incremental builds.
func OrchestratorRebuild(appCfg *config.AppConfig, state storage.BuildStateStore, log *logrus.Entry) RebuildFunc {
	return func(ctx context.Context, courseKey string) (int, error) {
		results := orchestrate.NewOrchestrator(ctx, appCfg, []string{courseKey}, state, log).Run()
		if len(results) == 0 {
			return 0, errors.New("no build result")
		}
		result := results[0]
		return result.Built, result.Error
	}
}

// ContentDirs resolves the content directory of each course
func ContentDirs(appCfg *config.AppConfig, courseKeys []string) map[string]string {
	dirs := make(map[string]string, len(courseKeys))
	for _, key := range courseKeys {
		dirs[key] = config.GetEffectiveContentDir(key, appCfg.Courses[key], *appCfg)
	}
	return dirs
}
