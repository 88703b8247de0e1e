package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/orchestrate"
	"github.com/Sriram-PR/book-viewer/pkg/watch"
)

// runBuild handles the build subcommand
func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	courseKey := fs.String("course", "", "Course key from config (single course)")
	courses := fs.String("courses", "", "Comma-separated course keys")
	allCourses := fs.Bool("all-courses", false, "Build all configured courses")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	incrementalMode := fs.Bool("incremental", false, "Skip chapters whose source is unchanged")
	fullMode := fs.Bool("full", false, "Force a full build (ignore incremental settings)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: book-viewer build [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  book-viewer build -course swe\n")
		fmt.Fprintf(os.Stderr, "  book-viewer build -courses swe,llm -incremental\n")
		fmt.Fprintf(os.Stderr, "  book-viewer build --all-courses\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	keys, ok := parseCourseKeys(*courseKey, *courses, *allCourses)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: one of -course, -courses, or --all-courses is required")
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(executeBuild(*configFile, keys, *allCourses, *logLevel, *pprofAddr, *incrementalMode, *fullMode))
}

// applyIncrementalOverride applies CLI flag overrides for incremental/full builds.
func applyIncrementalOverride(appCfg *config.AppConfig, incremental, full bool, log *logrus.Logger) {
	if incremental {
		appCfg.EnableIncremental = true
		log.Info("Incremental mode enabled via CLI flag")
	}
	if full {
		appCfg.EnableIncremental = false
		log.Info("Full build forced via CLI flag")
	}
}

// resolveCourseKeys expands --all-courses and checks every key exists
func resolveCourseKeys(appCfg *config.AppConfig, keys []string, allCourses bool, log *logrus.Logger) []string {
	if allCourses {
		keys = orchestrate.GetAllCourseKeys(appCfg)
		log.Infof("All courses mode: found %d courses", len(keys))
	}
	if err := orchestrate.ValidateCourseKeys(appCfg, keys); err != nil {
		log.Fatalf("Invalid course keys: %v", err)
	}
	return keys
}

// executeBuild builds the courses and returns the process exit code
func executeBuild(configFile string, keys []string, allCourses bool, logLevelStr, pprofAddr string, incrementalMode, fullMode bool) int {
	log := setupLogger(logLevelStr)
	appCfg := loadAndValidateConfig(configFile, log)
	applyIncrementalOverride(appCfg, incrementalMode, fullMode, log)
	keys = resolveCourseKeys(appCfg, keys, allCourses, log)
	startPprof(pprofAddr, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logEntry := log.WithField("component", "build")
	store, err := openStore(ctx, appCfg, logEntry)
	if err != nil {
		log.Errorf("Failed to open state store: %v", err)
		return 1
	}
	defer store.Close()

	orch := orchestrate.NewOrchestrator(ctx, appCfg, keys, store, logEntry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal %v, initiating graceful shutdown...", sig)
			orch.Cancel()
		case <-ctx.Done():
		}
	}()

	for _, r := range orch.Run() {
		if !r.Success {
			return 1
		}
	}
	return 0
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	courseKey := fs.String("course", "", "Course key from config (single course)")
	courses := fs.String("courses", "", "Comma-separated course keys")
	allCourses := fs.Bool("all-courses", false, "Watch all configured courses")
	interval := fs.String("interval", "", "Also rebuild periodically (e.g., 30m, 1h, 7d); empty disables")
	noInitial := fs.Bool("no-initial-build", false, "Skip the build on start")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: book-viewer watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  book-viewer watch -course swe\n")
		fmt.Fprintf(os.Stderr, "  book-viewer watch --all-courses --interval 24h\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	keys, ok := parseCourseKeys(*courseKey, *courses, *allCourses)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: one of -course, -courses, or --all-courses is required")
		fs.Usage()
		os.Exit(1)
	}

	executeWatch(*configFile, keys, *allCourses, *interval, !*noInitial, *logLevel)
}

// executeWatch rebuilds courses on change until interrupted
func executeWatch(configFile string, keys []string, allCourses bool, intervalStr string, buildOnStart bool, logLevelStr string) {
	log := setupLogger(logLevelStr)

	var interval time.Duration
	if intervalStr != "" {
		var err error
		if interval, err = watch.ParseInterval(intervalStr); err != nil {
			log.Fatalf("Invalid interval: %v", err)
		}
		log.Infof("Periodic rebuild interval: %s", watch.FormatInterval(interval))
	}

	appCfg := loadAndValidateConfig(configFile, log)
	appCfg.EnableIncremental = true
	log.Info("Incremental mode enabled for watch")
	keys = resolveCourseKeys(appCfg, keys, allCourses, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logEntry := log.WithField("component", "watch")
	store, err := openStore(ctx, appCfg, logEntry)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()
	go store.RunGC(ctx, appCfg.DBGCInterval)

	state := watch.NewStateManager(appCfg.StateDir)
	if err := state.Load(); err != nil {
		log.Warnf("Starting with fresh watch state: %v", err)
	}

	watcher, err := watch.NewWatcher(watch.ContentDirs(appCfg, keys), watch.Options{
		Extensions:   appCfg.SourceExtensions,
		Debounce:     appCfg.WatchDebounce,
		Interval:     interval,
		BuildOnStart: buildOnStart,
		State:        state,
	}, watch.OrchestratorRebuild(appCfg, store, logEntry), logEntry)
	if err != nil {
		log.Fatalf("Failed to start watcher: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal %v, stopping watch...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := watcher.Run(ctx); err != nil {
		log.Errorf("Watcher error: %v", err)
	}
	log.Info("Watch mode stopped")
}
