package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/book-viewer/pkg/catalog"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/orchestrate"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
)

const version = "0.4.0"

// storeName names the state store shared by progress and build state
const storeName = "book-viewer"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-courses":
		runListCourses(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "review":
		runReview(os.Args[2:])
	case "progress":
		runProgress(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("book-viewer %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `book-viewer - Interactive course book builder

Usage:
  book-viewer <command> [options]

Commands:
  build         Build courses into HTML, chapter documents and search indexes
  watch         Rebuild courses when their chapter sources change
  validate      Validate configuration file
  list-courses  List configured courses
  search        Search chapters of one or all courses
  review        Review concepts due for spaced repetition
  progress      Show, export, import or reset reading progress; manage bookmarks
  mcp-server    Start MCP server for AI tool integration
  version       Show version info

Run 'book-viewer <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// quietLogger logs warnings and errors to w, for commands whose stdout is
// the result.
func quietLogger(w io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(log)
}

// loadAndValidateConfig loads the config file, validates the app config and
// every course, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) *config.AppConfig {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	appWarnings, err := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if err := validateCourseConfigs(appCfg, orchestrate.GetAllCourseKeys(appCfg), func(key, w string) {
		log.Warnf("[%s] %s", key, w)
	}); err != nil {
		log.Fatal(err)
	}
	return appCfg
}

// validateCourseConfigs validates and normalizes the named courses in place.
func validateCourseConfigs(appCfg *config.AppConfig, courseKeys []string, warn func(key, warning string)) error {
	for _, key := range courseKeys {
		courseCfg, ok := appCfg.Courses[key]
		if !ok {
			continue
		}
		warnings, err := courseCfg.Validate()
		if err != nil {
			return fmt.Errorf("course '%s' configuration error: %w", key, err)
		}
		for _, w := range warnings {
			warn(key, w)
		}
		appCfg.Courses[key] = courseCfg
	}
	return nil
}

// loadValidated is loadAndValidateConfig for the writer-based commands:
// errors go to stderr, warnings are dropped.
func loadValidated(configPath string, stderr io.Writer) (*config.AppConfig, bool) {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	if _, err := appCfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	if err := validateCourseConfigs(appCfg, orchestrate.GetAllCourseKeys(appCfg), func(string, string) {}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	return appCfg, true
}

// courseCatalog looks up a configured course and builds its catalog
func courseCatalog(appCfg *config.AppConfig, courseKey string) (config.CourseConfig, *catalog.Catalog, error) {
	if err := orchestrate.ValidateCourseKeys(appCfg, []string{courseKey}); err != nil {
		return config.CourseConfig{}, nil, err
	}
	courseCfg := appCfg.Courses[courseKey]
	cat, err := catalog.FromConfig(courseKey, courseCfg)
	if err != nil {
		return config.CourseConfig{}, nil, err
	}
	return courseCfg, cat, nil
}

// openStore opens the state store holding progress and build state
func openStore(ctx context.Context, appCfg *config.AppConfig, log *logrus.Entry) (storage.Store, error) {
	return storage.Open(ctx, appCfg.ProgressBackend, appCfg.StateDir, storeName, log.WithField("component", "storage"))
}

// parseCourseKeys resolves -course, -courses and -all-courses. A nil result
// with allCourses set means every configured course.
func parseCourseKeys(course, courses string, allCourses bool) (keys []string, ok bool) {
	switch {
	case allCourses:
		return nil, true
	case courses != "":
		for _, c := range strings.Split(courses, ",") {
			if c = strings.TrimSpace(c); c != "" {
				keys = append(keys, c)
			}
		}
		return keys, len(keys) > 0
	case course != "":
		return []string{course}, true
	}
	return nil, false
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	courseKey := fs.String("course", "", "Course key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: book-viewer validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *courseKey, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, courseKey string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	keys := orchestrate.GetAllCourseKeys(appCfg)
	if courseKey != "" {
		if _, ok := appCfg.Courses[courseKey]; !ok {
			fmt.Fprintf(stderr, "Error: course '%s' not found in config\n", courseKey)
			return 1
		}
		keys = []string{courseKey}
	}

	hasError := false
	for _, key := range keys {
		courseCfg := appCfg.Courses[key]
		courseWarnings, err := courseCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		if _, err := catalog.FromConfig(key, courseCfg); err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		for _, w := range courseWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		fmt.Fprintf(stdout, "OK: [%s]\n", key)
	}
	if hasError {
		return 1
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListCourses handles the list-courses subcommand
func runListCourses(args []string) {
	fs := flag.NewFlagSet("list-courses", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: book-viewer list-courses [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListCourses(*configFile, os.Stdout, os.Stderr))
}

// doListCourses lists courses and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListCourses(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = appCfg.Validate()

	keys := make([]string, 0, len(appCfg.Courses))
	for k := range appCfg.Courses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(stdout, "Courses in %s:\n\n", configPath)
	for _, key := range keys {
		course := appCfg.Courses[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Title: %s\n", course.Title)
		fmt.Fprintf(stdout, "    Chapters: %d\n", len(course.Chapters))
		minutes := 0
		for _, ch := range course.Chapters {
			minutes += ch.EstimatedMinutes
		}
		if minutes > 0 {
			fmt.Fprintf(stdout, "    Reading time: %d min\n", minutes)
		}
		fmt.Fprintf(stdout, "    Content: %s\n", config.GetEffectiveContentDir(key, course, *appCfg))
		fmt.Fprintln(stdout)
	}
	return 0
}
