package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sriram-PR/book-viewer/pkg/build"
	"github.com/Sriram-PR/book-viewer/pkg/catalog"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/orchestrate"
	"github.com/Sriram-PR/book-viewer/pkg/progress"
	"github.com/Sriram-PR/book-viewer/pkg/review"
	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
)

// runSearch handles the search subcommand
func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	courseKey := fs.String("course", "", "Limit search to one course (optional)")
	maxResults := fs.Int("max", 0, "Maximum results per course (default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: book-viewer search [options] <query>\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doSearch(*configFile, *courseKey, strings.Join(fs.Args(), " "), *maxResults, os.Stdout, os.Stderr))
}

// doSearch queries the search index of one or all courses. Courses that
// were never built are indexed from their sources.
func doSearch(configPath, courseKey, query string, maxResults int, stdout, stderr io.Writer) int {
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(stderr, "Error: a search query is required")
		return 1
	}
	appCfg, ok := loadValidated(configPath, stderr)
	if !ok {
		return 1
	}

	keys := orchestrate.GetAllCourseKeys(appCfg)
	if courseKey != "" {
		if err := orchestrate.ValidateCourseKeys(appCfg, []string{courseKey}); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		keys = []string{courseKey}
	}
	if maxResults <= 0 {
		maxResults = appCfg.SearchMaxResults
	}

	log := quietLogger(stderr)
	total := 0
	for _, key := range keys {
		index, err := build.CourseIndex(key, *appCfg, appCfg.Courses[key], log)
		if err != nil {
			fmt.Fprintf(stderr, "Error: [%s] %v\n", key, err)
			return 1
		}
		results := search.Query(index, query, search.QueryOptions{
			MinLength:  appCfg.SearchMinQueryLength,
			MaxResults: maxResults,
		})
		for _, r := range results {
			fmt.Fprintf(stdout, "[%s] %s  %s\n", key, r.Slug, r.Title)
			if r.Heading != nil {
				fmt.Fprintf(stdout, "    #%s %s\n", r.Heading.Slug, r.Heading.Text)
			}
			if r.Excerpt != "" {
				fmt.Fprintf(stdout, "    %s\n", r.Excerpt)
			}
		}
		total += len(results)
	}

	if total == 0 {
		fmt.Fprintf(stdout, "No results for %q.\n", strings.TrimSpace(query))
	}
	return 0
}

// runReview handles the review subcommand
func runReview(args []string) {
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	courseKey := fs.String("course", "", "Course key from config (required)")
	listOnly := fs.Bool("list", false, "Only list the due concepts")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: book-viewer review -course <key> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *courseKey == "" {
		fmt.Fprintln(os.Stderr, "Error: -course is required")
		fs.Usage()
		os.Exit(1)
	}

	appCfg, ok := loadValidated(*configFile, os.Stderr)
	if !ok {
		os.Exit(1)
	}
	log := quietLogger(os.Stderr)
	store, err := openStore(context.Background(), appCfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var code int
	if *listOnly {
		code = doDue(appCfg, store, *courseKey, time.Now(), os.Stdout, os.Stderr)
	} else {
		code = doReviewSession(appCfg, store, *courseKey, os.Stdin, os.Stdout, os.Stderr)
	}
	store.Close()
	os.Exit(code)
}

// conceptTexts maps "<chapter>/<concept id>" to concept text from the
// course's built concept catalog. Unbuilt courses yield an empty map.
func conceptTexts(appCfg *config.AppConfig, courseKey string, courseCfg config.CourseConfig) map[string]string {
	texts := make(map[string]string)
	concepts, err := build.LoadConcepts(config.GetEffectiveOutputDir(courseKey, courseCfg, *appCfg))
	if err != nil {
		return texts
	}
	for _, c := range concepts {
		texts[c.ChapterSlug+"/"+c.ID] = c.Text
	}
	return texts
}

// doDue lists the concepts of a course due for review at now.
func doDue(appCfg *config.AppConfig, kv storage.KeyValueStore, courseKey string, now time.Time, stdout, stderr io.Writer) int {
	courseCfg, cat, err := courseCatalog(appCfg, courseKey)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	p := progress.Load(kv, config.GetEffectiveProgressKey(courseCfg, *appCfg), quietLogger(stderr))
	items := review.DueItems(p, cat, now)
	if len(items) == 0 {
		fmt.Fprintln(stdout, "No concepts due for review.")
		return 0
	}

	texts := conceptTexts(appCfg, courseKey, courseCfg)
	fmt.Fprintf(stdout, "%d concepts due for review:\n\n", len(items))
	for _, item := range items {
		fmt.Fprintf(stdout, "  %s / %s  (%s)\n", item.ChapterSlug, item.ConceptID, item.ChapterTitle)
		fmt.Fprintf(stdout, "    reviews: %d, strength: %.0f%%, next interval: %dd\n",
			item.ReviewCount, item.Strength*100, item.NextInterval)
		if text, ok := texts[item.ChapterSlug+"/"+item.ConceptID]; ok {
			fmt.Fprintf(stdout, "    %s\n", firstLine(text))
		}
	}
	return 0
}

// doReviewSession walks the due concepts interactively, reading one answer
// per line from in: enter or "r" records a review, "s" skips, "q" stops.
func doReviewSession(appCfg *config.AppConfig, kv storage.KeyValueStore, courseKey string, in io.Reader, stdout, stderr io.Writer) int {
	courseCfg, cat, err := courseCatalog(appCfg, courseKey)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	store := progress.Open(kv, config.GetEffectiveProgressKey(courseCfg, *appCfg), quietLogger(stderr))
	return runSession(store, cat, conceptTexts(appCfg, courseKey, courseCfg), time.Now(), in, stdout)
}

func runSession(store *progress.Store, cat *catalog.Catalog, texts map[string]string, now time.Time, in io.Reader, stdout io.Writer) int {
	session := review.NewSession(store.Snapshot(), cat, now)
	if session.Len() == 0 {
		fmt.Fprintln(stdout, "No concepts due for review.")
		return 0
	}
	fmt.Fprintf(stdout, "Review session %s: %d concepts due\n", session.ID, session.Len())

	scanner := bufio.NewScanner(in)
	for {
		item, ok := session.Current()
		if !ok {
			break
		}
		fmt.Fprintf(stdout, "\n[%d/%d] %s: %s\n", session.Len()-session.Remaining()+1, session.Len(), item.ChapterTitle, item.ConceptID)
		if text, ok := texts[item.ChapterSlug+"/"+item.ConceptID]; ok {
			fmt.Fprintln(stdout, text)
		}
		fmt.Fprint(stdout, "Reviewed? [Enter/r = yes, s = skip, q = quit] ")

		if !scanner.Scan() {
			break
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer == "q" {
			break
		}
		reviewed := answer == "" || answer == "r"
		if reviewed {
			store.Apply(progress.ReviewConcept(item.ChapterSlug, item.ConceptID))
		}
		session.Advance(reviewed)
	}

	fmt.Fprintf(stdout, "\nReviewed %d, skipped %d, remaining %d.\n", session.Reviewed(), session.Skipped(), session.Remaining())
	return 0
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
