package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sriram-PR/book-viewer/pkg/catalog"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/progress"
	"github.com/Sriram-PR/book-viewer/pkg/review"
)

// progressOptions are the flags shared by the progress actions
type progressOptions struct {
	Yes  bool   // Confirms reset
	Note string // Bookmark note
}

// runProgress handles the progress subcommand
func runProgress(args []string) {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	courseKey := fs.String("course", "", "Course key from config (required)")
	yes := fs.Bool("yes", false, "Confirm reset")
	note := fs.String("note", "", "Note for 'bookmark add'")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: book-viewer progress -course <key> [options] <action> [args]

Actions:
  show                                  Summarise reading progress
  export                                Write progress JSON to stdout
  import <file|->                       Replace progress with a JSON export
  reset -yes                            Clear all progress
  bookmark list [chapter]               List bookmarks
  bookmark add <chapter> <heading-slug> <heading text>
  bookmark remove <chapter> <heading-slug>

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *courseKey == "" || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	appCfg, ok := loadValidated(*configFile, os.Stderr)
	if !ok {
		os.Exit(1)
	}
	courseCfg, cat, err := courseCatalog(appCfg, *courseKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := quietLogger(os.Stderr)
	store, err := openStore(context.Background(), appCfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	st := progress.Open(store, config.GetEffectiveProgressKey(courseCfg, *appCfg), log)

	code := doProgress(st, cat, fs.Arg(0), fs.Args()[1:], progressOptions{Yes: *yes, Note: *note}, os.Stdin, os.Stdout, os.Stderr)
	store.Close()
	os.Exit(code)
}

// doProgress runs one progress action against st.
// Returns exit code (0 = success, 1 = error).
func doProgress(st *progress.Store, cat *catalog.Catalog, action string, args []string, opts progressOptions, stdin io.Reader, stdout, stderr io.Writer) int {
	switch action {
	case "show":
		showProgress(st.Snapshot(), cat, stdout)
		return 0

	case "export":
		data, err := st.Export()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(data))
		return 0

	case "import":
		if len(args) != 1 {
			fmt.Fprintln(stderr, "Error: import needs a file path, or - for stdin")
			return 1
		}
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if err := st.Import(data); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "Progress imported.")
		return 0

	case "reset":
		if !opts.Yes {
			fmt.Fprintln(stderr, "Error: reset clears all progress; pass -yes to confirm")
			return 1
		}
		st.Reset()
		fmt.Fprintln(stdout, "Progress reset.")
		return 0

	case "bookmark":
		return doBookmark(st, cat, args, opts, stdout, stderr)
	}

	fmt.Fprintf(stderr, "Error: unknown progress action '%s'\n", action)
	return 1
}

func doBookmark(st *progress.Store, cat *catalog.Catalog, args []string, opts progressOptions, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Error: bookmark needs an action: list, add or remove")
		return 1
	}

	switch args[0] {
	case "list":
		chapter := ""
		if len(args) > 1 {
			chapter = args[1]
		}
		bookmarks := progress.Bookmarks(st.Snapshot(), chapter)
		if len(bookmarks) == 0 {
			fmt.Fprintln(stdout, "No bookmarks.")
			return 0
		}
		for _, b := range bookmarks {
			fmt.Fprintf(stdout, "  %s#%s  %s", b.ChapterSlug, b.HeadingSlug, b.HeadingText)
			if b.Note != "" {
				fmt.Fprintf(stdout, "  (%s)", b.Note)
			}
			fmt.Fprintln(stdout)
		}
		return 0

	case "add":
		if len(args) < 4 {
			fmt.Fprintln(stderr, "Error: bookmark add needs <chapter> <heading-slug> <heading text>")
			return 1
		}
		chapter, heading := args[1], args[2]
		if _, ok := cat.Chapter(chapter); !ok {
			fmt.Fprintf(stderr, "Error: chapter '%s' not found in course '%s'\n", chapter, cat.CourseKey())
			return 1
		}
		st.Apply(progress.AddBookmark(chapter, heading, strings.Join(args[3:], " "), opts.Note))
		fmt.Fprintf(stdout, "Bookmarked %s#%s.\n", chapter, heading)
		return 0

	case "remove":
		if len(args) != 3 {
			fmt.Fprintln(stderr, "Error: bookmark remove needs <chapter> <heading-slug>")
			return 1
		}
		if !progress.IsBookmarked(st.Snapshot(), args[1], args[2]) {
			fmt.Fprintf(stderr, "Error: no bookmark at %s#%s\n", args[1], args[2])
			return 1
		}
		st.Apply(progress.RemoveBookmark(args[1], args[2]))
		fmt.Fprintf(stdout, "Removed bookmark %s#%s.\n", args[1], args[2])
		return 0
	}

	fmt.Fprintf(stderr, "Error: unknown bookmark action '%s'\n", args[0])
	return 1
}

func showProgress(p models.UserProgress, cat *catalog.Catalog, w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", cat.Title(), cat.CourseKey())
	fmt.Fprintf(w, "  Progress: %d%%\n", progress.CourseProgress(p, cat.Len()))
	fmt.Fprintf(w, "  Chapters completed: %d/%d\n", progress.ChaptersCompleted(p), cat.Len())
	if p.LastVisited != "" {
		if meta, ok := cat.Chapter(p.LastVisited); ok {
			fmt.Fprintf(w, "  Last visited: %s\n", meta.Title)
		} else {
			fmt.Fprintf(w, "  Last visited: %s\n", p.LastVisited)
		}
	}
	fmt.Fprintf(w, "  Bookmarks: %d\n", len(p.Bookmarks))

	stats := review.ReviewStats(p)
	fmt.Fprintf(w, "  Concepts reviewed: %d (%d reviews, %.1f avg)\n",
		stats.ReviewedConcepts, stats.TotalReviews, stats.AverageReviews)

	for _, meta := range cat.Chapters() {
		ch, ok := p.Chapters[meta.Slug]
		if !ok {
			continue
		}
		mark := " "
		if ch.Completed != nil {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s %s  %.0f%%\n", mark, meta.Number, meta.Title, ch.ReadProgress)
	}
}
