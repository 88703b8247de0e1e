// Package mcp exposes courses, search, reader progress, review and builds
// as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/progress"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
)

const serverName = "book-viewer"

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Version    string
	Store      storage.Store // Progress and build state; nil keeps both in memory
	Logger     *logrus.Logger
}

// Server wraps the MCP server with the book viewer's tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	now        func() time.Time

	progressMu sync.Mutex
	progress   map[string]*progress.Store // Progress key -> store

	jobs sync.WaitGroup
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		serverName,
		cfg.Version,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
		now:        time.Now,
		progress:   make(map[string]*progress.Store),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	tools := []server.ServerTool{
		{
			Tool: mcp.NewTool("list_courses",
				mcp.WithDescription("List configured courses with chapter counts and last build time"),
			),
			Handler: s.handleListCourses,
		},
		{
			Tool: mcp.NewTool("search_chapters",
				mcp.WithDescription("Search chapter titles, content and headings"),
				mcp.WithString("query",
					mcp.Required(),
					mcp.Description("Search text (case-insensitive)"),
				),
				mcp.WithString("course_key",
					mcp.Description("Limit search to one course (optional)"),
				),
				mcp.WithNumber("max_results",
					mcp.Description("Maximum results per course (default from config, max 100)"),
				),
			),
			Handler: s.handleSearchChapters,
		},
		{
			Tool: mcp.NewTool("get_chapter_toc",
				mcp.WithDescription("Get the table of contents and neighbours of a built chapter"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("chapter_slug", mcp.Required(), mcp.Description("Chapter slug, e.g. '03-diffs'")),
			),
			Handler: s.handleGetChapterTOC,
		},
		{
			Tool: mcp.NewTool("list_due_concepts",
				mcp.WithDescription("List concepts due for spaced-repetition review, weakest first"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
			),
			Handler: s.handleListDueConcepts,
		},
		{
			Tool: mcp.NewTool("review_concept",
				mcp.WithDescription("Record a review of a concept now"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("chapter_slug", mcp.Required(), mcp.Description("Chapter the concept belongs to")),
				mcp.WithString("concept_id", mcp.Required(), mcp.Description("Concept id")),
			),
			Handler: s.handleReviewConcept,
		},
		{
			Tool: mcp.NewTool("get_progress",
				mcp.WithDescription("Get reading progress, completed chapters and settings for a course"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
			),
			Handler: s.handleGetProgress,
		},
		{
			Tool: mcp.NewTool("start_chapter",
				mcp.WithDescription("Mark a chapter as started"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("chapter_slug", mcp.Required(), mcp.Description("Chapter slug")),
			),
			Handler: s.handleStartChapter,
		},
		{
			Tool: mcp.NewTool("update_read_progress",
				mcp.WithDescription("Record how far a chapter has been read"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("chapter_slug", mcp.Required(), mcp.Description("Chapter slug")),
				mcp.WithNumber("percent", mcp.Required(), mcp.Description("Percentage read, clamped to 0-100")),
				mcp.WithNumber("scroll_position", mcp.Description("Scroll offset to resume from (optional)")),
			),
			Handler: s.handleUpdateReadProgress,
		},
		{
			Tool: mcp.NewTool("complete_chapter",
				mcp.WithDescription("Mark a chapter as completed"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("chapter_slug", mcp.Required(), mcp.Description("Chapter slug")),
			),
			Handler: s.handleCompleteChapter,
		},
		{
			Tool: mcp.NewTool("reveal_question",
				mcp.WithDescription("Record that a question's answer was revealed"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("chapter_slug", mcp.Required(), mcp.Description("Chapter slug")),
				mcp.WithString("question_id", mcp.Required(), mcp.Description("Question widget id in the built chapter")),
			),
			Handler: s.handleRevealQuestion,
		},
		{
			Tool: mcp.NewTool("update_checkpoint",
				mcp.WithDescription("Save a checkpoint self-assessment"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("chapter_slug", mcp.Required(), mcp.Description("Chapter slug")),
				mcp.WithString("checkpoint_id", mcp.Required(), mcp.Description("Checkpoint widget id in the built chapter")),
				mcp.WithNumber("confidence", mcp.Description("Confidence from 1 to 5; 0 clears it")),
				mcp.WithArray("items",
					mcp.Description("Checked state of every checklist item"),
					mcp.Items(map[string]any{"type": "boolean"}),
				),
			),
			Handler: s.handleUpdateCheckpoint,
		},
		{
			Tool: mcp.NewTool("update_settings",
				mcp.WithDescription("Change reader settings"),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithString("theme", mcp.Description("light, dark or system")),
				mcp.WithString("font_size", mcp.Description("sm, md, lg or xl")),
				mcp.WithBoolean("show_reading_time", mcp.Description("Show estimated reading time")),
				mcp.WithBoolean("enable_review_prompts", mcp.Description("Prompt for concept reviews")),
			),
			Handler: s.handleUpdateSettings,
		},
		{
			Tool: mcp.NewTool("build_course",
				mcp.WithDescription("Start a background build of a course. Returns immediately with a job ID."),
				mcp.WithString("course_key", mcp.Required(), mcp.Description("Course key from config")),
				mcp.WithBoolean("incremental",
					mcp.Description("Skip chapters whose source is unchanged since the last build"),
				),
			),
			Handler: s.handleBuildCourse,
		},
		{
			Tool: mcp.NewTool("get_job_status",
				mcp.WithDescription("Get the status of a build job"),
				mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by build_course")),
			),
			Handler: s.handleGetJobStatus,
		},
	}
	s.mcpServer.AddTools(tools...)
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// progressStore returns the shared progress store for a progress key,
// opening it from storage on first use.
func (s *Server) progressStore(key string) *progress.Store {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	if st, ok := s.progress[key]; ok {
		return st
	}
	st := progress.Open(s.cfg.Store, key, s.log, progress.WithClock(func() time.Time { return s.now() }))
	s.progress[key] = st
	return st
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		return server.NewSSEServer(s.mcpServer).Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running build jobs and waits for them to stop
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
