package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/progress"
	"github.com/Sriram-PR/book-viewer/pkg/storage"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

const introChapter = `## Getting started

Source code is text.

:::question{#q-text}
What is source code?

::reveal

Text that a compiler reads.
:::

:::checkpoint{#cp-basics}
- I can open a file
- I can edit it
:::
`

func newTestServer(t *testing.T) (*Server, *config.AppConfig) {
	t.Helper()
	root := t.TempDir()
	appCfg := &config.AppConfig{
		ContentBaseDir: filepath.Join(root, "content"),
		OutputBaseDir:  filepath.Join(root, "dist"),
		StateDir:       filepath.Join(root, "state"),
		Courses: map[string]config.CourseConfig{
			"swe": {
				Title: "Software Engineering",
				Chapters: []models.ChapterMeta{
					{Slug: "01-intro", Number: "01", Title: "Intro", Tier: 1, EstimatedMinutes: 10},
					{Slug: "02-diffs", Number: "02", Title: "Diffs", Tier: 1, EstimatedMinutes: 15},
				},
			},
			"llm": {
				Title: "LLMs",
				Chapters: []models.ChapterMeta{
					{Slug: "01-tokens", Number: "01", Title: "Tokens", Tier: 1, EstimatedMinutes: 5},
				},
			},
		},
	}
	_, err := appCfg.Validate()
	require.NoError(t, err)

	contentDir := filepath.Join(root, "content", "swe")
	require.NoError(t, os.MkdirAll(contentDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "01-intro.md"),
		[]byte(introChapter), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "02-diffs.md"),
		[]byte("---\ntitle: Reading Diffs\n---\n## Hunks\n\nA diff shows changes.\n\n:::concept{#hunk}\nA hunk is one block of changes.\n:::\n"), 0644))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s, err := NewServer(&ServerConfig{
		AppConfig: appCfg,
		Transport: "stdio",
		Store:     storage.NewMemoryStore(),
		Logger:    logger,
	})
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, appCfg
}

// callTool invokes a handler and decodes its JSON text result.
func callTool(t *testing.T, handler server.ToolHandlerFunc, args map[string]any) (map[string]any, string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)

	var text string
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}
	if res.IsError {
		return nil, text, true
	}

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	return out, text, false
}

func TestNewServerRequiresAppConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestHandleListCourses(t *testing.T) {
	s, _ := newTestServer(t)
	out, _, isErr := callTool(t, s.handleListCourses, nil)
	require.False(t, isErr)

	assert.EqualValues(t, 2, out["total_courses"])
	courses := out["courses"].([]any)
	first := courses[0].(map[string]any)
	assert.Equal(t, "llm", first["key"])
	second := courses[1].(map[string]any)
	assert.Equal(t, "swe", second["key"])
	assert.EqualValues(t, 2, second["chapters"])
	assert.EqualValues(t, 25, second["total_minutes"])
	assert.NotContains(t, second, "last_built")
}

func TestHandleSearchChapters(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("indexes sources when not built", func(t *testing.T) {
		out, _, isErr := callTool(t, s.handleSearchChapters, map[string]any{"query": "diff"})
		require.False(t, isErr)
		results := out["results"].([]any)
		require.Len(t, results, 1)
		hit := results[0].(map[string]any)
		assert.Equal(t, "swe", hit["course_key"])
		assert.Equal(t, "02-diffs", hit["slug"])
		assert.Equal(t, "Reading Diffs", hit["title"])
	})

	t.Run("limited to one course", func(t *testing.T) {
		out, _, isErr := callTool(t, s.handleSearchChapters, map[string]any{"query": "diff", "course_key": "llm"})
		require.False(t, isErr)
		assert.EqualValues(t, 0, out["total_matches"])
		assert.Equal(t, "llm", out["course_key"])
	})

	t.Run("missing query", func(t *testing.T) {
		_, text, isErr := callTool(t, s.handleSearchChapters, map[string]any{})
		assert.True(t, isErr)
		assert.Contains(t, text, "query")
	})

	t.Run("unknown course", func(t *testing.T) {
		_, text, isErr := callTool(t, s.handleSearchChapters, map[string]any{"query": "diff", "course_key": "nope"})
		assert.True(t, isErr)
		assert.Contains(t, text, "[llm swe]")
	})
}

func waitForJob(t *testing.T, s *Server, jobID string) Job {
	t.Helper()
	require.Eventually(t, func() bool {
		job, ok := s.jobManager.GetJob(jobID)
		return ok && !job.Status.active()
	}, 10*time.Second, 20*time.Millisecond)
	job, _ := s.jobManager.GetJob(jobID)
	return job
}

func TestBuildCourseThenTOC(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, isErr := callTool(t, s.handleGetChapterTOC, map[string]any{"course_key": "swe", "chapter_slug": "02-diffs"})
	assert.True(t, isErr, "chapter is not built yet")

	out, _, isErr := callTool(t, s.handleBuildCourse, map[string]any{"course_key": "swe"})
	require.False(t, isErr)
	assert.Equal(t, "started", out["status"])
	jobID := out["job_id"].(string)

	job := waitForJob(t, s, jobID)
	assert.Equal(t, JobStatusCompleted, job.Status, job.ErrorMessage)
	assert.Equal(t, 2, job.ChaptersBuilt)

	status, _, isErr := callTool(t, s.handleGetJobStatus, map[string]any{"job_id": jobID})
	require.False(t, isErr)
	assert.Equal(t, "completed", status["status"])
	assert.Contains(t, status, "completed_at")

	toc, _, isErr := callTool(t, s.handleGetChapterTOC, map[string]any{"course_key": "swe", "chapter_slug": "02-diffs"})
	require.False(t, isErr)
	assert.Equal(t, "Reading Diffs", toc["title"])
	assert.Equal(t, "01-intro", toc["prev"])
	assert.NotContains(t, toc, "next")
	entries := toc["toc"].([]any)
	require.NotEmpty(t, entries)

	courses, _, _ := callTool(t, s.handleListCourses, nil)
	swe := courses["courses"].([]any)[1].(map[string]any)
	assert.Contains(t, swe, "last_built")
	assert.EqualValues(t, 2, swe["built_chapters"])
}

func TestBuildCourseErrors(t *testing.T) {
	s, _ := newTestServer(t)

	_, text, isErr := callTool(t, s.handleBuildCourse, map[string]any{"course_key": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "not found")

	_, _, isErr = callTool(t, s.handleBuildCourse, map[string]any{})
	assert.True(t, isErr)

	_, text, isErr = callTool(t, s.handleGetJobStatus, map[string]any{"job_id": "missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "missing")
}

func TestReviewConceptAndDue(t *testing.T) {
	s, _ := newTestServer(t)

	out, _, isErr := callTool(t, s.handleReviewConcept, map[string]any{
		"course_key": "swe", "chapter_slug": "02-diffs", "concept_id": "hunk",
	})
	require.False(t, isErr)
	assert.EqualValues(t, 1, out["review_count"])
	assert.Equal(t, fixedNow.Format(time.RFC3339), out["reviewed_at"])

	due, _, isErr := callTool(t, s.handleListDueConcepts, map[string]any{"course_key": "swe"})
	require.False(t, isErr)
	assert.EqualValues(t, 0, due["total_due"], "just reviewed")

	s.now = func() time.Time { return fixedNow.Add(60 * 24 * time.Hour) }
	due, _, isErr = callTool(t, s.handleListDueConcepts, map[string]any{"course_key": "swe"})
	require.False(t, isErr)
	require.EqualValues(t, 1, due["total_due"])
	item := due["due"].([]any)[0].(map[string]any)
	assert.Equal(t, "hunk", item["concept_id"])
	assert.Equal(t, "Diffs", item["chapter_title"])

	// The review was persisted under the course's progress key
	saved := progress.Load(s.cfg.Store, "swe-book-progress", s.log)
	assert.Len(t, saved.Chapters["02-diffs"].ConceptsReviewed["hunk"], 1)
}

func TestReviewConceptUnknownChapter(t *testing.T) {
	s, _ := newTestServer(t)

	_, text, isErr := callTool(t, s.handleReviewConcept, map[string]any{
		"course_key": "swe", "chapter_slug": "99-missing", "concept_id": "x",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "99-missing")

	_, _, isErr = callTool(t, s.handleReviewConcept, map[string]any{"course_key": "swe"})
	assert.True(t, isErr)
}

func TestRunUnknownTransport(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.Transport = "carrier-pigeon"
	assert.Error(t, s.Run())
}
