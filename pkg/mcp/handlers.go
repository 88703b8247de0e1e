package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/book-viewer/pkg/build"
	"github.com/Sriram-PR/book-viewer/pkg/catalog"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/orchestrate"
	"github.com/Sriram-PR/book-viewer/pkg/progress"
	"github.com/Sriram-PR/book-viewer/pkg/review"
	"github.com/Sriram-PR/book-viewer/pkg/search"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

const maxSearchResults = 100

// course resolves a course key to its config and catalog. A non-nil tool
// result is the error to return to the caller.
func (s *Server) course(courseKey string) (config.CourseConfig, *catalog.Catalog, *mcp.CallToolResult) {
	if courseKey == "" {
		return config.CourseConfig{}, nil, mcp.NewToolResultError("course_key parameter is required")
	}
	courseCfg, exists := s.cfg.AppConfig.Courses[courseKey]
	if !exists {
		return config.CourseConfig{}, nil, mcp.NewToolResultError(fmt.Sprintf("course '%s' not found. Available courses: %v",
			courseKey, orchestrate.GetAllCourseKeys(s.cfg.AppConfig)))
	}
	cat, err := catalog.FromConfig(courseKey, courseCfg)
	if err != nil {
		return config.CourseConfig{}, nil, mcp.NewToolResultError(fmt.Sprintf("invalid catalog for '%s': %v", courseKey, err))
	}
	return courseCfg, cat, nil
}

func (s *Server) outputDir(courseKey string, courseCfg config.CourseConfig) string {
	return config.GetEffectiveOutputDir(courseKey, courseCfg, *s.cfg.AppConfig)
}

// handleListCourses handles the list_courses tool
func (s *Server) handleListCourses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := orchestrate.GetAllCourseKeys(s.cfg.AppConfig)
	courses := make([]map[string]any, 0, len(keys))

	for _, key := range keys {
		courseCfg := s.cfg.AppConfig.Courses[key]
		info := map[string]any{
			"key":         key,
			"title":       courseCfg.Title,
			"chapters":    len(courseCfg.Chapters),
			"content_dir": config.GetEffectiveContentDir(key, courseCfg, *s.cfg.AppConfig),
			"output_dir":  s.outputDir(key, courseCfg),
		}
		if cat, err := catalog.FromConfig(key, courseCfg); err == nil {
			info["total_minutes"] = cat.TotalReadingTime()
		}
		if manifest, err := build.LoadManifest(s.outputDir(key, courseCfg)); err == nil {
			info["last_built"] = manifest.BuiltAt.Format(time.RFC3339)
			info["built_chapters"] = len(manifest.Chapters)
		}
		if s.jobManager.IsRunning(key) {
			info["status"] = "building"
		}
		courses = append(courses, info)
	}

	result := map[string]any{
		"courses":       courses,
		"config_path":   s.cfg.ConfigPath,
		"total_courses": len(courses),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleSearchChapters handles the search_chapters tool
func (s *Server) handleSearchChapters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	maxResults := request.GetInt("max_results", s.cfg.AppConfig.SearchMaxResults)
	if maxResults <= 0 {
		maxResults = search.DefaultMaxResults
	}
	maxResults = min(maxResults, maxSearchResults)

	keys := orchestrate.GetAllCourseKeys(s.cfg.AppConfig)
	courseKey := request.GetString("course_key", "")
	if courseKey != "" {
		if _, _, errResult := s.course(courseKey); errResult != nil {
			return errResult, nil
		}
		keys = []string{courseKey}
	}

	results := make([]map[string]any, 0)
	for _, key := range keys {
		index, err := build.CourseIndex(key, *s.cfg.AppConfig, s.cfg.AppConfig.Courses[key], s.log)
		if err != nil {
			s.log.Warnf("Search index unavailable for '%s': %v", key, err)
			continue
		}
		matches := search.Query(index, query, search.QueryOptions{
			MinLength:  s.cfg.AppConfig.SearchMinQueryLength,
			MaxResults: maxResults,
		})
		for _, m := range matches {
			hit := map[string]any{
				"course_key": key,
				"slug":       m.Slug,
				"title":      m.Title,
				"chapter":    m.Chapter,
				"excerpt":    m.Excerpt,
			}
			if m.Heading != nil {
				hit["heading"] = m.Heading.Text
				hit["anchor"] = m.Heading.Slug
			}
			results = append(results, hit)
		}
	}

	response := map[string]any{
		"query":         query,
		"results":       results,
		"total_matches": len(results),
	}
	if courseKey != "" {
		response["course_key"] = courseKey
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetChapterTOC handles the get_chapter_toc tool
func (s *Server) handleGetChapterTOC(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseKey := request.GetString("course_key", "")
	courseCfg, _, errResult := s.course(courseKey)
	if errResult != nil {
		return errResult, nil
	}
	slug := request.GetString("chapter_slug", "")
	if slug == "" {
		return mcp.NewToolResultError("chapter_slug parameter is required"), nil
	}

	doc, err := build.LoadChapterDocument(s.outputDir(courseKey, courseCfg), slug)
	if errors.Is(err, utils.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("chapter '%s' has not been built for course '%s'", slug, courseKey)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read chapter: %v", err)), nil
	}

	result := map[string]any{
		"course_key":        courseKey,
		"slug":              slug,
		"title":             doc.Meta.Title,
		"tier":              doc.Meta.Tier,
		"estimated_minutes": doc.Meta.EstimatedMinutes,
		"toc":               doc.TOC,
		"concepts":          len(doc.Concepts),
	}
	if doc.Prev != "" {
		result["prev"] = doc.Prev
	}
	if doc.Next != "" {
		result["next"] = doc.Next
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListDueConcepts handles the list_due_concepts tool
func (s *Server) handleListDueConcepts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseKey := request.GetString("course_key", "")
	courseCfg, cat, errResult := s.course(courseKey)
	if errResult != nil {
		return errResult, nil
	}

	snapshot := s.progressStore(config.GetEffectiveProgressKey(courseCfg, *s.cfg.AppConfig)).Snapshot()
	items := review.DueItems(snapshot, cat, s.now())

	// Concept text is only known once the course is built
	texts := make(map[string]string)
	if concepts, err := build.LoadConcepts(s.outputDir(courseKey, courseCfg)); err == nil {
		for _, c := range concepts {
			texts[c.ChapterSlug+"/"+c.ID] = c.Text
		}
	}

	due := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry := map[string]any{
			"concept_id":    item.ConceptID,
			"chapter_slug":  item.ChapterSlug,
			"chapter_title": item.ChapterTitle,
			"review_count":  item.ReviewCount,
			"last_review":   item.LastReview.Format(time.RFC3339),
			"next_interval": item.NextInterval,
			"strength":      item.Strength,
		}
		if text, ok := texts[item.ChapterSlug+"/"+item.ConceptID]; ok {
			entry["text"] = text
		}
		due = append(due, entry)
	}

	stats := review.ReviewStats(snapshot)
	result := map[string]any{
		"course_key": courseKey,
		"due":        due,
		"total_due":  len(due),
		"stats":      stats,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleReviewConcept handles the review_concept tool
func (s *Server) handleReviewConcept(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseKey := request.GetString("course_key", "")
	courseCfg, cat, errResult := s.course(courseKey)
	if errResult != nil {
		return errResult, nil
	}
	slug := request.GetString("chapter_slug", "")
	conceptID := request.GetString("concept_id", "")
	if slug == "" || conceptID == "" {
		return mcp.NewToolResultError("chapter_slug and concept_id parameters are required"), nil
	}
	if _, ok := cat.Chapter(slug); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("chapter '%s' not found in course '%s'", slug, courseKey)), nil
	}

	store := s.progressStore(config.GetEffectiveProgressKey(courseCfg, *s.cfg.AppConfig))
	updated := store.Apply(progress.ReviewConcept(slug, conceptID))
	reviews := updated.Chapters[slug].ConceptsReviewed[conceptID]

	result := map[string]any{
		"course_key":    courseKey,
		"chapter_slug":  slug,
		"concept_id":    conceptID,
		"review_count":  len(reviews),
		"next_interval": review.NextInterval(len(reviews)),
		"reviewed_at":   reviews[len(reviews)-1].Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleBuildCourse handles the build_course tool
func (s *Server) handleBuildCourse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseKey := request.GetString("course_key", "")
	if _, _, errResult := s.course(courseKey); errResult != nil {
		return errResult, nil
	}
	incremental := request.GetBool("incremental", false)

	job, created := s.jobManager.CreateJob(courseKey, incremental)
	if !created {
		result := map[string]any{
			"status":     "already_running",
			"message":    "A build is already in progress for this course",
			"job_id":     job.ID,
			"course_key": courseKey,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.runBuildJob(job)
	}()

	result := map[string]any{
		"status":      "started",
		"message":     "Build started successfully",
		"job_id":      job.ID,
		"course_key":  courseKey,
		"incremental": incremental,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]any{
		"job_id":           job.ID,
		"course_key":       job.CourseKey,
		"status":           job.Status,
		"started_at":       job.StartedAt.Format(time.RFC3339),
		"chapters_built":   job.ChaptersBuilt,
		"chapters_skipped": job.ChaptersSkipped,
		"chapters_failed":  job.ChaptersFailed,
		"incremental":      job.Incremental,
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runBuildJob builds a course in the background through the orchestrator
func (s *Server) runBuildJob(job Job) {
	s.jobManager.UpdateStatus(job.ID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(job.ID)

	appCfgCopy := *s.cfg.AppConfig
	appCfgCopy.EnableIncremental = job.Incremental

	orch := orchestrate.NewOrchestrator(jobCtx, &appCfgCopy, []string{job.CourseKey}, s.cfg.Store, s.log)
	results := orch.Run()
	if len(results) == 0 {
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, "no build result")
		return
	}

	res := results[0]
	s.jobManager.UpdateCounts(job.ID, res.Built, res.Skipped, res.Failed)
	switch {
	case errors.Is(res.Error, context.Canceled) || jobCtx.Err() != nil:
		s.jobManager.UpdateStatus(job.ID, JobStatusCancelled, "")
	case res.Error != nil:
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, res.Error.Error())
	default:
		s.jobManager.UpdateStatus(job.ID, JobStatusCompleted, "")
	}
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
