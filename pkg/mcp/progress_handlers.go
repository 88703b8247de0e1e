package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/book-viewer/pkg/build"
	"github.com/Sriram-PR/book-viewer/pkg/config"
	"github.com/Sriram-PR/book-viewer/pkg/models"
	"github.com/Sriram-PR/book-viewer/pkg/progress"
	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// chapterTarget is a validated course chapter and the progress store it writes to.
type chapterTarget struct {
	courseKey string
	courseCfg config.CourseConfig
	slug      string
	store     *progress.Store
}

func (s *Server) chapterTarget(request mcp.CallToolRequest) (chapterTarget, *mcp.CallToolResult) {
	courseKey := request.GetString("course_key", "")
	courseCfg, cat, errResult := s.course(courseKey)
	if errResult != nil {
		return chapterTarget{}, errResult
	}
	slug := request.GetString("chapter_slug", "")
	if slug == "" {
		return chapterTarget{}, mcp.NewToolResultError("chapter_slug parameter is required")
	}
	if _, ok := cat.Chapter(slug); !ok {
		return chapterTarget{}, mcp.NewToolResultError(fmt.Sprintf("chapter '%s' not found in course '%s'", slug, courseKey))
	}
	return chapterTarget{
		courseKey: courseKey,
		courseCfg: courseCfg,
		slug:      slug,
		store:     s.progressStore(config.GetEffectiveProgressKey(courseCfg, *s.cfg.AppConfig)),
	}, nil
}

// widget looks up a progress-tracked widget in the built chapter.
func (s *Server) widget(t chapterTarget, component, id string) (models.WidgetRef, *mcp.CallToolResult) {
	doc, err := build.LoadChapterDocument(s.outputDir(t.courseKey, t.courseCfg), t.slug)
	if errors.Is(err, utils.ErrNotFound) {
		return models.WidgetRef{}, mcp.NewToolResultError(fmt.Sprintf("chapter '%s' has not been built for course '%s'", t.slug, t.courseKey))
	}
	if err != nil {
		return models.WidgetRef{}, mcp.NewToolResultError(fmt.Sprintf("failed to read chapter: %v", err))
	}
	ref, ok := doc.Widget(component, id)
	if !ok {
		return models.WidgetRef{}, mcp.NewToolResultError(fmt.Sprintf("%s '%s' not found in chapter '%s'", component, id, t.slug))
	}
	return ref, nil
}

func chapterResult(t chapterTarget, p models.UserProgress) *mcp.CallToolResult {
	result := map[string]any{
		"course_key":   t.courseKey,
		"chapter_slug": t.slug,
		"chapter":      p.Chapters[t.slug],
		"last_visited": p.LastVisited,
	}
	return mcp.NewToolResultText(formatJSON(result))
}

// numberArg reads an optional finite number argument.
func numberArg(request mcp.CallToolRequest, key string) (float64, bool, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	default:
		return 0, false, fmt.Errorf("%s must be a number", key)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%s must be a finite number", key)
	}
	return v, true, nil
}

// boolsArg reads an optional array of booleans.
func boolsArg(request mcp.CallToolRequest, key string) ([]bool, bool, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case []bool:
		return v, true, nil
	case []any:
		out := make([]bool, 0, len(v))
		for i, item := range v {
			b, ok := item.(bool)
			if !ok {
				return nil, false, fmt.Errorf("%s[%d] must be a boolean", key, i)
			}
			out = append(out, b)
		}
		return out, true, nil
	}
	return nil, false, fmt.Errorf("%s must be an array of booleans", key)
}

// handleGetProgress handles the get_progress tool
func (s *Server) handleGetProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseKey := request.GetString("course_key", "")
	courseCfg, cat, errResult := s.course(courseKey)
	if errResult != nil {
		return errResult, nil
	}
	p := s.progressStore(config.GetEffectiveProgressKey(courseCfg, *s.cfg.AppConfig)).Snapshot()

	chapters := make([]map[string]any, 0, cat.Len())
	for _, meta := range cat.Chapters() {
		ch := p.Chapters[meta.Slug]
		chapters = append(chapters, map[string]any{
			"slug":               meta.Slug,
			"title":              meta.Title,
			"started":            ch.Started != nil,
			"completed":          ch.Completed != nil,
			"read_progress":      ch.ReadProgress,
			"questions_revealed": len(ch.QuestionsRevealed),
			"checkpoints":        len(ch.Checkpoints),
		})
	}

	result := map[string]any{
		"course_key":         courseKey,
		"course_progress":    progress.CourseProgress(p, cat.Len()),
		"chapters_completed": progress.ChaptersCompleted(p),
		"total_chapters":     cat.Len(),
		"chapters":           chapters,
		"settings":           p.Settings,
		"bookmarks":          len(p.Bookmarks),
	}
	if p.LastVisited != "" {
		result["last_visited"] = p.LastVisited
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStartChapter handles the start_chapter tool
func (s *Server) handleStartChapter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errResult := s.chapterTarget(request)
	if errResult != nil {
		return errResult, nil
	}
	return chapterResult(t, t.store.Apply(progress.StartChapter(t.slug))), nil
}

// handleUpdateReadProgress handles the update_read_progress tool
func (s *Server) handleUpdateReadProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errResult := s.chapterTarget(request)
	if errResult != nil {
		return errResult, nil
	}
	percent, ok, err := numberArg(request, "percent")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError("percent parameter is required"), nil
	}
	scroll, hasScroll, err := numberArg(request, "scroll_position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p := t.store.Apply(progress.UpdateReadProgress(t.slug, percent))
	if hasScroll {
		p = t.store.Apply(progress.UpdateScrollPosition(t.slug, scroll))
	}
	return chapterResult(t, p), nil
}

// handleCompleteChapter handles the complete_chapter tool
func (s *Server) handleCompleteChapter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errResult := s.chapterTarget(request)
	if errResult != nil {
		return errResult, nil
	}
	return chapterResult(t, t.store.Apply(progress.CompleteChapter(t.slug))), nil
}

// handleRevealQuestion handles the reveal_question tool
func (s *Server) handleRevealQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errResult := s.chapterTarget(request)
	if errResult != nil {
		return errResult, nil
	}
	questionID := request.GetString("question_id", "")
	if questionID == "" {
		return mcp.NewToolResultError("question_id parameter is required"), nil
	}
	if _, errResult := s.widget(t, "QuestionBlock", questionID); errResult != nil {
		return errResult, nil
	}
	return chapterResult(t, t.store.Apply(progress.RevealQuestion(t.slug, questionID))), nil
}

// handleUpdateCheckpoint handles the update_checkpoint tool
func (s *Server) handleUpdateCheckpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errResult := s.chapterTarget(request)
	if errResult != nil {
		return errResult, nil
	}
	checkpointID := request.GetString("checkpoint_id", "")
	if checkpointID == "" {
		return mcp.NewToolResultError("checkpoint_id parameter is required"), nil
	}
	ref, errResult := s.widget(t, "Checkpoint", checkpointID)
	if errResult != nil {
		return errResult, nil
	}

	var update progress.CheckpointUpdate
	confidence, hasConfidence, err := numberArg(request, "confidence")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if hasConfidence {
		if confidence != math.Trunc(confidence) || confidence < 0 || confidence > 5 {
			return mcp.NewToolResultError("confidence must be an integer from 0 to 5"), nil
		}
		c := int(confidence)
		update.Confidence = &c
	}
	items, hasItems, err := boolsArg(request, "items")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if hasItems {
		if len(items) != ref.Items {
			return mcp.NewToolResultError(fmt.Sprintf("checkpoint '%s' has %d items, got %d", checkpointID, ref.Items, len(items))), nil
		}
		update.Items = items
	}
	if !hasConfidence && !hasItems {
		return mcp.NewToolResultError("confidence or items parameter is required"), nil
	}

	return chapterResult(t, t.store.Apply(progress.UpdateCheckpoint(t.slug, checkpointID, update))), nil
}

// handleUpdateSettings handles the update_settings tool
func (s *Server) handleUpdateSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courseKey := request.GetString("course_key", "")
	courseCfg, _, errResult := s.course(courseKey)
	if errResult != nil {
		return errResult, nil
	}

	var update progress.SettingsUpdate
	args := request.GetArguments()
	if v := request.GetString("theme", ""); v != "" {
		theme := models.Theme(v)
		if !theme.IsValid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid theme '%s' (light, dark, system)", v)), nil
		}
		update.Theme = &theme
	}
	if v := request.GetString("font_size", ""); v != "" {
		size := models.FontSize(v)
		if !size.IsValid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid font_size '%s' (sm, md, lg, xl)", v)), nil
		}
		update.FontSize = &size
	}
	if _, ok := args["show_reading_time"]; ok {
		v := request.GetBool("show_reading_time", true)
		update.ShowReadingTime = &v
	}
	if _, ok := args["enable_review_prompts"]; ok {
		v := request.GetBool("enable_review_prompts", true)
		update.EnableReviewPrompts = &v
	}

	p := s.progressStore(config.GetEffectiveProgressKey(courseCfg, *s.cfg.AppConfig)).Apply(progress.UpdateSettings(update))
	result := map[string]any{
		"course_key": courseKey,
		"settings":   p.Settings,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}
