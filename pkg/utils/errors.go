package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (Markdown, YAML, JSON, HTML)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrConfigValidation = errors.New("configuration validation error")
	ErrNotFound         = errors.New("not found")
	ErrUnknownCourse    = errors.New("unknown course")
	ErrUnknownChapter   = errors.New("unknown chapter")
	ErrRender           = errors.New("render error")
)

// WrapErrorf annotates err with a formatted context message.
// The result matches err with errors.Is. A nil err yields nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrUnknownCourse):
		return "Catalog_UnknownCourse"
	case errors.Is(err, ErrUnknownChapter):
		return "Catalog_UnknownChapter"
	case errors.Is(err, ErrNotFound):
		return "Lookup_NotFound"
	case errors.Is(err, ErrRender):
		return "Content_Render"
	case errors.Is(err, ErrParsing):
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return "Parsing_JSON"
		}
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "yaml") || strings.Contains(errMsg, "frontmatter") {
			return "Parsing_YAML"
		}
		if strings.Contains(errMsg, "json") {
			return "Parsing_JSON"
		}
		return "Parsing_Other"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}
	if errors.Is(err, os.ErrNotExist) {
		return "Filesystem_NotExist"
	}

	return "Unknown"
}
