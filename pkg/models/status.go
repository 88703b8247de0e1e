package models

// BuildStatus is the incremental-build state of a chapter.
type BuildStatus string

const (
	BuildStatusUnset   BuildStatus = ""
	BuildStatusPending BuildStatus = "pending"
	BuildStatusBuilt   BuildStatus = "built"
	BuildStatusFailed  BuildStatus = "failed"
	BuildStatusSkipped BuildStatus = "skipped" // Not rendered this build: source unchanged, or a draft
)

// String implements fmt.Stringer for logging
func (s BuildStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s BuildStatus) IsValid() bool {
	switch s {
	case BuildStatusPending, BuildStatusBuilt, BuildStatusFailed, BuildStatusSkipped:
		return true
	}
	return false
}

// Theme is the reader colour scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) String() string { return string(t) }

// IsValid returns true for the three supported themes.
func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// FontSize is the reader text size preference.
type FontSize string

const (
	FontSizeSmall  FontSize = "sm"
	FontSizeMedium FontSize = "md"
	FontSizeLarge  FontSize = "lg"
	FontSizeXLarge FontSize = "xl"
)

func (f FontSize) String() string { return string(f) }

// IsValid returns true for the supported sizes.
func (f FontSize) IsValid() bool {
	switch f {
	case FontSizeSmall, FontSizeMedium, FontSizeLarge, FontSizeXLarge:
		return true
	}
	return false
}
