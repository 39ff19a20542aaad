package components

import (
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/mergestat/timediff"
)

// FuncMap returns the helpers available in every page template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"timeAgo":       FormatRelativeTime,
		"bytes":         FormatFileSize,
		"comma":         humanize.Comma,
		"fullName":      FullName,
		"json":          ToJSON,
		"severityClass": SeverityClass,
		"formatTime":    FormatTime,
		"upper":         strings.ToUpper,
		"deref":         Deref,
	}
}

// FormatRelativeTime formats a time as a relative string like "3 hours ago".
// It accepts time.Time and *time.Time; nil and zero times render as "never".
func FormatRelativeTime(v any) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv == nil {
			return "never"
		}
		t = *tv
	default:
		return ""
	}
	if t.IsZero() {
		return "never"
	}
	return timediff.TimeDiff(t)
}

// FormatTime formats a time for tables.
func FormatTime(v any) string {
	switch tv := v.(type) {
	case time.Time:
		if tv.IsZero() {
			return "-"
		}
		return tv.UTC().Format("2006-01-02 15:04")
	case *time.Time:
		if tv == nil {
			return "-"
		}
		return FormatTime(*tv)
	default:
		return "-"
	}
}

// FormatFileSize formats a size in bytes to a human-readable string.
func FormatFileSize(bytes int64) string {
	size, err := safecast.ToUint64(bytes)
	if err != nil {
		return "0 B"
	}
	return humanize.Bytes(size)
}

// FullName returns the display name of a user.
func FullName(u *database.User) string {
	if u == nil {
		return ""
	}
	return u.FullName()
}

// ToJSON marshals v for inline scripts.
func ToJSON(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return template.JS(b) //nolint:gosec
}

// SeverityClass maps an event severity to a badge class.
func SeverityClass(s database.Severity) string {
	switch s {
	case database.SeverityCritical, database.SeverityError:
		return "badge-danger"
	case database.SeverityWarning:
		return "badge-warning"
	case database.SeverityDebug:
		return "badge-muted"
	default:
		return "badge-info"
	}
}

// Deref returns the value of an optional int.
func Deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
