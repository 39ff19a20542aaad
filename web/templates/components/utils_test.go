package components

import (
	"testing"
	"time"

	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestFormatRelativeTime(t *testing.T) {
	var nilTime *time.Time
	assert.Equal(t, "never", FormatRelativeTime(nilTime))
	assert.Equal(t, "never", FormatRelativeTime(time.Time{}))
	assert.Equal(t, "", FormatRelativeTime("yesterday"))

	past := time.Now().Add(-3 * time.Hour)
	assert.Equal(t, "3 hours ago", FormatRelativeTime(past))
	assert.Equal(t, "3 hours ago", FormatRelativeTime(&past))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-09 14:05", FormatTime(ts))
	assert.Equal(t, "2024-03-09 14:05", FormatTime(&ts))
	assert.Equal(t, "-", FormatTime(time.Time{}))
	assert.Equal(t, "-", FormatTime((*time.Time)(nil)))
	assert.Equal(t, "-", FormatTime(42))
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{bytes: 0, want: "0 B"},
		{bytes: 512, want: "512 B"},
		{bytes: 1500, want: "1.5 kB"},
		{bytes: 3_000_000, want: "3.0 MB"},
		{bytes: -1, want: "0 B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.bytes))
	}
}

func TestFullName(t *testing.T) {
	assert.Empty(t, FullName(nil))
	assert.Equal(t, "ada", FullName(&database.User{Username: "ada"}))
	assert.Equal(t, "Ada Lovelace", FullName(&database.User{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}))
}

func TestSeverityClass(t *testing.T) {
	assert.Equal(t, "badge-danger", SeverityClass(database.SeverityCritical))
	assert.Equal(t, "badge-danger", SeverityClass(database.SeverityError))
	assert.Equal(t, "badge-warning", SeverityClass(database.SeverityWarning))
	assert.Equal(t, "badge-muted", SeverityClass(database.SeverityDebug))
	assert.Equal(t, "badge-info", SeverityClass(database.SeverityInfo))
}

func TestToJSONAndDeref(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(ToJSON(map[string]int{"a": 1})))
	assert.Equal(t, "null", string(ToJSON(func() {})))

	n := 7
	assert.Equal(t, 7, Deref(&n))
	assert.Equal(t, 0, Deref(nil))
}
