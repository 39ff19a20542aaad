package database

import (
	"context"
	"fmt"
	"time"
)

// MetricFilter narrows ListMetrics.
type MetricFilter struct {
	UserID *uint
	// SystemOnly selects metrics without a user, as written by the collector.
	SystemOnly bool
	MetricType string
	Since      *time.Time
	Limit      int
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	EventType string
	Severity  Severity
	Source    string
	Since     *time.Time
	Limit     int
}

var severities = map[Severity]bool{
	SeverityDebug: true, SeverityInfo: true, SeverityWarning: true, SeverityError: true, SeverityCritical: true,
}

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s Severity) bool {
	return severities[s]
}

func (c *Client) CreateMetric(ctx context.Context, m *AppMetric) error {
	if m.MetricType == "" {
		return fmt.Errorf("metric type is required")
	}
	if m.Kind == "" {
		m.Kind = MetricKindGauge
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if err := c.db.WithContext(ctx).Create(m).Error; err != nil {
		return logErr("failed to create metric", err)
	}
	return nil
}

// CreateMetrics inserts a batch of metrics.
func (c *Client) CreateMetrics(ctx context.Context, metrics []AppMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range metrics {
		if metrics[i].Kind == "" {
			metrics[i].Kind = MetricKindGauge
		}
		if metrics[i].Timestamp.IsZero() {
			metrics[i].Timestamp = now
		}
	}
	if err := c.db.WithContext(ctx).CreateInBatches(metrics, 100).Error; err != nil {
		return logErr("failed to create metrics", err)
	}
	return nil
}

// ListMetrics returns metrics newest first.
func (c *Client) ListMetrics(ctx context.Context, f MetricFilter) ([]AppMetric, error) {
	var metrics []AppMetric
	q := c.db.WithContext(ctx).Model(&AppMetric{})
	switch {
	case f.UserID != nil:
		q = q.Where("user_id = ?", *f.UserID)
	case f.SystemOnly:
		q = q.Where("user_id IS NULL")
	}
	if f.MetricType != "" {
		q = q.Where("metric_type = ?", f.MetricType)
	}
	if f.Since != nil {
		q = q.Where("timestamp >= ?", *f.Since)
	}
	if err := q.Order("timestamp DESC, id DESC").Limit(clampLimit(f.Limit, 100, 500)).Find(&metrics).Error; err != nil {
		return nil, logErr("failed to list metrics", err)
	}
	return metrics, nil
}

// MetricTypes returns the distinct metric names, optionally for a single user.
func (c *Client) MetricTypes(ctx context.Context, userID *uint) ([]string, error) {
	var types []string
	q := c.db.WithContext(ctx).Model(&AppMetric{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.Distinct().Order("metric_type").Pluck("metric_type", &types).Error; err != nil {
		return nil, logErr("failed to list metric types", err)
	}
	return types, nil
}

// DeleteMetricsBefore removes metrics older than t and returns the number of deleted rows.
func (c *Client) DeleteMetricsBefore(ctx context.Context, t time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("timestamp < ?", t).Delete(&AppMetric{})
	if res.Error != nil {
		return 0, logErr("failed to delete old metrics", res.Error)
	}
	return res.RowsAffected, nil
}

func (c *Client) CreateEvent(ctx context.Context, e *SystemEvent) error {
	if e.EventType == "" || e.Message == "" {
		return fmt.Errorf("event type and message are required")
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if !ValidSeverity(e.Severity) {
		return fmt.Errorf("unknown severity %q", e.Severity)
	}
	if e.Source == "" {
		e.Source = "system"
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := c.db.WithContext(ctx).Create(e).Error; err != nil {
		return logErr("failed to create event", err)
	}
	return nil
}

// ListEvents returns events newest first.
func (c *Client) ListEvents(ctx context.Context, f EventFilter) ([]SystemEvent, error) {
	var events []SystemEvent
	q := c.db.WithContext(ctx).Model(&SystemEvent{})
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Since != nil {
		q = q.Where("timestamp >= ?", *f.Since)
	}
	if err := q.Order("timestamp DESC, id DESC").Limit(clampLimit(f.Limit, 50, 500)).Find(&events).Error; err != nil {
		return nil, logErr("failed to list events", err)
	}
	return events, nil
}

// CountEventsBySeverity returns event counts grouped by severity since t.
func (c *Client) CountEventsBySeverity(ctx context.Context, since time.Time) (map[Severity]int64, error) {
	var rows []struct {
		Severity Severity
		Count    int64
	}
	if err := c.db.WithContext(ctx).Model(&SystemEvent{}).
		Select("severity, count(*) as count").
		Where("timestamp >= ?", since).
		Group("severity").
		Scan(&rows).Error; err != nil {
		return nil, logErr("failed to count events", err)
	}
	out := make(map[Severity]int64, len(rows))
	for _, r := range rows {
		out[r.Severity] = r.Count
	}
	return out, nil
}

// DeleteEventsBefore removes events older than t and returns the number of deleted rows.
func (c *Client) DeleteEventsBefore(ctx context.Context, t time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("timestamp < ?", t).Delete(&SystemEvent{})
	if res.Error != nil {
		return 0, logErr("failed to delete old events", res.Error)
	}
	return res.RowsAffected, nil
}
