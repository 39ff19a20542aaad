package engine

import (
	"context"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/database"
	"gorm.io/datatypes"
)

// recordEvent writes a SystemEvent. Failures only get logged.
func (e *Engine) recordEvent(ctx context.Context, eventType string, severity database.Severity, source, message string, data datatypes.JSONMap) {
	event := &database.SystemEvent{
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		Source:    source,
		EventData: data,
		Timestamp: e.now().UTC(),
	}
	if err := e.db.CreateEvent(ctx, event); err != nil {
		log.Error("failed to record system event", "type", eventType, "error", err)
	}
}

// EventInput is a user submitted system event.
type EventInput struct {
	EventType string            `json:"event_type"`
	Severity  database.Severity `json:"severity"`
	Message   string            `json:"message"`
	Source    string            `json:"source"`
	EventData map[string]any    `json:"event_data"`
}

// RecordEvent stores a system event. Severity defaults to info and source to user.
func (e *Engine) RecordEvent(ctx context.Context, in EventInput) (*database.SystemEvent, error) {
	in.EventType = strings.TrimSpace(in.EventType)
	in.Message = strings.TrimSpace(in.Message)
	if in.EventType == "" || in.Message == "" {
		return nil, invalid("Missing required fields")
	}
	if in.Severity == "" {
		in.Severity = database.SeverityInfo
	}
	in.Severity = database.Severity(strings.ToLower(string(in.Severity)))
	if !database.ValidSeverity(in.Severity) {
		return nil, invalid("Unknown severity %q", in.Severity)
	}
	if in.Source == "" {
		in.Source = "user"
	}

	event := &database.SystemEvent{
		EventType: in.EventType,
		Severity:  in.Severity,
		Message:   in.Message,
		Source:    in.Source,
		EventData: in.EventData,
		Timestamp: e.now().UTC(),
	}
	if err := e.db.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents returns the newest events first.
func (e *Engine) ListEvents(ctx context.Context, f database.EventFilter) ([]database.SystemEvent, error) {
	return e.db.ListEvents(ctx, f)
}

// MetricInput is a user submitted metric sample.
type MetricInput struct {
	MetricType  string              `json:"metric_type"`
	Value       *float64            `json:"value"`
	Unit        string              `json:"unit"`
	Kind        database.MetricKind `json:"kind"`
	Description string              `json:"description"`
	Tags        map[string]any      `json:"tags"`
}

// RecordMetric stores a metric sample of a user.
func (e *Engine) RecordMetric(ctx context.Context, userID uint, in MetricInput) (*database.AppMetric, error) {
	in.MetricType = strings.TrimSpace(in.MetricType)
	if in.MetricType == "" || in.Value == nil {
		return nil, invalid("Missing required fields")
	}
	if math.IsNaN(*in.Value) || math.IsInf(*in.Value, 0) {
		return nil, invalid("Value must be a finite number")
	}
	switch in.Kind {
	case "", database.MetricKindGauge, database.MetricKindCounter, database.MetricKindHistogram:
	default:
		return nil, invalid("Unknown metric kind %q", in.Kind)
	}

	metric := &database.AppMetric{
		UserID:      &userID,
		MetricType:  in.MetricType,
		Value:       *in.Value,
		Unit:        in.Unit,
		Kind:        in.Kind,
		Description: in.Description,
		Tags:        in.Tags,
		Timestamp:   e.now().UTC(),
	}
	if err := e.db.CreateMetric(ctx, metric); err != nil {
		return nil, err
	}
	return metric, nil
}

// ListMetrics returns the newest metrics of a user first.
func (e *Engine) ListMetrics(ctx context.Context, userID uint, f database.MetricFilter) ([]database.AppMetric, error) {
	f.UserID = &userID
	return e.db.ListMetrics(ctx, f)
}
