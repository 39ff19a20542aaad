package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/scheduler"
	"gorm.io/datatypes"
)

// Job ids.
const (
	JobEntraSync      = "entra_sync"
	JobCollectMetrics = "collect_metrics"
	JobRetention      = "retention"
)

// Jobs returns the status of all scheduled jobs.
func (e *Engine) Jobs() []scheduler.JobInfo {
	return e.scheduler.GetJobs()
}

// RunJob triggers a job immediately.
func (e *Engine) RunJob(id string) error {
	return e.scheduler.RunJobNow(id)
}

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	if e.cfg.Entra != nil && e.cfg.Entra.SyncSchedule != "" {
		if err := e.scheduler.AddSingletonJob(
			JobEntraSync,
			"Entra ID Sync",
			"Syncs applications and sign-ins of every active Entra ID integration",
			e.cfg.Entra.SyncSchedule,
			gocron.CronJob(e.cfg.Entra.SyncSchedule, false),
			e.SyncAllCompanies,
			false,
		); err != nil {
			return fmt.Errorf("failed to add entra sync job: %w", err)
		}
	}

	if e.cfg.Metrics != nil && e.cfg.Metrics.CollectEnabled {
		if err := e.scheduler.AddSingletonJob(
			JobCollectMetrics,
			"Collect Host Metrics",
			"Stores cpu, memory and disk usage of the host",
			e.cfg.Metrics.CollectSchedule,
			gocron.CronJob(e.cfg.Metrics.CollectSchedule, false),
			e.CollectHostMetrics,
			true,
		); err != nil {
			return fmt.Errorf("failed to add metrics job: %w", err)
		}
	}

	if e.cfg.RetentionSchedule != "" {
		if err := e.scheduler.AddSingletonJob(
			JobRetention,
			"Data Retention",
			"Deletes metrics and events older than their retention window",
			e.cfg.RetentionSchedule,
			gocron.CronJob(e.cfg.RetentionSchedule, false),
			e.ApplyRetention,
			false,
		); err != nil {
			return fmt.Errorf("failed to add retention job: %w", err)
		}
	}

	log.Info("Scheduled jobs configured successfully")
	return nil
}

// CollectHostMetrics samples the host and stores the samples as system metrics.
func (e *Engine) CollectHostMetrics(ctx context.Context) error {
	metrics, err := e.collector.Collect(ctx)
	if err != nil {
		return err
	}
	if err := e.db.CreateMetrics(ctx, metrics); err != nil {
		return err
	}
	log.Debug("Collected host metrics", "count", len(metrics))
	return nil
}

// ApplyRetention deletes metrics and events older than the configured windows.
// A window of zero days keeps the data forever.
func (e *Engine) ApplyRetention(ctx context.Context) error {
	now := e.now().UTC()
	var metricsDeleted, eventsDeleted int64

	if e.cfg.Metrics != nil && e.cfg.Metrics.RetentionDays > 0 {
		n, err := e.db.DeleteMetricsBefore(ctx, now.Add(-days(e.cfg.Metrics.RetentionDays)))
		if err != nil {
			return err
		}
		metricsDeleted = n
	}
	if e.cfg.Events != nil && e.cfg.Events.RetentionDays > 0 {
		n, err := e.db.DeleteEventsBefore(ctx, now.Add(-days(e.cfg.Events.RetentionDays)))
		if err != nil {
			return err
		}
		eventsDeleted = n
	}

	log.Info("Applied data retention", "metrics", metricsDeleted, "events", eventsDeleted)
	if metricsDeleted > 0 || eventsDeleted > 0 {
		e.recordEvent(ctx, "retention", database.SeverityInfo, "system",
			fmt.Sprintf("Deleted %d metrics and %d events", metricsDeleted, eventsDeleted),
			datatypes.JSONMap{"metrics": metricsDeleted, "events": eventsDeleted})
	}
	return nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
