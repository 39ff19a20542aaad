package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jon4hz/appmonitor/internal/collector"
	"github.com/jon4hz/appmonitor/internal/database"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardActivities = 20
	dashboardMetrics    = 8
	dashboardEvents     = 10
)

// Dashboard is the data of the user dashboard.
type Dashboard struct {
	Company      *database.Company
	Applications []database.SSOApplication
	Activities   []database.UserActivity
	Metrics      []database.AppMetric
	HostMetrics  []database.AppMetric
	Events       []database.SystemEvent
	EventCounts  map[database.Severity]int64
	Preference   *database.UserPreference
}

// ActiveApplications counts the active applications.
func (d *Dashboard) ActiveApplications() int {
	n := 0
	for _, a := range d.Applications {
		if a.IsActive {
			n++
		}
	}
	return n
}

// DashboardData loads everything the dashboard shows. The queries run concurrently.
func (e *Engine) DashboardData(ctx context.Context, user *database.User) (*Dashboard, error) {
	d := &Dashboard{}
	g, gctx := errgroup.WithContext(ctx)

	if user.CompanyID != nil {
		g.Go(func() error {
			overview, err := e.CompanyOverview(gctx, user, dashboardActivities)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return nil
				}
				return err
			}
			d.Company = overview.Company
			d.Applications = overview.Applications
			d.Activities = overview.Activities
			return nil
		})
	}
	g.Go(func() (err error) {
		d.Metrics, err = e.ListMetrics(gctx, user.ID, database.MetricFilter{Limit: dashboardMetrics})
		return err
	})
	g.Go(func() (err error) {
		d.HostMetrics, err = e.LatestHostMetrics(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Events, err = e.db.ListEvents(gctx, database.EventFilter{Limit: dashboardEvents})
		return err
	})
	g.Go(func() (err error) {
		d.EventCounts, err = e.db.CountEventsBySeverity(gctx, e.now().UTC().Add(-24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		d.Preference, err = e.db.GetOrCreatePreference(gctx, user.ID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// LatestHostMetrics returns the newest sample of each collected host metric.
func (e *Engine) LatestHostMetrics(ctx context.Context) ([]database.AppMetric, error) {
	var out []database.AppMetric
	for _, typ := range []string{collector.MetricCPUUsage, collector.MetricMemoryUsage, collector.MetricDiskUsage} {
		metrics, err := e.db.ListMetrics(ctx, database.MetricFilter{SystemOnly: true, MetricType: typ, Limit: 1})
		if err != nil {
			return nil, err
		}
		out = append(out, metrics...)
	}
	return out, nil
}
