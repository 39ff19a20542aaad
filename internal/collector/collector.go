package collector

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/datatypes"
)

// Metric types written by the collector.
const (
	MetricCPUUsage    = "cpu_usage"
	MetricMemoryUsage = "memory_usage"
	MetricDiskUsage   = "disk_usage"
)

// Sampler reads host usage percentages.
type Sampler interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	DiskPercent(ctx context.Context, path string) (float64, error)
}

// Collector turns host usage into AppMetrics.
type Collector struct {
	sampler  Sampler
	diskPath string
	hostname string
	now      func() time.Time
}

// New creates a collector sampling the local host.
func New(diskPath string) *Collector {
	return NewWithSampler(hostSampler{}, diskPath)
}

// NewWithSampler creates a collector with a custom sampler.
func NewWithSampler(s Sampler, diskPath string) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	hostname := "localhost"
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		hostname = info.Hostname
	}
	return &Collector{
		sampler:  s,
		diskPath: diskPath,
		hostname: hostname,
		now:      time.Now,
	}
}

// Collect samples cpu, memory and disk usage. Failing samplers are skipped;
// an error is returned only if every sampler failed.
func (c *Collector) Collect(ctx context.Context) ([]database.AppMetric, error) {
	ts := c.now().UTC()
	tags := datatypes.JSONMap{"host": c.hostname, "source": "collector"}

	samplers := []struct {
		metricType  string
		description string
		sample      func(context.Context) (float64, error)
	}{
		{MetricCPUUsage, "Host CPU usage", c.sampler.CPUPercent},
		{MetricMemoryUsage, "Host memory usage", c.sampler.MemoryPercent},
		{MetricDiskUsage, "Disk usage of " + c.diskPath, func(ctx context.Context) (float64, error) {
			return c.sampler.DiskPercent(ctx, c.diskPath)
		}},
	}

	metrics := make([]database.AppMetric, 0, len(samplers))
	var errs []error
	for _, p := range samplers {
		v, err := p.sample(ctx)
		if err != nil {
			log.Warn("failed to sample host metric", "metric", p.metricType, "error", err)
			errs = append(errs, err)
			continue
		}
		metrics = append(metrics, database.AppMetric{
			MetricType:  p.metricType,
			Value:       v,
			Unit:        "%",
			Kind:        database.MetricKindGauge,
			Description: p.description,
			Tags:        tags,
			Timestamp:   ts,
		})
	}
	if len(metrics) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return metrics, nil
}

type hostSampler struct{}

func (hostSampler) CPUPercent(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, 500*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, errors.New("no cpu samples")
	}
	return pcts[0], nil
}

func (hostSampler) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (hostSampler) DiskPercent(ctx context.Context, path string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}
