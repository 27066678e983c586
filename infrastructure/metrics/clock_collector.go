package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OffsetSource reports the correction applied to the local clock
type OffsetSource interface {
	Offset() (offset time.Duration, lastSync time.Time, lastError error)
}

type clockCollector struct {
	source OffsetSource

	offsetSeconds   *prometheus.Desc
	lastSyncSeconds *prometheus.Desc
	healthy         *prometheus.Desc
}

func (c *clockCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.offsetSeconds
	ch <- c.lastSyncSeconds
	ch <- c.healthy
}

func (c *clockCollector) Collect(ch chan<- prometheus.Metric) {
	offset, lastSync, lastError := c.source.Offset()
	ch <- prometheus.MustNewConstMetric(c.offsetSeconds, prometheus.GaugeValue, offset.Seconds())

	lastSyncUnix := 0.0
	if !lastSync.IsZero() {
		lastSyncUnix = float64(lastSync.Unix())
	}
	ch <- prometheus.MustNewConstMetric(c.lastSyncSeconds, prometheus.GaugeValue, lastSyncUnix)

	healthy := 0.0
	if lastError == nil && !lastSync.IsZero() {
		healthy = 1
	}
	ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthy)
}

// RegisterClock exports the offset of source, typically an NTP clock
func (m *Metrics) RegisterClock(source OffsetSource) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(&clockCollector{
		source: source,
		offsetSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "clock", "offset_seconds"),
			"Correction added to the local clock, positive when it is behind",
			nil, nil,
		),
		lastSyncSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "clock", "last_sync_unix"),
			"Unix time of the last successful clock synchronization",
			nil, nil,
		),
		healthy: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "clock", "healthy"),
			"1 if the last clock synchronization succeeded, otherwise 0",
			nil, nil,
		),
	})
}
