// Package metrics collects batch job counters in a private Prometheus
// registry and writes them out in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the counters and gauges of one process run. The exported
// fields are updated directly by the jobs.
type Collector struct {
	reg *prometheus.Registry

	RowsRead     prometheus.Counter
	RowsRejected prometheus.Counter
	Routes       prometheus.Gauge
	Pages        prometheus.Counter
	SitemapURLs  prometheus.Gauge

	FilesScanned  prometheus.Counter
	FilesChanged  prometheus.Counter
	EditsApplied  *prometheus.CounterVec // edit label: canonical|navigation|footer|stylesheet
	EditWarnings  *prometheus.CounterVec // edit label
	AuditFindings *prometheus.CounterVec // check label

	JobDuration    *prometheus.GaugeVec // job label
	JobLastSuccess *prometheus.GaugeVec // job label, unix seconds
}

// NewCollector creates a Collector with every metric registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traindays_rows_read_total",
			Help: "Data rows read from the train table.",
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traindays_rows_rejected_total",
			Help: "Data rows rejected while parsing the train table.",
		}),
		Routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traindays_routes",
			Help: "Distinct undirected routes in the last generation.",
		}),
		Pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traindays_pages_generated_total",
			Help: "Route pages written.",
		}),
		SitemapURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traindays_sitemap_urls",
			Help: "URLs listed in the last sitemap.",
		}),
		FilesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traindays_rewrite_files_scanned_total",
			Help: "HTML files read by the rewriter.",
		}),
		FilesChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traindays_rewrite_files_changed_total",
			Help: "HTML files whose content the rewriter changed.",
		}),
		EditsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traindays_rewrite_edits_applied_total",
			Help: "Edits that changed a file.",
		}, []string{"edit"}),
		EditWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traindays_rewrite_warnings_total",
			Help: "Edits skipped because their anchor was missing.",
		}, []string{"edit"}),
		AuditFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traindays_audit_findings_total",
			Help: "Structural problems reported by the auditor.",
		}, []string{"check"}),
		JobDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "traindays_job_duration_seconds",
			Help: "Wall time of the last run of each job.",
		}, []string{"job"}),
		JobLastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "traindays_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of each job.",
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.RowsRead, c.RowsRejected, c.Routes, c.Pages, c.SitemapURLs,
		c.FilesScanned, c.FilesChanged, c.EditsApplied, c.EditWarnings,
		c.AuditFindings, c.JobDuration, c.JobLastSuccess,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// ObserveJob records a job's duration, and its completion time when it succeeded.
func (c *Collector) ObserveJob(job string, started time.Time, err error) {
	c.JobDuration.WithLabelValues(job).Set(time.Since(started).Seconds())
	if err == nil {
		c.JobLastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
