package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ais-trajectory/internal/ais"
	"ais-trajectory/internal/trajectory"
)

type Collector struct {
	reg *prometheus.Registry

	RowsLoaded   *prometheus.CounterVec // category
	RowsRejected *prometheus.CounterVec // category
	FixesDropped *prometheus.CounterVec // category; latitude outside [-90, 90]
	Segments     *prometheus.CounterVec // category

	Vessels      *prometheus.GaugeVec // category, stage: original|filtered
	Trajectories *prometheus.GaugeVec // category, bucket: short|long

	CategoryDuration *prometheus.HistogramVec // category
	CategoryFailures *prometheus.CounterVec   // category

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	ShortThreshold prometheus.Gauge // km
	LongThreshold  prometheus.Gauge // km
}

func NewCollector(shortKm, longKm float64) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistraj_rows_loaded_total",
			Help: "Position rows loaded into the table.",
		}, []string{"category"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistraj_rows_rejected_total",
			Help: "Malformed position rows dropped by the loader.",
		}, []string{"category"}),
		FixesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistraj_fixes_dropped_total",
			Help: "Fixes dropped because their latitude is out of range.",
		}, []string{"category"}),
		Segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistraj_segments_total",
			Help: "Trajectory segments formed from consecutive fixes.",
		}, []string{"category"}),
		Vessels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aistraj_unique_vessels",
			Help: "Distinct MMSI before and after latitude filtering.",
		}, []string{"category", "stage"}),
		Trajectories: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aistraj_trajectories",
			Help: "Vessels per trajectory length bucket.",
		}, []string{"category", "bucket"}),
		CategoryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aistraj_category_duration_seconds",
			Help:    "Duration to load, summarize and report one category.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"category"}),
		CategoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistraj_category_failures_total",
			Help: "Category runs that ended with an error.",
		}, []string{"category"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aistraj_nats_published_total",
			Help: "Total NATS summary messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aistraj_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aistraj_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		ShortThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aistraj_short_trajectory_threshold_km",
			Help: "Trajectories strictly shorter than this are short.",
		}),
		LongThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aistraj_long_trajectory_threshold_km",
			Help: "Trajectories strictly longer than this are long.",
		}),
	}

	reg.MustRegister(
		c.RowsLoaded, c.RowsRejected, c.FixesDropped, c.Segments,
		c.Vessels, c.Trajectories,
		c.CategoryDuration, c.CategoryFailures,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.ShortThreshold, c.LongThreshold,
	)

	c.ShortThreshold.Set(shortKm)
	c.LongThreshold.Set(longKm)

	return c
}

// RecordTable counts the rows the loader produced for one category.
func (c *Collector) RecordTable(t ais.Table) {
	cat := t.Category.String()
	c.RowsLoaded.WithLabelValues(cat).Add(float64(len(t.Fixes)))
	c.RowsRejected.WithLabelValues(cat).Add(float64(t.Rejected))
}

// RecordSummary publishes the counts of one category summary.
func (c *Collector) RecordSummary(cat ais.Category, s trajectory.Summary) {
	name := cat.String()
	c.FixesDropped.WithLabelValues(name).Add(float64(s.Dropped))
	c.Segments.WithLabelValues(name).Add(float64(s.Segments))
	c.Vessels.WithLabelValues(name, "original").Set(float64(s.Vessels.Original))
	c.Vessels.WithLabelValues(name, "filtered").Set(float64(s.Vessels.Filtered))
	c.Trajectories.WithLabelValues(name, "short").Set(float64(s.Lengths.Short))
	c.Trajectories.WithLabelValues(name, "long").Set(float64(s.Lengths.Long))
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}
