package prometheus

import (
	"strconv"
	"time"
)

// RunMetrics holds the metrics of one conversion run.
type RunMetrics struct {
	RunsTotal          CounterVec
	StageDuration      HistogramVec
	LeavesMerged       GaugeVec
	Destinations       GaugeVec
	RecordsInjected    GaugeVec
	UnmatchedTechs     GaugeVec
	ShareMisses        GaugeVec
	OutputBytes        GaugeVec
	PublishedObjects   CounterVec
	LastSuccessSeconds GaugeVec
}

// DefaultStageBuckets covers stages from tens of milliseconds to several
// minutes.
var DefaultStageBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// NewRunMetrics registers all metrics and returns the RunMetrics struct.
func NewRunMetrics(collector MetricsCollector) *RunMetrics {
	m := &RunMetrics{}

	m.RunsTotal = collector.RegisterCounter("runs_total", "Conversion runs by choice and outcome", "data", "geo", "captured", "status")
	m.StageDuration = collector.RegisterHistogram("stage_duration_seconds", "Duration of a run stage", DefaultStageBuckets, "stage")
	m.LeavesMerged = collector.RegisterGauge("leaves_merged", "Leaf merges performed in the last run", "mode")
	m.Destinations = collector.RegisterGauge("destinations", "Destination regions produced in the last run", "scheme")
	m.RecordsInjected = collector.RegisterGauge("records_injected", "Supplemental records written in the last run", "kind")
	m.UnmatchedTechs = collector.RegisterGauge("unmatched_technologies", "MELs names without a complete reference record")
	m.ShareMisses = collector.RegisterGauge("share_misses", "End uses left unscaled by share recalibration")
	m.OutputBytes = collector.RegisterGauge("output_bytes", "Size of written output files", "file")
	m.PublishedObjects = collector.RegisterCounter("published_objects_total", "Output objects uploaded to object storage", "bucket")
	m.LastSuccessSeconds = collector.RegisterGauge("last_success_timestamp_seconds", "Unix time of the last successful run", "data", "geo")

	return m
}

// Helpers

// RecordRun counts a finished run.
func RecordRun(m *RunMetrics, data, geo int, captured bool, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	d, g := strconv.Itoa(data), strconv.Itoa(geo)
	m.RunsTotal.WithLabelValues(d, g, strconv.FormatBool(captured), status).Inc()
	if err == nil {
		m.LastSuccessSeconds.WithLabelValues(d, g).SetToCurrentTime()
	}
}

// RecordStage observes the duration of a named stage.
func RecordStage(m *RunMetrics, stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

//Personal.AI order the ending
