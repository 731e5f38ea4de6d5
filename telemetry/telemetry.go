// Package telemetry exposes the §6 "Telemetry surface" as Prometheus
// counters, in the style of the teacher's metrics/metrics.go:
// package-level promauto vars, no custom collector machinery.
package telemetry

import (
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Hits   = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_hits_total"})
	Misses = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_misses_total"})

	CountHits   = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_count_hits_total"})
	CountMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_count_misses_total"})

	JobsEnqueued    = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_jobs_enqueued_total"})
	JobsNotEnqueued = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_jobs_not_enqueued_total"})
	JobsStarted     = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_jobs_started_total"})
	JobsNotStarted  = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_jobs_not_started_total"})
	JobsInterrupted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "entity_iterable_cache_jobs_interrupted_total"}, []string{"reason"})

	CountJobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_count_jobs_enqueued_total"})

	StuckTransactions = promauto.NewCounter(prometheus.CounterOpts{Name: "entity_iterable_cache_stuck_transactions_total"})

	HitRateEstimate      = promauto.NewGauge(prometheus.GaugeOpts{Name: "entity_iterable_cache_hit_rate_ppm"})
	CountsHitRateEstimate = promauto.NewGauge(prometheus.GaugeOpts{Name: "entity_iterable_cache_counts_hit_rate_ppm"})
)

// FormatSize renders a byte count for CLI/log output, honoring the
// entityIterableCacheUseHumanReadable configuration key.
func FormatSize(bytes uint64, humanReadable bool) string {
	if humanReadable {
		return humanize.Bytes(bytes)
	}
	return humanize.Comma(int64(bytes))
}

// Global is a Recorder backed by the package-level Prometheus vars
// above. It is stateless and safe to share; tests that need isolated
// counts should use a fake Recorder instead (see entitycache).
type Global struct{}

func (Global) Hit()             { Hits.Inc() }
func (Global) Miss()            { Misses.Inc() }
func (Global) CountHit()        { CountHits.Inc() }
func (Global) CountMiss()       { CountMisses.Inc() }
func (Global) JobEnqueued()     { JobsEnqueued.Inc() }
func (Global) JobNotEnqueued()  { JobsNotEnqueued.Inc() }
func (Global) JobStarted()      { JobsStarted.Inc() }
func (Global) JobNotStarted()   { JobsNotStarted.Inc() }
func (Global) JobInterrupted(reason string) {
	JobsInterrupted.WithLabelValues(reason).Inc()
}
func (Global) CountJobEnqueued()         { CountJobsEnqueued.Inc() }
func (Global) StuckTransaction()         { StuckTransactions.Inc() }
func (Global) SetHitRate(ppm uint64)     { HitRateEstimate.Set(float64(ppm)) }
func (Global) SetCountsHitRate(ppm uint64) { CountsHitRateEstimate.Set(float64(ppm)) }
