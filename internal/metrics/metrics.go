// Package metrics exposes the pipeline's quality signals as Prometheus
// collectors, registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefer_search_pages_total",
		Help: "Search provider pages fetched, by language and outcome.",
	}, []string{"language", "outcome"})

	DeniedURLs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefer_denied_urls_total",
		Help: "Candidate URLs rejected by deny rules, by section.",
	}, []string{"section"})

	SelectedSources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefer_selected_sources_total",
		Help: "Sources selected for synthesis, by section.",
	}, []string{"section"})

	CoverageWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefer_coverage_warnings_total",
		Help: "Low-coverage and low-allowlist-ratio warnings, by section and kind.",
	}, []string{"section", "kind"})

	URLValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefer_url_validations_total",
		Help: "URL validation outcomes.",
	}, []string{"outcome"})

	DroppedSources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefer_dropped_sources_total",
		Help: "Analyzed sources dropped during aggregation, by reason.",
	}, []string{"reason"})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefer_pipeline_runs_total",
		Help: "Per-subscriber pipeline runs, by status.",
	}, []string{"status"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "briefer_pipeline_duration_seconds",
		Help:    "Wall time of one subscriber pipeline run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
