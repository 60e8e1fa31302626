// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Matching pipeline.
var (
	CandidatesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_candidates_scored_total",
			Help: "Candidates passed to the compatibility scorer, by outcome (accepted, rejected, failed, cached)",
		},
		[]string{"outcome"},
	)

	MatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_created_total",
			Help: "Match records persisted",
		},
	)

	RankingMode = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_ranking_mode_total",
			Help: "findMatches invocations by ranking mode (semantic, fallback)",
		},
		[]string{"mode"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matching_upstream_duration_seconds",
			Help:    "Latency of embedding and scoring calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"service", "status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_cache_lookups_total",
			Help: "Embedding and verdict cache lookups by result",
		},
		[]string{"cache", "result"},
	)
)

// Consent and deal rooms.
var (
	ConsentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_transitions_total",
			Help: "Match status transitions applied by the consent state machine",
		},
		[]string{"from", "to"},
	)

	DealRoomsProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealroom_provisioned_total",
			Help: "Deal room create requests by result (created, existing)",
		},
		[]string{"result"},
	)

	NDAGenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealroom_nda_generation_failures_total",
			Help: "Deal rooms created without an NDA document because rendering or upload failed",
		},
	)

	NDASignatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealroom_nda_signatures_total",
			Help: "NDA sign requests by result (signed, already_signed)",
		},
		[]string{"result"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notifications by channel and status",
		},
		[]string{"channel", "status"},
	)
)
