// Package metrics defines the Prometheus instruments for the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	// JobsTotal tracks total jobs by terminal status
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_total",
			Help: "Total number of jobs by terminal status",
		},
		[]string{"tenant_id", "job_type", "status"},
	)

	// JobDuration tracks job execution duration
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"tenant_id", "job_type"},
	)

	// JobsRunning tracks currently running jobs
	JobsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_jobs_running",
			Help: "Number of jobs currently running",
		},
		[]string{"tenant_id"},
	)

	// QueueDepth tracks pending jobs per (tenant, branch) key
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_queue_depth",
			Help: "Number of ready jobs queued per tenant and branch",
		},
		[]string{"tenant_id", "branch"},
	)

	// ActiveTenants tracks the size of the admission set
	ActiveTenants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_active_tenants",
			Help: "Number of tenants currently holding an active slot",
		},
	)

	// SubmissionsRejected tracks admission rejections
	SubmissionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_submissions_rejected_total",
			Help: "Total number of workflow submissions rejected at admission",
		},
		[]string{"tenant_id"},
	)

	// WorkflowsTotal tracks workflows reaching a terminal status
	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_workflows_total",
			Help: "Total number of workflows by terminal status",
		},
		[]string{"tenant_id", "status"},
	)
)

// Event bus metrics
var (
	// EventsPublished tracks events published per kind
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"kind"},
	)

	// EventsDropped tracks events discarded under subscriber back-pressure
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_events_dropped_total",
			Help: "Total number of events dropped from full subscriber mailboxes",
		},
		[]string{"kind"},
	)

	// Subscribers tracks attached progress subscribers
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_event_subscribers",
			Help: "Number of attached event subscribers",
		},
	)
)
