package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ttyctl metrics collectors
var (
	// Kernel calls

	KernelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttyctl_kernel_calls_total",
			Help: "Total number of terminal system calls",
		},
		[]string{"op", "status"},
	)

	KernelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttyctl_kernel_call_duration_seconds",
			Help:    "Terminal system call duration in seconds",
			Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
		},
		[]string{"op"},
	)

	// Sessions

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttyctl_sessions_active",
			Help: "Number of running pty sessions",
		},
	)

	ExpectMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttyctl_expect_total",
			Help: "Total number of expect waits by outcome",
		},
		[]string{"result"},
	)
)
