package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twinsync",
		Name:      "ticks_total",
		Help:      "Sync cycles by outcome (ok, partial, error).",
	}, []string{"outcome"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "twinsync",
		Name:      "tick_duration_seconds",
		Help:      "Wall time of one sync cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	historyLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "twinsync",
		Name:      "history_length",
		Help:      "Readings currently held in the history ring.",
	})
)
