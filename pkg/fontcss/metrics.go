package fontcss

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_fetch_total",
		Help: "Stylesheet fetches by outcome",
	}, []string{"outcome"}) // hit, miss, bypass, no_content, error

	fetchSharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fontshield_fetch_shared_total",
		Help: "Stylesheet fetches served by another in-flight origin request",
	})

	originFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fontshield_origin_fetch_duration_seconds",
		Help:    "Duration of stylesheet origin fetches including body read and rewrite",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)
