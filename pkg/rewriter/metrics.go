package rewriter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_rewrite_documents_total",
		Help: "HTML documents streamed through the rewriter",
	}, []string{"result"}) // ok, error

	elementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_rewrite_elements_total",
		Help: "Matched elements by transform result",
	}, []string{"result"}) // replaced, unchanged, failed

	transformDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fontshield_rewrite_transform_duration_seconds",
		Help:    "Duration of a single element transform",
		Buckets: prometheus.DefBuckets,
	})
)
