package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	htmlResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_html_responses_total",
		Help: "Proxied HTML responses by handling",
	}, []string{"result"}) // rewritten, unsupported_encoding, decode_error

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fontshield_http_request_duration_seconds",
		Help:    "Inbound request duration by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
