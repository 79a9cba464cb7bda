package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchPages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scene_data",
		Name:      "search_pages_total",
		Help:      "Total search pages requested.",
	})
	SearchRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scene_data",
		Name:      "search_records_total",
		Help:      "Total object records merged from search pages.",
	})
	SearchDecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scene_data",
		Name:      "search_decode_errors_total",
		Help:      "Total search lines skipped because they were not valid records.",
	})
	DescendantLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scene_data",
		Name:      "descendant_lookups_total",
		Help:      "Descendant list requests by outcome (ok, degraded).",
	}, []string{"outcome"})
	UploadBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scene_data",
		Name:      "upload_blocks_total",
		Help:      "Upload block PUTs by outcome (ok, failed).",
	}, []string{"outcome"})
	UploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scene_data",
		Name:      "upload_bytes_total",
		Help:      "Total bytes stored by completed block or direct uploads.",
	})
	Uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scene_data",
		Name:      "uploads_total",
		Help:      "Upload calls by outcome (ok, failed).",
	}, []string{"outcome"})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(SearchPages, SearchRecords, SearchDecodeErrors, DescendantLookups, UploadBlocks, UploadBytes, Uploads)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
