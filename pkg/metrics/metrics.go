package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SwapAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stellar_swap_attempts_total", Help: "Swap attempts by terminal outcome"},
		[]string{"outcome"},
	)
	PollFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stellar_swap_poll_failures_total", Help: "Background polls that fell back to placeholder data"},
		[]string{"poller"},
	)
	FeeEstimates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stellar_swap_fee_estimates_total", Help: "Settled fee estimates by source"},
		[]string{"source"},
	)
	ConfirmationPolls = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stellar_swap_confirmation_polls",
			Help:    "Status polls needed before a submitted swap reached a final state",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(SwapAttempts, PollFailures, FeeEstimates, ConfirmationPolls)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a /metrics listener in the background
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
