package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// TrainingEpisodes counts completed training episodes over all requests.
	TrainingEpisodes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "training_episodes_total", Help: "Completed Q-learning episodes."},
	)
	// EpisodeReward tracks the distribution of total episode rewards.
	EpisodeReward = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_episode_reward",
			Help:    "Total reward per training episode.",
			Buckets: []float64{-20000, -10000, -5000, -2000, -1000, -100, -10, -1, 0},
		},
	)
	// TrainingDuration records how long a full training run took.
	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "training_duration_seconds", Help: "Wall time of a training run.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 10)},
	)
	// RouteRequests counts route requests by outcome.
	RouteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_requests_total", Help: "Route requests by status."},
		[]string{"status"},
	)
	// RouteArrivals counts extracted routes by whether they reached the goal.
	RouteArrivals = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_arrivals_total", Help: "Extracted routes by arrival."},
		[]string{"reached"},
	)
)

// RegisterDefault registers collectors to the service registry. Safe to call repeatedly.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(TrainingEpisodes)
		Registry.MustRegister(EpisodeReward)
		Registry.MustRegister(TrainingDuration)
		Registry.MustRegister(RouteRequests)
		Registry.MustRegister(RouteArrivals)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
