package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativeforge_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creativeforge_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	providerAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativeforge_provider_attempts_total",
			Help: "Image provider invocations by outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creativeforge_provider_duration_seconds",
			Help:    "Image provider latency",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	engineAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creativeforge_conversion_attempts_total",
			Help: "Conversion engine invocations by outcome",
		},
		[]string{"engine", "outcome"},
	)

	engineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creativeforge_conversion_duration_seconds",
			Help:    "Conversion engine latency",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		},
		[]string{"engine"},
	)

	shortLinkRedirects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creativeforge_short_link_redirects_total",
		Help: "Short link redirects served",
	})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveProvider records one image provider attempt.
func ObserveProvider(provider string, d time.Duration, err error) {
	providerAttempts.WithLabelValues(provider, outcome(err)).Inc()
	providerDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveEngine records one conversion engine attempt.
func ObserveEngine(engine string, d time.Duration, err error) {
	engineAttempts.WithLabelValues(engine, outcome(err)).Inc()
	engineDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// ObserveRedirect counts a served short link.
func ObserveRedirect() {
	shortLinkRedirects.Inc()
}

// Middleware records request counts and latency. Routes are labelled by
// their gin pattern so path parameters do not explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
