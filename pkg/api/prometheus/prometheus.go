package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	counter = "counter"
	average = "average"

	RequestCounter           = "offline_gateway_request_counter"
	NoCachedResponseCounter  = "offline_gateway_no_cached_response_counter"
	CachedResponseCounter    = "offline_gateway_cached_response_counter"
	PassthroughCounter       = "offline_gateway_passthrough_counter"
	FallbackCounter          = "offline_gateway_fallback_counter"
	RevalidationCounter      = "offline_gateway_revalidation_counter"
	RevalidationErrorCounter = "offline_gateway_revalidation_error_counter"
	InstallErrorCounter      = "offline_gateway_install_error_counter"
	AvgResponseTime          = "offline_gateway_avg_response_time"
)

var (
	registered map[string]interface{}
	once       sync.Once
)

// Handler returns the exposition handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Increment will increment the counter.
func Increment(name string) {
	if c, ok := registered[name].(prometheus.Counter); ok {
		c.Inc()
	}
}

// Add will add the referred value the counter.
func Add(name string, value float64) {
	if c, ok := registered[name].(prometheus.Counter); ok {
		c.Add(value)
	}
	if g, ok := registered[name].(prometheus.Histogram); ok {
		g.Observe(value)
	}
}

func push(promType, name, help string) {
	switch promType {
	case counter:
		registered[name] = promauto.NewCounter(prometheus.CounterOpts{
			Name: name,
			Help: help,
		})

		return
	case average:
		avg := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: name,
			Help: help,
		})
		prometheus.MustRegister(avg)
		registered[name] = avg
	}
}

func run() {
	registered = make(map[string]interface{})
	push(counter, RequestCounter, "Total intercepted request counter")
	push(counter, NoCachedResponseCounter, "No cached response counter")
	push(counter, CachedResponseCounter, "Cached response counter")
	push(counter, PassthroughCounter, "Requests forwarded untouched counter")
	push(counter, FallbackCounter, "Synthetic fallback counter")
	push(counter, RevalidationCounter, "Background revalidation counter")
	push(counter, RevalidationErrorCounter, "Failed background revalidation counter")
	push(counter, InstallErrorCounter, "Aborted install counter")
	push(average, AvgResponseTime, "Average intercepted response time in milliseconds")
}

// Run populate and prepare the map with the default values, only the first
// call registers the metrics.
func Run() {
	once.Do(run)
}
