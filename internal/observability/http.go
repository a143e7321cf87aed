package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	scrapeMaxInFlight = 2
	scrapeTimeout     = 10 * time.Second
)

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber. Long-lived
// stream connections keep the API busy, so concurrent scrapes are capped and a
// failing collector does not blank the whole scrape.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	handler := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorHandling:       promhttp.ContinueOnError,
			MaxRequestsInFlight: scrapeMaxInFlight,
			Timeout:             scrapeTimeout,
			EnableOpenMetrics:   true,
		}),
	)
	return adaptor.HTTPHandler(handler)
}
