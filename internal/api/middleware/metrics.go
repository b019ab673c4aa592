// Package middleware provides the Echo middleware of the restock-tracker
// HTTP server.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/restock-tracker/internal/metrics"
)

// unmatchedPath labels requests that matched no route.
const unmatchedPath = "<unmatched>"

// metricsSkipPaths are scraped or probed too often to be worth a histogram.
var metricsSkipPaths = map[string]struct{}{
	"/metrics": {},
	"/healthz": {},
	"/readyz":  {},
}

// metricsSkipPrefixes cover the API documentation assets.
var metricsSkipPrefixes = []string{"/docs", "/openapi", "/schemas"}

// healthGauges maps probe paths to their up/down gauge.
var healthGauges = map[string]prometheus.Gauge{
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

// Metrics returns Echo middleware that records request duration and status
// by route template. Probe paths only update their up/down gauges.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := routePath(c)

			if _, skip := metricsSkipPaths[path]; skip || hasSkipPrefix(path) {
				err := next(c)
				updateHealthGauge(path, responseStatus(c, err))
				return err
			}

			start := time.Now()
			err := next(c)

			status := strconv.Itoa(responseStatus(c, err))
			method := c.Request().Method
			metrics.HTTPRequestDuration.
				WithLabelValues(method, path, status).
				Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.
				WithLabelValues(method, path, status).
				Inc()

			return err
		}
	}
}

// routePath returns the matched route template so product keys in the URL
// do not become label values.
func routePath(c echo.Context) string {
	path := c.Path()
	if path == "" || path == "/*" {
		if p := c.Request().URL.Path; isKnownOperational(p) {
			return p
		}
		return unmatchedPath
	}
	return path
}

func isKnownOperational(p string) bool {
	_, ok := metricsSkipPaths[p]
	return ok || hasSkipPrefix(p)
}

func hasSkipPrefix(path string) bool {
	for _, p := range metricsSkipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// responseStatus returns the status that will be written for err when the
// handler has not committed a response yet.
func responseStatus(c echo.Context, err error) int {
	if c.Response().Committed || err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 500
}

func updateHealthGauge(path string, status int) {
	gauge, ok := healthGauges[path]
	if !ok {
		return
	}
	if status >= 200 && status < 300 {
		gauge.Set(1)
	} else {
		gauge.Set(0)
	}
}
