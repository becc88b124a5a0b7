package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMiddleware returns a Gin middleware recording request counts and durations
// labelled by method, route pattern and status code. Route patterns (/v1/records/:id)
// keep record ids out of label values.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	meter := meterProvider.Meter(namespace)
	passthrough := func(c *gin.Context) { c.Next() }

	requestCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return passthrough
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return passthrough
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		opt := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", routePattern(c.FullPath())),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		requestCounter.Add(c.Request.Context(), 1, opt)
		durationHisto.Record(c.Request.Context(), time.Since(start).Seconds(), opt)
	}
}

// routePattern returns "unknown" for unmatched routes.
func routePattern(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}
