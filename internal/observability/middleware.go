package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "unit-preferences/http"
	healthzPath         = "/healthz"
	readyzPath          = "/readyz"

	// unmatchedRoute labels requests chi could not route, keeping label cardinality bounded
	unmatchedRoute = "unmatched"
)

// HTTPMetrics holds HTTP-related metrics instruments
type HTTPMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// NewHTTPMetrics creates and registers HTTP metrics
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		activeRequests:  activeRequests,
	}, nil
}

// statusRecorder captures the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == healthzPath || r.URL.Path == readyzPath
}

// routePattern returns the matched chi pattern, e.g. /api/users/{userID}/preferences/*.
// Only valid once the router has handled the request.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

// MetricsMiddleware records request count and latency per route pattern.
// Raw paths carry user IDs, so they are never used as labels.
func MetricsMiddleware(metrics *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ctx := r.Context()

			metrics.activeRequests.Add(ctx, 1)
			defer metrics.activeRequests.Add(ctx, -1)

			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			attrs := metric.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRoute(routePattern(r)),
				semconv.HTTPResponseStatusCode(rw.status),
			)
			metrics.requestCount.Add(ctx, 1, attrs)
			metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		})
	}
}

// TracingMiddleware opens a server span per request. The span is renamed to
// the route pattern once routing is done, and tagged with the user it targets.
func TracingMiddleware(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := tracer.Start(r.Context(), r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.UserAgentOriginal(r.UserAgent()),
					semconv.ClientAddress(r.RemoteAddr),
				),
			)
			defer span.End()

			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(rw, r)

			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(rw.status),
			)
			if userID := chi.URLParam(r, "userID"); userID != "" {
				span.SetAttributes(attribute.String("preferences.user_id", userID))
			}

			if rw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.status))
			}
		})
	}
}

// GetTracer returns a tracer for HTTP instrumentation
func GetTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// GetMeter returns a meter for HTTP metrics
func GetMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}
