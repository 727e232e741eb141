package observability

import (
	"net/http"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
)

// statusRecorder captures the response status for span and metric labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware returns an HTTP middleware that instruments requests with
// a root span, request metrics and optionally the Server-Timing header.
func HTTPMiddleware(cfg *Config) func(http.Handler) http.Handler {
	if cfg == nil || (!cfg.IsEnabled() && !cfg.ServerTimingEnabled()) {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	tracer := cfg.Tracer()
	metrics := cfg.Metrics()

	instrumented := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, acc := WithDBTimeAccumulator(r.Context())
			ctx, span := tracer.StartRequest(ctx, r)
			defer span.End()

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r.WithContext(ctx))

			tracer.SetHTTPStatus(ctx, recorder.status)
			metrics.RecordRequest(ctx, "", r.Method, recorder.status, time.Since(start))

			if timing := servertiming.FromContext(ctx); timing != nil {
				timing.NewMetric("db").WithDesc("database time").Duration = acc.Total()
			}
		})
	}

	if cfg.ServerTimingEnabled() {
		return func(next http.Handler) http.Handler {
			return servertiming.Middleware(instrumented(next), nil)
		}
	}
	return instrumented
}
