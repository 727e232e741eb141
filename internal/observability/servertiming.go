package observability

import (
	"context"
	"sync"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
)

// ServerTimingMetric wraps the server-timing library's Metric type.
type ServerTimingMetric struct {
	metric *servertiming.Metric
}

// Stop stops the timing metric.
func (m *ServerTimingMetric) Stop() {
	if m != nil && m.metric != nil {
		m.metric.Stop()
	}
}

// StartServerTiming starts a server-timing metric with the given name.
// If server timing is not enabled or the context carries no timing header,
// a no-op metric is returned.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return &ServerTimingMetric{}
	}
	return &ServerTimingMetric{metric: timing.NewMetric(name).Start()}
}

// StartServerTimingWithDesc starts a server-timing metric with a
// description attached.
func StartServerTimingWithDesc(ctx context.Context, name, description string) *ServerTimingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return &ServerTimingMetric{}
	}
	return &ServerTimingMetric{metric: timing.NewMetric(name).WithDesc(description).Start()}
}

// DBTimeAccumulator sums database time across a request so it can be
// reported as one "db" entry in the Server-Timing header.
type DBTimeAccumulator struct {
	mu    sync.Mutex
	total time.Duration
}

// Add adds a duration to the accumulator.
func (a *DBTimeAccumulator) Add(d time.Duration) {
	a.mu.Lock()
	a.total += d
	a.mu.Unlock()
}

// Total returns the accumulated database time.
func (a *DBTimeAccumulator) Total() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

type dbTimeKey struct{}

// WithDBTimeAccumulator attaches a fresh accumulator to the context.
func WithDBTimeAccumulator(ctx context.Context) (context.Context, *DBTimeAccumulator) {
	acc := &DBTimeAccumulator{}
	return context.WithValue(ctx, dbTimeKey{}, acc), acc
}

// DBTimeAccumulatorFromContext retrieves the accumulator, or nil.
func DBTimeAccumulatorFromContext(ctx context.Context) *DBTimeAccumulator {
	acc, _ := ctx.Value(dbTimeKey{}).(*DBTimeAccumulator)
	return acc
}

// AddDBTime adds database time to the request's accumulator when present.
func AddDBTime(ctx context.Context, d time.Duration) {
	if acc := DBTimeAccumulatorFromContext(ctx); acc != nil {
		acc.Add(d)
	}
}
