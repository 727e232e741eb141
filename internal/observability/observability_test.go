package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.ServiceName != "cellschema" {
		t.Errorf("ServiceName = %q, want cellschema", cfg.ServiceName)
	}
	if cfg.IsEnabled() {
		t.Error("IsEnabled() = true for empty config")
	}
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if cfg.Tracer() == nil || cfg.Metrics() == nil {
		t.Error("Initialize should install no-op tracer and metrics")
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithTracerProvider(tracenoop.NewTracerProvider()),
		WithMeterProvider(noop.NewMeterProvider()),
		WithServiceName("schema-test"),
		WithServerTiming(),
		WithDetailedDBTracing(),
	)
	if !cfg.IsEnabled() {
		t.Error("IsEnabled() = false with providers set")
	}
	if !cfg.ServerTimingEnabled() {
		t.Error("ServerTimingEnabled() = false")
	}
	if !cfg.EnableDetailedDBTracing {
		t.Error("EnableDetailedDBTracing = false")
	}
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
}

func TestNilConfigAccessors(t *testing.T) {
	var cfg *Config
	if cfg.Tracer() == nil {
		t.Error("nil config Tracer() should return a no-op tracer")
	}
	if cfg.Metrics() == nil {
		t.Error("nil config Metrics() should return no-op metrics")
	}
	if cfg.IsEnabled() {
		t.Error("nil config IsEnabled() = true")
	}
}

func TestDBTimeAccumulator(t *testing.T) {
	acc := &DBTimeAccumulator{}
	acc.Add(10 * time.Millisecond)
	acc.Add(5 * time.Millisecond)
	if acc.Total() != 15*time.Millisecond {
		t.Errorf("Total() = %v, want 15ms", acc.Total())
	}
}

func TestDBTimeAccumulatorConcurrent(t *testing.T) {
	acc := &DBTimeAccumulator{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Add(time.Millisecond)
		}()
	}
	wg.Wait()
	if acc.Total() != 50*time.Millisecond {
		t.Errorf("Total() = %v, want 50ms", acc.Total())
	}
}

func TestAddDBTimeThroughContext(t *testing.T) {
	ctx, acc := WithDBTimeAccumulator(context.Background())
	AddDBTime(ctx, 7*time.Millisecond)
	if acc.Total() != 7*time.Millisecond {
		t.Errorf("Total() = %v, want 7ms", acc.Total())
	}

	// Without an accumulator this must be a no-op.
	AddDBTime(context.Background(), time.Millisecond)
}

func TestHTTPMiddlewarePassthrough(t *testing.T) {
	middleware := HTTPMiddleware(nil)

	called := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("wrapped handler was not called")
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
}

func TestHTTPMiddlewareInstrumented(t *testing.T) {
	cfg := NewConfig(
		WithTracerProvider(tracenoop.NewTracerProvider()),
		WithMeterProvider(noop.NewMeterProvider()),
		WithServerTiming(),
	)
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	handler := HTTPMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddDBTime(r.Context(), 3*time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cell/box/odata/$metadata/Property", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestOperationContext(t *testing.T) {
	ctx := WithOperation(context.Background(), "Property", OpCreate)
	entitySet, operation := OperationFromContext(ctx)
	if entitySet != "Property" || operation != OpCreate {
		t.Errorf("OperationFromContext = (%q, %q), want (Property, %s)", entitySet, operation, OpCreate)
	}

	entitySet, operation = OperationFromContext(context.Background())
	if entitySet != "" || operation != "" {
		t.Errorf("bare context OperationFromContext = (%q, %q), want empty", entitySet, operation)
	}
}

func TestStartServerTiming(t *testing.T) {
	// Without a timing header in the context both helpers degrade to no-ops.
	StartServerTiming(context.Background(), "x").Stop()
	StartServerTimingWithDesc(context.Background(), "x", "y").Stop()

	header := &servertiming.Header{}
	ctx := servertiming.NewContext(context.Background(), header)

	StartServerTiming(ctx, "query").Stop()
	metric := StartServerTimingWithDesc(ctx, "create", "Property")
	metric.Stop()

	if len(header.Metrics) != 2 {
		t.Fatalf("len(header.Metrics) = %d, want 2", len(header.Metrics))
	}
	if header.Metrics[0].Name != "query" {
		t.Errorf("Metrics[0].Name = %q, want query", header.Metrics[0].Name)
	}
	if header.Metrics[1].Desc != "Property" {
		t.Errorf("Metrics[1].Desc = %q, want Property", header.Metrics[1].Desc)
	}
}
