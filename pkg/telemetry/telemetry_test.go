package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/inkwell/blog/pkg/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(&config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	shutdown()

	ctx, span := StartSpan(context.Background(), "test.span")
	defer span.End()
	if ctx == nil {
		t.Fatal("StartSpan() returned nil context")
	}
}

func TestHTTPMetricsRecord(t *testing.T) {
	m, err := NewHTTPMetrics()
	if err != nil {
		t.Fatalf("NewHTTPMetrics() error = %v", err)
	}
	m.Record(context.Background(), "GET", "/posts", 200, 15*time.Millisecond)

	var nilMetrics *HTTPMetrics
	nilMetrics.Record(context.Background(), "GET", "/posts", 200, time.Millisecond)
}
