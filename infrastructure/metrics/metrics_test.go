package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	if m == nil {
		t.Fatal("Expected metrics instance, got nil")
	}

	if m.IngestionRunsTotal == nil {
		t.Error("IngestionRunsTotal should not be nil")
	}
	if m.GraphWriteDuration == nil {
		t.Error("GraphWriteDuration should not be nil")
	}
	if m.ErrorsTotal == nil {
		t.Error("ErrorsTotal should not be nil")
	}
}

func TestRecordIngestionRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordIngestionRun("tenant-a", "success")
	m.RecordIngestionRun("tenant-a", "failed")
	m.RecordIngestionStage("tenant-a", "parse_manifests", 50*time.Millisecond)
}

func TestRecordError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordError("test-service", "validation", "ingest")
	m.RecordError("test-service", "graph_write", "commit_topology")
}

func TestRecordGraphWrite(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordGraphWrite("tenant-a", "Service", "success", 2*time.Millisecond)
	m.RecordGraphWrite("tenant-a", "Calls", "failed", 1*time.Millisecond)
}

func TestRecordTraversal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordTraversal("tenant-a", "ADAPTIVE", "success", 3, 10*time.Millisecond)
	m.RecordTraversal("tenant-a", "BOUNDED_CYPHER", "timeout", 5, 500*time.Millisecond)
}

func TestRecordCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordCacheHit("tenant-a", "local")
	m.RecordCacheMiss("tenant-a", "shared")
}

func TestSetOutboxPending(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.SetOutboxPending("tenant-a", 10)
	m.SetOutboxPending("tenant-a", 0)
}

func TestUpdateUptime(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)
	startTime := time.Now().Add(-1 * time.Hour)

	m.UpdateUptime(startTime)
}

func TestCircuitBreakerTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordCircuitBreakerTransition("neo4j", "closed", "open")
}

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	if m == nil {
		t.Fatal("Expected metrics instance, got nil")
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Error("Expected metrics to be registered")
	}
}
