package traversal

import (
	"context"
	"errors"
	"testing"
)

func TestBoundedCypherReturnsScoredResults(t *testing.T) {
	reader := &fakeReader{fn: func(_ context.Context, query string, params map[string]any) ([]map[string]any, error) {
		if params["source_id"] != "svc-a" || params["tenant_id"] != "tenant-a" {
			t.Errorf("expected source_id/tenant_id params, got %v", params)
		}
		return []map[string]any{
			{"target_id": "svc-b", "target_name": "b", "target_label": "Service", "pagerank": 0.4, "degree": float64(10)},
		}, nil
	}}

	req := request{
		startNodeID: "svc-a",
		tenantID:    "tenant-a",
		aclParams:   map[string]any{"tenant_id": "tenant-a", "is_admin": false},
		cfg:         fillDefaults(Config{}),
	}

	results, err := boundedCypher(context.Background(), reader, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].NodeID != "svc-b" {
		t.Fatalf("expected one result for svc-b, got %+v", results)
	}
	if results[0].Score != compositeScore(0.4, 10) {
		t.Errorf("expected score to be compositeScore(pagerank, degree), got %v", results[0].Score)
	}
}

func TestBoundedCypherPropagatesDriverError(t *testing.T) {
	boom := errors.New("driver exploded")
	reader := &fakeReader{fn: func(context.Context, string, map[string]any) ([]map[string]any, error) {
		return nil, boom
	}}
	req := request{startNodeID: "svc-a", tenantID: "tenant-a", cfg: fillDefaults(Config{})}
	_, err := boundedCypher(context.Background(), reader, req)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped driver error, got %v", err)
	}
}

func TestWithParamsExtraTakesPriority(t *testing.T) {
	req := request{aclParams: map[string]any{"tenant_id": "tenant-a", "limit": 5}}
	out := withParams(req, map[string]any{"limit": 20})
	if out["tenant_id"] != "tenant-a" {
		t.Error("expected acl params to survive the merge")
	}
	if out["limit"] != 20 {
		t.Errorf("expected extra param to override acl param, got %v", out["limit"])
	}
}
