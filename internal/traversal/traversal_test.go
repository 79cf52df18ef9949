package traversal

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestTraversalStateShouldContinue(t *testing.T) {
	s := NewTraversalState("root", 2, 1000)
	if !s.ShouldContinue(10) {
		t.Fatal("expected fresh state to continue")
	}
	s.RemainingHops = 0
	if s.ShouldContinue(10) {
		t.Error("expected exhausted hop budget to stop")
	}
	s.RemainingHops = 2
	s.VisitedNodes["a"] = struct{}{}
	if s.ShouldContinue(1) {
		t.Error("expected visited cap to stop")
	}
	s.VisitedNodes = map[string]struct{}{}
	s.Frontier = nil
	if s.ShouldContinue(10) {
		t.Error("expected empty frontier to stop")
	}
	s.Frontier = []string{"a"}
	s.CurrentTokens = 1000
	if s.ShouldContinue(10) {
		t.Error("expected exhausted token budget to stop")
	}
}

func TestDrainFrontierDedupesAndExcludesVisited(t *testing.T) {
	s := NewTraversalState("root", 3, 1000)
	s.VisitedNodes["b"] = struct{}{}
	out := s.drainFrontier([]string{"a", "a", "b", "c"})
	if len(out) != 2 || out[0] != "a" || out[1] != "c" {
		t.Errorf("expected [a c], got %v", out)
	}
}

func TestBeamTruncateKeepsTopScores(t *testing.T) {
	results := []Result{
		{NodeID: "low", PageRank: 0.1, Degree: 1},
		{NodeID: "high", PageRank: 0.9, Degree: 5},
		{NodeID: "mid", PageRank: 0.5, Degree: 2},
	}
	out := beamTruncate(results, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].NodeID != "high" || out[1].NodeID != "mid" {
		t.Errorf("expected [high mid], got %v", out)
	}
}

func TestDeterministicOrderNeverRandom(t *testing.T) {
	results := []Result{
		{NodeID: "z", PageRank: 0.5, Degree: 3},
		{NodeID: "a", PageRank: 0.5, Degree: 3},
		{NodeID: "m", PageRank: 0.9, Degree: 1},
	}
	deterministicOrder(results)
	if results[0].NodeID != "m" {
		t.Errorf("expected highest pagerank first, got %v", results[0].NodeID)
	}
	if results[1].NodeID != "a" || results[2].NodeID != "z" {
		t.Errorf("expected tie broken by id ascending, got %v then %v", results[1].NodeID, results[2].NodeID)
	}
}

func TestMergeACLParamsDefaultsIsAdminFalse(t *testing.T) {
	out := mergeACLParams("tenant-a", map[string]any{"acl_team": "payments"})
	if out["tenant_id"] != "tenant-a" {
		t.Errorf("expected tenant_id to be set, got %v", out["tenant_id"])
	}
	if out["is_admin"] != false {
		t.Errorf("expected is_admin to default to false, got %v", out["is_admin"])
	}
	if out["acl_team"] != "payments" {
		t.Errorf("expected acl_team to survive the merge, got %v", out["acl_team"])
	}
}

func TestFillDefaultsAppliesCeilings(t *testing.T) {
	cfg := fillDefaults(Config{})
	if cfg.MaxHops != DefaultMaxHops || cfg.MaxNodes != DefaultMaxNodes || cfg.BeamWidth != DefaultBeamWidth {
		t.Errorf("expected zero-value config to receive defaults, got %+v", cfg)
	}
	custom := fillDefaults(Config{MaxHops: 9})
	if custom.MaxHops != 9 {
		t.Error("expected explicit MaxHops to survive fillDefaults")
	}
	if custom.MaxNodes != DefaultMaxNodes {
		t.Error("expected unset MaxNodes to still receive its default")
	}
}

func TestClassifyDriverErrorWrapsGlobalFailure(t *testing.T) {
	if classifyDriverError(nil) != nil {
		t.Error("expected nil error to pass through")
	}
	plain := errors.New("boom")
	if !errors.Is(classifyDriverError(plain), plain) {
		t.Error("expected a non-breaker error to pass through unwrapped")
	}
	netFailure := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	wrapped := classifyDriverError(netFailure)
	if !errors.Is(wrapped, ErrStrategyUnavailable) {
		t.Errorf("expected network-class failure to wrap ErrStrategyUnavailable, got %v", wrapped)
	}
}

func TestRunTraversalRejectsEmptyTenant(t *testing.T) {
	_, err := RunTraversal(context.Background(), &fakeReader{}, "n1", "", nil, Config{}, nil)
	if err == nil {
		t.Error("expected empty tenant_id to be rejected")
	}
}

// TestRunTraversalFallsBackToBatchedBFSOnPrimaryError exercises
// withStrategyFallback end-to-end: BOUNDED_CYPHER's single query fails,
// and RunTraversal must degrade to BATCHED_BFS instead of propagating
// the raw error, via infrastructure/fallback's Handler.
func TestRunTraversalFallsBackToBatchedBFSOnPrimaryError(t *testing.T) {
	calls := 0
	reader := &fakeReader{fn: func(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("bounded cypher unavailable")
		}
		return nil, nil
	}}

	cfg := DefaultConfig()
	cfg.Strategy = BoundedCypher
	results, err := RunTraversal(context.Background(), reader, "svc-a", "tenant-a", nil, cfg, nil)
	if err != nil {
		t.Fatalf("expected the BATCHED_BFS fallback to mask the primary error, got %v", err)
	}
	if results == nil {
		t.Error("expected a (possibly empty) result slice, not nil, from the fallback path")
	}
	if calls < 2 {
		t.Fatalf("expected the fallback handler to invoke a second (BATCHED_BFS) call, got %d calls", calls)
	}
}

// TestRunTraversalFallbackReturnsSecondaryErrorWhenBothFail confirms
// that when both the primary and the fallback strategy fail, the error
// surfaced to the caller is not silently swallowed.
func TestRunTraversalFallbackReturnsSecondaryErrorWhenBothFail(t *testing.T) {
	reader := &fakeReader{fn: func(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
		return nil, errors.New("driver unavailable")
	}}

	cfg := DefaultConfig()
	cfg.Strategy = APOC
	_, err := RunTraversal(context.Background(), reader, "svc-a", "tenant-a", nil, cfg, nil)
	if err == nil {
		t.Fatal("expected an error when both the primary and fallback strategies fail")
	}
}
