// Package traversal implements the ACL-/tenant-scoped, bounded-degree
// graph expander: three concrete strategies (bounded variable-length
// path, batched cooperative BFS with supernode sampling, and
// APOC-procedure expansion) plus an adaptive selector that picks among
// them from a degree hint. Grounded on agentic_traversal.py's
// TraversalAgent/TraversalState and tenant_security.py's
// build_traversal_* template builders (internal/tenant).
package traversal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/R3E-Network/graphctl/infrastructure/fallback"
	"github.com/R3E-Network/graphctl/internal/breaker"
	"github.com/R3E-Network/graphctl/internal/tokenbudget"
)

// Strategy names the traversal algorithm RunTraversal executes.
type Strategy string

const (
	BoundedCypher Strategy = "bounded_cypher"
	BatchedBFS    Strategy = "batched_bfs"
	APOC          Strategy = "apoc"
	Adaptive      Strategy = "adaptive"
)

// Defaults mirror SPEC_FULL.md section 5's concurrency/resource model.
const (
	DefaultMaxHops              = 5
	DefaultMaxNodes             = 200
	DefaultMaxVisited           = 50
	DefaultBeamWidth            = 50
	DefaultMaxNodeDegree        = 100
	DefaultSampleSize           = 10
	DefaultDegreeThreshold      = 50
	DefaultAPOCDegreeThreshold  = 500
	DefaultPerSourceFrontierCap = 20
	DefaultSimilarityThreshold  = 0.7
)

// Config carries every tunable the strategies and the adaptive selector
// need, env-overridable by the caller (the out-of-scope config-loading
// collaborator, per spec.md section 1).
type Config struct {
	Strategy             Strategy
	MaxHops              int
	MaxNodes             int
	MaxVisited           int
	BeamWidth            int
	MaxNodeDegree        int
	SampleSize           int
	DegreeThreshold      int
	APOCDegreeThreshold  int
	PerSourceFrontierCap int
	SimilarityThreshold  float64
	TokenBudget          tokenbudget.Budget
	SkipACL              bool
	QueryEmbedding       []float64
	RelationshipFilter   string
	LabelFilter          string
}

// DefaultConfig returns the spec's default ceilings.
func DefaultConfig() Config {
	return Config{
		Strategy:             Adaptive,
		MaxHops:              DefaultMaxHops,
		MaxNodes:             DefaultMaxNodes,
		MaxVisited:           DefaultMaxVisited,
		BeamWidth:            DefaultBeamWidth,
		MaxNodeDegree:        DefaultMaxNodeDegree,
		SampleSize:           DefaultSampleSize,
		DegreeThreshold:      DefaultDegreeThreshold,
		APOCDegreeThreshold:  DefaultAPOCDegreeThreshold,
		PerSourceFrontierCap: DefaultPerSourceFrontierCap,
		SimilarityThreshold:  DefaultSimilarityThreshold,
		TokenBudget:          tokenbudget.NewDefaultBudget(),
		RelationshipFilter:   "CALLS>|PRODUCES>|CONSUMES>|DEPLOYED_IN>",
		LabelFilter:          "+Service|+Database|+KafkaTopic|+K8sDeployment",
	}
}

// Result is one ranked record the context manager will assemble into a
// prompt block.
type Result struct {
	NodeID   string
	Name     string
	Label    string
	RelType  string
	SourceID string
	PageRank float64
	Degree   float64
	Score    float64
}

// compositeScore matches BATCHED_BFS's beam-truncation scoring function,
// pagerank + degree/1000.
func compositeScore(pagerank, degree float64) float64 {
	return pagerank + degree/1000
}

// GraphReader is the minimal read surface the traversal engine needs
// from the graph repository (internal/graphrepo.Repository already
// satisfies this structurally).
type GraphReader interface {
	RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// ErrStrategyUnavailable signals a driver-level rejection of a strategy
// (e.g. APOC not installed) that the adaptive selector treats as a
// fallback trigger rather than a hard failure.
var ErrStrategyUnavailable = errors.New("traversal: strategy unavailable")

// TraversalState tracks a single traversal's cooperative progress
// across hops, grounded on agentic_traversal.py's TraversalState.
type TraversalState struct {
	VisitedNodes       map[string]struct{}
	Frontier           []string
	AccumulatedContext []Result
	RemainingHops      int
	TokenBudget        int
	CurrentTokens      int
}

// NewTraversalState seeds a state with startNodeID as the sole frontier
// member, not yet visited.
func NewTraversalState(startNodeID string, maxHops, tokenBudget int) *TraversalState {
	return &TraversalState{
		VisitedNodes:  make(map[string]struct{}),
		Frontier:      []string{startNodeID},
		RemainingHops: maxHops,
		TokenBudget:   tokenBudget,
	}
}

// ShouldContinue reports whether another hop should run: hops remain,
// the visited set is below maxVisited, the frontier is non-empty, and
// the token budget is not yet exhausted.
func (s *TraversalState) ShouldContinue(maxVisited int) bool {
	return s.RemainingHops > 0 &&
		len(s.VisitedNodes) < maxVisited &&
		len(s.Frontier) > 0 &&
		s.CurrentTokens < s.TokenBudget
}

// drainFrontier deduplicates candidates and excludes any already in
// VisitedNodes, the drain+dedup step every BATCHED_BFS hop performs
// before expanding its frontier.
func (s *TraversalState) drainFrontier(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if _, visited := s.VisitedNodes[id]; visited {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// request bundles the parameters every strategy function needs,
// reducing RunTraversal's call sites to a single struct threaded
// through the dispatch.
type request struct {
	startNodeID string
	tenantID    string
	aclParams   map[string]any
	cfg         Config
}

// RunTraversal expands the graph from startNodeID under tenantID/ACL
// scoping using cfg.Strategy (or the adaptive selector when cfg.Strategy
// is Adaptive or empty), returning a ranked, deduplicated result list.
// degreeHint, when non-nil, is the start node's precomputed degree,
// consulted by the adaptive selector to avoid an extra round-trip.
// Cancellation via ctx returns whatever has accumulated so far rather
// than discarding it (best-effort semantics for interactive queries).
func RunTraversal(ctx context.Context, reader GraphReader, startNodeID, tenantID string, aclParams map[string]any, cfg Config, degreeHint *int) ([]Result, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("traversal: tenant_id must not be empty")
	}
	cfg = fillDefaults(cfg)
	req := request{startNodeID: startNodeID, tenantID: tenantID, aclParams: mergeACLParams(tenantID, aclParams), cfg: cfg}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = Adaptive
	}

	switch strategy {
	case BoundedCypher:
		return withStrategyFallback(ctx,
			func(ctx context.Context) ([]Result, error) { return boundedCypher(ctx, reader, req) },
			func(ctx context.Context) ([]Result, error) { return batchedBFS(ctx, reader, req) },
		)
	case BatchedBFS:
		return batchedBFS(ctx, reader, req)
	case APOC:
		return withStrategyFallback(ctx,
			func(ctx context.Context) ([]Result, error) { return apocExpansion(ctx, reader, req) },
			func(ctx context.Context) ([]Result, error) { return batchedBFS(ctx, reader, req) },
		)
	case Adaptive:
		return runAdaptive(ctx, reader, req, degreeHint)
	default:
		return nil, fmt.Errorf("traversal: unknown strategy %q", strategy)
	}
}

// strategyFallback is the shared fallback.Handler every degrade-on-error
// strategy pair runs through: a short, capped backoff between the
// primary strategy's failure and the BATCHED_BFS fallback it degrades
// to, grounded on infrastructure/fallback's primary/fallback chain
// (the teacher's own retry-with-backoff idiom) rather than a bespoke
// if-err-then-call-the-other-one branch per call site.
var strategyFallback = fallback.NewHandler(fallback.Config{
	MaxAttempts: 2,
	BaseDelay:   10 * time.Millisecond,
	MaxDelay:    50 * time.Millisecond,
	Multiplier:  2.0,
	Jitter:      0.1,
})

// withStrategyFallback runs primary and, on any error, secondary
// through strategyFallback, adapting the []Result-returning strategy
// functions to fallback.Func's interface{} shape.
func withStrategyFallback(ctx context.Context, primary, secondary func(context.Context) ([]Result, error)) ([]Result, error) {
	toFallbackFunc := func(f func(context.Context) ([]Result, error)) fallback.Func {
		return func(ctx context.Context) (interface{}, error) { return f(ctx) }
	}
	res := strategyFallback.Execute(ctx, toFallbackFunc(primary), toFallbackFunc(secondary))
	if res.Err != nil {
		return nil, res.Err
	}
	results, _ := res.Value.([]Result)
	return results, nil
}

func runAdaptive(ctx context.Context, reader GraphReader, req request, degreeHint *int) ([]Result, error) {
	if degreeHint != nil {
		degree := *degreeHint
		switch {
		case degree > req.cfg.APOCDegreeThreshold:
			return withStrategyFallback(ctx,
				func(ctx context.Context) ([]Result, error) { return apocExpansion(ctx, reader, req) },
				func(ctx context.Context) ([]Result, error) { return batchedBFS(ctx, reader, req) },
			)
		case degree > req.cfg.DegreeThreshold:
			return batchedBFS(ctx, reader, req)
		default:
			return withStrategyFallback(ctx,
				func(ctx context.Context) ([]Result, error) { return boundedCypher(ctx, reader, req) },
				func(ctx context.Context) ([]Result, error) { return batchedBFS(ctx, reader, req) },
			)
		}
	}

	// No hint available: try APOC first, falling back to BATCHED_BFS on
	// any error (missing procedure library, timeout, driver error).
	return withStrategyFallback(ctx,
		func(ctx context.Context) ([]Result, error) { return apocExpansion(ctx, reader, req) },
		func(ctx context.Context) ([]Result, error) { return batchedBFS(ctx, reader, req) },
	)
}

func mergeACLParams(tenantID string, aclParams map[string]any) map[string]any {
	out := make(map[string]any, len(aclParams)+1)
	for k, v := range aclParams {
		out[k] = v
	}
	out["tenant_id"] = tenantID
	if _, ok := out["is_admin"]; !ok {
		out["is_admin"] = false
	}
	return out
}

func fillDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = d.MaxHops
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = d.MaxNodes
	}
	if cfg.MaxVisited <= 0 {
		cfg.MaxVisited = d.MaxVisited
	}
	if cfg.BeamWidth <= 0 {
		cfg.BeamWidth = d.BeamWidth
	}
	if cfg.MaxNodeDegree <= 0 {
		cfg.MaxNodeDegree = d.MaxNodeDegree
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = d.SampleSize
	}
	if cfg.DegreeThreshold <= 0 {
		cfg.DegreeThreshold = d.DegreeThreshold
	}
	if cfg.APOCDegreeThreshold <= 0 {
		cfg.APOCDegreeThreshold = d.APOCDegreeThreshold
	}
	if cfg.PerSourceFrontierCap <= 0 {
		cfg.PerSourceFrontierCap = d.PerSourceFrontierCap
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = d.SimilarityThreshold
	}
	if cfg.TokenBudget.MaxContextTokens <= 0 {
		cfg.TokenBudget = d.TokenBudget
	}
	if cfg.RelationshipFilter == "" {
		cfg.RelationshipFilter = d.RelationshipFilter
	}
	if cfg.LabelFilter == "" {
		cfg.LabelFilter = d.LabelFilter
	}
	return cfg
}

// beamTruncate keeps the top beamWidth results by compositeScore,
// matching BATCHED_BFS's per-hop beam enforcement.
func beamTruncate(results []Result, beamWidth int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return compositeScore(results[i].PageRank, results[i].Degree) > compositeScore(results[j].PageRank, results[j].Degree)
	})
	if len(results) > beamWidth {
		results = results[:beamWidth]
	}
	return results
}

// deterministicOrder sorts results by (PageRank DESC, Degree DESC, id
// ASC), the ordering every sampling/expansion path must use instead of
// rand() so supernode sampling stays reproducible across runs.
func deterministicOrder(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PageRank != results[j].PageRank {
			return results[i].PageRank > results[j].PageRank
		}
		if results[i].Degree != results[j].Degree {
			return results[i].Degree > results[j].Degree
		}
		return results[i].NodeID < results[j].NodeID
	})
}

func floatField(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func stringField(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}

// executeRead runs a managed-transaction-backed read through reader, so
// every strategy benefits from the driver's own transient-error retry
// without re-implementing it here.
func executeRead(ctx context.Context, reader GraphReader, query string, params map[string]any) ([]map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return reader.RunRead(ctx, query, params)
}

// classifyDriverError distinguishes a driver/timeout failure (a
// fallback trigger for ADAPTIVE/BOUNDED_CYPHER) from a breaker-open
// rejection, which the caller should itself surface rather than
// silently degrade to a weaker strategy.
func classifyDriverError(err error) error {
	if err == nil {
		return nil
	}
	if breaker.IsGlobalFailure(err) {
		return fmt.Errorf("%w: %v", ErrStrategyUnavailable, err)
	}
	return err
}
