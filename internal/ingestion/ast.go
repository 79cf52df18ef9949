package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"github.com/R3E-Network/graphctl/internal/astclient"
	"github.com/R3E-Network/graphctl/internal/errs"
	"github.com/R3E-Network/graphctl/internal/obs"
	"github.com/R3E-Network/graphctl/internal/workspace"
)

// DefaultASTPoolCeiling caps the local worker pool regardless of the
// ASTConfig.PoolWorkers value, to bound memory use on large
// monorepos, per SPEC_FULL.md section 4.8.
const DefaultASTPoolCeiling = 8

// DefaultPerWorkerMemoryBudgetBytes is the assumed resident-memory cost
// of one local extraction worker; ASTConfig.ResolveWorkerCount divides
// gopsutil's reported available memory by this figure as a second,
// independent clamp alongside the ceiling, so a pool sized generously
// via env on a memory-constrained node still can't OOM the host.
const DefaultPerWorkerMemoryBudgetBytes = 256 * 1024 * 1024

// LocalExtractor parses one file's source text into ontology entities.
// Per-language AST parsing is an out-of-scope external collaborator
// (spec.md section 1); this is the seam it plugs into.
type LocalExtractor func(ctx context.Context, file workspace.File, tenantID string) (astclient.ExtractionResult, error)

// ASTConfig configures ParseSourceAST.
type ASTConfig struct {
	UseRemoteAST bool
	PoolWorkers  int

	RemoteClient     *astclient.Client
	RemoteRateLimit  rate.Limit // requests/sec; 0 disables limiting
	RemoteRateBurst  int
	DeadLetterMaxLen int

	LocalExtractor LocalExtractor
}

// ResolveWorkerCount computes the local pool size: PoolWorkers capped at
// DefaultASTPoolCeiling (a PoolWorkers of 0 or less uses
// DefaultASTPoolCeiling itself), then clamped again to
// available-memory / DefaultPerWorkerMemoryBudgetBytes, taking the
// smaller of the two. A gopsutil read failure is non-fatal; it simply
// skips the memory-based clamp rather than failing the whole run.
func (c ASTConfig) ResolveWorkerCount() int {
	workers := c.PoolWorkers
	if workers <= 0 {
		workers = DefaultASTPoolCeiling
	}
	if workers > DefaultASTPoolCeiling {
		workers = DefaultASTPoolCeiling
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		byMemory := int(vm.Available / DefaultPerWorkerMemoryBudgetBytes)
		if byMemory < 1 {
			byMemory = 1
		}
		if byMemory < workers {
			workers = byMemory
		}
	}
	return workers
}

// ParseSourceAST is the pipeline's second DAG node. USE_REMOTE_AST=true
// routes every file through the gRPC AST client behind the global
// circuit breaker and a requests/sec limiter; an open breaker or
// network failure raises IngestionDegraded and the payload is pushed to
// a bounded in-memory dead-letter queue rather than dropped. Local mode
// dispatches to a fixed-size worker pool and MUST NOT be entered when
// remote mode is enabled (no process pool is ever started in that
// case), per the spec's explicit "MUST NOT create a process pool when
// remote mode is enabled" requirement.
func ParseSourceAST(cfg ASTConfig, dlq *DeadLetterQueue) func(ctx context.Context, state IngestionState) (IngestionState, error) {
	var limiter *rate.Limiter
	if cfg.RemoteRateLimit > 0 {
		limiter = rate.NewLimiter(cfg.RemoteRateLimit, maxInt(cfg.RemoteRateBurst, 1))
	}
	return func(ctx context.Context, state IngestionState) (IngestionState, error) {
		return obs.SpanValue(ctx, "ingestion.parse_source_ast", func(ctx context.Context) (IngestionState, error) {
			if len(state.RawFiles) == 0 {
				return state, nil
			}
			if cfg.UseRemoteAST {
				return parseRemote(ctx, cfg, limiter, dlq, state)
			}
			return parseLocal(ctx, cfg, state)
		})
	}
}

func parseRemote(ctx context.Context, cfg ASTConfig, limiter *rate.Limiter, dlq *DeadLetterQueue, state IngestionState) (IngestionState, error) {
	if cfg.RemoteClient == nil {
		return state, fmt.Errorf("ingestion: USE_REMOTE_AST=true but no remote AST client configured")
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return state, err
		}
	}

	requests := make([]astclient.FileRequest, len(state.RawFiles))
	for i, f := range state.RawFiles {
		requests[i] = astclient.FileRequest{Path: f.Path, Content: f.Content}
	}

	results, err := cfg.RemoteClient.ExtractBatch(ctx, requests)
	if err != nil {
		dlq.Push(state.RawFiles)
		retryAfter := 30
		return state, errs.IngestionDegraded(retryAfter, err)
	}

	for _, r := range results {
		conv := astclient.ConvertToExtractionModels(r, state.TenantID)
		for _, svc := range conv.Services {
			state.ExtractedNodes = append(state.ExtractedNodes, svc)
		}
		for _, call := range conv.Calls {
			state.ExtractedNodes = append(state.ExtractedNodes, call)
		}
	}
	return state, nil
}

func parseLocal(ctx context.Context, cfg ASTConfig, state IngestionState) (IngestionState, error) {
	if cfg.LocalExtractor == nil {
		return state, nil
	}
	workers := cfg.ResolveWorkerCount()
	obs.SetAttribute(ctx, "ast_pool_workers", workers)

	type outcome struct {
		result astclient.ExtractionResult
		err    error
	}

	outcomes := make([]outcome, len(state.RawFiles))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, f := range state.RawFiles {
		i, f := i, f
		wg.Add(1)
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Done()
			return state, ctx.Err()
		}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r, err := cfg.LocalExtractor(ctx, f, state.TenantID)
			outcomes[i] = outcome{result: r, err: err}
		}()
	}
	wg.Wait()

	for i, o := range outcomes {
		if o.err != nil {
			state.SkippedFiles = append(state.SkippedFiles, state.RawFiles[i].Path)
			continue
		}
		for _, svc := range o.result.Services {
			state.ExtractedNodes = append(state.ExtractedNodes, svc)
		}
		for _, call := range o.result.Calls {
			state.ExtractedNodes = append(state.ExtractedNodes, call)
		}
	}
	return state, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
