package ingestion

import (
	"context"
	"time"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/internal/errs"
	"github.com/R3E-Network/graphctl/internal/graphrepo"
	"github.com/R3E-Network/graphctl/internal/obs"
	"github.com/R3E-Network/graphctl/internal/outbox"
	"github.com/R3E-Network/graphctl/internal/semcache"
)

// DefaultStaleEdgeWindow is the freshness window PostCommit uses when
// pruning edges not touched by the current ingestion run (invariant I5).
const DefaultStaleEdgeWindow = 24 * time.Hour

// DeploymentMode mirrors the DEPLOYMENT_MODE env var: it governs
// PostCommit's fallback behavior when no durable outbox is configured.
type DeploymentMode string

const (
	ModeDevelopment DeploymentMode = "development"
	ModeProduction  DeploymentMode = "production"
)

// PostCommitConfig wires PostCommit's collaborators. Durable may be nil
// (development without a graph-backed outbox configured); Memory is the
// development fallback and is also always present as the final drain
// target.
type PostCommitConfig struct {
	Repo       graphrepo.Repository
	Durable    *outbox.DurableOutbox
	Memory     *outbox.MemoryOutbox
	Cache      *semcache.Cache
	Drainer    *outbox.PeriodicVectorDrainer
	Mode       DeploymentMode
	Collection string
	MaxAge     time.Duration
}

// PostCommit is the pipeline's final DAG node, run only after a
// successful commit: it prunes stale edges, enqueues a VectorSyncEvent
// for downstream vector-store cleanup, invalidates the semantic cache
// by the exact node ids touched (falling back to a tenant-wide wipe
// with a WARN log when node ids are unknown), and kicks the vector
// outbox drain without blocking the caller.
func PostCommit(cfg PostCommitConfig, logger *logging.Logger) func(ctx context.Context, state IngestionState) (IngestionState, error) {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultStaleEdgeWindow
	}
	if cfg.Collection == "" {
		cfg.Collection = "services"
	}
	return func(ctx context.Context, state IngestionState) (IngestionState, error) {
		return obs.SpanValue(ctx, "ingestion.post_commit", func(ctx context.Context) (IngestionState, error) {
			if state.CommitStatus != CommitStatusOK {
				return state, nil
			}

			_, tombstonedIDs, err := cfg.Repo.PruneStaleEdges(ctx, state.IngestionID, cfg.MaxAge)
			if err != nil {
				logger.Warn(ctx, "post-commit prune_stale_edges failed", map[string]interface{}{"error": err.Error()})
			}
			state.TombstonedNodeIDs = tombstonedIDs

			if err := enqueueVectorSync(cfg, state.IngestionID, tombstonedIDs); err != nil {
				return state, err
			}

			invalidateCache(ctx, cfg.Cache, state.TenantID, tombstonedIDs, logger)

			if cfg.Drainer != nil {
				cfg.Drainer.Notify()
			}
			return state, nil
		})
	}
}

// enqueueVectorSync routes the pruned-id cleanup event to the durable
// outbox when available; in production with no durable outbox
// configured it fails closed (an orchestrator that can silently lose
// vector-cleanup obligations violates I5); in development it falls back
// to the in-memory outbox.
func enqueueVectorSync(cfg PostCommitConfig, ingestionID string, prunedIDs []string) error {
	if len(prunedIDs) == 0 {
		return nil
	}
	event := outbox.NewVectorSyncEvent(cfg.Collection, prunedIDs)

	if cfg.Durable != nil {
		cfg.Durable.Enqueue(event)
		return nil
	}
	if cfg.Mode == ModeProduction {
		return errs.IngestRejection("no durable vector-sync outbox configured in production mode")
	}
	if cfg.Memory != nil {
		cfg.Memory.Enqueue(event)
	}
	return nil
}

func invalidateCache(ctx context.Context, cache *semcache.Cache, tenantID string, nodeIDs []string, logger *logging.Logger) {
	if cache == nil {
		return
	}
	if len(nodeIDs) > 0 {
		cache.InvalidateByNodes(ctx, tenantID, nodeIDs)
		return
	}
	logger.Warn(ctx, "post-commit cache invalidation falling back to tenant-wide wipe: touched node ids unknown", map[string]interface{}{"tenant_id": tenantID})
	cache.InvalidateTenant(ctx, tenantID)
}
