package ingestion

import (
	"context"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/internal/graphrepo"
	"github.com/R3E-Network/graphctl/internal/lock"
	"github.com/R3E-Network/graphctl/internal/obs"
)

// CommitToNeo4j is the pipeline's commit node: it acquires the
// per-(tenant, namespace) distributed lock (section 4.5) so concurrent
// ingests for the same tenant+namespace serialize while distinct
// tenants/namespaces proceed in parallel, then writes the accumulated
// entities through the graph write layer. On failure it sets an ERROR
// span status, records the exception, logs at ERROR, and sets
// CommitStatus to failed WITHOUT running any post-commit side effect —
// cache invalidation in particular must never run on a failed commit
// (section 8, scenario S3).
func CommitToNeo4j(repo graphrepo.Repository, locker *lock.Locker, logger *logging.Logger) func(ctx context.Context, state IngestionState) (IngestionState, error) {
	return func(ctx context.Context, state IngestionState) (IngestionState, error) {
		return obs.SpanValue(ctx, "ingestion.commit_to_neo4j", func(ctx context.Context) (IngestionState, error) {
			if len(state.ExtractedNodes) == 0 {
				state.CommitStatus = CommitStatusSkipped
				return state, nil
			}

			lockKey := lock.IngestionLockKey(state.TenantID, state.Namespace)
			commitErr := locker.WithLock(ctx, lockKey, func(ctx context.Context) error {
				return repo.CommitTopology(ctx, state.ExtractedNodes)
			})
			if commitErr != nil {
				state.CommitStatus = CommitStatusFailed
				logger.Error(ctx, "ingestion commit failed", commitErr, map[string]interface{}{
					"tenant_id": state.TenantID,
					"namespace": state.Namespace,
				})
				return state, commitErr
			}

			state.CommitStatus = CommitStatusOK
			return state, nil
		})
	}
}
