package traversal

import (
	"context"

	"github.com/R3E-Network/graphctl/internal/tenant"
)

// boundedCypher runs the BOUNDED_CYPHER strategy: a single variable
// length path statement bounded by maxHops/maxNodes, ACL- and
// tombstone-filtered, ordered deterministically.
func boundedCypher(ctx context.Context, reader GraphReader, req request) ([]Result, error) {
	query := tenant.BuildTraversalBoundedPath(req.cfg.MaxHops, req.cfg.SkipACL)
	params := withParams(req, map[string]any{
		"source_id": req.startNodeID,
		"max_nodes": req.cfg.MaxNodes,
	})

	rows, err := executeRead(ctx, reader, query, params)
	if err != nil {
		return nil, classifyDriverError(err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			NodeID:   stringField(row, "target_id"),
			Name:     stringField(row, "target_name"),
			Label:    stringField(row, "target_label"),
			PageRank: floatField(row, "pagerank"),
			Degree:   floatField(row, "degree"),
		})
	}
	for i := range results {
		results[i].Score = compositeScore(results[i].PageRank, results[i].Degree)
	}
	return results, nil
}

// withParams merges req's ACL params with extra, extra taking priority.
func withParams(req request, extra map[string]any) map[string]any {
	out := make(map[string]any, len(req.aclParams)+len(extra))
	for k, v := range req.aclParams {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
