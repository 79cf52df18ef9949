package traversal

import (
	"context"
	"math"
	"sort"

	"github.com/R3E-Network/graphctl/internal/tenant"
	"github.com/R3E-Network/graphctl/internal/tokenbudget"
)

// batchedBFS runs the BATCHED_BFS strategy: cooperative multi-hop
// expansion that drains+dedups the frontier, splits it into
// normal-degree and supernode ids via one batched degree check, expands
// each group with its own query shape, merges and beam-truncates the
// result, and stops on empty frontier / visited cap / hop budget / token
// budget. Grounded on agentic_traversal.py's TraversalAgent.run loop.
func batchedBFS(ctx context.Context, reader GraphReader, req request) ([]Result, error) {
	state := NewTraversalState(req.startNodeID, req.cfg.MaxHops, req.cfg.TokenBudget.MaxContextTokens)
	var accumulated []Result

	for state.ShouldContinue(req.cfg.MaxVisited) {
		select {
		case <-ctx.Done():
			// Best-effort semantics: return whatever has accumulated so
			// far rather than discarding it on cancellation.
			return finalize(accumulated), nil
		default:
		}

		frontier := state.drainFrontier(state.Frontier)
		if len(frontier) == 0 {
			break
		}
		for _, id := range frontier {
			state.VisitedNodes[id] = struct{}{}
		}

		degrees, err := batchCheckDegrees(ctx, reader, req, frontier)
		if err != nil {
			return finalize(accumulated), classifyDriverError(err)
		}

		var normalIDs, supernodeIDs []string
		for _, id := range frontier {
			if degrees[id] > float64(req.cfg.MaxNodeDegree) {
				supernodeIDs = append(supernodeIDs, id)
			} else {
				normalIDs = append(normalIDs, id)
			}
		}

		var hopResults []Result
		if len(normalIDs) > 0 {
			normalResults, err := batchedHop(ctx, reader, req, normalIDs)
			if err != nil {
				return finalize(accumulated), classifyDriverError(err)
			}
			hopResults = append(hopResults, normalResults...)
		}
		for _, id := range supernodeIDs {
			sampled, err := batchedSupernodeExpansion(ctx, reader, req, id)
			if err != nil {
				return finalize(accumulated), classifyDriverError(err)
			}
			hopResults = append(hopResults, sampled...)
		}

		hopResults = beamTruncate(hopResults, req.cfg.BeamWidth)
		if len(hopResults) == 0 {
			break
		}

		for _, r := range hopResults {
			state.CurrentTokens += tokenbudget.EstimateTokensFast(r.NodeID + r.Name + r.Label)
		}

		accumulated = append(accumulated, hopResults...)

		nextFrontier := make([]string, 0, len(hopResults))
		for _, r := range hopResults {
			nextFrontier = append(nextFrontier, r.NodeID)
		}
		state.Frontier = state.drainFrontier(nextFrontier)
		state.RemainingHops--
	}

	return finalize(accumulated), nil
}

// finalize dedupes accumulated results by node id (keeping the
// highest-scored occurrence) and sorts by score descending.
func finalize(accumulated []Result) []Result {
	best := make(map[string]Result, len(accumulated))
	for _, r := range accumulated {
		existing, ok := best[r.NodeID]
		if !ok || r.Score > existing.Score {
			best[r.NodeID] = r
		}
	}
	out := make([]Result, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func batchCheckDegrees(ctx context.Context, reader GraphReader, req request, ids []string) (map[string]float64, error) {
	query := tenant.BuildBatchCheckDegrees()
	params := withParams(req, map[string]any{"node_ids": ids})
	rows, err := executeRead(ctx, reader, query, params)
	if err != nil {
		return nil, err
	}
	degrees := make(map[string]float64, len(rows))
	for _, row := range rows {
		degrees[stringField(row, "node_id")] = floatField(row, "degree")
	}
	return degrees, nil
}

// batchedHop expands every id in frontierIDs in a single UNWIND query,
// with a per-source cap (so one higher-degree source in an otherwise
// normal-degree frontier cannot dominate) and a global LIMIT.
func batchedHop(ctx context.Context, reader GraphReader, req request, frontierIDs []string) ([]Result, error) {
	query := tenant.BuildTraversalBatchedNeighbor(req.cfg.PerSourceFrontierCap, req.cfg.SkipACL)
	params := withParams(req, map[string]any{
		"frontier_ids": frontierIDs,
		"limit":        req.cfg.BeamWidth * 4,
	})
	rows, err := executeRead(ctx, reader, query, params)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		r := Result{
			NodeID:   stringField(row, "target_id"),
			Name:     stringField(row, "target_name"),
			Label:    stringField(row, "target_label"),
			RelType:  stringField(row, "rel_type"),
			SourceID: stringField(row, "source_id"),
			PageRank: floatField(row, "pagerank"),
			Degree:   floatField(row, "degree"),
		}
		r.Score = compositeScore(r.PageRank, r.Degree)
		results = append(results, r)
	}
	return results, nil
}

// batchedSupernodeExpansion samples up to cfg.SampleSize neighbors of a
// supernode, either deterministically (PageRank DESC, degree DESC, id
// ASC — the query's own ORDER BY, never rand()) or, when a query
// embedding is configured, semantically by cosine similarity against it
// with a similarity-threshold cutoff.
func batchedSupernodeExpansion(ctx context.Context, reader GraphReader, req request, supernodeID string) ([]Result, error) {
	query := tenant.BuildTraversalSampledNeighborCapped(req.cfg.SkipACL)
	params := withParams(req, map[string]any{
		"source_id":   supernodeID,
		"sample_size": req.cfg.SampleSize,
	})
	rows, err := executeRead(ctx, reader, query, params)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		r := Result{
			NodeID:   stringField(row, "target_id"),
			Name:     stringField(row, "target_name"),
			Label:    stringField(row, "target_label"),
			RelType:  stringField(row, "rel_type"),
			SourceID: supernodeID,
			PageRank: floatField(row, "pagerank"),
			Degree:   floatField(row, "degree"),
		}
		r.Score = compositeScore(r.PageRank, r.Degree)
		results = append(results, r)

		if len(req.cfg.QueryEmbedding) > 0 {
			embedding := floatSliceField(row, "embedding")
			similarity := cosineSimilarity(req.cfg.QueryEmbedding, embedding)
			results[len(results)-1].Score = similarity
		}
	}

	if len(req.cfg.QueryEmbedding) > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= req.cfg.SimilarityThreshold {
				filtered = append(filtered, r)
			}
		}
		results = filtered
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	}

	if len(results) > req.cfg.SampleSize {
		results = results[:req.cfg.SampleSize]
	}
	return results, nil
}

func floatSliceField(row map[string]any, key string) []float64 {
	raw, _ := row[key].([]any)
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, n)
		case int64:
			out = append(out, float64(n))
		}
	}
	return out
}

// cosineSimilarity returns the cosine similarity of a and b, 0 if
// either is empty/zero-length or their dimensions disagree.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
