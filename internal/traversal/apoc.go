package traversal

import (
	"context"

	"github.com/R3E-Network/graphctl/internal/tenant"
)

// apocExpansion runs the APOC strategy: two queries (nodes, edges) via
// apoc.path.subgraphNodes/subgraphAll, both tenant+ACL scoped with
// tombstoned edges excluded. Duplicate edges collapse and edges whose
// endpoints are not present in the node set are dropped.
func apocExpansion(ctx context.Context, reader GraphReader, req request) ([]Result, error) {
	nodesQuery := tenant.BuildAPOCNodesQuery(req.cfg.MaxHops, req.cfg.SkipACL)
	edgesQuery := tenant.BuildAPOCEdgesQuery(req.cfg.MaxHops)
	params := withParams(req, map[string]any{
		"source_id":    req.startNodeID,
		"max_nodes":    req.cfg.MaxNodes,
		"rel_filter":   req.cfg.RelationshipFilter,
		"label_filter": req.cfg.LabelFilter,
	})

	nodeRows, err := executeRead(ctx, reader, nodesQuery, params)
	if err != nil {
		return nil, classifyDriverError(err)
	}

	nodeSet := make(map[string]Result, len(nodeRows))
	for _, row := range nodeRows {
		id := stringField(row, "target_id")
		nodeSet[id] = Result{
			NodeID:   id,
			Name:     stringField(row, "target_name"),
			Label:    stringField(row, "target_label"),
			PageRank: floatField(row, "pagerank"),
			Degree:   floatField(row, "degree"),
		}
	}

	edgeRows, err := executeRead(ctx, reader, edgesQuery, params)
	if err != nil {
		return nil, classifyDriverError(err)
	}

	seenEdges := make(map[string]bool, len(edgeRows))
	for _, row := range edgeRows {
		sourceID := stringField(row, "source_id")
		targetID := stringField(row, "target_id")
		relType := stringField(row, "rel_type")
		if _, ok := nodeSet[sourceID]; !ok {
			continue
		}
		target, ok := nodeSet[targetID]
		if !ok {
			continue
		}
		edgeKey := sourceID + "|" + targetID + "|" + relType
		if seenEdges[edgeKey] {
			continue
		}
		seenEdges[edgeKey] = true
		target.RelType = relType
		target.SourceID = sourceID
		nodeSet[targetID] = target
	}

	results := make([]Result, 0, len(nodeSet))
	for _, r := range nodeSet {
		r.Score = compositeScore(r.PageRank, r.Degree)
		results = append(results, r)
	}
	deterministicOrder(results)
	if len(results) > req.cfg.MaxNodes {
		results = results[:req.cfg.MaxNodes]
	}
	return results, nil
}
