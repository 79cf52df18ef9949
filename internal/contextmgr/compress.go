package contextmgr

import (
	"sort"

	"github.com/R3E-Network/graphctl/internal/tokenbudget"
)

// truncateComponentByPageRank greedily admits a component's candidates
// in PageRank+bridge-boosted score order, refusing to admit a two-node
// candidate whose endpoints are both absent from the already-included
// set (so the result stays a single connected fragment instead of
// scattered disconnected edges) except for the very first admission.
func truncateComponentByPageRank(component []Candidate, tokenBudget, maxResults int) []Candidate {
	adjacency := buildComponentAdjacency(component)
	scored := scoreCandidatesWithBridgeBoost(component, adjacency)

	result := make([]Candidate, 0, len(component))
	includedNodes := make(map[string]bool)
	totalTokens := 0

	for _, sc := range scored {
		cost := EstimateTokens(serializeCandidate(sc.candidate))
		if totalTokens+cost > tokenBudget {
			continue
		}
		if len(result) >= maxResults {
			break
		}

		ids := candidateNodeIDs(sc.candidate)
		if len(result) > 0 && len(ids) == 2 {
			if !includedNodes[ids[0]] && !includedNodes[ids[1]] {
				continue
			}
		}

		result = append(result, sc.candidate)
		totalTokens += cost
		for _, id := range ids {
			includedNodes[id] = true
		}
	}

	return result
}

func countCrossCommunityEdges(component []Candidate, nodeToCommunity map[string]string) int {
	count := 0
	for _, c := range component {
		ids := candidateNodeIDs(c)
		if len(ids) != 2 {
			continue
		}
		a, aok := nodeToCommunity[ids[0]]
		b, bok := nodeToCommunity[ids[1]]
		if aok && bok && a != "" && b != "" && a != b {
			count++
		}
	}
	return count
}

func collectBridgeEdgesForCommunity(component []Candidate, members map[string]bool, nodeToCommunity map[string]string) []map[string]string {
	var edges []map[string]string
	for _, c := range component {
		ids := candidateNodeIDs(c)
		if len(ids) != 2 {
			continue
		}
		srcIn, tgtIn := members[ids[0]], members[ids[1]]
		switch {
		case srcIn && !tgtIn:
			edges = append(edges, map[string]string{"node": ids[0], "connects_to": communityOrUnknown(nodeToCommunity, ids[1])})
		case tgtIn && !srcIn:
			edges = append(edges, map[string]string{"node": ids[1], "connects_to": communityOrUnknown(nodeToCommunity, ids[0])})
		}
	}
	return edges
}

func communityOrUnknown(nodeToCommunity map[string]string, node string) string {
	if c, ok := nodeToCommunity[node]; ok {
		return c
	}
	return "unknown"
}

// CompressComponentToSummaries compresses a connected component down to
// per-community summaries (community_id, member_count, sorted members,
// cross_community_edge_count, score = max member score, and a bounded
// bridge_edges list when present) once the component's topology splits
// into at least two communities; otherwise it falls back to
// PageRank+bridge truncation of the raw candidates.
func CompressComponentToSummaries(component []Candidate, budget tokenbudget.Budget) []Candidate {
	if len(component) == 0 {
		return nil
	}

	adjacency := buildComponentAdjacency(component)
	if len(adjacency) < 2 {
		return truncateComponentByPageRank(component, budget.MaxContextTokens, budget.MaxResults)
	}

	partition := partitionCommunities(adjacency)
	if len(partition.Communities) <= 1 {
		return truncateComponentByPageRank(component, budget.MaxContextTokens, budget.MaxResults)
	}

	crossEdges := countCrossCommunityEdges(component, partition.NodeToCommunity)

	summaries := make([]Candidate, 0, len(partition.Communities))
	totalTokens := 0

	for _, comm := range partition.Communities {
		bridgeEdges := collectBridgeEdgesForCommunity(component, comm.Members, partition.NodeToCommunity)

		members := make([]string, 0, len(comm.Members))
		for m := range comm.Members {
			members = append(members, m)
		}
		sort.Strings(members)

		maxScore := 0.0
		first := true
		for _, c := range component {
			ids := candidateNodeIDs(c)
			touches := false
			for _, id := range ids {
				if comm.Members[id] {
					touches = true
					break
				}
			}
			if !touches {
				continue
			}
			if s := candidateScore(c); first || s > maxScore {
				maxScore = s
				first = false
			}
		}

		summary := Candidate{
			"community_id":               comm.ID,
			"member_count":               len(comm.Members),
			"members":                    members,
			"cross_community_edge_count": crossEdges,
			"score":                      maxScore,
		}
		baseCost := EstimateTokens(serializeCandidate(summary))
		if totalTokens+baseCost > budget.MaxContextTokens {
			break
		}
		if len(bridgeEdges) > 0 {
			enriched := Candidate{}
			for k, v := range summary {
				enriched[k] = v
			}
			enriched["bridge_edges"] = bridgeEdges
			enrichedCost := EstimateTokens(serializeCandidate(enriched))
			if totalTokens+enrichedCost <= budget.MaxContextTokens {
				summary = enriched
				baseCost = enrichedCost
			}
		}
		if len(summaries) >= budget.MaxResults {
			break
		}
		summaries = append(summaries, summary)
		totalTokens += baseCost
	}

	return summaries
}
