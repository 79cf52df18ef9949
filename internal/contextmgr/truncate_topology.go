package contextmgr

import (
	"sort"

	"github.com/R3E-Network/graphctl/internal/tokenbudget"
)

// TruncateContextTopology is truncate_context's topology-aware sibling:
// it groups candidates into connected paths, prioritizes multi-node
// paths by their weakest member's score, compresses any path that would
// blow the remaining budget (community summaries, falling back to
// PageRank+bridge truncation), then backfills isolated single-node
// candidates with whatever budget remains.
func TruncateContextTopology(candidates []Candidate, budget tokenbudget.Budget) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	paths := IdentifyConnectedPaths(candidates)

	var isolated, connected [][]Candidate
	for _, p := range paths {
		if len(p) == 1 {
			isolated = append(isolated, p)
		} else {
			connected = append(connected, p)
		}
	}

	sort.SliceStable(connected, func(i, j int) bool { return pathMinScore(connected[i]) > pathMinScore(connected[j]) })
	sort.SliceStable(isolated, func(i, j int) bool { return candidateScore(isolated[i][0]) > candidateScore(isolated[j][0]) })

	var result []Candidate
	totalTokens := 0

	for _, path := range connected {
		cost := pathTokenCost(path)
		remainingBudget := budget.MaxContextTokens - totalTokens
		remainingResults := budget.MaxResults - len(result)
		if remainingResults <= 0 {
			break
		}
		switch {
		case cost <= remainingBudget && len(path) <= remainingResults:
			result = append(result, path...)
			totalTokens += cost
		case remainingBudget > 0:
			subBudget := tokenbudget.Budget{MaxContextTokens: remainingBudget, MaxResults: remainingResults}
			compressed := CompressComponentToSummaries(path, subBudget)
			if len(compressed) > 0 {
				result = append(result, compressed...)
				totalTokens += pathTokenCost(compressed)
			} else {
				partial := truncateComponentByPageRank(path, remainingBudget, remainingResults)
				result = append(result, partial...)
				totalTokens += pathTokenCost(partial)
			}
		}
	}

	for _, path := range isolated {
		cost := pathTokenCost(path)
		if totalTokens+cost > budget.MaxContextTokens {
			break
		}
		if len(result) >= budget.MaxResults {
			break
		}
		result = append(result, path...)
		totalTokens += cost
	}

	return result
}
