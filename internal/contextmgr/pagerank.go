package contextmgr

import "sort"

// PageRankIterations, PageRankDamping and BridgeScoreMultiplier mirror
// context_manager.py's _PAGERANK_ITERATIONS/_PAGERANK_DAMPING/
// _BRIDGE_SCORE_MULTIPLIER.
const (
	PageRankIterations    = 10
	PageRankDamping       = 0.85
	BridgeScoreMultiplier = 1.5
)

// sortedNodes returns adjacency's keys in a stable, deterministic order
// so PageRank iteration order (and therefore floating point rounding)
// is reproducible across runs.
func sortedNodes(adjacency map[string][]string) []string {
	nodes := make([]string, 0, len(adjacency))
	for n := range adjacency {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// PageRankScores runs the standard power-iteration PageRank over a
// symmetric adjacency list for iterations rounds with the given damping
// factor.
func PageRankScores(adjacency map[string][]string, iterations int, damping float64) map[string]float64 {
	if len(adjacency) == 0 {
		return map[string]float64{}
	}
	nodes := sortedNodes(adjacency)
	n := float64(len(nodes))

	scores := make(map[string]float64, len(nodes))
	for _, node := range nodes {
		scores[node] = 1.0 / n
	}

	for i := 0; i < iterations; i++ {
		newScores := make(map[string]float64, len(nodes))
		for _, node := range nodes {
			rank := (1.0 - damping) / n
			for _, src := range nodes {
				neighbors := adjacency[src]
				if len(neighbors) == 0 {
					continue
				}
				for _, nb := range neighbors {
					if nb == node {
						rank += damping * scores[src] / float64(len(neighbors))
						break
					}
				}
			}
			newScores[node] = rank
		}
		scores = newScores
	}
	return scores
}

// identifyBridgeNodes finds every articulation point in adjacency via a
// low-link DFS, matching context_manager.py's _identify_bridge_nodes
// (the term "bridge" there names articulation *nodes*, not edges).
func identifyBridgeNodes(adjacency map[string][]string) map[string]bool {
	bridges := make(map[string]bool)
	if len(adjacency) == 0 {
		return bridges
	}

	disc := make(map[string]int)
	low := make(map[string]int)
	parent := make(map[string]string)
	hasParent := make(map[string]bool)
	timer := 0

	nodes := sortedNodes(adjacency)

	var dfs func(u string)
	dfs = func(u string) {
		disc[u] = timer
		low[u] = timer
		timer++
		childCount := 0

		for _, v := range adjacency[u] {
			if _, seen := disc[v]; !seen {
				childCount++
				parent[v] = u
				hasParent[v] = true
				dfs(v)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if !hasParent[u] && childCount > 1 {
					bridges[u] = true
				}
				if hasParent[u] && low[v] >= disc[u] {
					bridges[u] = true
				}
			} else if !(hasParent[u] && parent[u] == v) {
				if disc[v] < low[u] {
					low[u] = disc[v]
				}
			}
		}
	}

	for _, node := range nodes {
		if _, seen := disc[node]; !seen {
			dfs(node)
		}
	}

	return bridges
}

// scoredCandidate pairs a candidate with its PageRank/bridge-boosted
// score for sorting.
type scoredCandidate struct {
	score     float64
	candidate Candidate
}

// scoreCandidatesWithBridgeBoost scores every candidate in component by
// the max PageRank of its endpoint node ids, boosted to
// BridgeScoreMultiplier*max(PageRank) when any endpoint is an
// articulation point, and sorts descending.
func scoreCandidatesWithBridgeBoost(component []Candidate, adjacency map[string][]string) []scoredCandidate {
	prScores := PageRankScores(adjacency, PageRankIterations, PageRankDamping)
	bridgeNodes := identifyBridgeNodes(adjacency)

	maxPR := 1.0
	first := true
	for _, s := range prScores {
		if first || s > maxPR {
			maxPR = s
			first = false
		}
	}
	if len(prScores) == 0 {
		maxPR = 1.0
	}
	bridgeBoost := maxPR * BridgeScoreMultiplier

	scored := make([]scoredCandidate, 0, len(component))
	for _, c := range component {
		ids := candidateNodeIDs(c)
		score := 0.0
		hasAny := false
		for _, nid := range ids {
			if s, ok := prScores[nid]; ok {
				if !hasAny || s > score {
					score = s
					hasAny = true
				}
			}
		}
		isBridge := false
		for _, nid := range ids {
			if bridgeNodes[nid] {
				isBridge = true
				break
			}
		}
		if isBridge && bridgeBoost > score {
			score = bridgeBoost
		}
		scored = append(scored, scoredCandidate{score: score, candidate: c})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return scored
}
