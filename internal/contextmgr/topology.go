package contextmgr

// candidateNodeIDs returns the (source,target) pair a candidate carries,
// or a single bare id when source/target are absent, matching
// context_manager.py's _candidate_node_ids.
func candidateNodeIDs(c Candidate) []string {
	var ids []string
	for _, key := range []string{"source", "target"} {
		if v, ok := c[key].(string); ok && v != "" {
			ids = append(ids, v)
		}
	}
	if len(ids) == 0 {
		if id, ok := c["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// IdentifyConnectedPaths groups candidates into connected components by
// DFS over the adjacency induced by shared node ids, returning each
// component as the candidates it contains in their original relative
// order.
func IdentifyConnectedPaths(candidates []Candidate) [][]Candidate {
	if len(candidates) == 0 {
		return nil
	}

	adjacency := make(map[string]map[int]struct{})
	for idx, c := range candidates {
		for _, nid := range candidateNodeIDs(c) {
			if adjacency[nid] == nil {
				adjacency[nid] = make(map[int]struct{})
			}
			adjacency[nid][idx] = struct{}{}
		}
	}

	visited := make(map[int]bool, len(candidates))
	var components [][]Candidate
	for idx := range candidates {
		if visited[idx] {
			continue
		}
		var componentIndices []int
		stack := []int{idx}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[current] {
				continue
			}
			visited[current] = true
			componentIndices = append(componentIndices, current)
			for _, nid := range candidateNodeIDs(candidates[current]) {
				for neighborIdx := range adjacency[nid] {
					if !visited[neighborIdx] {
						stack = append(stack, neighborIdx)
					}
				}
			}
		}
		sortInts(componentIndices)
		component := make([]Candidate, 0, len(componentIndices))
		for _, i := range componentIndices {
			component = append(component, candidates[i])
		}
		components = append(components, component)
	}
	return components
}

func sortInts(ints []int) {
	for i := 1; i < len(ints); i++ {
		for j := i; j > 0 && ints[j-1] > ints[j]; j-- {
			ints[j-1], ints[j] = ints[j], ints[j-1]
		}
	}
}

func pathMinScore(path []Candidate) float64 {
	if len(path) == 0 {
		return 0
	}
	min := candidateScore(path[0])
	for _, c := range path[1:] {
		if s := candidateScore(c); s < min {
			min = s
		}
	}
	return min
}

func pathTokenCost(path []Candidate) int {
	total := 0
	for _, c := range path {
		total += EstimateTokens(serializeCandidate(c))
	}
	return total
}

// buildComponentAdjacency builds an undirected adjacency list over the
// node ids a component's two-node (source,target) candidates connect,
// including isolated single-id nodes with an empty neighbor list.
// Neighbor order is insertion order, so PageRank/bridge detection stay
// deterministic across runs on the same input.
func buildComponentAdjacency(component []Candidate) map[string][]string {
	adj := make(map[string][]string)
	allNodes := make(map[string]struct{})
	seen := make(map[string]map[string]bool)
	for _, c := range component {
		ids := candidateNodeIDs(c)
		for _, id := range ids {
			allNodes[id] = struct{}{}
		}
		if len(ids) == 2 {
			a, b := ids[0], ids[1]
			if seen[a] == nil {
				seen[a] = make(map[string]bool)
			}
			if seen[b] == nil {
				seen[b] = make(map[string]bool)
			}
			if !seen[a][b] {
				adj[a] = append(adj[a], b)
				seen[a][b] = true
			}
			if !seen[b][a] {
				adj[b] = append(adj[b], a)
				seen[b][a] = true
			}
		}
	}
	for node := range allNodes {
		if _, ok := adj[node]; !ok {
			adj[node] = []string{}
		}
	}
	return adj
}
