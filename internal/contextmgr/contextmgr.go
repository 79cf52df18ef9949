// Package contextmgr assembles traversal results into a ranked,
// token-budgeted, prompt-safe context block: relevance ranking,
// connected-component topology awareness, PageRank/bridge-aware
// truncation, community-summary compression for oversized components,
// and firewall-sanitized HMAC-delimited rendering. Grounded on
// context_manager.py.
package contextmgr

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/R3E-Network/graphctl/internal/tokenbudget"
)

// Candidate is one record the traversal engine or a canned template
// returned — a generic row shape mirroring Python's Dict[str, Any].
type Candidate map[string]any

// Block is a fully rendered, delimiter-wrapped context ready to embed
// in a prompt.
type Block struct {
	Content   string
	Delimiter string
}

// EstimateTokens is the "at least 1 token" wrapper context_manager.py's
// estimate_tokens applies around token_counter.count_tokens.
func EstimateTokens(text string) int {
	n := tokenbudget.CountTokens(text)
	if n < 1 {
		return 1
	}
	return n
}

func serializeCandidate(c Candidate) string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(c))
	}
	return string(b)
}

func candidateScore(c Candidate) float64 {
	switch v := c["score"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// RankByRelevance sorts candidates by score descending when at least
// one carries a score field; otherwise it returns the input unchanged
// (stable, so ties preserve traversal order).
func RankByRelevance(candidates []Candidate) []Candidate {
	hasScores := false
	for _, c := range candidates {
		if _, ok := c["score"]; ok {
			hasScores = true
			break
		}
	}
	if !hasScores {
		return candidates
	}
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return candidateScore(ranked[i]) > candidateScore(ranked[j])
	})
	return ranked
}

// TruncateContext ranks candidates, caps them at budget.MaxResults, and
// greedily admits them until the next candidate would exceed
// budget.MaxContextTokens.
func TruncateContext(candidates []Candidate, budget tokenbudget.Budget) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	ranked := RankByRelevance(candidates)
	if len(ranked) > budget.MaxResults {
		ranked = ranked[:budget.MaxResults]
	}

	result := make([]Candidate, 0, len(ranked))
	totalTokens := 0
	for _, c := range ranked {
		cost := EstimateTokens(serializeCandidate(c))
		if totalTokens+cost > budget.MaxContextTokens {
			break
		}
		result = append(result, c)
		totalTokens += cost
	}
	return result
}
