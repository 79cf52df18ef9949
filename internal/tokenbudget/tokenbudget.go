// Package tokenbudget provides token-accurate cost estimation for
// everything the traversal engine and context manager assemble into a
// prompt, plus the TokenBudget value carried through both. Grounded on
// token_counter.py's count_tokens/estimate_tokens_fast, backed by
// github.com/pkoukk/tiktoken-go instead of Python's tiktoken, with the
// same fall back to a length-based heuristic when the encoder is
// unavailable.
package tokenbudget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
)

// DefaultEncodingName mirrors token_counter.py's _DEFAULT_ENCODING_NAME.
const DefaultEncodingName = "cl100k_base"

var (
	encodingOnce  sync.Once
	encodingCache *tiktoken.Tiktoken
)

func getEncoding(name string) *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(name)
		if err != nil {
			logging.Default().Warn(nil, "tiktoken encoding unavailable, falling back to heuristic token counting", map[string]interface{}{
				"encoding": name,
				"error":    err.Error(),
			})
			return
		}
		encodingCache = enc
	})
	return encodingCache
}

// CountTokens returns the encoder's exact token count for text, falling
// back to EstimateTokensFast when the tiktoken encoding table could not
// be loaded (e.g. offline environments with no cached BPE ranks).
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := getEncoding(DefaultEncodingName); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateTokensFast(text)
}

// EstimateTokensFast is the cheap max(1, len/4) heuristic used inside
// tight loops (e.g. per-hop streaming caps) where invoking the real
// tokenizer would dominate runtime.
func EstimateTokensFast(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Budget carries the per-request context ceilings the context manager
// and traversal engine enforce. Grounded on context_manager.py's
// TokenBudget dataclass.
type Budget struct {
	MaxContextTokens int
	MaxResults       int
}

// DefaultMaxContextTokens and DefaultMaxResults mirror
// context_manager.py's TokenBudget defaults.
const (
	DefaultMaxContextTokens = 32_000
	DefaultMaxResults       = 50
)

// NewDefaultBudget returns the spec's default ceilings.
func NewDefaultBudget() Budget {
	return Budget{MaxContextTokens: DefaultMaxContextTokens, MaxResults: DefaultMaxResults}
}

// Fits reports whether tokenCount can still be admitted given
// alreadySpent tokens.
func (b Budget) Fits(alreadySpent, tokenCount int) bool {
	return alreadySpent+tokenCount <= b.MaxContextTokens
}

// Remaining returns the unspent token allowance, never negative.
func (b Budget) Remaining(alreadySpent int) int {
	r := b.MaxContextTokens - alreadySpent
	if r < 0 {
		return 0
	}
	return r
}

// WithCeilings returns a sub-budget scaled down to maxTokens/maxResults,
// used when a connected component must be truncated within the
// remainder of an outer budget.
func (b Budget) WithCeilings(maxTokens, maxResults int) Budget {
	return Budget{MaxContextTokens: maxTokens, MaxResults: maxResults}
}
