package contextmgr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/R3E-Network/graphctl/internal/errs"
	"github.com/R3E-Network/graphctl/internal/firewall"
)

// DefaultMaxCharsPerValue mirrors format_context_for_prompt's
// max_chars_per_value default.
const DefaultMaxCharsPerValue = 500

func goRepr(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// truncateListValue renders items as a bracketed, comma-separated repr
// list, balancing how many elements are shown against maxChars and
// appending a "'... N more'" marker for anything dropped, ported from
// _truncate_list_value.
func truncateListValue(items []any, maxChars int) string {
	if len(items) == 0 {
		return "[]"
	}
	var resultItems []string
	remaining := len(items)
	overhead := 4
	budget := maxChars - overhead

	for _, item := range items {
		itemRepr := goRepr(item)
		separatorCost := 0
		if len(resultItems) > 0 {
			separatorCost = 2
		}
		summaryCost := len(fmt.Sprintf(", '... %d more'", remaining))
		reserved := 0
		if remaining > 1 {
			reserved = summaryCost
		}
		if budget-reserved < len(itemRepr)+separatorCost {
			break
		}
		resultItems = append(resultItems, itemRepr)
		budget -= len(itemRepr) + separatorCost
		remaining--
	}

	omitted := len(items) - len(resultItems)
	if omitted > 0 {
		resultItems = append(resultItems, fmt.Sprintf("'... %d more'", omitted))
	}
	return "[" + strings.Join(resultItems, ", ") + "]"
}

// truncateDictValue is truncateListValue's map counterpart, ported from
// _truncate_dict_value. Key order follows sorted keys for determinism
// (Python dict iteration is insertion-ordered; Go maps are not).
func truncateDictValue(mapping map[string]any, maxChars int) string {
	if len(mapping) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var resultPairs []string
	remaining := len(mapping)
	overhead := 4
	budget := maxChars - overhead

	for _, k := range keys {
		pairRepr := fmt.Sprintf("%s: %s", strconv.Quote(k), goRepr(mapping[k]))
		separatorCost := 0
		if len(resultPairs) > 0 {
			separatorCost = 2
		}
		summaryCost := len(fmt.Sprintf(", '... %d more': '...'", remaining))
		reserved := 0
		if remaining > 1 {
			reserved = summaryCost
		}
		if budget-reserved < len(pairRepr)+separatorCost {
			break
		}
		resultPairs = append(resultPairs, pairRepr)
		budget -= len(pairRepr) + separatorCost
		remaining--
	}

	omitted := len(mapping) - len(resultPairs)
	if omitted > 0 {
		resultPairs = append(resultPairs, fmt.Sprintf("'... %d more': '...'", omitted))
	}
	return "{" + strings.Join(resultPairs, ", ") + "}"
}

// truncateStringValue trims text to maxChars, preferring a word boundary
// near the cutoff over a hard mid-word cut, ported from
// _truncate_string_value.
func truncateStringValue(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cutoff := maxChars - 3
	if cutoff <= 0 {
		return text[:maxChars] + "..."
	}
	spaceIdx := strings.LastIndex(text[:cutoff+1], " ")
	if spaceIdx > cutoff/2 {
		return text[:spaceIdx] + "..."
	}
	return text[:cutoff] + "..."
}

// truncateValue renders value as a display string bounded by maxChars,
// ported from _truncate_value.
func truncateValue(value any, maxChars int) string {
	switch v := value.(type) {
	case []any:
		full := goRepr(v)
		if len(full) <= maxChars {
			return full
		}
		return truncateListValue(v, maxChars)
	case map[string]any:
		full := goRepr(v)
		if len(full) <= maxChars {
			return full
		}
		return truncateDictValue(v, maxChars)
	case string:
		if len(v) <= maxChars {
			return v
		}
		return truncateStringValue(v, maxChars)
	default:
		text := fmt.Sprintf("%v", v)
		if len(text) <= maxChars {
			return text
		}
		return text[:maxChars] + "..."
	}
}

// FormatContextForPrompt renders context into a single HMAC-delimited,
// firewall-sanitized prompt block: one numbered section per record,
// every value truncated to maxCharsPerValue and passed through both the
// content firewall and SanitizeSourceContent, every key passed through
// SanitizeSourceContent only, before being embedded. A maxCharsPerValue of 0 uses DefaultMaxCharsPerValue.
// Returns ContextBudgetExceeded if the assembled block exceeds
// tokenBudget (0 disables the check).
func FormatContextForPrompt(delimiter *firewall.HMACDelimiter, context []Candidate, maxCharsPerValue, tokenBudget int) (firewall.ContextBlock, error) {
	if len(context) == 0 {
		return firewall.ContextBlock{}, nil
	}
	if maxCharsPerValue <= 0 {
		maxCharsPerValue = DefaultMaxCharsPerValue
	}

	var lines []string
	for i, record := range context {
		lines = append(lines, fmt.Sprintf("[%d]", i+1))

		keys := make([]string, 0, len(record))
		for k := range record {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := record[key]
			sanitizedKey := firewall.SanitizeSourceContent(key, fmt.Sprintf("context_key_%d", i+1), 0)
			truncated := truncateValue(value, maxCharsPerValue)
			firewallCleaned := firewall.SanitizeGeneric(truncated)
			sanitizedValue := firewall.SanitizeSourceContent(firewallCleaned, fmt.Sprintf("context_field_%s", key), 0)
			lines = append(lines, fmt.Sprintf("  %s: %s", sanitizedKey, sanitizedValue))
		}
	}
	body := strings.Join(lines, "\n")

	if tokenBudget > 0 {
		if tokens := EstimateTokens(body); tokens > tokenBudget {
			return firewall.ContextBlock{}, errs.ContextBudgetExceeded(tokens, tokenBudget)
		}
	}

	return delimiter.Wrap(body), nil
}
