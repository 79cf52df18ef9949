// Package firewall sanitizes text crossing the prompt boundary in either
// direction: source file content ingested from a workspace, and user
// queries handed to the LLM-backed traversal/context layers. Grounded on
// prompt_sanitizer.py, composing infrastructure/security.SanitizeString's
// pattern-table idiom rather than duplicating it.
package firewall

import (
	"regexp"

	"github.com/R3E-Network/graphctl/infrastructure/security"
	"github.com/R3E-Network/graphctl/internal/errs"
)

// DefaultMaxQueryChars and DefaultMaxSourceChars bound how much of a
// single input the firewall will sanitize and forward, matching
// prompt_sanitizer.py's _DEFAULT_MAX_QUERY_CHARS/_DEFAULT_MAX_SOURCE_CHARS.
const (
	DefaultMaxQueryChars  = 4_000
	DefaultMaxSourceChars = 1_000_000
)

type patternReplacement struct {
	pattern     *regexp.Regexp
	replacement string
}

var injectionPatterns = []patternReplacement{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+(instructions?|rules?)`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?prior\s+(instructions?|rules?)`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?above\s+(instructions?|rules?)`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?previous\s+instructions?`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)system\s*prompt\s*:`), "[REDACTED]:"},
	{regexp.MustCompile(`(?im)^you\s+are\s+(an?\s+)?`), "[REDACTED] "},
	{regexp.MustCompile(`(?i)forget\s+(all\s+)?(your\s+)?instructions?`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:`), "[REDACTED]:"},
	{regexp.MustCompile(`(?i)override\s+(system|safety|security)\s+`), "[REDACTED] "},
	{regexp.MustCompile(`(?i)act\s+as\s+(if\s+)?you\s+(are|were)\s+`), "[REDACTED] "},
	{regexp.MustCompile(`(?i)pretend\s+(that\s+)?you\s+(are|were)\s+`), "[REDACTED] "},
}

var secretPatterns = []patternReplacement{
	{regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`ghp_[A-Za-z0-9]{36,}`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`ghs_[A-Za-z0-9]{36,}`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`(?s)-----BEGIN[A-Z ]*PRIVATE KEY-----.*?-----END[A-Z ]*PRIVATE KEY-----`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`(?s)-----BEGIN[A-Z ]*KEY-----.*?-----END[A-Z ]*KEY-----`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`['"](?:sk-|AKIA|ghp_|ghs_)[A-Za-z0-9+/=]{16,}['"]`), `"[REDACTED_SECRET]"`},
}

var xmlBoundaryPattern = regexp.MustCompile(`(?i)<\s*/?\s*(?:graph_context|user_query|system|assistant)\s*>`)

// graphctxTokenPattern matches any bare GRAPHCTX_<nonce>_<hmac> token
// inside untrusted content, not just one wrapped in angle brackets. This
// prevents an attacker-supplied record value from forging a delimiter
// that collides with the one HMACDelimiter mints for the current prompt
// (see SPEC_FULL.md section 4.2, "prevents collision forgery").
var graphctxTokenPattern = regexp.MustCompile(`GRAPHCTX_[A-Za-z0-9]+_[A-Za-z0-9]+`)

var controlCharPattern = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")

func stripControlChars(text string) string {
	return controlCharPattern.ReplaceAllString(text, "")
}

func stripXMLBoundaries(text string) string {
	text = xmlBoundaryPattern.ReplaceAllString(text, "")
	return graphctxTokenPattern.ReplaceAllString(text, "[REDACTED_TAG]")
}

func applyPatterns(text string, patterns []patternReplacement) string {
	for _, p := range patterns {
		text = p.pattern.ReplaceAllString(text, p.replacement)
	}
	return text
}

func truncate(text string, maxChars int) string {
	r := []rune(text)
	if len(r) <= maxChars {
		return text
	}
	return string(r[:maxChars])
}

// SanitizeQueryInput strips control characters, an attacker-supplied XML
// boundary tag, and known prompt-injection phrasings from a user query,
// then wraps the result in a delimiter the LLM-facing prompt template can
// trust, since every injected "</user_query>" was already stripped.
func SanitizeQueryInput(raw string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxQueryChars
	}
	cleaned := stripControlChars(raw)
	cleaned = truncate(cleaned, maxChars)
	cleaned = stripXMLBoundaries(cleaned)
	cleaned = applyPatterns(cleaned, injectionPatterns)
	return "<user_query>" + cleaned + "</user_query>"
}

// SanitizeGeneric applies the same injection-phrase/XML-boundary
// stripping SanitizeSourceContent uses to arbitrary already-formatted
// text (e.g. a context-manager value rendering) without the source's
// byte-budget or secret-pattern passes, for callers that have already
// truncated and serialized the value themselves.
func SanitizeGeneric(text string) string {
	if text == "" {
		return text
	}
	cleaned := stripControlChars(text)
	cleaned = stripXMLBoundaries(cleaned)
	cleaned = applyPatterns(cleaned, injectionPatterns)
	return cleaned
}

// SanitizeSourceContent strips control characters, XML boundary tags,
// secrets, and prompt-injection phrasings from source file content
// before it is embedded in extraction prompts or graph context.
// filePath is accepted for parity with the original signature (future
// per-extension handling) though it does not currently affect the
// output.
func SanitizeSourceContent(content, filePath string, maxChars int) string {
	_ = filePath
	if content == "" {
		return content
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxSourceChars
	}
	cleaned := stripControlChars(content)
	cleaned = truncate(cleaned, maxChars)
	cleaned = stripXMLBoundaries(cleaned)
	cleaned = applyPatterns(cleaned, secretPatterns)
	cleaned = applyPatterns(cleaned, injectionPatterns)
	return cleaned
}

// SanitizeForLogging composes infrastructure/security.SanitizeString so
// any source content or query text that ends up in a log line gets the
// same credential-redaction pass applied to every other log field.
func SanitizeForLogging(text string) string {
	return security.SanitizeString(text)
}

// DefaultMaxInputBytes bounds ingested source content before it ever
// reaches the firewall's regex passes. Inputs above this cap fail
// closed with SanitizationBudgetExceeded rather than being silently
// truncated, per SPEC_FULL.md section 4.2.
const DefaultMaxInputBytes = 2_000_000

// CheckInputBudget enforces max_input_bytes on untrusted content before
// sanitization runs. A maxBytes of 0 falls back to
// DefaultMaxInputBytes.
func CheckInputBudget(data []byte, maxBytes int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxInputBytes
	}
	if len(data) > maxBytes {
		return errs.SanitizationBudgetExceeded(len(data), maxBytes)
	}
	return nil
}

// SanitizeSourceContentBudgeted is SanitizeSourceContent with the
// max_input_bytes guard applied first, so oversized ingested source
// fails closed instead of being silently truncated by maxChars.
func SanitizeSourceContentBudgeted(content, filePath string, maxChars, maxInputBytes int) (string, error) {
	if err := CheckInputBudget([]byte(content), maxInputBytes); err != nil {
		return "", err
	}
	return SanitizeSourceContent(content, filePath, maxChars), nil
}
