package firewall

import "math"

// minEntropyGuardLength is the shortest input the structural entropy
// guard scores; shorter strings (most normal identifiers, queries, and
// infrastructure names) always score 0 regardless of their character
// distribution, matching P7's "base64-encoded inputs (N >= 200)"
// framing.
const minEntropyGuardLength = 200

// entropyThreshold is the Shannon-entropy-per-byte cutoff above which
// text is flagged as structurally suspicious (high-entropy blobs like
// base64-encoded payloads smuggled inside an otherwise plain-text
// field). English prose and source code (about 4.3-4.8) sit below this;
// base64-encoded data (about 5.8 for 200 random bytes) sits above it.
// Hex-encoded data never exceeds 4 bits per byte and is not flagged.
const entropyThreshold = 5.0

// ShannonEntropy returns the Shannon entropy, in bits per byte, of text.
func ShannonEntropy(text string) float64 {
	if text == "" {
		return 0
	}
	counts := make(map[byte]int, 64)
	for i := 0; i < len(text); i++ {
		counts[text[i]]++
	}
	n := float64(len(text))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// StructuralEntropyScore implements the content firewall's structural
// entropy guard (SPEC_FULL.md section 4.2): it returns 0.0 for text
// shorter than minEntropyGuardLength or whose entropy sits at or below
// entropyThreshold, and a positive score — the entropy above threshold —
// for longer, high-entropy text that looks like an encoded payload
// smuggled past the regex classifier.
func StructuralEntropyScore(text string) float64 {
	if len(text) < minEntropyGuardLength {
		return 0
	}
	entropy := ShannonEntropy(text)
	if entropy <= entropyThreshold {
		return 0
	}
	return entropy - entropyThreshold
}

// IsStructurallySuspicious reports whether text trips the entropy guard.
func IsStructurallySuspicious(text string) bool {
	return StructuralEntropyScore(text) > 0
}
