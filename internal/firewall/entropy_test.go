package firewall

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestStructuralEntropyScoreShortInputAlwaysZero(t *testing.T) {
	if got := StructuralEntropyScore("short text"); got != 0 {
		t.Errorf("expected 0 for short input, got %v", got)
	}
}

func TestStructuralEntropyScoreNormalProseIsZero(t *testing.T) {
	prose := strings.Repeat("the quick brown fox jumps over the lazy dog ", 10)
	if got := StructuralEntropyScore(prose); got != 0 {
		t.Errorf("expected 0 for low-entropy prose of length %d, got %v", len(prose), got)
	}
}

func TestStructuralEntropyScoreFlagsBase64Payloads(t *testing.T) {
	flagged := 0
	const trials = 20
	for i := 0; i < trials; i++ {
		raw := make([]byte, 200)
		for j := range raw {
			raw[j] = byte((i*31 + j*17) % 256)
		}
		encoded := base64.StdEncoding.EncodeToString(raw)
		if IsStructurallySuspicious(encoded) {
			flagged++
		}
	}
	if float64(flagged)/float64(trials) <= 0.8 {
		t.Errorf("expected >80%% of base64 payloads flagged, got %d/%d", flagged, trials)
	}
}
