package guard

import "testing"

func TestLooksLikeCypher(t *testing.T) {
	if !LooksLikeCypher("MATCH (n {tenant_id: $tenant_id}) RETURN n") {
		t.Error("expected MATCH statement to look like Cypher")
	}
	if LooksLikeCypher("too short") {
		t.Error("expected short non-Cypher string to be rejected")
	}
	if LooksLikeCypher("just a long plain English sentence with no Cypher keywords at all") {
		t.Error("expected long non-Cypher sentence to be rejected")
	}
}

func TestScanQueriesFlagsUnscopedQuery(t *testing.T) {
	queries := map[string]struct{}{
		"MATCH (n {tenant_id: $tenant_id}) RETURN n": {},
		"MATCH (n) RETURN n":                         {},
	}
	violations := ScanQueries(queries)
	if _, ok := violations["MATCH (n) RETURN n"]; !ok {
		t.Error("expected unscoped query to be flagged")
	}
	if _, ok := violations["MATCH (n {tenant_id: $tenant_id}) RETURN n"]; ok {
		t.Error("expected tenant-scoped query to not be flagged")
	}
}

func TestScanQueriesExemptsInternalLabels(t *testing.T) {
	queries := map[string]struct{}{
		"MATCH (n:OutboxEvent) RETURN n": {},
	}
	violations := ScanQueries(queries)
	if len(violations) != 0 {
		t.Errorf("expected internal-label query to be exempt, got violations: %v", violations)
	}
}

func TestExtractCypherConstantsFromDir(t *testing.T) {
	constants, err := ExtractCypherConstantsFromDir(".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(constants) == 0 {
		t.Error("expected at least one extracted Cypher-shaped string literal from this package's own test fixtures")
	}
}
