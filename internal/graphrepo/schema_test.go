package graphrepo

import (
	"strings"
	"testing"
)

func TestSchemaStatementsCoverEveryLabel(t *testing.T) {
	statements := SchemaStatements()
	if len(statements) != len(schemaNodes)*2 {
		t.Fatalf("expected one constraint and one index per label, got %d statements", len(statements))
	}

	for _, n := range schemaNodes {
		var sawConstraint, sawIndex bool
		for _, stmt := range statements {
			if strings.Contains(stmt, "CREATE CONSTRAINT") && strings.Contains(stmt, "FOR (n:"+n.label+")") {
				sawConstraint = true
				if !strings.Contains(stmt, "n."+n.keyProp+", n.tenant_id") {
					t.Errorf("constraint for %s does not key on (%s, tenant_id): %s", n.label, n.keyProp, stmt)
				}
			}
			if strings.Contains(stmt, "CREATE INDEX") && strings.Contains(stmt, "FOR (n:"+n.label+")") {
				sawIndex = true
			}
		}
		if !sawConstraint {
			t.Errorf("missing uniqueness constraint statement for label %s", n.label)
		}
		if !sawIndex {
			t.Errorf("missing tenant_id index statement for label %s", n.label)
		}
	}
}

func TestSchemaStatementsAreIdempotentForm(t *testing.T) {
	for _, stmt := range SchemaStatements() {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Errorf("expected every schema statement to be idempotent, got: %s", stmt)
		}
	}
}
