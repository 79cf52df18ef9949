package tenant

import "testing"

func TestScopedSessionValidateQueryMissingTenantID(t *testing.T) {
	s := NewScopedSession("tenant-a", nil)
	_, err := s.ValidateQuery("MATCH (n) RETURN n", nil)
	if err == nil {
		t.Fatal("expected error for query without tenant_id reference")
	}
}

func TestScopedSessionValidateQueryFillsTenantID(t *testing.T) {
	s := NewScopedSession("tenant-a", nil)
	params, err := s.ValidateQuery("MATCH (n {tenant_id: $tenant_id}) RETURN n", map[string]any{"foo": "bar"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params["tenant_id"] != "tenant-a" {
		t.Errorf("expected tenant_id to be filled in, got %v", params["tenant_id"])
	}
	if params["foo"] != "bar" {
		t.Error("expected existing params to be preserved")
	}
}

func TestScopedSessionValidateQueryRejectsMismatch(t *testing.T) {
	s := NewScopedSession("tenant-a", nil)
	_, err := s.ValidateQuery("MATCH (n {tenant_id: $tenant_id}) RETURN n", map[string]any{"tenant_id": "tenant-b"})
	if err == nil {
		t.Fatal("expected error for cross-tenant parameter mismatch")
	}
}

func TestScopedSessionAllowsSchemaDDL(t *testing.T) {
	s := NewScopedSession("tenant-a", nil)
	for ddl := range SchemaDDLAllowlist {
		if _, err := s.ValidateQuery(ddl, nil); err != nil {
			t.Errorf("expected allowlisted DDL to pass, got %v", err)
		}
	}
}

func TestIsSchemaDDL(t *testing.T) {
	if !IsSchemaDDL("CREATE RANGE INDEX foo IF NOT EXISTS FOR (n:Foo) ON (n.bar)") {
		t.Error("expected CREATE RANGE INDEX to be recognized as schema DDL")
	}
	if IsSchemaDDL("MATCH (n) RETURN n") {
		t.Error("MATCH should not be recognized as schema DDL")
	}
}
