package ontology

import "testing"

func TestValidateEntityIdentifier(t *testing.T) {
	if err := ValidateEntityIdentifier("checkout-service"); err != nil {
		t.Errorf("expected valid identifier, got %v", err)
	}
	if err := ValidateEntityIdentifier("bad id!"); err == nil {
		t.Error("expected error for identifier with disallowed characters")
	}
	if err := ValidateEntityIdentifier(""); err == nil {
		t.Error("expected error for empty identifier")
	}
}

func TestValidateEdgeReference(t *testing.T) {
	if err := ValidateEdgeReference("checkout-service"); err != nil {
		t.Errorf("expected valid reference, got %v", err)
	}
	if err := ValidateEdgeReference(""); err == nil {
		t.Error("expected error for empty reference")
	}
	if err := ValidateEdgeReference("has'quote"); err == nil {
		t.Error("expected error for reference with injection characters")
	}
}

func TestServiceNodeValidate(t *testing.T) {
	n := &ServiceNode{ID: "svc-1", Name: "checkout", TenantID_: "tenant-a", Confidence: 0.9}
	if err := n.Validate(); err != nil {
		t.Errorf("expected valid node, got %v", err)
	}

	missingTenant := &ServiceNode{ID: "svc-1", Name: "checkout", Confidence: 0.9}
	if err := missingTenant.Validate(); err == nil {
		t.Error("expected error for missing tenant_id")
	}

	badConfidence := &ServiceNode{ID: "svc-1", Name: "checkout", TenantID_: "tenant-a", Confidence: 1.5}
	if err := badConfidence.Validate(); err == nil {
		t.Error("expected error for out-of-range confidence")
	}
}

func TestComputeContentHashDeterministic(t *testing.T) {
	a := &ServiceNode{ID: "svc-1", Name: "checkout", Language: "go", TenantID_: "tenant-a", Confidence: 0.9}
	b := &ServiceNode{ID: "svc-1", Name: "checkout", Language: "go", TenantID_: "tenant-a", Confidence: 0.9}

	hashA, err := ComputeContentHash(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hashB, err := ComputeContentHash(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashA != hashB {
		t.Errorf("expected identical content hashes, got %q and %q", hashA, hashB)
	}

	b.Language = "python"
	hashC, err := ComputeContentHash(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashA == hashC {
		t.Error("expected different content hash after field change")
	}
}

func TestComputeContentHashIgnoresExistingHashField(t *testing.T) {
	n := &DatabaseNode{ID: "db-1", Type: "postgres", TenantID_: "tenant-a"}
	first, err := ComputeContentHash(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n.ContentHash = first
	second, err := ComputeContentHash(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Error("expected content hash to be stable once content_hash field is populated")
	}
}

func TestCallsEdgeValidate(t *testing.T) {
	e := &CallsEdge{SourceServiceID: "svc-1", TargetServiceID: "svc-2", Protocol: "grpc", TenantID_: "tenant-a"}
	if err := e.Validate(); err != nil {
		t.Errorf("expected valid edge, got %v", err)
	}

	bad := &CallsEdge{SourceServiceID: "", TargetServiceID: "svc-2", TenantID_: "tenant-a"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty source reference")
	}
}
