package semcache

import (
	"context"
	"testing"
)

func TestCacheSetAndGetL1Only(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()
	key := Key("tenant-a", "neighbors", []string{"svc-1"})

	if _, ok := c.Get(ctx, "tenant-a", key); ok {
		t.Fatal("expected miss before any Set")
	}

	if err := c.Set(ctx, "tenant-a", key, `{"result":"ok"}`, []string{"svc-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	val, ok := c.Get(ctx, "tenant-a", key)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if val != `{"result":"ok"}` {
		t.Errorf("unexpected cached value: %q", val)
	}
}

func TestCacheGetRejectsEmptyTenant(t *testing.T) {
	c := New(nil, nil)
	if _, ok := c.Get(context.Background(), "", "any-key"); ok {
		t.Error("expected miss for empty tenant")
	}
}

func TestCacheInvalidateByNodes(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()
	key := Key("tenant-a", "neighbors", []string{"svc-1"})

	if err := c.Set(ctx, "tenant-a", key, "value", []string{"svc-1", "svc-2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.InvalidateByNodes(ctx, "tenant-a", []string{"svc-2"})

	if _, ok := c.Get(ctx, "tenant-a", key); ok {
		t.Error("expected key to be invalidated via its second dependent node")
	}
}

func TestCacheInvalidateTenantSweepsEveryKeyRegardlessOfNodeID(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()
	keyA := Key("tenant-a", "neighbors", []string{"svc-1"})
	keyB := Key("tenant-a", "blast_radius", []string{"svc-9"})

	if err := c.Set(ctx, "tenant-a", keyA, "value-a", []string{"svc-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Set(ctx, "tenant-a", keyB, "value-b", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.InvalidateTenant(ctx, "tenant-a")

	if _, ok := c.Get(ctx, "tenant-a", keyA); ok {
		t.Error("expected keyA invalidated by tenant-wide sweep")
	}
	if _, ok := c.Get(ctx, "tenant-a", keyB); ok {
		t.Error("expected keyB (no node dependency) invalidated by tenant-wide sweep")
	}
}

func TestRequireTenant(t *testing.T) {
	if err := RequireTenant(""); err == nil {
		t.Error("expected error for empty tenant")
	}
	if err := RequireTenant("tenant-a"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMarshalUnmarshalResult(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	raw, err := MarshalResult(payload{Name: "checkout"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out payload
	if err := UnmarshalResult(raw, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "checkout" {
		t.Errorf("expected round-tripped name, got %q", out.Name)
	}
}
