package ontology

import "testing"

func TestGroupByType(t *testing.T) {
	entities := []Entity{
		&ServiceNode{ID: "svc-1", Name: "checkout", TenantID_: "tenant-a"},
		&ServiceNode{ID: "svc-2", Name: "billing", TenantID_: "tenant-a"},
		&DatabaseNode{ID: "db-1", Type: "postgres", TenantID_: "tenant-a"},
	}

	groups, err := GroupByType(entities)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups["ServiceNode"]) != 2 {
		t.Errorf("expected 2 ServiceNode rows, got %d", len(groups["ServiceNode"]))
	}
	if len(groups["DatabaseNode"]) != 1 {
		t.Errorf("expected 1 DatabaseNode row, got %d", len(groups["DatabaseNode"]))
	}
}

func TestChunkRows(t *testing.T) {
	rows := make([]map[string]any, 250)
	for i := range rows {
		rows[i] = map[string]any{"id": i}
	}

	chunks := ChunkRows(rows, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestIsNode(t *testing.T) {
	if !IsNode("ServiceNode") {
		t.Error("expected ServiceNode to be classified as a node")
	}
	if IsNode("CallsEdge") {
		t.Error("expected CallsEdge to not be classified as a node")
	}
}

func TestUnwindQueriesCoverAllTypes(t *testing.T) {
	for _, typeName := range append(append([]string{}, NodeTypes...), EdgeTypes...) {
		if _, ok := UnwindQueries[typeName]; !ok {
			t.Errorf("missing UNWIND query for type %q", typeName)
		}
	}
}
