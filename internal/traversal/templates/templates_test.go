package templates

import "testing"

func TestMatchQueryBlastRadius(t *testing.T) {
	m := MatchQuery("what is the blast radius if the payments service fails")
	if m == nil || m.TemplateName != "blast_radius" {
		t.Fatalf("expected blast_radius match, got %+v", m)
	}
	if m.Params["name"] != "payments" {
		t.Errorf("expected extracted service name 'payments', got %q", m.Params["name"])
	}
}

func TestMatchQueryTopicConsumers(t *testing.T) {
	m := MatchQuery("who is consuming from the orders topic")
	if m == nil || m.TemplateName != "topic_consumers" {
		t.Fatalf("expected topic_consumers match, got %+v", m)
	}
	if m.Params["topic_name"] != "orders" {
		t.Errorf("expected extracted topic name 'orders', got %q", m.Params["topic_name"])
	}
}

func TestMatchQueryDependencyCountDefaultsLimit(t *testing.T) {
	m := MatchQuery("which services are most critical, ranked by dependency count")
	if m == nil || m.TemplateName != "dependency_count" {
		t.Fatalf("expected dependency_count match, got %+v", m)
	}
	if m.Params["limit"] != "10" {
		t.Errorf("expected default limit of 10, got %q", m.Params["limit"])
	}
}

func TestMatchQueryNoMatchReturnsNil(t *testing.T) {
	if m := MatchQuery("tell me a joke"); m != nil {
		t.Errorf("expected no template match, got %+v", m)
	}
}

func TestGetAndAll(t *testing.T) {
	tpl, ok := Get("service_neighbors")
	if !ok || tpl.Name != "service_neighbors" {
		t.Fatalf("expected service_neighbors template, got %+v", tpl)
	}
	if len(All()) != 4 {
		t.Errorf("expected 4 catalog entries, got %d", len(All()))
	}
}
