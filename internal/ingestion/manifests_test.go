package ingestion

import (
	"context"
	"testing"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/internal/ontology"
	"github.com/R3E-Network/graphctl/internal/workspace"
)

const deploymentYAML = `
kind: Deployment
metadata:
  name: checkout-svc
  namespace: payments
  labels:
    graphrag.io/team-owner: payments-team
  annotations:
    graphrag.io/namespace-acl: "payments,shared"
spec:
  replicas: 3
`

const kafkaTopicYAML = `
kind: KafkaTopic
metadata:
  name: orders.created
  namespace: payments
spec:
  partitions: 6
  retentionMs: 3600000
`

func TestParseManifestsRecognizesDeploymentAndKafkaTopic(t *testing.T) {
	state := IngestionState{
		TenantID: "tenant-a",
		RawFiles: []workspace.File{
			{Path: "k8s/deploy.yaml", Content: deploymentYAML},
			{Path: "k8s/topic.yaml", Content: kafkaTopicYAML},
			{Path: "svc.go", Content: "package main"},
		},
	}

	out, err := ParseManifests(logging.Default(), ontology.Overrides{})(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ExtractedNodes) != 2 {
		t.Fatalf("expected 2 manifest entities, got %d: %+v", len(out.ExtractedNodes), out.ExtractedNodes)
	}

	deploy, ok := out.ExtractedNodes[0].(*ontology.K8sDeploymentNode)
	if !ok {
		t.Fatalf("expected first entity to be K8sDeploymentNode, got %T", out.ExtractedNodes[0])
	}
	if deploy.ID != "checkout-svc" || deploy.Replicas != 3 || deploy.TeamOwner != "payments-team" {
		t.Errorf("unexpected deployment: %+v", deploy)
	}
	if len(deploy.NamespaceACL) != 2 || deploy.NamespaceACL[0] != "payments" || deploy.NamespaceACL[1] != "shared" {
		t.Errorf("unexpected namespace acl: %+v", deploy.NamespaceACL)
	}

	topic, ok := out.ExtractedNodes[1].(*ontology.KafkaTopicNode)
	if !ok {
		t.Fatalf("expected second entity to be KafkaTopicNode, got %T", out.ExtractedNodes[1])
	}
	if topic.Name != "orders.created" || topic.Partitions != 6 || topic.RetentionMS != 3_600_000 {
		t.Errorf("unexpected topic: %+v", topic)
	}
	// No explicit namespace-acl annotation: falls back to the manifest's
	// own namespace.
	if len(topic.NamespaceACL) != 1 || topic.NamespaceACL[0] != "payments" {
		t.Errorf("expected namespace-acl fallback to manifest namespace, got %+v", topic.NamespaceACL)
	}
}

const kafkaTopicWithCustomACLAnnotationYAML = `
kind: KafkaTopic
metadata:
  name: orders.shipped
  namespace: payments
  annotations:
    payments.acme.io/allowed-namespaces: "payments,logistics"
spec:
  partitions: 3
`

func TestParseManifestsHonorsOverrideACLAnnotationKey(t *testing.T) {
	state := IngestionState{
		TenantID: "tenant-a",
		RawFiles: []workspace.File{{Path: "k8s/topic2.yaml", Content: kafkaTopicWithCustomACLAnnotationYAML}},
	}
	overrides := ontology.Overrides{ExtraACLAnnotationKeys: map[string][]string{
		"KafkaTopic": {"payments.acme.io/allowed-namespaces"},
	}}

	out, err := ParseManifests(logging.Default(), overrides)(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ExtractedNodes) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(out.ExtractedNodes))
	}
	topic := out.ExtractedNodes[0].(*ontology.KafkaTopicNode)
	if len(topic.NamespaceACL) != 2 || topic.NamespaceACL[0] != "payments" || topic.NamespaceACL[1] != "logistics" {
		t.Fatalf("expected override annotation to populate namespace acl, got %+v", topic.NamespaceACL)
	}
}

func TestParseManifestsSkipsNonMappingDocuments(t *testing.T) {
	state := IngestionState{
		RawFiles: []workspace.File{{Path: "weird.yaml", Content: "- just\n- a\n- list\n"}},
	}
	out, err := ParseManifests(logging.Default(), ontology.Overrides{})(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ExtractedNodes) != 0 {
		t.Fatalf("expected no entities from a non-mapping document, got %+v", out.ExtractedNodes)
	}
}
