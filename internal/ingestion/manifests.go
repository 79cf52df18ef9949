package ingestion

import (
	"context"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/internal/obs"
	"github.com/R3E-Network/graphctl/internal/ontology"
)

// teamOwnerLabelKeys are tried in order when deriving team_owner from a
// manifest's metadata.labels, matching manifest_parser.py's fallback
// chain: a dedicated label first, then generic ownership labels.
var teamOwnerLabelKeys = []string{
	"graphrag.io/team-owner",
	"team",
	"owner",
	"app.kubernetes.io/managed-by",
}

const namespaceACLAnnotationKey = "graphrag.io/namespace-acl"

type k8sManifest struct {
	Kind     string `yaml:"kind"`
	Metadata struct {
		Name        string            `yaml:"name"`
		Namespace   string            `yaml:"namespace"`
		Labels      map[string]string `yaml:"labels"`
		Annotations map[string]string `yaml:"annotations"`
	} `yaml:"metadata"`
	Spec struct {
		Replicas *int `yaml:"replicas"`
		// Kafka-topic-shaped manifests (not a real Kubernetes kind, but
		// the same YAML documents carry these as a CRD-style resource).
		Partitions  *int   `yaml:"partitions"`
		RetentionMS *int64 `yaml:"retentionMs"`
	} `yaml:"spec"`
}

func deriveTeamOwner(labels map[string]string) string {
	for _, key := range teamOwnerLabelKeys {
		if v := strings.TrimSpace(labels[key]); v != "" {
			return v
		}
	}
	return ""
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// deriveNamespaceACL checks the built-in annotation first, then any
// extra annotation keys an ontology override file declared for this
// manifest's kind (or for every kind, under "*"), before falling back
// to the manifest's own namespace.
func deriveNamespaceACL(m k8sManifest, overrides ontology.Overrides) []string {
	if v := strings.TrimSpace(m.Metadata.Annotations[namespaceACLAnnotationKey]); v != "" {
		return splitCSV(v)
	}
	for _, key := range overrides.ExtraACLAnnotationKeys[m.Kind] {
		if v := strings.TrimSpace(m.Metadata.Annotations[key]); v != "" {
			return splitCSV(v)
		}
	}
	for _, key := range overrides.ExtraACLAnnotationKeys["*"] {
		if v := strings.TrimSpace(m.Metadata.Annotations[key]); v != "" {
			return splitCSV(v)
		}
	}
	if m.Metadata.Namespace != "" {
		return []string{m.Metadata.Namespace}
	}
	return nil
}

// ParseManifests is the pipeline's third DAG node: it decodes every YAML
// file in state.RawFiles one document at a time (gopkg.in/yaml.v3's
// Decoder.Decode loop is this module's equivalent of Python's
// yaml.safe_load_all), skipping non-mapping documents, and recognizes
// Deployment and KafkaTopic kinds. Parsed files are not marked; the
// entities survive a later fix cycle because FixExtractionErrors keeps
// every manifest entity as it is (manifest entities are immutable facts,
// not LLM-provenance guesses). Grounded on manifest_parser.py.
func ParseManifests(logger *logging.Logger, overrides ontology.Overrides) func(ctx context.Context, state IngestionState) (IngestionState, error) {
	return func(ctx context.Context, state IngestionState) (IngestionState, error) {
		return obs.SpanValue(ctx, "ingestion.parse_manifests", func(ctx context.Context) (IngestionState, error) {
			parsedCount := 0
			for _, f := range state.RawFiles {
				ext := strings.ToLower(f.Path[strings.LastIndex(f.Path, "."):])
				if ext != ".yaml" && ext != ".yml" {
					continue
				}

				dec := yaml.NewDecoder(strings.NewReader(f.Content))
				for {
					var m k8sManifest
					if err := dec.Decode(&m); err != nil {
						if _, ok := err.(*yaml.TypeError); ok {
							continue
						}
						break
					}
					switch m.Kind {
					case "Deployment":
						state.ExtractedNodes = append(state.ExtractedNodes, buildDeployment(ctx, m, state.TenantID, logger, overrides))
						parsedCount++
					case "KafkaTopic":
						state.ExtractedNodes = append(state.ExtractedNodes, buildKafkaTopic(ctx, m, state.TenantID, logger, overrides))
						parsedCount++
					}
				}
			}
			obs.SetAttribute(ctx, "manifest_entities_parsed", parsedCount)
			return state, nil
		})
	}
}

func buildDeployment(ctx context.Context, m k8sManifest, tenantID string, logger *logging.Logger, overrides ontology.Overrides) *ontology.K8sDeploymentNode {
	teamOwner := deriveTeamOwner(m.Metadata.Labels)
	acl := deriveNamespaceACL(m, overrides)
	if teamOwner == "" {
		logger.Warn(ctx, "manifest missing team_owner label; defaulting to empty (default-deny)", map[string]interface{}{"kind": m.Kind, "name": m.Metadata.Name})
	}
	if len(acl) == 0 {
		logger.Warn(ctx, "manifest missing namespace_acl; defaulting to empty (default-deny)", map[string]interface{}{"kind": m.Kind, "name": m.Metadata.Name})
	}
	replicas := 1
	if m.Spec.Replicas != nil {
		replicas = *m.Spec.Replicas
	}
	return &ontology.K8sDeploymentNode{
		ID:           m.Metadata.Name,
		Namespace:    m.Metadata.Namespace,
		Replicas:     replicas,
		TenantID_:    tenantID,
		TeamOwner:    teamOwner,
		NamespaceACL: acl,
	}
}

func buildKafkaTopic(ctx context.Context, m k8sManifest, tenantID string, logger *logging.Logger, overrides ontology.Overrides) *ontology.KafkaTopicNode {
	teamOwner := deriveTeamOwner(m.Metadata.Labels)
	acl := deriveNamespaceACL(m, overrides)
	if teamOwner == "" {
		logger.Warn(ctx, "manifest missing team_owner label; defaulting to empty (default-deny)", map[string]interface{}{"kind": m.Kind, "name": m.Metadata.Name})
	}
	if len(acl) == 0 {
		logger.Warn(ctx, "manifest missing namespace_acl; defaulting to empty (default-deny)", map[string]interface{}{"kind": m.Kind, "name": m.Metadata.Name})
	}
	partitions := 1
	if m.Spec.Partitions != nil {
		partitions = *m.Spec.Partitions
	}
	var retention int64 = 604_800_000
	if m.Spec.RetentionMS != nil {
		retention = *m.Spec.RetentionMS
	}
	return &ontology.KafkaTopicNode{
		Name:         m.Metadata.Name,
		Partitions:   partitions,
		RetentionMS:  retention,
		TenantID_:    tenantID,
		TeamOwner:    teamOwner,
		NamespaceACL: acl,
	}
}
