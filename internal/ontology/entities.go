// Package ontology defines the graph's node/edge types, their field-level
// validation, and the content-hash idempotency key, grounded on
// extraction_models.py.
package ontology

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/R3E-Network/graphctl/infrastructure/hex"
	"github.com/R3E-Network/graphctl/internal/errs"
)

var (
	safeEntityName    = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,252}$`)
	cypherInjectChars = regexp.MustCompile(`['"{};\\` + "`" + `\x00]`)
)

const maxEdgeRefLength = 512

// ValidateEntityIdentifier enforces the safe-identifier grammar shared by
// every node label's primary key (id or name).
func ValidateEntityIdentifier(value string) error {
	if !safeEntityName.MatchString(value) {
		return errs.IngestRejection(fmt.Sprintf(
			"entity identifier %q contains disallowed characters or exceeds 253 chars", value))
	}
	return nil
}

// ValidateEdgeReference enforces the edge-endpoint grammar: non-empty,
// bounded length, and free of characters that could break out of a
// parameterized Cypher literal.
func ValidateEdgeReference(value string) error {
	if value == "" || len(value) > maxEdgeRefLength {
		return errs.IngestRejection(fmt.Sprintf(
			"edge reference %q must be non-empty and at most %d characters", value, maxEdgeRefLength))
	}
	if cypherInjectChars.MatchString(value) {
		return errs.IngestRejection(fmt.Sprintf(
			"edge reference %q contains disallowed characters", value))
	}
	return nil
}

// Entity is implemented by every node and edge type so that generic
// ingestion/graph-write code can dispatch on concrete type without a type
// switch at every call site.
type Entity interface {
	// EntityLabel returns the Cypher node label or relationship type.
	EntityLabel() string
	// TenantID returns the tenant this entity is scoped to.
	TenantID() string
	// Validate checks field-level invariants beyond what the struct tags
	// alone express.
	Validate() error
}

// ServiceNode represents a :Service node.
type ServiceNode struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Language             string   `json:"language"`
	Framework            string   `json:"framework"`
	OpenTelemetryEnabled bool     `json:"opentelemetry_enabled"`
	TenantID_            string   `json:"tenant_id"`
	TeamOwner            string   `json:"team_owner,omitempty"`
	NamespaceACL         []string `json:"namespace_acl,omitempty"`
	ReadRoles            []string `json:"read_roles,omitempty"`
	Confidence           float64  `json:"confidence"`
	ContentHash          string   `json:"content_hash,omitempty"`
}

func (n *ServiceNode) EntityLabel() string { return "Service" }
func (n *ServiceNode) TenantID() string    { return n.TenantID_ }
func (n *ServiceNode) Validate() error {
	if err := ValidateEntityIdentifier(n.ID); err != nil {
		return err
	}
	if err := ValidateEntityIdentifier(n.Name); err != nil {
		return err
	}
	if n.TenantID_ == "" {
		return errs.IngestRejection("ServiceNode.tenant_id must not be empty")
	}
	if n.Confidence < 0 || n.Confidence > 1 {
		return errs.IngestRejection("ServiceNode.confidence must be within [0,1]")
	}
	return nil
}

// DatabaseNode represents a :Database node.
type DatabaseNode struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	TenantID_    string   `json:"tenant_id"`
	TeamOwner    string   `json:"team_owner,omitempty"`
	NamespaceACL []string `json:"namespace_acl,omitempty"`
	ReadRoles    []string `json:"read_roles,omitempty"`
	ContentHash  string   `json:"content_hash,omitempty"`
}

func (n *DatabaseNode) EntityLabel() string { return "Database" }
func (n *DatabaseNode) TenantID() string    { return n.TenantID_ }
func (n *DatabaseNode) Validate() error {
	if err := ValidateEntityIdentifier(n.ID); err != nil {
		return err
	}
	if n.TenantID_ == "" {
		return errs.IngestRejection("DatabaseNode.tenant_id must not be empty")
	}
	return nil
}

// KafkaTopicNode represents a :KafkaTopic node.
type KafkaTopicNode struct {
	Name         string   `json:"name"`
	Partitions   int      `json:"partitions"`
	RetentionMS  int64    `json:"retention_ms"`
	TenantID_    string   `json:"tenant_id"`
	TeamOwner    string   `json:"team_owner,omitempty"`
	NamespaceACL []string `json:"namespace_acl,omitempty"`
	ReadRoles    []string `json:"read_roles,omitempty"`
	ContentHash  string   `json:"content_hash,omitempty"`
}

func (n *KafkaTopicNode) EntityLabel() string { return "KafkaTopic" }
func (n *KafkaTopicNode) TenantID() string    { return n.TenantID_ }
func (n *KafkaTopicNode) Validate() error {
	if err := ValidateEntityIdentifier(n.Name); err != nil {
		return err
	}
	if n.TenantID_ == "" {
		return errs.IngestRejection("KafkaTopicNode.tenant_id must not be empty")
	}
	return nil
}

// K8sDeploymentNode represents a :K8sDeployment node.
type K8sDeploymentNode struct {
	ID           string   `json:"id"`
	Namespace    string   `json:"namespace"`
	Replicas     int      `json:"replicas"`
	TenantID_    string   `json:"tenant_id"`
	TeamOwner    string   `json:"team_owner,omitempty"`
	NamespaceACL []string `json:"namespace_acl,omitempty"`
	ReadRoles    []string `json:"read_roles,omitempty"`
	ContentHash  string   `json:"content_hash,omitempty"`
}

func (n *K8sDeploymentNode) EntityLabel() string { return "K8sDeployment" }
func (n *K8sDeploymentNode) TenantID() string    { return n.TenantID_ }
func (n *K8sDeploymentNode) Validate() error {
	if err := ValidateEntityIdentifier(n.ID); err != nil {
		return err
	}
	if n.TenantID_ == "" {
		return errs.IngestRejection("K8sDeploymentNode.tenant_id must not be empty")
	}
	return nil
}

// CallsEdge represents a :CALLS relationship, Service -> Service.
type CallsEdge struct {
	SourceServiceID string  `json:"source_service_id"`
	TargetServiceID string  `json:"target_service_id"`
	Protocol        string  `json:"protocol"`
	TenantID_       string  `json:"tenant_id"`
	Confidence      float64 `json:"confidence"`
	IngestionID     string  `json:"ingestion_id,omitempty"`
	LastSeenAt      string  `json:"last_seen_at,omitempty"`
}

func (e *CallsEdge) EntityLabel() string { return "CALLS" }
func (e *CallsEdge) TenantID() string    { return e.TenantID_ }
func (e *CallsEdge) Validate() error {
	if err := ValidateEdgeReference(e.SourceServiceID); err != nil {
		return err
	}
	if err := ValidateEdgeReference(e.TargetServiceID); err != nil {
		return err
	}
	if e.TenantID_ == "" {
		return errs.IngestRejection("CallsEdge.tenant_id must not be empty")
	}
	return nil
}

// ProducesEdge represents a :PRODUCES relationship, Service -> KafkaTopic.
type ProducesEdge struct {
	ServiceID   string `json:"service_id"`
	TopicName   string `json:"topic_name"`
	EventSchema string `json:"event_schema"`
	TenantID_   string `json:"tenant_id"`
	IngestionID string `json:"ingestion_id,omitempty"`
	LastSeenAt  string `json:"last_seen_at,omitempty"`
}

func (e *ProducesEdge) EntityLabel() string { return "PRODUCES" }
func (e *ProducesEdge) TenantID() string    { return e.TenantID_ }
func (e *ProducesEdge) Validate() error {
	if err := ValidateEdgeReference(e.ServiceID); err != nil {
		return err
	}
	if err := ValidateEdgeReference(e.TopicName); err != nil {
		return err
	}
	if e.TenantID_ == "" {
		return errs.IngestRejection("ProducesEdge.tenant_id must not be empty")
	}
	return nil
}

// ConsumesEdge represents a :CONSUMES relationship, Service -> KafkaTopic.
type ConsumesEdge struct {
	ServiceID     string `json:"service_id"`
	TopicName     string `json:"topic_name"`
	ConsumerGroup string `json:"consumer_group"`
	TenantID_     string `json:"tenant_id"`
	IngestionID   string `json:"ingestion_id,omitempty"`
	LastSeenAt    string `json:"last_seen_at,omitempty"`
}

func (e *ConsumesEdge) EntityLabel() string { return "CONSUMES" }
func (e *ConsumesEdge) TenantID() string    { return e.TenantID_ }
func (e *ConsumesEdge) Validate() error {
	if err := ValidateEdgeReference(e.ServiceID); err != nil {
		return err
	}
	if err := ValidateEdgeReference(e.TopicName); err != nil {
		return err
	}
	if err := ValidateEdgeReference(e.ConsumerGroup); err != nil {
		return err
	}
	if e.TenantID_ == "" {
		return errs.IngestRejection("ConsumesEdge.tenant_id must not be empty")
	}
	return nil
}

// DeployedInEdge represents a :DEPLOYED_IN relationship, Service -> K8sDeployment.
type DeployedInEdge struct {
	ServiceID    string `json:"service_id"`
	DeploymentID string `json:"deployment_id"`
	TenantID_    string `json:"tenant_id"`
	IngestionID  string `json:"ingestion_id,omitempty"`
	LastSeenAt   string `json:"last_seen_at,omitempty"`
}

func (e *DeployedInEdge) EntityLabel() string { return "DEPLOYED_IN" }
func (e *DeployedInEdge) TenantID() string    { return e.TenantID_ }
func (e *DeployedInEdge) Validate() error {
	if err := ValidateEdgeReference(e.ServiceID); err != nil {
		return err
	}
	if err := ValidateEdgeReference(e.DeploymentID); err != nil {
		return err
	}
	if e.TenantID_ == "" {
		return errs.IngestRejection("DeployedInEdge.tenant_id must not be empty")
	}
	return nil
}

// contentHashable is implemented by node types that carry a ContentHash
// field for idempotent re-ingestion.
type contentHashable interface {
	Entity
	hashPayload() (map[string]any, error)
}

func (n *ServiceNode) hashPayload() (map[string]any, error) { return structToMap(n, "ContentHash") }
func (n *DatabaseNode) hashPayload() (map[string]any, error) { return structToMap(n, "ContentHash") }
func (n *KafkaTopicNode) hashPayload() (map[string]any, error) {
	return structToMap(n, "ContentHash")
}
func (n *K8sDeploymentNode) hashPayload() (map[string]any, error) {
	return structToMap(n, "ContentHash")
}

// ComputeContentHash returns the canonical SHA-256 content hash used for
// idempotent re-ingestion, matching compute_content_hash's "dump all
// fields except content_hash, sort keys, hash the canonical JSON" recipe.
func ComputeContentHash(e Entity) (string, error) {
	hashable, ok := e.(contentHashable)
	if !ok {
		return "", fmt.Errorf("entity type %T does not carry a content hash", e)
	}
	payload, err := hashable.hashPayload()
	if err != nil {
		return "", err
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// structToMap marshals v to JSON and back into a map, dropping
// content_hash, so that map key ordering (and therefore the hash) is
// independent of struct field order.
func structToMap(v any, _ string) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "content_hash")
	return m, nil
}
