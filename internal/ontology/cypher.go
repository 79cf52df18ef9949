package ontology

// UnwindQueries maps each entity's Go type name to the batched UNWIND
// MERGE statement used to commit it, grounded on neo4j_client.py's
// _UNWIND_QUERIES dispatch table. Batches are passed as the $batch
// parameter, one map per row.
var UnwindQueries = map[string]string{
	"ServiceNode": `UNWIND $batch AS row
MERGE (n:Service {id: row.id, tenant_id: row.tenant_id})
SET n.name = row.name, n.language = row.language,
    n.framework = row.framework,
    n.opentelemetry_enabled = row.opentelemetry_enabled,
    n.team_owner = row.team_owner,
    n.namespace_acl = row.namespace_acl,
    n.read_roles = row.read_roles,
    n.confidence = row.confidence,
    n.content_hash = row.content_hash`,

	"DatabaseNode": `UNWIND $batch AS row
MERGE (n:Database {id: row.id, tenant_id: row.tenant_id})
SET n.type = row.type,
    n.team_owner = row.team_owner,
    n.namespace_acl = row.namespace_acl,
    n.read_roles = row.read_roles,
    n.content_hash = row.content_hash`,

	"KafkaTopicNode": `UNWIND $batch AS row
MERGE (n:KafkaTopic {name: row.name, tenant_id: row.tenant_id})
SET n.partitions = row.partitions,
    n.retention_ms = row.retention_ms,
    n.team_owner = row.team_owner,
    n.namespace_acl = row.namespace_acl,
    n.read_roles = row.read_roles,
    n.content_hash = row.content_hash`,

	"K8sDeploymentNode": `UNWIND $batch AS row
MERGE (n:K8sDeployment {id: row.id, tenant_id: row.tenant_id})
SET n.namespace = row.namespace,
    n.replicas = row.replicas,
    n.team_owner = row.team_owner,
    n.namespace_acl = row.namespace_acl,
    n.read_roles = row.read_roles,
    n.content_hash = row.content_hash`,

	"CallsEdge": `UNWIND $batch AS row
MATCH (a:Service {id: row.source_service_id, tenant_id: row.tenant_id}),
      (b:Service {id: row.target_service_id, tenant_id: row.tenant_id})
MERGE (a)-[r:CALLS]->(b)
SET r.protocol = row.protocol,
    r.confidence = row.confidence,
    r.ingestion_id = row.ingestion_id,
    r.last_seen_at = row.last_seen_at,
    r.tombstoned = false`,

	"ProducesEdge": `UNWIND $batch AS row
MATCH (s:Service {id: row.service_id, tenant_id: row.tenant_id}),
      (t:KafkaTopic {name: row.topic_name, tenant_id: row.tenant_id})
MERGE (s)-[r:PRODUCES]->(t)
SET r.event_schema = row.event_schema,
    r.ingestion_id = row.ingestion_id,
    r.last_seen_at = row.last_seen_at,
    r.tombstoned = false`,

	"ConsumesEdge": `UNWIND $batch AS row
MATCH (s:Service {id: row.service_id, tenant_id: row.tenant_id}),
      (t:KafkaTopic {name: row.topic_name, tenant_id: row.tenant_id})
MERGE (s)-[r:CONSUMES]->(t)
SET r.consumer_group = row.consumer_group,
    r.ingestion_id = row.ingestion_id,
    r.last_seen_at = row.last_seen_at,
    r.tombstoned = false`,

	"DeployedInEdge": `UNWIND $batch AS row
MATCH (s:Service {id: row.service_id, tenant_id: row.tenant_id}),
      (k:K8sDeployment {id: row.deployment_id, tenant_id: row.tenant_id})
MERGE (s)-[r:DEPLOYED_IN]->(k)
SET r.ingestion_id = row.ingestion_id,
    r.last_seen_at = row.last_seen_at,
    r.tombstoned = false`,
}

// NodeTypes lists the Go type names classified as graph nodes, in the
// fixed write order used to avoid lock-order inversions across replicas:
// independent node labels first, Service last since edges reference it.
var NodeTypes = []string{
	"DatabaseNode",
	"KafkaTopicNode",
	"K8sDeploymentNode",
	"ServiceNode",
}

// EdgeTypes lists the Go type names classified as graph edges, written
// only after all node types in NodeTypes have committed.
var EdgeTypes = []string{
	"ProducesEdge",
	"ConsumesEdge",
	"DeployedInEdge",
	"CallsEdge",
}
