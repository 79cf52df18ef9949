package graphrepo

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// nodeSchema pairs a node label with the property that carries its
// natural key within a tenant (id for most labels, name for
// KafkaTopic, matching PruneStaleEdges's id/name coalesce).
type nodeSchema struct {
	label   string
	keyProp string
}

// schemaNodes lists every node label a fresh deployment's schema-init
// pass must constrain, independent of ontology.NodeTypes's write-order
// concern (schema creation order does not matter; write order does).
var schemaNodes = []nodeSchema{
	{label: "Service", keyProp: "id"},
	{label: "Database", keyProp: "id"},
	{label: "KafkaTopic", keyProp: "name"},
	{label: "K8sDeployment", keyProp: "id"},
}

// SchemaStatements returns the DDL Cypher this module requires before it
// can safely ingest data for a tenant: a composite uniqueness constraint
// on (keyProp, tenant_id) per label, so two tenants may legitimately
// reuse the same service id without colliding, plus a secondary index on
// tenant_id alone for the tenant-scoped full-label scans the context
// manager's ranking queries run. Mirrors neo4j_client.py's
// schema-bootstrap DDL, reproduced here as Go string constants rather
// than a bundled .cypher file since it is short enough to audit inline.
func SchemaStatements() []string {
	statements := make([]string, 0, len(schemaNodes)*2)
	for _, n := range schemaNodes {
		statements = append(statements, fmt.Sprintf(
			`CREATE CONSTRAINT %s_tenant_key IF NOT EXISTS FOR (n:%s) REQUIRE (n.%s, n.tenant_id) IS UNIQUE`,
			n.label, n.label, n.keyProp,
		))
		statements = append(statements, fmt.Sprintf(
			`CREATE INDEX %s_tenant_id IF NOT EXISTS FOR (n:%s) ON (n.tenant_id)`,
			n.label, n.label,
		))
	}
	return statements
}

// EnsureSchema runs every SchemaStatements entry inside its own write
// transaction. Each statement is already an idempotent IF NOT EXISTS
// form, so running EnsureSchema against a cluster that already has the
// schema in place is a no-op.
func (r *repository) EnsureSchema(ctx context.Context) error {
	return r.breaker.Execute(ctx, func() error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		for _, stmt := range SchemaStatements() {
			if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
				_, err := tx.Run(ctx, stmt, nil)
				return nil, err
			}); err != nil {
				return fmt.Errorf("apply schema statement %q: %w", stmt, err)
			}
		}
		return nil
	})
}
