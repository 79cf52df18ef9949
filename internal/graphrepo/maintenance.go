package graphrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// relationshipTypes lists every relationship type pruning and degree
// refresh operate over; kept in sync with ontology.EdgeTypes.
var relationshipTypes = []string{"CALLS", "PRODUCES", "CONSUMES", "DEPLOYED_IN"}

// PruneStaleEdges tombstones every relationship of every known type whose
// ingestion_id differs from currentIngestionID and whose last_seen_at
// predates maxAge. Mirrors neo4j_client.py's prune_stale_edges, but sets
// r.tombstoned = true instead of issuing DELETE, per SPEC_FULL.md's
// tombstone-not-delete resolution: a tombstoned edge remains available
// for audit and can be resurrected by a later re-ingestion of the same
// fact. The distinct endpoint ids touched are returned (coalescing id
// and name, since KafkaTopic's identity property is name, not id) so
// PostCommit can invalidate exactly those cache entries.
func (r *repository) PruneStaleEdges(ctx context.Context, currentIngestionID string, maxAge time.Duration) (int, []string, error) {
	var total int64
	idSet := make(map[string]struct{})

	err := r.breaker.Execute(ctx, func() error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		for _, relType := range relationshipTypes {
			query := fmt.Sprintf(`
				MATCH (a)-[r:%s]->(b)
				WHERE r.ingestion_id <> $currentIngestionID
				  AND r.tombstoned = false
				  AND datetime(r.last_seen_at) < datetime() - duration({seconds: $maxAgeSeconds})
				SET r.tombstoned = true
				RETURN count(r) AS pruned,
				       collect(DISTINCT coalesce(a.id, a.name)) +
				       collect(DISTINCT coalesce(b.id, b.name)) AS affected
			`, relType)

			pruned, affected, err := r.runPruneQuery(ctx, session, query, currentIngestionID, maxAge)
			if err != nil {
				return fmt.Errorf("prune stale %s edges: %w", relType, err)
			}
			total += pruned
			for _, id := range affected {
				idSet[id] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return int(total), nil, err
	}

	affectedNodeIDs := make([]string, 0, len(idSet))
	for id := range idSet {
		affectedNodeIDs = append(affectedNodeIDs, id)
	}
	return int(total), affectedNodeIDs, nil
}

func (r *repository) runPruneQuery(ctx context.Context, session neo4j.SessionWithContext, query, currentIngestionID string, maxAge time.Duration) (int64, []string, error) {
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"currentIngestionID": currentIngestionID,
			"maxAgeSeconds":      int64(maxAge.Seconds()),
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		pruned, _ := record.Get("pruned")
		affected, _ := record.Get("affected")
		return [2]any{pruned, affected}, nil
	})
	if err != nil {
		return 0, nil, err
	}
	pair, ok := result.([2]any)
	if !ok {
		return 0, nil, nil
	}
	pruned, _ := pair[0].(int64)
	var affectedIDs []string
	if raw, ok := pair[1].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				affectedIDs = append(affectedIDs, s)
			}
		}
	}
	return pruned, affectedIDs, nil
}

// RefreshDegreeForIDs recomputes and stores a cached degree count on each
// named node, used by the traversal engine to pick between BOUNDED_CYPHER
// and APOC/sampled strategies without a live count(*) at query time.
func (r *repository) RefreshDegreeForIDs(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	const query = `
		UNWIND $ids AS nodeID
		MATCH (n {id: nodeID})
		OPTIONAL MATCH (n)-[r]-()
		WHERE r.tombstoned = false OR r.tombstoned IS NULL
		WITH n, count(r) AS degree
		SET n.cached_degree = degree
	`
	return r.breaker.Execute(ctx, func() error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"ids": nodeIDs})
			return nil, err
		})
		return err
	})
}

// CreateVectorIndex creates a vector index over propertyName on nodes
// labeled label if it does not already exist. Mirrors
// neo4j_client.py's create_vector_index.
func (r *repository) CreateVectorIndex(ctx context.Context, indexName, label, propertyName string, dimensions int) error {
	if err := validateSchemaIdentifier(indexName); err != nil {
		return err
	}
	if err := validateSchemaIdentifier(label); err != nil {
		return err
	}
	if err := validateSchemaIdentifier(propertyName); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		CREATE VECTOR INDEX %s IF NOT EXISTS
		FOR (n:%s) ON (n.%s)
		OPTIONS {indexConfig: {
			`+"`vector.dimensions`"+`: $dimensions,
			`+"`vector.similarity_function`"+`: 'cosine'
		}}
	`, indexName, label, propertyName)

	return r.breaker.Execute(ctx, func() error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"dimensions": dimensions})
			return nil, err
		})
		return err
	})
}

// UpsertEmbeddings writes a precomputed embedding vector onto each
// already-existing node identified by idField. Nodes that do not exist
// are silently skipped (MATCH, not MERGE): embeddings never create new
// topology.
func (r *repository) UpsertEmbeddings(ctx context.Context, label, idField string, embeddings []map[string]any) error {
	if len(embeddings) == 0 {
		return nil
	}
	if err := validateSchemaIdentifier(label); err != nil {
		return err
	}
	if err := validateSchemaIdentifier(idField); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UNWIND $batch AS row
		MATCH (n:%s {%s: row.id})
		SET n.embedding = row.embedding
	`, label, idField)

	return r.breaker.Execute(ctx, func() error {
		for _, chunk := range chunkMaps(embeddings, r.batchSize) {
			session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
			_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
				_, err := tx.Run(ctx, query, map[string]any{"batch": chunk})
				return nil, err
			})
			closeErr := session.Close(ctx)
			if err != nil {
				return fmt.Errorf("upsert embeddings for %s: %w", label, err)
			}
			if closeErr != nil {
				return closeErr
			}
		}
		return nil
	})
}

func chunkMaps(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]map[string]any
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[i:end])
	}
	return chunks
}

// validateSchemaIdentifier guards against Cypher injection through
// caller-supplied label/property/index names, which cannot be
// parameterized in Neo4j (labels and property keys are not valid query
// parameters). Mirrors neo4j_client.py's _validate_cypher_identifier.
func validateSchemaIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("schema identifier must not be empty")
	}
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return fmt.Errorf("schema identifier %q contains disallowed characters", name)
		}
	}
	return nil
}
