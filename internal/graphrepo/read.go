package graphrepo

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ReadTopology walks outward from seedIDs up to hops relationships,
// returning each matched node and relationship flattened into a single
// row per path. Every node and relationship is filtered to tenantID and
// to tombstoned = false, so a cross-tenant or pruned edge can never
// surface through this path, independent of whatever tenant scoping the
// caller applies on top.
func (r *repository) ReadTopology(ctx context.Context, tenantID string, seedIDs []string, hops int) ([]map[string]any, error) {
	if hops < 1 {
		hops = 1
	}
	query := fmt.Sprintf(`
		UNWIND $seedIDs AS seedID
		MATCH (seed {id: seedID, tenant_id: $tenantID})
		MATCH path = (seed)-[rels*1..%d]-(neighbor)
		WHERE all(rel IN rels WHERE rel.tenant_id = $tenantID AND (rel.tombstoned = false OR rel.tombstoned IS NULL))
		  AND neighbor.tenant_id = $tenantID
		RETURN seed, rels, neighbor
	`, hops)

	return r.RunRead(ctx, query, map[string]any{
		"seedIDs":  seedIDs,
		"tenantID": tenantID,
	})
}

// RunRead executes query in a read session and flattens each result
// record into a map keyed by its return-clause aliases.
func (r *repository) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	var rows []map[string]any
	err := r.breaker.Execute(ctx, func() error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			var records []map[string]any
			for res.Next(ctx) {
				rec := res.Record()
				row := make(map[string]any, len(rec.Keys))
				for _, key := range rec.Keys {
					val, _ := rec.Get(key)
					row[key] = val
				}
				records = append(records, row)
			}
			if err := res.Err(); err != nil {
				return nil, err
			}
			return records, nil
		})
		if err != nil {
			return fmt.Errorf("run read query: %w", err)
		}
		if recs, ok := result.([]map[string]any); ok {
			rows = recs
		}
		return nil
	})
	return rows, err
}
