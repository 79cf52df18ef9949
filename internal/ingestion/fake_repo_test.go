package ingestion

import (
	"context"
	"time"

	"github.com/R3E-Network/graphctl/internal/ontology"
)

// fakeRepository is a minimal graphrepo.Repository stub so ingestion's
// own tests can exercise commit/post-commit wiring without a real Neo4j
// driver.
type fakeRepository struct {
	commitErr        error
	committed        []ontology.Entity
	pruneIDs         []string
	pruneErr         error
	prunedIngestions []string
}

func (f *fakeRepository) CommitTopology(ctx context.Context, entities []ontology.Entity) error {
	f.committed = entities
	return f.commitErr
}

func (f *fakeRepository) PruneStaleEdges(ctx context.Context, currentIngestionID string, maxAge time.Duration) (int, []string, error) {
	f.prunedIngestions = append(f.prunedIngestions, currentIngestionID)
	return len(f.pruneIDs), f.pruneIDs, f.pruneErr
}

func (f *fakeRepository) RefreshDegreeForIDs(ctx context.Context, nodeIDs []string) error { return nil }

func (f *fakeRepository) CreateVectorIndex(ctx context.Context, indexName, label, propertyName string, dimensions int) error {
	return nil
}

func (f *fakeRepository) UpsertEmbeddings(ctx context.Context, label, idField string, embeddings []map[string]any) error {
	return nil
}

func (f *fakeRepository) ReadTopology(ctx context.Context, tenantID string, seedIDs []string, hops int) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeRepository) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeRepository) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeRepository) Close(ctx context.Context) error { return nil }
