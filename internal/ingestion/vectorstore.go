package ingestion

import "context"

// Embedding is one precomputed vector plus the node id it represents,
// matching the shape the graph repository's UpsertEmbeddings consumes.
type Embedding struct {
	NodeID string
	Vector []float32
}

// VectorStore is the external collaborator PostCommit drains pruned
// node ids into (spec.md section 6: "no concrete vector-store client
// is wired; its interface is specified here"). Production wires a real
// driver (Pinecone/Qdrant/pgvector/etc, all out of this module's
// scope); tests use an in-memory fake.
type VectorStore interface {
	Delete(ctx context.Context, collection string, ids []string) error
	Upsert(ctx context.Context, collection string, embeddings []Embedding) error
}

// NoopVectorStore discards every call; it exists so a deployment
// without vector search configured can still run the pipeline to
// completion instead of special-casing a nil VectorStore at every call
// site.
type NoopVectorStore struct{}

var _ VectorStore = NoopVectorStore{}

func (NoopVectorStore) Delete(context.Context, string, []string) error    { return nil }
func (NoopVectorStore) Upsert(context.Context, string, []Embedding) error { return nil }
