// Package graphrepo is the graph write layer: batched UNWIND upserts,
// deterministic write ordering, hot-edge serialization, and stale-edge
// tombstoning against Neo4j. Grounded on neo4j_client.py's
// GraphRepository and evalgo-org-eve's Neo4jRepository for the Go driver
// idiom.
package graphrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/infrastructure/metrics"
	"github.com/R3E-Network/graphctl/infrastructure/resilience"
	"github.com/R3E-Network/graphctl/internal/ontology"
)

// Repository is the graph write/read surface consumed by the ingestion
// pipeline, traversal engine, and outbox drainer.
type Repository interface {
	// CommitTopology upserts a batch of entities, nodes before edges,
	// grouped and chunked per type; large edge batches use smaller chunks.
	CommitTopology(ctx context.Context, entities []ontology.Entity) error
	// PruneStaleEdges tombstones (does not delete) edges last touched by
	// an older ingestion run, older than maxAge. Returns the count
	// tombstoned and the distinct endpoint node ids touched, so callers
	// can invalidate exactly those cache entries instead of the whole
	// tenant.
	PruneStaleEdges(ctx context.Context, currentIngestionID string, maxAge time.Duration) (count int, affectedNodeIDs []string, err error)
	// RefreshDegreeForIDs recomputes the cached node-degree hint used by
	// the traversal engine's adaptive strategy selection.
	RefreshDegreeForIDs(ctx context.Context, nodeIDs []string) error
	// CreateVectorIndex is idempotent; it creates the named vector index
	// if missing.
	CreateVectorIndex(ctx context.Context, indexName, label, propertyName string, dimensions int) error
	// UpsertEmbeddings writes precomputed embeddings onto existing nodes.
	UpsertEmbeddings(ctx context.Context, label, idField string, embeddings []map[string]any) error
	// ReadTopology returns every non-tombstoned node and relationship
	// attached to the given seed IDs within hops, scoped to tenantID. It
	// is the single-hop building block the traversal engine's BFS/beam
	// strategies compose into multi-hop walks.
	ReadTopology(ctx context.Context, tenantID string, seedIDs []string, hops int) ([]map[string]any, error)
	// RunRead executes an arbitrary parameterized read-only Cypher query
	// and returns each record as a field-name-keyed map, for the
	// traversal engine's template catalog and the context manager's
	// ranking queries.
	RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	// EnsureSchema applies every constraint/index DDL statement in
	// SchemaStatements, idempotently. Intended to run once at deploy
	// time (cmd/graphctl schema-init), not on every process start.
	EnsureSchema(ctx context.Context) error
	// Close releases the underlying driver.
	Close(ctx context.Context) error
}

// DefaultBatchSize mirrors neo4j_client.py's DEFAULT_BATCH_SIZE.
const DefaultBatchSize = ontology.DefaultBatchSize

// hotEdgeThreshold is the row count above which an edge type's batch is
// written in chunks of hotEdgeThreshold rows instead of the repository's
// batch size. The check counts all rows of the type; it does not look at
// how many rows share a destination node, and the smaller chunks still
// run alongside the other edge types' writes.
const hotEdgeThreshold = 50

type repository struct {
	driver    neo4j.DriverWithContext
	breaker   *resilience.CircuitBreaker
	logger    *logging.Logger
	metrics   *metrics.Metrics
	batchSize int
}

var _ Repository = (*repository)(nil)

// Option configures a Repository at construction time.
type Option func(*repository)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(r *repository) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// WithCircuitBreaker installs a pre-configured breaker instead of the
// default.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(r *repository) { r.breaker = cb }
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *repository) { r.metrics = m }
}

// New opens a Neo4j driver against uri and wraps it in a Repository.
func New(ctx context.Context, uri, username, password string, logger *logging.Logger, opts ...Option) (Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return newFromDriver(driver, logger, opts...), nil
}

// newFromDriver builds a Repository around an already-constructed driver,
// used directly by tests against a fake/embedded driver.
func newFromDriver(driver neo4j.DriverWithContext, logger *logging.Logger, opts ...Option) Repository {
	r := &repository{
		driver:    driver,
		breaker:   resilience.New(resilience.DefaultServiceCBConfig(logger)),
		logger:    logger,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// CommitTopology computes content hashes, partitions nodes from edges,
// writes the node types one at a time in ontology.NodeTypes order, and
// then writes the edge types concurrently, one goroutine per type, so
// that every ingestion run acquires node locks before edge locks.
func (r *repository) CommitTopology(ctx context.Context, entities []ontology.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	if err := stampContentHashes(entities); err != nil {
		return fmt.Errorf("compute content hashes: %w", err)
	}

	groups, err := ontology.GroupByType(entities)
	if err != nil {
		return err
	}

	return r.breaker.Execute(ctx, func() error {
		for _, typeName := range ontology.NodeTypes {
			if err := r.writeType(ctx, typeName, groups[typeName]); err != nil {
				return err
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, typeName := range ontology.EdgeTypes {
			typeName := typeName
			rows := groups[typeName]
			if len(rows) == 0 {
				continue
			}
			g.Go(func() error {
				return r.writeType(gctx, typeName, rows)
			})
		}
		return g.Wait()
	})
}

func (r *repository) writeType(ctx context.Context, typeName string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	query, ok := ontology.UnwindQueries[typeName]
	if !ok {
		return fmt.Errorf("no UNWIND query registered for %s; %d records would be dropped", typeName, len(rows))
	}

	start := time.Now()
	batchSize := r.batchSize
	if isHotEdgeBatch(typeName, rows) {
		// A large edge batch is written in smaller chunks; the chunks of
		// one type always run one after another, whatever their size.
		batchSize = hotEdgeThreshold
	}

	status := "success"
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordGraphWrite("", typeName, status, time.Since(start))
		}
	}()

	for _, chunk := range ontology.ChunkRows(rows, batchSize) {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"batch": chunk})
			return nil, err
		})
		closeErr := session.Close(ctx)
		if err != nil {
			status = "failed"
			if r.metrics != nil {
				r.metrics.GraphHotEdgeRetries.WithLabelValues("").Inc()
			}
			return fmt.Errorf("write batch for %s: %w", typeName, err)
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

// isHotEdgeBatch flags edge-row batches large enough that they are
// plausibly targeting a small number of supernode destinations (e.g. a
// shared KafkaTopic consumed by hundreds of services).
func isHotEdgeBatch(typeName string, rows []map[string]any) bool {
	return !ontology.IsNode(typeName) && len(rows) > hotEdgeThreshold
}

func stampContentHashes(entities []ontology.Entity) error {
	for _, e := range entities {
		hash, err := ontology.ComputeContentHash(e)
		if err != nil {
			// Edge types do not carry a content hash; that is expected.
			continue
		}
		setContentHash(e, hash)
	}
	return nil
}

func setContentHash(e ontology.Entity, hash string) {
	switch n := e.(type) {
	case *ontology.ServiceNode:
		n.ContentHash = hash
	case *ontology.DatabaseNode:
		n.ContentHash = hash
	case *ontology.KafkaTopicNode:
		n.ContentHash = hash
	case *ontology.K8sDeploymentNode:
		n.ContentHash = hash
	}
}
