// Command graphctl is the orchestrator's operational entry point: a
// schema-init subcommand that applies the graph's DDL once per
// deployment, and an ingest subcommand that drives the ingestion
// pipeline over a workspace directory. The HTTP/RPC surface a
// collaborator service would expose over this module is out of scope
// (SPEC_FULL.md section 1); this binary exists so the module is
// runnable rather than a library fragment, matching the rest of this
// tree's cmd/ convention.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/graphctl/infrastructure/config"
	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/infrastructure/metrics"
	"github.com/R3E-Network/graphctl/internal/graphrepo"
	"github.com/R3E-Network/graphctl/internal/ingestion"
	"github.com/R3E-Network/graphctl/internal/lock"
	"github.com/R3E-Network/graphctl/internal/ontology"
	"github.com/R3E-Network/graphctl/internal/outbox"
	"github.com/R3E-Network/graphctl/internal/resolver"
	"github.com/R3E-Network/graphctl/internal/semcache"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := logging.Default()
	ctx := context.Background()

	switch os.Args[1] {
	case "schema-init":
		cmdSchemaInit(ctx, logger)
	case "ingest":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: graphctl ingest <directory>")
			os.Exit(1)
		}
		cmdIngest(ctx, logger, os.Args[2])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`graphctl - multi-tenant knowledge-graph orchestrator

Usage:
  graphctl schema-init        Apply graph constraints/indexes (idempotent)
  graphctl ingest <directory> Run the ingestion pipeline over a workspace

Environment:
  NEO4J_URI, NEO4J_USERNAME, NEO4J_PASSWORD   Graph database connection
  REDIS_URL                                   Lock/cache backend (ingest only)
  TENANT_ID, NAMESPACE                        Scope for ingest
  DEPLOYMENT_MODE                             development|production
  ONTOLOGY_FILE                               optional ACL annotation overrides`)
}

func newRepository(ctx context.Context, logger *logging.Logger) (graphrepo.Repository, error) {
	uri := config.RequireEnv("NEO4J_URI")
	user := config.GetEnv("NEO4J_USERNAME", "neo4j")
	password := config.RequireEnv("NEO4J_PASSWORD")
	return graphrepo.New(ctx, uri, user, password, logger)
}

func cmdSchemaInit(ctx context.Context, logger *logging.Logger) {
	repo, err := newRepository(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema-init: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close(ctx)

	if err := repo.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "schema-init: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("schema-init: applied")
}

func cmdIngest(ctx context.Context, logger *logging.Logger, directory string) {
	repo, err := newRepository(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close(ctx)

	redisOpts, err := redis.ParseURL(config.RequireEnv("REDIS_URL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	locker := lock.NewLocker(redisClient)
	cache := semcache.New(redisClient, metrics.New("graphctl"))
	memoryOutbox := outbox.NewMemoryOutbox()
	mode := ingestion.ModeDevelopment
	if config.GetEnv("DEPLOYMENT_MODE", "development") == "production" {
		mode = ingestion.ModeProduction
	}

	overrides := ontology.Overrides{}
	if ontologyFile := config.GetEnv("ONTOLOGY_FILE", ""); ontologyFile != "" {
		loaded, err := ontology.LoadOverrides(ontologyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
			os.Exit(1)
		}
		overrides = loaded
	}

	pipeline := ingestion.New(
		ingestion.LoadWorkspaceFiles,
		ingestion.ParseSourceAST(ingestion.ASTConfig{}, ingestion.NewDeadLetterQueue(64)),
		ingestion.ParseManifests(logger, overrides),
		nil,
		ingestion.CommitToNeo4j(repo, locker, logger),
		ingestion.PostCommit(ingestion.PostCommitConfig{
			Repo:   repo,
			Memory: memoryOutbox,
			Cache:  cache,
			Mode:   mode,
			MaxAge: ingestion.DefaultStaleEdgeWindow,
		}, logger),
		resolver.NewEntityResolver(0.85),
		logger,
	)

	state := ingestion.IngestionState{
		TenantID:      config.RequireEnv("TENANT_ID"),
		Namespace:     config.GetEnv("NAMESPACE", "default"),
		DirectoryPath: directory,
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	out, err := pipeline.Run(runCtx, state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ingest: commit_status=%s ingestion_id=%s entities=%d\n", out.CommitStatus, out.IngestionID, len(out.ExtractedNodes))
}
