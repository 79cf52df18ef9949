package ingestion

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/graphctl/infrastructure/resilience"
	"github.com/R3E-Network/graphctl/internal/astclient"
	"github.com/R3E-Network/graphctl/internal/errs"
	"github.com/R3E-Network/graphctl/internal/ontology"
	"github.com/R3E-Network/graphctl/internal/workspace"
)

func TestResolveWorkerCountClampsToCeiling(t *testing.T) {
	cfg := ASTConfig{PoolWorkers: 1000}
	if got := cfg.ResolveWorkerCount(); got > DefaultASTPoolCeiling {
		t.Fatalf("expected worker count clamped to ceiling %d, got %d", DefaultASTPoolCeiling, got)
	}
}

func TestResolveWorkerCountDefaultsWhenUnset(t *testing.T) {
	cfg := ASTConfig{}
	if got := cfg.ResolveWorkerCount(); got < 1 {
		t.Fatalf("expected at least one worker, got %d", got)
	}
}

type fakeTransport struct {
	results []astclient.RemoteASTResult
	err     error
	calls   int
}

func (f *fakeTransport) SendBatch(ctx context.Context, requests []astclient.FileRequest) ([]astclient.RemoteASTResult, error) {
	f.calls++
	return f.results, f.err
}

func TestParseSourceASTRemoteConvertsResults(t *testing.T) {
	transport := &fakeTransport{results: []astclient.RemoteASTResult{
		{FilePath: "svc/checkout/main.go", Language: "go", PackageName: "checkout", ServiceHints: []string{"http-server"}},
	}}
	client := astclient.NewClient(astclient.Config{Endpoint: "ast.internal:443"}, transport, resilience.New(resilience.DefaultServiceCBConfig(nil)))

	cfg := ASTConfig{UseRemoteAST: true, RemoteClient: client, RemoteRateLimit: rate.Inf}
	dlq := NewDeadLetterQueue(4)

	state := IngestionState{
		TenantID: "tenant-a",
		RawFiles: []workspace.File{{Path: "svc/checkout/main.go", Content: "package checkout"}},
	}
	out, err := ParseSourceAST(cfg, dlq)(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ExtractedNodes) != 1 {
		t.Fatalf("expected one extracted service node, got %+v", out.ExtractedNodes)
	}
	if dlq.Len() != 0 {
		t.Fatalf("expected nothing dead-lettered on a successful remote call")
	}
}

func TestParseSourceASTRemoteDeadLettersOnFailure(t *testing.T) {
	boom := errors.New("ast service unavailable")
	transport := &fakeTransport{err: boom}
	client := astclient.NewClient(astclient.Config{Endpoint: "ast.internal:443"}, transport, resilience.New(resilience.DefaultServiceCBConfig(nil)))

	cfg := ASTConfig{UseRemoteAST: true, RemoteClient: client}
	dlq := NewDeadLetterQueue(4)

	state := IngestionState{
		RawFiles: []workspace.File{{Path: "svc/checkout/main.go", Content: "package checkout"}},
	}
	_, err := ParseSourceAST(cfg, dlq)(context.Background(), state)
	if err == nil {
		t.Fatalf("expected an IngestionDegraded error on remote failure")
	}
	var degraded *errs.IngestionDegradedError
	if !errors.As(err, &degraded) {
		t.Fatalf("expected errs.IngestionDegradedError, got %T: %v", err, err)
	}
	if dlq.Len() != 1 {
		t.Fatalf("expected the failed batch pushed to the dead-letter queue, got len %d", dlq.Len())
	}
}

func TestParseSourceASTLocalDispatchesToExtractor(t *testing.T) {
	extractor := func(ctx context.Context, f workspace.File, tenantID string) (astclient.ExtractionResult, error) {
		return astclient.ExtractionResult{
			Services: []*ontology.ServiceNode{{ID: f.Path, Name: f.Path, TenantID_: tenantID, Confidence: 1.0}},
		}, nil
	}
	cfg := ASTConfig{PoolWorkers: 2, LocalExtractor: extractor}

	state := IngestionState{
		TenantID: "tenant-a",
		RawFiles: []workspace.File{
			{Path: "a.go", Content: "package a"},
			{Path: "b.go", Content: "package b"},
		},
	}
	out, err := ParseSourceAST(cfg, nil)(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ExtractedNodes) != 2 {
		t.Fatalf("expected both files extracted, got %+v", out.ExtractedNodes)
	}
}

func TestParseSourceASTLocalRecordsSkippedFilesOnExtractorError(t *testing.T) {
	boom := errors.New("parse failed")
	extractor := func(ctx context.Context, f workspace.File, tenantID string) (astclient.ExtractionResult, error) {
		return astclient.ExtractionResult{}, boom
	}
	cfg := ASTConfig{PoolWorkers: 1, LocalExtractor: extractor}

	state := IngestionState{RawFiles: []workspace.File{{Path: "broken.go", Content: "???"}}}
	out, err := ParseSourceAST(cfg, nil)(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.SkippedFiles) != 1 || out.SkippedFiles[0] != "broken.go" {
		t.Fatalf("expected broken.go recorded as skipped, got %+v", out.SkippedFiles)
	}
}
