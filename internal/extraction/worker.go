// Package extraction implements the staged-file extraction worker:
// bounded-concurrency processing of extraction-pending events fed by
// Kafka, with a staging-path traversal guard and content sanitization
// before handoff to the ingestion pipeline. Grounded on
// extraction_worker.py.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/internal/firewall"
)

// Event is one staged extraction-pending message, matching
// extraction_worker.py's ExtractionEvent.
type Event struct {
	StagingPath string
	Headers     map[string]string
}

// EventFromJSON parses the wire representation of an Event.
func EventFromJSON(raw []byte) (Event, error) {
	var wire struct {
		StagingPath string            `json:"staging_path"`
		Headers     map[string]string `json:"headers"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Event{}, fmt.Errorf("decode extraction event: %w", err)
	}
	return Event{StagingPath: wire.StagingPath, Headers: wire.Headers}, nil
}

// RawFile is the (path, content) pair handed to the ingestion pipeline.
type RawFile struct {
	Path    string
	Content string
}

// Result reports the outcome of processing one Event.
type Result struct {
	Status string
	Error  string
}

// IngestCallback hands a batch of raw files to the ingestion pipeline's
// load stage and reports back its outcome.
type IngestCallback func(ctx context.Context, files []RawFile) (Result, error)

// Config configures a Worker. DefaultMaxConcurrent and
// DefaultStagingDir mirror ExtractionWorkerConfig's field defaults.
type Config struct {
	MaxConcurrent int
	StagingDir    string
	MaxInputBytes int
}

// DefaultMaxConcurrent and DefaultStagingDir mirror
// ExtractionWorkerConfig's Python defaults.
const (
	DefaultMaxConcurrent = 5
	DefaultStagingDir    = "/tmp/graphrag-staging"
)

// Worker processes staged extraction events with bounded concurrency.
type Worker struct {
	cfg    Config
	ingest IngestCallback
	sem    chan struct{}
	logger *logging.Logger
}

// NewWorker builds a Worker. A zero Config.MaxConcurrent/StagingDir
// falls back to the package defaults.
func NewWorker(cfg Config, ingest IngestCallback, logger *logging.Logger) *Worker {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = DefaultStagingDir
	}
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = firewall.DefaultMaxInputBytes
	}
	return &Worker{
		cfg:    cfg,
		ingest: ingest,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		logger: logger,
	}
}

// ProcessEvent reads, sanitizes, and hands off one staged file,
// respecting the worker's concurrency bound. A path-traversal attempt
// or a missing/unreadable staging file fails closed without touching
// ingest.
func (w *Worker) ProcessEvent(ctx context.Context, event Event) (Result, error) {
	select {
	case w.sem <- struct{}{}:
		defer func() { <-w.sem }()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	if !w.isSafeStagingPath(event.StagingPath) {
		return Result{Status: "failed", Error: "path traversal detected"}, nil
	}

	content, err := w.readStagedFile(event.StagingPath)
	if err != nil {
		return Result{Status: "failed", Error: "staging file not found"}, nil
	}

	filePath := event.Headers["file_path"]
	if filePath == "" {
		filePath = event.StagingPath
	}
	sanitized, err := firewall.SanitizeSourceContentBudgeted(content, filePath, 0, w.cfg.MaxInputBytes)
	if err != nil {
		return Result{Status: "failed", Error: err.Error()}, nil
	}

	return w.ingest(ctx, []RawFile{{Path: filePath, Content: sanitized}})
}

func (w *Worker) isSafeStagingPath(path string) bool {
	stagingRoot, err := filepath.EvalSymlinks(w.cfg.StagingDir)
	if err != nil {
		stagingRoot = filepath.Clean(w.cfg.StagingDir)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = filepath.Clean(path)
	}
	return strings.HasPrefix(resolved, stagingRoot+string(os.PathSeparator))
}

func (w *Worker) readStagedFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error(context.Background(), "failed to read staged file", err, map[string]interface{}{"path": path})
		return "", err
	}
	return string(data), nil
}

// Run processes every event, collecting one Result per event in order.
// Unlike Python's asyncio.gather, a per-event error from ingest is
// folded into that event's Result rather than aborting the batch — one
// bad file must not block its siblings in the same batch.
func (w *Worker) Run(ctx context.Context, events []Event) []Result {
	results := make([]Result, len(events))
	done := make(chan struct{})
	for i, event := range events {
		i, event := i, event
		go func() {
			r, err := w.ProcessEvent(ctx, event)
			if err != nil {
				r = Result{Status: "failed", Error: err.Error()}
			}
			results[i] = r
			done <- struct{}{}
		}()
	}
	for range events {
		<-done
	}
	return results
}
