// Package ingestion implements the ingestion pipeline DAG (SPEC_FULL.md
// section 4.8): load_workspace -> parse_source_ast -> parse_manifests ->
// validate_schema -> {fix_errors, commit} -> post_commit, grounded on
// graph_builder.py's LangGraph wiring and re-expressed as an explicit
// Go state machine rather than a graph-execution library (section 9's
// "async pipeline" re-architecture note: the state object is the spec).
package ingestion

import (
	"sync"

	"github.com/R3E-Network/graphctl/internal/ontology"
	"github.com/R3E-Network/graphctl/internal/workspace"
)

// MaxValidationRetries bounds the fix/validate self-loop before the
// pipeline commits whatever it has rather than looping forever.
const MaxValidationRetries = 3

// CommitStatus is the terminal outcome of the commit stage.
type CommitStatus string

const (
	CommitStatusPending CommitStatus = ""
	CommitStatusOK      CommitStatus = "committed"
	CommitStatusFailed  CommitStatus = "failed"
	CommitStatusSkipped CommitStatus = "skipped"
)

// IngestionState carries every DAG node's inputs and accumulated
// outputs, matching graph_builder.py's typed state dict field for
// field: RawFiles, ExtractedNodes (accumulating), ExtractionErrors,
// ValidationRetries, CommitStatus, TenantID, Namespace, SkippedFiles.
type IngestionState struct {
	TenantID  string
	Namespace string

	// DirectoryPath, when non-empty, tells LoadWorkspaceFiles to walk
	// the filesystem; when empty, RawFiles is expected pre-populated
	// (e.g. by the Kafka extraction-event consumer) and passes through
	// verbatim.
	DirectoryPath string
	RawFiles      []workspace.File

	ExtractedNodes    []ontology.Entity
	ExtractionErrors  []string
	ValidationRetries int
	SkippedFiles      []string

	IngestionID string
	CommitStatus CommitStatus

	// TombstonedNodeIDs is populated by PostCommit's stale-edge prune
	// and consumed by the cache-invalidation step.
	TombstonedNodeIDs []string
}

// Clone returns a deep-enough copy of s for use inside a retry loop,
// so a failed fix/validate cycle does not mutate the caller's original
// slices out from under concurrent readers.
func (s IngestionState) Clone() IngestionState {
	out := s
	out.RawFiles = append([]workspace.File(nil), s.RawFiles...)
	out.ExtractedNodes = append([]ontology.Entity(nil), s.ExtractedNodes...)
	out.ExtractionErrors = append([]string(nil), s.ExtractionErrors...)
	out.SkippedFiles = append([]string(nil), s.SkippedFiles...)
	out.TombstonedNodeIDs = append([]string(nil), s.TombstonedNodeIDs...)
	return out
}

// DeadLetterQueue is a bounded, oldest-evicting FIFO of AST-extraction
// payloads that could not be sent because the remote AST worker fleet
// was degraded, grounded on graph_builder.py's use of a bounded
// collections.deque for the same purpose.
type DeadLetterQueue struct {
	mu      sync.Mutex
	maxLen  int
	entries [][]workspace.File
}

// NewDeadLetterQueue builds a queue that evicts its oldest entry once
// more than maxLen payloads have been pushed. maxLen < 1 is clamped to
// 1: the spec requires the queue to exist even under pathological
// config, never to silently become unbounded.
func NewDeadLetterQueue(maxLen int) *DeadLetterQueue {
	if maxLen < 1 {
		maxLen = 1
	}
	return &DeadLetterQueue{maxLen: maxLen}
}

// Push appends a payload, evicting the oldest entry if the queue is
// already at capacity.
func (q *DeadLetterQueue) Push(files []workspace.File) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxLen {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, files)
}

// Len reports the current number of queued payloads.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Drain removes and returns every queued payload, oldest first.
func (q *DeadLetterQueue) Drain() [][]workspace.File {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.entries
	q.entries = nil
	return drained
}
