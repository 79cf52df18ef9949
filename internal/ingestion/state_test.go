package ingestion

import (
	"testing"

	"github.com/R3E-Network/graphctl/internal/workspace"
)

func TestDeadLetterQueueEvictsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	q.Push([]workspace.File{{Path: "a.go"}})
	q.Push([]workspace.File{{Path: "b.go"}})
	q.Push([]workspace.File{{Path: "c.go"}})

	if got := q.Len(); got != 2 {
		t.Fatalf("expected length 2, got %d", got)
	}

	drained := q.Drain()
	if len(drained) != 2 || drained[0][0].Path != "b.go" || drained[1][0].Path != "c.go" {
		t.Fatalf("expected oldest entry evicted, got %+v", drained)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after drain, got %d", q.Len())
	}
}

func TestDeadLetterQueueClampsMaxLen(t *testing.T) {
	q := NewDeadLetterQueue(0)
	q.Push([]workspace.File{{Path: "a.go"}})
	q.Push([]workspace.File{{Path: "b.go"}})
	if q.Len() != 1 {
		t.Fatalf("expected clamp to 1, got %d", q.Len())
	}
}

func TestIngestionStateCloneIsIndependent(t *testing.T) {
	s := IngestionState{RawFiles: []workspace.File{{Path: "a.go"}}}
	clone := s.Clone()
	clone.RawFiles[0].Path = "mutated.go"
	if s.RawFiles[0].Path != "a.go" {
		t.Fatalf("clone mutation leaked into original: %+v", s.RawFiles)
	}
}
