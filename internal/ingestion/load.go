package ingestion

import (
	"context"

	"github.com/R3E-Network/graphctl/internal/obs"
	"github.com/R3E-Network/graphctl/internal/workspace"
)

// LoadWorkspaceFiles is the pipeline's first DAG node: if
// state.DirectoryPath is non-empty it streams files via the chunked
// workspace loader; otherwise it passes a pre-populated RawFiles
// through verbatim, which is how the Kafka extraction-event consumer
// (internal/ingestion/bus) feeds single staged files into a run without
// a directory walk.
func LoadWorkspaceFiles(ctx context.Context, state IngestionState) (IngestionState, error) {
	return obs.SpanValue(ctx, "ingestion.load_workspace", func(ctx context.Context) (IngestionState, error) {
		if state.DirectoryPath == "" {
			obs.SetAttribute(ctx, "file_count", len(state.RawFiles))
			return state, nil
		}

		files, err := workspace.LoadDirectory(state.DirectoryPath)
		if err != nil {
			return state, err
		}
		state.RawFiles = files
		obs.SetAttribute(ctx, "file_count", len(files))
		return state, nil
	})
}
