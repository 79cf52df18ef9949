package ingestion

import (
	"context"

	"github.com/R3E-Network/graphctl/internal/obs"
	"github.com/R3E-Network/graphctl/internal/validate"
)

// ValidateSchema is the pipeline's fourth DAG node: it runs the
// referential-integrity validator (section 4.9) over every extracted
// entity and records the resulting error strings on the state.
func ValidateSchema(ctx context.Context, state IngestionState) (IngestionState, error) {
	return obs.SpanValue(ctx, "ingestion.validate_schema", func(ctx context.Context) (IngestionState, error) {
		state.ExtractionErrors = validate.ValidateTopology(state.ExtractedNodes)
		obs.SetAttribute(ctx, "extraction_error_count", len(state.ExtractionErrors))
		return state, nil
	})
}

// routeDecision is RouteValidation's verdict: which DAG edge to follow
// out of validate_schema.
type routeDecision string

const (
	routeToFix    routeDecision = "fix"
	routeToCommit routeDecision = "commit"
)

// RouteValidation implements the conditional edge out of validate_schema:
// no errors commits immediately; errors under the retry ceiling loop
// back to fix_errors; errors at or past the ceiling commit anyway
// (spec.md section 4.8's explicit "else -> commit" fallthrough — a
// pipeline that can never commit a persistently-broken extraction would
// starve the tenant's graph of any data at all).
func RouteValidation(state IngestionState) routeDecision {
	if len(state.ExtractionErrors) == 0 {
		return routeToCommit
	}
	if state.ValidationRetries < MaxValidationRetries {
		return routeToFix
	}
	return routeToCommit
}
