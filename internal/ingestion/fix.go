package ingestion

import (
	"context"

	"github.com/R3E-Network/graphctl/internal/obs"
	"github.com/R3E-Network/graphctl/internal/ontology"
)

// FixExtractor re-invokes the LLM extractor against the current raw
// files and validation errors, returning a fresh set of LLM-provenance
// entities. LLM provider SDKs are an out-of-scope external collaborator
// (spec.md section 1); this is the seam production code plugs a real
// extractor into.
type FixExtractor func(ctx context.Context, state IngestionState) ([]ontology.Entity, error)

// isManifestProvenance reports whether e was produced by the manifest
// parser rather than the LLM/AST extractor.
func isManifestProvenance(e ontology.Entity) bool {
	switch e.(type) {
	case *ontology.K8sDeploymentNode, *ontology.KafkaTopicNode:
		return true
	default:
		return false
	}
}

// isASTProvenance reports whether e carries the AST extractor's
// Confidence==1.0 marker (only ServiceNode carries a Confidence field).
func isASTProvenance(e ontology.Entity) bool {
	svc, ok := e.(*ontology.ServiceNode)
	return ok && svc.Confidence == 1.0
}

// FixExtractionErrors is the pipeline's fix_errors node: it re-invokes
// the LLM extractor and REPLACES only LLM-provenance entities in
// ExtractedNodes, while PRESERVING every manifest entity
// (K8sDeployment, KafkaTopic) and every AST-provenance entity
// (Confidence == 1.0) already accumulated. This is spec.md's stated
// behavior; the distilled prototype's fix_extraction_errors instead
// overwrites extracted_nodes wholesale — this module follows spec.md,
// not the prototype (see DESIGN.md for the documented divergence).
func FixExtractionErrors(extractor FixExtractor) func(ctx context.Context, state IngestionState) (IngestionState, error) {
	return func(ctx context.Context, state IngestionState) (IngestionState, error) {
		return obs.SpanValue(ctx, "ingestion.fix_errors", func(ctx context.Context) (IngestionState, error) {
			var preserved []ontology.Entity
			for _, e := range state.ExtractedNodes {
				if isManifestProvenance(e) || isASTProvenance(e) {
					preserved = append(preserved, e)
				}
			}

			fresh, err := extractor(ctx, state)
			if err != nil {
				return state, err
			}

			state.ExtractedNodes = append(preserved, fresh...)
			state.ValidationRetries++
			return state, nil
		})
	}
}
