package ingestion

import (
	"context"

	"github.com/google/uuid"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/internal/obs"
	"github.com/R3E-Network/graphctl/internal/resolver"
)

// Stage is one DAG node: a pure function from state to updated state.
type Stage func(ctx context.Context, state IngestionState) (IngestionState, error)

// Pipeline wires every DAG node named in SPEC_FULL.md section 4.8:
//
//	load_workspace -> parse_source_ast -> parse_manifests ->
//	validate_schema -> {fix_errors, commit} -> post_commit
//
// grounded on graph_builder.py's LangGraph wiring, re-expressed as an
// explicit state machine per section 9's re-architecture note: retries
// are a self-loop bounded by ValidationRetries, not a hidden library
// mechanism.
type Pipeline struct {
	load       Stage
	parseAST   Stage
	manifests  Stage
	fix        Stage
	commit     Stage
	postCommit Stage
	resolver   *resolver.EntityResolver
	logger     *logging.Logger
}

// New builds a Pipeline from its stage functions. Any nil stage is
// replaced with a no-op passthrough so partially-configured pipelines
// (e.g. in tests exercising only the load/validate stages) do not panic.
func New(load, parseAST, manifests, fix, commit, postCommit Stage, entityResolver *resolver.EntityResolver, logger *logging.Logger) *Pipeline {
	noop := func(ctx context.Context, s IngestionState) (IngestionState, error) { return s, nil }
	p := &Pipeline{
		load:       load,
		parseAST:   parseAST,
		manifests:  manifests,
		fix:        fix,
		commit:     commit,
		postCommit: postCommit,
		resolver:   entityResolver,
		logger:     logger,
	}
	for _, s := range []*Stage{&p.load, &p.parseAST, &p.manifests, &p.fix, &p.commit, &p.postCommit} {
		if *s == nil {
			*s = noop
		}
	}
	return p
}

// Run drives state through every DAG node to completion, looping the
// fix_errors <-> validate_schema self-loop up to MaxValidationRetries
// times before committing unconditionally. A degraded AST worker fleet
// (errs.IngestionDegradedError) or a commit failure stops the run early
// and is returned to the caller without running post_commit — a
// collaborator HTTP layer maps the returned error onto the appropriate
// status code (spec.md section 6).
func (p *Pipeline) Run(ctx context.Context, state IngestionState) (IngestionState, error) {
	if state.IngestionID == "" {
		state.IngestionID = uuid.NewString()
	}
	obs.SetAttribute(ctx, "tenant_id", state.TenantID)
	obs.SetAttribute(ctx, "ingestion_id", state.IngestionID)

	state, err := p.load(ctx, state)
	if err != nil {
		return state, err
	}

	state, err = p.parseAST(ctx, state)
	if err != nil {
		return state, err
	}

	state, err = p.manifests(ctx, state)
	if err != nil {
		return state, err
	}

	if p.resolver != nil {
		state.ExtractedNodes = p.resolver.ResolveEntities(state.ExtractedNodes)
	}

	for {
		state, err = ValidateSchema(ctx, state)
		if err != nil {
			return state, err
		}

		if RouteValidation(state) == routeToCommit {
			break
		}

		state, err = p.fix(ctx, state)
		if err != nil {
			return state, err
		}

		if p.resolver != nil {
			state.ExtractedNodes = p.resolver.ResolveEntities(state.ExtractedNodes)
		}
	}

	state, err = p.commit(ctx, state)
	if err != nil {
		return state, err
	}
	if state.CommitStatus != CommitStatusOK {
		return state, nil
	}

	return p.postCommit(ctx, state)
}
