// Package errs defines the orchestrator's domain error taxonomy on top of
// infrastructure/errors' ServiceError, per SPEC_FULL.md section 7.
package errs

import (
	"net/http"

	svcerrors "github.com/R3E-Network/graphctl/infrastructure/errors"
)

const (
	CodeTenantScopeViolation       svcerrors.ErrorCode = "TENANT_8001"
	CodeSecurityViolation          svcerrors.ErrorCode = "TENANT_8002"
	CodeCircuitOpen                svcerrors.ErrorCode = "RESIL_8101"
	CodeIngestionDegraded          svcerrors.ErrorCode = "INGEST_8201"
	CodeIngestRejection            svcerrors.ErrorCode = "INGEST_8202"
	CodeContextBudgetExceeded      svcerrors.ErrorCode = "CTX_8301"
	CodeSanitizationBudgetExceeded svcerrors.ErrorCode = "CTX_8302"
)

// TenantScopeViolation reports a Cypher query that does not carry the
// required $tenant_id scoping, per I6.
func TenantScopeViolation(reason string) *svcerrors.ServiceError {
	return svcerrors.New(CodeTenantScopeViolation, reason, http.StatusBadRequest)
}

// SecurityViolation reports a query missing an ACL predicate or whose
// tenant_id parameter conflicts with the session's bound tenant.
func SecurityViolation(reason string) *svcerrors.ServiceError {
	return svcerrors.New(CodeSecurityViolation, reason, http.StatusBadRequest)
}

// CircuitOpen reports a breaker refusing calls while open.
func CircuitOpen(breaker string) *svcerrors.ServiceError {
	return svcerrors.New(CodeCircuitOpen, "circuit breaker is open", http.StatusServiceUnavailable).
		WithDetails("breaker", breaker)
}

// IngestionDegraded reports the AST worker fleet being unavailable; the
// retry-after value maps onto a collaborator HTTP layer's Retry-After
// header.
type IngestionDegradedError struct {
	*svcerrors.ServiceError
	RetryAfterSeconds int
}

func IngestionDegraded(retryAfterSeconds int, err error) *IngestionDegradedError {
	return &IngestionDegradedError{
		ServiceError:      svcerrors.Wrap(CodeIngestionDegraded, "AST worker fleet unavailable", http.StatusServiceUnavailable, err),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// IngestRejection reports a structurally invalid ingestion request: empty
// tenant, oversized input, or a path-traversal attempt.
func IngestRejection(reason string) *svcerrors.ServiceError {
	return svcerrors.New(CodeIngestRejection, reason, http.StatusBadRequest)
}

// ContextBudgetExceeded reports a context block that cannot be truncated
// below its token ceiling.
func ContextBudgetExceeded(tokens, budget int) *svcerrors.ServiceError {
	return svcerrors.New(CodeContextBudgetExceeded, "context exceeds token budget", http.StatusUnprocessableEntity).
		WithDetails("tokens", tokens).
		WithDetails("budget", budget)
}

// SanitizationBudgetExceeded reports untrusted input above max_input_bytes.
func SanitizationBudgetExceeded(size, max int) *svcerrors.ServiceError {
	return svcerrors.New(CodeSanitizationBudgetExceeded, "input exceeds sanitization byte budget", http.StatusRequestEntityTooLarge).
		WithDetails("size", size).
		WithDetails("max", max)
}

// Unauthorized reports a request missing required auth tokens while
// AUTH_REQUIRE_TOKENS is set; a collaborator HTTP layer maps this to 401
// or a fail-closed 503 depending on whether a secret is configured.
func Unauthorized(reason string) *svcerrors.ServiceError {
	return svcerrors.Unauthorized(reason)
}
