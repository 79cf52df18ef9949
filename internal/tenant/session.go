// Package tenant enforces that every data-plane Cypher query issued by
// the orchestrator is scoped to the tenant that issued it, and exposes
// the ACL-aware query builders used by the traversal engine. Grounded on
// tenant_query_guard.py and tenant_security.py.
package tenant

import (
	"regexp"
	"strings"

	"github.com/R3E-Network/graphctl/internal/errs"
)

var tenantIDReference = regexp.MustCompile(`\$tenant_id|tenant_id\s*[:=]`)

var (
	indexPrefix      = regexp.MustCompile(`(?i)^\s*CREATE\s+(RANGE\s+|VECTOR\s+|FULLTEXT\s+|TEXT\s+|POINT\s+|LOOKUP\s+)?INDEX\b`)
	constraintPrefix = regexp.MustCompile(`(?i)^\s*CREATE\s+CONSTRAINT\b`)
	schemaCallPrefix = regexp.MustCompile(`(?i)^\s*CALL\s+(db\.|dbms\.|gds\.)`)
	dropPrefix       = regexp.MustCompile(`(?i)^\s*DROP\s+(INDEX|CONSTRAINT)\b`)
)

// SchemaDDLAllowlist enumerates the fixed set of schema-maintenance
// statements exempt from tenant scoping, matching
// tenant_query_guard.py's SCHEMA_DDL_ALLOWLIST.
var SchemaDDLAllowlist = map[string]bool{
	"CREATE RANGE INDEX tombstone_calls_idx IF NOT EXISTS FOR ()-[r:CALLS]-() ON (r.tombstoned_at)":               true,
	"CREATE RANGE INDEX tombstone_produces_idx IF NOT EXISTS FOR ()-[r:PRODUCES]-() ON (r.tombstoned_at)":         true,
	"CREATE RANGE INDEX tombstone_consumes_idx IF NOT EXISTS FOR ()-[r:CONSUMES]-() ON (r.tombstoned_at)":         true,
	"CREATE RANGE INDEX tombstone_deployed_in_idx IF NOT EXISTS FOR ()-[r:DEPLOYED_IN]-() ON (r.tombstoned_at)":   true,
	"CALL dbms.components() YIELD edition RETURN edition":                                                        true,
}

// IsSchemaDDL reports whether query is a schema-maintenance statement
// (index/constraint creation or drop, or a db./dbms./gds. procedure
// call) that never touches tenant-scoped data and so is exempt from the
// tenant_id requirement.
func IsSchemaDDL(query string) bool {
	stripped := strings.TrimSpace(query)
	return indexPrefix.MatchString(stripped) ||
		constraintPrefix.MatchString(stripped) ||
		schemaCallPrefix.MatchString(stripped) ||
		dropPrefix.MatchString(stripped)
}

// ReferencesTenantID reports whether query binds or filters on
// tenant_id, either as a parameter reference ($tenant_id) or a literal
// property comparison (tenant_id: ... / tenant_id = ...).
func ReferencesTenantID(query string) bool {
	return tenantIDReference.MatchString(query)
}

// ScopedSession binds every query issued through it to a single tenant,
// rejecting any query that does not reference tenant_id and any
// parameter set that tries to address a different tenant. Grounded on
// tenant_query_guard.py's TenantScopedSession.
type ScopedSession struct {
	tenantID  string
	allowlist map[string]bool
}

// NewScopedSession returns a session bound to tenantID. A nil allowlist
// falls back to SchemaDDLAllowlist.
func NewScopedSession(tenantID string, allowlist map[string]bool) *ScopedSession {
	if allowlist == nil {
		allowlist = SchemaDDLAllowlist
	}
	return &ScopedSession{tenantID: tenantID, allowlist: allowlist}
}

// TenantID returns the tenant this session is bound to.
func (s *ScopedSession) TenantID() string { return s.tenantID }

// ValidateQuery checks query against the tenant-scoping rule and returns
// params with tenant_id filled in (or verified) for the caller to pass
// through to the driver. It never mutates the caller's map.
func (s *ScopedSession) ValidateQuery(query string, params map[string]any) (map[string]any, error) {
	if s.allowlist[query] || IsSchemaDDL(query) {
		return cloneParams(params), nil
	}

	if !ReferencesTenantID(query) {
		return nil, errs.TenantScopeViolation(
			"Cypher query does not reference $tenant_id and is not on the schema DDL allowlist. " +
				"All data queries must include tenant_id scoping to prevent cross-tenant data leakage.")
	}

	result := cloneParams(params)
	existing, has := result["tenant_id"]
	if has && existing != s.tenantID {
		return nil, errs.TenantScopeViolation(
			"tenant_id parameter mismatch: session bound to one tenant but query supplies another; cross-tenant access blocked")
	}
	if !has {
		result["tenant_id"] = s.tenantID
	}
	return result, nil
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
