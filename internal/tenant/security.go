package tenant

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/R3E-Network/graphctl/internal/errs"
)

// AllowedRelationshipTypes enumerates every relationship type the
// traversal engine is permitted to expand across, matching
// query_templates.py's ALLOWED_RELATIONSHIP_TYPES and ontology.EdgeTypes'
// Cypher relationship names.
var AllowedRelationshipTypes = map[string]bool{
	"CALLS":       true,
	"PRODUCES":    true,
	"CONSUMES":    true,
	"DEPLOYED_IN": true,
}

var aclMarkers = []string{"$is_admin", "$acl_team", "$acl_namespaces", "team_owner", "namespace_acl"}

var matchClausePattern = regexp.MustCompile(`(?i)MATCH\s*\(`)

// SecurityProvider validates that a Cypher query carries both tenant
// scoping and ACL enforcement before it reaches the driver. Grounded on
// tenant_security.py's TenantSecurityProvider.
type SecurityProvider struct{}

// NewSecurityProvider returns a ready-to-use provider; it is stateless.
func NewSecurityProvider() *SecurityProvider { return &SecurityProvider{} }

// ValidateQuery checks that params carries a non-empty tenant_id, that
// cypher references tenant_id, that every MATCH clause's scope is
// reachable from a tenant_id filter, and (when requireACL is true) that
// cypher carries at least one ACL-enforcement marker.
func (p *SecurityProvider) ValidateQuery(cypher string, params map[string]any, requireACL bool) error {
	tenantID, _ := params["tenant_id"].(string)
	if tenantID == "" {
		return errs.SecurityViolation("tenant_id parameter is missing or empty")
	}
	if !strings.Contains(cypher, "tenant_id") {
		return errs.SecurityViolation("query does not reference tenant_id")
	}
	if !validateACLCoverage(cypher) {
		return errs.SecurityViolation("tenant_id filter missing from one or more MATCH scopes")
	}
	if requireACL && !hasACLMarker(cypher) {
		return errs.SecurityViolation("query does not contain ACL enforcement clause")
	}
	return nil
}

func hasACLMarker(cypher string) bool {
	for _, marker := range aclMarkers {
		if strings.Contains(cypher, marker) {
			return true
		}
	}
	return false
}

// validateACLCoverage checks that tenant_id appears at least once
// between each MATCH clause and the next, a conservative approximation
// of cypher_ast.validate_acl_coverage's clause-scoped check: every
// traversal hop must be filtered by tenant_id somewhere in its scope,
// not just once anywhere in the whole query string.
func validateACLCoverage(cypher string) bool {
	matches := matchClausePattern.FindAllStringIndex(cypher, -1)
	if len(matches) == 0 {
		return strings.Contains(cypher, "tenant_id")
	}
	for i, m := range matches {
		start := m[0]
		end := len(cypher)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if !strings.Contains(cypher[start:end], "tenant_id") {
			return false
		}
	}
	return true
}

func aclWhereFragment() string {
	return aclWhereFragmentFor("target")
}

func aclWhereFragmentFor(alias string) string {
	return fmt.Sprintf("AND ($is_admin OR %s.team_owner = $acl_team "+
		"OR ANY(ns IN %s.namespace_acl WHERE ns IN $acl_namespaces)) ", alias, alias)
}

// ACLWhereFragment is the exported form of the ACL predicate fragment
// every traversal-engine template embeds, scoped to alias (the Cypher
// variable bound to the node the predicate checks). skipACL returns an
// empty string instead: the physical-isolation optimization (SPEC_FULL.md
// section 4.11's "skip-ACL optimization") omits the predicate entirely
// when tenant isolation is already enforced at the database-routing
// layer.
func ACLWhereFragment(alias string, skipACL bool) string {
	if skipACL {
		return ""
	}
	return aclWhereFragmentFor(alias)
}

// BuildTraversalOneHop renders the single-hop ACL-scoped traversal
// template for relType. Grounded on tenant_security.py's
// build_traversal_one_hop.
func BuildTraversalOneHop(relType string) (string, error) {
	if !AllowedRelationshipTypes[relType] {
		return "", fmt.Errorf("disallowed relationship type: %s", relType)
	}
	return "MATCH (source {id: $source_id, tenant_id: $tenant_id})" +
		fmt.Sprintf("-[r:%s]->(target) ", relType) +
		"WHERE target.tenant_id = $tenant_id " +
		"AND r.tombstoned_at IS NULL " +
		aclWhereFragment() +
		"RETURN target {.*} AS result, type(r) AS rel_type " +
		"LIMIT $limit", nil
}

// BuildTraversalNeighborDiscovery renders the any-relationship
// neighbor-discovery template used when the caller has not narrowed to a
// specific relationship type.
func BuildTraversalNeighborDiscovery() string {
	return "MATCH (source {id: $source_id, tenant_id: $tenant_id})" +
		"-[r]->(target) " +
		"WHERE target.tenant_id = $tenant_id " +
		"AND r.tombstoned_at IS NULL " +
		aclWhereFragment() +
		"RETURN target.id AS target_id, target.name AS target_name, " +
		"type(r) AS rel_type, labels(target)[0] AS target_label " +
		"ORDER BY coalesce(target.pagerank, 0) DESC, " +
		"coalesce(target.degree, 0) DESC, target.id " +
		"LIMIT $limit"
}

// BuildTraversalSampledNeighbor renders the supernode-sampling variant of
// the neighbor-discovery template, ordered identically but bounded by
// $sample_size instead of $limit.
func BuildTraversalSampledNeighbor() string {
	return "MATCH (source {id: $source_id, tenant_id: $tenant_id})" +
		"-[r]->(target) " +
		"WHERE target.tenant_id = $tenant_id AND r.tombstoned_at IS NULL " +
		aclWhereFragment() +
		"RETURN target.id AS target_id, target.name AS target_name, " +
		"type(r) AS rel_type, labels(target)[0] AS target_label " +
		"ORDER BY coalesce(target.pagerank, 0) DESC, " +
		"coalesce(target.degree, 0) DESC, target.id " +
		"LIMIT $sample_size"
}

// BuildTraversalBatchedNeighbor renders the frontier-batched variant used
// by the BATCHED_BFS strategy: one query expands every node in the
// current frontier at once via UNWIND, instead of one query per node.
// perSourceLimit caps how many neighbors a single frontier source may
// contribute, via WITH/COLLECT, so one high-degree source in an
// otherwise-normal-degree frontier cannot dominate the merged result;
// skipACL honors the physical-isolation optimization.
func BuildTraversalBatchedNeighbor(perSourceLimit int, skipACL bool) string {
	return fmt.Sprintf(`UNWIND $frontier_ids AS fid
MATCH (source {id: fid, tenant_id: $tenant_id})-[r]->(target)
WHERE target.tenant_id = $tenant_id AND r.tombstoned_at IS NULL
%sWITH source, r, target
ORDER BY coalesce(target.pagerank, 0) DESC, coalesce(target.degree, 0) DESC
WITH source, collect({rel: r, target: target})[0..%d] AS capped
UNWIND capped AS row
RETURN source.id AS source_id, row.target.id AS target_id,
       row.target.name AS target_name, type(row.rel) AS rel_type,
       labels(row.target)[0] AS target_label,
       coalesce(row.target.pagerank, 0) AS pagerank,
       coalesce(row.target.degree, 0) AS degree
ORDER BY pagerank DESC, degree DESC
LIMIT $limit`, ACLWhereFragment("target", skipACL), perSourceLimit)
}

// BuildBatchCheckDegrees renders the single-query degree lookup the
// BATCHED_BFS strategy uses to split a frontier into normal-degree and
// supernode ids before expanding either group, grounded on
// agentic_traversal.py's batch_check_degrees.
func BuildBatchCheckDegrees() string {
	return "UNWIND $node_ids AS nid " +
		"MATCH (n {id: nid, tenant_id: $tenant_id}) " +
		"RETURN n.id AS node_id, coalesce(n.degree, 0) AS degree"
}

// BuildTraversalBoundedPath renders the BOUNDED_CYPHER strategy's single
// variable-length-path statement: one query expands up to maxHops from
// the start node and returns at most maxNodes results, ACL- and
// tombstone-filtered, ordered deterministically.
func BuildTraversalBoundedPath(maxHops int, skipACL bool) string {
	return fmt.Sprintf(`MATCH (source {id: $source_id, tenant_id: $tenant_id})
-[r*1..%d]->(target)
WHERE target.tenant_id = $tenant_id
AND ALL(rel IN r WHERE rel.tombstoned_at IS NULL)
%sRETURN DISTINCT target.id AS target_id, target.name AS target_name,
       labels(target)[0] AS target_label,
       coalesce(target.pagerank, 0) AS pagerank,
       coalesce(target.degree, 0) AS degree
ORDER BY pagerank DESC, degree DESC, target_id ASC
LIMIT $max_nodes`, maxHops, ACLWhereFragment("target", skipACL))
}

// BuildTraversalSampledNeighborCapped is BuildTraversalSampledNeighbor
// parameterized by skipACL, used by the supernode sampling path when
// physical tenant isolation makes the ACL predicate redundant.
func BuildTraversalSampledNeighborCapped(skipACL bool) string {
	return "MATCH (source {id: $source_id, tenant_id: $tenant_id})" +
		"-[r]->(target) " +
		"WHERE target.tenant_id = $tenant_id AND r.tombstoned_at IS NULL " +
		ACLWhereFragment("target", skipACL) +
		"RETURN target.id AS target_id, target.name AS target_name, " +
		"type(r) AS rel_type, labels(target)[0] AS target_label, " +
		"coalesce(target.pagerank, 0) AS pagerank, " +
		"coalesce(target.degree, 0) AS degree, " +
		"coalesce(target.embedding, []) AS embedding " +
		"ORDER BY coalesce(target.pagerank, 0) DESC, " +
		"coalesce(target.degree, 0) DESC, target.id " +
		"LIMIT $sample_size"
}

// BuildAPOCNodesQuery renders the node half of the two-query
// procedure-based APOC expansion strategy: every node reachable from
// source within maxHops, via apoc.path.subgraphNodes, ACL- and
// tombstone-filtered.
func BuildAPOCNodesQuery(maxHops int, skipACL bool) string {
	return fmt.Sprintf(`MATCH (source {id: $source_id, tenant_id: $tenant_id})
CALL apoc.path.subgraphNodes(source, {
  maxLevel: %d,
  relationshipFilter: $rel_filter,
  labelFilter: $label_filter
}) YIELD node AS target
WHERE target.tenant_id = $tenant_id
%sRETURN target.id AS target_id, target.name AS target_name,
       labels(target)[0] AS target_label,
       coalesce(target.pagerank, 0) AS pagerank,
       coalesce(target.degree, 0) AS degree
LIMIT $max_nodes`, maxHops, ACLWhereFragment("target", skipACL))
}

// BuildAPOCEdgesQuery renders the relationship half of the APOC
// expansion strategy: every non-tombstoned relationship among the node
// set BuildAPOCNodesQuery already returned, so the traversal engine can
// drop edges whose endpoints fell outside that set.
func BuildAPOCEdgesQuery(maxHops int) string {
	return fmt.Sprintf(`MATCH (source {id: $source_id, tenant_id: $tenant_id})
CALL apoc.path.subgraphAll(source, {
  maxLevel: %d,
  relationshipFilter: $rel_filter,
  labelFilter: $label_filter
}) YIELD relationships
UNWIND relationships AS r
WITH r WHERE r.tombstoned_at IS NULL
RETURN DISTINCT startNode(r).id AS source_id, endNode(r).id AS target_id,
       type(r) AS rel_type`, maxHops)
}
