// Package guard statically scans the repository's Go source for
// string-literal Cypher constants that skip tenant scoping, the Go
// equivalent of tenant_query_guard.py's CypherTenantGuard (which walks
// Python's ast module). It is a static check over source files, not a
// request-time filter; cmd/graphctl has no subcommand that runs it.
package guard

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/R3E-Network/graphctl/internal/tenant"
)

var cypherStatementPattern = regexp.MustCompile(`(?i)(?:^|\s)(?:` +
	`MATCH\s*[(\[]` +
	`|MERGE\s*[(\[]` +
	`|UNWIND\s+\$` +
	`|CREATE\s+(?:RANGE|VECTOR|FULLTEXT|TEXT|POINT|LOOKUP|CONSTRAINT)` +
	`|CALL\s+(?:db\.|dbms\.|apoc\.|gds\.)` +
	`)`)

// internalNodeLabels names node labels that represent orchestrator
// infrastructure rather than tenant data, exempt from the tenant_id
// requirement.
var internalNodeLabels = []string{"OutboxEvent", "_SchemaPointer"}

// LooksLikeCypher reports whether value is long enough and shaped enough
// to plausibly be a Cypher statement rather than an unrelated string
// literal, matching tenant_query_guard.py's _looks_like_cypher.
func LooksLikeCypher(value string) bool {
	if len(value) < 15 {
		return false
	}
	return cypherStatementPattern.MatchString(value)
}

// isExempt mirrors CypherTenantGuard._is_exempt: allowlisted, schema DDL,
// references to orchestrator-internal node labels, an interpolated
// template fragment, a partial query fragment, or an admin maintenance
// query, are all exempt from the tenant_id requirement.
func isExempt(query string) bool {
	if tenant.SchemaDDLAllowlist[query] || tenant.IsSchemaDDL(query) {
		return true
	}
	for _, label := range internalNodeLabels {
		if strings.Contains(query, label) {
			return true
		}
	}
	if strings.Contains(query, "$INTERPOLATED") {
		return true
	}
	trimmed := strings.TrimRight(query, " \t\n")
	if strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, "(") ||
		strings.HasSuffix(trimmed, ",") || strings.HasSuffix(trimmed, "[") {
		return true
	}
	return isAdminMaintenanceQuery(query)
}

var adminMaintenancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)tombstoned_at\s+IS\s+NOT\s+NULL.*DELETE\s+r`),
	regexp.MustCompile(`(?is)tombstoned_at\s+IS\s+NOT\s+NULL.*RETURN\s+DISTINCT`),
}

func isAdminMaintenanceQuery(query string) bool {
	for _, p := range adminMaintenancePatterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

// ScanQueries returns the subset of queries that reference tenant data
// without scoping to tenant_id.
func ScanQueries(queries map[string]struct{}) map[string]struct{} {
	violations := make(map[string]struct{})
	for query := range queries {
		if isExempt(query) {
			continue
		}
		if !tenant.ReferencesTenantID(query) {
			violations[query] = struct{}{}
		}
	}
	return violations
}

// ExtractCypherConstantsFromDir walks every .go file under dir and
// collects every string literal that looks like a Cypher statement,
// matching CypherTenantGuard.extract_cypher_constants_from_directory.
func ExtractCypherConstantsFromDir(dir string) (map[string]struct{}, error) {
	constants := make(map[string]struct{})
	fset := token.NewFileSet()

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		return extractFromFile(fset, path, constants)
	})
	if err != nil {
		return nil, err
	}
	return constants, nil
}

func extractFromFile(fset *token.FileSet, path string, out map[string]struct{}) error {
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		value := strings.Trim(lit.Value, "`\"")
		if LooksLikeCypher(value) {
			out[value] = struct{}{}
		}
		return true
	})
	return nil
}
