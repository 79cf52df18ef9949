// Package resolver implements entity resolution: scoped identity
// (repository, namespace, name), name normalization, and
// attribute-similarity merging across ingestion runs and repositories,
// grounded on entity_resolver.py.
package resolver

import (
	"strings"

	"github.com/R3E-Network/graphctl/internal/ontology"
)

const scopeSeparator = "::"

// ScopedEntityId identifies an entity by the repository and namespace
// it was extracted from plus its local name, so that two services named
// "auth" in unrelated repositories never collide.
type ScopedEntityId struct {
	Repository string
	Namespace  string
	Name       string
}

// String formats "repository::namespace::name".
func (s ScopedEntityId) String() string {
	return s.Repository + scopeSeparator + s.Namespace + scopeSeparator + s.Name
}

// ScopedEntityIdFromString parses the String() format. An input with no
// scopeSeparator is treated as a legacy unscoped id: Repository and
// Namespace are empty, Name is the whole input.
func ScopedEntityIdFromString(s string) ScopedEntityId {
	parts := strings.Split(s, scopeSeparator)
	if len(parts) != 3 {
		return ScopedEntityId{Name: s}
	}
	return ScopedEntityId{Repository: parts[0], Namespace: parts[1], Name: parts[2]}
}

// ResolveEntityID builds the stable graph-node id for (name, repository,
// namespace). Two calls with the same repository and name always
// produce the same id; an empty repository falls back to a namespace
// implied solely by name, so standalone (non-repository-scoped)
// ingestion runs still produce a valid id.
func ResolveEntityID(name, repository, namespace string) string {
	if repository == "" {
		if namespace == "" {
			return name
		}
		return namespace + scopeSeparator + name
	}
	return ScopedEntityId{Repository: repository, Namespace: namespace, Name: name}.String()
}

// NormalizeName strips characters that commonly vary between otherwise
// equivalent service names (hyphens, underscores, dots) and lowercases,
// matching entity_resolver.py's normalize_name.
func NormalizeName(name string) string {
	replacer := strings.NewReplacer("-", "", "_", "", ".", "")
	return strings.ToLower(replacer.Replace(name))
}

// NameSimilarity returns 1.0 for names that normalize identically,
// otherwise a Levenshtein-distance-based ratio in [0, 1) over the
// normalized forms.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == nb {
		return 1.0
	}
	dist := levenshtein(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 1.0
	}
	ratio := 1.0 - float64(dist)/float64(maxLen)
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// ComputeSimilarity scores two attribute maps by the fraction of keys
// (across the union of both maps) whose values agree, matching
// entity_resolver.py's compute_similarity. Two empty maps are
// considered identical.
func ComputeSimilarity(a, b map[string]string) float64 {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	if len(keys) == 0 {
		return 1.0
	}
	matches := 0
	for k := range keys {
		if av, ok := a[k]; ok {
			if bv, ok2 := b[k]; ok2 && av == bv {
				matches++
			}
		}
	}
	return float64(matches) / float64(len(keys))
}

// ResolveResult is returned by EntityResolver.Resolve.
type ResolveResult struct {
	ResolvedID   string
	IsNew        bool
	ResolvedFrom *ScopedEntityId
}

type resolvedEntry struct {
	scoped     ScopedEntityId
	attributes map[string]string
}

// EntityResolver deduplicates entities seen across ingestion runs,
// merging same-repository exact-name matches unconditionally and,
// when configured with a name similarity threshold, fuzzy cross-
// repository matches whose names and attributes both clear their
// thresholds. Grounded on entity_resolver.py's EntityResolver.
//
// disableFuzzyMatch mirrors the Python default of not wiring
// name_similarity_threshold: fuzzy cross-scope matching only activates
// once a caller explicitly opts in via WithNameSimilarityThreshold,
// matching TestEntityResolver.test_same_name_different_repo_separate
// (same name, different repo, no explicit fuzzy threshold => treated as
// distinct entities).
type EntityResolver struct {
	threshold            float64
	nameSimilarityThresh float64
	fuzzyEnabled         bool
	entries              []resolvedEntry
}

// Option configures an EntityResolver.
type Option func(*EntityResolver)

// WithNameSimilarityThreshold enables cross-scope fuzzy name matching at
// the given threshold.
func WithNameSimilarityThreshold(threshold float64) Option {
	return func(r *EntityResolver) {
		r.nameSimilarityThresh = threshold
		r.fuzzyEnabled = true
	}
}

// NewEntityResolver builds a resolver requiring attribute similarity
// >= threshold for any fuzzy merge.
func NewEntityResolver(threshold float64, opts ...Option) *EntityResolver {
	r := &EntityResolver{threshold: threshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves one entity occurrence against everything seen so
// far, returning whether it was merged into an existing entity.
func (r *EntityResolver) Resolve(name, repository, namespace string, attributes map[string]string) ResolveResult {
	scoped := ScopedEntityId{Repository: repository, Namespace: namespace, Name: name}

	for i, entry := range r.entries {
		if entry.scoped == scoped {
			found := r.entries[i].scoped
			return ResolveResult{ResolvedID: found.String(), IsNew: false, ResolvedFrom: &found}
		}
	}

	if r.fuzzyEnabled {
		for i, entry := range r.entries {
			if NameSimilarity(entry.scoped.Name, name) < r.nameSimilarityThresh {
				continue
			}
			if ComputeSimilarity(entry.attributes, attributes) < r.threshold {
				continue
			}
			found := r.entries[i].scoped
			return ResolveResult{ResolvedID: found.String(), IsNew: false, ResolvedFrom: &found}
		}
	}

	r.entries = append(r.entries, resolvedEntry{scoped: scoped, attributes: attributes})
	return ResolveResult{ResolvedID: scoped.String(), IsNew: true}
}

// ResolveEntities deduplicates ServiceNode entities in place: a later
// ServiceNode resolving (by name/attribute similarity) to an earlier
// one is dropped from the returned slice. Every other entity type
// passes through unchanged, since only ServiceNode carries the
// language/framework attributes this resolver compares on; ontology
// entities do not carry a repository field (that concept lives in the
// ingestion workspace loader, not the committed graph schema), so
// repository is left empty for every comparison here — cross-repo
// disambiguation happens earlier, during extraction, via each
// ServiceNode's id.
func (r *EntityResolver) ResolveEntities(entities []ontology.Entity) []ontology.Entity {
	kept := make([]ontology.Entity, 0, len(entities))
	for _, e := range entities {
		svc, ok := e.(*ontology.ServiceNode)
		if !ok {
			kept = append(kept, e)
			continue
		}
		attrs := map[string]string{
			"language":  svc.Language,
			"framework": svc.Framework,
		}
		result := r.Resolve(svc.Name, "", "", attrs)
		if result.IsNew {
			kept = append(kept, e)
		}
	}
	return kept
}
