package ontology

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"
)

// Overrides augments the manifest parser's built-in ACL-annotation
// lookup with additional annotation keys declared in an external
// ontology file, so a newly onboarded manifest kind's ACL convention
// can be recognized without a rebuild.
type Overrides struct {
	// ExtraACLAnnotationKeys maps a manifest kind ("Deployment",
	// "KafkaTopic", or "*" for every kind) to additional annotation
	// keys checked after the built-in namespace-acl key comes up empty.
	ExtraACLAnnotationKeys map[string][]string
}

// LoadOverrides reads an ontology override file at path. Its top-level
// "acl_overrides" field is the common case: a flat object mapping kind
// to a list of annotation key names, read with gjson. A file whose ACL
// field declarations are nested under a team- or cluster-specific path
// instead provides "acl_overrides_path", a JSONPath expression
// evaluated against the whole document with PaesslerAG/jsonpath, for
// ontology files composed by merging several teams' fragments where the
// flat top-level shape does not apply.
func LoadOverrides(path string) (Overrides, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("read ontology override file: %w", err)
	}

	overrides := Overrides{ExtraACLAnnotationKeys: make(map[string][]string)}

	if flat := gjson.GetBytes(raw, "acl_overrides"); flat.IsObject() {
		flat.ForEach(func(kind, keys gjson.Result) bool {
			overrides.ExtraACLAnnotationKeys[kind.String()] = stringsOf(keys)
			return true
		})
		return overrides, nil
	}

	pathExpr := gjson.GetBytes(raw, "acl_overrides_path").String()
	if pathExpr == "" {
		return overrides, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Overrides{}, fmt.Errorf("parse ontology override file: %w", err)
	}
	found, err := jsonpath.Get(pathExpr, doc)
	if err != nil {
		return Overrides{}, fmt.Errorf("evaluate acl_overrides_path %q: %w", pathExpr, err)
	}
	overrides.ExtraACLAnnotationKeys["*"] = stringsFromAny(found)
	return overrides, nil
}

func stringsOf(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		if s := v.String(); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func stringsFromAny(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
