// Package templates is the query-intent template catalog: a small set
// of canned, pre-vetted Cypher templates for the handful of questions
// operators ask most often (blast radius, dependency count, neighbor
// listing, topic consumers), matched from a free-text query via regex
// before falling back to the full traversal engine. Grounded on
// query_templates.py.
package templates

import "regexp"

// Template is one canned Cypher statement plus the parameter names it
// expects the caller to supply.
type Template struct {
	Name        string
	Cypher      string
	Parameters  []string
	Description string
}

// Match is the result of classifying a free-text query: which template
// fired and the parameter values extracted from the query text.
type Match struct {
	TemplateName string
	Params       map[string]string
}

var catalog = map[string]Template{
	"blast_radius": {
		Name: "blast_radius",
		Cypher: "MATCH (s:Service {name: $name})-[:CALLS|PRODUCES|CONSUMES*1..3]->(downstream) " +
			"RETURN DISTINCT downstream.name AS affected_service, " +
			"labels(downstream)[0] AS node_type " +
			"ORDER BY affected_service",
		Parameters:  []string{"name"},
		Description: "Transitive downstream blast radius from a service failure",
	},
	"dependency_count": {
		Name: "dependency_count",
		Cypher: "MATCH (caller:Service)-[:CALLS]->(target:Service) " +
			"RETURN target.name AS service, count(caller) AS inbound_dependency_count " +
			"ORDER BY inbound_dependency_count DESC " +
			"LIMIT $limit",
		Parameters:  []string{"limit"},
		Description: "Services ranked by inbound dependency count",
	},
	"service_neighbors": {
		Name: "service_neighbors",
		Cypher: "MATCH (s:Service {name: $name})-[r]-(neighbor) " +
			"RETURN s.name AS source, type(r) AS relationship, " +
			"neighbor.name AS target, labels(neighbor)[0] AS target_type " +
			"ORDER BY relationship, target",
		Parameters:  []string{"name"},
		Description: "All direct neighbors of a service",
	},
	"topic_consumers": {
		Name: "topic_consumers",
		Cypher: "MATCH (consumer:Service)-[:CONSUMES]->(t:KafkaTopic {name: $topic_name}) " +
			"RETURN consumer.name AS consumer_service, t.name AS topic " +
			"ORDER BY consumer_service",
		Parameters:  []string{"topic_name"},
		Description: "Services consuming from a Kafka topic",
	},
}

type intentRule struct {
	pattern *regexp.Regexp
	intent  string
}

var intentPatterns = []intentRule{
	{regexp.MustCompile(`(?i)blast\s*radius|downstream.*fail|impact.*fail|fail.*impact`), "blast_radius"},
	{regexp.MustCompile(`(?i)dependency\s*count|most\s*critical|most\s*depended|ranked\s*by.*dep`), "dependency_count"},
	{regexp.MustCompile(`(?i)(?:what|who)\s+does\s+\S+\s+call|neighbors?\s+of|connected\s+to|calls?\s+from`), "service_neighbors"},
	{regexp.MustCompile(`(?i)consum(?:e|es|ers?|ing)\s+(?:from|the)|subscribers?\s+(?:of|to|for)`), "topic_consumers"},
}

var serviceNamePattern = regexp.MustCompile(`(?i)(?:of|if|for|from|does|about)\s+(?:the\s+)?([a-zA-Z][\w-]*(?:-[a-zA-Z][\w-]*)*)(?:\s+(?:service|svc))?`)

var topicNamePattern = regexp.MustCompile(`(?i)(?:from|to|on|the)\s+(?:the\s+)?([a-zA-Z][\w-]*(?:-[a-zA-Z][\w-]*)*)(?:\s*(?:topic|queue))?`)

// Get looks up a template by name, the second return reporting whether
// it exists.
func Get(name string) (Template, bool) {
	t, ok := catalog[name]
	return t, ok
}

// All returns a copy of the full catalog, keyed by template name.
func All() map[string]Template {
	out := make(map[string]Template, len(catalog))
	for k, v := range catalog {
		out[k] = v
	}
	return out
}

func extractServiceName(query string) string {
	m := serviceNamePattern.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return m[1]
}

func extractTopicName(query string) string {
	m := topicNamePattern.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return m[1]
}

// MatchQuery classifies a free-text query against the intent patterns,
// returning the first matching template and the parameters it could
// extract from the query text. A nil Match means no canned template
// applies and the caller should fall back to the full traversal engine.
func MatchQuery(query string) *Match {
	var matchedIntent string
	for _, rule := range intentPatterns {
		if rule.pattern.MatchString(query) {
			matchedIntent = rule.intent
			break
		}
	}
	if matchedIntent == "" {
		return nil
	}

	template, ok := catalog[matchedIntent]
	if !ok {
		return nil
	}

	params := make(map[string]string)
	for _, p := range template.Parameters {
		switch p {
		case "name":
			if name := extractServiceName(query); name != "" {
				params["name"] = name
			}
		case "topic_name":
			if topic := extractTopicName(query); topic != "" {
				params["topic_name"] = topic
			}
		case "limit":
			params["limit"] = "10"
		}
	}

	return &Match{TemplateName: matchedIntent, Params: params}
}
