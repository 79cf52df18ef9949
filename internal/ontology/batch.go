package ontology

import (
	"encoding/json"
	"fmt"
)

// DefaultBatchSize mirrors neo4j_client.py's DEFAULT_BATCH_SIZE.
const DefaultBatchSize = 100

// TypeName returns the dispatch key used by UnwindQueries, NodeTypes, and
// EdgeTypes for a concrete entity.
func TypeName(e Entity) (string, error) {
	switch e.(type) {
	case *ServiceNode:
		return "ServiceNode", nil
	case *DatabaseNode:
		return "DatabaseNode", nil
	case *KafkaTopicNode:
		return "KafkaTopicNode", nil
	case *K8sDeploymentNode:
		return "K8sDeploymentNode", nil
	case *CallsEdge:
		return "CallsEdge", nil
	case *ProducesEdge:
		return "ProducesEdge", nil
	case *ConsumesEdge:
		return "ConsumesEdge", nil
	case *DeployedInEdge:
		return "DeployedInEdge", nil
	default:
		return "", fmt.Errorf("unsupported entity type: %T", e)
	}
}

// IsNode reports whether the named type is a node label rather than an
// edge/relationship type.
func IsNode(typeName string) bool {
	for _, t := range NodeTypes {
		if t == typeName {
			return true
		}
	}
	return false
}

// GroupByType partitions entities into per-type row batches, each row
// rendered as a JSON-compatible map so it can be passed straight through
// as the $batch parameter of an UNWIND query.
func GroupByType(entities []Entity) (map[string][]map[string]any, error) {
	groups := make(map[string][]map[string]any)
	for _, e := range entities {
		typeName, err := TypeName(e)
		if err != nil {
			return nil, err
		}
		row, err := toRow(e)
		if err != nil {
			return nil, err
		}
		groups[typeName] = append(groups[typeName], row)
	}
	return groups, nil
}

func toRow(e Entity) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// ChunkRows splits rows into batches of at most size, matching
// neo4j_client.py's _chunk_list.
func ChunkRows(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]map[string]any
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[i:end])
	}
	return chunks
}
