// Package validate cross-checks a batch of entities for referential
// integrity before it reaches the graph write layer: every edge must
// reference a node present in the same batch. Grounded on
// schema_validation.py.
package validate

import (
	"fmt"

	"github.com/R3E-Network/graphctl/internal/ontology"
)

// refIndexes indexes the natural keys of every node type an edge can
// reference.
type refIndexes struct {
	serviceIDs    map[string]bool
	topicNames    map[string]bool
	deploymentIDs map[string]bool
}

func buildRefIndexes(entities []ontology.Entity) refIndexes {
	idx := refIndexes{
		serviceIDs:    make(map[string]bool),
		topicNames:    make(map[string]bool),
		deploymentIDs: make(map[string]bool),
	}
	for _, e := range entities {
		switch n := e.(type) {
		case *ontology.ServiceNode:
			idx.serviceIDs[n.ID] = true
		case *ontology.KafkaTopicNode:
			idx.topicNames[n.Name] = true
		case *ontology.K8sDeploymentNode:
			idx.deploymentIDs[n.ID] = true
		}
	}
	return idx
}

// ValidateTopology checks field-level validity (via Entity.Validate) and
// cross-entity referential integrity within a single batch, returning
// every violation found rather than stopping at the first. A batch with
// a dangling edge reference is not written; callers route violations
// through the ingestion pipeline's FixExtractionErrors stage rather than
// rejecting the whole run.
func ValidateTopology(entities []ontology.Entity) []string {
	var errs []string

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	idx := buildRefIndexes(entities)

	for _, e := range entities {
		switch edge := e.(type) {
		case *ontology.CallsEdge:
			errs = append(errs, validateCalls(edge, idx)...)
		case *ontology.ProducesEdge:
			errs = append(errs, validateProduces(edge, idx)...)
		case *ontology.ConsumesEdge:
			errs = append(errs, validateConsumes(edge, idx)...)
		case *ontology.DeployedInEdge:
			errs = append(errs, validateDeployedIn(edge, idx)...)
		}
	}

	return errs
}

func validateCalls(edge *ontology.CallsEdge, idx refIndexes) []string {
	var errs []string
	if !idx.serviceIDs[edge.SourceServiceID] {
		errs = append(errs, fmt.Sprintf("CallsEdge references unknown source service: %s", edge.SourceServiceID))
	}
	if !idx.serviceIDs[edge.TargetServiceID] {
		errs = append(errs, fmt.Sprintf("CallsEdge references unknown target service: %s", edge.TargetServiceID))
	}
	return errs
}

func validateProduces(edge *ontology.ProducesEdge, idx refIndexes) []string {
	var errs []string
	if !idx.serviceIDs[edge.ServiceID] {
		errs = append(errs, fmt.Sprintf("ProducesEdge references unknown service: %s", edge.ServiceID))
	}
	if !idx.topicNames[edge.TopicName] {
		errs = append(errs, fmt.Sprintf("ProducesEdge references unknown topic: %s", edge.TopicName))
	}
	return errs
}

func validateConsumes(edge *ontology.ConsumesEdge, idx refIndexes) []string {
	var errs []string
	if !idx.serviceIDs[edge.ServiceID] {
		errs = append(errs, fmt.Sprintf("ConsumesEdge references unknown service: %s", edge.ServiceID))
	}
	if !idx.topicNames[edge.TopicName] {
		errs = append(errs, fmt.Sprintf("ConsumesEdge references unknown topic: %s", edge.TopicName))
	}
	return errs
}

func validateDeployedIn(edge *ontology.DeployedInEdge, idx refIndexes) []string {
	var errs []string
	if !idx.serviceIDs[edge.ServiceID] {
		errs = append(errs, fmt.Sprintf("DeployedInEdge references unknown service: %s", edge.ServiceID))
	}
	if !idx.deploymentIDs[edge.DeploymentID] {
		errs = append(errs, fmt.Sprintf("DeployedInEdge references unknown deployment: %s", edge.DeploymentID))
	}
	return errs
}
