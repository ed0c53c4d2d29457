package graph

import (
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/models"
	"go.arcalot.io/dgraph"
)

// PathRef identifies one path of a branch step.
type PathRef struct {
	ClientID      string `json:"client_id"`
	PathIndex     int    `json:"path_index"`
	NextStepOrder int    `json:"next_step_order"`
	NextStepID    string `json:"next_step_id,omitempty"`
}

// Report summarizes structural findings about a step list. Cycles are legal;
// they are reported so a publisher or the execution engine can guard against them.
type Report struct {
	HasCycles      bool      `json:"has_cycles"`
	BackReferences []PathRef `json:"back_references"`
	Dangling       []PathRef `json:"dangling"`
	Unreachable    []string  `json:"unreachable"`
	WeightIssues   []string  `json:"weight_issues"`
}

// Analyze compiles steps and inspects the resulting graph.
func Analyze(steps []models.Step) (Report, error) {
	report := Report{
		BackReferences: []PathRef{},
		Dangling:       []PathRef{},
		Unreachable:    []string{},
		WeightIssues:   []string{},
	}

	idx := newIndex(steps)

	for i, step := range steps {
		branch, ok := step.Branch()
		if !ok {
			continue
		}

		if len(branch.Paths) > 0 && branch.TotalWeight() != 100 {
			report.WeightIssues = append(report.WeightIssues, step.ClientID)
		}

		for k, path := range branch.Paths {
			ref := PathRef{
				ClientID:      step.ClientID,
				PathIndex:     k,
				NextStepOrder: path.NextStepOrder,
				NextStepID:    path.NextStepID,
			}

			target, ok := idx.resolve(path)
			if !ok {
				report.Dangling = append(report.Dangling, ref)

				continue
			}

			if target <= i {
				report.BackReferences = append(report.BackReferences, ref)
			}
		}
	}

	compiled := Compile(steps)

	hasCycles, err := detectCycles(compiled)
	if err != nil {
		return report, err
	}

	report.HasCycles = hasCycles
	report.Unreachable = unreachable(compiled)

	return report, nil
}

func detectCycles(compiled models.Graph) (bool, error) {
	dag := dgraph.New[string]()

	for _, node := range compiled.Nodes {
		if _, err := dag.AddNode(node.ID, node.ID); err != nil {
			return false, fmt.Errorf("failed to add node %s (%w)", node.ID, err)
		}
	}

	selfLoop := false

	for _, edge := range compiled.Edges {
		if edge.Source == edge.Target {
			selfLoop = true

			continue
		}

		source, err := dag.GetNodeByID(edge.Source)
		if err != nil {
			return false, fmt.Errorf("failed to find node %s (%w)", edge.Source, err)
		}

		if err := source.Connect(edge.Target); err != nil {
			decodedErr := &dgraph.ErrConnectionAlreadyExists{}
			if !errors.As(err, &decodedErr) {
				return false, fmt.Errorf("failed to connect %s to %s (%w)", edge.Source, edge.Target, err)
			}
		}
	}

	return selfLoop || dag.HasCycles(), nil
}

func unreachable(compiled models.Graph) []string {
	adjacency := make(map[string][]string, len(compiled.Nodes))
	for _, edge := range compiled.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	visited := map[string]bool{models.TriggerNodeID: true}
	queue := []string{models.TriggerNodeID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	out := []string{}

	for _, node := range compiled.Nodes {
		if !visited[node.ID] {
			out = append(out, node.ID)
		}
	}

	return out
}
