// Package graph compiles an ordered step list into the node/edge graph consumed
// by the workflow canvas and by the execution engine.
package graph

import (
	"strconv"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/registry"
)

// Layout constants.
const (
	DefaultColumnX    = 250.0
	BaseOffsetY       = 50.0
	VerticalSpacing   = 150.0
	HorizontalSpacing = 300.0
)

// Handle names.
const (
	HandleIn  = "in"
	HandleOut = "out"
)

// Labeler names a step for display.
type Labeler interface {
	Label(step models.Step) string
}

type options struct {
	labeler       Labeler
	scenarioNames map[string]string
}

// Option customizes node data; it never changes positions or edges.
type Option func(*options)

// WithLabeler sets the labeler used for node labels.
func WithLabeler(labeler Labeler) Option {
	return func(o *options) {
		o.labeler = labeler
	}
}

// WithScenarioNames resolves scenario ids in node summaries.
func WithScenarioNames(names map[string]string) Option {
	return func(o *options) {
		o.scenarioNames = names
	}
}

type defaultLabeler struct{}

func (defaultLabeler) Label(step models.Step) string {
	if name := strings.TrimSpace(step.CustomName); name != "" {
		return name
	}

	return string(step.ActionType)
}

// PathHandle returns the output handle id of a branch path.
func PathHandle(pathIndex int) string {
	return "path-" + strconv.Itoa(pathIndex)
}

// Compile converts steps into a graph. The same input always yields the same output.
func Compile(steps []models.Step, opts ...Option) models.Graph {
	o := options{labeler: defaultLabeler{}}
	for _, opt := range opts {
		opt(&o)
	}

	idx := newIndex(steps)
	offsets := branchOffsets(steps, idx)

	graph := models.Graph{
		Nodes: make([]models.GraphNode, 0, len(steps)+1),
		Edges: make([]models.GraphEdge, 0, len(steps)),
	}

	graph.Nodes = append(graph.Nodes, models.GraphNode{
		ID:       models.TriggerNodeID,
		Type:     models.NodeTypeTrigger,
		Position: models.Position{X: DefaultColumnX, Y: BaseOffsetY},
		Data: models.NodeData{
			Label:   "Trigger",
			Summary: "Contact enters the workflow",
		},
	})

	for _, step := range steps {
		node := models.GraphNode{
			ID:   step.ClientID,
			Type: models.NodeTypeStep,
			Position: models.Position{
				X: DefaultColumnX + offsets[step.ClientID],
				Y: BaseOffsetY + float64(step.Order)*VerticalSpacing,
			},
			Data: models.NodeData{
				Label:      o.labeler.Label(step),
				Summary:    registry.Summary(step, o.scenarioNames),
				ClientID:   step.ClientID,
				Order:      step.Order,
				ActionType: step.ActionType,
				Terminal:   step.ActionType.IsTerminal(),
			},
		}

		if branch, ok := step.Branch(); ok {
			node.Data.PathCount = len(branch.Paths)
		}

		graph.Nodes = append(graph.Nodes, node)
	}

	if len(steps) > 0 {
		graph.Edges = append(graph.Edges, models.GraphEdge{
			ID:           "e-" + models.TriggerNodeID + "-" + steps[0].ClientID,
			Source:       models.TriggerNodeID,
			SourceHandle: HandleOut,
			Target:       steps[0].ClientID,
			TargetHandle: HandleIn,
		})
	}

	for i, step := range steps {
		if step.ActionType.IsTerminal() {
			continue
		}

		if branch, ok := step.Branch(); ok {
			graph.Edges = append(graph.Edges, branchEdges(step, branch, idx, steps)...)

			continue
		}

		if step.ActionType == models.ActionBranch {
			// A branch without a usable config has no paths to wire.
			continue
		}

		if i+1 >= len(steps) {
			continue
		}

		next := steps[i+1]
		if idx.targeted[next.ClientID] {
			continue
		}

		graph.Edges = append(graph.Edges, models.GraphEdge{
			ID:           "e-" + step.ClientID + "-" + next.ClientID,
			Source:       step.ClientID,
			SourceHandle: HandleOut,
			Target:       next.ClientID,
			TargetHandle: HandleIn,
		})
	}

	return graph
}

func branchEdges(step models.Step, branch *models.BranchConfig, idx *index, steps []models.Step) []models.GraphEdge {
	edges := make([]models.GraphEdge, 0, len(branch.Paths))

	for k, path := range branch.Paths {
		target, ok := idx.resolve(path)
		if !ok {
			continue
		}

		targetID := steps[target].ClientID
		handle := PathHandle(k)

		edges = append(edges, models.GraphEdge{
			ID:           "e-" + step.ClientID + "-" + handle + "-" + targetID,
			Source:       step.ClientID,
			SourceHandle: handle,
			Target:       targetID,
			TargetHandle: HandleIn,
			Label:        strconv.Itoa(path.Weight) + "%",
		})
	}

	return edges
}

// branchOffsets spreads branch targets around the default column. When a step
// is targeted more than once the first declaring path wins.
func branchOffsets(steps []models.Step, idx *index) map[string]float64 {
	offsets := make(map[string]float64)

	for _, step := range steps {
		branch, ok := step.Branch()
		if !ok {
			continue
		}

		center := float64(len(branch.Paths)-1) / 2

		for k, path := range branch.Paths {
			target, ok := idx.resolve(path)
			if !ok {
				continue
			}

			targetID := steps[target].ClientID
			if _, assigned := offsets[targetID]; assigned {
				continue
			}

			offsets[targetID] = (float64(k) - center) * HorizontalSpacing
		}
	}

	return offsets
}
