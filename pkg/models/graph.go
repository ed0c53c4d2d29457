package models

// TriggerNodeID is the reserved id of the entry pseudo-node.
const TriggerNodeID = "trigger"

// Node types emitted by the graph compiler.
const (
	NodeTypeTrigger = "trigger"
	NodeTypeStep    = "step"
)

// Graph is the renderable form of a step list.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Position holds x/y coordinates for rendering the node on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is one node of the compiled graph; its id is the step's client id.
type GraphNode struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NodeData carries identifiers and display text only. The rendering layer
// dispatches edits back by ClientID.
type NodeData struct {
	Label      string     `json:"label"`
	Summary    string     `json:"summary,omitempty"`
	ClientID   string     `json:"clientId,omitempty"`
	Order      int        `json:"order,omitempty"`
	ActionType ActionType `json:"actionType,omitempty"`
	Terminal   bool       `json:"terminal,omitempty"`
	PathCount  int        `json:"pathCount,omitempty"`
}

// GraphEdge connects an output handle of one node to an input handle of another.
type GraphEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
	Label        string `json:"label,omitempty"`
}
