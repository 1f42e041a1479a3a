// Package models defines the core domain models for graph-based workflow automation.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Temporarily not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// ErrMalformedGraph is returned when a workflow graph violates a structural
// invariant: missing or duplicate start node, no end node, or a connection
// referencing a node that does not exist.
var ErrMalformedGraph = errors.New("malformed workflow graph")

// NotificationSettings controls which lifecycle notifications a workflow emits.
type NotificationSettings struct {
	OnCompletion  bool `json:"on_completion"`
	OnFailure     bool `json:"on_failure"`
	OnStepFailure bool `json:"on_step_failure"`
}

// Workflow is a directed graph of typed nodes. Definitions are immutable
// during execution: a run references the graph as of schedule time and the
// engine never writes back to it.
type Workflow struct {
	ID            string               `json:"id"            validate:"required"`
	Name          string               `json:"name"          validate:"required,min=3"`
	Description   string               `json:"description"`
	Status        WorkflowStatus       `json:"status"        validate:"required"`
	Nodes         []*Node              `json:"nodes"`
	Connections   []*Connection        `json:"connections"`
	Notifications NotificationSettings `json:"notifications"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
	Owner         string               `json:"owner"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

var validate = validator.New()

// Validate checks field constraints and graph structural invariants.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("workflow %s: %w", w.ID, err)
	}

	for _, node := range w.Nodes {
		if err := validate.Struct(node); err != nil {
			return fmt.Errorf("workflow %s node %s: %w", w.ID, node.ID, err)
		}
	}

	return w.ValidateGraph()
}

// ValidateGraph enforces the structural invariants of the node graph:
// exactly one start node, at least one end node, and no connection that
// references a node outside the workflow.
func (w *Workflow) ValidateGraph() error {
	starts := 0
	ends := 0
	byID := make(map[string]*Node, len(w.Nodes))

	for _, node := range w.Nodes {
		byID[node.ID] = node

		switch node.Type {
		case NodeTypeStart:
			starts++
		case NodeTypeEnd:
			ends++
		}
	}

	if starts != 1 {
		return fmt.Errorf("%w: workflow %s has %d start nodes, want exactly 1", ErrMalformedGraph, w.ID, starts)
	}

	if ends == 0 {
		return fmt.Errorf("%w: workflow %s has no end node", ErrMalformedGraph, w.ID)
	}

	for _, conn := range w.Connections {
		if _, ok := byID[conn.FromNodeID]; !ok {
			return fmt.Errorf("%w: connection %s references unknown source node %s", ErrMalformedGraph, conn.ID, conn.FromNodeID)
		}

		if _, ok := byID[conn.ToNodeID]; !ok {
			return fmt.Errorf("%w: connection %s references unknown target node %s", ErrMalformedGraph, conn.ID, conn.ToNodeID)
		}
	}

	return nil
}

// StartNode returns the unique start node of the graph.
func (w *Workflow) StartNode() (*Node, error) {
	var start *Node

	for _, node := range w.Nodes {
		if node.Type != NodeTypeStart {
			continue
		}

		if start != nil {
			return nil, fmt.Errorf("%w: workflow %s has more than one start node", ErrMalformedGraph, w.ID)
		}

		start = node
	}

	if start == nil {
		return nil, fmt.Errorf("%w: workflow %s has no start node", ErrMalformedGraph, w.ID)
	}

	return start, nil
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// ConnectionsFrom returns the outgoing connections of a node in definition
// order. Definition order matters: it is the tie-breaker when no connection
// condition matches explicitly.
func (w *Workflow) ConnectionsFrom(nodeID string) []*Connection {
	var out []*Connection

	for _, conn := range w.Connections {
		if conn.FromNodeID == nodeID {
			out = append(out, conn)
		}
	}

	return out
}
