package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow() *Workflow {
	return &Workflow{
		ID:     "wf-1",
		Name:   "Publish pipeline",
		Status: WorkflowStatusActive,
		Nodes: []*Node{
			{ID: "n-start", Type: NodeTypeStart, Name: "start"},
			{ID: "n-act", Type: NodeTypeAction, Name: "fetch", Action: &ActionConfig{ActionType: "http_request"}},
			{ID: "n-end", Type: NodeTypeEnd, Name: "end"},
		},
		Connections: []*Connection{
			{ID: "c-1", FromNodeID: "n-start", ToNodeID: "n-act"},
			{ID: "c-2", FromNodeID: "n-act", ToNodeID: "n-end", Condition: ConnectionSuccess},
		},
	}
}

func TestWorkflowValidate(t *testing.T) {
	assert.NoError(t, testWorkflow().Validate())
}

func TestWorkflowValidateGraphNoStart(t *testing.T) {
	wf := testWorkflow()
	wf.Nodes = wf.Nodes[1:]
	wf.Connections = wf.Connections[1:]

	err := wf.ValidateGraph()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedGraph)
}

func TestWorkflowValidateGraphDuplicateStart(t *testing.T) {
	wf := testWorkflow()
	wf.Nodes = append(wf.Nodes, &Node{ID: "n-start-2", Type: NodeTypeStart, Name: "start2"})

	assert.ErrorIs(t, wf.ValidateGraph(), ErrMalformedGraph)
}

func TestWorkflowValidateGraphNoEnd(t *testing.T) {
	wf := testWorkflow()
	wf.Nodes = wf.Nodes[:2]
	wf.Connections = wf.Connections[:1]

	assert.ErrorIs(t, wf.ValidateGraph(), ErrMalformedGraph)
}

func TestWorkflowValidateGraphDanglingConnection(t *testing.T) {
	wf := testWorkflow()
	wf.Connections = append(wf.Connections, &Connection{ID: "c-bad", FromNodeID: "n-act", ToNodeID: "n-ghost"})

	assert.ErrorIs(t, wf.ValidateGraph(), ErrMalformedGraph)
}

func TestStartNode(t *testing.T) {
	wf := testWorkflow()

	start, err := wf.StartNode()
	require.NoError(t, err)
	assert.Equal(t, "n-start", start.ID)
}

func TestConnectionsFromKeepsDefinitionOrder(t *testing.T) {
	wf := testWorkflow()
	wf.Connections = append(wf.Connections,
		&Connection{ID: "c-3", FromNodeID: "n-act", ToNodeID: "n-end", Condition: ConnectionFailure},
	)

	conns := wf.ConnectionsFrom("n-act")
	require.Len(t, conns, 2)
	assert.Equal(t, "c-2", conns[0].ID)
	assert.Equal(t, "c-3", conns[1].ID)
}

func TestExecutionStatusTerminal(t *testing.T) {
	assert.True(t, ExecutionStatusCompleted.Terminal())
	assert.True(t, ExecutionStatusFailed.Terminal())
	assert.True(t, ExecutionStatusCancelled.Terminal())
	assert.False(t, ExecutionStatusRunning.Terminal())
	assert.False(t, ExecutionStatusPaused.Terminal())
	assert.False(t, ExecutionStatusPending.Terminal())
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityNormal, ParsePriority("normal"))
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityCritical, ParsePriority("critical"))
	assert.Equal(t, PriorityNormal, ParsePriority("whatever"))
}

func TestNewExecution(t *testing.T) {
	exec := NewExecution("wf-1", map[string]any{"count": 5}, "user-1", "manual")

	assert.Equal(t, ExecutionStatusPending, exec.Status)
	assert.Equal(t, PriorityNormal, exec.Priority)
	assert.NotEmpty(t, exec.ID)
	assert.Contains(t, exec.ID, "exec-")
	assert.NotNil(t, exec.RuntimeData)
	assert.NotNil(t, exec.StepResults)
}
