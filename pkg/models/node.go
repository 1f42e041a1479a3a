package models

// NodeType identifies the processor responsible for a node.
type NodeType string

const (
	NodeTypeStart        NodeType = "start"
	NodeTypeAction       NodeType = "action"
	NodeTypeCondition    NodeType = "condition"
	NodeTypeApproval     NodeType = "approval"
	NodeTypeLocalization NodeType = "localization"
	NodeTypeSchedule     NodeType = "schedule"
	NodeTypeEnd          NodeType = "end"
)

// Connection condition labels. An empty condition is the default edge,
// taken when no labeled edge matches the processor result.
const (
	ConnectionSuccess  = "success"
	ConnectionFailure  = "failure"
	ConnectionTrue     = "true"
	ConnectionFalse    = "false"
	ConnectionApproved = "approved"
	ConnectionRejected = "rejected"
)

// Node is a single step in a workflow graph. Exactly one of the type-specific
// config fields is set, matching Type.
type Node struct {
	ID           string              `json:"id"   validate:"required"`
	WorkflowID   string              `json:"workflow_id"`
	Type         NodeType            `json:"type" validate:"required"`
	Name         string              `json:"name" validate:"required,min=1"`
	Action       *ActionConfig       `json:"action,omitempty"`
	Condition    *ConditionConfig    `json:"condition,omitempty"`
	Approval     *ApprovalConfig     `json:"approval,omitempty"`
	Localization *LocalizationConfig `json:"localization,omitempty"`
	Delay        *DelayConfig        `json:"delay,omitempty"`

	// Canvas position, cosmetic only. The engine ignores it.
	PositionX int `json:"position_x"`
	PositionY int `json:"position_y"`
}

// ActionConfig configures an action node: which registered operation to run
// and how the engine guards it.
type ActionConfig struct {
	ActionType string         `json:"action_type" validate:"required"`
	Config     map[string]any `json:"config"`

	// DependsOn lists node names that must appear in step results with a
	// successful status before this action runs. A missing or failed
	// dependency fails the step without consuming a retry.
	DependsOn []string `json:"depends_on,omitempty"`

	// RetryCount is the number of additional attempts beyond the first.
	RetryCount int `json:"retry_count"`

	// TimeoutSeconds bounds a single attempt. Advisory in the sense that
	// the action is cancelled via context, not preempted.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// ConditionConfig configures a condition node.
type ConditionConfig struct {
	Expression string `json:"expression"`
}

// ApprovalConfig configures an approval gate.
type ApprovalConfig struct {
	RequiredFrom []string `json:"required_from"`
	TimeoutHours int      `json:"timeout_hours"`
	Subject      string   `json:"subject,omitempty"`
	Content      string   `json:"content,omitempty"`
}

// LocalizationConfig configures a localization node.
type LocalizationConfig struct {
	Enabled         bool     `json:"enabled"`
	SourceLanguage  string   `json:"source_language"`
	TargetLanguages []string `json:"target_languages"`
	ContentKey      string   `json:"content_key,omitempty"`
}

// DelayConfig configures a schedule node. The delay is advisory: the node
// records a future scheduled_for timestamp in runtime data and the run
// continues immediately.
type DelayConfig struct {
	Seconds int `json:"seconds"`
}

// Connection is a directed edge between two nodes, optionally labeled with
// the processor result that selects it.
type Connection struct {
	ID         string `json:"id"`
	FromNodeID string `json:"from_node_id" validate:"required"`
	ToNodeID   string `json:"to_node_id"   validate:"required"`
	Condition  string `json:"condition,omitempty"`
}
