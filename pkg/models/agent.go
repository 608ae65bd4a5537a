package models

// AgentStep is one entry in a ReAct execution trace. Action and
// Observation are absent on the terminal step.
type AgentStep struct {
	Iteration   int             `json:"iteration"`
	Thought     string          `json:"thought"`
	Action      *ToolInvocation `json:"action,omitempty"`
	Observation *string         `json:"observation,omitempty"`
}

// AgentDecision is the parsed shape of one LLM response inside the ReAct
// loop. IsFinal implies Action is nil and FinalAnswer is set; the
// converse implies Action is set.
type AgentDecision struct {
	Thought     string          `json:"thought"`
	Action      *ToolInvocation `json:"action,omitempty"`
	IsFinal     bool            `json:"is_final"`
	FinalAnswer string          `json:"final_answer,omitempty"`
}

// Validate enforces the AgentDecision invariant from the data model:
// is_final implies action=none and final_answer set; otherwise action
// must be set.
func (d AgentDecision) Validate() error {
	if d.IsFinal {
		if d.Action != nil {
			return errDecisionFinalWithAction
		}
		if d.FinalAnswer == "" {
			return errDecisionFinalWithoutAnswer
		}
		return nil
	}
	if d.Action == nil {
		return errDecisionNotFinalWithoutAction
	}
	return nil
}

// CompletionKind tags the shape of an AgentResponse's Completion field.
type CompletionKind string

const (
	CompletionComplete CompletionKind = "complete"
	CompletionPartial  CompletionKind = "partial"
	CompletionFailed   CompletionKind = "failed"
)

// Completion describes how an AgentResponse concluded.
type Completion struct {
	Kind       CompletionKind `json:"kind"`
	Confidence float64        `json:"confidence,omitempty"` // Complete
	Progress   float64        `json:"progress,omitempty"`   // Partial
	NextSteps  []string       `json:"next_steps,omitempty"` // Partial
	Error      string         `json:"error,omitempty"`      // Failed
	Recoverable bool          `json:"recoverable,omitempty"` // Failed
}

// AgentResponseKind discriminates the AgentResponse variant.
type AgentResponseKind string

const (
	ResponseSuccess AgentResponseKind = "success"
	ResponseFailure AgentResponseKind = "failure"
	ResponseTimeout AgentResponseKind = "timeout"
)

// AgentResponse is the result of SpecializedAgent.execute_task or
// SupervisorAgent.orchestrate. Exactly one of Result/Error/PartialResult
// is meaningful, selected by Kind.
type AgentResponse struct {
	Kind AgentResponseKind `json:"kind"`

	Result        string `json:"result,omitempty"`         // Success
	Error         string `json:"error,omitempty"`          // Failure
	PartialResult string `json:"partial_result,omitempty"` // Timeout

	Steps      []AgentStep    `json:"steps"`
	Metadata   OutputMetadata `json:"metadata"`
	Completion Completion     `json:"completion"`
}

// ToolCallRecord summarizes one tool call for OutputMetadata.
type ToolCallRecord struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result"`
}

// OutputMetadata carries observability data alongside an AgentResponse.
type OutputMetadata struct {
	Confidence        float64          `json:"confidence"`
	ExecutionTimeMs    int64            `json:"execution_time_ms"`
	AgentName          string           `json:"agent_name"`
	ToolCalls          []ToolCallRecord `json:"tool_calls,omitempty"`
	TokensUsed         int              `json:"tokens_used,omitempty"`
	SchemaVersion      string           `json:"schema_version,omitempty"`
	ValidationResult   *ValidationResult `json:"validation_result,omitempty"`

	// Orchestration-only counters (zero for a bare SpecializedAgent response).
	OrchestrationSteps int `json:"orchestration_steps,omitempty"`
	AgentInvocations   map[string]int `json:"agent_invocations,omitempty"`
	ValidationFailures int `json:"validation_failures,omitempty"`
	TotalLLMCalls      int `json:"total_llm_calls,omitempty"`
}

// AgentConfig describes one specialized agent available to a supervisor
// or router. Tools is a set of tool names resolved against a shared
// ToolRegistry; Name is unique within the collection that holds it.
type AgentConfig struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	SystemPrompt     string   `json:"system_prompt"`
	Tools            []string `json:"tools,omitempty"`
	ResponseSchema   string   `json:"response_schema,omitempty"`
	ReturnToolOutput bool     `json:"return_tool_output,omitempty"`
}
