// Package handoff implements the HandoffCoordinator: validates one
// agent's AgentResponse against a named HandoffContract before a
// supervisor accepts it as a completed sub-goal (spec.md 4.5).
package handoff

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/synapserun/synapse/internal/validate"
	"github.com/synapserun/synapse/pkg/models"
)

// Coordinator holds a registry of named HandoffContracts and delegates
// structured-payload checks to an OutputValidator.
type Coordinator struct {
	mu        sync.RWMutex
	contracts map[string]models.HandoffContract
	validator *validate.Validator
}

// New returns a Coordinator seeded with the built-in contract templates
// spec.md 4.5 names, backed by validator (pass validate.New() unless a
// caller needs a customized schema set).
func New(validator *validate.Validator) *Coordinator {
	c := &Coordinator{
		contracts: make(map[string]models.HandoffContract),
		validator: validator,
	}
	for _, contract := range builtinContracts() {
		c.RegisterContract(contract)
	}
	return c
}

// RegisterContract adds or replaces a named contract. Its schema is
// registered with the OutputValidator under the same name, so
// ValidateHandoff can resolve it without a separate caller step.
func (c *Coordinator) RegisterContract(contract models.HandoffContract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[contract.Name] = contract
	c.validator.RegisterSchema(contract.Name, contract.Schema)
}

// Contract resolves a named contract.
func (c *Coordinator) Contract(name string) (models.HandoffContract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contract, ok := c.contracts[name]
	return contract, ok
}

// ValidateHandoff implements spec.md 4.5's branching procedure:
//
//   - Failure response: a single ErrAgentFailure error, contract never
//     consulted beyond existing.
//   - Timeout response: a single ErrAgentTimeout error.
//   - Success response: SLA and confidence are checked as warnings (they
//     never by themselves invalidate the handoff), then the result text
//     is parsed as JSON and delegated to the OutputValidator against the
//     contract's schema; a parse failure is ErrNotStructured.
func (c *Coordinator) ValidateHandoff(contractName string, response models.AgentResponse) (*models.ValidationResult, error) {
	contract, ok := c.Contract(contractName)
	if !ok {
		result := models.NewValidationResult()
		result.AddError("", models.ErrConfigError, fmt.Sprintf("unknown handoff contract %q", contractName))
		return result, nil
	}

	result := models.NewValidationResult()

	switch response.Kind {
	case models.ResponseFailure:
		result.AddError("", models.ErrAgentFailure, response.Error)
		return result, nil

	case models.ResponseTimeout:
		result.AddError("", models.ErrAgentTimeout, "agent execution timed out before producing a final answer")
		return result, nil

	case models.ResponseSuccess:
		if contract.RequiredConfidence > 0 && response.Metadata.Confidence < contract.RequiredConfidence {
			result.AddWarning(fmt.Sprintf("confidence %.2f is below the required floor %.2f", response.Metadata.Confidence, contract.RequiredConfidence))
		}
		if contract.MaxExecutionTimeMs > 0 && response.Metadata.ExecutionTimeMs > contract.MaxExecutionTimeMs {
			result.AddWarning(fmt.Sprintf("execution took %dms, budget was %dms", response.Metadata.ExecutionTimeMs, contract.MaxExecutionTimeMs))
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(response.Result), &decoded); err != nil {
			if len(contract.Schema.RequiredFields) > 0 {
				result.AddError("", models.ErrNotStructured, fmt.Sprintf("handoff result is not valid JSON: %v", err))
			} else {
				result.AddWarning(fmt.Sprintf("handoff result is not valid JSON: %v", err))
			}
			return result, nil
		}

		schemaResult := c.validator.Validate(contract.Name, decoded)
		mergeInto(result, schemaResult)
		return result, nil

	default:
		result.AddError("", models.ErrConfigError, fmt.Sprintf("unrecognized agent response kind %q", response.Kind))
		return result, nil
	}
}

func mergeInto(dst, src *models.ValidationResult) {
	if !src.Valid {
		dst.Valid = false
	}
	dst.Errors = append(dst.Errors, src.Errors...)
	dst.Warnings = append(dst.Warnings, src.Warnings...)
}

// builtinContracts seeds the three handoff templates spec.md 4.5 names,
// with the exact field shapes it specifies, and conservative default
// confidence/time budgets. The schema carried on each contract is what
// gets registered with the OutputValidator in New, so these are the
// schemas ValidateHandoff actually enforces.
func builtinContracts() map[string]models.HandoffContract {
	return map[string]models.HandoffContract{
		"tabular": {
			Name:               "tabular",
			RequiredConfidence: 0.5,
			MaxExecutionTimeMs: int64(60 * time.Second / time.Millisecond),
			Schema: models.OutputSchema{
				SchemaVersion:  "1",
				RequiredFields: []string{"data", "status"},
				OptionalFields: []string{"row_count"},
				FieldTypes: map[string]models.FieldType{
					"data":      models.FieldArray,
					"status":    models.FieldString,
					"row_count": models.FieldNumber,
				},
				Rules: []models.ValidationRule{
					{Kind: models.RuleEnum, Field: "status", Allowed: []string{"success", "partial", "failed"}},
					{Kind: models.RuleRange, Field: "row_count", Min: 0, Max: 1 << 31},
				},
			},
		},
		"analysis": {
			Name:               "analysis",
			RequiredConfidence: 0.6,
			MaxExecutionTimeMs: int64(120 * time.Second / time.Millisecond),
			Schema: models.OutputSchema{
				SchemaVersion:  "1",
				RequiredFields: []string{"insights", "confidence_score"},
				FieldTypes: map[string]models.FieldType{
					"insights":         models.FieldArray,
					"confidence_score": models.FieldNumber,
				},
				Rules: []models.ValidationRule{
					{Kind: models.RuleRange, Field: "confidence_score", Min: 0, Max: 1},
				},
			},
		},
		"generic_api_response": {
			Name:               "generic_api_response",
			RequiredConfidence: 0.4,
			MaxExecutionTimeMs: int64(30 * time.Second / time.Millisecond),
			Schema: models.OutputSchema{
				SchemaVersion:  "1",
				RequiredFields: []string{"status"},
				OptionalFields: []string{"body"},
				FieldTypes: map[string]models.FieldType{
					"status": models.FieldString,
					"body":   models.FieldObject,
				},
				Rules: []models.ValidationRule{
					{Kind: models.RuleEnum, Field: "status", Allowed: []string{"ok", "error"}},
				},
			},
		},
	}
}
