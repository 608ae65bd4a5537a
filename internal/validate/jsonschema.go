package validate

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/synapserun/synapse/pkg/models"
)

// ValidateAgainstJSONSchema validates value against a raw JSON Schema
// document (draft 2020-12), for callers that hold a full external schema
// rather than an OutputSchema (e.g. a tool's declared input schema, or a
// handoff contract imported from another system). Every schema violation
// santhosh-tekuri/jsonschema reports is surfaced as one ValidationError,
// matching OutputValidator's accumulate-everything behavior.
func ValidateAgainstJSONSchema(schemaDoc []byte, value interface{}) (*models.ValidationResult, error) {
	compiler := jsonschema.NewCompiler()
	const resourceName = "inline.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(schemaDoc)); err != nil {
		return nil, fmt.Errorf("validate: invalid schema document: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("validate: schema compilation failed: %w", err)
	}

	result := models.NewValidationResult()
	if err := schema.Validate(value); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			for _, leaf := range flattenCauses(verr) {
				result.AddError(leaf.InstanceLocation, models.ErrRuleViolation, leaf.Message)
			}
			if len(result.Errors) == 0 {
				result.AddError("", models.ErrRuleViolation, verr.Error())
			}
			return result, nil
		}
		result.AddError("", models.ErrRuleViolation, err.Error())
		return result, nil
	}
	return result, nil
}

// flattenCauses walks jsonschema's BasicOutput-style cause tree down to
// its leaves, which each name one concrete field violation.
func flattenCauses(verr *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		return []*jsonschema.ValidationError{verr}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range verr.Causes {
		leaves = append(leaves, flattenCauses(cause)...)
	}
	return leaves
}
