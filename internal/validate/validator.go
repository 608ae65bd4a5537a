// Package validate implements the OutputValidator: a three-step check of
// a structured value (required fields present, declared types match,
// validation rules satisfied) against a named OutputSchema, accumulating
// every violation rather than stopping at the first (spec.md 4.4).
package validate

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/synapserun/synapse/pkg/models"
)

// Validator holds a registry of named schemas used both directly and by
// HandoffCoordinator's built-in contract templates.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]models.OutputSchema
}

// New returns a Validator seeded with the built-in schema templates
// spec.md 4.5 names: tabular, analysis, generic API response.
func New() *Validator {
	v := &Validator{schemas: make(map[string]models.OutputSchema)}
	for name, schema := range builtinSchemas() {
		v.schemas[name] = schema
	}
	return v
}

// RegisterSchema adds or replaces a named schema.
func (v *Validator) RegisterSchema(name string, schema models.OutputSchema) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.schemas[name] = schema
}

// Schema resolves a named schema.
func (v *Validator) Schema(name string) (models.OutputSchema, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.schemas[name]
	return s, ok
}

// Validate runs the schema named schemaName against value, a decoded
// JSON object (map[string]any, as produced by json.Unmarshal into
// interface{}). A schema name that is not registered is a validator
// config error, reported via ErrConfigError rather than panicking.
func (v *Validator) Validate(schemaName string, value map[string]interface{}) *models.ValidationResult {
	result := models.NewValidationResult()

	schema, ok := v.Schema(schemaName)
	if !ok {
		result.AddError("", models.ErrConfigError, fmt.Sprintf("unknown output schema %q", schemaName))
		return result
	}

	// Step 1: required-field presence.
	for _, field := range schema.RequiredFields {
		if _, present := value[field]; !present {
			result.AddError(field, models.ErrMissingRequiredField, fmt.Sprintf("required field %q is missing", field))
		}
	}

	// Step 2: declared field typing, for whichever fields are present.
	for field, declared := range schema.FieldTypes {
		raw, present := value[field]
		if !present {
			continue
		}
		if !matchesType(raw, declared) {
			result.AddError(field, models.ErrTypeMismatch, fmt.Sprintf("field %q expected type %s, got %s", field, declared, goType(raw)))
		}
	}

	// Step 3: rule evaluation. Rules are checked independently of typing
	// failures so a single malformed value yields every violation it
	// triggers, not just the first.
	for _, rule := range schema.Rules {
		raw, present := value[rule.Field]
		if !present {
			continue
		}
		if err := evaluateRule(rule, raw); err != "" {
			result.AddError(rule.Field, models.ErrRuleViolation, err)
		}
	}

	return result
}

func goType(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func matchesType(v interface{}, declared models.FieldType) bool {
	switch declared {
	case models.FieldString:
		_, ok := v.(string)
		return ok
	case models.FieldNumber:
		switch v.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	case models.FieldBoolean:
		_, ok := v.(bool)
		return ok
	case models.FieldArray:
		_, ok := v.([]interface{})
		return ok
	case models.FieldObject:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// evaluateRule returns a human-readable violation message, or "" if the
// rule is satisfied (or inapplicable to the value's runtime type — a
// type mismatch is already reported separately in step 2).
func evaluateRule(rule models.ValidationRule, value interface{}) string {
	switch rule.Kind {
	case models.RuleMinLength:
		s, ok := value.(string)
		if !ok {
			return ""
		}
		if len(s) < rule.N {
			return fmt.Sprintf("field %q must be at least %d characters, got %d", rule.Field, rule.N, len(s))
		}
	case models.RuleMaxLength:
		s, ok := value.(string)
		if !ok {
			return ""
		}
		if len(s) > rule.N {
			return fmt.Sprintf("field %q must be at most %d characters, got %d", rule.Field, rule.N, len(s))
		}
	case models.RulePattern:
		s, ok := value.(string)
		if !ok {
			return ""
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Sprintf("field %q has an invalid pattern rule: %v", rule.Field, err)
		}
		if !re.MatchString(s) {
			return fmt.Sprintf("field %q does not match pattern %q", rule.Field, rule.Pattern)
		}
	case models.RuleRange:
		n, ok := asFloat(value)
		if !ok {
			return ""
		}
		if n < rule.Min || n > rule.Max {
			return fmt.Sprintf("field %q = %v is outside range [%v, %v]", rule.Field, n, rule.Min, rule.Max)
		}
	case models.RuleEnum:
		s, ok := value.(string)
		if !ok {
			return ""
		}
		for _, allowed := range rule.Allowed {
			if s == allowed {
				return ""
			}
		}
		return fmt.Sprintf("field %q = %q is not one of %v", rule.Field, s, rule.Allowed)
	}
	return ""
}

// builtinSchemas are the pre-registered contract templates spec.md 4.5
// names for common handoff shapes.
func builtinSchemas() map[string]models.OutputSchema {
	return map[string]models.OutputSchema{
		"tabular": {
			SchemaVersion:  "1",
			RequiredFields: []string{"columns", "rows"},
			FieldTypes: map[string]models.FieldType{
				"columns": models.FieldArray,
				"rows":    models.FieldArray,
			},
		},
		"analysis": {
			SchemaVersion:  "1",
			RequiredFields: []string{"summary", "findings"},
			OptionalFields: []string{"confidence", "recommendations"},
			FieldTypes: map[string]models.FieldType{
				"summary":    models.FieldString,
				"findings":   models.FieldArray,
				"confidence": models.FieldNumber,
			},
			Rules: []models.ValidationRule{
				{Kind: models.RuleMinLength, Field: "summary", N: 1},
				{Kind: models.RuleRange, Field: "confidence", Min: 0, Max: 1},
			},
		},
		"generic_api_response": {
			SchemaVersion:  "1",
			RequiredFields: []string{"status"},
			OptionalFields: []string{"data", "error"},
			FieldTypes: map[string]models.FieldType{
				"status": models.FieldString,
			},
			Rules: []models.ValidationRule{
				{Kind: models.RuleEnum, Field: "status", Allowed: []string{"ok", "error"}},
			},
		},
	}
}
