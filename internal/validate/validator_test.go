package validate

import (
	"testing"

	"github.com/synapserun/synapse/pkg/models"
)

func TestValidateUnknownSchemaIsConfigError(t *testing.T) {
	v := New()
	res := v.Validate("does_not_exist", map[string]interface{}{})
	if res.Valid {
		t.Fatal("expected invalid result for unknown schema")
	}
	if res.Errors[0].Kind != models.ErrConfigError {
		t.Fatalf("kind = %v, want ErrConfigError", res.Errors[0].Kind)
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	v := New()
	res := v.Validate("analysis", map[string]interface{}{"summary": "ok"})
	if res.Valid {
		t.Fatal("expected invalid result for missing findings")
	}
	found := false
	for _, e := range res.Errors {
		if e.Field == "findings" && e.Kind == models.ErrMissingRequiredField {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing_required_field for findings, got %+v", res.Errors)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	v := New()
	res := v.Validate("analysis", map[string]interface{}{
		"summary":  123, // should be a string
		"findings": []interface{}{"a"},
	})
	if res.Valid {
		t.Fatal("expected invalid result for type mismatch")
	}
	if res.Errors[0].Kind != models.ErrTypeMismatch {
		t.Fatalf("kind = %v, want ErrTypeMismatch", res.Errors[0].Kind)
	}
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	v := New()
	res := v.Validate("analysis", map[string]interface{}{
		"summary":    "",
		"findings":   []interface{}{},
		"confidence": 5.0, // out of [0,1] range
	})
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if len(res.Errors) < 2 {
		t.Fatalf("expected at least 2 accumulated errors (min_length + range), got %+v", res.Errors)
	}
}

func TestValidateSucceeds(t *testing.T) {
	v := New()
	res := v.Validate("generic_api_response", map[string]interface{}{"status": "ok"})
	if !res.Valid {
		t.Fatalf("expected valid result, got %+v", res.Errors)
	}
}

func TestValidateEnumRejectsUnknownValue(t *testing.T) {
	v := New()
	res := v.Validate("generic_api_response", map[string]interface{}{"status": "pending"})
	if res.Valid {
		t.Fatal("expected invalid result for out-of-enum status")
	}
}

func TestRegisterSchemaOverridesBuiltin(t *testing.T) {
	v := New()
	v.RegisterSchema("tabular", models.OutputSchema{RequiredFields: []string{"rows"}})
	res := v.Validate("tabular", map[string]interface{}{"rows": []interface{}{}})
	if !res.Valid {
		t.Fatalf("expected valid result after override, got %+v", res.Errors)
	}
}

func TestValidateAgainstJSONSchemaAccumulatesViolations(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"required": ["name", "age"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"age": {"type": "number", "minimum": 0}
		}
	}`)

	res, err := ValidateAgainstJSONSchema(schema, map[string]interface{}{"age": -5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid result: missing name, negative age")
	}
}
