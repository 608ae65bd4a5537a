package handoff

import (
	"testing"

	"github.com/synapserun/synapse/internal/validate"
	"github.com/synapserun/synapse/pkg/models"
)

func TestValidateHandoffFailureResponse(t *testing.T) {
	c := New(validate.New())
	res, err := c.ValidateHandoff("analysis", models.AgentResponse{
		Kind:  models.ResponseFailure,
		Error: "tool exhausted retries",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid result for a failure response")
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != models.ErrAgentFailure {
		t.Fatalf("errors = %+v, want single ErrAgentFailure", res.Errors)
	}
}

func TestValidateHandoffTimeoutResponse(t *testing.T) {
	c := New(validate.New())
	res, _ := c.ValidateHandoff("analysis", models.AgentResponse{Kind: models.ResponseTimeout})
	if res.Valid {
		t.Fatal("expected invalid result for a timeout response")
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != models.ErrAgentTimeout {
		t.Fatalf("errors = %+v, want single ErrAgentTimeout", res.Errors)
	}
}

func TestValidateHandoffSuccessBelowConfidenceIsWarningOnly(t *testing.T) {
	c := New(validate.New())
	res, _ := c.ValidateHandoff("analysis", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   `{"insights":["x"],"confidence_score":0.9}`,
		Metadata: models.OutputMetadata{Confidence: 0.1},
	})
	if !res.Valid {
		t.Fatalf("low confidence alone must not invalidate, got %+v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a confidence warning")
	}
}

// spec.md 4.5 step 3.b: an SLA breach is a warning, never a failure — the
// supervisor decides whether to retry, the coordinator never forces it.
func TestValidateHandoffSuccessSLABreachIsWarningOnly(t *testing.T) {
	c := New(validate.New())
	res, _ := c.ValidateHandoff("generic_api_response", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   `{"status":"ok"}`,
		Metadata: models.OutputMetadata{Confidence: 1.0, ExecutionTimeMs: 60000},
	})
	if !res.Valid {
		t.Fatalf("SLA breach alone must not invalidate, got %+v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected an SLA breach warning")
	}
	for _, e := range res.Errors {
		if e.Kind == models.ErrSLABreach {
			t.Fatalf("SLA breach must not appear as an error, got %+v", res.Errors)
		}
	}
}

func TestValidateHandoffSuccessNotJSONIsNotStructured(t *testing.T) {
	c := New(validate.New())
	res, _ := c.ValidateHandoff("analysis", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   "plain text, not json",
		Metadata: models.OutputMetadata{Confidence: 1.0},
	})
	if res.Valid {
		t.Fatal("expected invalid result for unparsable result")
	}
	if res.Errors[0].Kind != models.ErrNotStructured {
		t.Fatalf("kind = %v, want ErrNotStructured", res.Errors[0].Kind)
	}
}

// spec.md 4.5 step 3.c: a parse failure against an empty-schema contract
// (no required fields) is a warning, not a failure.
func TestValidateHandoffNotJSONAgainstEmptySchemaIsWarningOnly(t *testing.T) {
	c := New(validate.New())
	c.RegisterContract(models.HandoffContract{Name: "freeform"})
	res, _ := c.ValidateHandoff("freeform", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   "plain text, not json",
		Metadata: models.OutputMetadata{Confidence: 1.0},
	})
	if !res.Valid {
		t.Fatalf("unparsable result against an empty schema must not invalidate, got %+v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a not-structured warning")
	}
}

func TestValidateHandoffSuccessDelegatesSchemaValidation(t *testing.T) {
	c := New(validate.New())
	res, _ := c.ValidateHandoff("analysis", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   `{"insights":["x"]}`, // missing required "confidence_score"
		Metadata: models.OutputMetadata{Confidence: 1.0},
	})
	if res.Valid {
		t.Fatal("expected schema violation to propagate")
	}
	found := false
	for _, e := range res.Errors {
		if e.Field == "confidence_score" && e.Kind == models.ErrMissingRequiredField {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing confidence_score error, got %+v", res.Errors)
	}
}

func TestValidateHandoffTabularContract(t *testing.T) {
	c := New(validate.New())
	res, _ := c.ValidateHandoff("tabular", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   `{"data":[1,2,3],"status":"success","row_count":3}`,
		Metadata: models.OutputMetadata{Confidence: 1.0},
	})
	if !res.Valid {
		t.Fatalf("expected a valid tabular handoff, got %+v", res.Errors)
	}

	res, _ = c.ValidateHandoff("tabular", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   `{"data":[1],"status":"in_progress"}`,
		Metadata: models.OutputMetadata{Confidence: 1.0},
	})
	if res.Valid {
		t.Fatal("expected an enum violation for an out-of-range status")
	}
}

func TestValidateHandoffUnknownContract(t *testing.T) {
	c := New(validate.New())
	res, _ := c.ValidateHandoff("nonexistent", models.AgentResponse{Kind: models.ResponseSuccess})
	if res.Valid {
		t.Fatal("expected invalid result for unknown contract")
	}
}

func TestRegisterContractWiresItsSchema(t *testing.T) {
	c := New(validate.New())
	c.RegisterContract(models.HandoffContract{
		Name: "custom",
		Schema: models.OutputSchema{
			RequiredFields: []string{"ok"},
		},
	})
	res, _ := c.ValidateHandoff("custom", models.AgentResponse{
		Kind:     models.ResponseSuccess,
		Result:   `{}`,
		Metadata: models.OutputMetadata{Confidence: 1.0},
	})
	if res.Valid {
		t.Fatal("expected missing-field error from the newly registered schema")
	}
}
