// Package tool defines the self-describing capability contract agents
// invoke, and the registry that indexes tools by name.
package tool

import (
	"context"
	"encoding/json"

	"github.com/synapserun/synapse/pkg/models"
)

// Tool is the capability contract every agent action resolves to.
//
// Metadata is pure and constant for the object's lifetime. Validate is a
// pure, idempotent check that MUST NOT perform I/O. Execute may perform
// I/O, MUST NOT panic on well-formed input, and converts external
// failures into a ToolResult with Success=false rather than raising.
//
// Implementations SHOULD call Validate at the top of Execute and fail
// fast on rejection (P6: validate(args) = Ok is necessary for execute to
// succeed on those args).
type Tool interface {
	Metadata() models.ToolMetadata
	Validate(arguments json.RawMessage) error
	Execute(ctx context.Context, arguments json.RawMessage) (*models.ToolResult, error)
}

// Example sketches the shape of a minimal tool:
//
//	type Calculator struct{}
//
//	func (c *Calculator) Metadata() models.ToolMetadata {
//	    return models.ToolMetadata{Name: "calculator", Description: "evaluates arithmetic"}
//	}
//
//	func (c *Calculator) Validate(args json.RawMessage) error { return nil }
//
//	func (c *Calculator) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
//	    return models.Ok("4"), nil
//	}
