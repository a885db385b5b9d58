package tool

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/urfave/cli/v3"
)

// RateLimit is a fixed-window limit on tool invocations
type RateLimit struct {
	MaxCalls int
	Window   time.Duration
}

// Spec describes a registered tool: its unique name, the JSON schema its
// arguments are validated against, and optional abuse protections.
type Spec struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	RateLimit   *RateLimit
	Timeout     time.Duration
}

// Tool represents a named operation that can be called by the LLM or
// through the API surface
type Tool interface {
	// Spec returns the tool specification
	Spec() *Spec

	// Execute runs the tool with already-validated arguments
	Execute(ctx context.Context, args map[string]any) (any, error)

	// Init prepares the tool with shared resources. The returned bool
	// reports whether the tool is enabled with the current configuration.
	Init(ctx context.Context, client *Client) (bool, error)

	// Prompt returns additional information to be added to the system prompt.
	// Returns empty string if no additional prompt is needed.
	Prompt(ctx context.Context) string

	// Flags returns CLI flags for this tool.
	// Returns nil if no flags are needed.
	Flags() []cli.Flag
}
