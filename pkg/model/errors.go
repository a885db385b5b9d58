package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy for the agent platform. Callers branch with errors.Is
// against these sentinels; goerr.Wrap preserves the chain.
var (
	// ErrValidation indicates bad input shape or content. Local, surfaced to caller.
	ErrValidation = goerr.New("validation failed")

	// ErrNotFound indicates an unknown tool, workflow or agent ID.
	ErrNotFound = goerr.New("not found")

	// ErrRateLimit indicates a throttled tool invocation.
	ErrRateLimit = goerr.New("rate limit exceeded")

	// ErrDependency indicates an unavailable or failing external collaborator
	// (inference, embedding, vector search).
	ErrDependency = goerr.New("dependency failure")

	// ErrPersistence indicates a failed durable write. Never swallowed.
	ErrPersistence = goerr.New("persistence failure")
)
