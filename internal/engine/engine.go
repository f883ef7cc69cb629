// Package engine defines the client surface of the workflow engine
// being benchmarked and an HTTP adapter for it.
package engine

import (
	"context"
	"encoding/json"
)

// Execution is an opaque handle to one submitted unit of work, used to
// await its terminal result.
type Execution struct {
	// ID is the caller-assigned work item identifier.
	ID string
	// RunID is the engine-assigned execution identifier.
	RunID string
}

// Engine is the benchmarked workflow engine. The load generator only
// ever submits a named unit of work and awaits its terminal result;
// everything else the engine does is out of scope.
type Engine interface {
	// Submit starts one unit of work of the given kind. The id must be
	// unique within a run; params is a kind-specific JSON payload.
	Submit(ctx context.Context, id, kind string, params json.RawMessage) (*Execution, error)

	// AwaitResult blocks until the execution reaches a terminal state.
	// It returns nil on success and an error describing abnormal
	// termination otherwise. Cancelling ctx abandons the wait without
	// affecting the remote execution.
	AwaitResult(ctx context.Context, exec *Execution) error
}
