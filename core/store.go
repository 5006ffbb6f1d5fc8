package core

import "context"

// CheckpointStore persists session state keyed by thread id.
//
// Load returns a fresh NewState when no checkpoint exists for the thread.
// Save creates the checkpoint on first write and replaces it afterwards.
// Implementations must not retain the pointer passed to Save nor hand out
// shared references from Load.
type CheckpointStore interface {
	Load(ctx context.Context, threadID string) (*State, error)
	Save(ctx context.Context, threadID string, state *State) error
}

// Retriever returns passages relevant to a query. An empty result is valid.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}
