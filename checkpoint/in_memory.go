package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/firegraph/core"
)

// InMemoryStore is a volatile CheckpointStore keeping JSON snapshots in a
// process local map. It is safe for concurrent access and best suited for
// tests or single-process demo servers. Snapshots are encoded on Save and
// decoded on Load, so callers never share memory with the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string][]byte)}
}

// Load returns the checkpoint of threadID or a fresh state when none exists.
func (s *InMemoryStore) Load(ctx context.Context, threadID string) (*core.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	raw, ok := s.snapshots[threadID]
	s.mu.RUnlock()

	if !ok {
		return core.NewState(threadID), nil
	}

	return Decode(threadID, raw)
}

// Save stores a snapshot of state under threadID, replacing any previous one.
func (s *InMemoryStore) Save(ctx context.Context, threadID string, state *core.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := Encode(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[threadID] = raw

	return nil
}

// Threads returns the number of stored checkpoints.
func (s *InMemoryStore) Threads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.snapshots)
}

// Encode serializes a state snapshot.
func Encode(state *core.State) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("encode checkpoint: nil state")
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}

	return raw, nil
}

// Decode restores a snapshot written by Encode. The thread id of the key wins
// over the one stored in the snapshot.
func Decode(threadID string, raw []byte) (*core.State, error) {
	state := core.NewState(threadID)
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}

	state.ThreadID = threadID
	if state.History == nil {
		state.History = []core.Message{}
	}
	if state.Phase == "" {
		state.Phase = core.PhaseAwaitingDecision
	}

	return state, nil
}
