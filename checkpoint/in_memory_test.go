package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.CheckpointStore = (*InMemoryStore)(nil)

func TestInMemoryStore_MissingThreadIsFresh(t *testing.T) {
	s := NewInMemoryStore()

	state, err := s.Load(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "t1", state.ThreadID)
	assert.Empty(t, state.History)
	assert.Equal(t, core.PhaseAwaitingDecision, state.Phase)
	assert.Equal(t, 0, s.Threads())
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	state := testutil.NewStateBuilder("t1").History(3).Question("fire?").Location("Andong").
		Slot(core.DomainNews, "news").Phase(core.PhaseSynthesizing).UseAgent(true).Build()

	require.NoError(t, s.Save(ctx, "t1", state))

	loaded, err := s.Load(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, state.Question, loaded.Question)
	assert.Equal(t, state.Location, loaded.Location)
	assert.Equal(t, state.News, loaded.News)
	assert.Equal(t, state.Phase, loaded.Phase)
	assert.True(t, loaded.UseAgent)
	require.Len(t, loaded.History, 4)
	assert.Equal(t, state.History[3].ID, loaded.History[3].ID)
	assert.True(t, state.UpdatedAt.Equal(loaded.UpdatedAt))
}

func TestInMemoryStore_Isolation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	state := core.NewState("t1")
	state.Question = "before"
	require.NoError(t, s.Save(ctx, "t1", state))

	state.Question = "after"

	loaded, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "before", loaded.Question)

	loaded.Question = "mutated"

	again, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "before", again.Question)
}

func TestDecode_ToleratesUnknownFields(t *testing.T) {
	state, err := Decode("t2", []byte(`{"thread_id":"other","question":"q","v2_field":[1,2]}`))
	require.NoError(t, err)

	assert.Equal(t, "t2", state.ThreadID)
	assert.Equal(t, "q", state.Question)
	assert.NotNil(t, state.History)
	assert.Equal(t, core.PhaseAwaitingDecision, state.Phase)

	_, err = Decode("t2", []byte(`{not json`))
	assert.Error(t, err)
}

func TestInMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewInMemoryStore()
	assert.ErrorIs(t, s.Save(ctx, "t1", core.NewState("t1")), context.Canceled)

	_, err := s.Load(ctx, "t1")
	assert.ErrorIs(t, err, context.Canceled)
}
