package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/agent"
	"github.com/hupe1980/firegraph/checkpoint"
	"github.com/hupe1980/firegraph/core"
)

// gateDecider blocks every Decide until gate is closed.
type gateDecider struct {
	entered chan string
	gate    chan struct{}
}

func newGateDecider() *gateDecider {
	return &gateDecider{entered: make(chan string, 8), gate: make(chan struct{})}
}

func (d *gateDecider) Decide(ctx context.Context, s *core.State) (*agent.Decision, error) {
	d.entered <- s.ThreadID
	select {
	case <-d.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &agent.Decision{Reply: "hi " + s.Question}, nil
}

func (d *gateDecider) Synthesize(context.Context, *core.State) (*agent.Synthesis, error) {
	return &agent.Synthesis{Reply: "done"}, nil
}

func waitEntered(t *testing.T, d *gateDecider) string {
	t.Helper()

	select {
	case id := <-d.entered:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not reach the decision step")
		return ""
	}
}

func TestEngine_SameThreadTurnsAreSerialized(t *testing.T) {
	d := newGateDecider()
	store := checkpoint.NewInMemoryStore()
	e := New(d, nil, store)

	var wg sync.WaitGroup
	for _, input := range []string{"first", "second"} {
		wg.Add(1)
		go func(input string) {
			defer wg.Done()
			_, err := e.Run(context.Background(), "u1", input)
			assert.NoError(t, err)
		}(input)
	}

	assert.Equal(t, "u1", waitEntered(t, d))

	select {
	case <-d.entered:
		t.Fatal("second turn of the same thread started while the first was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(d.gate)
	assert.Equal(t, "u1", waitEntered(t, d))
	wg.Wait()

	stored, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Turn)
	assert.Len(t, stored.History, 4)
	assert.Equal(t, 0, e.threads.size())
}

func TestEngine_DifferentThreadsRunConcurrently(t *testing.T) {
	d := newGateDecider()
	e := New(d, nil, nil)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.Run(context.Background(), id, "hello")
			assert.NoError(t, err)
		}(id)
	}

	got := []string{waitEntered(t, d), waitEntered(t, d)}
	assert.ElementsMatch(t, []string{"a", "b"}, got)

	close(d.gate)
	wg.Wait()
}

func TestEngine_WaitingTurnHonorsDeadline(t *testing.T) {
	d := newGateDecider()
	e := New(d, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Run(context.Background(), "u1", "first")
	}()
	waitEntered(t, d)

	res, err := e.Run(context.Background(), "u1", "second", WithDeadline(20*time.Millisecond))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureTimeout))
	require.NotNil(t, res)
	assert.Equal(t, TimeoutMessage, res.Text)

	close(d.gate)
	<-done
	assert.Equal(t, 0, e.threads.size())
}
