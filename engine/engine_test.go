package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/agent"
	"github.com/hupe1980/firegraph/checkpoint"
	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/fanout"
	"github.com/hupe1980/firegraph/internal/testutil"
	"github.com/hupe1980/firegraph/model"
)

const (
	matchHello      = `Current user message: "hello"`
	matchFire       = `Current user message: "fire`
	matchNews       = "latest fire related news"
	matchSocial     = "You analyze social media"
	matchDisaster   = "official public disaster data"
	matchSynthesize = "expert in wildfire disaster response"
)

type fixture struct {
	llm   *testutil.ScriptedModel
	store *checkpoint.InMemoryStore
	tools *testutil.ToolSource
	opts  []func(o *Options)
	fan   []func(o *fanout.Options)
}

func newFixture() *fixture {
	llm := testutil.NewScriptedModel().
		OnText(matchHello, `{"use_agent": false, "reply": "Hello! Ask me about fires near you."}`).
		OnText(matchFire, `{"use_agent": true, "reply": "Analyzing the situation."}`).
		OnText(matchNews, "Two fires reported in Gangwon.").
		OnText(matchSocial, "Eyewitness videos show smoke near route 7.").
		OnText(matchDisaster, "Evacuation alert issued.").
		OnFunc(matchSynthesize, func(_ context.Context, req model.Request) (*model.Response, error) {
			loc := "unknown"
			if strings.Contains(req.Instructions, "User location: Gangneung") {
				loc = "Gangneung"
			}
			return model.TextResponse("Leave " + loc + " heading south now."), nil
		})

	tools := testutil.NewToolSource().
		Add(core.RoleLocator, testutil.StaticTool("get_latest_location", `{"address":"Gangneung"}`))

	return &fixture{llm: llm, store: checkpoint.NewInMemoryStore(), tools: tools}
}

func (f *fixture) engine(t *testing.T) *Engine {
	t.Helper()

	workers := make([]fanout.Runner, 0, 3)
	for _, role := range core.GatherRoles() {
		w, err := agent.NewWorker(role, f.llm, f.tools)
		require.NoError(t, err)
		workers = append(workers, w)
	}

	coordinator := fanout.New(agent.NewLocator(f.tools), workers, f.fan...)

	return New(agent.NewDecider(f.llm, func(o *agent.DeciderOptions) {
		o.Tools = f.tools
		o.Retriever = &testutil.Retriever{Passages: []string{"Move downwind of the fire line."}}
	}), coordinator, f.store, f.opts...)
}

func TestEngine_HelloTerminatesWithoutWorkers(t *testing.T) {
	f := newFixture()

	res, err := f.engine(t).Run(context.Background(), "t1", "hello")
	require.NoError(t, err)

	assert.Equal(t, "Hello! Ask me about fires near you.", res.Text)
	assert.Equal(t, RouteTerminate, res.Route)
	assert.True(t, res.Persisted)
	assert.True(t, res.State.TurnComplete)
	assert.Equal(t, core.PhaseAwaitingDecision, res.State.Phase)

	assert.Equal(t, 0, f.llm.Calls(matchNews))
	assert.Equal(t, 0, f.llm.Calls(matchSynthesize))

	stored, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, res.Text, stored.Reply)
	require.Len(t, stored.History, 2)
	assert.Equal(t, core.MessageRoleUser, stored.History[0].Role)
	assert.Equal(t, core.AuthorDecision, stored.History[1].Author)
}

func TestEngine_FireGathersAndFinishes(t *testing.T) {
	f := newFixture()

	var steps []Step
	f.opts = append(f.opts, func(o *Options) {
		o.Hooks = append(o.Hooks, NewFunctionHook(HookAfterStep, func(_ context.Context, hc *HookContext) error {
			steps = append(steps, hc.Step)
			return nil
		}))
	})

	res, err := f.engine(t).Run(context.Background(), "t1", "fire near me?")
	require.NoError(t, err)

	assert.Equal(t, "Leave Gangneung heading south now.", res.Text)
	assert.Equal(t, RouteFinish, res.Route)
	assert.Equal(t, []Step{StepDecide, StepGather, StepSynthesize}, steps)

	s := res.State
	assert.Equal(t, "Gangneung", s.Location.Address)
	assert.Equal(t, "Two fires reported in Gangwon.", s.News)
	assert.Equal(t, "Eyewitness videos show smoke near route 7.", s.Social)
	assert.Equal(t, "Evacuation alert issued.", s.Disaster)
	assert.Equal(t, "Move downwind of the fire line.", s.AnswerContext)
	assert.Equal(t, core.PhaseSynthesizing, s.Phase)
	assert.True(t, s.TurnComplete)

	// user, decision reply, three worker reports, final answer
	require.Len(t, s.History, 6)
	assert.Equal(t, "UserInterfaceAgent", s.History[1].Author)
	assert.Equal(t, "FinalResponseAgent", s.History[5].Author)
	assert.Equal(t, res.Text, s.History[5].Content)
	assert.Equal(t, 1, f.llm.Calls(matchSynthesize))
}

func TestEngine_WorkerTimeoutStillAnswers(t *testing.T) {
	f := newFixture()
	f.llm = testutil.NewScriptedModel().
		OnFunc(matchSocial, func(ctx context.Context, _ model.Request) (*model.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		OnText(matchFire, `{"use_agent": true, "reply": "Analyzing."}`).
		OnText(matchNews, "news").
		OnText(matchDisaster, "alert").
		OnFunc(matchSynthesize, func(_ context.Context, req model.Request) (*model.Response, error) {
			if strings.Contains(req.Instructions, "Social media analysis: No data collected.") {
				return model.TextResponse("Answer without social data."), nil
			}
			return model.TextResponse("unexpected"), nil
		})
	f.fan = append(f.fan, func(o *fanout.Options) { o.WorkerTimeout = 30 * time.Millisecond })

	res, err := f.engine(t).Run(context.Background(), "t1", "fire?")
	require.NoError(t, err)

	assert.Equal(t, "Answer without social data.", res.Text)
	assert.Equal(t, "news", res.State.News)
	assert.Equal(t, "alert", res.State.Disaster)
	assert.Empty(t, res.State.Social)
}

func TestEngine_TrimsHistoryBeforeDeciding(t *testing.T) {
	f := newFixture()

	seeded := testutil.NewStateBuilder("t1").History(11).Build()
	require.NoError(t, f.store.Save(context.Background(), "t1", seeded))

	res, err := f.engine(t).Run(context.Background(), "t1", "hello")
	require.NoError(t, err)

	reqs := f.llm.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 10)
	assert.Equal(t, "m2", reqs[0].Messages[0].Content)
	assert.Equal(t, "hello", reqs[0].Messages[9].Content)

	assert.Len(t, res.State.History, 11)
}

func TestEngine_TurnTimeout(t *testing.T) {
	f := newFixture()
	f.llm = testutil.NewScriptedModel().OnFunc("front desk", func(ctx context.Context, _ model.Request) (*model.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	res, err := f.engine(t).Run(context.Background(), "t1", "fire?", WithDeadline(30*time.Millisecond))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureTimeout))

	f2, ok := core.AsFailure(err)
	require.True(t, ok)
	assert.True(t, f2.Retryable())

	require.NotNil(t, res)
	assert.Equal(t, TimeoutMessage, res.Text)
	assert.False(t, res.State.TurnComplete)

	stored, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, core.PhaseAwaitingDecision, stored.Phase)
	assert.Equal(t, "fire?", stored.Question)
}

type failingStore struct {
	*checkpoint.InMemoryStore
	err error
}

func (s failingStore) Save(context.Context, string, *core.State) error { return s.err }

func TestEngine_PersistenceFailureStillAnswers(t *testing.T) {
	f := newFixture()

	e := New(agent.NewDecider(f.llm), nil, failingStore{InMemoryStore: checkpoint.NewInMemoryStore(), err: errors.New("disk full")})

	res, err := e.Run(context.Background(), "t1", "hello")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailurePersistence))
	assert.ErrorContains(t, err, "disk full")

	require.NotNil(t, res)
	assert.Equal(t, "Hello! Ask me about fires near you.", res.Text)
	assert.False(t, res.Persisted)
}

// flakyLoadStore fails the first Load and delegates afterwards.
type flakyLoadStore struct {
	*checkpoint.InMemoryStore
	failures atomic.Int32
}

func (s *flakyLoadStore) Load(ctx context.Context, threadID string) (*core.State, error) {
	if s.failures.Add(-1) >= 0 {
		return nil, errors.New("database is locked")
	}
	return s.InMemoryStore.Load(ctx, threadID)
}

func TestEngine_LoadFailureKeepsCheckpoint(t *testing.T) {
	f := newFixture()

	seeded := testutil.NewStateBuilder("t1").History(8).Build()
	seeded.Turn = 4
	require.NoError(t, f.store.Save(context.Background(), "t1", seeded))

	store := &flakyLoadStore{InMemoryStore: f.store}
	store.failures.Store(1)

	e := New(agent.NewDecider(f.llm), nil, store)

	res, err := e.Run(context.Background(), "t1", "hello")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailurePersistence))
	assert.Contains(t, err.Error(), "load")

	require.NotNil(t, res)
	assert.Equal(t, "Hello! Ask me about fires near you.", res.Text)
	assert.False(t, res.Persisted)

	stored, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Turn)
	assert.Len(t, stored.History, 8)

	res, err = e.Run(context.Background(), "t1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 5, res.State.Turn)
	assert.True(t, res.Persisted)
}

func TestEngine_RequestIDReplaysCompletedTurn(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	first, err := e.Run(context.Background(), "t1", "hello", WithRequestID("r1"))
	require.NoError(t, err)

	again, err := e.Run(context.Background(), "t1", "hello", WithRequestID("r1"))
	require.NoError(t, err)

	assert.Equal(t, first.Text, again.Text)
	assert.Equal(t, 1, again.State.Turn)
	assert.Len(t, again.State.History, 2)
	assert.Equal(t, 1, f.llm.Calls("front desk"))

	next, err := e.Run(context.Background(), "t1", "hello", WithRequestID("r2"))
	require.NoError(t, err)
	assert.Equal(t, 2, next.State.Turn)
}

func TestEngine_RequestIDResumesInterruptedTurn(t *testing.T) {
	f := newFixture()

	var synthCalls atomic.Int32
	f.llm = testutil.NewScriptedModel().
		OnText(matchFire, `{"use_agent": true, "reply": "Analyzing."}`).
		OnText(matchNews, "news").
		OnText(matchSocial, "social").
		OnText(matchDisaster, "alert").
		OnFunc(matchSynthesize, func(context.Context, model.Request) (*model.Response, error) {
			if synthCalls.Add(1) == 1 {
				return nil, errors.New("model overloaded")
			}
			return model.TextResponse("Final answer."), nil
		})

	e := f.engine(t)

	_, err := e.Run(context.Background(), "t1", "fire?", WithRequestID("r1"))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureTerminalStep))

	stored, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, core.PhaseSynthesizing, stored.Phase)
	assert.Equal(t, "news", stored.News)

	res, err := e.Run(context.Background(), "t1", "fire?", WithRequestID("r1"))
	require.NoError(t, err)
	assert.Equal(t, "Final answer.", res.Text)
	assert.Equal(t, 1, f.llm.Calls(matchNews))
	assert.Equal(t, 1, f.llm.Calls(matchFire))
	assert.Equal(t, 1, res.State.Turn)
}

func TestEngine_StepLimit(t *testing.T) {
	f := newFixture()
	f.opts = append(f.opts, func(o *Options) { o.MaxSteps = 1 })

	res, err := f.engine(t).Run(context.Background(), "t1", "fire?")
	assert.Nil(t, res)
	assert.True(t, core.IsKind(err, core.FailureTerminalStep))

	stored, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, core.PhaseGathering, stored.Phase)
}

func TestEngine_ValidationHookVetoesCommit(t *testing.T) {
	f := newFixture()

	var failed atomic.Bool
	f.opts = append(f.opts, func(o *Options) {
		o.Hooks = []Hook{
			NewStateValidationHook(func(s *core.State) error {
				if s.Phase == core.PhaseGathering {
					return errors.New("gathering disabled")
				}
				return nil
			}),
			NewFunctionHook(HookOnError, func(context.Context, *HookContext) error {
				failed.Store(true)
				return nil
			}),
		}
	})

	_, err := f.engine(t).Run(context.Background(), "t1", "fire?")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FailureTerminalStep))
	assert.ErrorContains(t, err, "gathering disabled")
	assert.True(t, failed.Load())
}

func TestEngine_RequiresThreadID(t *testing.T) {
	_, err := New(agent.NewDecider(testutil.NewScriptedModel()), nil, nil).Run(context.Background(), "", "hello")
	assert.True(t, core.IsKind(err, core.FailureConfiguration))
}
