package firegraph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/checkpoint/sqlite"
	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/engine"
	"github.com/hupe1980/firegraph/internal/testutil"
	"github.com/hupe1980/firegraph/tool"
)

func scriptedModel() *testutil.ScriptedModel {
	return testutil.NewScriptedModel().
		OnText(`Current user message: "hello"`, `{"use_agent": false, "reply": "Hello!"}`).
		OnText(`Current user message: "fire`, `{"use_agent": true, "reply": "Analyzing."}`).
		OnText("latest fire related news", "Two fires reported.").
		OnText("You analyze social media", "Smoke videos near route 7.").
		OnText("official public disaster data", "Evacuation alert issued.").
		OnText("expert in wildfire disaster response", "Head south from Gangneung now.")
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(nil)
	assert.True(t, core.IsKind(err, core.FailureConfiguration))
}

func TestApp_RunEndToEnd(t *testing.T) {
	catalog := tool.NewStaticCatalog(testutil.StaticTool("get_latest_location", `{"address":"Gangneung"}`))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)

	llm := scriptedModel()

	app, err := New(llm, func(o *Options) {
		o.Dialer = tool.StaticDialer(catalog)
		o.Store = store
		o.Retriever = &testutil.Retriever{Passages: []string{"Move away from the fire line."}}
	})
	require.NoError(t, err)

	res, err := app.Run(context.Background(), "user-1", "fire near me?", engine.WithRequestID("r1"))
	require.NoError(t, err)

	assert.Equal(t, "Head south from Gangneung now.", res.Text)
	assert.Equal(t, engine.RouteFinish, res.Route)
	assert.True(t, res.Persisted)
	assert.Equal(t, "Gangneung", res.State.Location.Address)
	assert.Equal(t, 1, llm.Calls("latest fire related news"))

	stored, err := store.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, res.Text, stored.Reply)
	assert.Equal(t, "Move away from the fire line.", stored.AnswerContext)

	require.NoError(t, app.Shutdown())
	assert.True(t, catalog.Closed())

	_, err = store.Load(context.Background(), "user-1")
	assert.Error(t, err, "store must be closed by Shutdown")
}

func TestApp_ShutdownIsIdempotent(t *testing.T) {
	catalog := tool.NewStaticCatalog()

	app, err := New(scriptedModel(), func(o *Options) { o.Dialer = tool.StaticDialer(catalog) })
	require.NoError(t, err)

	res, err := app.Run(context.Background(), "t1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", res.Text)

	require.NoError(t, app.Shutdown())
	require.NoError(t, app.Shutdown())

	_, err = app.Gateway().ToolsFor(context.Background(), core.RoleNews)
	assert.ErrorIs(t, err, tool.ErrGatewayClosed)
}
