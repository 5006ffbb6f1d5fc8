package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CloneIsIndependent(t *testing.T) {
	s := NewState("t1")
	s.Append(NewUserMessage("hello"))

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should return a different pointer")
	}

	clone.Append(NewAgentMessage("Supervisor", "hi"))
	clone.History[0].Content = "changed"
	clone.News = "news"

	assert.Len(t, s.History, 1)
	assert.Equal(t, "hello", s.History[0].Content)
	assert.Empty(t, s.News)
}

func TestState_SlotRoundTrip(t *testing.T) {
	s := NewState("t1")

	for _, d := range []Domain{DomainNews, DomainSocial, DomainDisaster, DomainAnswerContext} {
		require.NoError(t, s.SetSlot(d, "v-"+string(d)))
		assert.Equal(t, "v-"+string(d), s.Slot(d))
	}

	assert.Error(t, s.SetSlot(Domain("weather"), "x"))
	assert.Empty(t, s.Slot(Domain("weather")))
}

func TestState_BeginTurnResetsCycleFields(t *testing.T) {
	s := NewState("t1")
	s.BeginTurn("first", "r1")
	s.UseAgent = true
	s.Phase = PhaseSynthesizing
	s.Location = Location{Address: "Seoul"}
	s.News, s.Social, s.Disaster, s.AnswerContext = "n", "s", "d", "a"
	s.Complete("answer")

	s.BeginTurn("second", "r2")

	assert.Equal(t, "second", s.Question)
	assert.Equal(t, "r2", s.RequestID)
	assert.Equal(t, 2, s.Turn)
	assert.False(t, s.UseAgent)
	assert.False(t, s.TurnComplete)
	assert.Equal(t, PhaseAwaitingDecision, s.Phase)
	assert.True(t, s.Location.IsZero())
	assert.Empty(t, s.News+s.Social+s.Disaster+s.AnswerContext+s.Reply)
	require.Len(t, s.History, 2)
	assert.Equal(t, MessageRoleUser, s.History[1].Role)
	assert.Equal(t, "second", s.History[1].Content)
}

func TestState_JSONIgnoresUnknownFields(t *testing.T) {
	raw := `{"thread_id":"t9","question":"q","phase":"gathering","future_field":{"x":1},"history":[{"id":"m1","role":"user","content":"q"}]}`

	var s State
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, "t9", s.ThreadID)
	assert.Equal(t, PhaseGathering, s.Phase)
	require.Len(t, s.History, 1)
	assert.Equal(t, "m1", s.History[0].ID)
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "", Location{}.String())
	assert.Equal(t, "Gangneung", Location{Address: "Gangneung"}.String())
	assert.Equal(t, "37.500000,127.000000", Location{Latitude: 37.5, Longitude: 127}.String())
}

func TestRole_Domain(t *testing.T) {
	d, ok := RoleNews.Domain()
	assert.True(t, ok)
	assert.Equal(t, DomainNews, d)

	_, ok = RoleLocator.Domain()
	assert.False(t, ok)

	for _, r := range GatherRoles() {
		_, ok := r.Domain()
		assert.True(t, ok, "gather role %s must own a slot", r)
	}
}
