package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/firegraph/model"
)

// ScriptedModel answers requests according to rules matched against the
// request instructions. Rules are checked in registration order; unmatched
// requests get the text "ok".
type ScriptedModel struct {
	*model.MockModel

	mu    sync.Mutex
	rules []scriptRule
}

type scriptRule struct {
	match string
	fn    model.HandlerFunc
}

// NewScriptedModel creates an empty script.
func NewScriptedModel() *ScriptedModel {
	m := &ScriptedModel{MockModel: model.NewMockModel("scripted", "test")}
	m.SetHandler(m.handle)
	return m
}

// On replies to requests whose instructions contain match with responses in
// order; the last response repeats (chainable).
func (m *ScriptedModel) On(match string, responses ...*model.Response) *ScriptedModel {
	var (
		mu sync.Mutex
		n  int
	)

	return m.OnFunc(match, func(context.Context, model.Request) (*model.Response, error) {
		mu.Lock()
		defer mu.Unlock()

		idx := n
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		n++

		r := *responses[idx]
		return &r, nil
	})
}

// OnText is On with plain text replies (chainable).
func (m *ScriptedModel) OnText(match string, texts ...string) *ScriptedModel {
	responses := make([]*model.Response, 0, len(texts))
	for _, t := range texts {
		responses = append(responses, model.TextResponse(t))
	}
	return m.On(match, responses...)
}

// OnError fails requests whose instructions contain match (chainable).
func (m *ScriptedModel) OnError(match string, err error) *ScriptedModel {
	return m.OnFunc(match, func(context.Context, model.Request) (*model.Response, error) {
		return nil, err
	})
}

// OnFunc delegates matching requests to fn (chainable).
func (m *ScriptedModel) OnFunc(match string, fn model.HandlerFunc) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = append(m.rules, scriptRule{match: match, fn: fn})

	return m
}

// Calls returns how many requests had instructions containing match.
func (m *ScriptedModel) Calls(match string) int {
	n := 0
	for _, req := range m.Requests() {
		if strings.Contains(req.Instructions, match) {
			n++
		}
	}
	return n
}

func (m *ScriptedModel) handle(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	rules := append([]scriptRule(nil), m.rules...)
	m.mu.Unlock()

	for _, r := range rules {
		if strings.Contains(req.Instructions, r.match) {
			return r.fn(ctx, req)
		}
	}

	return model.TextResponse("ok"), nil
}
