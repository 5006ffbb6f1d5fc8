package agent

import (
	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from session state, environment, etc.
type Provider interface {
	Instruction(*core.State) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.State) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(s *core.State) (string, error) { return f(s) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.State) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// NewInstructionFromTemplate creates an Instruction rendered with text/template
// against the PromptData of the current state.
func NewInstructionFromTemplate(tmpl string) Instruction {
	return NewInstructionFromFunc(func(s *core.State) (string, error) {
		return util.RenderTemplate(tmpl, NewPromptData(s))
	})
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction was never set.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(s *core.State) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(s)
	}
	return i.text, nil
}

// PromptData is the view of the session state exposed to instruction templates.
type PromptData struct {
	Question      string
	Location      string
	News          string
	Social        string
	Disaster      string
	AnswerContext string
}

// NewPromptData extracts template fields from s.
func NewPromptData(s *core.State) PromptData {
	if s == nil {
		return PromptData{}
	}
	return PromptData{
		Question:      s.Question,
		Location:      s.Location.String(),
		News:          s.News,
		Social:        s.Social,
		Disaster:      s.Disaster,
		AnswerContext: s.AnswerContext,
	}
}
