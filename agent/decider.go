package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/logging"
	"github.com/hupe1980/firegraph/model"
	"github.com/hupe1980/firegraph/tool"
)

// PassageSeparator joins retrieved passages in the answer context.
const PassageSeparator = "\n\n---\n\n"

// Decision is the outcome of the decision step.
type Decision struct {
	UseAgent bool
	Reply    string
}

// Synthesis is the outcome of the final synthesis step.
type Synthesis struct {
	Reply         string
	AnswerContext string
}

// DeciderOptions configures a Decider.
type DeciderOptions struct {
	DecideInstruction     Instruction
	SynthesizeInstruction Instruction
	// Retriever supplies reference passages for the synthesis. Optional.
	Retriever core.Retriever
	// Tools supplies the synthesizer's tools. Optional.
	Tools    ToolSource
	MaxSteps int
	Logger   logging.Logger
}

// Decider implements both model backed engine steps. Decide classifies a
// fresh turn; Synthesize produces the final answer once data was gathered.
type Decider struct {
	loop   *ToolLoop
	opts   DeciderOptions
	logger logging.Logger
}

// NewDecider creates a Decider around llm.
func NewDecider(llm model.Model, optFns ...func(o *DeciderOptions)) *Decider {
	opts := DeciderOptions{
		DecideInstruction:     NewInstructionFromTemplate(DecideTemplate),
		SynthesizeInstruction: NewInstructionFromTemplate(SynthesizeTemplate),
		MaxSteps:              15,
		Logger:                logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.ForComponent(opts.Logger, "decider")

	return &Decider{
		opts:   opts,
		logger: logger,
		loop: NewToolLoop(llm, func(o *ToolLoopOptions) {
			o.MaxSteps = opts.MaxSteps
			o.Logger = logger
		}),
	}
}

// Decide asks the model whether the turn needs data gathering.
func (d *Decider) Decide(ctx context.Context, s *core.State) (*Decision, error) {
	instructions, err := d.opts.DecideInstruction.Resolve(s)
	if err != nil {
		return nil, fmt.Errorf("resolve decide instruction: %w", err)
	}

	answer, err := d.loop.Ask(ctx, instructions, historyMessages(s.History), nil)
	if err != nil {
		return nil, err
	}

	decision := ParseDecision(answer.Text)

	d.logger.Debug("decider.decided", "use_agent", decision.UseAgent)

	return &decision, nil
}

// Synthesize retrieves reference passages and asks the model for the final answer.
func (d *Decider) Synthesize(ctx context.Context, s *core.State) (*Synthesis, error) {
	view := s.Clone()
	view.AnswerContext = d.retrieve(ctx, s)

	instructions, err := d.opts.SynthesizeInstruction.Resolve(view)
	if err != nil {
		return nil, fmt.Errorf("resolve synthesize instruction: %w", err)
	}

	var tools []tool.Tool
	if d.opts.Tools != nil {
		tools, err = d.opts.Tools.ToolsFor(ctx, core.RoleSynthesizer)
		if err != nil {
			d.logger.Warn("decider.tools.unavailable", "error", err.Error())
			tools = nil
		}
	}

	answer, err := d.loop.Ask(ctx, instructions, historyMessages(s.History), tools)
	if err != nil {
		return nil, err
	}

	return &Synthesis{Reply: answer.Text, AnswerContext: view.AnswerContext}, nil
}

// RefinedQuery builds the retrieval query from the gathered situation.
func RefinedQuery(s *core.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current situation: %s %s\n", s.News, s.Disaster)
	fmt.Fprintf(&b, "User location: %s\n", s.Location.String())
	fmt.Fprintf(&b, "Question: %q\n", s.Question)
	b.WriteString("Given this situation and location, what are the most appropriate response guidelines or comparable past fire incidents?")
	return b.String()
}

func (d *Decider) retrieve(ctx context.Context, s *core.State) string {
	if d.opts.Retriever == nil {
		return ""
	}

	passages, err := d.opts.Retriever.Retrieve(ctx, RefinedQuery(s))
	if err != nil {
		d.logger.Warn("decider.retrieve.failed", "error", err.Error())
		return ""
	}

	d.logger.Debug("decider.retrieved", "passages", len(passages))

	return strings.Join(passages, PassageSeparator)
}

// ParseDecision extracts a Decision from the model's answer. The answer may
// wrap the JSON object in prose or code fences. Answers without a JSON
// object are treated as direct replies.
func ParseDecision(text string) Decision {
	obj := extractJSONObject(text)
	if obj == "" {
		return Decision{Reply: strings.TrimSpace(text)}
	}

	res := gjson.Parse(obj)

	decision := Decision{}

	switch v := res.Get("use_agent"); v.Type {
	case gjson.True, gjson.False:
		decision.UseAgent = v.Bool()
	case gjson.String:
		decision.UseAgent = strings.EqualFold(strings.TrimSpace(v.String()), "true")
	}

	for _, key := range []string{"reply", "response", "message"} {
		if v := res.Get(key); v.Exists() {
			decision.Reply = v.String()
			break
		}
	}

	return decision
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}

	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return ""
	}

	return candidate
}
