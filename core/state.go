package core

import (
	"fmt"
	"time"
)

// Phase marks where a session currently is inside a single turn.
type Phase string

const (
	// PhaseAwaitingDecision is the initial phase of every turn.
	PhaseAwaitingDecision Phase = "awaiting_decision"
	// PhaseGathering means the decision step asked for data collection.
	PhaseGathering Phase = "gathering"
	// PhaseSynthesizing means gathering finished and the final answer is pending.
	PhaseSynthesizing Phase = "synthesizing"
)

// Location is the structured address a locator worker resolved for the user.
type Location struct {
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// IsZero reports whether no location has been resolved.
func (l Location) IsZero() bool {
	return l.Address == "" && l.Latitude == 0 && l.Longitude == 0
}

// String renders the location for prompts.
func (l Location) String() string {
	switch {
	case l.Address != "":
		return l.Address
	case l.Latitude != 0 || l.Longitude != 0:
		return fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude)
	default:
		return ""
	}
}

// State is the session state persisted between engine steps.
//
// Contract:
//   - History is append-only for callers; only the trimmer drops entries
//     (oldest first)
//   - a partial-result slot is written only by the worker owning its Domain
//   - Clone returns a copy whose slices can be mutated independently
//
// Unknown JSON fields are ignored on decode so checkpoints written by newer
// versions stay readable.
type State struct {
	ThreadID      string    `json:"thread_id"`
	History       []Message `json:"history"`
	Question      string    `json:"question"`
	Location      Location  `json:"location"`
	News          string    `json:"news,omitempty"`
	Social        string    `json:"social,omitempty"`
	Disaster      string    `json:"disaster,omitempty"`
	AnswerContext string    `json:"answer_context,omitempty"`
	UseAgent      bool      `json:"use_agent"`
	Phase         Phase     `json:"phase"`
	Reply         string    `json:"reply,omitempty"`
	TurnComplete  bool      `json:"turn_complete"`
	RequestID     string    `json:"request_id,omitempty"`
	Turn          int       `json:"turn"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewState creates an empty state for the given thread.
func NewState(threadID string) *State {
	return &State{
		ThreadID:  threadID,
		History:   []Message{},
		Phase:     PhaseAwaitingDecision,
		UpdatedAt: time.Now(),
	}
}

// Clone returns a copy of the state safe for independent mutation.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.History = make([]Message, len(s.History))
	copy(c.History, s.History)
	return &c
}

// Slot returns the partial result stored for d.
func (s *State) Slot(d Domain) string {
	switch d {
	case DomainNews:
		return s.News
	case DomainSocial:
		return s.Social
	case DomainDisaster:
		return s.Disaster
	case DomainAnswerContext:
		return s.AnswerContext
	default:
		return ""
	}
}

// SetSlot stores a partial result for d. Unknown domains are rejected.
func (s *State) SetSlot(d Domain, value string) error {
	switch d {
	case DomainNews:
		s.News = value
	case DomainSocial:
		s.Social = value
	case DomainDisaster:
		s.Disaster = value
	case DomainAnswerContext:
		s.AnswerContext = value
	default:
		return fmt.Errorf("unknown domain %q", d)
	}
	s.touch()
	return nil
}

// Gathered reports whether the gather phase already ran for this turn.
func (s *State) Gathered() bool { return s.Phase == PhaseSynthesizing }

// Append adds messages to the history.
func (s *State) Append(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	s.History = append(s.History, msgs...)
	s.touch()
}

// BeginTurn resets the per-turn fields, records the user's question and
// appends it to the history. History and thread identity survive.
func (s *State) BeginTurn(question, requestID string) {
	s.Question = question
	s.Location = Location{}
	s.News, s.Social, s.Disaster, s.AnswerContext = "", "", "", ""
	s.UseAgent = false
	s.Phase = PhaseAwaitingDecision
	s.Reply = ""
	s.TurnComplete = false
	s.RequestID = requestID
	s.Turn++
	s.Append(NewUserMessage(question))
}

// Complete marks the turn as finished with the given reply.
func (s *State) Complete(reply string) {
	s.Reply = reply
	s.TurnComplete = true
	s.touch()
}

func (s *State) touch() { s.UpdatedAt = time.Now() }
