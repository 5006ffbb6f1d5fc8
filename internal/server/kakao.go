package server

// SkillRequest is the subset of a Kakao i Open Builder skill payload the
// webhook reads.
type SkillRequest struct {
	UserRequest UserRequest `json:"userRequest"`
}

// UserRequest carries the utterance and the one-shot callback URL.
type UserRequest struct {
	CallbackURL string `json:"callbackUrl,omitempty"`
	Utterance   string `json:"utterance"`
	User        User   `json:"user"`
}

// User identifies the chat user; its id doubles as thread id.
type User struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// SkillResponse is a skill reply, either immediate or posted to the callback URL.
type SkillResponse struct {
	Version     string         `json:"version"`
	UseCallback bool           `json:"useCallback,omitempty"`
	Data        *CallbackData  `json:"data,omitempty"`
	Template    *SkillTemplate `json:"template,omitempty"`
}

// CallbackData is the waiting text shown while the callback is pending.
type CallbackData struct {
	Text string `json:"text"`
}

// SkillTemplate holds the rendered outputs.
type SkillTemplate struct {
	Outputs []Output `json:"outputs"`
}

// Output is a single rendered output.
type Output struct {
	SimpleText *SimpleText `json:"simpleText,omitempty"`
}

// SimpleText is a plain text bubble.
type SimpleText struct {
	Text string `json:"text"`
}

// TextResponse builds a final skill response showing text.
func TextResponse(text string) SkillResponse {
	return SkillResponse{
		Version:  "2.0",
		Template: &SkillTemplate{Outputs: []Output{{SimpleText: &SimpleText{Text: text}}}},
	}
}

// CallbackResponse builds the immediate response deferring to the callback.
func CallbackResponse(waiting string) SkillResponse {
	return SkillResponse{Version: "2.0", UseCallback: true, Data: &CallbackData{Text: waiting}}
}
