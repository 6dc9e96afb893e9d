package protocol

import "time"

// ChatRole identifies who authored a widget-side chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model" // scripted flow or AI advisor
	RoleAgent ChatRole = "agent" // human mentor via the console
)

// ChoiceAction is the closed set of actions a chat choice can trigger.
// Dispatch is exhaustive; an unknown action is an error, not a no-op.
type ChoiceAction string

const (
	ActionSelectProfile ChoiceAction = "select_profile"
	ActionExplore       ChoiceAction = "explore"
	ActionProgramInfo   ChoiceAction = "program_info"
	ActionTalkMentor    ChoiceAction = "talk_mentor"
	ActionGoMenu        ChoiceAction = "go_menu"
	ActionGoWelcome     ChoiceAction = "go_welcome"
	ActionRequestType   ChoiceAction = "request_type"
)

// Choice is a button rendered under the most recent model message.
// While choices are present they supersede free-text input.
type Choice struct {
	Label  string       `json:"label"`
	Action ChoiceAction `json:"action"`
	Value  string       `json:"value,omitempty"`
}

// ChatMessage is one turn in a visitor session. The session transcript is
// append-only; it is cleared only by an explicit reset.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Choices   []Choice  `json:"choices,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
